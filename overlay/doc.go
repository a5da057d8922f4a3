// Package overlay draws the info and stats text of the demo programs.
//
// Text is drawn with Go Regular through golang.org/x/image/font and
// measured with HarfBuzz shaping from go-text/typesetting, so the backing
// bounds match what is drawn. Numbers in formatted lines follow the
// printer's locale:
//
//	o, _ := overlay.New(overlay.DefaultSize, nil)
//	o.SetInfo(o.Sprintf("Bodies: %d", 16384)) // "Bodies: 16,384"
//	o.Draw(frame)
package overlay
