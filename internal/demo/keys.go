package demo

import (
	"fmt"
	"strings"

	"github.com/gogpu/gpucontext"
)

// Action is what a key does in a demo.
type Action uint8

const (
	ActionNone Action = iota
	ActionQuit
	ActionToggleAnimate
	ActionToggleInfo
	ActionToggleStats
	ActionIncrease
	ActionDecrease
	ActionFullscreen
)

var actionNames = [...]string{"none", "quit", "animate", "info", "stats", "increase", "decrease", "fullscreen"}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// KeyAction maps a key press to its action.
func KeyAction(key gpucontext.Key, mods gpucontext.Modifiers) Action {
	switch key {
	case gpucontext.KeyEscape, gpucontext.KeyQ:
		return ActionQuit
	case gpucontext.KeySpace:
		return ActionToggleAnimate
	case gpucontext.KeyI:
		return ActionToggleInfo
	case gpucontext.KeyS:
		return ActionToggleStats
	case gpucontext.KeyF:
		return ActionFullscreen
	case gpucontext.KeyNumpadAdd:
		return ActionIncrease
	case gpucontext.KeyEqual:
		if mods.HasShift() {
			return ActionIncrease
		}
	case gpucontext.KeyMinus, gpucontext.KeyNumpadSubtract:
		return ActionDecrease
	}
	return ActionNone
}

// KeyPress is one scripted key press.
type KeyPress struct {
	Key  gpucontext.Key
	Mods gpucontext.Modifiers
}

var namedKeys = map[string]KeyPress{
	"esc":    {Key: gpucontext.KeyEscape},
	"escape": {Key: gpucontext.KeyEscape},
	"space":  {Key: gpucontext.KeySpace},
	"enter":  {Key: gpucontext.KeyEnter},
	"tab":    {Key: gpucontext.KeyTab},
	"+":      {Key: gpucontext.KeyEqual, Mods: gpucontext.ModShift},
	"plus":   {Key: gpucontext.KeyEqual, Mods: gpucontext.ModShift},
	"=":      {Key: gpucontext.KeyEqual},
	"-":      {Key: gpucontext.KeyMinus},
	"minus":  {Key: gpucontext.KeyMinus},
	"none":   {Key: gpucontext.KeyUnknown},
	".":      {Key: gpucontext.KeyUnknown},
}

// ParseKey parses a key name: a letter, a digit, or one of esc, space,
// enter, tab, + (plus), = and - (minus). "none" and "." are a frame
// without a key press.
func ParseKey(name string) (KeyPress, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if kp, ok := namedKeys[n]; ok {
		return kp, nil
	}
	if len(n) == 1 {
		switch c := n[0]; {
		case c >= 'a' && c <= 'z':
			return KeyPress{Key: gpucontext.KeyA + gpucontext.Key(c-'a')}, nil
		case c >= '0' && c <= '9':
			return KeyPress{Key: gpucontext.Key0 + gpucontext.Key(c-'0')}, nil
		}
	}
	return KeyPress{}, fmt.Errorf("demo: unknown key %q", name)
}

// ParseKeys parses a comma-separated key script.
func ParseKeys(script string) ([]KeyPress, error) {
	if strings.TrimSpace(script) == "" {
		return nil, nil
	}
	fields := strings.Split(script, ",")
	keys := make([]KeyPress, 0, len(fields))
	for _, f := range fields {
		kp, err := ParseKey(f)
		if err != nil {
			return nil, err
		}
		keys = append(keys, kp)
	}
	return keys, nil
}
