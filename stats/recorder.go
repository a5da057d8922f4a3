package stats

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gogpu/interop"
)

// DefaultInterval is the number of frames between reports.
const DefaultInterval = 30

// Report is one aggregated stats period.
type Report struct {
	Class      interop.DeviceClass
	Mode       interop.InteropMode
	Frames     int
	Dispatched int           // frames that ran a compute step
	Compute    time.Duration // mean per dispatched frame
	Frame      time.Duration // mean per frame
}

// ComputeMillis returns the mean compute time in milliseconds.
func (r Report) ComputeMillis() float64 {
	return float64(r.Compute) / float64(time.Millisecond)
}

// FPS returns the display rate over the period.
func (r Report) FPS() float64 {
	if r.Frame <= 0 {
		return 0
	}
	return float64(time.Second) / float64(r.Frame)
}

func (r Report) String() string {
	return fmt.Sprintf("[%s] Compute: %3.2f ms  Display: %3.2f fps (%s)",
		r.Class, r.ComputeMillis(), r.FPS(), r.Mode)
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithInterval sets the number of frames per report.
func WithInterval(frames int) Option {
	return func(r *Recorder) {
		if frames > 0 {
			r.interval = frames
		}
	}
}

// WithOutput writes every report as a line to w.
func WithOutput(w io.Writer) Option {
	return func(r *Recorder) { r.out = w }
}

// WithReportFunc calls fn with every report.
func WithReportFunc(fn func(Report)) Option {
	return func(r *Recorder) { r.onReport = append(r.onReport, fn) }
}

// Recorder accumulates frame samples. Once more than the interval's worth
// of frames has been seen it emits a Report and starts over.
type Recorder struct {
	mu       sync.Mutex
	interval int
	out      io.Writer
	onReport []func(Report)

	frames     int
	dispatched int
	compute    time.Duration
	total      time.Duration
	last       Report
	reports    int
	err        error
}

var _ interop.StatsSink = (*Recorder)(nil)

// NewRecorder returns a recorder reporting every DefaultInterval frames.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{interval: DefaultInterval}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe adds one presented frame.
func (r *Recorder) Observe(s interop.FrameSample) {
	r.mu.Lock()
	r.frames++
	if s.Dispatched {
		r.dispatched++
		r.compute += s.Compute
	}
	r.total += s.Total
	if r.frames <= r.interval || r.total <= 0 {
		r.mu.Unlock()
		return
	}

	rep := Report{
		Class:      s.Class,
		Mode:       s.Mode,
		Frames:     r.frames,
		Dispatched: r.dispatched,
		Frame:      r.total / time.Duration(r.frames),
	}
	if r.dispatched > 0 {
		rep.Compute = r.compute / time.Duration(r.dispatched)
	}
	r.frames, r.dispatched, r.compute, r.total = 0, 0, 0, 0
	r.last = rep
	r.reports++
	if r.out != nil {
		if _, err := fmt.Fprintln(r.out, rep.String()); err != nil && r.err == nil {
			r.err = err
			interop.Logger().Warn("stats: write failed", "err", err)
		}
	}
	handlers := r.onReport
	r.mu.Unlock()

	for _, fn := range handlers {
		fn(rep)
	}
}

// Last returns the latest report and whether there has been one.
func (r *Recorder) Last() (Report, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.reports > 0
}

// Line returns the latest stats line, empty before the first report.
func (r *Recorder) Line() string {
	rep, ok := r.Last()
	if !ok {
		return ""
	}
	return rep.String()
}

// Reports returns the number of reports emitted.
func (r *Recorder) Reports() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reports
}

// Err returns the first output error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Tee fans samples out to several sinks.
type Tee []interop.StatsSink

// Observe forwards s to every sink.
func (t Tee) Observe(s interop.FrameSample) {
	for _, sink := range t {
		if sink != nil {
			sink.Observe(s)
		}
	}
}
