package stats

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/interop"
)

func sample(compute, total time.Duration) interop.FrameSample {
	return interop.FrameSample{
		Dispatched: compute > 0,
		Compute:    compute,
		Total:      total,
		Mode:       interop.ModeShared,
		Class:      interop.ClassGPU,
	}
}

func TestReportString(t *testing.T) {
	r := Report{
		Class:   interop.ClassCPU,
		Mode:    interop.ModeCopy,
		Compute: 1500 * time.Microsecond,
		Frame:   20 * time.Millisecond,
	}
	want := "[CPU] Compute: 1.50 ms  Display: 50.00 fps (copying)"
	if got := r.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if (Report{}).FPS() != 0 {
		t.Error("zero report has a rate")
	}
}

func TestRecorderInterval(t *testing.T) {
	var out bytes.Buffer
	var got []Report
	r := NewRecorder(WithOutput(&out), WithReportFunc(func(rep Report) { got = append(got, rep) }))

	for range DefaultInterval {
		r.Observe(sample(2*time.Millisecond, 10*time.Millisecond))
	}
	if r.Reports() != 0 || r.Line() != "" {
		t.Fatalf("reported after %d frames", DefaultInterval)
	}
	r.Observe(sample(2*time.Millisecond, 10*time.Millisecond))
	if r.Reports() != 1 || len(got) != 1 {
		t.Fatalf("reports = %d, callbacks = %d", r.Reports(), len(got))
	}
	want := "[GPU] Compute: 2.00 ms  Display: 100.00 fps (attached)"
	if r.Line() != want {
		t.Errorf("Line() = %q, want %q", r.Line(), want)
	}
	if out.String() != want+"\n" {
		t.Errorf("output = %q", out.String())
	}
	if got[0].Frames != DefaultInterval+1 {
		t.Errorf("Frames = %d", got[0].Frames)
	}

	// Counters restart after a report.
	for range DefaultInterval {
		r.Observe(sample(0, 5*time.Millisecond))
	}
	if r.Reports() != 1 {
		t.Errorf("reported early after reset")
	}
}

func TestRecorderComputeOverDispatchedFrames(t *testing.T) {
	r := NewRecorder(WithInterval(3))
	r.Observe(sample(4*time.Millisecond, 10*time.Millisecond))
	r.Observe(sample(0, 10*time.Millisecond))
	r.Observe(sample(0, 10*time.Millisecond))
	r.Observe(sample(2*time.Millisecond, 10*time.Millisecond))
	rep, ok := r.Last()
	if !ok {
		t.Fatal("no report")
	}
	if rep.Frames != 4 || rep.Dispatched != 2 {
		t.Errorf("frames = %d, dispatched = %d", rep.Frames, rep.Dispatched)
	}
	if rep.Compute != 3*time.Millisecond {
		t.Errorf("Compute = %v, want 3ms", rep.Compute)
	}

	// A period without dispatches reports no compute time.
	for range 4 {
		r.Observe(sample(0, 10*time.Millisecond))
	}
	if rep, _ := r.Last(); rep.Compute != 0 || rep.Dispatched != 0 {
		t.Errorf("idle period = %+v", rep)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRecorderOutputError(t *testing.T) {
	r := NewRecorder(WithInterval(1), WithOutput(failingWriter{}))
	r.Observe(sample(time.Millisecond, time.Millisecond))
	r.Observe(sample(time.Millisecond, time.Millisecond))
	if r.Err() == nil {
		t.Error("write error not kept")
	}
	if r.Reports() != 1 {
		t.Errorf("reports = %d", r.Reports())
	}
}

func TestTee(t *testing.T) {
	a, b := NewRecorder(WithInterval(1)), NewRecorder(WithInterval(1))
	tee := Tee{a, nil, b}
	tee.Observe(sample(time.Millisecond, time.Millisecond))
	tee.Observe(sample(time.Millisecond, time.Millisecond))
	if a.Reports() != 1 || b.Reports() != 1 {
		t.Errorf("reports = %d, %d", a.Reports(), b.Reports())
	}
}

func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]float64)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				out[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[mf.GetName()] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[mf.GetName()] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestCollector(t *testing.T) {
	c := NewCollector("nbody")
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatal(err)
	}
	r := NewRecorder(WithInterval(2), WithReportFunc(c.Report))
	sink := Tee{r, c}

	sink.Observe(sample(time.Millisecond, 4*time.Millisecond))
	sink.Observe(sample(0, 4*time.Millisecond))
	sink.Observe(sample(3*time.Millisecond, 4*time.Millisecond))

	got := gather(t, reg)
	tests := map[string]float64{
		"interop_frames_total":         3,
		"interop_compute_frames_total": 2,
		"interop_frame_seconds":        3,
		"interop_compute_milliseconds": 4.0 / 3,
		"interop_display_fps":          250,
	}
	for name, want := range tests {
		if diff := got[name] - want; diff > 1e-3 || diff < -1e-3 {
			t.Errorf("%s = %v, want %v", name, got[name], want)
		}
	}
}

func TestServe(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("vecadd")
	reg.MustRegister(c)
	c.Observe(sample(time.Millisecond, time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr, err := Serve(ctx, "127.0.0.1:0", reg)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Get("http://" + addr.String() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `interop_frames_total{class="GPU",mode="attached",program="vecadd"} 1`) {
		t.Errorf("metrics body lacks frame counter:\n%s", body)
	}
}
