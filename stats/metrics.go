package stats

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gogpu/interop"
)

// Collector exports frame samples as Prometheus metrics labelled by
// program, device class and interop mode.
type Collector struct {
	program string

	frames     *prometheus.CounterVec
	dispatched *prometheus.CounterVec
	frameTime  *prometheus.HistogramVec
	computeMs  *prometheus.GaugeVec
	fps        *prometheus.GaugeVec
}

var _ interop.StatsSink = (*Collector)(nil)

// NewCollector returns a collector for the named program.
func NewCollector(program string) *Collector {
	labels := []string{"program", "class", "mode"}
	return &Collector{
		program: program,
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "interop",
			Name:      "frames_total",
			Help:      "Presented frames.",
		}, labels),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "interop",
			Name:      "compute_frames_total",
			Help:      "Frames that ran the compute step.",
		}, labels),
		frameTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "interop",
			Name:      "frame_seconds",
			Help:      "Frame time from redraw to present.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, labels),
		computeMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "interop",
			Name:      "compute_milliseconds",
			Help:      "Mean compute time of the last stats period.",
		}, labels),
		fps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "interop",
			Name:      "display_fps",
			Help:      "Display rate of the last stats period.",
		}, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.frames.Describe(ch)
	c.dispatched.Describe(ch)
	c.frameTime.Describe(ch)
	c.computeMs.Describe(ch)
	c.fps.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.frames.Collect(ch)
	c.dispatched.Collect(ch)
	c.frameTime.Collect(ch)
	c.computeMs.Collect(ch)
	c.fps.Collect(ch)
}

func (c *Collector) labels(class interop.DeviceClass, mode interop.InteropMode) prometheus.Labels {
	return prometheus.Labels{"program": c.program, "class": class.String(), "mode": mode.String()}
}

// Observe counts one frame.
func (c *Collector) Observe(s interop.FrameSample) {
	l := c.labels(s.Class, s.Mode)
	c.frames.With(l).Inc()
	if s.Dispatched {
		c.dispatched.With(l).Inc()
	}
	c.frameTime.With(l).Observe(s.Total.Seconds())
}

// Report sets the period gauges. Pass it to WithReportFunc.
func (c *Collector) Report(r Report) {
	l := c.labels(r.Class, r.Mode)
	c.computeMs.With(l).Set(r.ComputeMillis())
	c.fps.With(l).Set(r.FPS())
}

// Handler serves the metrics of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes the metrics of reg on addr under /metrics until ctx is
// done. It returns once the listener is bound; serving errors are logged.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			interop.Logger().Warn("stats: metrics server exited", "err", err)
		}
	}()
	interop.Logger().Info("stats: serving metrics", "addr", ln.Addr().String())
	return ln.Addr(), nil
}
