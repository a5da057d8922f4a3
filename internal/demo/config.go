package demo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/interop"
	"github.com/gogpu/interop/surface"
)

// Config is the configuration of one demo run. It is read from a TOML file
// and overridden by command-line arguments.
type Config struct {
	// Backend names a registered compute backend. Empty picks the software
	// backend for the cpu class and the highest-priority backend otherwise.
	Backend     string `toml:"backend"`
	Device      string `toml:"device"` // cpu, gpu or any
	DeviceIndex int    `toml:"device_index"`
	Power       string `toml:"power"` // high or low, wgpu only
	Fallback    bool   `toml:"fallback_adapter"`
	Workers     int    `toml:"workers"` // software backend, 0 = GOMAXPROCS

	Interop       string `toml:"interop"`        // auto, shared or copy
	FailurePolicy string `toml:"failure_policy"` // fatal or skip
	WaitTimeout   string `toml:"wait_timeout"`   // Go duration, empty waits forever

	// Surface is a registered surface kind: headless or offscreen.
	Surface          string `toml:"surface"`
	Width            int    `toml:"width"`
	Height           int    `toml:"height"`
	FullscreenWidth  int    `toml:"fullscreen_width"`
	FullscreenHeight int    `toml:"fullscreen_height"`

	// Frames is the number of redraws before exiting; 0 runs until quit.
	Frames  int    `toml:"frames"`
	Animate bool   `toml:"animate"`
	LDS     bool   `toml:"lds"`
	Size    int    `toml:"size"` // problem size, 0 = the program's default
	Keys    string `toml:"keys"` // comma-separated key presses, one per frame

	KernelDir     string `toml:"kernel_dir"`
	Input         string `toml:"input"`
	Output        string `toml:"output"`
	StatsFile     string `toml:"stats_file"`
	StatsInterval int    `toml:"stats_interval"`
	MetricsAddr   string `toml:"metrics_addr"`
	Locale        string `toml:"locale"`
	Verbose       bool   `toml:"verbose"`

	// DumpConfig prints the effective configuration instead of running.
	DumpConfig bool `toml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Device:           "gpu",
		DeviceIndex:      -1,
		Power:            "high",
		Interop:          "auto",
		FailurePolicy:    "fatal",
		Surface:          surface.DefaultKind,
		Width:            512,
		Height:           512,
		FullscreenWidth:  1920,
		FullscreenHeight: 1080,
		StatsInterval:    30,
		Locale:           "en",
	}
}

// Load decodes the TOML file at path over cfg. Unknown keys are errors.
func Load(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("demo: config: %w", err)
	}
	defer f.Close()
	return decode(path, f, cfg)
}

func decode(name string, r io.Reader, cfg *Config) error {
	err := toml.NewDecoder(r).DisallowUnknownFields().Decode(cfg)
	if err == nil {
		return nil
	}
	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		return fmt.Errorf("demo: config %s: unknown keys:\n%s", name, strict.String())
	}
	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		row, col := derr.Position()
		return fmt.Errorf("demo: config %s:%d:%d: %w", name, row, col, err)
	}
	return fmt.Errorf("demo: config %s: %w", name, err)
}

// WriteTOML encodes cfg.
func (c Config) WriteTOML(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("demo: invalid size %dx%d", c.Width, c.Height)
	}
	if c.FullscreenWidth <= 0 || c.FullscreenHeight <= 0 {
		return fmt.Errorf("demo: invalid fullscreen size %dx%d", c.FullscreenWidth, c.FullscreenHeight)
	}
	if c.Frames < 0 {
		return fmt.Errorf("demo: negative frame count %d", c.Frames)
	}
	if c.Size < 0 {
		return fmt.Errorf("demo: negative problem size %d", c.Size)
	}
	if c.StatsInterval < 0 {
		return fmt.Errorf("demo: negative stats interval %d", c.StatsInterval)
	}
	if c.Workers < 0 {
		return fmt.Errorf("demo: negative worker count %d", c.Workers)
	}
	if _, err := c.class(); err != nil {
		return err
	}
	if _, err := c.power(); err != nil {
		return err
	}
	if _, err := interop.ParseInteropMode(c.Interop); err != nil {
		return err
	}
	if _, err := interop.ParseFailurePolicy(c.FailurePolicy); err != nil {
		return err
	}
	if _, err := c.timeout(); err != nil {
		return err
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("demo: locale %q: %w", c.Locale, err)
	}
	if _, err := ParseKeys(c.Keys); err != nil {
		return err
	}
	if _, err := surface.Lookup(c.Surface); err != nil {
		return err
	}
	return nil
}

func (c Config) class() (interop.DeviceClass, error) {
	switch strings.ToLower(c.Device) {
	case "cpu":
		return interop.ClassCPU, nil
	case "gpu":
		return interop.ClassGPU, nil
	case "", "any":
		return interop.ClassAny, nil
	}
	return interop.ClassAny, fmt.Errorf("demo: unknown device class %q", c.Device)
}

// Class returns the requested device class.
func (c Config) Class() interop.DeviceClass {
	cl, _ := c.class()
	return cl
}

// Mode returns the requested interop mode.
func (c Config) Mode() interop.InteropMode {
	m, _ := interop.ParseInteropMode(c.Interop)
	return m
}

// Policy returns the frame failure policy.
func (c Config) Policy() interop.FailurePolicy {
	p, _ := interop.ParseFailurePolicy(c.FailurePolicy)
	return p
}

func (c Config) timeout() (time.Duration, error) {
	if c.WaitTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.WaitTimeout)
	if err != nil {
		return 0, fmt.Errorf("demo: wait timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("demo: negative wait timeout %s", d)
	}
	return d, nil
}

// Timeout returns the device wait timeout, zero for none.
func (c Config) Timeout() time.Duration {
	d, _ := c.timeout()
	return d
}

func (c Config) power() (gputypes.PowerPreference, error) {
	switch strings.ToLower(c.Power) {
	case "", "none":
		return gputypes.PowerPreferenceNone, nil
	case "high", "high-performance":
		return gputypes.PowerPreferenceHighPerformance, nil
	case "low", "low-power":
		return gputypes.PowerPreferenceLowPower, nil
	}
	return gputypes.PowerPreferenceNone, fmt.Errorf("demo: unknown power preference %q", c.Power)
}

// Printer returns a message printer for the configured locale.
func (c Config) Printer() *message.Printer {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}
