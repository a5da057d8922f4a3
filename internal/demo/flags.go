package demo

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/gogpu/interop"
	"github.com/gogpu/interop/surface"
)

// configFlag finds the value of -config before the other flags are
// defined, so that the file provides their defaults.
func configFlag(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			break
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// ParseArgs builds the configuration of program from its command line.
//
// The -config file is loaded first; flags override it. Bare tokens may be
// mixed with flags and are matched by substring the way the benchmark
// scripts pass them: "cpu" and "gpu" select the device class, "lds" the
// local-memory kernel variant.
func ParseArgs(program string, args []string, output io.Writer) (Config, error) {
	cfg := Default()
	path := configFlag(args)
	if path != "" {
		if err := Load(path, &cfg); err != nil {
			return cfg, err
		}
	}

	fs := flag.NewFlagSet(program, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [cpu|gpu] [lds] [flags]\n", program)
		fs.PrintDefaults()
	}

	fs.String("config", path, "TOML configuration `file`")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "compute backend ("+strings.Join(interop.AvailableBackends(), ", ")+")")
	fs.StringVar(&cfg.Device, "device", cfg.Device, "device class: cpu, gpu or any")
	fs.IntVar(&cfg.DeviceIndex, "device-index", cfg.DeviceIndex, "index among matching devices, -1 for the first")
	fs.StringVar(&cfg.Power, "power", cfg.Power, "adapter power preference: high or low")
	fs.BoolVar(&cfg.Fallback, "fallback-adapter", cfg.Fallback, "use the software fallback adapter")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "software backend worker goroutines, 0 for GOMAXPROCS")
	fs.StringVar(&cfg.Interop, "interop", cfg.Interop, "interop mode: auto, shared or copy")
	fs.StringVar(&cfg.FailurePolicy, "on-failure", cfg.FailurePolicy, "frame failure policy: fatal or skip")
	fs.StringVar(&cfg.WaitTimeout, "wait-timeout", cfg.WaitTimeout, "bound on every device wait, e.g. 2s")
	fs.StringVar(&cfg.Surface, "surface", cfg.Surface, "surface kind ("+strings.Join(surface.Kinds(), ", ")+")")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "surface width")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "surface height")
	fs.IntVar(&cfg.Frames, "frames", cfg.Frames, "frames to draw before exiting, 0 runs until quit")
	fs.BoolVar(&cfg.Animate, "animate", cfg.Animate, "start animated")
	fs.BoolVar(&cfg.LDS, "lds", cfg.LDS, "use the local-memory kernel variant")
	fs.IntVar(&cfg.Size, "size", cfg.Size, "problem size, 0 for the program default")
	fs.StringVar(&cfg.Keys, "keys", cfg.Keys, "comma-separated key presses, one per frame")
	fs.StringVar(&cfg.KernelDir, "kernels", cfg.KernelDir, "kernel source `dir`ectory, empty for the built-in sources")
	fs.StringVar(&cfg.Input, "input", cfg.Input, "input `file`")
	fs.StringVar(&cfg.Output, "output", cfg.Output, "output `file`")
	fs.StringVar(&cfg.StatsFile, "stats", cfg.StatsFile, "append stats lines to `file`")
	fs.IntVar(&cfg.StatsInterval, "stats-interval", cfg.StatsInterval, "frames per stats line")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "serve Prometheus metrics on `addr`")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale for numbers in the overlay")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "log to stderr")
	fs.BoolVar(&cfg.DumpConfig, "dump-config", false, "print the effective configuration and exit")

	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return cfg, err
		}
		if fs.NArg() == 0 {
			break
		}
		if err := applyToken(&cfg, fs.Arg(0)); err != nil {
			return cfg, err
		}
		rest = fs.Args()[1:]
	}
	return cfg, cfg.Validate()
}

func applyToken(cfg *Config, tok string) error {
	t := strings.ToLower(tok)
	matched := false
	switch interop.ParseDeviceClass([]string{t}, interop.ClassAny) {
	case interop.ClassCPU:
		cfg.Device, matched = "cpu", true
	case interop.ClassGPU:
		cfg.Device, matched = "gpu", true
	}
	if strings.Contains(t, "lds") {
		cfg.LDS, matched = true, true
	}
	if !matched {
		return fmt.Errorf("demo: unknown argument %q", tok)
	}
	return nil
}
