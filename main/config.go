package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// config is what the command runs with. Sources, lowest priority first:
// defaults, the YAML file given by --config, ODTGEN_* variables, flags.
type config struct {
	ConfigFile string `yaml:"-"`

	In       string        `yaml:"in"`
	Out      string        `yaml:"out"`
	OutDir   string        `yaml:"out_dir"`
	Data     string        `yaml:"data"`
	Assets   string        `yaml:"assets"`
	Locale   string        `yaml:"locale"`
	Strict   bool          `yaml:"strict"`
	Batch    bool          `yaml:"batch"`
	Jobs     int           `yaml:"jobs"`
	Stdout   bool          `yaml:"stdout"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
	Serve    bool          `yaml:"serve"`
	Addr     string        `yaml:"addr"`
	Root     string        `yaml:"root"`
	LogLevel string        `yaml:"log_level"`
}

func defaultConfig() config {
	return config{
		Locale:   "ru",
		Jobs:     4,
		Debounce: 300 * time.Millisecond,
		Addr:     "localhost:8080",
		Root:     ".",
		LogLevel: "info",
	}
}

func bindFlags(fs *pflag.FlagSet, c *config) {
	fs.StringVarP(&c.ConfigFile, "config", "c", c.ConfigFile, "YAML config file")
	fs.StringVarP(&c.In, "in", "i", c.In, "ODF template (.odt, .ods)")
	fs.StringVarP(&c.Out, "out", "o", c.Out, "result file (default: template name + _out)")
	fs.StringVar(&c.OutDir, "out-dir", c.OutDir, "directory for batch results (default: next to the template)")
	fs.StringVarP(&c.Data, "data", "d", c.Data, "JSON data file")
	fs.StringVar(&c.Assets, "assets", c.Assets, "directory the image filter reads from (default: template directory)")
	fs.StringVar(&c.Locale, "locale", c.Locale, "BCP 47 locale for numbers")
	fs.BoolVar(&c.Strict, "strict", c.Strict, "fail on undefined variables")
	fs.BoolVar(&c.Batch, "batch", c.Batch, "data is a JSON array, render one document per item")
	fs.IntVarP(&c.Jobs, "jobs", "j", c.Jobs, "concurrent renders in batch mode")
	fs.BoolVar(&c.Stdout, "stdout", c.Stdout, "write the result to stdout instead of a file")
	fs.BoolVarP(&c.Watch, "watch", "w", c.Watch, "re-render when the template or data change")
	fs.DurationVar(&c.Debounce, "debounce", c.Debounce, "delay before a watch re-render")
	fs.BoolVar(&c.Serve, "serve", c.Serve, "run the HTTP daemon")
	fs.StringVar(&c.Addr, "addr", c.Addr, "daemon listen address")
	fs.StringVar(&c.Root, "root", c.Root, "directory daemon template paths are resolved in")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn, error")
}

// loadConfig parses args and merges every config source.
func loadConfig(args []string, getenv func(string) string) (*config, error) {
	flags := defaultConfig()
	fs := pflag.NewFlagSet("odtgen", pflag.ContinueOnError)
	bindFlags(fs, &flags)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unknown arguments: %v", fs.Args())
	}

	cfg := defaultConfig()
	if flags.ConfigFile != "" {
		raw, err := os.ReadFile(flags.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", flags.ConfigFile, err)
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return nil, err
	}
	fs.Visit(func(f *pflag.Flag) { applyFlag(&cfg, &flags, f.Name) })
	cfg.ConfigFile = flags.ConfigFile

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(c *config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv("ODTGEN_" + key); v != "" {
			*dst = v
		}
	}
	str("IN", &c.In)
	str("OUT", &c.Out)
	str("OUT_DIR", &c.OutDir)
	str("DATA", &c.Data)
	str("ASSETS", &c.Assets)
	str("LOCALE", &c.Locale)
	str("ADDR", &c.Addr)
	str("ROOT", &c.Root)
	str("LOG_LEVEL", &c.LogLevel)

	if v := getenv("ODTGEN_STRICT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ODTGEN_STRICT: %w", err)
		}
		c.Strict = b
	}
	if v := getenv("ODTGEN_JOBS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ODTGEN_JOBS: %w", err)
		}
		c.Jobs = n
	}
	if v := getenv("ODTGEN_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ODTGEN_DEBOUNCE: %w", err)
		}
		c.Debounce = d
	}
	return nil
}

func applyFlag(dst, src *config, name string) {
	switch name {
	case "in":
		dst.In = src.In
	case "out":
		dst.Out = src.Out
	case "out-dir":
		dst.OutDir = src.OutDir
	case "data":
		dst.Data = src.Data
	case "assets":
		dst.Assets = src.Assets
	case "locale":
		dst.Locale = src.Locale
	case "strict":
		dst.Strict = src.Strict
	case "batch":
		dst.Batch = src.Batch
	case "jobs":
		dst.Jobs = src.Jobs
	case "stdout":
		dst.Stdout = src.Stdout
	case "watch":
		dst.Watch = src.Watch
	case "debounce":
		dst.Debounce = src.Debounce
	case "serve":
		dst.Serve = src.Serve
	case "addr":
		dst.Addr = src.Addr
	case "root":
		dst.Root = src.Root
	case "log-level":
		dst.LogLevel = src.LogLevel
	}
}

func (c *config) validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.Serve {
		if c.Addr == "" {
			return errors.New("--addr is required with --serve")
		}
		return nil
	}
	if c.In == "" {
		return errors.New("--in is required")
	}
	if c.Data == "" {
		return errors.New("--data is required")
	}
	if c.Jobs < 1 {
		return fmt.Errorf("--jobs must be positive, got %d", c.Jobs)
	}
	if c.Batch && c.Stdout {
		return errors.New("--batch cannot write to stdout")
	}
	if c.Watch && c.Stdout {
		return errors.New("--watch cannot write to stdout")
	}
	return nil
}

// output is where a single render goes.
func (c *config) output() string {
	if c.Out != "" {
		return c.Out
	}
	ext := fileExt(c.In)
	return strings.TrimSuffix(c.In, ext) + "_out" + ext
}
