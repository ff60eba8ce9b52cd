package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/wasi-executor/errors"
	"github.com/wippyai/wasi-executor/native"
	"github.com/wippyai/wasi-executor/protocol"
)

// Error policies.
const (
	OnErrorFatal    = "fatal"
	OnErrorContinue = "continue"
)

// Destinations for the guest's own stdout and stderr.
const (
	GuestStdoutStderr  = "stderr"
	GuestStdoutDiscard = "discard"
)

// Config is the executor configuration. Zero values of optional fields are
// replaced by the defaults of Default.
type Config struct {
	Env          map[string]string `toml:"env"`
	OnError      string            `toml:"on_error"`
	GuestStdout  string            `toml:"guest_stdout"`
	Log          Log               `toml:"log"`
	Metrics      Metrics           `toml:"metrics"`
	Preopens     []string          `toml:"preopens"`
	Args         []string          `toml:"args"`
	MaxFrameSize uint64            `toml:"max_frame_size"`
	IO           IO                `toml:"io"`
	Memory       Memory            `toml:"memory"`
}

// Memory configures the linear memory in 64 KiB pages.
type Memory struct {
	InitialPages uint32 `toml:"initial_pages"`
	LimitPages   uint32 `toml:"limit_pages"`
}

// IO configures read/write accumulation.
type IO struct {
	MaxRetries int `toml:"max_retries"`
}

// Log configures the process logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Metrics configures the statsd sink. An empty address mutes it.
type Metrics struct {
	Statsd string `toml:"statsd"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		OnError:      OnErrorFatal,
		GuestStdout:  GuestStdoutStderr,
		MaxFrameSize: protocol.DefaultMaxFrameSize,
		IO:           IO{MaxRetries: 16},
		Memory:       Memory{InitialPages: 1, LimitPages: 16384},
		Log:          Log{Level: "info", Format: "console"},
	}
}

// Load reads a TOML file over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, fmt.Sprintf("cannot read %s", path))
	}
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return c, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, fmt.Sprintf("parse error in %s", path))
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return c, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("unknown keys in %s: %s", path, strings.Join(keys, ", ")).Build()
	}
	return c, c.Validate()
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).Detail(format, args...).Build()
	}
	switch c.OnError {
	case OnErrorFatal, OnErrorContinue:
	default:
		return invalid("on_error must be %q or %q, got %q", OnErrorFatal, OnErrorContinue, c.OnError)
	}
	switch c.GuestStdout {
	case GuestStdoutStderr, GuestStdoutDiscard:
	default:
		return invalid("guest_stdout must be %q or %q, got %q", GuestStdoutStderr, GuestStdoutDiscard, c.GuestStdout)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return invalid("log.format must be console or json, got %q", c.Log.Format)
	}
	if c.MaxFrameSize == 0 {
		return invalid("max_frame_size must be positive")
	}
	if c.IO.MaxRetries < 0 {
		return invalid("io.max_retries must not be negative")
	}
	if c.Memory.InitialPages == 0 {
		return invalid("memory.initial_pages must be positive")
	}
	if c.Memory.LimitPages != 0 && c.Memory.LimitPages < c.Memory.InitialPages {
		return invalid("memory.limit_pages %d is below memory.initial_pages %d",
			c.Memory.LimitPages, c.Memory.InitialPages)
	}
	if c.Memory.LimitPages > 65536 {
		return invalid("memory.limit_pages %d exceeds the 4 GiB address space", c.Memory.LimitPages)
	}
	_, err := c.HostPreopens()
	return err
}

// HostPreopens parses the preopen list.
func (c Config) HostPreopens() ([]native.Preopen, error) {
	out := make([]native.Preopen, 0, len(c.Preopens))
	for _, s := range c.Preopens {
		p, err := ParsePreopen(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ParsePreopen parses "host:guest" with an optional ":ro" suffix. A bare
// path is mounted at the same guest path.
func ParsePreopen(s string) (native.Preopen, error) {
	parts := strings.Split(s, ":")
	p := native.Preopen{HostPath: parts[0]}
	switch len(parts) {
	case 1:
		p.GuestPath = parts[0]
	case 2:
		p.GuestPath = parts[1]
	case 3:
		if parts[2] != "ro" {
			return p, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Detail("preopen %q: unknown mode %q", s, parts[2]).Build()
		}
		p.GuestPath = parts[1]
		p.ReadOnly = true
	default:
		return p, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("preopen %q: expected host:guest[:ro]", s).Build()
	}
	if p.HostPath == "" || p.GuestPath == "" {
		return p, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("preopen %q: empty path", s).Build()
	}
	return p, nil
}

// ParseEnv parses KEY=VALUE pairs.
func ParseEnv(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Detail("environment entry %q is not KEY=VALUE", kv).Build()
		}
		env[k] = v
	}
	return env, nil
}
