package main

import (
	"io"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-executor/config"
	"github.com/wippyai/wasi-executor/dispatch"
	"github.com/wippyai/wasi-executor/metrics"
	"github.com/wippyai/wasi-executor/native"
	"github.com/wippyai/wasi-executor/session"
)

var serveFlags = []cli.Flag{
	&cli.StringSliceFlag{
		Name:     "preopen",
		Aliases:  []string{"dir"},
		Usage:    "mount host directory as `host:guest[:ro]`",
		EnvVars:  []string{"WASI_EXEC_PREOPENS"},
		Category: "Guest",
	},
	&cli.StringSliceFlag{
		Name:     "env",
		Usage:    "set guest environment `KEY=VALUE`",
		Category: "Guest",
	},
	&cli.StringSliceFlag{
		Name:     "arg",
		Usage:    "append guest argument `value`",
		Category: "Guest",
	},
	&cli.StringFlag{
		Name:     "guest-stdout",
		Usage:    "send guest output to stderr or discard",
		EnvVars:  []string{"WASI_EXEC_GUEST_STDOUT"},
		Category: "Guest",
	},
	&cli.UintFlag{
		Name:     "initial-pages",
		Usage:    "initial linear memory size in 64 KiB `pages`",
		Category: "Memory",
	},
	&cli.UintFlag{
		Name:     "limit-pages",
		Usage:    "maximum linear memory size in 64 KiB `pages`",
		EnvVars:  []string{"WASI_EXEC_LIMIT_PAGES"},
		Category: "Memory",
	},
	&cli.StringFlag{
		Name:    "on-error",
		Usage:   "`policy` for request errors: fatal or continue",
		EnvVars: []string{"WASI_EXEC_ON_ERROR"},
	},
	&cli.Uint64Flag{
		Name:    "max-frame-size",
		Usage:   "largest accepted frame body in `bytes`",
		EnvVars: []string{"WASI_EXEC_MAX_FRAME_SIZE"},
	},
	&cli.IntFlag{
		Name:    "max-retries",
		Usage:   "retry transient read/write statuses at most `n` times per call",
		EnvVars: []string{"WASI_EXEC_MAX_RETRIES"},
	},
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "serve framed requests on stdin, responses on stdout",
		Flags:  serveFlags,
		Action: serve,
	}
}

// loadConfig reads the optional config file and applies global and serve
// flag overrides. Only flags that were set override the file.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.Path("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.IsSet("metrics") {
		cfg.Metrics.Statsd = c.String("metrics")
	}
	if c.IsSet("preopen") {
		cfg.Preopens = append(cfg.Preopens, c.StringSlice("preopen")...)
	}
	if c.IsSet("env") {
		env, err := config.ParseEnv(c.StringSlice("env"))
		if err != nil {
			return cfg, err
		}
		if cfg.Env == nil {
			cfg.Env = make(map[string]string, len(env))
		}
		for k, v := range env {
			cfg.Env[k] = v
		}
	}
	if c.IsSet("arg") {
		cfg.Args = c.StringSlice("arg")
	}
	if c.IsSet("guest-stdout") {
		cfg.GuestStdout = c.String("guest-stdout")
	}
	if c.IsSet("initial-pages") {
		cfg.Memory.InitialPages = uint32(c.Uint("initial-pages"))
	}
	if c.IsSet("limit-pages") {
		cfg.Memory.LimitPages = uint32(c.Uint("limit-pages"))
	}
	if c.IsSet("on-error") {
		cfg.OnError = c.String("on-error")
	}
	if c.IsSet("max-frame-size") {
		cfg.MaxFrameSize = c.Uint64("max-frame-size")
	}
	if c.IsSet("max-retries") {
		cfg.IO.MaxRetries = c.Int("max-retries")
	}
	return cfg, cfg.Validate()
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	native.SetLogger(log.Named("native"))

	m := metrics.New(metrics.Config{Addr: cfg.Metrics.Statsd}, log)
	defer m.Close()

	policy, err := session.ParsePolicy(cfg.OnError)
	if err != nil {
		return err
	}
	preopens, err := cfg.HostPreopens()
	if err != nil {
		return err
	}

	var guestOut io.Writer = c.App.ErrWriter
	if cfg.GuestStdout == config.GuestStdoutDiscard {
		guestOut = io.Discard
	}

	ctx := c.Context
	host, err := native.NewHost(ctx, native.HostConfig{
		Stdout:       guestOut,
		Stderr:       guestOut,
		Env:          cfg.Env,
		Args:         cfg.Args,
		Preopens:     preopens,
		InitialPages: cfg.Memory.InitialPages,
		MaxPages:     cfg.Memory.LimitPages,
	})
	if err != nil {
		return err
	}

	d := dispatch.New(host.Catalog(), host, host.Memory(), host.Allocator(),
		dispatch.WithLogger(log.Named("dispatch")),
		dispatch.WithMetrics(m),
		dispatch.WithMaxRetries(cfg.IO.MaxRetries))
	s := session.New(d,
		session.WithLogger(log.Named("session")),
		session.WithMetrics(m.WithPrefix("session")),
		session.WithPolicy(policy),
		session.WithMaxFrameSize(cfg.MaxFrameSize),
		session.WithCloser(func() error { return host.Close(ctx) }))

	log.Info("serving",
		zap.String("session", s.ID()),
		zap.Stringer("on_error", policy),
		zap.Int("preopens", len(preopens)))

	err = s.Serve(ctx, c.App.Reader, c.App.Writer)
	if cerr := s.Close(); cerr != nil {
		log.Warn("close failed", zap.Error(cerr))
	}
	return err
}
