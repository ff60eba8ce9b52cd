package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/wippyai/wasi-executor/errors"
)

var flags = []cli.Flag{
	&cli.PathFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "load settings from TOML `file`",
		EnvVars: []string{"WASI_EXEC_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "log-level",
		Usage:   "set logging `level` to debug, info, warn or error",
		EnvVars: []string{"WASI_EXEC_LOG_LEVEL"},
	},
	&cli.StringFlag{
		Name:    "log-format",
		Usage:   "`format` logs as console or json",
		EnvVars: []string{"WASI_EXEC_LOG_FORMAT"},
	},
	&cli.StringFlag{
		Name:        "metrics",
		Aliases:     []string{"statsd"},
		Usage:       "send metrics to udp `host:port`",
		EnvVars:     []string{"WASI_EXEC_METRICS", "WASI_EXEC_STATSD"},
		DefaultText: "disabled",
	},
}

var commands = []*cli.Command{
	serveCommand(),
	opsCommand(),
}

func main() {
	app := &cli.App{
		Name:      "wasi-exec",
		Usage:     "execute WASI preview1 operations on request",
		UsageText: "wasi-exec [global options] command [command options]",
		Flags:     flags,
		Commands:  commands,
		Reader:    os.Stdin,
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
	}
	os.Exit(run(app, os.Args))
}

// run executes app and maps its outcome onto a process status: the guest's
// code after a proc_exit, 1 after any other failure.
func run(app *cli.App, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := app.RunContext(ctx, args)
	if err == nil {
		return 0
	}
	if code, ok := errors.ExitCode(err); ok {
		return int(code)
	}
	fmt.Fprintln(app.ErrWriter, diagnostic(err, isTerminal(app.ErrWriter)))
	return 1
}
