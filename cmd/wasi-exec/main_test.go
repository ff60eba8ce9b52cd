package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/wippyai/wasi-executor/config"
	wexec "github.com/wippyai/wasi-executor/errors"
	"github.com/wippyai/wasi-executor/native"
)

func TestOpsRows(t *testing.T) {
	rows := opsRows(native.Preview1())
	if len(rows) != 46 {
		t.Fatalf("got %d rows", len(rows))
	}
	if got := rows[0][1]; got != "args_get" {
		t.Errorf("row 0 = %q", got)
	}
	write := rows[26]
	if write[1] != "fd_write" || write[ioColumn] != "iovs=1 len=2 offset=- count=3" {
		t.Errorf("fd_write row = %v", write)
	}
	pread := rows[16]
	if pread[ioColumn] != "iovs=1 len=2 offset=3 count=4" {
		t.Errorf("fd_pread row = %v", pread)
	}
	exit := rows[38]
	if exit[1] != "proc_exit" || exit[3] != "-" || exit[2] != "i32" {
		t.Errorf("proc_exit row = %v", exit)
	}
}

func TestRenderOps(t *testing.T) {
	out := renderOps(opsRows(native.Preview1()))
	for _, want := range []string{"wasi_snapshot_preview1", "sock_shutdown", "NAME"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered table lacks %q", want)
		}
	}
}

func TestOpsModel(t *testing.T) {
	m := newOpsModel(opsRows(native.Preview1()))
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(m.detail, "args_sizes_get #1") {
		t.Errorf("detail = %q", m.detail)
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should produce a quit message")
	}
}

func TestDiagnostic(t *testing.T) {
	err := wexec.Prefix(wexec.ResourceNotFound(4), "params[1]")
	got := diagnostic(err, false)
	if !strings.HasPrefix(got, "wasi-exec: usage error at params[1]: ") {
		t.Errorf("diagnostic = %q", got)
	}
	if styled := diagnostic(err, true); !strings.Contains(styled, "resource 4 not found") {
		t.Errorf("styled diagnostic = %q", styled)
	}
}

// captureConfig runs a serve-like command that records the merged config.
func captureConfig(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	var got config.Config
	app := &cli.App{
		Name:  "wasi-exec",
		Flags: flags,
		Commands: []*cli.Command{{
			Name:  "serve",
			Flags: serveFlags,
			Action: func(c *cli.Context) error {
				var err error
				got, err = loadConfig(c)
				return err
			},
		}},
		Writer:    &bytes.Buffer{},
		ErrWriter: &bytes.Buffer{},
	}
	err := app.Run(append([]string{"wasi-exec"}, args...))
	return got, err
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exec.toml")
	content := `
on_error = "continue"
preopens = ["/srv"]

[env]
A = "file"
B = "file"

[memory]
initial_pages = 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := captureConfig(t,
		"--config", path, "--log-level", "debug",
		"serve", "--on-error", "fatal", "--env", "B=flag", "--preopen", "/tmp:/scratch", "--max-retries", "2")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OnError != config.OnErrorFatal {
		t.Errorf("on_error = %q", cfg.OnError)
	}
	if cfg.Env["A"] != "file" || cfg.Env["B"] != "flag" {
		t.Errorf("env = %v", cfg.Env)
	}
	if len(cfg.Preopens) != 2 || cfg.Preopens[1] != "/tmp:/scratch" {
		t.Errorf("preopens = %v", cfg.Preopens)
	}
	if cfg.Memory.InitialPages != 2 {
		t.Errorf("initial pages = %d", cfg.Memory.InitialPages)
	}
	if cfg.IO.MaxRetries != 2 {
		t.Errorf("max retries = %d", cfg.IO.MaxRetries)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadConfig_InvalidOverride(t *testing.T) {
	_, err := captureConfig(t, "serve", "--on-error", "retry")
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if wexec.ClassOf(err) != wexec.ClassUsage {
		t.Errorf("class = %v", wexec.ClassOf(err))
	}
}

func TestRun_ExitStatus(t *testing.T) {
	newApp := func(err error) *cli.App {
		return &cli.App{
			Name:      "wasi-exec",
			Action:    func(*cli.Context) error { return err },
			Writer:    &bytes.Buffer{},
			ErrWriter: &bytes.Buffer{},
		}
	}
	if code := run(newApp(nil), []string{"wasi-exec"}); code != 0 {
		t.Errorf("success exit = %d", code)
	}
	if code := run(newApp(wexec.Exit(7)), []string{"wasi-exec"}); code != 7 {
		t.Errorf("guest exit = %d", code)
	}

	app := newApp(errors.New("boom"))
	if code := run(app, []string{"wasi-exec"}); code != 1 {
		t.Errorf("failure exit = %d", code)
	}
	if !strings.Contains(app.ErrWriter.(*bytes.Buffer).String(), "boom") {
		t.Error("failure is reported on stderr")
	}
}
