package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/wasi-executor/errors"
	"github.com/wippyai/wasi-executor/native"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wasi-exec.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
preopens = ["/srv/data:/data:ro", "/tmp"]
args = ["prog", "-v"]
on_error = "continue"
guest_stdout = "discard"

[env]
HOME = "/data"

[memory]
initial_pages = 4
limit_pages = 256

[io]
max_retries = 3

[log]
level = "debug"
format = "json"

[metrics]
statsd = "127.0.0.1:8125"
`)

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.OnError != OnErrorContinue {
		t.Errorf("on_error = %q", c.OnError)
	}
	if c.GuestStdout != GuestStdoutDiscard {
		t.Errorf("guest_stdout = %q", c.GuestStdout)
	}
	if c.Env["HOME"] != "/data" {
		t.Errorf("env = %v", c.Env)
	}
	if len(c.Args) != 2 || c.Args[1] != "-v" {
		t.Errorf("args = %v", c.Args)
	}
	if c.Memory.InitialPages != 4 || c.Memory.LimitPages != 256 {
		t.Errorf("memory = %+v", c.Memory)
	}
	if c.IO.MaxRetries != 3 {
		t.Errorf("io.max_retries = %d", c.IO.MaxRetries)
	}
	if c.Log.Level != "debug" || c.Log.Format != "json" {
		t.Errorf("log = %+v", c.Log)
	}
	if c.Metrics.Statsd != "127.0.0.1:8125" {
		t.Errorf("metrics.statsd = %q", c.Metrics.Statsd)
	}
	if c.MaxFrameSize != Default().MaxFrameSize {
		t.Errorf("max_frame_size should keep its default, got %d", c.MaxFrameSize)
	}

	pre, err := c.HostPreopens()
	if err != nil {
		t.Fatal(err)
	}
	want := []native.Preopen{
		{HostPath: "/srv/data", GuestPath: "/data", ReadOnly: true},
		{HostPath: "/tmp", GuestPath: "/tmp"},
	}
	if len(pre) != len(want) {
		t.Fatalf("preopens = %+v", pre)
	}
	for i := range want {
		if pre[i] != want[i] {
			t.Errorf("preopen %d = %+v, want %+v", i, pre[i], want[i])
		}
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	d := Default()
	if c.OnError != d.OnError || c.IO.MaxRetries != d.IO.MaxRetries || c.Memory != d.Memory {
		t.Errorf("got %+v, want defaults %+v", c, d)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "colour = \"red\"\n", "unknown keys"},
		{"bad syntax", "on_error = \n", "parse error"},
		{"bad policy", "on_error = \"ignore\"\n", "on_error"},
		{"bad stdout", "guest_stdout = \"stdout\"\n", "guest_stdout"},
		{"inverted memory", "[memory]\ninitial_pages = 8\nlimit_pages = 4\n", "limit_pages"},
		{"bad preopen", "preopens = [\"/a:/b:rw\"]\n", "unknown mode"},
		{"zero frame", "max_frame_size = 0\n", "max_frame_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
			if errors.ClassOf(err) != errors.ClassUsage {
				t.Errorf("class = %v", errors.ClassOf(err))
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if errors.KindOf(err) != errors.KindNotFound {
		t.Fatalf("kind = %q, err = %v", errors.KindOf(err), err)
	}
}

func TestParsePreopen(t *testing.T) {
	tests := []struct {
		in   string
		want native.Preopen
		ok   bool
	}{
		{"/data", native.Preopen{HostPath: "/data", GuestPath: "/data"}, true},
		{"./out:/out", native.Preopen{HostPath: "./out", GuestPath: "/out"}, true},
		{"/in:/in:ro", native.Preopen{HostPath: "/in", GuestPath: "/in", ReadOnly: true}, true},
		{":/x", native.Preopen{}, false},
		{"a:b:c:d", native.Preopen{}, false},
	}
	for _, tt := range tests {
		got, err := ParsePreopen(tt.in)
		if tt.ok != (err == nil) {
			t.Errorf("ParsePreopen(%q) err = %v", tt.in, err)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("ParsePreopen(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseEnv(t *testing.T) {
	env, err := ParseEnv([]string{"A=1", "B=x=y", "C="})
	if err != nil {
		t.Fatal(err)
	}
	if env["A"] != "1" || env["B"] != "x=y" || env["C"] != "" {
		t.Errorf("env = %v", env)
	}
	if _, err := ParseEnv([]string{"novalue"}); err == nil {
		t.Error("expected an error for an entry without '='")
	}
}
