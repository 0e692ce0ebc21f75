package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/splitrender/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.Build.PublicPath != DefaultPublicPath {
		t.Errorf("Build.PublicPath = %q, want %q", cfg.Build.PublicPath, DefaultPublicPath)
	}
	if cfg.MaxRounds() != DefaultMaxRounds {
		t.Errorf("MaxRounds() = %d, want %d", cfg.MaxRounds(), DefaultMaxRounds)
	}
	if cfg.RoundWait() != 200*time.Millisecond {
		t.Errorf("RoundWait() = %v", cfg.RoundWait())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "splitrender.yaml", `
addr: ":8080"
build:
  location: out
  staticDir: out/static
render:
  maxRounds: 0
  roundWait: 50ms
log:
  level: debug
  format: json
metrics:
  enabled: true
settings:
  apiURL: /api
  limits:
    posts: 20
private: [sentryDSN]
`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.MaxRounds() != 0 {
		t.Errorf("MaxRounds() = %d, want an explicit 0 to survive defaults", cfg.MaxRounds())
	}
	if cfg.RoundWait() != 50*time.Millisecond {
		t.Errorf("RoundWait() = %v", cfg.RoundWait())
	}
	if cfg.RequestTimeout() != 10*time.Second {
		t.Errorf("RequestTimeout() = %v", cfg.RequestTimeout())
	}
	if got, want := cfg.BuildLocation(), filepath.Join(tmpDir, "out"); got != want {
		t.Errorf("BuildLocation() = %q, want %q", got, want)
	}
	if got, want := cfg.StaticDir(), filepath.Join(tmpDir, "out/static"); got != want {
		t.Errorf("StaticDir() = %q, want %q", got, want)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if cfg.Settings["apiURL"] != "/api" {
		t.Errorf("Settings = %v", cfg.Settings)
	}
	if limits, ok := cfg.Settings["limits"].(map[string]any); !ok || limits["posts"] != 20 {
		t.Errorf("nested settings = %#v", cfg.Settings["limits"])
	}
	if len(cfg.Private) != 1 || cfg.Private[0] != "sentryDSN" {
		t.Errorf("Private = %v", cfg.Private)
	}
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "splitrender.json", `{
  "build": {"location": "s3://assets/web/v42", "publicPath": "https://cdn.example.com/"},
  "render": {"requestTimeout": "3s"}
}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.BuildLocation() != "s3://assets/web/v42" {
		t.Errorf("BuildLocation() = %q, URLs must not be joined with the config dir", cfg.BuildLocation())
	}
	if cfg.Build.PublicPath != "https://cdn.example.com/" {
		t.Errorf("Build.PublicPath = %q", cfg.Build.PublicPath)
	}
	if cfg.RequestTimeout() != 3*time.Second {
		t.Errorf("RequestTimeout() = %v", cfg.RequestTimeout())
	}
	if cfg.StaticDir() != "" {
		t.Errorf("StaticDir() = %q, want empty", cfg.StaticDir())
	}
}

func TestLoadPrefersYAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "splitrender.json", `{"addr": ":1"}`)
	writeFile(t, tmpDir, "splitrender.yaml", `addr: ":2"`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":2" || filepath.Base(cfg.Path()) != "splitrender.yaml" {
		t.Errorf("loaded %s with Addr %q", cfg.Path(), cfg.Addr)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		code    string
	}{
		{"missing", "", "", "E141"},
		{"invalid json", "splitrender.json", "not valid json", "E140"},
		{"invalid yaml", "splitrender.yaml", "addr: [", "E140"},
		{"negative rounds", "splitrender.yaml", "render:\n  maxRounds: -1\n", "E140"},
		{"bad duration", "splitrender.yaml", "render:\n  roundWait: soon\n", "E140"},
		{"zero timeout", "splitrender.yaml", "render:\n  requestTimeout: 0s\n", "E140"},
		{"bad level", "splitrender.yaml", "log:\n  level: verbose\n", "E140"},
		{"bad format", "splitrender.yaml", "log:\n  format: xml\n", "E140"},
		{"bad metrics path", "splitrender.yaml", "metrics:\n  path: metrics\n", "E140"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			if tt.file != "" {
				writeFile(t, tmpDir, tt.file, tt.content)
			}
			_, err := Load(tmpDir)
			if !errors.Is(err, errors.New(tt.code)) {
				t.Errorf("Load error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, errors.New("E141")) {
		t.Errorf("LoadFile error = %v, want E141", err)
	}
}

func TestNewLogger(t *testing.T) {
	cfg := New()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)
	logger.Info("dropped")
	logger.Warn("kept", "chunk", "comments")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info record logged at warn level")
	}
	if !strings.Contains(out, `"msg":"kept"`) || !strings.Contains(out, `"chunk":"comments"`) {
		t.Errorf("json output = %q", out)
	}

	cfg.Log.Format = "text"
	buf.Reset()
	cfg.NewLogger(&buf).Error("boom")
	if !strings.Contains(buf.String(), "msg=boom") {
		t.Errorf("text output = %q", buf.String())
	}
}
