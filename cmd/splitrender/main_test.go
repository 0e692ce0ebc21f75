package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/splitrender"
	"github.com/vango-dev/splitrender/internal/config"
	"github.com/vango-dev/splitrender/internal/demo"
	"github.com/vango-dev/splitrender/pkg/artifact"
	"github.com/vango-dev/splitrender/pkg/assets"
	"github.com/vango-dev/splitrender/pkg/buildinfo"
	"github.com/vango-dev/splitrender/pkg/envelope"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestKeygen(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "", "keygen", "--out", dir)
	if err != nil {
		t.Fatalf("keygen error = %v", err)
	}
	if !strings.Contains(out, buildinfo.FileName) {
		t.Errorf("output = %q", out)
	}
	first, err := buildinfo.Load(context.Background(), artifact.NewDirStore(dir))
	if err != nil {
		t.Fatalf("written record does not load: %v", err)
	}

	if _, err := execute(t, "", "keygen", "--out", dir); err == nil {
		t.Error("keygen overwrote an existing record without --force")
	}
	if _, err := execute(t, "", "keygen", "--out", dir, "--force"); err != nil {
		t.Fatalf("keygen --force error = %v", err)
	}
	second, _ := buildinfo.Load(context.Background(), artifact.NewDirStore(dir))
	if first.Key == second.Key {
		t.Error("--force kept the old key")
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	if _, err := execute(t, "", "keygen", "--out", dir); err != nil {
		t.Fatal(err)
	}
	record, err := buildinfo.Load(context.Background(), artifact.NewDirStore(dir))
	if err != nil {
		t.Fatal(err)
	}
	env, err := envelope.Seal(record.Key[:], map[string]any{"config": map[string]any{"apiURL": "/api"}})
	if err != nil {
		t.Fatal(err)
	}
	sealed := env.String()

	doc := `<html><body><script type="application/json" id="__SSR_DATA__">{"envelope":"` + sealed + `","splits":{}}</script></body></html>`

	for name, tc := range map[string]struct{ stdin, arg string }{
		"argument": {"", sealed},
		"stdin":    {sealed + "\n", "-"},
		"document": {doc, "-"},
	} {
		t.Run(name, func(t *testing.T) {
			out, err := execute(t, tc.stdin, "inspect", "--build", dir, tc.arg)
			if err != nil {
				t.Fatalf("inspect error = %v", err)
			}
			var payload map[string]map[string]any
			if err := json.Unmarshal([]byte(out), &payload); err != nil {
				t.Fatalf("output is not JSON: %q", out)
			}
			if payload["config"]["apiURL"] != "/api" {
				t.Errorf("payload = %v", payload)
			}
		})
	}

	if _, err := execute(t, "", "inspect", "--build", dir, "AAAA"+sealed[4:]); !errors.Is(err, envelope.ErrDecrypt) {
		t.Errorf("tampered envelope error = %v, want ErrDecrypt", err)
	}
}

func TestServeRefusesWithoutBuildInfo(t *testing.T) {
	err := runServe(context.Background(), serveFlags{build: t.TempDir()})
	if !errors.Is(err, buildinfo.ErrBuildInfoMissing) {
		t.Errorf("runServe() error = %v, want ErrBuildInfoMissing", err)
	}
}

func TestRouter(t *testing.T) {
	static := t.TempDir()
	if err := os.WriteFile(filepath.Join(static, "main.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := buildinfo.Generate(nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	m := assets.NewManifest()
	m.Set("main", "main.css", "main.js")
	m.Set(demo.SplitComments, "comments.css")

	cfg := config.New()
	cfg.Metrics.Enabled = true
	cfg.Build.StaticDir = static

	router, err := newRouter(cfg,
		splitrender.Build{Info: info, Manifest: m, PublicPath: cfg.Build.PublicPath},
		demo.New(demo.Options{}),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(router)
	defer srv.Close()

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := srv.Client().Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	code, body := get("/posts/1")
	if code != http.StatusOK || !strings.Contains(body, "2 comments") {
		t.Errorf("GET /posts/1 = %d:\n%s", code, body)
	}
	if !strings.Contains(body, `href="/static/comments.css"`) {
		t.Error("resolved split stylesheet not linked")
	}

	if code, body := get("/static/main.css"); code != http.StatusOK || body != "body{}" {
		t.Errorf("GET /static/main.css = %d %q", code, body)
	}

	code, body = get(cfg.Metrics.Path)
	if code != http.StatusOK {
		t.Fatalf("GET %s = %d", cfg.Metrics.Path, code)
	}
	for _, want := range []string{
		`splitrender_renders_total{state="stable"} 1`,
		`splitrender_http_requests_total{code="200",method="GET"}`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version", "--short")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != version {
		t.Errorf("version --short = %q", out)
	}
}
