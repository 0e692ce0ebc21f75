package demo

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/splitrender"
	"github.com/vango-dev/splitrender/pkg/assets"
	"github.com/vango-dev/splitrender/pkg/buildinfo"
)

func newHandler(t *testing.T, app *App, opts ...splitrender.Option) http.Handler {
	t.Helper()
	info, err := buildinfo.Generate(nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	m := assets.NewManifest()
	m.Set("main", "main.js")
	m.Set(SplitComments, "comments.css", "comments.js")
	m.Set(SplitRelated, "related.js")

	opts = append([]splitrender.Option{
		splitrender.WithApplication(app.Application()),
		splitrender.WithModuleCache(app.Cache()),
		splitrender.WithBeforeRender(app.BeforeRender),
		splitrender.WithRoundWait(time.Second),
		splitrender.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	h, err := splitrender.New(splitrender.Build{Info: info, Manifest: m, PublicPath: "/static/"}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func get(h http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPostPageResolvesNestedSplits(t *testing.T) {
	h := newHandler(t, New(Options{Latency: 5 * time.Millisecond}))

	rec := get(h, "/posts/1", &http.Cookie{Name: UserCookie, Value: "ada"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<title>Rendering in rounds · Splitrender Blog</title>",
		"Welcome back, ada",
		"<h2>2 comments</h2>",
		`<div class="reactions">♥ 12</div>`,
		`<a href="/posts/2">Sealing the initial state</a>`,
		`<link rel="stylesheet" href="/static/comments.css">`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("document missing %q", want)
		}
	}
	if strings.Contains(body, "Loading comments") {
		t.Error("server markup still shows the comments fallback")
	}
}

func TestHomeHasNoSplits(t *testing.T) {
	h := newHandler(t, New(Options{}))

	body := get(h, "/").Body.String()
	if !strings.Contains(body, `<a href="/posts/1">Rendering in rounds</a>`) {
		t.Errorf("home does not list posts:\n%s", body)
	}
	if !strings.Contains(body, "<span class=\"greeting\">Welcome</span>") {
		t.Error("anonymous greeting missing")
	}
}

func TestRouting(t *testing.T) {
	h := newHandler(t, New(Options{}))

	tests := []struct {
		target   string
		wantCode int
		wantLoc  string
	}{
		{"/posts/1/", http.StatusMovedPermanently, "/posts/1"},
		{"/posts//2", http.StatusMovedPermanently, "/posts/2"},
		{"/archive", http.StatusPermanentRedirect, "/"},
		{"/posts/99", http.StatusNotFound, ""},
		{"/nope", http.StatusNotFound, ""},
		{"/a/../../etc", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		rec := get(h, tt.target)
		if rec.Code != tt.wantCode {
			t.Errorf("GET %s status = %d, want %d", tt.target, rec.Code, tt.wantCode)
		}
		if loc := rec.Header().Get("Location"); loc != tt.wantLoc {
			t.Errorf("GET %s Location = %q, want %q", tt.target, loc, tt.wantLoc)
		}
	}
}

func TestSlowSplitsFallBackOnBudget(t *testing.T) {
	h := newHandler(t, New(Options{Latency: time.Hour}),
		splitrender.WithMaxSSRRounds(2),
		splitrender.WithRoundWait(10*time.Millisecond),
	)

	body := get(h, "/posts/2").Body.String()
	if !strings.Contains(body, "Loading comments") {
		t.Errorf("expected the comments fallback:\n%s", body)
	}
	if strings.Contains(body, "comments.css") {
		t.Error("stylesheet of an unresolved split was linked")
	}
}

func TestPostBodyIsSanitized(t *testing.T) {
	app := New(Options{Posts: []Post{{
		ID:    "x",
		Title: "Untrusted",
		Body:  `<p onclick="steal()">hello <a href="javascript:alert(1)">there</a></p><script>alert(1)</script>`,
	}}})
	h := newHandler(t, app)

	body := get(h, "/posts/x").Body.String()
	if !strings.Contains(body, "hello") {
		t.Fatalf("post body missing:\n%s", body)
	}
	for _, bad := range []string{"onclick", "javascript:", "alert(1)"} {
		if strings.Contains(body, bad) {
			t.Errorf("sanitized body still contains %q", bad)
		}
	}
}
