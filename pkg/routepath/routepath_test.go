package routepath

import (
	"reflect"
	"testing"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantPath    string
		wantChanged bool
		wantErr     error
	}{
		{name: "root", input: "/", wantPath: "/"},
		{name: "empty string", input: "", wantPath: "/", wantChanged: true},
		{name: "no leading slash", input: "about", wantPath: "/about", wantChanged: true},
		{name: "collapse slashes", input: "/blog//post", wantPath: "/blog/post", wantChanged: true},
		{name: "trailing slash", input: "/posts/", wantPath: "/posts", wantChanged: true},
		{name: "dot segments", input: "/a/./b/../c", wantPath: "/a/c", wantChanged: true},
		{name: "already canonical", input: "/posts/1", wantPath: "/posts/1"},
		{name: "escaped segment kept", input: "/posts/a%20b", wantPath: "/posts/a%20b"},
		{name: "backslash", input: "/a\\b", wantErr: ErrBackslashInPath},
		{name: "encoded nul", input: "/a%00b", wantErr: ErrNullByteInPath},
		{name: "bad escape", input: "/a%G1", wantErr: ErrInvalidPercentEscape},
		{name: "short escape", input: "/a%2", wantErr: ErrInvalidPercentEscape},
		{name: "escapes root", input: "/../secret", wantErr: ErrPathEscapesRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed, err := Canonical(tt.input)
			if err != tt.wantErr {
				t.Fatalf("Canonical(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got != tt.wantPath || changed != tt.wantChanged {
				t.Errorf("Canonical(%q) = %q, %v, want %q, %v", tt.input, got, changed, tt.wantPath, tt.wantChanged)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    Params
		ok      bool
	}{
		{"/", "/", Params{}, true},
		{"/posts/:id", "/posts/42", Params{"id": "42"}, true},
		{"/posts/:id", "/posts/hello%20world", Params{"id": "hello world"}, true},
		{"/posts/:id/comments", "/posts/7/comments", Params{"id": "7"}, true},
		{"/posts/:id", "/posts", nil, false},
		{"/posts/:id", "/posts/1/2", nil, false},
		{"/posts/:id", "/users/1", nil, false},
		{"/posts/:id", "/posts/a%2Fb", nil, false},
	}

	for _, tt := range tests {
		got, ok := Match(tt.pattern, tt.path)
		if ok != tt.ok || !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Match(%q, %q) = %v, %v, want %v, %v", tt.pattern, tt.path, got, ok, tt.want, tt.ok)
		}
	}
	if p, _ := Match("/posts/:id", "/posts/9"); p.Get("id") != "9" || p.Get("missing") != "" {
		t.Errorf("Get() on %v", p)
	}
}
