package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{"build info missing", "E100", "Build info missing", CategoryBuild},
		{"crypto backend", "E110", "Crypto backend unavailable", CategoryCrypto},
		{"render threw", "E130", "Render threw", CategoryRender},
		{"unknown error code", "E999", "Unknown error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestIsMatchesByCode(t *testing.T) {
	sentinel := New("E100")
	err := fmt.Errorf("startup: %w", New("E100").WithDetail("dist/").Wrap(fs.ErrNotExist))

	if !stderrors.Is(err, sentinel) {
		t.Error("errors.Is should match errors with the same code")
	}
	if !stderrors.Is(err, fs.ErrNotExist) {
		t.Error("errors.Is should reach the wrapped cause")
	}
	if stderrors.Is(err, New("E101")) {
		t.Error("errors.Is should not match a different code")
	}
	if stderrors.Is(New("E100"), Newf(CategoryBuild, "no code")) {
		t.Error("errors without a code should never match")
	}
}

func TestErrorString(t *testing.T) {
	err := New("E120").WithDetail("chunk \"S1\"").Wrap(fs.ErrNotExist)
	got := err.Error()
	for _, want := range []string{"E120", "Asset not found", `chunk "S1"`, "file does not exist"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, want it to contain %q", got, want)
		}
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E130") != nil {
		t.Error("FromError(nil) should be nil")
	}

	coded := New("E131")
	if FromError(coded, "E130") != coded {
		t.Error("FromError should return coded errors unchanged")
	}

	plain := stderrors.New("boom")
	wrapped := FromError(plain, "E130")
	if wrapped.Code != "E130" || wrapped.Wrapped != plain {
		t.Errorf("FromError = %+v, want code E130 wrapping the cause", wrapped)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	out := New("E100").WithSuggestion("run splitrender keygen").Format()
	for _, want := range []string{"ERROR E100: Build info missing", "Hint: run splitrender keygen", "build context"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("Format() should not contain ANSI codes when colors are disabled")
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six seven", 10)
	for _, line := range lines {
		if len(line) > 10 {
			t.Errorf("line %q exceeds width", line)
		}
	}
	if strings.Join(lines, " ") != "one two three four five six seven" {
		t.Errorf("wrapText lost words: %v", lines)
	}
}
