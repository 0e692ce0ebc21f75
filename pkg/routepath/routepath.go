// Package routepath canonicalizes request paths and matches them against
// simple route patterns such as /posts/:id.
package routepath

import (
	"errors"
	"net/url"
	"strings"
)

// Path canonicalization errors.
var (
	ErrBackslashInPath      = errors.New("path contains backslash")
	ErrNullByteInPath       = errors.New("path contains null byte")
	ErrInvalidPercentEscape = errors.New("invalid percent escape sequence")
	ErrPathEscapesRoot      = errors.New("path escapes root via ..")
)

// Canonical normalizes a URL path: it ensures a leading slash, collapses
// repeated slashes, resolves "." and ".." segments and drops the trailing
// slash (except for root). changed reports whether the result differs from
// path, so callers can redirect to the canonical form.
//
// Backslashes, NUL bytes, malformed percent-escapes and ".." above root are
// rejected.
func Canonical(path string) (canonical string, changed bool, err error) {
	if path == "" {
		return "/", true, nil
	}
	if strings.Contains(path, "\\") {
		return "", false, ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return "", false, ErrNullByteInPath
	}
	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return "", false, err
		}
	}

	var segments []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segments) == 0 {
				return "", false, ErrPathEscapesRoot
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}

	canonical = "/" + strings.Join(segments, "/")
	return canonical, canonical != path, nil
}

func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Params holds the values of named pattern segments.
type Params map[string]string

// Get returns the value of name, or "".
func (p Params) Get(name string) string { return p[name] }

// Match reports whether the canonical path matches pattern. Pattern
// segments starting with ':' capture one decoded path segment; a segment
// whose value decodes to contain "/" never matches.
func Match(pattern, path string) (Params, bool) {
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return nil, false
	}

	params := Params{}
	for i, seg := range want {
		if name, ok := strings.CutPrefix(seg, ":"); ok {
			value, err := url.PathUnescape(got[i])
			if err != nil || value == "" || strings.Contains(value, "/") {
				return nil, false
			}
			params[name] = value
			continue
		}
		if seg != got[i] {
			return nil, false
		}
	}
	return params, true
}
