// Package errors provides the coded, structured errors used across splitrender.
//
// Every failure the render pipeline can report has a registered code that
// maps to a category, a short message and a longer explanation:
//
//   - E100-E109: build artifacts (build-info record)
//   - E110-E119: the secure envelope codec
//   - E120-E129: the build manifest and its assets
//   - E130-E139: rendering and code-split resolution
//   - E140-E149: server configuration
//
// # Usage
//
//	err := errors.New("E100").
//	    WithDetail("no build-info.json under dist/").
//	    Wrap(fs.ErrNotExist)
//
// Two errors with the same code match under errors.Is, so packages export
// a sentinel per code and callers test against it:
//
//	if errors.Is(err, buildinfo.ErrBuildInfoMissing) { ... }
//
// Format renders an error for terminal display and is used by the CLI to
// report startup failures.
package errors
