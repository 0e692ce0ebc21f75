package render

import "strings"

var (
	htmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
		"\n", "&#10;",
		"\r", "&#13;",
		"\t", "&#9;",
	)
)

// EscapeHTML escapes text for safe inclusion in HTML content.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// EscapeAttr escapes text for safe inclusion in a quoted attribute value.
// Whitespace that could break attribute parsing is escaped too.
func EscapeAttr(s string) string {
	return attrEscaper.Replace(s)
}
