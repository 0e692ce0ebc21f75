package render

// inlineElements don't need newlines in pretty-printed output.
var inlineElements = map[string]bool{
	"a":      true,
	"abbr":   true,
	"b":      true,
	"br":     true,
	"code":   true,
	"em":     true,
	"i":      true,
	"small":  true,
	"span":   true,
	"strong": true,
	"sub":    true,
	"sup":    true,
	"time":   true,
}

// booleanAttrs are rendered as just the attribute name when true.
var booleanAttrs = map[string]bool{
	"async":      true,
	"autofocus":  true,
	"checked":    true,
	"defer":      true,
	"disabled":   true,
	"hidden":     true,
	"multiple":   true,
	"nomodule":   true,
	"novalidate": true,
	"open":       true,
	"readonly":   true,
	"required":   true,
	"selected":   true,
}

func isInlineElement(tag string) bool { return inlineElements[tag] }
func isBooleanAttr(name string) bool  { return booleanAttrs[name] }
