package vdom

import "strings"

// attr creates an Attr with the given key and value.
func attr(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// AttrOf sets an arbitrary attribute.
func AttrOf(key string, value any) Attr { return attr(key, value) }

// ID sets the id attribute.
func ID(id string) Attr { return attr("id", id) }

// Class sets the class attribute, joining multiple classes with spaces.
func Class(classes ...string) Attr { return attr("class", strings.Join(classes, " ")) }

// Data creates a data-* attribute.
// Example: Data("id", "123") → data-id="123"
func Data(key, value string) Attr { return attr("data-"+key, value) }

// Role sets the role attribute.
func Role(role string) Attr { return attr("role", role) }

// AriaBusy sets the aria-busy attribute.
func AriaBusy(busy bool) Attr { return attr("aria-busy", busy) }

// Hidden sets the hidden attribute.
func Hidden() Attr { return attr("hidden", true) }

// TitleAttr sets the title attribute (named to avoid conflict with the head title).
func TitleAttr(title string) Attr { return attr("title", title) }

func Href(url string) Attr      { return attr("href", url) }
func Src(url string) Attr       { return attr("src", url) }
func Alt(text string) Attr      { return attr("alt", text) }
func Rel(rel string) Attr       { return attr("rel", rel) }
func Type(t string) Attr        { return attr("type", t) }
func Name(name string) Attr     { return attr("name", name) }
func Value(value string) Attr   { return attr("value", value) }
func Disabled() Attr            { return attr("disabled", true) }
func Width(w int) Attr          { return attr("width", w) }
func Height(h int) Attr         { return attr("height", h) }
func Loading(mode string) Attr  { return attr("loading", mode) }
func Method(method string) Attr { return attr("method", method) }
func Action(url string) Attr    { return attr("action", url) }
func Placeholder(s string) Attr { return attr("placeholder", s) }
