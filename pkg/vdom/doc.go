// Package vdom provides the static node tree applications render from.
//
// Trees are built with variadic factory functions:
//
//	Div(Class("card"), ID("main"),
//	    H1(Text("Title")),
//	    Split("comments", P(Text("Loading comments..."))),
//	)
//
// A Split node marks a code-split boundary. The renderer asks the request's
// split registry for its markup and falls back to the node's children while
// the split is still loading.
package vdom
