// Package render turns vdom trees into HTML for the SSR loop.
//
// A Renderer is stateless; every call receives the request's
// ssr.RenderContext so Split nodes can be resolved against the split
// registry of the current render loop:
//
//	app := render.NewRenderer(render.RendererConfig{}).Tree(func(rc *ssr.RenderContext) *vdom.VNode {
//	    return vdom.Main(
//	        vdom.H1(vdom.Text("Dashboard")),
//	        vdom.Split("charts", vdom.P(vdom.Text("Loading charts..."))),
//	    )
//	})
//
// Ready splits are written as their frozen markup. Pending and failed
// splits are written as the fallback children of the Split node.
//
// # Security
//
// All text content is escaped by default to prevent XSS attacks.
// Raw HTML can be inserted using KindRaw nodes, but should only be
// used with trusted content.
package render
