package render

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/vango-dev/splitrender/pkg/splits"
	"github.com/vango-dev/splitrender/pkg/ssr"
	"github.com/vango-dev/splitrender/pkg/vdom"
)

// RendererConfig configures the HTML renderer.
type RendererConfig struct {
	// Pretty enables pretty-printed HTML output with indentation.
	// Should only be used in development as it increases output size.
	Pretty bool

	// Indent is the string used for each indentation level in pretty mode.
	// Defaults to two spaces if not specified.
	Indent string

	// MarkSplits wraps every split boundary in <!--split:ID--> and
	// <!--/split:ID--> comments so the client can locate it.
	MarkSplits bool
}

// Renderer renders VNode trees to HTML. It holds no per-request state and
// is safe for concurrent use.
type Renderer struct {
	config RendererConfig
}

// NewRenderer creates a new Renderer with the given configuration.
func NewRenderer(config RendererConfig) *Renderer {
	if config.Indent == "" {
		config.Indent = "  "
	}
	return &Renderer{config: config}
}

// Tree adapts a tree-building function to ssr.Renderable. The function is
// called once per render round, so it may branch on the round's state.
// The result serves both as an application and as a split module.
func (r *Renderer) Tree(build func(rc *ssr.RenderContext) *vdom.VNode) ssr.Renderable {
	return ssr.RenderFunc(func(rc *ssr.RenderContext) (string, error) {
		return r.RenderToString(rc, build(rc))
	})
}

// RenderToString renders a VNode tree to an HTML string. rc may be nil, in
// which case every split renders its fallback.
func (r *Renderer) RenderToString(rc *ssr.RenderContext, node *vdom.VNode) (string, error) {
	var b strings.Builder
	if err := r.RenderToWriter(&b, rc, node); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RenderToWriter streams a VNode tree to the given writer.
func (r *Renderer) RenderToWriter(w io.Writer, rc *ssr.RenderContext, node *vdom.VNode) error {
	ew := &errWriter{w: w}
	if err := r.renderNode(ew, rc, node, 0); err != nil {
		return err
	}
	return ew.err
}

// errWriter remembers the first write error and drops later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) WriteString(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, s)
}

// renderNode dispatches rendering based on node kind.
func (r *Renderer) renderNode(w *errWriter, rc *ssr.RenderContext, node *vdom.VNode, depth int) error {
	if node == nil {
		return nil
	}

	switch node.Kind {
	case vdom.KindElement:
		return r.renderElement(w, rc, node, depth)
	case vdom.KindText:
		w.WriteString(EscapeHTML(node.Text))
	case vdom.KindRaw:
		w.WriteString(node.Text)
	case vdom.KindFragment:
		return r.renderChildren(w, rc, node.Children, depth)
	case vdom.KindComponent:
		if node.Comp != nil {
			return r.renderNode(w, rc, node.Comp.Render(), depth)
		}
	case vdom.KindSplit:
		return r.renderSplit(w, rc, node, depth)
	default:
		return fmt.Errorf("render: unknown node kind %d", node.Kind)
	}
	return nil
}

func (r *Renderer) renderChildren(w *errWriter, rc *ssr.RenderContext, children []*vdom.VNode, depth int) error {
	for _, child := range children {
		if err := r.renderNode(w, rc, child, depth); err != nil {
			return err
		}
	}
	return nil
}

// renderSplit writes the frozen markup of a ready split, or the node's
// fallback children while the split is pending.
func (r *Renderer) renderSplit(w *errWriter, rc *ssr.RenderContext, node *vdom.VNode, depth int) error {
	if !splits.ValidID(node.SplitID) {
		return fmt.Errorf("render: invalid split id %q", node.SplitID)
	}
	var split ssr.ResolvedSplit
	if rc != nil {
		s, err := rc.Split(node.SplitID)
		if err != nil {
			return err
		}
		split = s
	}

	if r.config.MarkSplits {
		w.WriteString("<!--split:" + node.SplitID + "-->")
	}
	if split.Ready {
		w.WriteString(split.Markup)
	} else if err := r.renderChildren(w, rc, node.Children, depth); err != nil {
		return err
	}
	if r.config.MarkSplits {
		w.WriteString("<!--/split:" + node.SplitID + "-->")
	}
	return nil
}

// renderElement renders an HTML element with its attributes and children.
func (r *Renderer) renderElement(w *errWriter, rc *ssr.RenderContext, node *vdom.VNode, depth int) error {
	tag := node.Tag

	if r.config.Pretty && depth > 0 {
		r.writeIndent(w, depth)
	}

	w.WriteString("<" + tag)
	r.renderAttributes(w, node)
	w.WriteString(">")

	if vdom.IsVoidElement(tag) {
		if r.config.Pretty {
			w.WriteString("\n")
		}
		return nil
	}

	block := len(node.Children) > 0 && !isInlineElement(tag)
	if r.config.Pretty && block {
		w.WriteString("\n")
	}
	for _, child := range node.Children {
		if err := r.renderNode(w, rc, child, depth+1); err != nil {
			return err
		}
	}
	if r.config.Pretty && block {
		r.writeIndent(w, depth)
	}

	w.WriteString("</" + tag + ">")
	if r.config.Pretty {
		w.WriteString("\n")
	}
	return nil
}

// renderAttributes renders attributes in sorted order for deterministic output.
func (r *Renderer) renderAttributes(w *errWriter, node *vdom.VNode) {
	keys := make([]string, 0, len(node.Props))
	for key := range node.Props {
		if !strings.HasPrefix(key, "_") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := node.Props[key]

		if isBooleanAttr(key) {
			if b, ok := value.(bool); ok {
				if b {
					w.WriteString(" " + key)
				}
				continue
			}
		}

		if s := attrToString(value); s != "" {
			w.WriteString(" " + key + `="` + EscapeAttr(s) + `"`)
		}
	}
}

// attrToString converts an attribute value to a string.
func attrToString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// writeIndent writes indentation for pretty printing.
func (r *Renderer) writeIndent(w *errWriter, depth int) {
	w.WriteString(strings.Repeat(r.config.Indent, depth))
}
