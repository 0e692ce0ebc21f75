package vdom

// VKind is the node type discriminator.
type VKind uint8

const (
	KindElement   VKind = iota // <div>, <button>, etc.
	KindText                   // Plain text node
	KindFragment               // Grouping without wrapper
	KindComponent              // Nested component
	KindRaw                    // Raw HTML (dangerous)
	KindSplit                  // Code-split boundary
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindFragment:
		return "Fragment"
	case KindComponent:
		return "Component"
	case KindRaw:
		return "Raw"
	case KindSplit:
		return "Split"
	default:
		return "Unknown"
	}
}

// VNode is a node of a render tree.
type VNode struct {
	Kind     VKind     // Node type
	Tag      string    // Element tag name (e.g., "div")
	Props    Props     // Attributes
	Children []*VNode  // Child nodes, or the fallback of a split
	Text     string    // For KindText and KindRaw
	Comp     Component // For KindComponent
	SplitID  string    // For KindSplit
}

// Props holds element attributes.
type Props map[string]any

// Attr represents a single attribute.
type Attr struct {
	Key   string
	Value any
}

// IsEmpty returns true if this is an empty/nil attribute.
func (a Attr) IsEmpty() bool {
	return a.Key == ""
}

// Component is anything that can render to a VNode.
type Component interface {
	Render() *VNode
}

// FuncComponent wraps a render function.
type FuncComponent struct {
	render func() *VNode
}

// Render implements Component.
func (f *FuncComponent) Render() *VNode {
	return f.render()
}

// Func creates a component from a render function.
func Func(render func() *VNode) Component {
	return &FuncComponent{render: render}
}

// Walk calls fn for v and each descendant in document order. Component
// nodes are not expanded. Returning false from fn skips the node's children.
func Walk(v *VNode, fn func(*VNode) bool) {
	if v == nil || !fn(v) {
		return
	}
	for _, c := range v.Children {
		Walk(c, fn)
	}
}

// SplitIDs returns the ids of the split boundaries in v in document order,
// without duplicates.
func SplitIDs(v *VNode) []string {
	seen := make(map[string]bool)
	var ids []string
	Walk(v, func(n *VNode) bool {
		if n.Kind == KindSplit && !seen[n.SplitID] {
			seen[n.SplitID] = true
			ids = append(ids, n.SplitID)
		}
		return true
	})
	return ids
}
