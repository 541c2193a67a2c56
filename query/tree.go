package query

// Quantifier keys used inside a to-many relation filter
const (
	Every = "every"
	Some  = "some"
	None  = "none"
)

// SelectKey wraps the nested selection of a joined entity
const SelectKey = "select"

// Node is either a leaf carrying a value or a group of named children.
// Children keep their insertion order so rendered SQL is deterministic.
type Node struct {
	leaf     bool
	value    any
	keys     []string
	children map[string]*Node
}

// Leaf returns a node holding v
func Leaf(v any) *Node {
	return &Node{leaf: true, value: v}
}

// Group returns an empty group node
func Group() *Node {
	return &Node{children: make(map[string]*Node)}
}

// Path nests n under keys, outermost first
func Path(n *Node, keys ...string) *Node {
	for i := len(keys) - 1; i >= 0; i-- {
		g := Group()
		g.keys = []string{keys[i]}
		g.children[keys[i]] = n
		n = g
	}
	return n
}

// IsLeaf reports whether the node carries a value
func (n *Node) IsLeaf() bool {
	return n != nil && n.leaf
}

// Value returns the leaf value, nil for groups
func (n *Node) Value() any {
	if n == nil || !n.leaf {
		return nil
	}
	return n.value
}

// Keys returns the child keys in insertion order
func (n *Node) Keys() []string {
	if n == nil || n.leaf {
		return nil
	}
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

// Child returns the child stored under key, nil when absent
func (n *Node) Child(key string) *Node {
	if n == nil || n.leaf {
		return nil
	}
	return n.children[key]
}

// Len returns the number of children
func (n *Node) Len() int {
	if n == nil || n.leaf {
		return 0
	}
	return len(n.keys)
}

// Set stores child under key, merging with any existing child
func (n *Node) Set(key string, child *Node) {
	if n.leaf {
		panic("query: Set on a leaf node")
	}
	existing, ok := n.children[key]
	if !ok {
		n.keys = append(n.keys, key)
		n.children[key] = child
		return
	}
	n.children[key] = Merge(existing, child)
}

// Merge combines two nodes without losing nested selections or predicates:
// groups merge key by key, an existing group is never replaced by a leaf,
// a leaf is replaced by a group, and between two leaves the later one wins.
func Merge(dst, src *Node) *Node {
	switch {
	case dst == nil:
		return src
	case src == nil:
		return dst
	case !dst.leaf && !src.leaf:
		for _, k := range src.keys {
			dst.Set(k, src.children[k])
		}
		return dst
	case !dst.leaf && src.leaf:
		return dst
	default:
		return src
	}
}

// Map renders the tree as plain maps, the shape logged for a served search
func (n *Node) Map() any {
	if n == nil {
		return nil
	}
	if n.leaf {
		if c, ok := n.value.(Condition); ok {
			return c.Map()
		}
		return n.value
	}
	out := make(map[string]any, len(n.keys))
	for _, k := range n.keys {
		out[k] = n.children[k].Map()
	}
	return out
}

// Condition is a filter predicate on one scalar field
type Condition struct {
	Op          Operator
	Value       any
	Insensitive bool
}

// Map renders the predicate as {op: value[, mode: insensitive]}
func (c Condition) Map() map[string]any {
	m := map[string]any{string(c.Op): c.Value}
	if c.Insensitive {
		m["mode"] = "insensitive"
	}
	return m
}
