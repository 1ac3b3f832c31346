// Package hit builds input trees in the block syntax read by MOOSE-based
// applications and flattens them into command-line overrides.
package hit

import (
	"fmt"
	"strconv"
	"strings"
)

// Param is a key/value pair inside a block. Value is already formatted.
type Param struct {
	Key   string
	Value string
}

// Node is a block of the input tree. The root node has an empty name.
type Node struct {
	Name     string
	params   []Param
	children []*Node
}

// New returns an empty root node.
func New() *Node { return &Node{} }

// Append adds a child block and returns it.
func (n *Node) Append(name string, params ...Param) *Node {
	child := &Node{Name: name}
	for _, p := range params {
		child.Set(p.Key, p.Value)
	}
	n.children = append(n.children, child)
	return child
}

// Set adds or replaces a parameter, preserving insertion order.
func (n *Node) Set(key, value string) *Node {
	for i := range n.params {
		if n.params[i].Key == key {
			n.params[i].Value = value
			return n
		}
	}
	n.params = append(n.params, Param{Key: key, Value: value})
	return n
}

// Child returns the first child block with the given name.
func (n *Node) Child(name string) (*Node, bool) {
	for _, c := range n.children {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Param returns a parameter value.
func (n *Node) Param(key string) (string, bool) {
	for _, p := range n.params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Children returns the child blocks in insertion order.
func (n *Node) Children() []*Node { return n.children }

// Params returns the parameters in insertion order.
func (n *Node) Params() []Param { return n.params }

// Render writes the tree in block syntax.
func (n *Node) Render() string {
	var b strings.Builder
	for _, c := range n.children {
		c.render(&b, 0)
	}
	return b.String()
}

func (n *Node) render(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s[%s]\n", indent, n.Name)
	for _, p := range n.params {
		fmt.Fprintf(b, "%s  %s = %s\n", indent, p.Key, p.Value)
	}
	for _, c := range n.children {
		c.render(b, depth+1)
	}
	fmt.Fprintf(b, "%s[]\n", indent)
}

// Args flattens the tree into "Block/Sub/key=value" overrides, depth first.
func (n *Node) Args() []string {
	var out []string
	for _, c := range n.children {
		c.args("", &out)
	}
	return out
}

func (n *Node) args(prefix string, out *[]string) {
	path := n.Name
	if prefix != "" {
		path = prefix + "/" + n.Name
	}
	for _, p := range n.params {
		*out = append(*out, path+"/"+p.Key+"="+p.Value)
	}
	for _, c := range n.children {
		c.args(path, out)
	}
}

// Quote renders a list as a single-quoted, space-separated value.
func Quote(items ...string) string {
	return "'" + strings.Join(items, " ") + "'"
}

// Reals renders floats as a quoted list using the shortest exact form.
func Reals(values []float64) string {
	items := make([]string, len(values))
	for i, v := range values {
		items[i] = FormatReal(v)
	}
	return Quote(items...)
}

// FormatReal renders one float using the shortest exact form.
func FormatReal(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Int renders an integer value.
func Int[T ~int | ~int32 | ~int64](v T) string {
	return strconv.FormatInt(int64(v), 10)
}

// ParseOverride splits "Block/Sub/key=value" into its path and value.
func ParseOverride(arg string) (path, value string, ok bool) {
	path, value, ok = strings.Cut(arg, "=")
	if !ok || !strings.Contains(path, "/") {
		return "", "", false
	}
	return path, value, true
}

// Unquote splits a quoted list value back into its items.
func Unquote(value string) []string {
	value = strings.TrimSpace(value)
	if len(value) >= 2 && (value[0] == '\'' || value[0] == '"') && value[len(value)-1] == value[0] {
		value = value[1 : len(value)-1]
	}
	return strings.Fields(value)
}
