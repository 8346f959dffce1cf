// Package evaltree records one pattern's search as a tree of candidate
// identities annotated with verdicts.
//
// Nodes live in a single slice and refer to their children by index; a
// name-to-index table gives constant-time attach by parent identity.
package evaltree

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/flowprobe/flowprobe/internal/oracle"
)

var (
	ErrParentNotFound = errors.New("parent node not found")
	ErrDuplicateNode  = errors.New("node already exists")
	ErrNoRoot         = errors.New("tree has no root")
)

type Node struct {
	Name     string
	Verdicts oracle.Verdicts
	children []int
}

type Tree struct {
	nodes []Node
	index map[string]int
}

func New() *Tree {
	return &Tree{index: make(map[string]int)}
}

// SetRoot discards any existing nodes and starts the tree at name.
func (t *Tree) SetRoot(name string, v oracle.Verdicts) {
	t.nodes = []Node{{Name: name, Verdicts: v}}
	t.index = map[string]int{name: 0}
}

// AddChild attaches a new node under the node called parent.
func (t *Tree) AddChild(parent, child string, v oracle.Verdicts) error {
	p, ok := t.index[parent]
	if !ok {
		return fmt.Errorf("%w: %q", ErrParentNotFound, parent)
	}
	if _, exists := t.index[child]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, child)
	}

	id := len(t.nodes)
	t.nodes = append(t.nodes, Node{Name: child, Verdicts: v})
	t.nodes[p].children = append(t.nodes[p].children, id)
	t.index[child] = id
	return nil
}

// Len is the number of nodes, root included.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Get returns the node called name.
func (t *Tree) Get(name string) (Node, bool) {
	i, ok := t.index[name]
	if !ok {
		return Node{}, false
	}
	return t.nodes[i], true
}

// Children returns the names of name's children in insertion order.
func (t *Tree) Children(name string) []string {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(t.nodes[i].children))
	for _, c := range t.nodes[i].children {
		names = append(names, t.nodes[c].Name)
	}
	return names
}

// Walk visits every node depth-first, parents before children. parent is
// empty for the root.
func (t *Tree) Walk(fn func(n Node, parent string, level int)) {
	if len(t.nodes) == 0 {
		return
	}
	t.walk(0, "", 0, fn)
}

func (t *Tree) walk(i int, parent string, level int, fn func(Node, string, int)) {
	n := t.nodes[i]
	fn(n, parent, level)
	for _, c := range n.children {
		t.walk(c, n.Name, level+1, fn)
	}
}

// DOT renders the tree as a Graphviz digraph with nodes filled by verdict
// category.
func (t *Tree) DOT() string {
	var sb strings.Builder
	sb.WriteString("digraph Tree {\n")
	sb.WriteString("node [shape=ellipse];\n")
	for i, n := range t.nodes {
		fmt.Fprintf(&sb, "node%d [label=%q style=filled fillcolor=%s];\n",
			i, n.Name, n.Verdicts.Category().Color())
	}
	for i, n := range t.nodes {
		for _, c := range n.children {
			fmt.Fprintf(&sb, "node%d -> node%d;\n", i, c)
		}
	}
	sb.WriteString("}")
	return sb.String()
}

type jsonNode struct {
	Name     string          `json:"name"`
	Result   oracle.Verdicts `json:"result"`
	Category oracle.Category `json:"category"`
	Children []jsonNode      `json:"children"`
}

func (t *Tree) toJSON(i int) jsonNode {
	n := t.nodes[i]
	out := jsonNode{
		Name:     n.Name,
		Result:   n.Verdicts,
		Category: n.Verdicts.Category(),
		Children: make([]jsonNode, 0, len(n.children)),
	}
	for _, c := range n.children {
		out.Children = append(out.Children, t.toJSON(c))
	}
	return out
}

// MarshalJSON encodes the tree as nested nodes starting at the root.
func (t *Tree) MarshalJSON() ([]byte, error) {
	if len(t.nodes) == 0 {
		return nil, ErrNoRoot
	}
	return json.Marshal(t.toJSON(0))
}
