package state

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyprpal/autotile/internal/layout"
)

// Node types reported by i3 and sway.
const (
	TypeRoot        = "root"
	TypeOutput      = "output"
	TypeWorkspace   = "workspace"
	TypeCon         = "con"
	TypeFloatingCon = "floating_con"
	TypeDockarea    = "dockarea"
)

// NodeRef indexes a node within its Tree. NoNode marks an absent link.
type NodeRef int

const NoNode NodeRef = -1

// Node describes a single container of a tree snapshot.
type Node struct {
	ID             int64
	Type           string
	Name           string
	Layout         string
	Rect           layout.Rect
	Focused        bool
	FullscreenMode int
	// Floating is normalized across dialects; see floatingState.
	Floating bool
	// Num is the workspace number; only meaningful for workspace nodes.
	Num    int
	Parent NodeRef
}

// Tree is an arena of nodes built from one GET_TREE reply, in depth-first
// pre-order. Parent links are indexes into the arena.
type Tree struct {
	Nodes []Node
}

type rawNode struct {
	ID             int64       `json:"id"`
	Type           string      `json:"type"`
	Name           string      `json:"name"`
	Layout         string      `json:"layout"`
	Rect           layout.Rect `json:"rect"`
	Focused        bool        `json:"focused"`
	FullscreenMode int         `json:"fullscreen_mode"`
	Floating       *string     `json:"floating"`
	Num            *int        `json:"num"`
	Nodes          []rawNode   `json:"nodes"`
	FloatingNodes  []rawNode   `json:"floating_nodes"`
}

// DecodeTree parses a layout tree payload into an arena snapshot.
func DecodeTree(data []byte) (*Tree, error) {
	var root rawNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	if root.Type == "" && root.ID == 0 {
		return nil, fmt.Errorf("decode tree: payload is not a container")
	}
	t := &Tree{}
	t.add(&root, NoNode)
	return t, nil
}

func (t *Tree) add(raw *rawNode, parent NodeRef) {
	ref := NodeRef(len(t.Nodes))
	n := Node{
		ID:             raw.ID,
		Type:           raw.Type,
		Name:           raw.Name,
		Layout:         raw.Layout,
		Rect:           raw.Rect,
		Focused:        raw.Focused,
		FullscreenMode: raw.FullscreenMode,
		Floating:       floatingState(raw.Type, raw.Floating),
		Parent:         parent,
	}
	if raw.Num != nil {
		n.Num = *raw.Num
	}
	t.Nodes = append(t.Nodes, n)
	for i := range raw.Nodes {
		t.add(&raw.Nodes[i], ref)
	}
	for i := range raw.FloatingNodes {
		t.add(&raw.FloatingNodes[i], ref)
	}
}

// floatingState folds the i3 floating string ("user_on", "auto_off", ...) and
// the sway floating_con node type into one flag.
func floatingState(nodeType string, floating *string) bool {
	if floating != nil && *floating != "" {
		return strings.Contains(*floating, "_on")
	}
	return nodeType == TypeFloatingCon
}

// Node returns the node at ref, or nil when ref is out of range.
func (t *Tree) Node(ref NodeRef) *Node {
	if t == nil || ref < 0 || int(ref) >= len(t.Nodes) {
		return nil
	}
	return &t.Nodes[ref]
}

// Root returns the root reference, or NoNode for an empty tree.
func (t *Tree) Root() NodeRef {
	if t == nil || len(t.Nodes) == 0 {
		return NoNode
	}
	return 0
}

// FindFocused returns the first focused node in depth-first order.
// A tree without a focused node is valid, e.g. while switching to an empty workspace.
func (t *Tree) FindFocused() (NodeRef, bool) {
	if t == nil {
		return NoNode, false
	}
	for i := range t.Nodes {
		if t.Nodes[i].Focused {
			return NodeRef(i), true
		}
	}
	return NoNode, false
}

// FindByID returns the node with the given container id.
func (t *Tree) FindByID(id int64) (NodeRef, bool) {
	if t == nil {
		return NoNode, false
	}
	for i := range t.Nodes {
		if t.Nodes[i].ID == id {
			return NodeRef(i), true
		}
	}
	return NoNode, false
}

// Parent returns the parent of ref.
func (t *Tree) Parent(ref NodeRef) (NodeRef, bool) {
	n := t.Node(ref)
	if n == nil || n.Parent == NoNode {
		return NoNode, false
	}
	return n.Parent, true
}

// Workspace walks the ancestors of ref, starting with ref itself, up to the
// first workspace node.
func (t *Tree) Workspace(ref NodeRef) (NodeRef, bool) {
	for cur := ref; cur != NoNode; {
		n := t.Node(cur)
		if n == nil {
			break
		}
		if n.Type == TypeWorkspace {
			return cur, true
		}
		cur = n.Parent
	}
	return NoNode, false
}

// Subject builds the decision input for the node at ref.
func (t *Tree) Subject(ref NodeRef) layout.Subject {
	n := t.Node(ref)
	if n == nil {
		return layout.Subject{}
	}
	s := layout.Subject{
		Rect:           n.Rect,
		Floating:       n.Floating,
		FullscreenMode: n.FullscreenMode,
	}
	if p, ok := t.Parent(ref); ok {
		s.HasParent = true
		s.ParentLayout = t.Node(p).Layout
	}
	if ws, ok := t.Workspace(ref); ok {
		s.HasWorkspace = true
		s.WorkspaceNum = t.Node(ws).Num
	}
	return s
}
