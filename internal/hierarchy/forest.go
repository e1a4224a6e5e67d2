package hierarchy

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrNodeMissing indicates a referenced node is not part of the forest.
	ErrNodeMissing = errors.New("hierarchy: node not found")
	// ErrCycle signals an attach that would make a node its own ancestor.
	ErrCycle = errors.New("hierarchy: attach would create a cycle")
	// ErrCrossOrg signals an attach across organisation boundaries.
	ErrCrossOrg = errors.New("hierarchy: nodes belong to different organisations")
	// ErrHasChildren blocks a non-cascading detach of an internal node.
	ErrHasChildren = errors.New("hierarchy: node has children")
)

// Node is a lightweight snapshot of a hierarchy row. Nodes reference each
// other by ID only; neither parent nor child owns the other.
type Node struct {
	ID        string
	OrgID     string
	ParentID  *string
	CreatedAt time.Time
}

// Forest holds an org-scoped collection of nodes keyed by ID. It is built
// from a consistent read of the backing store and operated on in memory; the
// caller persists the resulting mutations.
type Forest struct {
	nodes    map[string]Node
	children map[string][]string
}

// NewForest indexes the supplied nodes. Duplicate IDs are rejected; a parent
// reference pointing outside the set is rejected so traversals cannot dangle.
func NewForest(nodes []Node) (*Forest, error) {
	f := &Forest{
		nodes:    make(map[string]Node, len(nodes)),
		children: make(map[string][]string),
	}

	for _, node := range nodes {
		if node.ID == "" {
			return nil, errors.New("hierarchy: node id is required")
		}
		if _, exists := f.nodes[node.ID]; exists {
			return nil, fmt.Errorf("hierarchy: duplicate node id %s", node.ID)
		}
		f.nodes[node.ID] = node
	}

	for _, node := range f.nodes {
		if node.ParentID == nil {
			continue
		}
		if _, ok := f.nodes[*node.ParentID]; !ok {
			return nil, fmt.Errorf("hierarchy: node %s references missing parent %s", node.ID, *node.ParentID)
		}
		f.children[*node.ParentID] = append(f.children[*node.ParentID], node.ID)
	}

	for parentID := range f.children {
		f.sortChildren(parentID)
	}

	return f, nil
}

// sortChildren orders a child list by creation time, falling back to ID so the
// traversal order is total and rendered trees do not jitter between loads.
func (f *Forest) sortChildren(parentID string) {
	ids := f.children[parentID]
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := f.nodes[ids[i]], f.nodes[ids[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	f.children[parentID] = ids
}

// CanAttach verifies that reparenting child under parent is legal: both nodes
// exist, share an organisation, and the move introduces no cycle.
func (f *Forest) CanAttach(childID, parentID string) error {
	child, ok := f.nodes[childID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeMissing, childID)
	}
	parent, ok := f.nodes[parentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeMissing, parentID)
	}

	if child.OrgID != parent.OrgID {
		return ErrCrossOrg
	}

	if childID == parentID {
		return ErrCycle
	}

	// Walk up from the target parent; finding the child means the child is
	// already an ancestor and the attach would close a loop.
	for current := &parent; current.ParentID != nil; {
		if *current.ParentID == childID {
			return ErrCycle
		}
		next, ok := f.nodes[*current.ParentID]
		if !ok {
			break
		}
		current = &next
	}

	return nil
}

// Attach reparents child under parent after validation.
func (f *Forest) Attach(childID, parentID string) error {
	if err := f.CanAttach(childID, parentID); err != nil {
		return err
	}

	child := f.nodes[childID]
	if child.ParentID != nil {
		f.removeChild(*child.ParentID, childID)
	}

	child.ParentID = &parentID
	f.nodes[childID] = child
	f.children[parentID] = append(f.children[parentID], childID)
	f.sortChildren(parentID)
	return nil
}

// DetachOrder computes the removal order for a node. Without cascade, a node
// with children is refused. With cascade the full subtree is returned in
// post-order: children always precede their parent, so deleting rows in the
// returned order never leaves a dangling parent reference.
func (f *Forest) DetachOrder(nodeID string, cascade bool) ([]string, error) {
	if _, ok := f.nodes[nodeID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeMissing, nodeID)
	}

	if len(f.children[nodeID]) > 0 && !cascade {
		return nil, ErrHasChildren
	}

	var order []string
	var walk func(string)
	walk = func(id string) {
		for _, childID := range f.children[id] {
			walk(childID)
		}
		order = append(order, id)
	}
	walk(nodeID)
	return order, nil
}

// Detach removes the node (and, when cascading, its subtree) from the forest
// and returns the IDs in deletion order.
func (f *Forest) Detach(nodeID string, cascade bool) ([]string, error) {
	order, err := f.DetachOrder(nodeID, cascade)
	if err != nil {
		return nil, err
	}

	for _, id := range order {
		node := f.nodes[id]
		if node.ParentID != nil {
			f.removeChild(*node.ParentID, id)
		}
		delete(f.children, id)
		delete(f.nodes, id)
	}
	return order, nil
}

// Descendants returns the subtree rooted at the node, excluding the node
// itself, in pre-order with siblings ordered by creation time.
func (f *Forest) Descendants(nodeID string) ([]Node, error) {
	if _, ok := f.nodes[nodeID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeMissing, nodeID)
	}

	var out []Node
	var walk func(string)
	walk = func(id string) {
		for _, childID := range f.children[id] {
			out = append(out, f.nodes[childID])
			walk(childID)
		}
	}
	walk(nodeID)
	return out, nil
}

// Roots returns the forest's parentless nodes ordered by creation time.
func (f *Forest) Roots() []Node {
	var roots []Node
	for _, node := range f.nodes {
		if node.ParentID == nil {
			roots = append(roots, node)
		}
	}
	sort.SliceStable(roots, func(i, j int) bool {
		if !roots[i].CreatedAt.Equal(roots[j].CreatedAt) {
			return roots[i].CreatedAt.Before(roots[j].CreatedAt)
		}
		return roots[i].ID < roots[j].ID
	})
	return roots
}

// Get returns the node snapshot when present.
func (f *Forest) Get(nodeID string) (Node, bool) {
	node, ok := f.nodes[nodeID]
	return node, ok
}

func (f *Forest) removeChild(parentID, childID string) {
	ids := f.children[parentID]
	for i, id := range ids {
		if id == childID {
			f.children[parentID] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}
