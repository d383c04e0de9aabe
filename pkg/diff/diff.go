// Package diff computes the feature-level difference between two revision
// trees. Identical sub-tree identifiers are skipped without loading them,
// which keeps diffs cheap under structural sharing.
package diff

import (
	"fmt"
	"sort"

	"github.com/geovault/geovault/pkg/object"
)

// ChangeType classifies what happened to a feature path between two trees.
type ChangeType int

const (
	Added   ChangeType = iota // Path exists only in the new tree.
	Removed                   // Path exists only in the old tree.
	Changed                   // Path exists in both with differing content.
)

// String returns the porcelain letter for the change type.
func (t ChangeType) String() string {
	switch t {
	case Added:
		return "A"
	case Removed:
		return "R"
	case Changed:
		return "M"
	default:
		return "?"
	}
}

// Change records one feature-level difference.
type Change struct {
	Path string
	Type ChangeType
	Old  *object.Node // nil for Added
	New  *object.Node // nil for Removed
}

// Diff computes the changes between the trees identified by a and b,
// ordered by path ascending. Equal identifiers short-circuit to an empty
// result without touching the store, so placeholder ids are fine.
func Diff(store object.Store, a, b object.Hash) ([]Change, error) {
	if a == b {
		return nil, nil
	}
	var out []Change
	if err := diffLevel(store, a, b, "", &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func loadLevel(store object.Store, id object.Hash) (*object.Tree, error) {
	if id.IsNull() {
		return &object.Tree{}, nil
	}
	return object.GetTree(store, id)
}

func diffLevel(store object.Store, aID, bID object.Hash, prefix string, out *[]Change) error {
	if aID == bID {
		return nil
	}
	aTree, err := loadLevel(store, aID)
	if err != nil {
		return fmt.Errorf("diff: load %s: %w", aID, err)
	}
	bTree, err := loadLevel(store, bID)
	if err != nil {
		return fmt.Errorf("diff: load %s: %w", bID, err)
	}

	// Two bucketed levels compare bucket-by-bucket; matching bucket ids
	// short-circuit exactly like matching sub-tree ids.
	if aTree.IsBucketed() && bTree.IsBucketed() {
		for idx := 0; idx < object.BucketCount; idx++ {
			aBucket := aTree.Buckets[idx]
			bBucket := bTree.Buckets[idx]
			if aBucket == bBucket {
				continue
			}
			if err := diffLevel(store, aBucket, bBucket, prefix, out); err != nil {
				return err
			}
		}
		return nil
	}

	aNodes, err := levelNodes(store, aTree)
	if err != nil {
		return err
	}
	bNodes, err := levelNodes(store, bTree)
	if err != nil {
		return err
	}
	return diffNodes(store, aNodes, bNodes, prefix, out)
}

// levelNodes flattens one level's logical entries through any buckets,
// sorted by name.
func levelNodes(store object.Store, t *object.Tree) ([]object.Node, error) {
	if !t.IsBucketed() {
		return t.Nodes, nil
	}
	// Re-flatten via the builder helper path: collect bucket children.
	var nodes []object.Node
	for idx := 0; idx < object.BucketCount; idx++ {
		id, ok := t.Buckets[idx]
		if !ok {
			continue
		}
		child, err := object.GetTree(store, id)
		if err != nil {
			return nil, fmt.Errorf("diff: load bucket %d: %w", idx, err)
		}
		childNodes, err := levelNodes(store, child)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, childNodes...)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

func diffNodes(store object.Store, aNodes, bNodes []object.Node, prefix string, out *[]Change) error {
	i, j := 0, 0
	for i < len(aNodes) || j < len(bNodes) {
		switch {
		case j >= len(bNodes) || (i < len(aNodes) && aNodes[i].Name < bNodes[j].Name):
			if err := expandSide(store, aNodes[i], prefix, Removed, out); err != nil {
				return err
			}
			i++
		case i >= len(aNodes) || bNodes[j].Name < aNodes[i].Name:
			if err := expandSide(store, bNodes[j], prefix, Added, out); err != nil {
				return err
			}
			j++
		default:
			if err := diffMatched(store, aNodes[i], bNodes[j], prefix, out); err != nil {
				return err
			}
			i++
			j++
		}
	}
	return nil
}

func diffMatched(store object.Store, a, b object.Node, prefix string, out *[]Change) error {
	if a.ID == b.ID && a.Metadata == b.Metadata && a.Kind == b.Kind {
		return nil
	}
	path := prefix + a.Name
	switch {
	case a.Kind == object.TypeTree && b.Kind == object.TypeTree:
		return diffLevel(store, a.ID, b.ID, path+"/", out)
	case a.Kind == object.TypeFeature && b.Kind == object.TypeFeature:
		oldNode, newNode := a, b
		*out = append(*out, Change{Path: path, Type: Changed, Old: &oldNode, New: &newNode})
		return nil
	default:
		// A tree replaced by a feature (or the reverse): every old leaf is
		// removed and every new leaf is added.
		if err := expandSide(store, a, prefix, Removed, out); err != nil {
			return err
		}
		return expandSide(store, b, prefix, Added, out)
	}
}

// expandSide emits one change per leaf feature under a one-sided node.
func expandSide(store object.Store, n object.Node, prefix string, t ChangeType, out *[]Change) error {
	path := prefix + n.Name
	if n.Kind == object.TypeFeature {
		node := n
		c := Change{Path: path, Type: t}
		if t == Removed {
			c.Old = &node
		} else {
			c.New = &node
		}
		*out = append(*out, c)
		return nil
	}
	children, err := object.LoadTreeEntries(store, n.ID)
	if err != nil {
		return fmt.Errorf("diff: expand %q: %w", path, err)
	}
	for _, child := range children {
		if err := expandSide(store, child, path+"/", t, out); err != nil {
			return err
		}
	}
	return nil
}
