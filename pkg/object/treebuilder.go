package object

import (
	"fmt"
	"sort"
	"strings"
)

// TreeBuilder assembles one logical tree level and persists it, sharding
// into buckets once the entry count exceeds NormalizedSizeLimit. The
// resulting identifier depends only on the final entry set, never on the
// order entries were added.
type TreeBuilder struct {
	store   Store
	entries map[string]Node
}

// NewTreeBuilder creates an empty builder writing to the given store.
func NewTreeBuilder(store Store) *TreeBuilder {
	return &TreeBuilder{store: store, entries: make(map[string]Node)}
}

// NewTreeBuilderFrom creates a builder pre-populated with the logical
// entries of an existing tree level, expanded through its buckets. A null
// root yields an empty builder.
func NewTreeBuilderFrom(store Store, root Hash) (*TreeBuilder, error) {
	b := NewTreeBuilder(store)
	if root.IsNull() || root == EmptyTreeHash() {
		return b, nil
	}
	nodes, err := LoadTreeEntries(store, root)
	if err != nil {
		return nil, fmt.Errorf("tree builder from %s: %w", root, err)
	}
	for _, n := range nodes {
		b.entries[n.Name] = n
	}
	return b, nil
}

// Put adds or replaces the entry with the node's name.
func (b *TreeBuilder) Put(n Node) {
	b.entries[n.Name] = n
}

// Remove drops the named entry. Removing an absent name is a no-op.
func (b *TreeBuilder) Remove(name string) {
	delete(b.entries, name)
}

// Get returns the current entry for name, if any.
func (b *TreeBuilder) Get(name string) (Node, bool) {
	n, ok := b.entries[name]
	return n, ok
}

// Len returns the number of entries currently held.
func (b *TreeBuilder) Len() int { return len(b.entries) }

// Build writes the level (and any buckets) to the store and returns the
// root identifier.
func (b *TreeBuilder) Build() (Hash, error) {
	nodes := make([]Node, 0, len(b.entries))
	for _, n := range b.entries {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	h, _, err := b.buildLevel(nodes, 0)
	return h, err
}

// buildLevel persists one level, returning its id and feature count.
func (b *TreeBuilder) buildLevel(nodes []Node, depth int) (Hash, int64, error) {
	count, err := b.countFeatures(nodes)
	if err != nil {
		return NullHash, 0, err
	}

	if len(nodes) <= NormalizedSizeLimit {
		t := &Tree{Count: count}
		if len(nodes) > 0 {
			t.Nodes = nodes
		}
		h, err := b.store.Put(t)
		if err != nil {
			return NullHash, 0, fmt.Errorf("build tree level: %w", err)
		}
		return h, count, nil
	}

	// Redistribute into hash-selected buckets. The grouping function
	// depends only on entry names, so any insertion order converges on
	// the same bucket layout.
	grouped := make(map[int][]Node)
	for _, n := range nodes {
		idx := bucketIndex(n.Name, depth)
		grouped[idx] = append(grouped[idx], n)
	}

	t := &Tree{Count: count, Buckets: make(map[int]Hash, len(grouped))}
	for idx, group := range grouped {
		childHash, _, err := b.buildLevel(group, depth+1)
		if err != nil {
			return NullHash, 0, err
		}
		t.Buckets[idx] = childHash
	}
	h, err := b.store.Put(t)
	if err != nil {
		return NullHash, 0, fmt.Errorf("build bucketed level: %w", err)
	}
	return h, count, nil
}

func (b *TreeBuilder) countFeatures(nodes []Node) (int64, error) {
	var count int64
	for _, n := range nodes {
		switch n.Kind {
		case TypeFeature:
			count++
		case TypeTree:
			child, err := GetTree(b.store, n.ID)
			if err != nil {
				return 0, fmt.Errorf("count subtree %q: %w", n.Name, err)
			}
			count += child.Count
		default:
			return 0, fmt.Errorf("count: node %q has kind %q", n.Name, n.Kind)
		}
	}
	return count, nil
}

var emptyTreeHash = HashOf(&Tree{})

// EmptyTreeHash returns the well-known identifier of the empty tree.
func EmptyTreeHash() Hash { return emptyTreeHash }

// LoadTreeEntries returns the logical entries of one tree level, expanding
// buckets transparently, sorted by name.
func LoadTreeEntries(store Store, h Hash) ([]Node, error) {
	t, err := GetTree(store, h)
	if err != nil {
		return nil, err
	}
	nodes, err := collectLevel(store, t)
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

func collectLevel(store Store, t *Tree) ([]Node, error) {
	if !t.IsBucketed() {
		return t.Nodes, nil
	}
	var nodes []Node
	for _, idx := range sortedBucketIndexes(t) {
		child, err := GetTree(store, t.Buckets[idx])
		if err != nil {
			return nil, fmt.Errorf("load bucket %d: %w", idx, err)
		}
		childNodes, err := collectLevel(store, child)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, childNodes...)
	}
	return nodes, nil
}

// FindEntry resolves a slash-separated path from the given root tree,
// descending buckets transparently. The boolean result reports whether the
// path exists.
func FindEntry(store Store, root Hash, path string) (Node, bool, error) {
	segments := strings.Split(path, "/")
	current := root
	for i, seg := range segments {
		n, ok, err := findInLevel(store, current, seg, 0)
		if err != nil || !ok {
			return Node{}, false, err
		}
		if i == len(segments)-1 {
			return n, true, nil
		}
		if n.Kind != TypeTree {
			return Node{}, false, nil
		}
		current = n.ID
	}
	return Node{}, false, nil
}

func findInLevel(store Store, treeID Hash, name string, depth int) (Node, bool, error) {
	if treeID.IsNull() {
		return Node{}, false, nil
	}
	t, err := GetTree(store, treeID)
	if err != nil {
		return Node{}, false, err
	}
	if t.IsBucketed() {
		child, ok := t.Buckets[bucketIndex(name, depth)]
		if !ok {
			return Node{}, false, nil
		}
		return findInLevel(store, child, name, depth+1)
	}
	i := sort.Search(len(t.Nodes), func(i int) bool { return t.Nodes[i].Name >= name })
	if i < len(t.Nodes) && t.Nodes[i].Name == name {
		return t.Nodes[i], true, nil
	}
	return Node{}, false, nil
}
