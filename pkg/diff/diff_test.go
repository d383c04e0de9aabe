package diff

import (
	"fmt"
	"testing"

	"github.com/geovault/geovault/pkg/object"
)

func putFeature(t *testing.T, store object.Store, v int64) object.Hash {
	t.Helper()
	h, err := store.Put(&object.Feature{Values: []object.Value{object.IntValue(v)}})
	if err != nil {
		t.Fatalf("put feature: %v", err)
	}
	return h
}

func buildTree(t *testing.T, store object.Store, entries map[string]int64) object.Hash {
	t.Helper()
	b := object.NewTreeBuilder(store)
	for name, v := range entries {
		b.Put(object.Node{Name: name, ID: putFeature(t, store, v), Kind: object.TypeFeature})
	}
	h, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return h
}

// buildNested wraps entries one directory deep under dir.
func buildNested(t *testing.T, store object.Store, dir string, entries map[string]int64) object.Hash {
	t.Helper()
	inner := buildTree(t, store, entries)
	b := object.NewTreeBuilder(store)
	b.Put(object.Node{Name: dir, ID: inner, Kind: object.TypeTree})
	h, err := b.Build()
	if err != nil {
		t.Fatalf("build outer: %v", err)
	}
	return h
}

func changeStrings(changes []Change) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Type.String() + " " + c.Path
	}
	return out
}

func assertChanges(t *testing.T, changes []Change, want ...string) {
	t.Helper()
	got := changeStrings(changes)
	if len(got) != len(want) {
		t.Fatalf("got %d changes %v, want %v", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("change %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDiffIdenticalShortCircuits(t *testing.T) {
	// Equal ids return immediately, so a store-less placeholder works.
	changes, err := Diff(nil, "deadbeef", "deadbeef")
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("identical ids produced %d changes", len(changes))
	}
}

func TestDiffAddRemoveModify(t *testing.T) {
	store := object.NewMemStore()

	a := buildTree(t, store, map[string]int64{"keep": 1, "gone": 2, "edit": 3})
	b := buildTree(t, store, map[string]int64{"keep": 1, "edit": 30, "new": 4})

	changes, err := Diff(store, a, b)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	assertChanges(t, changes, "M edit", "R gone", "A new")

	for _, c := range changes {
		switch c.Type {
		case Added:
			if c.Old != nil || c.New == nil {
				t.Errorf("added %q: old=%v new=%v", c.Path, c.Old, c.New)
			}
		case Removed:
			if c.Old == nil || c.New != nil {
				t.Errorf("removed %q: old=%v new=%v", c.Path, c.Old, c.New)
			}
		case Changed:
			if c.Old == nil || c.New == nil {
				t.Errorf("changed %q: old=%v new=%v", c.Path, c.Old, c.New)
			}
			if c.Old.ID == c.New.ID {
				t.Errorf("changed %q: ids equal", c.Path)
			}
		}
	}
}

func TestDiffAgainstEmptyTree(t *testing.T) {
	store := object.NewMemStore()
	a := buildTree(t, store, map[string]int64{"x": 1, "y": 2})

	changes, err := Diff(store, object.NullHash, a)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	assertChanges(t, changes, "A x", "A y")

	changes, err = Diff(store, a, object.NullHash)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	assertChanges(t, changes, "R x", "R y")
}

func TestDiffNestedPaths(t *testing.T) {
	store := object.NewMemStore()

	a := buildNested(t, store, "roads", map[string]int64{"r1": 1, "r2": 2})
	b := buildNested(t, store, "roads", map[string]int64{"r1": 1, "r2": 20, "r3": 3})

	changes, err := Diff(store, a, b)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	assertChanges(t, changes, "M roads/r2", "A roads/r3")
}

func TestDiffTreeReplacedByFeature(t *testing.T) {
	store := object.NewMemStore()

	a := buildNested(t, store, "spot", map[string]int64{"inner": 1})

	b := object.NewTreeBuilder(store)
	b.Put(object.Node{Name: "spot", ID: putFeature(t, store, 9), Kind: object.TypeFeature})
	bID, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	changes, err := Diff(store, a, bID)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	assertChanges(t, changes, "A spot", "R spot/inner")
}

func TestDiffBucketedTrees(t *testing.T) {
	store := object.NewMemStore()

	// Enough entries to shard both sides, with one modification, one
	// addition, one removal.
	base := make(map[string]int64)
	for i := 0; i < object.NormalizedSizeLimit+20; i++ {
		base[fmt.Sprintf("f%04d", i)] = int64(i)
	}
	a := buildTree(t, store, base)

	base["f0100"] = 9999
	delete(base, "f0200")
	base["fresh"] = 1
	b := buildTree(t, store, base)

	changes, err := Diff(store, a, b)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	assertChanges(t, changes, "M f0100", "R f0200", "A fresh")
}

func TestDiffSortedByPath(t *testing.T) {
	store := object.NewMemStore()

	a := buildTree(t, store, nil)
	b := buildTree(t, store, map[string]int64{"z": 1, "a": 2, "m": 3})

	changes, err := Diff(store, a, b)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	for i := 1; i < len(changes); i++ {
		if changes[i-1].Path >= changes[i].Path {
			t.Fatalf("changes out of order: %q before %q", changes[i-1].Path, changes[i].Path)
		}
	}
}
