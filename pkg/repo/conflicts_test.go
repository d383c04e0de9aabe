package repo

import (
	"testing"
)

func TestConflictLifecycle(t *testing.T) {
	r := newTestRepo(t)

	has, err := r.HasConflicts()
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if has {
		t.Fatal("fresh repo reports conflicts")
	}

	for _, path := range []string{"roads/z", "roads/a"} {
		if err := r.AddConflict(Conflict{Path: path, Ours: testHash(0x01), Theirs: testHash(0x02)}); err != nil {
			t.Fatalf("add %q: %v", path, err)
		}
	}

	conflicts, err := r.ReadConflicts()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(conflicts) != 2 {
		t.Fatalf("got %d conflicts, want 2", len(conflicts))
	}
	// Ordered by path.
	if conflicts[0].Path != "roads/a" || conflicts[1].Path != "roads/z" {
		t.Errorf("conflicts = %q, %q", conflicts[0].Path, conflicts[1].Path)
	}

	// Re-adding a path replaces its record.
	if err := r.AddConflict(Conflict{Path: "roads/a", Ours: testHash(0x09)}); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	conflicts, err = r.ReadConflicts()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(conflicts) != 2 {
		t.Fatalf("re-add duplicated: %d conflicts", len(conflicts))
	}
	if conflicts[0].Ours != testHash(0x09) {
		t.Errorf("re-add did not replace: %+v", conflicts[0])
	}

	if err := r.RemoveConflict("roads/a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := r.RemoveConflict("ghost"); err != nil {
		t.Fatalf("remove unknown: %v", err)
	}
	conflicts, err = r.ReadConflicts()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].Path != "roads/z" {
		t.Errorf("after remove: %+v", conflicts)
	}

	if err := r.ClearConflicts(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	has, err = r.HasConflicts()
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if has {
		t.Error("conflicts remain after clear")
	}
}
