package repo

import (
	"testing"

	"github.com/geovault/geovault/pkg/object"
)

func TestGCPrunesOrphans(t *testing.T) {
	r := newTestRepo(t)
	c1 := commitOne(t, r, "roads/r1", 1, "first")

	// Directly-stored content nothing references.
	orphan, err := r.Store.Put(&object.Feature{Values: []object.Value{object.StringValue("orphan")}})
	if err != nil {
		t.Fatalf("put orphan: %v", err)
	}

	summary, err := r.GC()
	if err != nil {
		t.Fatalf("gc: %v", err)
	}
	if summary.Pruned != 1 {
		t.Errorf("pruned %d objects, want 1", summary.Pruned)
	}
	if r.Store.Has(orphan) {
		t.Error("orphan survived gc")
	}

	// Everything behind the branch is intact.
	commit, err := object.GetCommit(r.Store, c1)
	if err != nil {
		t.Fatalf("commit pruned: %v", err)
	}
	if _, ok, err := object.FindEntry(r.Store, commit.Tree, "roads/r1"); err != nil || !ok {
		t.Errorf("committed feature unreachable after gc: (%v, %v)", ok, err)
	}
}

func TestGCKeepsStagedAndWorking(t *testing.T) {
	r := newTestRepo(t)
	commitOne(t, r, "roads/r1", 1, "first")

	// One staged change, one working-set change; neither behind a ref yet.
	putAndStage(t, r, "roads/staged", 2)
	if err := r.Put("roads/working", &object.Feature{Values: []object.Value{object.IntValue(3)}}, object.NullHash, nil); err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, err := r.GC(); err != nil {
		t.Fatalf("gc: %v", err)
	}

	staged, err := r.StagedChanges()
	if err != nil {
		t.Fatalf("staged: %v", err)
	}
	working, err := r.WorkingChanges()
	if err != nil {
		t.Fatalf("working: %v", err)
	}
	if !r.Store.Has(staged["roads/staged"].Feature) {
		t.Error("staged feature pruned")
	}
	if !r.Store.Has(working["roads/working"].Feature) {
		t.Error("working-set feature pruned")
	}
}

func TestGCKeepsAnnotatedTagTargets(t *testing.T) {
	r := newTestRepo(t)
	c1 := commitOne(t, r, "roads/r1", 1, "first")
	c2 := commitOne(t, r, "roads/r2", 2, "second")

	if _, err := r.CreateAnnotatedTag("v1", c1, "release", false); err != nil {
		t.Fatalf("tag: %v", err)
	}

	// Rewind the branch so c2 becomes unreachable but c1 stays behind the tag.
	if err := r.UpdateRefCAS("refs/heads/main", c1, c2); err != nil {
		t.Fatalf("rewind: %v", err)
	}

	if _, err := r.GC(); err != nil {
		t.Fatalf("gc: %v", err)
	}
	if !r.Store.Has(c1) {
		t.Error("tagged commit pruned")
	}
	if r.Store.Has(c2) {
		t.Error("unreachable commit survived gc")
	}
}
