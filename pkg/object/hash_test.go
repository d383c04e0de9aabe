package object

import "testing"

func TestHashOfStable(t *testing.T) {
	c := &Commit{
		Tree:    fakeHash(1),
		Author:  Person{Name: "Ada", Email: "ada@example.com", Timestamp: 1700000000000},
		Message: "initial",
	}
	c.Committer = c.Author

	h1 := HashOf(c)
	h2 := HashOf(c)
	if h1 != h2 {
		t.Fatalf("HashOf not deterministic: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("hash length = %d, want 64", len(h1))
	}

	changed := *c
	changed.Message = "initial!"
	if HashOf(&changed) == h1 {
		t.Error("different content produced the same hash")
	}
}

func TestHashIndependentOfPersistenceFormat(t *testing.T) {
	// Identity is computed over canonical bytes, so a text store and a
	// binary store address the same content at the same key.
	f := &Feature{Values: []Value{StringValue("Main St"), IntValue(4)}}

	textStore := NewFileStore(t.TempDir(), FormatText)
	binStore := NewFileStore(t.TempDir(), FormatBinary)

	th, err := textStore.Put(f)
	if err != nil {
		t.Fatalf("text put: %v", err)
	}
	bh, err := binStore.Put(f)
	if err != nil {
		t.Fatalf("binary put: %v", err)
	}
	if th != bh {
		t.Errorf("hash differs across persistence formats: %s vs %s", th, bh)
	}
	if th != HashOf(f) {
		t.Errorf("store hash %s differs from HashOf %s", th, HashOf(f))
	}
}

func TestBucketIndexRange(t *testing.T) {
	names := []string{"", "a", "roads/1", "feature-123", "Ünïcode"}
	for _, name := range names {
		for depth := 0; depth < 64; depth++ {
			idx := bucketIndex(name, depth)
			if idx < 0 || idx >= BucketCount {
				t.Fatalf("bucketIndex(%q, %d) = %d, out of range", name, depth, idx)
			}
		}
	}
}

func TestBucketIndexDependsOnDepth(t *testing.T) {
	// Siblings colliding at one depth must be separable at another,
	// otherwise sharding could recurse forever on distinct names.
	differs := false
	for depth := 0; depth < 32; depth++ {
		if bucketIndex("alpha", depth) != bucketIndex("alpha", 0) {
			differs = true
			break
		}
	}
	if !differs {
		t.Error("bucketIndex ignored depth for every probed level")
	}
}
