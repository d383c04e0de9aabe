package object

import "testing"

// buildCommitGraph stores feature -> tree -> commit and returns all three
// hashes plus the feature type hash.
func buildCommitGraph(t *testing.T, store Store, parent Hash, attr int64) (featureID, ftID, treeID, commitID Hash) {
	t.Helper()

	var err error
	ftID, err = store.Put(&FeatureType{Attributes: []Attribute{{Name: "n", Type: ValueInt}}})
	if err != nil {
		t.Fatalf("put featuretype: %v", err)
	}
	featureID, err = store.Put(&Feature{Values: []Value{IntValue(attr)}})
	if err != nil {
		t.Fatalf("put feature: %v", err)
	}

	b := NewTreeBuilder(store)
	b.Put(Node{Name: "f", ID: featureID, Kind: TypeFeature, Metadata: ftID})
	treeID, err = b.Build()
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}

	c := &Commit{
		Tree:      treeID,
		Author:    Person{Name: "Ada", Email: "ada@example.com"},
		Committer: Person{Name: "Ada", Email: "ada@example.com"},
		Message:   "snapshot",
	}
	if !parent.IsNull() {
		c.Parents = []Hash{parent}
	}
	commitID, err = store.Put(c)
	if err != nil {
		t.Fatalf("put commit: %v", err)
	}
	return featureID, ftID, treeID, commitID
}

func TestReachableSetFollowsCommitChain(t *testing.T) {
	store := NewMemStore()
	f1, ft1, t1, c1 := buildCommitGraph(t, store, NullHash, 1)
	f2, ft2, t2, c2 := buildCommitGraph(t, store, c1, 2)

	// An object nothing references.
	orphan, err := store.Put(&Feature{Values: []Value{StringValue("orphan")}})
	if err != nil {
		t.Fatalf("put orphan: %v", err)
	}

	reachable, err := ReachableSet(store, []Hash{c2})
	if err != nil {
		t.Fatalf("reachable: %v", err)
	}

	for _, h := range []Hash{c1, c2, t1, t2, f1, f2, ft1, ft2} {
		if _, ok := reachable[h]; !ok {
			t.Errorf("hash %s not reachable from tip commit", h)
		}
	}
	if _, ok := reachable[orphan]; ok {
		t.Error("orphan object marked reachable")
	}
}

func TestReachableSetFollowsTags(t *testing.T) {
	store := NewMemStore()
	_, _, _, c1 := buildCommitGraph(t, store, NullHash, 1)

	tagID, err := store.Put(&Tag{
		Object:  c1,
		Name:    "v1",
		Tagger:  Person{Name: "Ada", Email: "ada@example.com"},
		Message: "release",
	})
	if err != nil {
		t.Fatalf("put tag: %v", err)
	}

	reachable, err := ReachableSet(store, []Hash{tagID})
	if err != nil {
		t.Fatalf("reachable: %v", err)
	}
	if _, ok := reachable[c1]; !ok {
		t.Error("commit behind tag not reachable")
	}
}

func TestReachableSetSkipsMissingRoots(t *testing.T) {
	store := NewMemStore()
	reachable, err := ReachableSet(store, []Hash{fakeHash(0x42), NullHash})
	if err != nil {
		t.Fatalf("reachable: %v", err)
	}
	if len(reachable) != 0 {
		t.Errorf("got %d reachable objects from missing roots", len(reachable))
	}
}

func TestCommitSigningPayloadExcludesSignature(t *testing.T) {
	c := &Commit{
		Tree:      fakeHash(1),
		Author:    Person{Name: "Ada", Email: "ada@example.com"},
		Committer: Person{Name: "Ada", Email: "ada@example.com"},
		Message:   "signed work",
	}
	unsigned := CommitSigningPayload(c)

	c.Signature = "whatever-signature"
	signed := CommitSigningPayload(c)

	if string(unsigned) != string(signed) {
		t.Error("signing payload changed when the signature was set")
	}
	if c.Signature != "whatever-signature" {
		t.Error("CommitSigningPayload mutated the commit")
	}
}
