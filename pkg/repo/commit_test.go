package repo

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/geovault/geovault/pkg/diff"
	"github.com/geovault/geovault/pkg/object"
)

func countLooseObjects(t *testing.T, r *Repo) int {
	t.Helper()
	fs, ok := r.Store.(*object.FileStore)
	if !ok {
		t.Fatalf("store is %T, want *object.FileStore", r.Store)
	}
	n := 0
	if err := fs.List(func(object.Hash) error { n++; return nil }); err != nil {
		t.Fatalf("list: %v", err)
	}
	return n
}

func TestCommitEndToEnd(t *testing.T) {
	r := newTestRepo(t)

	c1Hash := commitOne(t, r, "roads/r1", 1, "first")
	c1, err := object.GetCommit(r.Store, c1Hash)
	if err != nil {
		t.Fatalf("read c1: %v", err)
	}
	if len(c1.Parents) != 0 {
		t.Errorf("first commit has %d parents", len(c1.Parents))
	}
	if c1.Message != "first" {
		t.Errorf("c1 message = %q", c1.Message)
	}
	if c1.Committer.Name != "Test User" || c1.Committer.Email != "test@example.com" {
		t.Errorf("committer = %+v", c1.Committer)
	}
	if c1.Author != c1.Committer {
		t.Errorf("author %+v does not default to committer %+v", c1.Author, c1.Committer)
	}
	if c1.Committer.Timestamp != fixedClock.UnixMilli() {
		t.Errorf("committer timestamp = %d, want %d", c1.Committer.Timestamp, fixedClock.UnixMilli())
	}
	if c1.Committer.TimezoneOffset != 0 {
		t.Errorf("UTC clock produced timezone offset %d", c1.Committer.TimezoneOffset)
	}

	c2Hash := commitOne(t, r, "roads/r2", 2, "second")
	c2, err := object.GetCommit(r.Store, c2Hash)
	if err != nil {
		t.Fatalf("read c2: %v", err)
	}
	if len(c2.Parents) != 1 || c2.Parents[0] != c1Hash {
		t.Errorf("c2 parents = %v, want [%s]", c2.Parents, c1Hash)
	}

	// Branch and HEAD both resolve to the new tip.
	for _, name := range []string{HeadRef, "main", "refs/heads/main"} {
		tip, err := r.ResolveRef(name)
		if err != nil {
			t.Fatalf("resolve %q: %v", name, err)
		}
		if tip != c2Hash {
			t.Errorf("resolve %q = %s, want %s", name, tip, c2Hash)
		}
	}

	// The second commit added exactly one feature.
	changes, err := diff.Diff(r.Store, c1.Tree, c2.Tree)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if len(changes) != 1 || changes[0].Path != "roads/r2" || changes[0].Type != diff.Added {
		t.Errorf("tree diff = %+v, want one added roads/r2", changes)
	}

	// The staging index is consumed.
	staged, err := r.StagedChanges()
	if err != nil {
		t.Fatalf("staged: %v", err)
	}
	if len(staged) != 0 {
		t.Errorf("%d entries left staged after commit", len(staged))
	}
}

func TestCommitNothingToCommit(t *testing.T) {
	r := newTestRepo(t)

	// Empty staging area on an unborn branch.
	_, _, err := r.Commit(CommitOptions{Message: "empty"})
	if !errors.Is(err, ErrNothingToCommit) {
		t.Fatalf("empty commit = %v, want ErrNothingToCommit", err)
	}

	c1 := commitOne(t, r, "roads/r1", 1, "first")

	// Nothing staged against an existing tip.
	_, _, err = r.Commit(CommitOptions{Message: "still empty"})
	if !errors.Is(err, ErrNothingToCommit) {
		t.Fatalf("no-change commit = %v, want ErrNothingToCommit", err)
	}

	// AllowEmpty overrides the guard; the tree is unchanged.
	c1Commit, err := object.GetCommit(r.Store, c1)
	if err != nil {
		t.Fatalf("read c1: %v", err)
	}
	empty, emptyHash, err := r.Commit(CommitOptions{Message: "marker", AllowEmpty: true})
	if err != nil {
		t.Fatalf("allow-empty commit: %v", err)
	}
	if empty.Tree != c1Commit.Tree {
		t.Errorf("empty commit tree = %s, want parent tree %s", empty.Tree, c1Commit.Tree)
	}
	if len(empty.Parents) != 1 || empty.Parents[0] != c1 {
		t.Errorf("empty commit parents = %v", empty.Parents)
	}
	tip, err := r.ResolveRef(HeadRef)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tip != emptyHash {
		t.Errorf("tip = %s, want %s", tip, emptyHash)
	}
}

func TestCommitBlockedByConflicts(t *testing.T) {
	r := newTestRepo(t)
	commitOne(t, r, "roads/r1", 1, "first")

	putAndStage(t, r, "roads/r2", 2)
	if err := r.AddConflict(Conflict{Path: "roads/r1"}); err != nil {
		t.Fatalf("add conflict: %v", err)
	}

	before := countLooseObjects(t, r)
	_, _, err := r.Commit(CommitOptions{Message: "blocked"})
	if !errors.Is(err, ErrConflictsPending) {
		t.Fatalf("commit with conflicts = %v, want ErrConflictsPending", err)
	}
	if !strings.Contains(err.Error(), "roads/r1") {
		t.Errorf("conflict error %q does not name the path", err)
	}
	// Blocked before writing anything.
	if after := countLooseObjects(t, r); after != before {
		t.Errorf("blocked commit wrote objects: %d -> %d", before, after)
	}

	// Resolving unblocks.
	if err := r.RemoveConflict("roads/r1"); err != nil {
		t.Fatalf("remove conflict: %v", err)
	}
	if _, _, err := r.Commit(CommitOptions{Message: "unblocked"}); err != nil {
		t.Fatalf("commit after resolve: %v", err)
	}
}

func TestCommitDetachedHead(t *testing.T) {
	r := newTestRepo(t)
	c1 := commitOne(t, r, "roads/r1", 1, "first")

	headPath := filepath.Join(r.VaultDir, "HEAD")
	if err := os.WriteFile(headPath, []byte(string(c1)+"\n"), 0o644); err != nil {
		t.Fatalf("detach: %v", err)
	}

	putAndStage(t, r, "roads/r2", 2)
	_, _, err := r.Commit(CommitOptions{Message: "on detached"})
	if !errors.Is(err, ErrDetachedHead) {
		t.Errorf("commit on detached HEAD = %v, want ErrDetachedHead", err)
	}
}

func TestCommitMergeState(t *testing.T) {
	r := newTestRepo(t)
	c1 := commitOne(t, r, "roads/r1", 1, "first")

	// A commit object standing in for the other side of the merge.
	otherHash, err := r.Store.Put(&object.Commit{
		Tree:      object.EmptyTreeHash(),
		Author:    object.Person{Name: "Other", Email: "other@example.com"},
		Committer: object.Person{Name: "Other", Email: "other@example.com"},
		Message:   "their work",
	})
	if err != nil {
		t.Fatalf("put other commit: %v", err)
	}

	if err := r.BeginMergeState(otherHash, "Merge branch 'topic'"); err != nil {
		t.Fatalf("begin merge: %v", err)
	}
	orig, err := r.ResolveRef(OrigHeadRef)
	if err != nil {
		t.Fatalf("resolve ORIG_HEAD: %v", err)
	}
	if orig != c1 {
		t.Errorf("ORIG_HEAD = %s, want pre-merge tip %s", orig, c1)
	}

	putAndStage(t, r, "roads/r2", 2)
	// No message given: the prepared merge message applies.
	merged, mergedHash, err := r.Commit(CommitOptions{})
	if err != nil {
		t.Fatalf("merge commit: %v", err)
	}
	if merged.Message != "Merge branch 'topic'" {
		t.Errorf("merge message = %q", merged.Message)
	}
	if len(merged.Parents) != 2 || merged.Parents[0] != c1 || merged.Parents[1] != otherHash {
		t.Errorf("merge parents = %v, want [%s %s]", merged.Parents, c1, otherHash)
	}

	// Merge state is cleaned up.
	if r.RefExists(MergeHeadRef) {
		t.Error("MERGE_HEAD survived the merge commit")
	}
	if r.RefExists(OrigHeadRef) {
		t.Error("ORIG_HEAD survived the merge commit")
	}
	msg, err := r.ReadMergeMessage()
	if err != nil {
		t.Fatalf("read merge message: %v", err)
	}
	if msg != "" {
		t.Errorf("merge message %q survived the merge commit", msg)
	}

	tip, err := r.ResolveRef(HeadRef)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tip != mergedHash {
		t.Errorf("tip = %s, want merge commit %s", tip, mergedHash)
	}
}

func TestCommitExplicitMessageBeatsMergeMessage(t *testing.T) {
	r := newTestRepo(t)
	commitOne(t, r, "roads/r1", 1, "first")

	otherHash, err := r.Store.Put(&object.Commit{
		Tree:      object.EmptyTreeHash(),
		Author:    object.Person{Name: "Other", Email: "other@example.com"},
		Committer: object.Person{Name: "Other", Email: "other@example.com"},
		Message:   "their work",
	})
	if err != nil {
		t.Fatalf("put other commit: %v", err)
	}
	if err := r.BeginMergeState(otherHash, "Merge branch 'topic'"); err != nil {
		t.Fatalf("begin merge: %v", err)
	}

	putAndStage(t, r, "roads/r2", 2)
	merged, _, err := r.Commit(CommitOptions{Message: "custom merge wording"})
	if err != nil {
		t.Fatalf("merge commit: %v", err)
	}
	if merged.Message != "custom merge wording" {
		t.Errorf("message = %q, want the explicit one", merged.Message)
	}
}

func TestCommitAllStagesTracked(t *testing.T) {
	r := newTestRepo(t)
	commitOne(t, r, "roads/r1", 1, "first")

	// Modify a tracked path and add an untracked one, both in the working
	// set only.
	trackedFeature := &object.Feature{Values: []object.Value{object.IntValue(10)}}
	if err := r.Put("roads/r1", trackedFeature, object.NullHash, nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := r.Put("poi/p1", &object.Feature{Values: []object.Value{object.IntValue(5)}}, object.NullHash, nil); err != nil {
		t.Fatalf("put: %v", err)
	}

	c2, _, err := r.Commit(CommitOptions{Message: "tracked only", All: true})
	if err != nil {
		t.Fatalf("commit -a: %v", err)
	}

	// Only the tracked modification landed.
	if _, ok, err := object.FindEntry(r.Store, c2.Tree, "poi/p1"); err != nil || ok {
		t.Errorf("untracked path committed by all-flag (ok=%v err=%v)", ok, err)
	}
	n, ok, err := object.FindEntry(r.Store, c2.Tree, "roads/r1")
	if err != nil || !ok {
		t.Fatalf("tracked path missing (ok=%v err=%v)", ok, err)
	}
	if n.ID != object.HashOf(trackedFeature) {
		t.Errorf("tracked path not updated: %s", n.ID)
	}

	// The untracked path is still waiting in the working set.
	working, err := r.WorkingChanges()
	if err != nil {
		t.Fatalf("working: %v", err)
	}
	if _, ok := working["poi/p1"]; !ok {
		t.Error("untracked path vanished from the working set")
	}
}

func TestCommitPathFilters(t *testing.T) {
	r := newTestRepo(t)

	if err := r.Put("roads/r1", &object.Feature{Values: []object.Value{object.IntValue(1)}}, object.NullHash, nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := r.Put("poi/p1", &object.Feature{Values: []object.Value{object.IntValue(2)}}, object.NullHash, nil); err != nil {
		t.Fatalf("put: %v", err)
	}

	c1, _, err := r.Commit(CommitOptions{Message: "roads only", PathFilters: []string{"roads"}})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	if _, ok, _ := object.FindEntry(r.Store, c1.Tree, "roads/r1"); !ok {
		t.Error("filtered-in path missing from commit")
	}
	if _, ok, _ := object.FindEntry(r.Store, c1.Tree, "poi/p1"); ok {
		t.Error("filtered-out path present in commit")
	}

	working, err := r.WorkingChanges()
	if err != nil {
		t.Fatalf("working: %v", err)
	}
	if _, ok := working["poi/p1"]; !ok {
		t.Error("filtered-out path left the working set")
	}
}

func TestCommitAmendTemplate(t *testing.T) {
	r := newTestRepo(t)
	c1Hash := commitOne(t, r, "roads/r1", 1, "first draft")
	c1, err := object.GetCommit(r.Store, c1Hash)
	if err != nil {
		t.Fatalf("read c1: %v", err)
	}

	putAndStage(t, r, "roads/r2", 2)
	amended, _, err := r.Commit(CommitOptions{Template: c1})
	if err != nil {
		t.Fatalf("amend commit: %v", err)
	}

	if amended.Message != "first draft" {
		t.Errorf("amended message = %q, want the template's", amended.Message)
	}
	if amended.Author != c1.Author {
		t.Errorf("amended author = %+v, want template author %+v", amended.Author, c1.Author)
	}
	// The committer is always rebuilt.
	if amended.Committer.Name != "Test User" {
		t.Errorf("amended committer = %+v", amended.Committer)
	}

	// An explicit message overrides the template's.
	putAndStage(t, r, "roads/r3", 3)
	reworded, _, err := r.Commit(CommitOptions{Template: c1, Message: "final wording"})
	if err != nil {
		t.Fatalf("reworded commit: %v", err)
	}
	if reworded.Message != "final wording" {
		t.Errorf("reworded message = %q", reworded.Message)
	}
}

func TestCommitSigner(t *testing.T) {
	r := newTestRepo(t)
	putAndStage(t, r, "roads/r1", 1)

	var signedPayload []byte
	signer := func(payload []byte) (string, error) {
		signedPayload = append([]byte(nil), payload...)
		return "test-sig:" + hex.EncodeToString(payload[:4]), nil
	}

	c, h, err := r.Commit(CommitOptions{Message: "signed", Signer: signer})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if c.Signature == "" {
		t.Fatal("signature not recorded")
	}

	stored, err := object.GetCommit(r.Store, h)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if stored.Signature != c.Signature {
		t.Errorf("stored signature = %q, want %q", stored.Signature, c.Signature)
	}
	// The payload the signer saw is reproducible from the stored commit.
	if string(object.CommitSigningPayload(stored)) != string(signedPayload) {
		t.Error("stored commit does not reproduce the signed payload")
	}
}

func TestCommitSignerFailureAborts(t *testing.T) {
	r := newTestRepo(t)
	putAndStage(t, r, "roads/r1", 1)

	failing := func([]byte) (string, error) { return "", fmt.Errorf("no key") }
	if _, _, err := r.Commit(CommitOptions{Message: "x", Signer: failing}); err == nil {
		t.Fatal("commit succeeded with a failing signer")
	}
	// The branch never moved.
	if _, err := r.ResolveRef(HeadRef); !errors.Is(err, ErrRefNotFound) {
		t.Errorf("branch advanced after failed signing: %v", err)
	}
}

func TestCommitExplicitTimestamps(t *testing.T) {
	r := newTestRepo(t)
	putAndStage(t, r, "roads/r1", 1)

	authorTS := int64(1600000000000)
	authorTZ := -300
	committerTS := int64(1600000050000)
	committerTZ := 60

	c, _, err := r.Commit(CommitOptions{
		Message:                 "dated",
		AuthorName:              "Ada",
		AuthorEmail:             "ada@example.com",
		AuthorTimestamp:         &authorTS,
		AuthorTimezoneOffset:    &authorTZ,
		CommitterTimestamp:      &committerTS,
		CommitterTimezoneOffset: &committerTZ,
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	if c.Author.Name != "Ada" || c.Author.Timestamp != authorTS || c.Author.TimezoneOffset != authorTZ {
		t.Errorf("author = %+v", c.Author)
	}
	if c.Committer.Timestamp != committerTS || c.Committer.TimezoneOffset != committerTZ {
		t.Errorf("committer = %+v", c.Committer)
	}
}

func TestCommitTimezoneFollowsExplicitTimestamp(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	r := newTestRepo(t)
	putAndStage(t, r, "roads/r1", 1)

	// Clock sits in winter (EST, -300); the supplied timestamp is in summer
	// (EDT, -240). The committer offset must match the supplied instant.
	r.Clock = func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, loc) }
	summer := time.Date(2024, 7, 15, 12, 0, 0, 0, loc).UnixMilli()

	c, _, err := r.Commit(CommitOptions{Message: "dated", CommitterTimestamp: &summer})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if c.Committer.Timestamp != summer {
		t.Errorf("committer timestamp = %d, want %d", c.Committer.Timestamp, summer)
	}
	if c.Committer.TimezoneOffset != -240 {
		t.Errorf("committer offset = %d, want -240 (EDT)", c.Committer.TimezoneOffset)
	}
}

func TestCommitAuthorNameOverrideKeepsCommitterEmail(t *testing.T) {
	r := newTestRepo(t)
	putAndStage(t, r, "roads/r1", 1)

	c, _, err := r.Commit(CommitOptions{Message: "attributed", AuthorName: "Ada"})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if c.Author.Name != "Ada" {
		t.Errorf("author name = %q, want %q", c.Author.Name, "Ada")
	}
	if c.Author.Email != "test@example.com" {
		t.Errorf("author email = %q, want the committer's email", c.Author.Email)
	}
	if c.Committer.Name != "Test User" {
		t.Errorf("committer name = %q", c.Committer.Name)
	}
}

func TestCommitExtraParents(t *testing.T) {
	r := newTestRepo(t)
	c1 := commitOne(t, r, "roads/r1", 1, "first")

	extra, err := r.Store.Put(&object.Commit{
		Tree:      object.EmptyTreeHash(),
		Author:    object.Person{Name: "X", Email: "x@example.com"},
		Committer: object.Person{Name: "X", Email: "x@example.com"},
		Message:   "side",
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	putAndStage(t, r, "roads/r2", 2)
	c2, _, err := r.Commit(CommitOptions{Message: "octopus", Parents: []object.Hash{extra}})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(c2.Parents) != 2 || c2.Parents[0] != c1 || c2.Parents[1] != extra {
		t.Errorf("parents = %v, want [%s %s]", c2.Parents, c1, extra)
	}
}
