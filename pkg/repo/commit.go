package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/geovault/geovault/pkg/object"
)

// ErrNothingToCommit reports a commit attempt whose resulting tree equals
// the current tip's tree, with no allow-empty override.
var ErrNothingToCommit = errors.New("nothing to commit")

// ErrNoHead reports a repository without a HEAD ref.
var ErrNoHead = errors.New("repository has no HEAD, cannot commit")

// ErrDetachedHead reports a HEAD that points directly at a commit instead
// of a branch.
var ErrDetachedHead = errors.New("HEAD is detached, cannot commit; create a branch from it before committing")

// ErrConflictsPending reports unresolved merge conflicts blocking the
// operation.
var ErrConflictsPending = errors.New("cannot run operation while merge conflicts exist")

// CommitSigner signs the canonical commit payload and returns an encoded
// signature string persisted in Commit.Signature.
type CommitSigner func(payload []byte) (string, error)

// CommitOptions carries everything a caller may set on a commit. The zero
// value commits the staging index with identity from config and timestamps
// from the repository clock.
type CommitOptions struct {
	Message string

	AuthorName     string
	AuthorEmail    string
	CommitterName  string
	CommitterEmail string

	// Millisecond timestamps and minute timezone offsets. Nil defaults:
	// committer time is the repository clock, author time the committer
	// time, and each timezone its person's timestamp zone.
	AuthorTimestamp         *int64
	CommitterTimestamp      *int64
	AuthorTimezoneOffset    *int
	CommitterTimezoneOffset *int

	// Parents holds extra parent ids appended after the branch tip.
	Parents []object.Hash

	// All stages modified-but-tracked working-set paths before writing.
	All bool
	// AllowEmpty permits a commit whose tree equals its parent's.
	AllowEmpty bool
	// PathFilters restricts staging and tree-writing to matching paths.
	PathFilters []string

	// Template, when set, supplies message and author for the new commit
	// (amend semantics). Tree, parents and committer timestamp are always
	// replaced.
	Template *object.Commit

	Signer CommitSigner
}

// Commit runs the commit pipeline: precondition checks, optional
// auto-staging, parent resolution including merge state, tree writing, the
// empty-commit guard, commit construction, ref updates, and merge-state
// cleanup. On success it returns the new commit and its id.
//
// Failure after objects are written leaves only unreferenced
// content-addressed data behind; no ref moves until every object is in
// place, so there is nothing to roll back.
func (r *Repo) Commit(opts CommitOptions) (*object.Commit, object.Hash, error) {
	// Precondition: HEAD exists and is symbolic.
	head, err := r.Head()
	if err != nil {
		if errors.Is(err, ErrRefNotFound) {
			return nil, object.NullHash, ErrNoHead
		}
		return nil, object.NullHash, fmt.Errorf("commit: %w", err)
	}
	if !strings.HasPrefix(head, "refs/") {
		return nil, object.NullHash, ErrDetachedHead
	}
	currentBranch := head

	// Precondition: no unresolved conflicts.
	conflicts, err := r.ReadConflicts()
	if err != nil {
		return nil, object.NullHash, fmt.Errorf("commit: %w", err)
	}
	if len(conflicts) > 0 {
		paths := make([]string, len(conflicts))
		for i, c := range conflicts {
			paths[i] = c.Path
		}
		return nil, object.NullHash, fmt.Errorf("commit: %w: %s",
			ErrConflictsPending, strings.Join(paths, ", "))
	}

	if opts.All {
		if err := r.StageModified(); err != nil {
			return nil, object.NullHash, fmt.Errorf("commit: %w", err)
		}
	}

	// Parent resolution: branch tip first, then merge head.
	var parents []object.Hash
	tip, err := r.ResolveRef(currentBranch)
	if err != nil && !errors.Is(err, ErrRefNotFound) {
		return nil, object.NullHash, fmt.Errorf("commit: %w", err)
	}
	if !tip.IsNull() {
		parents = append(parents, tip)
	}
	parents = append(parents, opts.Parents...)

	message := opts.Message
	mergeHead, mergeErr := r.ResolveRef(MergeHeadRef)
	if mergeErr != nil && !errors.Is(mergeErr, ErrRefNotFound) {
		return nil, object.NullHash, fmt.Errorf("commit: %w", mergeErr)
	}
	mergeInProgress := mergeErr == nil
	if mergeInProgress {
		if !mergeHead.IsNull() {
			parents = append(parents, mergeHead)
		}
		if message == "" {
			message, err = r.ReadMergeMessage()
			if err != nil {
				return nil, object.NullHash, fmt.Errorf("commit: %w", err)
			}
		}
	}

	if len(opts.PathFilters) > 0 {
		if err := r.Stage(opts.PathFilters...); err != nil {
			return nil, object.NullHash, fmt.Errorf("commit: %w", err)
		}
	}

	// Write the new tree against the tip's tree.
	oldTree := object.EmptyTreeHash()
	if !tip.IsNull() {
		tipCommit, err := object.GetCommit(r.Store, tip)
		if err != nil {
			return nil, object.NullHash, fmt.Errorf("commit: read tip: %w", err)
		}
		if !tipCommit.Tree.IsNull() {
			oldTree = tipCommit.Tree
		}
	}
	staged, err := r.StagedChanges()
	if err != nil {
		return nil, object.NullHash, fmt.Errorf("commit: %w", err)
	}
	newTree, err := r.WriteTree(oldTree, staged, opts.PathFilters)
	if err != nil {
		return nil, object.NullHash, fmt.Errorf("commit: %w", err)
	}

	// Empty-commit guard.
	if newTree == oldTree && !opts.AllowEmpty {
		return nil, object.NullHash, fmt.Errorf("%w after %s", ErrNothingToCommit, tip)
	}

	commit, err := r.buildCommit(opts, message, newTree, parents)
	if err != nil {
		return nil, object.NullHash, fmt.Errorf("commit: %w", err)
	}
	if opts.Signer != nil {
		sig, err := opts.Signer(object.CommitSigningPayload(commit))
		if err != nil {
			return nil, object.NullHash, fmt.Errorf("commit: sign: %w", err)
		}
		commit.Signature = sig
	}

	commitHash, err := r.Store.Put(commit)
	if err != nil {
		return nil, object.NullHash, fmt.Errorf("commit: write commit: %w", err)
	}

	// Advance the branch (compare-and-set against the tip we built on) and
	// re-point HEAD at the branch.
	if err := r.UpdateRefCAS(currentBranch, commitHash, tip); err != nil {
		return nil, object.NullHash, fmt.Errorf("commit: %w", err)
	}
	if err := r.UpdateSymRef(HeadRef, currentBranch); err != nil {
		return nil, object.NullHash, fmt.Errorf("commit: %w", err)
	}

	// Consistency check: the tree reachable from the new tip is the tree
	// we wrote.
	newTip, err := r.ResolveRef(currentBranch)
	if err != nil {
		return nil, object.NullHash, fmt.Errorf("commit: verify: %w", err)
	}
	tipCommit, err := object.GetCommit(r.Store, newTip)
	if err != nil {
		return nil, object.NullHash, fmt.Errorf("commit: verify: %w", err)
	}
	if tipCommit.Tree != newTree {
		return nil, object.NullHash, fmt.Errorf("commit: verify: branch tree %s does not match written tree %s",
			tipCommit.Tree, newTree)
	}

	// Merge-state cleanup.
	if mergeInProgress {
		for _, ref := range []string{MergeHeadRef, OrigHeadRef} {
			if err := r.DeleteRef(ref); err != nil {
				return nil, object.NullHash, fmt.Errorf("commit: cleanup: %w", err)
			}
		}
		if err := r.removeMergeMessage(); err != nil {
			return nil, object.NullHash, fmt.Errorf("commit: cleanup: %w", err)
		}
	}
	if r.RefExists(CherryPickHeadRef) {
		for _, ref := range []string{CherryPickHeadRef, OrigHeadRef} {
			if err := r.DeleteRef(ref); err != nil {
				return nil, object.NullHash, fmt.Errorf("commit: cleanup: %w", err)
			}
		}
	}

	committed := make([]string, 0, len(staged))
	for path := range staged {
		if matchesAnyPattern(path, opts.PathFilters) {
			committed = append(committed, path)
		}
	}
	sort.Strings(committed)
	if err := r.clearStaged(committed); err != nil {
		return nil, object.NullHash, fmt.Errorf("commit: %w", err)
	}

	return commit, commitHash, nil
}

// buildCommit assembles the immutable commit object, resolving identity,
// timestamps and timezones per the defaulting rules.
func (r *Repo) buildCommit(opts CommitOptions, message string, tree object.Hash, parents []object.Hash) (*object.Commit, error) {
	committerTime := r.now()
	committerMillis := committerTime.UnixMilli()
	if opts.CommitterTimestamp != nil {
		committerMillis = *opts.CommitterTimestamp
	}
	// The zone offset is evaluated at the committer instant, not at "now";
	// an explicit timestamp on the far side of a DST switch gets the offset
	// that was in effect then.
	committerTZ := tzOffsetMinutes(time.UnixMilli(committerMillis).In(committerTime.Location()))
	if opts.CommitterTimezoneOffset != nil {
		committerTZ = *opts.CommitterTimezoneOffset
	}

	authorMillis := committerMillis
	if opts.AuthorTimestamp != nil {
		authorMillis = *opts.AuthorTimestamp
	}
	authorTZ := committerTZ
	if opts.AuthorTimezoneOffset != nil {
		authorTZ = *opts.AuthorTimezoneOffset
	}

	committerName, committerEmail, err := r.resolveCommitter(opts)
	if err != nil {
		return nil, err
	}

	// Author name and email each fall back to the committer independently,
	// so a name-only override keeps the committer's email.
	authorName := committerName
	authorEmail := committerEmail
	if opts.AuthorName != "" {
		authorName = opts.AuthorName
	}
	if opts.AuthorEmail != "" {
		authorEmail = opts.AuthorEmail
	}

	if opts.Template != nil {
		c := &object.Commit{
			Tree:    tree,
			Parents: parents,
			Author:  opts.Template.Author,
			Committer: object.Person{
				Name:           committerName,
				Email:          committerEmail,
				Timestamp:      committerMillis,
				TimezoneOffset: committerTZ,
			},
			Message: opts.Template.Message,
		}
		if message != "" {
			c.Message = message
		}
		if opts.AuthorName != "" || opts.AuthorEmail != "" {
			c.Author = object.Person{
				Name:           authorName,
				Email:          authorEmail,
				Timestamp:      authorMillis,
				TimezoneOffset: authorTZ,
			}
		}
		return c, nil
	}

	return &object.Commit{
		Tree:    tree,
		Parents: parents,
		Author: object.Person{
			Name:           authorName,
			Email:          authorEmail,
			Timestamp:      authorMillis,
			TimezoneOffset: authorTZ,
		},
		Committer: object.Person{
			Name:           committerName,
			Email:          committerEmail,
			Timestamp:      committerMillis,
			TimezoneOffset: committerTZ,
		},
		Message: message,
	}, nil
}

// resolveCommitter returns the committer identity from options when given,
// from config otherwise. Both config keys are mandatory.
func (r *Repo) resolveCommitter(opts CommitOptions) (name, email string, err error) {
	name = opts.CommitterName
	email = opts.CommitterEmail
	if name == "" {
		name, err = r.ConfigGet("user.name")
		if err != nil {
			return "", "", err
		}
		if name == "" {
			return "", "", &MissingConfigError{Key: "user.name", Placeholder: "your name"}
		}
	}
	if email == "" {
		email, err = r.ConfigGet("user.email")
		if err != nil {
			return "", "", err
		}
		if email == "" {
			return "", "", &MissingConfigError{Key: "user.email", Placeholder: "your email"}
		}
	}
	return name, email, nil
}

func tzOffsetMinutes(t time.Time) int {
	_, seconds := t.Zone()
	return seconds / 60
}
