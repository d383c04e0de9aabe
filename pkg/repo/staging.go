package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/geovault/geovault/pkg/object"
)

// StagedChange records one pending change to a feature path: either an
// add/modify carrying the new feature and its schema, or a deletion.
type StagedChange struct {
	Path        string         `json:"path"`
	Feature     object.Hash    `json:"feature,omitempty"`
	FeatureType object.Hash    `json:"feature_type,omitempty"`
	Bounds      *object.Bounds `json:"bounds,omitempty"`
	Delete      bool           `json:"delete,omitempty"`
}

// changeSet is one of the two change files: .geovault/work (working set)
// or .geovault/index (staged changes feeding write-tree).
type changeSet struct {
	Entries map[string]*StagedChange `json:"entries"`
}

func (r *Repo) workPath() string  { return filepath.Join(r.VaultDir, "work") }
func (r *Repo) indexPath() string { return filepath.Join(r.VaultDir, "index") }

func (r *Repo) readChangeSet(path string) (*changeSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &changeSet{Entries: make(map[string]*StagedChange)}, nil
		}
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	var cs changeSet
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("read %s: unmarshal: %w", filepath.Base(path), err)
	}
	if cs.Entries == nil {
		cs.Entries = make(map[string]*StagedChange)
	}
	return &cs, nil
}

func (r *Repo) writeChangeSet(path string, cs *changeSet) error {
	data, err := json.MarshalIndent(cs, "", "  ")
	if err != nil {
		return fmt.Errorf("write %s: marshal: %w", filepath.Base(path), err)
	}

	// Atomic write via temp file + rename.
	tmp, err := os.CreateTemp(r.VaultDir, "."+filepath.Base(path)+"-tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: tmpfile: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: write: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: close: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: rename: %w", filepath.Base(path), err)
	}
	return nil
}

// Put records an add/modify of the feature at path in the working set. The
// feature and its type are written to the object store immediately; until a
// ref references them they are inert content-addressed data.
func (r *Repo) Put(path string, f *object.Feature, featureType object.Hash, bounds *object.Bounds) error {
	path = normalizePath(path)
	if path == "" {
		return fmt.Errorf("put: empty path")
	}
	featureHash, err := r.Store.Put(f)
	if err != nil {
		return fmt.Errorf("put %q: %w", path, err)
	}

	work, err := r.readChangeSet(r.workPath())
	if err != nil {
		return fmt.Errorf("put: %w", err)
	}
	work.Entries[path] = &StagedChange{
		Path:        path,
		Feature:     featureHash,
		FeatureType: featureType,
		Bounds:      bounds,
	}
	return r.writeChangeSet(r.workPath(), work)
}

// Delete records a deletion of the feature at path in the working set.
func (r *Repo) Delete(path string) error {
	path = normalizePath(path)
	work, err := r.readChangeSet(r.workPath())
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	work.Entries[path] = &StagedChange{Path: path, Delete: true}
	return r.writeChangeSet(r.workPath(), work)
}

// Stage moves working-set entries matching the given path patterns into the
// staging index. A pattern matches a path exactly or as a directory prefix.
// With no patterns, everything is staged.
func (r *Repo) Stage(patterns ...string) error {
	work, err := r.readChangeSet(r.workPath())
	if err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	index, err := r.readChangeSet(r.indexPath())
	if err != nil {
		return fmt.Errorf("stage: %w", err)
	}

	for path, change := range work.Entries {
		if !matchesAnyPattern(path, patterns) {
			continue
		}
		index.Entries[path] = change
		delete(work.Entries, path)
	}

	if err := r.writeChangeSet(r.indexPath(), index); err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	if err := r.writeChangeSet(r.workPath(), work); err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	return nil
}

// StageModified stages working-set entries whose paths are already tracked
// in the current HEAD tree. Newly-untracked paths stay in the working set.
// This is the `all` flag of the commit pipeline.
func (r *Repo) StageModified() error {
	headTree, err := r.headTreeID()
	if err != nil {
		return fmt.Errorf("stage modified: %w", err)
	}
	if headTree.IsNull() {
		// Unborn branch: nothing is tracked yet.
		return nil
	}

	work, err := r.readChangeSet(r.workPath())
	if err != nil {
		return fmt.Errorf("stage modified: %w", err)
	}

	var tracked []string
	for path := range work.Entries {
		_, ok, err := object.FindEntry(r.Store, headTree, path)
		if err != nil {
			return fmt.Errorf("stage modified: lookup %q: %w", path, err)
		}
		if ok {
			tracked = append(tracked, path)
		}
	}
	if len(tracked) == 0 {
		return nil
	}
	sort.Strings(tracked)
	return r.Stage(tracked...)
}

// StagedChanges returns the staging index entries keyed by path.
func (r *Repo) StagedChanges() (map[string]*StagedChange, error) {
	index, err := r.readChangeSet(r.indexPath())
	if err != nil {
		return nil, err
	}
	return index.Entries, nil
}

// WorkingChanges returns the working-set entries keyed by path.
func (r *Repo) WorkingChanges() (map[string]*StagedChange, error) {
	work, err := r.readChangeSet(r.workPath())
	if err != nil {
		return nil, err
	}
	return work.Entries, nil
}

// clearStaged removes the given paths from the staging index after a
// successful commit.
func (r *Repo) clearStaged(paths []string) error {
	index, err := r.readChangeSet(r.indexPath())
	if err != nil {
		return err
	}
	for _, p := range paths {
		delete(index.Entries, p)
	}
	return r.writeChangeSet(r.indexPath(), index)
}

// headTreeID resolves the tree of the current HEAD commit, or NullHash on
// an unborn branch.
func (r *Repo) headTreeID() (object.Hash, error) {
	tip, err := r.ResolveRef(HeadRef)
	if err != nil {
		if errors.Is(err, ErrRefNotFound) {
			return object.NullHash, nil
		}
		return object.NullHash, err
	}
	if tip.IsNull() {
		return object.NullHash, nil
	}
	c, err := object.GetCommit(r.Store, tip)
	if err != nil {
		return object.NullHash, err
	}
	return c.Tree, nil
}

func normalizePath(p string) string {
	return strings.Trim(strings.TrimSpace(p), "/")
}

func matchesAnyPattern(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pat := range patterns {
		pat = normalizePath(pat)
		if pat == "" || pat == path || strings.HasPrefix(path, pat+"/") {
			return true
		}
	}
	return false
}
