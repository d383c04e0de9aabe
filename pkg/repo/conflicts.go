package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/geovault/geovault/pkg/object"
)

// Conflict is one unresolved path-level divergence recorded by a merge.
// Any of the three versions may be absent (add/add and delete conflicts).
type Conflict struct {
	Path     string      `json:"path"`
	Ancestor object.Hash `json:"ancestor,omitempty"`
	Ours     object.Hash `json:"ours,omitempty"`
	Theirs   object.Hash `json:"theirs,omitempty"`
}

type conflictsFile struct {
	Conflicts []Conflict `json:"conflicts"`
}

func (r *Repo) conflictsPath() string {
	return filepath.Join(r.VaultDir, "conflicts")
}

// ReadConflicts returns the unresolved conflicts, ordered by path.
func (r *Repo) ReadConflicts() ([]Conflict, error) {
	data, err := os.ReadFile(r.conflictsPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read conflicts: %w", err)
	}
	var cf conflictsFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("read conflicts: unmarshal: %w", err)
	}
	sort.Slice(cf.Conflicts, func(i, j int) bool { return cf.Conflicts[i].Path < cf.Conflicts[j].Path })
	return cf.Conflicts, nil
}

// HasConflicts reports whether any conflict is unresolved.
func (r *Repo) HasConflicts() (bool, error) {
	conflicts, err := r.ReadConflicts()
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

func (r *Repo) writeConflicts(conflicts []Conflict) error {
	if len(conflicts) == 0 {
		if err := os.Remove(r.conflictsPath()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("write conflicts: %w", err)
		}
		return nil
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Path < conflicts[j].Path })
	data, err := json.MarshalIndent(&conflictsFile{Conflicts: conflicts}, "", "  ")
	if err != nil {
		return fmt.Errorf("write conflicts: marshal: %w", err)
	}
	if err := os.WriteFile(r.conflictsPath(), data, 0o644); err != nil {
		return fmt.Errorf("write conflicts: %w", err)
	}
	return nil
}

// AddConflict records an unresolved conflict. Called by the merge layer;
// the commit pipeline only ever reads.
func (r *Repo) AddConflict(c Conflict) error {
	conflicts, err := r.ReadConflicts()
	if err != nil {
		return err
	}
	for i := range conflicts {
		if conflicts[i].Path == c.Path {
			conflicts[i] = c
			return r.writeConflicts(conflicts)
		}
	}
	return r.writeConflicts(append(conflicts, c))
}

// RemoveConflict clears the conflict at path as resolved. Removing an
// unknown path is a no-op.
func (r *Repo) RemoveConflict(path string) error {
	conflicts, err := r.ReadConflicts()
	if err != nil {
		return err
	}
	out := conflicts[:0]
	for _, c := range conflicts {
		if c.Path != path {
			out = append(out, c)
		}
	}
	return r.writeConflicts(out)
}

// ClearConflicts drops every recorded conflict.
func (r *Repo) ClearConflicts() error {
	return r.writeConflicts(nil)
}
