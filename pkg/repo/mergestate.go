package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/geovault/geovault/pkg/object"
)

func (r *Repo) mergeMsgPath() string {
	return filepath.Join(r.VaultDir, "MERGE_MSG")
}

// ReadMergeMessage returns the commit message prepared by a merge in
// progress, or "" when none is recorded.
func (r *Repo) ReadMergeMessage() (string, error) {
	data, err := os.ReadFile(r.mergeMsgPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read merge message: %w", err)
	}
	return string(data), nil
}

// WriteMergeMessage records the commit message for a merge in progress.
func (r *Repo) WriteMergeMessage(msg string) error {
	if err := os.WriteFile(r.mergeMsgPath(), []byte(msg), 0o644); err != nil {
		return fmt.Errorf("write merge message: %w", err)
	}
	return nil
}

func (r *Repo) removeMergeMessage() error {
	err := os.Remove(r.mergeMsgPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove merge message: %w", err)
	}
	return nil
}

// BeginMergeState records merge-in-progress state: MERGE_HEAD pointing at
// the commit being merged, ORIG_HEAD preserving the pre-merge tip, and the
// prepared merge commit message. The merge algorithm itself lives outside
// this package; this is the state the commit pipeline consumes and cleans.
func (r *Repo) BeginMergeState(mergeCommit object.Hash, message string) error {
	tip, err := r.ResolveRef(HeadRef)
	if err != nil && !errors.Is(err, ErrRefNotFound) {
		return fmt.Errorf("begin merge: %w", err)
	}
	if !tip.IsNull() {
		if err := r.UpdateRef(OrigHeadRef, tip); err != nil {
			return fmt.Errorf("begin merge: %w", err)
		}
	}
	if err := r.UpdateRef(MergeHeadRef, mergeCommit); err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	if message != "" {
		if err := r.WriteMergeMessage(message); err != nil {
			return fmt.Errorf("begin merge: %w", err)
		}
	}
	return nil
}
