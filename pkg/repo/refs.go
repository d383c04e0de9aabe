package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/geovault/geovault/pkg/object"
)

// Well-known ref names. MERGE_HEAD, ORIG_HEAD and CHERRY_PICK_HEAD are
// transient merge-state refs cleaned up by a successful commit.
const (
	HeadRef           = "HEAD"
	MergeHeadRef      = "MERGE_HEAD"
	OrigHeadRef       = "ORIG_HEAD"
	CherryPickHeadRef = "CHERRY_PICK_HEAD"
)

// ErrRefCASMismatch reports a compare-and-set ref update that found a
// different current value than expected: a concurrent update won.
var ErrRefCASMismatch = errors.New("ref compare-and-swap mismatch")

// ErrRefNotFound reports a ref name with no ref file behind it.
var ErrRefNotFound = errors.New("ref not found")

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

// Head reads .geovault/HEAD. If the content starts with "ref: ", it returns
// the ref path (e.g. "refs/heads/main"). Otherwise it returns the raw
// content as a detached hash string.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.VaultDir, HeadRef))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("head: %w", ErrRefNotFound)
		}
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimRight(string(data), "\n")

	if strings.HasPrefix(content, "ref: ") {
		return strings.TrimPrefix(content, "ref: "), nil
	}
	return content, nil
}

func (r *Repo) refPath(name string) string {
	if strings.HasPrefix(name, "refs/") {
		return filepath.Join(r.VaultDir, filepath.FromSlash(name))
	}
	return filepath.Join(r.VaultDir, name)
}

// ResolveRef resolves a ref name to an object hash, following one level of
// symbolic indirection for HEAD. A ref file that does not exist resolves to
// an error wrapping ErrRefNotFound; an existing but unborn ref (e.g. the
// current branch before the first commit) also reports ErrRefNotFound.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	if name == HeadRef {
		head, err := r.Head()
		if err != nil {
			return object.NullHash, err
		}
		if strings.HasPrefix(head, "refs/") {
			return r.ResolveRef(head)
		}
		// Detached HEAD: the value is a hash.
		return object.Hash(head), nil
	}

	refPath := r.refPath(name)
	if !strings.HasPrefix(name, "refs/") && name != MergeHeadRef &&
		name != OrigHeadRef && name != CherryPickHeadRef {
		refPath = filepath.Join(r.VaultDir, "refs", "heads", name)
	}

	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return object.NullHash, fmt.Errorf("resolve ref %q: %w", name, ErrRefNotFound)
		}
		return object.NullHash, fmt.Errorf("resolve ref %q: %w", name, err)
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}

// RefExists reports whether the named ref has a ref file.
func (r *Repo) RefExists(name string) bool {
	_, err := r.ResolveRef(name)
	return err == nil
}

// UpdateRef writes a hash to the named ref unconditionally.
func (r *Repo) UpdateRef(name string, h object.Hash) error {
	return r.UpdateRefCAS(name, h)
}

// UpdateRefCAS writes a hash to the named ref file using lockfile + rename
// atomic semantics. If expectedOld is provided, the update only succeeds
// when the current ref hash matches it; a mismatch reports
// ErrRefCASMismatch and leaves the ref untouched.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}
	hasExpectedOld := len(expectedOld) == 1
	wantOldHash := object.NullHash
	if hasExpectedOld {
		wantOldHash = expectedOld[0]
	}

	refPath := r.refPath(name)
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldHash, err := readRefHash(refPath)
	if err != nil {
		return fmt.Errorf("update ref %q: read old hash: %w", name, err)
	}
	if hasExpectedOld && oldHash != wantOldHash {
		return fmt.Errorf(
			"update ref %q: %w (expected %s, found %s)",
			name, ErrRefCASMismatch, wantOldHash, oldHash,
		)
	}

	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update ref %q: sync: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false

	if err := r.appendReflog(name, oldHash, h, "update"); err != nil {
		return fmt.Errorf("update ref %q: ref updated but reflog append failed: %w", name, err)
	}
	return nil
}

// UpdateSymRef points a symbolic ref (in practice HEAD) at the given target
// ref name, atomically.
func (r *Repo) UpdateSymRef(name, target string) error {
	refPath := r.refPath(name)
	tmp, err := os.CreateTemp(filepath.Dir(refPath), "."+name+"-tmp-*")
	if err != nil {
		return fmt.Errorf("update symref %q: tmpfile: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString("ref: " + target + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("update symref %q: write: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("update symref %q: close: %w", name, err)
	}
	if err := os.Rename(tmpName, refPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("update symref %q: rename: %w", name, err)
	}
	return nil
}

// DeleteRef removes a ref file. Deleting a non-existent ref is a no-op.
func (r *Repo) DeleteRef(name string) error {
	err := os.Remove(r.refPath(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	return nil
}

// ListRefs lists references under .geovault/refs. Names are returned
// relative to the vault dir, e.g. "refs/heads/main", "refs/tags/v1".
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := filepath.Join(r.VaultDir, "refs")
	dir := root
	if strings.TrimSpace(prefix) != "" {
		dir = filepath.Join(root, filepath.FromSlash(prefix))
	}

	refs := make(map[string]object.Hash)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(path, ".lock") {
			return nil
		}
		rel, err := filepath.Rel(filepath.Dir(root), path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		refs[filepath.ToSlash(rel)] = object.Hash(strings.TrimSpace(string(data)))
		return nil
	})
	if os.IsNotExist(err) {
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return object.NullHash, nil
		}
		return object.NullHash, err
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}
