package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/geovault/geovault/pkg/object"
)

// CreateTag creates a lightweight tag ref under refs/tags/.
func (r *Repo) CreateTag(name string, target object.Hash, force bool) error {
	name = strings.TrimSpace(name)
	if err := validateTagName(name); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	if target.IsNull() {
		return fmt.Errorf("create tag: target hash is required")
	}

	refName := "refs/tags/" + name
	if !force {
		if r.RefExists(refName) {
			return fmt.Errorf("create tag: tag %q already exists", name)
		}
	}
	if err := r.UpdateRef(refName, target); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// CreateAnnotatedTag stores an annotated Tag object pointing at target and
// creates a refs/tags/ ref pointing at the tag object.
func (r *Repo) CreateAnnotatedTag(name string, target object.Hash, message string, force bool) (object.Hash, error) {
	name = strings.TrimSpace(name)
	if err := validateTagName(name); err != nil {
		return object.NullHash, fmt.Errorf("create annotated tag: %w", err)
	}
	if target.IsNull() {
		return object.NullHash, fmt.Errorf("create annotated tag: target hash is required")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return object.NullHash, fmt.Errorf("create annotated tag: message is required")
	}
	if !r.Store.Has(target) {
		return object.NullHash, fmt.Errorf("create annotated tag: target %s not in store", target)
	}

	refName := "refs/tags/" + name
	if !force {
		if r.RefExists(refName) {
			return object.NullHash, fmt.Errorf("create annotated tag: tag %q already exists", name)
		}
	}

	taggerName, taggerEmail, err := r.resolveCommitter(CommitOptions{})
	if err != nil {
		return object.NullHash, fmt.Errorf("create annotated tag: %w", err)
	}
	now := r.now()
	tagHash, err := r.Store.Put(&object.Tag{
		Object: target,
		Name:   name,
		Tagger: object.Person{
			Name:           taggerName,
			Email:          taggerEmail,
			Timestamp:      now.UnixMilli(),
			TimezoneOffset: tzOffsetMinutes(now),
		},
		Message: message,
	})
	if err != nil {
		return object.NullHash, fmt.Errorf("create annotated tag: write tag object: %w", err)
	}

	if err := r.UpdateRef(refName, tagHash); err != nil {
		return object.NullHash, fmt.Errorf("create annotated tag: %w", err)
	}
	return tagHash, nil
}

// DeleteTag removes a tag ref. Returns an error if the tag does not exist.
func (r *Repo) DeleteTag(name string) error {
	refPath := filepath.Join(r.VaultDir, "refs", "tags", name)
	if err := os.Remove(refPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete tag: tag %q does not exist", name)
		}
		return fmt.Errorf("delete tag %q: %w", name, err)
	}
	return nil
}

// ListTags returns the tag names sorted alphabetically.
func (r *Repo) ListTags() ([]string, error) {
	tagsDir := filepath.Join(r.VaultDir, "refs", "tags")

	entries, err := os.ReadDir(tagsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list tags: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".lock") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func validateTagName(name string) error {
	if name == "" {
		return fmt.Errorf("tag name is required")
	}
	if strings.ContainsAny(name, " \t\n/\\") {
		return fmt.Errorf("invalid tag name %q", name)
	}
	return nil
}
