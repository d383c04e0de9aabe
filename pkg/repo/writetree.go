package repo

import (
	"fmt"
	"strings"

	"github.com/geovault/geovault/pkg/object"
)

// WriteTree merges staged changes onto the tree identified by oldRoot and
// returns the new root identifier. Paths not touched by a change keep their
// old sub-tree ids, so unchanged siblings are shared between the two roots
// rather than copied. With filters, only changes matching a filter pattern
// apply. The result depends only on the effective change set, never on map
// iteration or processing order.
func (r *Repo) WriteTree(oldRoot object.Hash, changes map[string]*StagedChange, filters []string) (object.Hash, error) {
	effective := make(map[string]*StagedChange, len(changes))
	for path, c := range changes {
		if matchesAnyPattern(path, filters) {
			effective[path] = c
		}
	}
	root, err := r.writeTreeLevel(oldRoot, effective)
	if err != nil {
		return object.NullHash, fmt.Errorf("write tree: %w", err)
	}
	return root, nil
}

// writeTreeLevel applies the changes rooted at one directory level. Keys of
// changes are paths relative to this level.
func (r *Repo) writeTreeLevel(oldLevel object.Hash, changes map[string]*StagedChange) (object.Hash, error) {
	builder, err := object.NewTreeBuilderFrom(r.Store, oldLevel)
	if err != nil {
		return object.NullHash, err
	}

	// Partition into direct leaf changes and per-subdirectory groups.
	subdirs := make(map[string]map[string]*StagedChange)
	for path, c := range changes {
		name, rest, nested := strings.Cut(path, "/")
		if !nested {
			if c.Delete {
				builder.Remove(name)
			} else {
				builder.Put(object.Node{
					Name:     name,
					ID:       c.Feature,
					Kind:     object.TypeFeature,
					Metadata: c.FeatureType,
					Bounds:   c.Bounds,
				})
			}
			continue
		}
		group := subdirs[name]
		if group == nil {
			group = make(map[string]*StagedChange)
			subdirs[name] = group
		}
		group[rest] = c
	}

	for name, group := range subdirs {
		oldChild := object.NullHash
		if existing, ok := builder.Get(name); ok && existing.Kind == object.TypeTree {
			oldChild = existing.ID
		}
		newChild, err := r.writeTreeLevel(oldChild, group)
		if err != nil {
			return object.NullHash, err
		}
		if newChild == object.EmptyTreeHash() {
			// Deleting the last feature of a directory drops the directory.
			builder.Remove(name)
			continue
		}
		builder.Put(object.Node{Name: name, ID: newChild, Kind: object.TypeTree})
	}

	return builder.Build()
}
