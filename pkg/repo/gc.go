package repo

import (
	"fmt"
	"sort"

	"github.com/geovault/geovault/pkg/object"
)

// GCSummary reports what a garbage collection pass did.
type GCSummary struct {
	Reachable int
	Pruned    int
}

// GC removes loose objects not reachable from any ref. Objects written by
// an aborted commit attempt are the usual candidates; they are inert until
// referenced, so pruning them is always safe.
func (r *Repo) GC() (*GCSummary, error) {
	fileStore, ok := r.Store.(*object.FileStore)
	if !ok {
		return nil, fmt.Errorf("gc: store does not support sweeping")
	}

	refs, err := r.ListRefs("")
	if err != nil {
		return nil, fmt.Errorf("gc: %w", err)
	}
	roots := make([]object.Hash, 0, len(refs)+1)
	for _, h := range refs {
		roots = append(roots, h)
	}
	// A detached HEAD is a root too.
	if head, err := r.Head(); err == nil && head != "" && !isRefPath(head) {
		roots = append(roots, object.Hash(head))
	}
	// Staged and working-set features are not yet behind a ref but must
	// survive collection.
	for _, read := range []func() (map[string]*StagedChange, error){r.StagedChanges, r.WorkingChanges} {
		changes, err := read()
		if err != nil {
			return nil, fmt.Errorf("gc: %w", err)
		}
		for _, c := range changes {
			roots = append(roots, c.Feature, c.FeatureType)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	reachable, err := object.ReachableSet(r.Store, roots)
	if err != nil {
		return nil, fmt.Errorf("gc: %w", err)
	}

	summary := &GCSummary{Reachable: len(reachable)}
	var prune []object.Hash
	err = fileStore.List(func(h object.Hash) error {
		if _, ok := reachable[h]; !ok {
			prune = append(prune, h)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gc: %w", err)
	}
	for _, h := range prune {
		if err := fileStore.Remove(h); err != nil {
			return nil, fmt.Errorf("gc: %w", err)
		}
		summary.Pruned++
	}
	return summary, nil
}

func isRefPath(s string) bool {
	return len(s) > 5 && s[:5] == "refs/"
}
