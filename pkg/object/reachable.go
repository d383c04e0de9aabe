package object

import (
	"fmt"
	"sort"
)

// ReachableSet returns all object hashes reachable from roots by following
// object references: commits to their trees and parents, trees to their
// buckets, features and feature types, tags to their targets. Missing roots
// are ignored so callers can pass every ref without filtering.
func ReachableSet(s Store, roots []Hash) (map[Hash]struct{}, error) {
	roots = uniqueHashes(roots)
	out := make(map[Hash]struct{}, len(roots))

	stack := append([]Hash(nil), roots...)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h.IsNull() {
			continue
		}
		if _, ok := out[h]; ok {
			continue
		}
		if !s.Has(h) {
			continue
		}
		out[h] = struct{}{}

		kind, err := s.KindOf(h)
		if err != nil {
			return nil, fmt.Errorf("reachable set kind %s: %w", h, err)
		}
		refs, err := referencedHashes(s, h, kind)
		if err != nil {
			return nil, fmt.Errorf("reachable set read %s (%s): %w", h, kind, err)
		}
		stack = append(stack, refs...)
	}
	return out, nil
}

func referencedHashes(s Store, h Hash, kind ObjectType) ([]Hash, error) {
	switch kind {
	case TypeFeature, TypeFeatureType:
		return nil, nil
	case TypeTag:
		tag, err := GetTag(s, h)
		if err != nil {
			return nil, err
		}
		return []Hash{tag.Object}, nil
	case TypeCommit:
		commit, err := GetCommit(s, h)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, 1+len(commit.Parents))
		refs = append(refs, commit.Tree)
		refs = append(refs, commit.Parents...)
		return refs, nil
	case TypeTree:
		tree, err := GetTree(s, h)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, len(tree.Nodes)*2+len(tree.Buckets))
		for _, n := range tree.Nodes {
			refs = append(refs, n.ID)
			if !n.Metadata.IsNull() {
				refs = append(refs, n.Metadata)
			}
		}
		for _, b := range tree.Buckets {
			refs = append(refs, b)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("unknown object kind %q", kind)
	}
}

func uniqueHashes(hashes []Hash) []Hash {
	seen := make(map[Hash]struct{}, len(hashes))
	out := make([]Hash, 0, len(hashes))
	for _, h := range hashes {
		if h.IsNull() {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
