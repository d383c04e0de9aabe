package object

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get for an id the store does not hold.
var ErrNotFound = errors.New("object not found")

// ErrTypeMismatch is returned by Get when the stored object's kind differs
// from the expected kind.
var ErrTypeMismatch = errors.New("object type mismatch")

// Store is a content-addressed object store. Put is idempotent: writing
// content that already exists is a no-op, which makes concurrent puts of
// the same logical object commutative. Get resolves an id to a typed
// object or fails with ErrNotFound / ErrTypeMismatch.
type Store interface {
	Put(o Object) (Hash, error)
	Get(h Hash, kind ObjectType) (Object, error)
	Has(h Hash) bool
	// KindOf reports the kind of a stored object without decoding it.
	KindOf(h Hash) (ObjectType, error)
}

// GetTree reads a Tree from the store.
func GetTree(s Store, h Hash) (*Tree, error) {
	o, err := s.Get(h, TypeTree)
	if err != nil {
		return nil, err
	}
	return o.(*Tree), nil
}

// GetFeature reads a Feature from the store.
func GetFeature(s Store, h Hash) (*Feature, error) {
	o, err := s.Get(h, TypeFeature)
	if err != nil {
		return nil, err
	}
	return o.(*Feature), nil
}

// GetFeatureType reads a FeatureType from the store.
func GetFeatureType(s Store, h Hash) (*FeatureType, error) {
	o, err := s.Get(h, TypeFeatureType)
	if err != nil {
		return nil, err
	}
	return o.(*FeatureType), nil
}

// GetCommit reads a Commit from the store.
func GetCommit(s Store, h Hash) (*Commit, error) {
	o, err := s.Get(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	return o.(*Commit), nil
}

// GetTag reads a Tag from the store.
func GetTag(s Store, h Hash) (*Tag, error) {
	o, err := s.Get(h, TypeTag)
	if err != nil {
		return nil, err
	}
	return o.(*Tag), nil
}

func checkKind(h Hash, got, want ObjectType) error {
	if got != want {
		return fmt.Errorf("object %s: %w: got %q, want %q", h, ErrTypeMismatch, got, want)
	}
	return nil
}
