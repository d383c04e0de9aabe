package repo

import (
	"time"

	"github.com/geovault/geovault/pkg/object"
)

// Repo represents an opened geovault repository: a working directory with a
// .geovault/ control directory holding the object store, refs, staging
// indexes, and configuration.
type Repo struct {
	RootDir  string       // working directory root
	VaultDir string       // .geovault/ directory
	Store    object.Store // content-addressed object store

	// Clock supplies the current time for commit timestamps and reflog
	// entries. Nil means time.Now. Tests inject a fixed clock here.
	Clock func() time.Time
}

func (r *Repo) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}
