package bridge

import (
	"errors"

	"github.com/gnana997/sential/pkg/discovery"
	"github.com/gnana997/sential/pkg/heuristics"
	"github.com/gnana997/sential/pkg/repo"
	"github.com/gnana997/sential/pkg/util"
)

// Precondition errors. They end a build before any scratch file or
// artifact exists.
var (
	ErrEmptyInventory      = discovery.ErrEmptyInventory
	ErrNoSelection         = discovery.ErrNoSelection
	ErrNotRepository       = repo.ErrNotRepository
	ErrNotDirectory        = repo.ErrNotDirectory
	ErrUnsupportedLanguage = heuristics.ErrUnsupportedLanguage
)

// ResourceError is a failure to acquire scratch storage, the artifact or
// a subprocess.
type ResourceError = util.ResourceError

// IsPrecondition reports whether err is one of the precondition errors.
func IsPrecondition(err error) bool {
	for _, target := range []error{
		ErrEmptyInventory,
		ErrNoSelection,
		ErrNotRepository,
		ErrNotDirectory,
		ErrUnsupportedLanguage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsResource reports whether err is a ResourceError.
func IsResource(err error) bool {
	var re *ResourceError
	return errors.As(err, &re)
}
