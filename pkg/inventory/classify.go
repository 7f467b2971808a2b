// Package inventory partitions the files in scope into a language bucket
// and a context bucket.
//
// Buckets are spooled to scratch files, one path per line in listing order,
// so memory use does not grow with the size of the repository.
package inventory

import (
	"path"
	"strings"

	"github.com/gnana997/sential/pkg/heuristics"
	"github.com/gnana997/sential/pkg/repo"
)

// Bucket is the classification outcome for one path.
type Bucket int

const (
	BucketNone Bucket = iota
	BucketLanguage
	BucketContext
)

func (b Bucket) String() string {
	switch b {
	case BucketLanguage:
		return "language"
	case BucketContext:
		return "context"
	default:
		return "none"
	}
}

// Classify assigns p to a bucket.
//
// A source extension always wins: a file that is also a manifest or a
// Markdown file still lands in the language bucket.
func Classify(profile *heuristics.Profile, p string) Bucket {
	base := repo.Base(p)
	if profile.IsSourceFile(base) {
		return BucketLanguage
	}
	if isContext(profile, base) {
		return BucketContext
	}
	return BucketNone
}

func isContext(profile *heuristics.Profile, base string) bool {
	if profile.IsContextName(base) {
		return true
	}
	low := strings.ToLower(base)
	return strings.Contains(low, "readme") || path.Ext(low) == ".md"
}
