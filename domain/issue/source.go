package issue

import (
	"context"
	"time"
)

// Source is the issue tracker collaborator. Implementations fetch issue
// snapshots including their discussion; they never persist anything.
type Source interface {
	// ListUpdatedSince returns every issue of the repository whose last
	// modification is at or after since, including issues closed inside the
	// window so callers can flag their cache entries. A zero since returns
	// the full open corpus.
	ListUpdatedSince(ctx context.Context, repo RepoName, since time.Time) ([]Issue, error)
}
