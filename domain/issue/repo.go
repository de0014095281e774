package issue

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRepo indicates a repository name that is not "owner/name".
var ErrInvalidRepo = errors.New("invalid repository name")

// RepoName identifies a repository as "owner/name".
type RepoName struct {
	owner string
	name  string
}

// ParseRepo validates and parses an "owner/name" repository string.
func ParseRepo(s string) (RepoName, error) {
	s = strings.TrimSpace(s)
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return RepoName{}, fmt.Errorf("%w: %q (want owner/name)", ErrInvalidRepo, s)
	}
	return RepoName{owner: owner, name: name}, nil
}

// Owner returns the repository owner.
func (r RepoName) Owner() string { return r.owner }

// Name returns the repository name.
func (r RepoName) Name() string { return r.name }

// String returns the "owner/name" form.
func (r RepoName) String() string {
	return r.owner + "/" + r.name
}

// IsZero reports whether the repo name is unset.
func (r RepoName) IsZero() bool {
	return r.owner == "" && r.name == ""
}
