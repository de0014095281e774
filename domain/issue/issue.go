// Package issue defines the issue snapshot consumed from the tracker and the
// canonical content representation used for embedding and change detection.
package issue

import "time"

// State represents the lifecycle state of an issue.
type State string

// State values.
const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// Issue is an immutable snapshot of one tracker issue, valid for a single
// refresh pass.
type Issue struct {
	repo      RepoName
	number    int
	title     string
	body      string
	comments  []string
	state     State
	updatedAt time.Time
}

// NewIssue creates an Issue snapshot. Comments are defensively copied and
// keep their original order.
func NewIssue(repo RepoName, number int, title, body string, comments []string, state State, updatedAt time.Time) Issue {
	cp := make([]string, len(comments))
	copy(cp, comments)
	return Issue{
		repo:      repo,
		number:    number,
		title:     title,
		body:      body,
		comments:  cp,
		state:     state,
		updatedAt: updatedAt,
	}
}

// Repo returns the repository the issue belongs to.
func (i Issue) Repo() RepoName { return i.repo }

// Number returns the issue number.
func (i Issue) Number() int { return i.number }

// Title returns the issue title.
func (i Issue) Title() string { return i.title }

// Body returns the issue body.
func (i Issue) Body() string { return i.body }

// Comments returns the ordered comment bodies (copy).
func (i Issue) Comments() []string {
	cp := make([]string, len(i.comments))
	copy(cp, i.comments)
	return cp
}

// State returns the issue state.
func (i Issue) State() State { return i.state }

// UpdatedAt returns the tracker's last-modified timestamp.
func (i Issue) UpdatedAt() time.Time { return i.updatedAt }

// IsOpen reports whether the issue is open.
func (i Issue) IsOpen() bool { return i.state == StateOpen }
