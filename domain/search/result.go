package search

import "github.com/dupdex/dupdex/domain/issue"

// Match is one duplicate candidate with its similarity score.
type Match struct {
	number int
	title  string
	score  float64
}

// NewMatch creates a Match.
func NewMatch(number int, title string, score float64) Match {
	return Match{number: number, title: title, score: score}
}

// Number returns the candidate issue number.
func (m Match) Number() int { return m.number }

// Title returns the candidate issue title.
func (m Match) Title() string { return m.title }

// Score returns the similarity score in [0,1].
func (m Match) Score() float64 { return m.score }

// Report is the ranked duplicate result for one target issue.
type Report struct {
	repo    issue.RepoName
	number  int
	matches []Match
}

// NewReport creates a Report. Matches are defensively copied.
func NewReport(repo issue.RepoName, number int, matches []Match) Report {
	cp := make([]Match, len(matches))
	copy(cp, matches)
	return Report{repo: repo, number: number, matches: cp}
}

// Repo returns the repository searched.
func (r Report) Repo() issue.RepoName { return r.repo }

// Number returns the target issue number.
func (r Report) Number() int { return r.number }

// Matches returns the ranked matches (copy). Empty is a valid result.
func (r Report) Matches() []Match {
	cp := make([]Match, len(r.matches))
	copy(cp, r.matches)
	return cp
}
