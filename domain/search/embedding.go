// Package search defines the embedding cache entries and the similarity
// ranking used to surface duplicate candidates.
package search

import (
	"time"

	"github.com/dupdex/dupdex/domain/issue"
)

// Embedding is one cached entry of the embedding store: the issue's vector
// together with the fingerprint that produced it.
type Embedding struct {
	repo        issue.RepoName
	number      int
	title       string
	fingerprint string
	vector      []float64
	state       issue.State
	refreshedAt time.Time
}

// NewEmbedding creates an Embedding. The vector is defensively copied.
func NewEmbedding(repo issue.RepoName, number int, title, fingerprint string, vector []float64, state issue.State, refreshedAt time.Time) Embedding {
	cp := make([]float64, len(vector))
	copy(cp, vector)
	return Embedding{
		repo:        repo,
		number:      number,
		title:       title,
		fingerprint: fingerprint,
		vector:      cp,
		state:       state,
		refreshedAt: refreshedAt,
	}
}

// Repo returns the repository the entry belongs to.
func (e Embedding) Repo() issue.RepoName { return e.repo }

// Number returns the issue number.
func (e Embedding) Number() int { return e.number }

// Title returns the issue title captured at refresh time.
func (e Embedding) Title() string { return e.title }

// Fingerprint returns the content fingerprint the vector was computed from.
func (e Embedding) Fingerprint() string { return e.fingerprint }

// Vector returns the embedding vector (copy).
func (e Embedding) Vector() []float64 {
	cp := make([]float64, len(e.vector))
	copy(cp, e.vector)
	return cp
}

// State returns the cached issue state.
func (e Embedding) State() issue.State { return e.state }

// RefreshedAt returns the time the entry was last written.
func (e Embedding) RefreshedAt() time.Time { return e.refreshedAt }
