package dto

// MatchSchema is one duplicate candidate.
type MatchSchema struct {
	Number int     `json:"number"`
	Title  string  `json:"title"`
	Score  float64 `json:"score"`
}

// DuplicatesResponse is the body of GET /api/v1/duplicates.
type DuplicatesResponse struct {
	Repo    string        `json:"repo"`
	Number  int           `json:"issue_number"`
	Matches []MatchSchema `json:"matches"`
}
