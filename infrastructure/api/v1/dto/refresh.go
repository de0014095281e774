// Package dto defines the request and response bodies of the v1 API.
package dto

// RefreshRequest is the body of POST /api/v1/refresh.
type RefreshRequest struct {
	Repo  string `json:"repo"`
	Force bool   `json:"force,omitempty"`
}

// RefreshResponse reports the outcome of a refresh.
type RefreshResponse struct {
	Repo      string `json:"repo"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}
