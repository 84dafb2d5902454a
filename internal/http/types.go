// Package http provides the HTTP API for tierd.
package http

import "github.com/fyrsmithlabs/tierd/internal/digest"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version,omitempty"`
	Mode          string  `json:"mode"`
	Documents     int     `json:"documents"`
	TotalQueries  uint64  `json:"total_queries"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// AnswerRequest is the request body for POST /api/v1/answer.
type AnswerRequest struct {
	Query string `json:"query"`
	// DocumentKey narrows retrieval to one document. Empty means the most
	// recently stored document.
	DocumentKey string `json:"document_key"`
}

// SummarizeRequest is the request body for POST /api/v1/summarize.
type SummarizeRequest struct {
	Content string `json:"content"`
}

// IngestRequest is the request body for POST /api/v1/ingest.
type IngestRequest struct {
	Key     string `json:"key"`
	Content string `json:"content"`
}

// IngestResponse is the response body for POST /api/v1/ingest.
type IngestResponse struct {
	Key      string          `json:"key"`
	Metadata digest.Metadata `json:"metadata"`
}

// ClassifyRequest is the request body for POST /api/v1/classify.
type ClassifyRequest struct {
	Query string `json:"query"`
}

// DocumentsResponse is the response body for GET /api/v1/documents.
type DocumentsResponse struct {
	Documents []string `json:"documents"`
}
