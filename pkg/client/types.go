package client

import "time"

// Health is the GET /health response.
type Health struct {
	Status string `json:"status"`
}

// Status is the GET /status response.
type Status struct {
	Status        string  `json:"status"`
	Version       string  `json:"version,omitempty"`
	Mode          string  `json:"mode"`
	Documents     int     `json:"documents"`
	TotalQueries  uint64  `json:"total_queries"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// QueryMetrics is the per-query record returned with answers and kept in
// the dashboard history.
type QueryMetrics struct {
	ID              string    `json:"id"`
	Query           string    `json:"query,omitempty"`
	DocumentKey     string    `json:"document_key,omitempty"`
	QueryType       string    `json:"query_type"`
	Confidence      float64   `json:"confidence"`
	TiersLoaded     []string  `json:"tiers_loaded"`
	BytesReturned   int       `json:"bytes_returned"`
	EstimatedTokens float64   `json:"estimated_tokens"`
	BaselineTokens  float64   `json:"baseline_tokens"`
	TokensSaved     float64   `json:"tokens_saved"`
	SavingRate      float64   `json:"saving_rate"`
	LatencyMS       float64   `json:"latency_ms"`
	Timestamp       time.Time `json:"timestamp"`
}

// Answer is the POST /api/v1/answer response.
type Answer struct {
	Content string       `json:"content"`
	Metrics QueryMetrics `json:"metrics"`
}

// DigestMetadata describes the size reduction of a generated digest.
type DigestMetadata struct {
	OriginalSize  int       `json:"original_size"`
	SummarySize   int       `json:"summary_size"`
	OverviewSize  int       `json:"overview_size"`
	SummaryRatio  float64   `json:"summary_ratio"`
	OverviewRatio float64   `json:"overview_ratio"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// Digest is the POST /api/v1/summarize response.
type Digest struct {
	Summary  string         `json:"summary"`
	Overview string         `json:"overview"`
	Metadata DigestMetadata `json:"metadata"`
}

// IngestResult is the POST /api/v1/ingest response.
type IngestResult struct {
	Key      string         `json:"key"`
	Metadata DigestMetadata `json:"metadata"`
}

// Classification is the POST /api/v1/classify response.
type Classification struct {
	PrimaryType string             `json:"primary_type"`
	Confidence  float64            `json:"confidence"`
	Scores      map[string]float64 `json:"scores,omitempty"`
}

// TypeStats is the per-intent slice of the dashboard aggregates.
type TypeStats struct {
	Count             uint64  `json:"count"`
	AverageSavingRate float64 `json:"average_saving_rate"`
}

// Dashboard is the GET /api/v1/stats response.
type Dashboard struct {
	StartedAt             time.Time            `json:"started_at"`
	UptimeSeconds         float64              `json:"uptime_seconds"`
	TotalQueries          uint64               `json:"total_queries"`
	AverageSavingRate     float64              `json:"average_saving_rate"`
	TotalTokensReturned   float64              `json:"total_tokens_returned"`
	TotalBaselineTokens   float64              `json:"total_baseline_tokens"`
	TotalTokensSaved      float64              `json:"total_tokens_saved"`
	EstimatedCostSavedUSD float64              `json:"estimated_cost_saved_usd"`
	QueryTypes            map[string]TypeStats `json:"query_types"`
	Recent                []QueryMetrics       `json:"recent"`
}
