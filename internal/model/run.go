package model

import "time"

// RunStatus tracks a scrape run through its lifecycle.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunMetrics is the outcome record reported back to the caller of a run.
type RunMetrics struct {
	RolesFound      int     `json:"roles_found"`
	RolesSkipped    int     `json:"roles_skipped"`
	RolesNew        int     `json:"roles_new"`
	RolesURLChanged int     `json:"roles_url_changed"`
	RolesReopened   int     `json:"roles_reopened"`
	RolesFailed     int     `json:"roles_failed"`
	PagesVisited    int     `json:"pages_visited"`
	TotalTokensUsed int     `json:"total_tokens_used"`
	TotalCostUSD    float64 `json:"total_cost_usd"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ScrapeRun is one recorded invocation of the discovery pipeline for a
// listing URL. History is pruned to the most recent 50 rows per listing.
type ScrapeRun struct {
	ID          string      `json:"id" db:"id"`
	FirmID      int64       `json:"firm_id" db:"firm_id"`
	ListingURL  string      `json:"listing_url" db:"listing_url"`
	Status      RunStatus   `json:"status" db:"status"`
	Metrics     *RunMetrics `json:"metrics,omitempty" db:"metrics"`
	Error       string      `json:"error,omitempty" db:"error"`
	StartedAt   time.Time   `json:"started_at" db:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
}
