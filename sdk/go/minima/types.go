package minima

import (
	"time"

	"github.com/google/uuid"
)

// Result is a mirrored optimization run as returned by the API.
type Result struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	OperationID string    `json:"operation_id"`
	ProblemID   *string   `json:"problem_id,omitempty"`

	BestParams         []float64 `json:"best_params,omitempty"`
	OptimalValue       *float64  `json:"optimal_value,omitempty"`
	Strategy           *string   `json:"strategy,omitempty"`
	EvaluationsUsed    *int      `json:"evaluations_used,omitempty"`
	ConvergenceHistory []float64 `json:"convergence_history,omitempty"`
	ExecutionTime      *float64  `json:"execution_time,omitempty"`
	Iterations         *int      `json:"iterations,omitempty"`

	Status       string  `json:"status"`
	Success      bool    `json:"success"`
	ErrorMessage *string `json:"error_message,omitempty"`

	UsedMetaLearning  bool `json:"used_meta_learning"`
	MetaRunsLeveraged *int `json:"meta_runs_leveraged,omitempty"`

	Config   map[string]any `json:"config,omitempty"`
	Insights map[string]any `json:"insights,omitempty"`
	Domain   *string        `json:"domain,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ResultStats aggregates over the caller's full result set, independent of
// any filters applied to the page.
type ResultStats struct {
	Total            int      `json:"total"`
	Successful       int      `json:"successful"`
	Failed           int      `json:"failed"`
	Running          int      `json:"running"`
	AvgExecutionTime *float64 `json:"avg_execution_time,omitempty"`
	AvgEvaluations   *float64 `json:"avg_evaluations,omitempty"`
}

// ResultPage is one page of results plus owner-scope stats.
type ResultPage struct {
	Items   []Result    `json:"items"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
	HasMore bool        `json:"has_more"`
	Stats   ResultStats `json:"stats"`
}

// ResultsOptions filters and paginates a Results call. Zero values are
// omitted from the query string.
type ResultsOptions struct {
	Page      int
	Limit     int
	Status    string
	Strategy  string
	StartDate time.Time
	EndDate   time.Time
	Search    string
	SortBy    string
	SortOrder string // "asc" or "desc"
	Sync      bool   // refresh from the optimizer before listing
}

// SyncOutcome is the per-item result of a batch sync.
type SyncOutcome struct {
	OperationID string `json:"operation_id"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

// SyncSummary aggregates a batch sync.
type SyncSummary struct {
	Synced   int           `json:"synced"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Outcomes []SyncOutcome `json:"outcomes,omitempty"`
}

// Key is a stored optimizer credential. Only the display prefix is ever
// returned after creation.
type Key struct {
	ID         uuid.UUID  `json:"id"`
	OwnerID    uuid.UUID  `json:"owner_id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// KeyWithPlaintext is returned once, at creation, with the full key.
type KeyWithPlaintext struct {
	Key
	Plaintext string `json:"key"`
}

// KeyList is the response to ListKeys.
type KeyList struct {
	Keys  []Key `json:"keys"`
	Total int   `json:"total"`
}

// HealthStatus reports service and database health.
type HealthStatus struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	UptimeSeconds int    `json:"uptime_seconds"`
}
