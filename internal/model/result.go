// Package model defines the core domain types for Minima.
//
// Types correspond directly to database tables and API payloads.
// Remote-service payloads are loosely typed (map[string]any) at the client
// boundary; everything past the transformer uses these strong types.
package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of an optimization run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// ValidRunStatus reports whether s is one of the known lifecycle states.
func ValidRunStatus(s RunStatus) bool {
	switch s {
	case RunStatusRunning, RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// OptimizationResult is a locally mirrored optimization run.
// (OwnerID, OperationID) is unique — syncs update in place, never duplicate.
// Rows are created and updated by the sync orchestrator and never deleted.
type OptimizationResult struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	OperationID string    `json:"operation_id"`
	ProblemID   *string   `json:"problem_id,omitempty"`

	BestParams         []float64 `json:"best_params,omitempty"`
	OptimalValue       *float64  `json:"optimal_value,omitempty"`
	Strategy           *string   `json:"strategy,omitempty"`
	EvaluationsUsed    *int      `json:"evaluations_used,omitempty"`
	ConvergenceHistory []float64 `json:"convergence_history,omitempty"`
	ExecutionTime      *float64  `json:"execution_time,omitempty"` // seconds
	Iterations         *int      `json:"iterations,omitempty"`

	Status       RunStatus `json:"status"`
	Success      bool      `json:"success"`
	ErrorMessage *string   `json:"error_message,omitempty"`

	UsedMetaLearning  bool `json:"used_meta_learning"`
	MetaRunsLeveraged *int `json:"meta_runs_leveraged,omitempty"`

	Config   map[string]any `json:"config,omitempty"`
	Insights map[string]any `json:"insights,omitempty"`
	Domain   *string        `json:"domain,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ResultSort names a column results may be ordered by. Only values in the
// allow-list below reach SQL — anything else falls back to created_at.
type ResultSort string

const (
	SortCreatedAt       ResultSort = "created_at"
	SortOptimalValue    ResultSort = "optimal_value"
	SortEvaluationsUsed ResultSort = "evaluations_used"
)

// ValidResultSort reports whether s is an allowed sort column.
func ValidResultSort(s ResultSort) bool {
	switch s {
	case SortCreatedAt, SortOptimalValue, SortEvaluationsUsed:
		return true
	}
	return false
}

const (
	// DefaultPageLimit is used when the caller omits limit.
	DefaultPageLimit = 20
	// MaxPageLimit caps a single page of results.
	MaxPageLimit = 100
)

// ResultQuery describes a filtered, sorted, paginated read over the
// result cache. Zero values mean "no filter".
type ResultQuery struct {
	Page      int
	Limit     int
	Status    *RunStatus
	Strategy  *string
	StartDate *time.Time
	EndDate   *time.Time
	Search    string // matched against problem_id
	SortBy    ResultSort
	SortDesc  bool
}

// Normalize clamps pagination into bounds (limit to [1,100], page to >=1)
// and discards sort columns outside the allow-list. Called once at the query
// boundary so the storage layer can trust the values. An absent limit is
// defaulted to DefaultPageLimit by the HTTP layer before it gets here; a
// requested out-of-range value is clamped, not replaced.
func (q ResultQuery) Normalize() ResultQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 1
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	if !ValidResultSort(q.SortBy) {
		q.SortBy = SortCreatedAt
	}
	return q
}

// Offset returns the row offset implied by Page and Limit.
func (q ResultQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// ResultStats aggregates over the full owner scope (never the filtered page),
// so dashboard summary cards stay stable while the table is filtered.
type ResultStats struct {
	Total            int      `json:"total"`
	Successful       int      `json:"successful"`
	Failed           int      `json:"failed"`
	Running          int      `json:"running"`
	AvgExecutionTime *float64 `json:"avg_execution_time,omitempty"`
	AvgEvaluations   *float64 `json:"avg_evaluations,omitempty"`
}

// ResultPage is a single page of mirrored results plus owner-scope stats.
type ResultPage struct {
	Items   []OptimizationResult `json:"items"`
	Total   int                  `json:"total"`
	Page    int                  `json:"page"`
	Limit   int                  `json:"limit"`
	HasMore bool                 `json:"has_more"`
	Stats   ResultStats          `json:"stats"`
}
