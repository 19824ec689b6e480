package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/minimahq/minima/internal/model"
)

const resultColumns = `id, owner_id, operation_id, problem_id, best_params, optimal_value,
	 strategy, evaluations_used, convergence_history, execution_time, iterations,
	 status, success, error_message, used_meta_learning, meta_runs_leveraged,
	 config, insights, domain, created_at, completed_at`

// UpsertResult inserts or updates a mirrored result keyed by
// (owner_id, operation_id). The unique constraint makes concurrent upserts of
// the same operation safe — two simultaneous syncs converge on one row.
// created_at and id of an existing row are preserved.
func (db *DB) UpsertResult(ctx context.Context, res model.OptimizationResult) (model.OptimizationResult, error) {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	if res.Status == "" {
		res.Status = model.RunStatusRunning
	}

	var out model.OptimizationResult
	err := db.pool.QueryRow(ctx,
		`INSERT INTO optimization_results (`+resultColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		 ON CONFLICT (owner_id, operation_id) DO UPDATE SET
		   problem_id = EXCLUDED.problem_id,
		   best_params = EXCLUDED.best_params,
		   optimal_value = EXCLUDED.optimal_value,
		   strategy = EXCLUDED.strategy,
		   evaluations_used = EXCLUDED.evaluations_used,
		   convergence_history = EXCLUDED.convergence_history,
		   execution_time = EXCLUDED.execution_time,
		   iterations = EXCLUDED.iterations,
		   status = EXCLUDED.status,
		   success = EXCLUDED.success,
		   error_message = EXCLUDED.error_message,
		   used_meta_learning = EXCLUDED.used_meta_learning,
		   meta_runs_leveraged = EXCLUDED.meta_runs_leveraged,
		   config = EXCLUDED.config,
		   insights = EXCLUDED.insights,
		   domain = EXCLUDED.domain,
		   completed_at = EXCLUDED.completed_at
		 RETURNING `+resultColumns,
		res.ID, res.OwnerID, res.OperationID, res.ProblemID, res.BestParams, res.OptimalValue,
		res.Strategy, res.EvaluationsUsed, res.ConvergenceHistory, res.ExecutionTime, res.Iterations,
		res.Status, res.Success, res.ErrorMessage, res.UsedMetaLearning, res.MetaRunsLeveraged,
		res.Config, res.Insights, res.Domain, res.CreatedAt, res.CompletedAt,
	).Scan(scanResultDest(&out)...)
	if err != nil {
		return model.OptimizationResult{}, fmt.Errorf("storage: upsert result %s: %w", res.OperationID, err)
	}
	return out, nil
}

// GetResult returns a single mirrored result, or ErrNotFound.
func (db *DB) GetResult(ctx context.Context, ownerID uuid.UUID, operationID string) (model.OptimizationResult, error) {
	var out model.OptimizationResult
	err := db.pool.QueryRow(ctx,
		`SELECT `+resultColumns+`
		 FROM optimization_results
		 WHERE owner_id = $1 AND operation_id = $2`,
		ownerID, operationID,
	).Scan(scanResultDest(&out)...)
	if err != nil {
		if isNoRows(err) {
			return model.OptimizationResult{}, fmt.Errorf("storage: result %s: %w", operationID, ErrNotFound)
		}
		return model.OptimizationResult{}, fmt.Errorf("storage: get result: %w", err)
	}
	return out, nil
}

// HasResult reports whether an operation is already mirrored for the owner.
// AutoSync uses this existence check to skip remote fetches for cached rows —
// the core idempotence guarantee.
func (db *DB) HasResult(ctx context.Context, ownerID uuid.UUID, operationID string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM optimization_results WHERE owner_id = $1 AND operation_id = $2
		 )`,
		ownerID, operationID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: result exists: %w", err)
	}
	return exists, nil
}

// CountResults returns the number of mirrored rows for an owner. The listing
// path uses a zero count to decide whether a first sync is needed.
func (db *DB) CountResults(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM optimization_results WHERE owner_id = $1`, ownerID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count results: %w", err)
	}
	return n, nil
}

// ListResults executes a filtered, sorted, paginated read plus owner-scope
// aggregate stats. Pagination is clamped and the sort column restricted to
// the allow-list before anything reaches SQL.
func (db *DB) ListResults(ctx context.Context, ownerID uuid.UUID, q model.ResultQuery) (model.ResultPage, error) {
	q = q.Normalize()
	where, args := buildResultWhereClause(ownerID, q, 1)

	var total int
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM optimization_results`+where, args...,
	).Scan(&total); err != nil {
		return model.ResultPage{}, fmt.Errorf("storage: count filtered results: %w", err)
	}

	orderDir := "ASC"
	if q.SortDesc {
		orderDir = "DESC"
	}
	// q.SortBy passed Normalize's allow-list; NULLS LAST keeps rows without
	// an optimal value out of the way when sorting by it.
	selectQuery := fmt.Sprintf(
		`SELECT `+resultColumns+`
		 FROM optimization_results%s ORDER BY %s %s NULLS LAST LIMIT %d OFFSET %d`,
		where, string(q.SortBy), orderDir, q.Limit, q.Offset(),
	)

	rows, err := db.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return model.ResultPage{}, fmt.Errorf("storage: list results: %w", err)
	}
	defer rows.Close()

	items, err := scanResults(rows)
	if err != nil {
		return model.ResultPage{}, err
	}
	if items == nil {
		items = []model.OptimizationResult{}
	}

	stats, err := db.OwnerStats(ctx, ownerID)
	if err != nil {
		return model.ResultPage{}, err
	}

	return model.ResultPage{
		Items:   items,
		Total:   total,
		Page:    q.Page,
		Limit:   q.Limit,
		HasMore: q.Offset()+len(items) < total,
		Stats:   stats,
	}, nil
}

// OwnerStats aggregates counts and averages over the unfiltered owner scope,
// so dashboard summary cards stay stable while the table is filtered.
func (db *DB) OwnerStats(ctx context.Context, ownerID uuid.UUID) (model.ResultStats, error) {
	var s model.ResultStats
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE success),
		        COUNT(*) FILTER (WHERE status = 'failed'),
		        COUNT(*) FILTER (WHERE status = 'running'),
		        AVG(execution_time),
		        AVG(evaluations_used)
		 FROM optimization_results WHERE owner_id = $1`,
		ownerID,
	).Scan(&s.Total, &s.Successful, &s.Failed, &s.Running, &s.AvgExecutionTime, &s.AvgEvaluations)
	if err != nil {
		return model.ResultStats{}, fmt.Errorf("storage: owner stats: %w", err)
	}
	return s, nil
}

// buildResultWhereClause constructs the WHERE clause and ordered args for a
// result query. startIdx is the first positional parameter number.
func buildResultWhereClause(ownerID uuid.UUID, q model.ResultQuery, startIdx int) (string, []any) {
	clauses := []string{fmt.Sprintf("owner_id = $%d", startIdx)}
	args := []any{ownerID}
	idx := startIdx + 1

	if q.Status != nil {
		clauses = append(clauses, fmt.Sprintf("status = $%d", idx))
		args = append(args, string(*q.Status))
		idx++
	}
	if q.Strategy != nil {
		clauses = append(clauses, fmt.Sprintf("strategy = $%d", idx))
		args = append(args, *q.Strategy)
		idx++
	}
	if q.StartDate != nil {
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", idx))
		args = append(args, *q.StartDate)
		idx++
	}
	if q.EndDate != nil {
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", idx))
		args = append(args, *q.EndDate)
		idx++
	}
	if q.Search != "" {
		clauses = append(clauses, fmt.Sprintf("problem_id ILIKE $%d", idx))
		args = append(args, "%"+escapeLike(q.Search)+"%")
		idx++
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

// escapeLike escapes LIKE metacharacters in user-supplied search text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func scanResultDest(r *model.OptimizationResult) []any {
	return []any{
		&r.ID, &r.OwnerID, &r.OperationID, &r.ProblemID, &r.BestParams, &r.OptimalValue,
		&r.Strategy, &r.EvaluationsUsed, &r.ConvergenceHistory, &r.ExecutionTime, &r.Iterations,
		&r.Status, &r.Success, &r.ErrorMessage, &r.UsedMetaLearning, &r.MetaRunsLeveraged,
		&r.Config, &r.Insights, &r.Domain, &r.CreatedAt, &r.CompletedAt,
	}
}

func scanResults(rows pgx.Rows) ([]model.OptimizationResult, error) {
	var out []model.OptimizationResult
	for rows.Next() {
		var r model.OptimizationResult
		if err := rows.Scan(scanResultDest(&r)...); err != nil {
			return nil, fmt.Errorf("storage: scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
