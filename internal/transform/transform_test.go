package transform

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minimahq/minima/internal/model"
	"github.com/minimahq/minima/internal/remote"
)

func TestToResult_StatusInference(t *testing.T) {
	ownerID := uuid.New()

	tests := []struct {
		name       string
		payload    remote.Payload
		wantStatus model.RunStatus
	}{
		{
			name:       "explicit status wins over optimal value",
			payload:    remote.Payload{"operation_id": "op_1", "status": "cancelled", "optimal_value": 0.5},
			wantStatus: model.RunStatusCancelled,
		},
		{
			name:       "optimal value implies completed",
			payload:    remote.Payload{"operation_id": "op_1", "optimal_value": 0.5},
			wantStatus: model.RunStatusCompleted,
		},
		{
			name:       "error implies failed",
			payload:    remote.Payload{"operation_id": "op_1", "error": "diverged"},
			wantStatus: model.RunStatusFailed,
		},
		{
			name:       "default running",
			payload:    remote.Payload{"operation_id": "op_1"},
			wantStatus: model.RunStatusRunning,
		},
		{
			name:       "unknown status string falls back to inference",
			payload:    remote.Payload{"operation_id": "op_1", "status": "exploded", "optimal_value": 0.5},
			wantStatus: model.RunStatusCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ToResult(tt.payload, ownerID)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, ownerID, res.OwnerID)
		})
	}
}

func TestToResult_SuccessDefault(t *testing.T) {
	ownerID := uuid.New()

	t.Run("explicit success passes through", func(t *testing.T) {
		res := ToResult(remote.Payload{"operation_id": "op_1", "optimal_value": 0.5, "success": false}, ownerID)
		assert.False(t, res.Success)
	})

	t.Run("completed without error defaults true", func(t *testing.T) {
		res := ToResult(remote.Payload{"operation_id": "op_1", "optimal_value": 0.5}, ownerID)
		assert.True(t, res.Success)
	})

	t.Run("completed with error defaults false", func(t *testing.T) {
		res := ToResult(remote.Payload{"operation_id": "op_1", "status": "completed", "error": "tolerance not met"}, ownerID)
		assert.False(t, res.Success)
	})

	t.Run("running defaults false", func(t *testing.T) {
		res := ToResult(remote.Payload{"operation_id": "op_1"}, ownerID)
		assert.False(t, res.Success)
	})
}

func TestToResult_CompletedAtDefault(t *testing.T) {
	ownerID := uuid.New()

	t.Run("set to now when status freshly resolves to completed", func(t *testing.T) {
		before := time.Now().UTC()
		res := ToResult(remote.Payload{"operation_id": "op_1", "optimal_value": 0.5}, ownerID)
		require.NotNil(t, res.CompletedAt)
		assert.False(t, res.CompletedAt.Before(before))
	})

	t.Run("payload timestamp wins", func(t *testing.T) {
		res := ToResult(remote.Payload{
			"operation_id":  "op_1",
			"optimal_value": 0.5,
			"completed_at":  "2026-03-01T12:00:00Z",
		}, ownerID)
		require.NotNil(t, res.CompletedAt)
		assert.Equal(t, 2026, res.CompletedAt.Year())
	})

	t.Run("explicit completed status gets no synthetic timestamp", func(t *testing.T) {
		res := ToResult(remote.Payload{"operation_id": "op_1", "status": "completed"}, ownerID)
		assert.Nil(t, res.CompletedAt)
	})
}

func TestToResult_FieldCoercion(t *testing.T) {
	ownerID := uuid.New()

	res := ToResult(remote.Payload{
		"operation_id":        "op_1",
		"problem_id":          "rosenbrock-10d",
		"best_params":         []any{1.0, 2.0, "junk", 3.0},
		"optimal_value":       0.0001,
		"strategy_used":       "cma_es",
		"evaluations_used":    500.0,
		"convergence_history": []any{10.0, 1.0, 0.1},
		"execution_time":      12.5,
		"iterations":          42.0,
		"used_meta_learning":  true,
		"meta_runs_leveraged": 3.0,
		"config":              map[string]any{"budget": 500.0},
		"insights":            map[string]any{"plateau": true},
		"domain":              "ml_tuning",
	}, ownerID)

	assert.Equal(t, "op_1", res.OperationID)
	require.NotNil(t, res.ProblemID)
	assert.Equal(t, "rosenbrock-10d", *res.ProblemID)
	assert.Equal(t, []float64{1, 2, 3}, res.BestParams)
	require.NotNil(t, res.Strategy)
	assert.Equal(t, "cma_es", *res.Strategy)
	require.NotNil(t, res.EvaluationsUsed)
	assert.Equal(t, 500, *res.EvaluationsUsed)
	assert.Equal(t, []float64{10, 1, 0.1}, res.ConvergenceHistory)
	require.NotNil(t, res.ExecutionTime)
	assert.Equal(t, 12.5, *res.ExecutionTime)
	assert.True(t, res.UsedMetaLearning)
	require.NotNil(t, res.MetaRunsLeveraged)
	assert.Equal(t, 3, *res.MetaRunsLeveraged)
	assert.Equal(t, 500.0, res.Config["budget"])
	assert.Equal(t, true, res.Insights["plateau"])
}

func TestToResult_NeverPanicsOnGarbage(t *testing.T) {
	ownerID := uuid.New()

	payloads := []remote.Payload{
		nil,
		{},
		{"operation_id": 42},
		{"optimal_value": "not a number"},
		{"best_params": "not a slice"},
		{"config": []any{"not", "a", "map"}},
		{"completed_at": "not a timestamp"},
		{"status": 7},
	}

	for _, p := range payloads {
		assert.NotPanics(t, func() {
			res := ToResult(p, ownerID)
			assert.Equal(t, ownerID, res.OwnerID)
		})
	}
}

func TestToResult_AltKeySpellings(t *testing.T) {
	ownerID := uuid.New()

	res := ToResult(remote.Payload{"id": "op_alt", "strategy": "bayesian"}, ownerID)
	assert.Equal(t, "op_alt", res.OperationID)
	require.NotNil(t, res.Strategy)
	assert.Equal(t, "bayesian", *res.Strategy)
}
