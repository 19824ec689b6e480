package storage_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minimahq/minima/internal/model"
	"github.com/minimahq/minima/internal/storage"
	"github.com/minimahq/minima/internal/testutil"
)

// testDB holds a shared test database connection for all tests in this package.
var testDB *storage.DB

func TestMain(m *testing.M) {
	tc := testutil.MustStartPostgres()
	defer tc.Terminate()

	var err error
	testDB, err = tc.NewTestDB(context.Background(), testutil.TestLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up test database: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

func newResult(ownerID uuid.UUID, operationID string) model.OptimizationResult {
	val := 0.0123
	strategy := "cma_es"
	evals := 480
	return model.OptimizationResult{
		OwnerID:         ownerID,
		OperationID:     operationID,
		OptimalValue:    &val,
		Strategy:        &strategy,
		EvaluationsUsed: &evals,
		Status:          model.RunStatusCompleted,
		Success:         true,
	}
}

func TestUpsertResult_InsertThenUpdateInPlace(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	first := model.OptimizationResult{
		OwnerID:     ownerID,
		OperationID: "op_upd_1",
		Status:      model.RunStatusRunning,
	}
	created, err := testDB.UpsertResult(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, created.Status)

	// Second sync sees the run complete. Must update the same row, not
	// insert a second one.
	val := 1e-4
	now := time.Now().UTC().Truncate(time.Microsecond)
	second := model.OptimizationResult{
		OwnerID:      ownerID,
		OperationID:  "op_upd_1",
		OptimalValue: &val,
		Status:       model.RunStatusCompleted,
		Success:      true,
		CompletedAt:  &now,
	}
	updated, err := testDB.UpsertResult(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, model.RunStatusCompleted, updated.Status)
	require.NotNil(t, updated.OptimalValue)
	assert.InDelta(t, 1e-4, *updated.OptimalValue, 1e-12)

	n, err := testDB.CountResults(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertResult_JSONFieldsRoundTrip(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	res := newResult(ownerID, "op_json_1")
	res.BestParams = []float64{0.5, -1.25, 3}
	res.ConvergenceHistory = []float64{10, 1, 0.1}
	res.Config = map[string]any{"budget": float64(500), "seed": float64(42)}
	res.Insights = map[string]any{"plateau": true}

	stored, err := testDB.UpsertResult(ctx, res)
	require.NoError(t, err)

	got, err := testDB.GetResult(ctx, ownerID, "op_json_1")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, got.ID)
	assert.Equal(t, []float64{0.5, -1.25, 3}, got.BestParams)
	assert.Equal(t, []float64{10, 1, 0.1}, got.ConvergenceHistory)
	assert.Equal(t, float64(500), got.Config["budget"])
	assert.Equal(t, true, got.Insights["plateau"])
}

func TestGetResult_NotFound(t *testing.T) {
	_, err := testDB.GetResult(context.Background(), uuid.New(), "op_missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHasResult(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	exists, err := testDB.HasResult(ctx, ownerID, "op_has_1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = testDB.UpsertResult(ctx, newResult(ownerID, "op_has_1"))
	require.NoError(t, err)

	exists, err = testDB.HasResult(ctx, ownerID, "op_has_1")
	require.NoError(t, err)
	assert.True(t, exists)

	// Scoped by owner: another user never sees the row.
	exists, err = testDB.HasResult(ctx, uuid.New(), "op_has_1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListResults_FilterSortPaginate(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	strategies := []string{"cma_es", "cma_es", "bayesian", "nelder_mead"}
	values := []float64{3.0, 1.0, 2.0, 4.0}
	for i := range strategies {
		res := newResult(ownerID, fmt.Sprintf("op_list_%d", i))
		res.Strategy = &strategies[i]
		v := values[i]
		res.OptimalValue = &v
		if i == 3 {
			res.Status = model.RunStatusFailed
			res.Success = false
		}
		_, err := testDB.UpsertResult(ctx, res)
		require.NoError(t, err)
	}

	t.Run("strategy filter", func(t *testing.T) {
		strategy := "cma_es"
		page, err := testDB.ListResults(ctx, ownerID, model.ResultQuery{
			Page: 1, Limit: 20, Strategy: &strategy,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		assert.Len(t, page.Items, 2)
	})

	t.Run("status filter", func(t *testing.T) {
		status := model.RunStatusFailed
		page, err := testDB.ListResults(ctx, ownerID, model.ResultQuery{
			Page: 1, Limit: 20, Status: &status,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
	})

	t.Run("sort by optimal_value ascending", func(t *testing.T) {
		page, err := testDB.ListResults(ctx, ownerID, model.ResultQuery{
			Page: 1, Limit: 20, SortBy: model.SortOptimalValue,
		})
		require.NoError(t, err)
		require.Len(t, page.Items, 4)
		assert.InDelta(t, 1.0, *page.Items[0].OptimalValue, 1e-9)
		assert.InDelta(t, 4.0, *page.Items[3].OptimalValue, 1e-9)
	})

	t.Run("pagination clamps and has_more", func(t *testing.T) {
		// Limit 0 clamps to the lower bound of 1, page 0 to 1.
		page, err := testDB.ListResults(ctx, ownerID, model.ResultQuery{Page: 0, Limit: 0})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 1, page.Limit)
		assert.Len(t, page.Items, 1)
		assert.True(t, page.HasMore)

		page, err = testDB.ListResults(ctx, ownerID, model.ResultQuery{Page: 1, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.True(t, page.HasMore)

		page, err = testDB.ListResults(ctx, ownerID, model.ResultQuery{Page: 1, Limit: 500})
		require.NoError(t, err)
		assert.Equal(t, model.MaxPageLimit, page.Limit)
		assert.False(t, page.HasMore)
	})

	t.Run("stats cover the unfiltered owner scope", func(t *testing.T) {
		strategy := "bayesian"
		page, err := testDB.ListResults(ctx, ownerID, model.ResultQuery{
			Page: 1, Limit: 20, Strategy: &strategy,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
		// The filter narrowed the table, not the summary cards.
		assert.Equal(t, 4, page.Stats.Total)
		assert.Equal(t, 3, page.Stats.Successful)
		assert.Equal(t, 1, page.Stats.Failed)
	})
}

func TestCredentialLifecycle(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	first, err := testDB.CreateCredential(ctx, model.Credential{
		OwnerID:    ownerID,
		Name:       "production",
		Prefix:     "mn_11111111",
		Ciphertext: "aa:bb:cc",
	})
	require.NoError(t, err)
	assert.True(t, first.Active)

	// Ensure distinct created_at ordering.
	time.Sleep(10 * time.Millisecond)

	second, err := testDB.CreateCredential(ctx, model.Credential{
		OwnerID:    ownerID,
		Name:       "staging",
		Prefix:     "mn_22222222",
		Ciphertext: "dd:ee:ff",
	})
	require.NoError(t, err)

	t.Run("list newest first", func(t *testing.T) {
		creds, err := testDB.ListCredentials(ctx, ownerID)
		require.NoError(t, err)
		require.Len(t, creds, 2)
		assert.Equal(t, second.ID, creds[0].ID)
		assert.Equal(t, first.ID, creds[1].ID)
	})

	t.Run("revoke flips active and is one-way", func(t *testing.T) {
		revoked, err := testDB.RevokeCredential(ctx, ownerID, second.ID)
		require.NoError(t, err)
		assert.False(t, revoked.Active)

		// Revoking again is a no-op success; the key stays inactive.
		again, err := testDB.RevokeCredential(ctx, ownerID, second.ID)
		require.NoError(t, err)
		assert.False(t, again.Active)

		active, err := testDB.ActiveCredentials(ctx, ownerID)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, first.ID, active[0].ID)
	})

	t.Run("revoke scoped by owner", func(t *testing.T) {
		_, err := testDB.RevokeCredential(ctx, uuid.New(), first.ID)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("touch last used", func(t *testing.T) {
		require.NoError(t, testDB.TouchCredentialLastUsed(ctx, first.ID))
		creds, err := testDB.ListCredentials(ctx, ownerID)
		require.NoError(t, err)
		require.Len(t, creds, 2)
		assert.NotNil(t, creds[1].LastUsedAt)
	})
}
