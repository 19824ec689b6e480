package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minimahq/minima/internal/model"
)

func TestBuildResultWhereClause_OwnerOnly(t *testing.T) {
	ownerID := uuid.New()

	where, args := buildResultWhereClause(ownerID, model.ResultQuery{}, 1)

	assert.Equal(t, " WHERE owner_id = $1", where)
	require.Len(t, args, 1)
	assert.Equal(t, ownerID, args[0])
}

func TestBuildResultWhereClause_AllFilters(t *testing.T) {
	ownerID := uuid.New()
	status := model.RunStatusCompleted
	strategy := "cma_es"
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	where, args := buildResultWhereClause(ownerID, model.ResultQuery{
		Status:    &status,
		Strategy:  &strategy,
		StartDate: &start,
		EndDate:   &end,
		Search:    "rosenbrock",
	}, 1)

	assert.Contains(t, where, "status = $2")
	assert.Contains(t, where, "strategy = $3")
	assert.Contains(t, where, "created_at >= $4")
	assert.Contains(t, where, "created_at <= $5")
	assert.Contains(t, where, "problem_id ILIKE $6")
	require.Len(t, args, 6)
	assert.Equal(t, "%rosenbrock%", args[5])
}

func TestBuildResultWhereClause_SearchEscapesLikeMetachars(t *testing.T) {
	ownerID := uuid.New()

	_, args := buildResultWhereClause(ownerID, model.ResultQuery{Search: "50%_done"}, 1)

	require.Len(t, args, 2)
	assert.Equal(t, `%50\%\_done%`, args[1])
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
	assert.Equal(t, `\%\_`, escapeLike(`%_`))
	assert.Equal(t, "plain", escapeLike("plain"))
}
