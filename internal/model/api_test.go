package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOperationID(t *testing.T) {
	t.Run("accepts typical remote ids", func(t *testing.T) {
		for _, id := range []string{"op_1", "run-2026.08", "OP:abc123", "a"} {
			assert.NoError(t, ValidateOperationID(id), id)
		}
	})

	t.Run("rejects empty", func(t *testing.T) {
		assert.Error(t, ValidateOperationID(""))
	})

	t.Run("rejects path separators and spaces", func(t *testing.T) {
		for _, id := range []string{"a/b", "a b", "a\n", "../etc", "a?x=1"} {
			assert.Error(t, ValidateOperationID(id), id)
		}
	})

	t.Run("rejects oversized", func(t *testing.T) {
		assert.Error(t, ValidateOperationID(strings.Repeat("a", MaxOperationIDLen+1)))
		assert.NoError(t, ValidateOperationID(strings.Repeat("a", MaxOperationIDLen)))
	})
}

func TestGenerateCredentialKey(t *testing.T) {
	plaintext, prefix, err := GenerateCredentialKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(plaintext, "mn_"))
	assert.True(t, strings.HasPrefix(plaintext, prefix))
	assert.Len(t, prefix, len("mn_")+credentialPrefixChars)
	assert.Len(t, plaintext, len("mn_")+2*credentialSecretLen)

	// Two generations never collide.
	second, _, err := GenerateCredentialKey()
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, second)
}

func TestResultQueryNormalize(t *testing.T) {
	t.Run("clamps limit to [1,100]", func(t *testing.T) {
		// A limit of 0 is an out-of-range request, not "use the default":
		// it clamps to the lower bound.
		q := ResultQuery{Page: 1, Limit: 0}.Normalize()
		assert.Equal(t, 1, q.Limit)

		q = ResultQuery{Page: 1, Limit: -5}.Normalize()
		assert.Equal(t, 1, q.Limit)

		q = ResultQuery{Page: 1, Limit: 500}.Normalize()
		assert.Equal(t, MaxPageLimit, q.Limit)
	})

	t.Run("clamps page to >=1", func(t *testing.T) {
		for _, page := range []int{0, -1, -100} {
			q := ResultQuery{Page: page, Limit: 20}.Normalize()
			assert.Equal(t, 1, q.Page)
			assert.Equal(t, 0, q.Offset())
		}
	})

	t.Run("discards sort columns outside the allow-list", func(t *testing.T) {
		q := ResultQuery{SortBy: ResultSort("owner_id; DROP TABLE optimization_results")}.Normalize()
		assert.Equal(t, SortCreatedAt, q.SortBy)

		q = ResultQuery{SortBy: SortOptimalValue}.Normalize()
		assert.Equal(t, SortOptimalValue, q.SortBy)
	})

	t.Run("offset follows page and limit", func(t *testing.T) {
		q := ResultQuery{Page: 3, Limit: 25}.Normalize()
		assert.Equal(t, 50, q.Offset())
	})
}
