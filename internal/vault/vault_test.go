package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresMasterSecret(t *testing.T) {
	_, err := New("")
	require.ErrorIs(t, err, ErrNoMasterSecret)
}

func TestSealOpenRoundTrip(t *testing.T) {
	v, err := New("test-master-secret")
	require.NoError(t, err)

	stored, err := v.Seal("mn_deadbeef0123456789")
	require.NoError(t, err)

	parts := strings.Split(stored, ":")
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 2*nonceLen)
	assert.Len(t, parts[1], 2*tagLen)

	plaintext, err := v.Open(stored)
	require.NoError(t, err)
	assert.Equal(t, "mn_deadbeef0123456789", plaintext)
}

func TestSealUsesFreshNonce(t *testing.T) {
	v, err := New("test-master-secret")
	require.NoError(t, err)

	a, err := v.Seal("same-plaintext")
	require.NoError(t, err)
	b, err := v.Seal("same-plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestOpenFailsClosedOnTampering(t *testing.T) {
	v, err := New("test-master-secret")
	require.NoError(t, err)

	stored, err := v.Seal("mn_secret")
	require.NoError(t, err)

	// Flip one hex digit in each section; every variant must fail with
	// ErrIntegrity and never return plaintext.
	for _, idx := range []int{0, 2*nonceLen + 1, len(stored) - 1} {
		tampered := []byte(stored)
		if tampered[idx] == '0' {
			tampered[idx] = '1'
		} else {
			tampered[idx] = '0'
		}
		got, err := v.Open(string(tampered))
		assert.ErrorIs(t, err, ErrIntegrity)
		assert.Empty(t, got)
	}
}

func TestOpenRejectsMalformedInput(t *testing.T) {
	v, err := New("test-master-secret")
	require.NoError(t, err)

	for _, stored := range []string{"", "abc", "a:b", "zz:zz:zz", "00:00:00"} {
		got, err := v.Open(stored)
		assert.ErrorIs(t, err, ErrIntegrity, stored)
		assert.Empty(t, got)
	}
}

func TestDifferentMasterSecretsCannotOpen(t *testing.T) {
	v1, err := New("secret-one")
	require.NoError(t, err)
	v2, err := New("secret-two")
	require.NoError(t, err)

	stored, err := v1.Seal("mn_secret")
	require.NoError(t, err)

	_, err = v2.Open(stored)
	assert.ErrorIs(t, err, ErrIntegrity)
}
