package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox_SealOpen(t *testing.T) {
	box, err := NewBox("master-key-for-tests")
	require.NoError(t, err)

	sealed, err := box.Seal("sk_test_abc", "tenant-1:stripe")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "v1:"))
	assert.NotContains(t, sealed, "sk_test_abc")

	plain, err := box.Open(sealed, "tenant-1:stripe")
	require.NoError(t, err)
	assert.Equal(t, "sk_test_abc", plain)
}

func TestBox_NonceIsRandom(t *testing.T) {
	box, err := NewBox("master-key-for-tests")
	require.NoError(t, err)

	a, _ := box.Seal("same", "ad")
	b, _ := box.Seal("same", "ad")
	assert.NotEqual(t, a, b)
}

func TestBox_WrongAdditionalData(t *testing.T) {
	box, err := NewBox("master-key-for-tests")
	require.NoError(t, err)

	sealed, err := box.Seal("secret", "tenant-1:calendar")
	require.NoError(t, err)

	_, err = box.Open(sealed, "tenant-2:calendar")
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestBox_WrongMasterKey(t *testing.T) {
	a, _ := NewBox("key-a")
	b, _ := NewBox("key-b")

	sealed, err := a.Seal("secret", "ad")
	require.NoError(t, err)

	_, err = b.Open(sealed, "ad")
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestBox_Malformed(t *testing.T) {
	box, _ := NewBox("k")

	_, err := box.Open("plain", "ad")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = box.Open("v1:not-base64!!", "ad")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = box.Open("v1:AAAA", "ad")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestNewBox_EmptyKey(t *testing.T) {
	_, err := NewBox("  ")
	assert.ErrorIs(t, err, ErrEmptyMasterKey)
}
