package tenants

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePublicKey_Format(t *testing.T) {
	pk, err := GeneratePublicKey("bella-salon", "test")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pk, "pk_test_bella-salon_"))

	parsed, err := ParseKey(pk)
	require.NoError(t, err)
	assert.Equal(t, ParsedKey{Kind: "pk", Mode: "test", Slug: "bella-salon"}, parsed)
}

func TestGenerateSecretKey_HashMatches(t *testing.T) {
	sk, hash, err := GenerateSecretKey("studio", "live")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sk, "sk_live_studio_"))
	assert.Len(t, hash, 64)
	assert.True(t, VerifySecretKey(sk, hash))
	assert.False(t, VerifySecretKey(sk+"x", hash))

	parsed, err := ParseKey(sk)
	require.NoError(t, err)
	assert.Equal(t, "sk", parsed.Kind)
}

func TestGenerateSecretKey_Unique(t *testing.T) {
	a, _, _ := GenerateSecretKey("studio", "test")
	b, _, _ := GenerateSecretKey("studio", "test")
	assert.NotEqual(t, a, b)
}

func TestParseKey_Rejects(t *testing.T) {
	cases := []string{
		"",
		"pk_prod_slug_0123456789abcdef",
		"xk_test_slug_0123456789abcdef",
		"pk_test_slug_0123",
		"pk_test_Slug_0123456789abcdef",
		"sk_test_slug_0123456789abcdef",
		"pk_test__0123456789abcdef",
	}
	for _, c := range cases {
		_, err := ParseKey(c)
		assert.ErrorIs(t, err, ErrInvalidKeyFormat, c)
	}
}

func TestSecretKeyPrefix(t *testing.T) {
	assert.Equal(t, "sk_test_studio_a...", SecretKeyPrefix("sk_test_studio_abcdef0123456789"))
	assert.Equal(t, "short", SecretKeyPrefix("short"))
}

func TestKeyMode(t *testing.T) {
	assert.Equal(t, "live", KeyMode(true))
	assert.Equal(t, "test", KeyMode(false))
}
