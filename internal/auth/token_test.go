package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintToken(t *testing.T) {
	token, digest, err := MintToken()
	require.NoError(t, err)

	assert.True(t, IsMCPToken(token))
	assert.Equal(t, DigestToken(token), digest)
	assert.Len(t, digest, 64)

	// Tokens must not repeat.
	other, _, err := MintToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestDigestTokenIsStable(t *testing.T) {
	assert.Equal(t, DigestToken("dh_abc"), DigestToken("dh_abc"))
	assert.NotEqual(t, DigestToken("dh_abc"), DigestToken("dh_abd"))
}

func TestIsMCPToken(t *testing.T) {
	assert.True(t, IsMCPToken("dh_xyz"))
	assert.False(t, IsMCPToken("eyJhbGciOiJSUzI1NiJ9.payload.sig"))
	assert.False(t, IsMCPToken(""))
}
