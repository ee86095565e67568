package auth

import (
	"testing"

	"github.com/karloscodes/cartridge/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownUserHash(t *testing.T) {
	hash := unknownUserHash()
	require.NotEmpty(t, hash)
	assert.True(t, crypto.VerifyPassword(hash, "dummy"))
	assert.False(t, crypto.VerifyPassword(hash, "password"))
	assert.Equal(t, hash, unknownUserHash())
}
