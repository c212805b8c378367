package auth

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/gatewayx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGatewayVerifier_RejectsSharedKey(t *testing.T) {
	tokens, err := NewTokenService([]byte("same"), time.Hour)
	require.NoError(t, err)

	_, err = NewGatewayVerifier([]byte("same"), []string{"auth"}, tokens)
	assert.ErrorIs(t, err, ErrSharedSecret)

	_, err = NewGatewayVerifier(nil, []string{"auth"}, tokens)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestGatewayVerifier_Verify(t *testing.T) {
	secret := []byte("gateway")
	v, err := NewGatewayVerifier(secret, []string{"auth", "gig"}, nil)
	require.NoError(t, err)

	good, err := gatewayx.Sign(secret, "auth")
	require.NoError(t, err)
	unknown, err := gatewayx.Sign(secret, "intruder")
	require.NoError(t, err)
	forged, err := gatewayx.Sign([]byte("session"), "auth")
	require.NoError(t, err)

	id, err := v.Verify(good)
	require.NoError(t, err)
	assert.Equal(t, "auth", id)

	for name, tok := range map[string]string{"empty": "", "unknown caller": unknown, "wrong key": forged, "garbage": "x.y.z"} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			assert.ErrorIs(t, err, common.ErrorUnauthorized)
		})
	}
}
