package auth

import (
	"bytes"
	"errors"
	"slices"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/gatewayx"
)

var ErrSharedSecret = errors.New("gateway and session keys must differ")

// GatewayVerifier checks the token the gateway attaches to every request.
type GatewayVerifier struct {
	secret  []byte
	allowed []string
}

// NewGatewayVerifier refuses a key equal to the session key of tokens.
func NewGatewayVerifier(secret []byte, allowed []string, tokens *TokenService) (*GatewayVerifier, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if tokens != nil && bytes.Equal(secret, tokens.secret) {
		return nil, ErrSharedSecret
	}
	return &GatewayVerifier{secret: secret, allowed: slices.Clone(allowed)}, nil
}

// Verify returns the caller id of a valid gateway token.
func (v *GatewayVerifier) Verify(tokenString string) (string, error) {
	claims, err := gatewayx.Parse(v.secret, tokenString)
	if err != nil {
		return "", common.ErrorUnauthorized
	}

	if !slices.Contains(v.allowed, claims.ID) {
		return "", common.ErrorUnauthorized
	}
	return claims.ID, nil
}
