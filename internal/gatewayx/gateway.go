// Package gatewayx defines the token an API gateway attaches to every request
// it forwards. The server verifies it; authctl signs it to stand in for the
// gateway.
package gatewayx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid gateway token")

// Claims identifies the front-door caller.
type Claims struct {
	jwt.RegisteredClaims
	ID string `json:"id"`
}

// Sign produces the token a gateway with the given id would send.
func Sign(secret []byte, id string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{ID: id}).SignedString(secret)
}

// Parse checks the HS256 signature and returns the claims.
func Parse(secret []byte, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
