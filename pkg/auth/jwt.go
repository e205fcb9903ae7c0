// Package auth issues and verifies the bearer tokens that identify users,
// and decides who may open which subscription.
package auth

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/notewire/notewire/pkg/core"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenCodec signs and verifies HS256 identity tokens. The identity rides
// in the standard subject claim.
type TokenCodec struct {
	secret []byte
}

func NewTokenCodec(secret []byte) *TokenCodec {
	return &TokenCodec{secret: secret}
}

// IssueToken mints a token for an identity, valid for ttl.
func (c *TokenCodec) IssueToken(identity core.Identity, ttl time.Duration) (string, error) {
	if identity == "" {
		return "", fmt.Errorf("cannot issue token for empty identity")
	}
	now := time.Now()
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		Subject:   string(identity),
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(c.secret)
}

// ParseIdentity verifies a token and returns the identity it carries.
func (c *TokenCodec) ParseIdentity(tokenStr string) (core.Identity, error) {
	token, err := gojwt.ParseWithClaims(tokenStr, &gojwt.RegisteredClaims{}, func(t *gojwt.Token) (any, error) {
		if _, ok := t.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*gojwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return core.Identity(claims.Subject), nil
}
