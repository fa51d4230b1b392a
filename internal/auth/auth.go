// Package auth verifies the bearer tokens the mobile app sends.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSecret     = errors.New("auth: jwt secret not configured")
	ErrInvalidToken = errors.New("auth: invalid token")
)

type Identity struct {
	UserID string
	Email  string
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier signs and checks HS256 tokens whose subject is the user id.
type Verifier struct {
	Secret []byte
	Now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{Secret: []byte(secret)}
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func (v *Verifier) Issue(id Identity, ttl time.Duration) (string, error) {
	if len(v.Secret) == 0 {
		return "", ErrNoSecret
	}
	now := v.now()
	c := claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.Secret)
}

func (v *Verifier) Verify(token string) (Identity, error) {
	if len(v.Secret) == 0 {
		return Identity{}, ErrNoSecret
	}
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return v.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: c.Subject, Email: c.Email}, nil
}
