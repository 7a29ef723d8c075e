package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maruel/awth/internal/docdb"
)

var errTokenSubject = errors.New("invalid user ID in token")

// Tokens issues and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// NewTokens creates a token issuer.
func NewTokens(secret []byte, ttl time.Duration) *Tokens {
	return &Tokens{secret: secret, ttl: ttl}
}

// Issue returns a signed token for the user.
func (t *Tokens) Issue(userID docdb.ID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies a token and returns the user ID it was issued for.
func (t *Tokens) Parse(token string) (docdb.ID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return docdb.Sentinel, err
	}
	id, err := docdb.ParseID(claims.Subject)
	if err != nil || id == docdb.Sentinel {
		return docdb.Sentinel, fmt.Errorf("%w: %q", errTokenSubject, claims.Subject)
	}
	return id, nil
}
