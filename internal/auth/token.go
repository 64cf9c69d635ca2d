package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingUserID = errors.New("token has no userId")

// Claims is the payload of a session token.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 session tokens.
// A zero TTL issues tokens without an expiry.
type Signer struct {
	Secret []byte
	TTL    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{Secret: []byte(secret), TTL: ttl}
}

// Sign creates a token carrying userID.
func (s *Signer) Sign(userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.TTL))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token and returns its user id.
func (s *Signer) Verify(token string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.UserID == "" {
		return "", ErrMissingUserID
	}
	return claims.UserID, nil
}

// Reason collapses jwt errors into a short label for logs.
func Reason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unverifiable"
	case errors.Is(err, ErrMissingUserID):
		return "no_subject"
	default:
		return "invalid"
	}
}
