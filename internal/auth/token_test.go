package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignAndVerify(t *testing.T) {
	s := NewSigner("secret", 0)
	token, err := s.Sign("user-1")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	userID, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("Expected user-1, got %q", userID)
	}
}

func TestVerifyRejects(t *testing.T) {
	s := NewSigner("secret", 0)
	good, _ := s.Sign("user-1")

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}).SignedString([]byte("secret"))

	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("secret"))
	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: "user-1"}).SignedString([]byte("secret"))
	forged, _ := NewSigner("other-secret", 0).Sign("user-1")

	tests := []struct {
		name   string
		token  string
		reason string
	}{
		{"Malformed", "not-a-jwt", "malformed"},
		{"Forged", forged, "bad_signature"},
		{"Expired", expired, "expired"},
		{"No User", noUser, "no_subject"},
		{"Wrong Algorithm", hs512, "bad_signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Verify(tt.token)
			if err == nil {
				t.Fatal("Expected verification error")
			}
			if got := Reason(err); got != tt.reason {
				t.Errorf("Reason: got %q want %q (err: %v)", got, tt.reason, err)
			}
		})
	}

	if _, err := s.Verify(good); err != nil {
		t.Errorf("Good token should verify: %v", err)
	}
}

func TestSignWithTTL(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	token, _ := s.Sign("user-1")

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) { return []byte("secret"), nil })
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ExpiresAt == nil {
		t.Fatal("Expected exp claim when TTL is set")
	}
	if d := time.Until(claims.ExpiresAt.Time); d < 59*time.Minute || d > time.Hour+time.Second {
		t.Errorf("Unexpected expiry in %v", d)
	}
}
