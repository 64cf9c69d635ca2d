package middleware

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/pliu/chatapp/internal/auth"
	"github.com/pliu/chatapp/internal/models"
	"github.com/pliu/chatapp/internal/store"
)

type fakeUsers map[string]*models.User

func (f fakeUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if id == "broken" {
		return nil, errors.New("db down")
	}
	u, ok := f[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func newAuthenticator() (*Authenticator, *auth.Signer) {
	signer := auth.NewSigner("test-secret", 0)
	users := fakeUsers{
		"123": {ID: "123", Email: "a@example.com", FullName: "Alice", Password: "hash"},
	}
	return &Authenticator{Tokens: signer, Users: users, Log: zap.NewNop()}, signer
}

func TestProtectRoute(t *testing.T) {
	a, signer := newAuthenticator()

	// Mock next handler
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			t.Error("Expected user in context")
			return
		}
		if user.ID != "123" {
			t.Errorf("Expected user 123, got %v", user.ID)
		}
		if user.Password != "" {
			t.Error("Password hash must not be attached to the request")
		}
		w.WriteHeader(http.StatusOK)
	})

	valid, _ := signer.Sign("123")
	deleted, _ := signer.Sign("456")
	broken, _ := signer.Sign("broken")
	forged, _ := auth.NewSigner("wrong-secret", 0).Sign("123")

	tests := []struct {
		name           string
		token          string
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:           "Valid Token",
			token:          valid,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Missing Token",
			token:          "",
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    "No token provided",
		},
		{
			name:           "Forged Token",
			token:          forged,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Garbage Token",
			token:          "not.a.token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Deleted User",
			token:          deleted,
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "User not found",
		},
		{
			name:           "Store Failure",
			token:          broken,
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.token != "" {
				req.Header.Set(TokenHeader, tt.token)
			}
			rr := httptest.NewRecorder()

			a.ProtectRoute(nextHandler).ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v",
					rr.Code, tt.expectedStatus)
			}
			if tt.expectedStatus == http.StatusOK {
				return
			}

			var body struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Success {
				t.Error("Expected success=false")
			}
			if tt.expectedMsg != "" && body.Message != tt.expectedMsg {
				t.Errorf("Expected message %q, got %q", tt.expectedMsg, body.Message)
			}
		})
	}
}

func TestUserFromContextMissing(t *testing.T) {
	if _, ok := UserFromContext(context.Background()); ok {
		t.Error("Expected no user in empty context")
	}
}

func TestLoggingMiddleware(t *testing.T) {
	// Mock next handler that returns 404
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()

	Logging(zap.NewNop())(nextHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("handler returned wrong status code: got %v want %v",
			rr.Code, http.StatusNotFound)
	}
}

// MockHijacker implements http.Hijacker for testing
type MockHijacker struct {
	httptest.ResponseRecorder
	hijacked bool
}

func (m *MockHijacker) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	m.hijacked = true
	return nil, nil, nil
}

func TestLoggingMiddleware_Hijack(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hijacker, ok := w.(http.Hijacker)
		if !ok {
			t.Error("ResponseWriter does not implement http.Hijacker")
			return
		}
		if _, _, err := hijacker.Hijack(); err != nil {
			t.Errorf("Hijack failed: %v", err)
		}
	})

	req := httptest.NewRequest("GET", "/", nil)
	mockWriter := &MockHijacker{ResponseRecorder: *httptest.NewRecorder()}

	LoggingMiddleware(nextHandler).ServeHTTP(mockWriter, req)

	if !mockWriter.hijacked {
		t.Error("Expected the underlying writer to be hijacked")
	}
}

func TestLoggingMiddleware_HijackUnsupported(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := w.(http.Hijacker).Hijack(); err == nil {
			t.Error("Expected an error when the writer cannot hijack")
		}
	})

	req := httptest.NewRequest("GET", "/", nil)
	Logging(zap.NewNop())(nextHandler).ServeHTTP(httptest.NewRecorder(), req)
}
