package middleware

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pliu/chatvideo/internal/auth"
)

type fakeVerifier map[string]struct {
	identity auth.Identity
	err      error
}

func (f fakeVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	res, ok := f[token]
	if !ok {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return res.identity, res.err
}

func TestAuthMiddleware(t *testing.T) {
	verifier := fakeVerifier{
		"good":     {identity: auth.Identity{UserID: 123, Username: "alice", IsActive: true}},
		"inactive": {identity: auth.Identity{UserID: 124, Username: "bob"}, err: auth.ErrInactiveUser},
		"broken":   {err: errors.New("database is down")},
	}

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r.Context())
		if !ok {
			t.Error("Expected userID in context")
		}
		if userID != 123 {
			t.Errorf("Expected userID 123, got %v", userID)
		}
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{"Valid Token", "Bearer good", http.StatusOK},
		{"Lowercase Scheme", "bearer good", http.StatusOK},
		{"Unknown Token", "Bearer forged", http.StatusUnauthorized},
		{"Inactive User", "Bearer inactive", http.StatusForbidden},
		{"Verifier Failure", "Bearer broken", http.StatusInternalServerError},
		{"Wrong Scheme", "Basic good", http.StatusUnauthorized},
		{"Missing Header", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			AuthMiddleware(verifier)(nextHandler).ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v",
					rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()

	LoggingMiddleware(nextHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("handler returned wrong status code: got %v want %v",
			rr.Code, http.StatusNotFound)
	}
}

// MockHijacker implements http.Hijacker for testing
type MockHijacker struct {
	*httptest.ResponseRecorder
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
	mockWriter := &MockHijacker{ResponseRecorder: httptest.NewRecorder()}

	LoggingMiddleware(nextHandler).ServeHTTP(mockWriter, req)

	if !mockWriter.hijacked {
		t.Error("Expected the underlying writer to be hijacked")
	}
}

func TestLoggingMiddleware_HijackUnsupported(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := w.(http.Hijacker).Hijack(); err == nil {
			t.Error("Expected an error from a writer that cannot be hijacked")
		}
	})

	LoggingMiddleware(nextHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}
