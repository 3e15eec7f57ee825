package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mustToken(t *testing.T, secret []byte, subject, role string, stations []string) string {
	t.Helper()
	claims := Claims{
		Role:       role,
		StationIDs: stations,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func protectedServer(t *testing.T, secret []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sales", func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			http.Error(w, "no actor", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(actor.ID))
	})
	mux.HandleFunc("/api/v1/closures/abc/review", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw := NewMiddleware(secret, NewDefaultPolicy([]string{"/healthz"}, nil))
	server := httptest.NewServer(mw.Wrap(mux))
	t.Cleanup(server.Close)
	return server
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	server := protectedServer(t, []byte("test-secret"))

	resp, err := http.Get(server.URL + "/api/v1/sales")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	secret := []byte("test-secret")
	server := protectedServer(t, secret)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/v1/sales", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, secret, "emp-1", "employee", []string{"station-1"}))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestMiddlewareRejectsWrongSecret(t *testing.T) {
	server := protectedServer(t, []byte("test-secret"))

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/v1/sales", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, []byte("other-secret"), "emp-1", "employee", nil))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestMiddlewareEnforcesManagerRoutes(t *testing.T) {
	secret := []byte("test-secret")
	server := protectedServer(t, secret)

	req, _ := http.NewRequest(http.MethodPut, server.URL+"/api/v1/closures/abc/review", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, secret, "emp-1", "employee", []string{"station-1"}))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("employee review status = %d, want 403", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPut, server.URL+"/api/v1/closures/abc/review", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, secret, "mgr-1", "manager", []string{"station-1"}))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("manager review status = %d, want 200", resp.StatusCode)
	}
}

func TestMiddlewareExemptPath(t *testing.T) {
	server := protectedServer(t, []byte("test-secret"))

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
