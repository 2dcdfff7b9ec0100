package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSignInSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.URL.Path != "/accounts:signInWithPassword" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("api key not forwarded, got %q", got)
		}

		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req["email"] != "alice@example.com" || req["returnSecureToken"] != true {
			t.Errorf("unexpected request body: %v", req)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"idToken":      "token-123",
			"refreshToken": "refresh-456",
			"localId":      "uid-789",
			"email":        "alice@example.com",
			"expiresIn":    "3600",
		})
	}))
	defer srv.Close()

	c := NewIdentityClient(srv.URL, "test-key")
	result, err := c.SignIn(context.Background(), "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if result.IDToken != "token-123" || result.LocalID != "uid-789" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.ExpiresIn != 3600 {
		t.Fatalf("quoted expiresIn not decoded, got %d", result.ExpiresIn)
	}
}

func TestSignUpPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]interface{}{
			"idToken":   "t",
			"localId":   "u",
			"email":     "alice@example.com",
			"expiresIn": 3600,
		})
	}))
	defer srv.Close()

	c := NewIdentityClient(srv.URL, "test-key")
	result, err := c.SignUp(context.Background(), "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if gotPath != "/accounts:signUp" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if result.ExpiresIn != 3600 {
		t.Fatalf("numeric expiresIn not decoded, got %d", result.ExpiresIn)
	}
}

func TestServiceErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": "EMAIL_EXISTS"},
		})
	}))
	defer srv.Close()

	c := NewIdentityClient(srv.URL, "test-key")
	_, err := c.SignUp(context.Background(), "alice@example.com", "secret")

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if svcErr.Message != "EMAIL_EXISTS" {
		t.Fatalf("service message not surfaced: %q", svcErr.Message)
	}
}

func TestOpaqueFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewIdentityClient(srv.URL, "test-key")
	_, err := c.SignIn(context.Background(), "alice@example.com", "secret")
	if err == nil {
		t.Fatalf("expected an error for a 502")
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		t.Fatalf("bodyless failure must not become a ServiceError")
	}
}

func TestFlexSeconds(t *testing.T) {
	tests := []struct {
		in      string
		want    FlexSeconds
		wantErr bool
	}{
		{`"3600"`, 3600, false},
		{`3600`, 3600, false},
		{`"0"`, 0, false},
		{`"abc"`, 0, true},
	}

	for _, tt := range tests {
		var got FlexSeconds
		err := json.Unmarshal([]byte(tt.in), &got)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("Unmarshal(%s) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Unmarshal(%s): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("Unmarshal(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
