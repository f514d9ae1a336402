package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/netinv/netinv/internal/resolver"
)

func sdwanAuthFor(t *testing.T, url string) *SDWANManagerAuth {
	t.Helper()
	a, err := NewSDWANManagerAuth(resolver.Environment{
		"SDWAN_URL":      url,
		"SDWAN_USERNAME": "admin",
		"SDWAN_PASSWORD": "password123",
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func sdwanManagerStub(valid bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(sdwanLoginPath, func(w http.ResponseWriter, r *http.Request) {
		if !valid || r.FormValue("j_username") != "admin" || r.FormValue("j_password") != "password123" {
			// The Manager answers bad logins with 200 and the login page.
			fmt.Fprint(w, "<html><body>login</body></html>")
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "session-abc"})
	})
	mux.HandleFunc(sdwanTokenPath, func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("JSESSIONID")
		if err != nil || cookie.Value != "session-abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, "csrf-token-xyz")
	})
	return mux
}

func TestSDWANAuthenticate(t *testing.T) {
	server := httptest.NewServer(sdwanManagerStub(true))
	defer server.Close()

	payload, ttl, err := sdwanAuthFor(t, server.URL).Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if payload["session"] != "session-abc" {
		t.Errorf("session = %q, want session-abc", payload["session"])
	}
	if payload["token"] != "csrf-token-xyz" {
		t.Errorf("token = %q, want csrf-token-xyz", payload["token"])
	}
	if ttl != sdwanSessionLifetime {
		t.Errorf("ttl = %v, want %v", ttl, sdwanSessionLifetime)
	}
}

func TestSDWANRejectedCredentials(t *testing.T) {
	server := httptest.NewServer(sdwanManagerStub(false))
	defer server.Close()

	_, _, err := sdwanAuthFor(t, server.URL).Authenticate(context.Background())
	if !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("expected ErrAuthRejected, got %v", err)
	}
}

func TestSDWANUnreachable(t *testing.T) {
	server := httptest.NewServer(sdwanManagerStub(true))
	server.Close()

	_, _, err := sdwanAuthFor(t, server.URL).Authenticate(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestSDWANIncompleteEnvironment(t *testing.T) {
	_, err := NewSDWANManagerAuth(resolver.Environment{"SDWAN_USERNAME": "admin"}, false)
	if !errors.Is(err, resolver.ErrIncompleteConfiguration) {
		t.Fatalf("expected ErrIncompleteConfiguration, got %v", err)
	}
}
