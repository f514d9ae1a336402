package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/netinv/netinv/internal/auth"
	"github.com/netinv/netinv/internal/authcache"
	"github.com/netinv/netinv/internal/config"
	"github.com/netinv/netinv/internal/controller"
	"github.com/netinv/netinv/internal/model"
	"github.com/netinv/netinv/internal/resolver"
)

func testRouter(t *testing.T, resolve ResolveFunc) http.Handler {
	return testRouterWith(t, resolve, nil)
}

func testRouterWith(t *testing.T, resolve ResolveFunc, cred ControllerTokenFunc) http.Handler {
	t.Helper()
	svc, err := auth.NewService(strings.Repeat("s", 32), "admin", "test-password", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	deps := &Dependencies{
		Auth:                 svc,
		Registry:             resolver.GetRegistry(),
		Resolve:              resolve,
		ControllerCredential: cred,
		Logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return NewRouter(&config.Config{}, deps)
}

func loginToken(t *testing.T, router http.Handler) string {
	t.Helper()
	body := bytes.NewBufferString(`{"username":"admin","password":"test-password"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp auth.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.Token
}

func TestHealth(t *testing.T) {
	router := testRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router := testRouter(t, nil)

	body := bytes.NewBufferString(`{"username":"admin","password":"nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestInventoryRequiresToken(t *testing.T) {
	router := testRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestInventoryReturnsDevicesWithoutPasswords(t *testing.T) {
	resolve := func(ctx context.Context) (*resolver.Result, error) {
		return &resolver.Result{
			Identity: resolver.IdentityStandalone,
			Devices: []model.Device{
				{
					DeviceID:   "sw1",
					Hostname:   "sw1",
					Host:       "10.0.0.1",
					OS:         "iosxe",
					Username:   "netops",
					Password:   "super-secret",
					Connection: model.DefaultConnectionOptions(),
				},
			},
		}, nil
	}
	router := testRouter(t, resolve)
	token := loginToken(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	payload := rec.Body.String()
	if !strings.Contains(payload, `"sw1"`) {
		t.Errorf("device missing from payload: %s", payload)
	}
	if strings.Contains(payload, "super-secret") {
		t.Error("password leaked into API payload")
	}
}

func TestInventoryErrorStatuses(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "ambiguous configuration",
			err:        fmt.Errorf("detect: %w", resolver.ErrAmbiguousConfiguration),
			wantStatus: http.StatusConflict,
			wantCode:   "AMBIGUOUS_CONFIGURATION",
		},
		{
			name:       "incomplete configuration",
			err:        resolver.ErrIncompleteConfiguration,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INCOMPLETE_CONFIGURATION",
		},
		{
			name:       "unsupported architecture",
			err:        resolver.ErrUnsupportedArchitecture,
			wantStatus: http.StatusBadRequest,
			wantCode:   "UNSUPPORTED_ARCHITECTURE",
		},
		{
			name:       "schema mismatch",
			err:        fmt.Errorf("%w %q", resolver.ErrSchemaMismatch, "sdwan"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "SCHEMA_MISMATCH",
		},
		{
			name:       "malformed address",
			err:        &resolver.MalformedAddressError{DeviceID: "sw1", Value: "10.0.0.999"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "MALFORMED_ADDRESS",
		},
		{
			name:       "missing credentials",
			err:        &resolver.MissingCredentialError{Architecture: "sdwan", Vars: []string{"IOSXE_USERNAME"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "MISSING_CREDENTIALS",
		},
		{
			name:       "unknown failure",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "RESOLUTION_FAILED",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router := testRouter(t, func(ctx context.Context) (*resolver.Result, error) {
				return nil, tc.err
			})
			token := loginToken(t, router)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tc.wantCode) {
				t.Errorf("body %s missing code %s", rec.Body.String(), tc.wantCode)
			}
		})
	}
}

func TestControllerToken(t *testing.T) {
	cred := func(ctx context.Context) (resolver.Identity, map[string]string, error) {
		return resolver.IdentitySDWAN, map[string]string{
			"session": "session-abc",
			"token":   "csrf-token-xyz",
		}, nil
	}
	router := testRouterWith(t, nil, cred)
	token := loginToken(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/controller-token", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Architecture resolver.Identity `json:"architecture"`
		Credential   map[string]string `json:"credential"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Architecture != resolver.IdentitySDWAN {
		t.Errorf("architecture = %q, want sdwan", resp.Architecture)
	}
	if resp.Credential["session"] != "session-abc" {
		t.Errorf("credential = %v", resp.Credential)
	}
}

func TestControllerTokenErrorStatuses(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "no controller",
			err:        fmt.Errorf("%w: standalone", controller.ErrNoController),
			wantStatus: http.StatusBadRequest,
			wantCode:   "NO_CONTROLLER",
		},
		{
			name:       "rejected credentials",
			err:        fmt.Errorf("sdwan authentication failed: %w", controller.ErrAuthRejected),
			wantStatus: http.StatusBadGateway,
			wantCode:   "CONTROLLER_AUTH_REJECTED",
		},
		{
			name:       "unreachable",
			err:        controller.ErrUnreachable,
			wantStatus: http.StatusBadGateway,
			wantCode:   "CONTROLLER_UNREACHABLE",
		},
		{
			name:       "lock timeout",
			err:        authcache.ErrLockTimeout,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "AUTH_LOCK_TIMEOUT",
		},
		{
			name:       "ambiguous detection",
			err:        resolver.ErrAmbiguousConfiguration,
			wantStatus: http.StatusConflict,
			wantCode:   "AMBIGUOUS_CONFIGURATION",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router := testRouterWith(t, nil, func(ctx context.Context) (resolver.Identity, map[string]string, error) {
				return "", nil, tc.err
			})
			token := loginToken(t, router)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/controller-token", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tc.wantCode) {
				t.Errorf("body %s missing code %s", rec.Body.String(), tc.wantCode)
			}
		})
	}
}

func TestControllerTokenRouteAbsentWithoutProvider(t *testing.T) {
	router := testRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/controller-token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when no credential provider is wired", rec.Code)
	}
}

func TestArchitectures(t *testing.T) {
	router := testRouter(t, nil)
	token := loginToken(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/architectures", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Architectures []architectureInfo `json:"architectures"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Architectures) < 3 {
		t.Fatalf("architectures = %d, want at least the built-in three", len(resp.Architectures))
	}
	last := resp.Architectures[len(resp.Architectures)-1]
	if last.Identity != resolver.IdentityStandalone {
		t.Errorf("last identity = %q, want standalone registered last", last.Identity)
	}
	if len(last.ControllerEnv) != 0 {
		t.Errorf("standalone should carry no controller env, got %v", last.ControllerEnv)
	}
}
