package controller

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/netinv/netinv/internal/authcache"
	"github.com/netinv/netinv/internal/resolver"
)

// Catalyst Center token endpoints, tried in order. Newer releases serve
// the /dna path; older ones only the legacy path.
var catalystAuthEndpoints = []string{
	"/dna/system/api/v1/auth/token",
	"/api/system/v1/auth/token",
}

// Catalyst Center tokens are valid for one hour and the API does not
// report a lifetime, so it is fixed here.
const catalystTokenLifetime = time.Hour

const defaultAuthTimeout = 30 * time.Second

// CatalystCenterAuth authenticates against a Catalyst Center controller
// using HTTP basic auth on the token endpoint.
type CatalystCenterAuth struct {
	URL      string
	Username string
	Password string

	client *http.Client
}

// NewCatalystCenterAuth builds an adapter from the controller environment
// triple. Controller lab deployments routinely run self-signed
// certificates, so TLS verification is off unless verifySSL is set.
func NewCatalystCenterAuth(env resolver.Environment, verifySSL bool) (*CatalystCenterAuth, error) {
	url := env.Get("CATALYST_CENTER_URL")
	username := env.Get("CATALYST_CENTER_USERNAME")
	password := env.Get("CATALYST_CENTER_PASSWORD")
	if url == "" || username == "" || password == "" {
		return nil, fmt.Errorf(
			"%w: CATALYST_CENTER_URL, CATALYST_CENTER_USERNAME and CATALYST_CENTER_PASSWORD must all be set",
			resolver.ErrIncompleteConfiguration,
		)
	}
	return &CatalystCenterAuth{
		URL:      url,
		Username: username,
		Password: password,
		client:   newAuthClient(verifySSL),
	}, nil
}

// Authenticate performs the token exchange with no caching: POST to the
// modern endpoint, falling back to the legacy one on a non-auth failure.
// Returns the opaque payload and its lifetime.
func (a *CatalystCenterAuth) Authenticate(ctx context.Context) (map[string]string, time.Duration, error) {
	var lastErr error
	for _, endpoint := range catalystAuthEndpoints {
		token, err := a.requestToken(ctx, endpoint)
		if err == nil {
			return map[string]string{"token": token}, catalystTokenLifetime, nil
		}
		lastErr = err
		if errors.Is(err, ErrUnreachable) {
			// No point trying another path on the same unreachable host.
			break
		}
	}
	return nil, 0, fmt.Errorf("catalyst_center authentication failed on all endpoints (%s): %w", a.URL, lastErr)
}

func (a *CatalystCenterAuth) requestToken(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL+endpoint, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(a.Username, a.Password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w (HTTP %d on %s)", ErrAuthRejected, resp.StatusCode, endpoint)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("unexpected HTTP %d on %s", resp.StatusCode, endpoint)
	}

	var body struct {
		Token string `json:"Token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode token response from %s: %w", endpoint, err)
	}
	if body.Token == "" {
		return "", fmt.Errorf("token missing from response on %s", endpoint)
	}
	return body.Token, nil
}

// CachedCredential returns the controller token via the shared cache,
// authenticating only on a miss or expiry.
func (a *CatalystCenterAuth) CachedCredential(ctx context.Context, cache *authcache.Cache) (map[string]string, error) {
	return cache.GetOrAuthenticate(ctx, string(resolver.IdentityCatalystCenter), a.URL, a.Authenticate)
}

func newAuthClient(verifySSL bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !verifySSL}
	return &http.Client{
		Timeout:   defaultAuthTimeout,
		Transport: transport,
	}
}
