package controller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/netinv/netinv/internal/authcache"
	"github.com/netinv/netinv/internal/resolver"
)

const (
	sdwanLoginPath = "/j_security_check"
	sdwanTokenPath = "/dataservice/client/token"

	// Manager sessions idle out at 30 minutes.
	sdwanSessionLifetime = 30 * time.Minute
)

// SDWANManagerAuth authenticates against an SD-WAN Manager (vManage)
// controller: a form login yielding a session cookie, then a CSRF token
// fetch. Both values form the credential payload.
type SDWANManagerAuth struct {
	URL      string
	Username string
	Password string

	client *http.Client
}

// NewSDWANManagerAuth builds an adapter from the controller environment
// triple.
func NewSDWANManagerAuth(env resolver.Environment, verifySSL bool) (*SDWANManagerAuth, error) {
	u := env.Get("SDWAN_URL")
	username := env.Get("SDWAN_USERNAME")
	password := env.Get("SDWAN_PASSWORD")
	if u == "" || username == "" || password == "" {
		return nil, fmt.Errorf(
			"%w: SDWAN_URL, SDWAN_USERNAME and SDWAN_PASSWORD must all be set",
			resolver.ErrIncompleteConfiguration,
		)
	}
	return &SDWANManagerAuth{
		URL:      u,
		Username: username,
		Password: password,
		client:   newAuthClient(verifySSL),
	}, nil
}

// Authenticate performs the two-step session exchange with no caching.
func (a *SDWANManagerAuth) Authenticate(ctx context.Context) (map[string]string, time.Duration, error) {
	session, err := a.login(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("sdwan authentication failed (%s): %w", a.URL, err)
	}
	token, err := a.fetchToken(ctx, session)
	if err != nil {
		return nil, 0, fmt.Errorf("sdwan token fetch failed (%s): %w", a.URL, err)
	}
	return map[string]string{
		"session": session,
		"token":   token,
	}, sdwanSessionLifetime, nil
}

// login posts the j_security_check form. The Manager answers a failed
// login with HTTP 200 and an HTML login page, so the body is inspected as
// well as the status.
func (a *SDWANManagerAuth) login(ctx context.Context) (string, error) {
	form := url.Values{
		"j_username": {a.Username},
		"j_password": {a.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.URL+sdwanLoginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK || strings.Contains(strings.ToLower(string(body)), "<html") {
		return "", fmt.Errorf("%w (HTTP %d)", ErrAuthRejected, resp.StatusCode)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "JSESSIONID" {
			return cookie.Value, nil
		}
	}
	return "", fmt.Errorf("%w: no session cookie in login response", ErrAuthRejected)
}

func (a *SDWANManagerAuth) fetchToken(ctx context.Context, session string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL+sdwanTokenPath, nil)
	if err != nil {
		return "", err
	}
	req.AddCookie(&http.Cookie{Name: "JSESSIONID", Value: session})

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w (HTTP %d fetching CSRF token)", ErrAuthRejected, resp.StatusCode)
	}
	token, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read CSRF token: %w", err)
	}
	return strings.TrimSpace(string(token)), nil
}

// CachedCredential returns the session payload via the shared cache,
// authenticating only on a miss or expiry.
func (a *SDWANManagerAuth) CachedCredential(ctx context.Context, cache *authcache.Cache) (map[string]string, error) {
	return cache.GetOrAuthenticate(ctx, string(resolver.IdentitySDWAN), a.URL, a.Authenticate)
}
