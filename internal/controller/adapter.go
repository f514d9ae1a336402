package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/netinv/netinv/internal/authcache"
	"github.com/netinv/netinv/internal/resolver"
)

// ErrNoController is returned when the detected architecture has no
// managing controller to authenticate against (standalone deployments).
var ErrNoController = errors.New("architecture has no managing controller")

// Adapter is the two-tier authentication surface every controller family
// implements: the stateless exchange and its cached retrieval.
type Adapter interface {
	Authenticate(ctx context.Context) (payload map[string]string, ttl time.Duration, err error)
	CachedCredential(ctx context.Context, cache *authcache.Cache) (map[string]string, error)
}

// ForIdentity returns the auth adapter for a detected controller family,
// built from that family's environment triple.
func ForIdentity(identity resolver.Identity, env resolver.Environment, verifySSL bool) (Adapter, error) {
	switch identity {
	case resolver.IdentitySDWAN:
		return NewSDWANManagerAuth(env, verifySSL)
	case resolver.IdentityCatalystCenter:
		return NewCatalystCenterAuth(env, verifySSL)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoController, identity)
}
