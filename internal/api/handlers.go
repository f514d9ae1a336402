// Package api exposes the resolved device inventory over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/netinv/netinv/internal/auth"
	"github.com/netinv/netinv/internal/authcache"
	"github.com/netinv/netinv/internal/controller"
	"github.com/netinv/netinv/internal/resolver"
)

// ResolveFunc runs one inventory resolution. Wired by the server binary so
// handlers stay free of file loading concerns.
type ResolveFunc func(ctx context.Context) (*resolver.Result, error)

// ControllerTokenFunc fetches the cached controller credential for the
// active architecture, authenticating on a miss.
type ControllerTokenFunc func(ctx context.Context) (resolver.Identity, map[string]string, error)

// Dependencies carries handler collaborators.
type Dependencies struct {
	Auth                 *auth.Service
	Registry             *resolver.Registry
	Resolve              ResolveFunc
	ControllerCredential ControllerTokenFunc
	Logger               *slog.Logger
}

// Health responds to liveness probes.
func (d *Dependencies) Health(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Login exchanges admin credentials for a JWT.
func (d *Dependencies) Login(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeJSON[auth.LoginRequest](w, r)
	if !ok {
		return
	}
	resp, err := d.Auth.Login(input.Username, input.Password)
	if err != nil {
		sendError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials", nil)
		return
	}
	sendJSON(w, http.StatusOK, resp)
}

// Inventory returns the resolved device list. Device passwords never
// serialize (see model.Device), so the payload is safe to expose to the
// orchestration engine's operators.
func (d *Dependencies) Inventory(w http.ResponseWriter, r *http.Request) {
	result, err := d.Resolve(r.Context())
	if err != nil {
		status, code := classifyResolutionError(err)
		sendError(w, r, status, code, err.Error(), nil)
		return
	}
	sendJSON(w, http.StatusOK, result)
}

// ControllerToken hands the controller credential to authenticated
// operators, going through the shared cache so concurrent requests never
// stampede the controller.
func (d *Dependencies) ControllerToken(w http.ResponseWriter, r *http.Request) {
	identity, payload, err := d.ControllerCredential(r.Context())
	if err != nil {
		status, code := classifyControllerError(err)
		sendError(w, r, status, code, err.Error(), nil)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"architecture": identity,
		"credential":   payload,
	})
}

type architectureInfo struct {
	Identity      resolver.Identity `json:"identity"`
	RootKey       string            `json:"root_key"`
	DeviceClasses []string          `json:"device_classes"`
	ControllerEnv []string          `json:"controller_env,omitempty"`
}

// Architectures lists the registered controller families.
func (d *Dependencies) Architectures(w http.ResponseWriter, r *http.Request) {
	descs := d.Registry.Descriptors()
	infos := make([]architectureInfo, 0, len(descs))
	for _, desc := range descs {
		info := architectureInfo{
			Identity:      desc.Identity,
			RootKey:       desc.RootKey,
			DeviceClasses: desc.DeviceClasses,
		}
		if desc.HasControllerEnv() {
			info.ControllerEnv = []string{desc.EnvURL, desc.EnvUsername, desc.EnvPassword}
		}
		infos = append(infos, info)
	}
	sendJSON(w, http.StatusOK, map[string]any{"architectures": infos})
}

// classifyResolutionError maps the resolution error taxonomy onto HTTP
// statuses: configuration mistakes are the client's to fix, a missing
// resolver is ours.
func classifyResolutionError(err error) (int, string) {
	switch {
	case errors.Is(err, resolver.ErrAmbiguousConfiguration):
		return http.StatusConflict, "AMBIGUOUS_CONFIGURATION"
	case errors.Is(err, resolver.ErrIncompleteConfiguration):
		return http.StatusBadRequest, "INCOMPLETE_CONFIGURATION"
	case errors.Is(err, resolver.ErrUnsupportedArchitecture):
		return http.StatusBadRequest, "UNSUPPORTED_ARCHITECTURE"
	case errors.Is(err, resolver.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity, "SCHEMA_MISMATCH"
	case errors.Is(err, resolver.ErrResolverNotFound):
		return http.StatusInternalServerError, "RESOLVER_NOT_FOUND"
	}
	var malformed *resolver.MalformedAddressError
	if errors.As(err, &malformed) {
		return http.StatusUnprocessableEntity, "MALFORMED_ADDRESS"
	}
	var missing *resolver.MissingCredentialError
	if errors.As(err, &missing) {
		return http.StatusBadRequest, "MISSING_CREDENTIALS"
	}
	return http.StatusInternalServerError, "RESOLUTION_FAILED"
}

// classifyControllerError maps controller auth failures; a controller that
// answers and refuses is a gateway problem, not ours. Detection errors
// share the resolution mapping.
func classifyControllerError(err error) (int, string) {
	switch {
	case errors.Is(err, controller.ErrNoController):
		return http.StatusBadRequest, "NO_CONTROLLER"
	case errors.Is(err, controller.ErrAuthRejected):
		return http.StatusBadGateway, "CONTROLLER_AUTH_REJECTED"
	case errors.Is(err, controller.ErrUnreachable):
		return http.StatusBadGateway, "CONTROLLER_UNREACHABLE"
	case errors.Is(err, authcache.ErrLockTimeout):
		return http.StatusServiceUnavailable, "AUTH_LOCK_TIMEOUT"
	}
	return classifyResolutionError(err)
}
