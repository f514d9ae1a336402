// Package authcache is a process-shared, file-persisted controller token
// cache. Entries carry an absolute expiry and are keyed by (controller
// family, base URL). Concurrent workers resolving the same controller are
// serialized per key: an in-process singleflight group collapses goroutines
// and an advisory file lock collapses processes, so exactly one caller
// performs the real network authentication while the rest wait and read
// the freshly written entry.
//
// Lock staleness: flock(2) locks are released by the kernel when the
// holder exits, so a crashed holder never wedges the cache permanently. A
// bounded lock-wait timeout still applies for holders that are alive but
// stuck; waiters surface ErrLockTimeout instead of deadlocking. Writes go
// through a temp file and rename, so a crash mid-write leaves either the
// old entry or none; an undecodable entry reads as a miss.
package authcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"
)

// ErrLockTimeout is returned when the per-key authentication lock could
// not be acquired within the configured wait.
var ErrLockTimeout = errors.New("timed out waiting for authentication lock")

const (
	defaultLockTimeout = 30 * time.Second
	lockRetryInterval  = 100 * time.Millisecond

	// refreshSkew keeps tokens from being handed out moments before they
	// expire on the controller.
	refreshSkew = 60 * time.Second
)

// AuthFunc performs the real authentication side effect and returns an
// opaque credential payload plus its lifetime.
type AuthFunc func(ctx context.Context) (payload map[string]string, ttl time.Duration, err error)

// Cache is the shared credential cache. The zero value is not usable;
// construct with New.
type Cache struct {
	dir         string
	lockTimeout time.Duration
	log         *slog.Logger
	group       singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithLockTimeout bounds how long a waiter blocks on the per-key lock.
func WithLockTimeout(d time.Duration) Option {
	return func(c *Cache) { c.lockTimeout = d }
}

// WithLogger sets the cache logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// DefaultDir returns the per-user default cache location.
func DefaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "netinv", "auth")
}

// New creates a cache rooted at dir, creating it if needed. Tests point
// this at a temporary directory.
func New(dir string, opts ...Option) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create auth cache directory %s: %w", dir, err)
	}
	c := &Cache{
		dir:         dir,
		lockTimeout: defaultLockTimeout,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type entry struct {
	Family    string            `json:"family"`
	URL       string            `json:"url"`
	Payload   map[string]string `json:"payload"`
	ExpiresAt time.Time         `json:"expires_at"`
}

func (e *entry) valid(now time.Time) bool {
	return now.Add(refreshSkew).Before(e.ExpiresAt)
}

// GetOrAuthenticate returns the cached credential payload for (family,
// url), invoking authenticate under the per-key lock on a miss or expiry.
// An expired entry is never returned: the observing reader re-acquires the
// lock and refreshes it.
func (c *Cache) GetOrAuthenticate(ctx context.Context, family, url string, authenticate AuthFunc) (map[string]string, error) {
	key := cacheKey(family, url)

	// Lock-free fast path; writes are atomic renames.
	if e, ok := c.read(key); ok && e.valid(time.Now()) {
		return e.Payload, nil
	}

	payload, err, _ := c.group.Do(key, func() (any, error) {
		return c.authenticateLocked(ctx, key, family, url, authenticate)
	})
	if err != nil {
		return nil, err
	}
	return payload.(map[string]string), nil
}

// Invalidate drops the cached entry for (family, url). Used when a cached
// token is rejected by the controller before its recorded expiry.
func (c *Cache) Invalidate(family, url string) error {
	err := os.Remove(c.entryPath(cacheKey(family, url)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to invalidate auth cache entry: %w", err)
	}
	return nil
}

func (c *Cache) authenticateLocked(ctx context.Context, key, family, url string, authenticate AuthFunc) (map[string]string, error) {
	lock := flock.New(c.lockPath(key))

	lockCtx, cancel := context.WithTimeout(ctx, c.lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil || !locked {
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("failed to acquire authentication lock for %s: %w", family, err)
		}
		return nil, fmt.Errorf("%w for %s (%s) after %s", ErrLockTimeout, family, url, c.lockTimeout)
	}
	defer lock.Unlock()

	// Another process may have refreshed the entry while we waited.
	if e, ok := c.read(key); ok && e.valid(time.Now()) {
		c.log.Debug("Auth cache refreshed by concurrent writer", "family", family)
		return e.Payload, nil
	}

	c.log.Info("Authenticating to controller", "family", family, "url", url)
	payload, ttl, err := authenticate(ctx)
	if err != nil {
		return nil, err
	}

	e := &entry{
		Family:    family,
		URL:       url,
		Payload:   payload,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := c.write(key, e); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Cache) read(key string) (*entry, bool) {
	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		// Corrupt entry, treat as a miss.
		c.log.Warn("Discarding undecodable auth cache entry", "key", key, "error", err)
		return nil, false
	}
	return &e, true
}

func (c *Cache) write(key string, e *entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode auth cache entry: %w", err)
	}
	tmp, err := os.CreateTemp(c.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to stage auth cache entry: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write auth cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write auth cache entry: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to write auth cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.entryPath(key)); err != nil {
		return fmt.Errorf("failed to commit auth cache entry: %w", err)
	}
	return nil
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *Cache) lockPath(key string) string {
	return filepath.Join(c.dir, key+".lock")
}

func cacheKey(family, url string) string {
	sum := sha256.Sum256([]byte(family + "|" + url))
	return hex.EncodeToString(sum[:8])
}
