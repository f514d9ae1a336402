package authcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func staticAuth(calls *atomic.Int32, payload map[string]string, ttl time.Duration) AuthFunc {
	return func(ctx context.Context) (map[string]string, time.Duration, error) {
		calls.Add(1)
		return payload, ttl, nil
	}
}

func TestMissAuthenticatesThenHits(t *testing.T) {
	c := newTestCache(t)
	var calls atomic.Int32
	auth := staticAuth(&calls, map[string]string{"token": "tok-1"}, time.Hour)

	for i := 0; i < 3; i++ {
		payload, err := c.GetOrAuthenticate(context.Background(), "catalyst_center", "https://cc.example.com", auth)
		if err != nil {
			t.Fatalf("GetOrAuthenticate returned error: %v", err)
		}
		if payload["token"] != "tok-1" {
			t.Fatalf("payload = %v, want cached token", payload)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("authenticate called %d times, want 1 (subsequent calls served from cache)", calls.Load())
	}
}

func TestExpiredEntryNeverReturned(t *testing.T) {
	c := newTestCache(t)
	var calls atomic.Int32

	// First token expires immediately (TTL below the refresh skew).
	_, err := c.GetOrAuthenticate(context.Background(), "sdwan", "https://mgr.example.com",
		staticAuth(&calls, map[string]string{"token": "stale"}, time.Second))
	if err != nil {
		t.Fatal(err)
	}

	payload, err := c.GetOrAuthenticate(context.Background(), "sdwan", "https://mgr.example.com",
		staticAuth(&calls, map[string]string{"token": "fresh"}, time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if payload["token"] != "fresh" {
		t.Errorf("payload = %v, want the re-authenticated token, never the expired one", payload)
	}
	if calls.Load() != 2 {
		t.Errorf("authenticate called %d times, want 2", calls.Load())
	}
}

func TestConcurrentCallersAuthenticateOnce(t *testing.T) {
	c := newTestCache(t)
	var calls atomic.Int32
	auth := func(ctx context.Context) (map[string]string, time.Duration, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond) // widen the race window
		return map[string]string{"token": "shared"}, time.Hour, nil
	}

	const workers = 8
	payloads := make([]map[string]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payloads[i], errs[i] = c.GetOrAuthenticate(context.Background(), "sdwan", "https://mgr.example.com", auth)
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("authenticate called %d times, want exactly 1", calls.Load())
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d error: %v", i, errs[i])
		}
		if payloads[i]["token"] != "shared" {
			t.Errorf("worker %d payload = %v, want the shared token", i, payloads[i])
		}
	}
}

func TestKeysAreIndependent(t *testing.T) {
	c := newTestCache(t)
	var ccCalls, sdwanCalls atomic.Int32

	_, err := c.GetOrAuthenticate(context.Background(), "catalyst_center", "https://cc.example.com",
		staticAuth(&ccCalls, map[string]string{"token": "cc"}, time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	payload, err := c.GetOrAuthenticate(context.Background(), "sdwan", "https://mgr.example.com",
		staticAuth(&sdwanCalls, map[string]string{"token": "sdwan"}, time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	if payload["token"] != "sdwan" {
		t.Errorf("payload = %v, want the sdwan key's token", payload)
	}
	if ccCalls.Load() != 1 || sdwanCalls.Load() != 1 {
		t.Error("each (family, URL) key authenticates independently")
	}
}

func TestAuthenticationFailurePropagates(t *testing.T) {
	c := newTestCache(t)
	authErr := errors.New("controller rejected credentials")

	_, err := c.GetOrAuthenticate(context.Background(), "sdwan", "https://mgr.example.com",
		func(ctx context.Context) (map[string]string, time.Duration, error) {
			return nil, 0, authErr
		})
	if !errors.Is(err, authErr) {
		t.Fatalf("expected the authentication error, got %v", err)
	}

	// A failure must not poison the cache.
	var calls atomic.Int32
	payload, err := c.GetOrAuthenticate(context.Background(), "sdwan", "https://mgr.example.com",
		staticAuth(&calls, map[string]string{"token": "ok"}, time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if payload["token"] != "ok" {
		t.Errorf("payload = %v, want successful retry", payload)
	}
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	key := cacheKey("sdwan", "https://mgr.example.com")
	if err := os.WriteFile(filepath.Join(dir, key+".json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	payload, err := c.GetOrAuthenticate(context.Background(), "sdwan", "https://mgr.example.com",
		staticAuth(&calls, map[string]string{"token": "recovered"}, time.Hour))
	if err != nil {
		t.Fatalf("GetOrAuthenticate returned error: %v", err)
	}
	if payload["token"] != "recovered" || calls.Load() != 1 {
		t.Error("an undecodable entry should be treated as a miss and rewritten")
	}
}

func TestInvalidate(t *testing.T) {
	c := newTestCache(t)
	var calls atomic.Int32
	auth := staticAuth(&calls, map[string]string{"token": "tok"}, time.Hour)

	if _, err := c.GetOrAuthenticate(context.Background(), "sdwan", "https://mgr.example.com", auth); err != nil {
		t.Fatal(err)
	}
	if err := c.Invalidate("sdwan", "https://mgr.example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrAuthenticate(context.Background(), "sdwan", "https://mgr.example.com", auth); err != nil {
		t.Fatal(err)
	}

	if calls.Load() != 2 {
		t.Errorf("authenticate called %d times, want 2 after invalidation", calls.Load())
	}
}
