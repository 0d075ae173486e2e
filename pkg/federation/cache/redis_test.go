package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/abuseshield/federation/pkg/config"
)

func setupCache(t *testing.T, throwOnErrors bool) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("Failed to parse miniredis port: %v", err)
	}

	c, err := New(context.Background(), &config.CacheConfig{
		Host:          mr.Host(),
		Port:          port,
		ThrowOnErrors: throwOnErrors,
	})
	if err != nil {
		t.Fatalf("Failed to connect cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestSetGetRoundtrip(t *testing.T) {
	c, _ := setupCache(t, true)
	ctx := context.Background()

	fields := map[string]string{"uuid": "abc", "name": "alice"}
	if err := c.Set(ctx, "operator:abc", fields, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, found, err := c.Get(ctx, "operator:abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("expected a hit")
	}
	if got["name"] != "alice" || got["uuid"] != "abc" {
		t.Errorf("Get = %v, want %v", got, fields)
	}

	exists, err := c.Exists(ctx, "operator:abc")
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v, want true, nil", exists, err)
	}
}

func TestGetMiss(t *testing.T) {
	c, _ := setupCache(t, true)

	_, found, err := c.Get(context.Background(), "operator:missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("expected a miss")
	}
}

func TestSetTTL(t *testing.T) {
	c, mr := setupCache(t, true)
	ctx := context.Background()

	if err := c.Set(ctx, "entity:x", map[string]string{"uuid": "x"}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	_, found, err := c.Get(ctx, "entity:x")
	if err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}
	if found {
		t.Error("entry should have expired")
	}
}

func TestUpdateField(t *testing.T) {
	c, _ := setupCache(t, true)
	ctx := context.Background()

	// Updating a missing key must not create it.
	if err := c.UpdateField(ctx, "operator:ghost", "name", "bob"); err != nil {
		t.Fatalf("UpdateField on missing key: %v", err)
	}
	if exists, _ := c.Exists(ctx, "operator:ghost"); exists {
		t.Error("UpdateField resurrected a missing key")
	}

	if err := c.Set(ctx, "operator:abc", map[string]string{"name": "alice"}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.UpdateField(ctx, "operator:abc", "name", "bob"); err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	got, _, err := c.Get(ctx, "operator:abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got["name"] != "bob" {
		t.Errorf("name = %q, want bob", got["name"])
	}
}

func TestInvalidate(t *testing.T) {
	c, _ := setupCache(t, true)
	ctx := context.Background()

	for _, key := range []string{"operator:a", "operator:b"} {
		if err := c.Set(ctx, key, map[string]string{"uuid": key}, 0); err != nil {
			t.Fatalf("Set %s: %v", key, err)
		}
	}
	if err := c.Invalidate(ctx, "operator:a", "operator:b"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	for _, key := range []string{"operator:a", "operator:b"} {
		if exists, _ := c.Exists(ctx, key); exists {
			t.Errorf("%s still cached after Invalidate", key)
		}
	}
}

func TestCountKeysAndLimit(t *testing.T) {
	c, _ := setupCache(t, true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		key := "entity:" + strconv.Itoa(i)
		if err := c.Set(ctx, key, map[string]string{"uuid": key}, 0); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if err := c.Set(ctx, "operator:x", map[string]string{"uuid": "x"}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	count, err := c.CountKeys(ctx, "entity:")
	if err != nil {
		t.Fatalf("CountKeys: %v", err)
	}
	if count != 3 {
		t.Errorf("CountKeys = %d, want 3", count)
	}

	tests := []struct {
		limit int
		want  bool
	}{
		{limit: 0, want: false},
		{limit: 4, want: false},
		{limit: 3, want: true},
		{limit: 1, want: true},
	}
	for _, tt := range tests {
		got, err := c.LimitExceeded(ctx, "entity:", tt.limit)
		if err != nil {
			t.Fatalf("LimitExceeded(%d): %v", tt.limit, err)
		}
		if got != tt.want {
			t.Errorf("LimitExceeded(%d) = %v, want %v", tt.limit, got, tt.want)
		}
	}
}

func TestDegradeOnBackendFailure(t *testing.T) {
	c, mr := setupCache(t, false)
	ctx := context.Background()

	mr.Close()

	// With throw_on_errors disabled a dead backend reads as a miss and
	// writes are swallowed.
	_, found, err := c.Get(ctx, "operator:abc")
	if err != nil {
		t.Errorf("Get should degrade, got %v", err)
	}
	if found {
		t.Error("dead backend should read as a miss")
	}
	if err := c.Set(ctx, "operator:abc", map[string]string{"uuid": "abc"}, 0); err != nil {
		t.Errorf("Set should degrade, got %v", err)
	}
}

func TestThrowOnErrors(t *testing.T) {
	c, mr := setupCache(t, true)

	mr.Close()

	if _, _, err := c.Get(context.Background(), "operator:abc"); err == nil {
		t.Error("expected an error with throw_on_errors enabled")
	}
}
