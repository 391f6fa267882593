package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryTokenRevokerUserCutoffMonotonic(t *testing.T) {
	r := NewMemoryTokenRevoker()
	first := time.Now().UTC().Add(-time.Minute)
	second := time.Now().UTC()

	if err := r.RevokeUser("user-1", first); err != nil {
		t.Fatalf("revoke user first: %v", err)
	}
	if err := r.RevokeUser("user-1", first.Add(-time.Minute)); err != nil {
		t.Fatalf("revoke user older cutoff: %v", err)
	}
	got, err := r.RevokedAfter("user-1")
	if err != nil {
		t.Fatalf("revoked after first: %v", err)
	}
	if !got.Equal(first) {
		t.Fatalf("expected first cutoff to be kept, got %v", got)
	}

	if err := r.RevokeUser("user-1", second); err != nil {
		t.Fatalf("revoke user second: %v", err)
	}
	got, err = r.RevokedAfter("user-1")
	if err != nil {
		t.Fatalf("revoked after second: %v", err)
	}
	if !got.Equal(second) {
		t.Fatalf("expected newest cutoff, got %v", got)
	}
}

func newRedisRevoker(t *testing.T) (*RedisTokenRevoker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisTokenRevoker(client, time.Hour), mr
}

func TestRedisTokenRevokerExpires(t *testing.T) {
	r, mr := newRedisRevoker(t)
	if err := r.Revoke("jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := r.IsRevoked("jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v err=%v", revoked, err)
	}
	mr.FastForward(2 * time.Minute)
	revoked, err = r.IsRevoked("jti-1")
	if err != nil || revoked {
		t.Fatalf("expected revocation to expire, got %v err=%v", revoked, err)
	}
}

func TestRedisTokenRevokerUserCutoffMonotonic(t *testing.T) {
	r, _ := newRedisRevoker(t)
	newer := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	if got, err := r.RevokedAfter("user-1"); err != nil || !got.IsZero() {
		t.Fatalf("expected no cutoff, got %v err=%v", got, err)
	}
	if err := r.RevokeUser("user-1", newer); err != nil {
		t.Fatalf("revoke newer: %v", err)
	}
	if err := r.RevokeUser("user-1", older); err != nil {
		t.Fatalf("revoke older: %v", err)
	}
	got, err := r.RevokedAfter("user-1")
	if err != nil {
		t.Fatalf("revoked after: %v", err)
	}
	if !got.Equal(newer) {
		t.Fatalf("expected %v, got %v", newer, got)
	}
}

func TestJWTSessionStoreWithRedisRevoker(t *testing.T) {
	r, _ := newRedisRevoker(t)
	s := newTestSessionStore(t, r, JWTOptions{})
	token, _ := s.NewSession("user-1")
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatal("expected revoked token")
	}
}
