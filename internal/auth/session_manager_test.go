package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestManager(store SessionStore) *Manager {
	return NewManager(Options{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        "vidtube-test",
	}, store, NewInMemoryBlacklist())
}

func staticIdentity(identity Identity) IdentityLoader {
	return func(context.Context, string) (Identity, error) { return identity, nil }
}

func TestManagerIssueAndParseAccess(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := newTestManager(store)
	identity := Identity{UserID: "user-1", Username: "alice", Email: "alice@example.com", FullName: "Alice"}

	tokens, err := manager.Issue(context.Background(), identity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected non-empty tokens: %+v", tokens)
	}
	if !store.Has("user-1") {
		t.Fatal("expected refresh token to be stored")
	}

	claims, err := manager.ParseAccess(context.Background(), tokens.AccessToken)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.UserID != "user-1" || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := manager.ParseAccess(context.Background(), tokens.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected refresh token to be rejected as access token, got %v", err)
	}
}

func TestManagerIssueValidation(t *testing.T) {
	manager := newTestManager(NewInMemorySessionStore())
	if _, err := manager.Issue(context.Background(), Identity{}); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestManagerRefreshRotates(t *testing.T) {
	manager := newTestManager(NewInMemorySessionStore())
	identity := Identity{UserID: "user-1", Username: "alice"}

	tokens, err := manager.Issue(context.Background(), identity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	refreshed, err := manager.Refresh(context.Background(), tokens.RefreshToken, staticIdentity(identity))
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == tokens.RefreshToken {
		t.Fatal("expected new refresh token")
	}

	if _, err := manager.Refresh(context.Background(), tokens.RefreshToken, staticIdentity(identity)); !errors.Is(err, ErrRefreshTokenReused) {
		t.Fatalf("expected rotated token to be rejected, got %v", err)
	}
}

func TestManagerRefreshFailures(t *testing.T) {
	manager := newTestManager(NewInMemorySessionStore())
	identity := Identity{UserID: "user-1"}

	if _, err := manager.Refresh(context.Background(), "", staticIdentity(identity)); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found got %v", err)
	}
	if _, err := manager.Refresh(context.Background(), "garbage", staticIdentity(identity)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token got %v", err)
	}

	tokens, err := manager.Issue(context.Background(), identity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	manager.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := manager.Refresh(context.Background(), tokens.RefreshToken, staticIdentity(identity)); !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("expected refresh expired got %v", err)
	}
}

func TestManagerRevokeBlacklistsAccessToken(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := newTestManager(store)
	identity := Identity{UserID: "user-1"}

	tokens, err := manager.Issue(context.Background(), identity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := manager.ParseAccess(context.Background(), tokens.AccessToken)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}

	if err := manager.Revoke(context.Background(), claims); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if store.Has("user-1") {
		t.Fatal("expected session to be removed")
	}
	if _, err := manager.ParseAccess(context.Background(), tokens.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked token, got %v", err)
	}
	if _, err := manager.Refresh(context.Background(), tokens.RefreshToken, staticIdentity(identity)); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found after revoke got %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("password stored in plaintext")
	}
	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Fatalf("expected password to verify: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestInMemoryBlacklistExpires(t *testing.T) {
	list := NewInMemoryBlacklist()
	now := time.Now()
	list.now = func() time.Time { return now }

	if err := list.Revoke(context.Background(), "jti-1", now.Add(time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := list.IsRevoked(context.Background(), "jti-1"); !revoked {
		t.Fatal("expected token to be revoked")
	}

	list.now = func() time.Time { return now.Add(2 * time.Minute) }
	if revoked, _ := list.IsRevoked(context.Background(), "jti-1"); revoked {
		t.Fatal("expected revocation to lapse with the token")
	}
}
