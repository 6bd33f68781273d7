package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/arklim/storefront-account-security/internal/repository"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestChallengeRepository_StoreAndFetch(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewChallengeRepository(client, "2fa:test")

	issued := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	repo.WithClock(func() time.Time { return issued })

	stored, err := repo.Store(context.Background(), "Alice", "482913", 5*time.Minute)
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	if stored.Username != "alice" {
		t.Fatalf("expected normalized username, got %s", stored.Username)
	}

	challenge, err := repo.Fetch(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if challenge.Code != "482913" {
		t.Fatalf("unexpected code: %s", challenge.Code)
	}
	if challenge.Attempts != 0 {
		t.Fatalf("unexpected attempts: %d", challenge.Attempts)
	}
	if !challenge.IssuedAt.Equal(issued) {
		t.Fatalf("unexpected issued_at: %v", challenge.IssuedAt)
	}
	if !challenge.ExpiresAt.Equal(issued.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expires_at: %v", challenge.ExpiresAt)
	}
}

func TestChallengeRepository_StoreReplacesOutstanding(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewChallengeRepository(client, "2fa:test")

	if _, err := repo.Store(context.Background(), "alice", "111111", time.Minute); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	if _, err := repo.IncrementAttempts(context.Background(), "alice"); err != nil {
		t.Fatalf("IncrementAttempts returned error: %v", err)
	}

	if _, err := repo.Store(context.Background(), "alice", "222222", time.Minute); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	challenge, err := repo.Fetch(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if challenge.Code != "222222" {
		t.Fatalf("expected replacement code, got %s", challenge.Code)
	}
	if challenge.Attempts != 0 {
		t.Fatalf("expected attempts reset, got %d", challenge.Attempts)
	}
}

func TestChallengeRepository_DeleteIsSingleUse(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewChallengeRepository(client, "2fa:test")

	if _, err := repo.Store(context.Background(), "alice", "482913", time.Minute); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	if err := repo.Delete(context.Background(), "alice"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if _, err := repo.Fetch(context.Background(), "alice"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	if err := repo.Delete(context.Background(), "alice"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestChallengeRepository_ExpiresWithTTL(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewChallengeRepository(client, "2fa:test")

	if _, err := repo.Store(context.Background(), "alice", "482913", time.Minute); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	server.FastForward(2 * time.Minute)

	if _, err := repo.Fetch(context.Background(), "alice"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestChallengeRepository_IncrementAttempts(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewChallengeRepository(client, "2fa:test")

	if _, err := repo.Store(context.Background(), "alice", "482913", time.Minute); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := repo.IncrementAttempts(context.Background(), "alice")
		if err != nil {
			t.Fatalf("IncrementAttempts returned error: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d attempts, got %d", want, got)
		}
	}

	if _, err := repo.IncrementAttempts(context.Background(), "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing challenge, got %v", err)
	}
}

func TestChallengeRepository_InvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewChallengeRepository(client, "2fa:test")

	if _, err := repo.Store(context.Background(), "", "482913", time.Minute); err == nil {
		t.Fatalf("expected error for empty username")
	}
	if _, err := repo.Store(context.Background(), "alice", "", time.Minute); err == nil {
		t.Fatalf("expected error for empty code")
	}
	if _, err := repo.Store(context.Background(), "alice", "482913", 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
	if _, err := repo.Fetch(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty username")
	}
}
