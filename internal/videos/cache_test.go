package videos

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubLoader struct {
	value []string
	err   error
	calls int
}

func (s *stubLoader) load(context.Context) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.value, nil
}

func TestCacheGetOrLoad(t *testing.T) {
	base := &stubLoader{value: []string{"Cats 101"}}
	cache := NewCache[[]string](time.Minute)

	ctx := context.Background()

	got, err := cache.GetOrLoad(ctx, "cat", base.load)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0] != "Cats 101" {
		t.Fatalf("unexpected value: %+v", got)
	}
	if base.calls != 1 {
		t.Fatalf("expected loader called once got %d", base.calls)
	}

	if _, err := cache.GetOrLoad(ctx, "cat", base.load); err != nil {
		t.Fatalf("load: %v", err)
	}
	if base.calls != 1 {
		t.Fatalf("expected cached result got %d calls", base.calls)
	}

	if _, err := cache.GetOrLoad(ctx, "dog", base.load); err != nil {
		t.Fatalf("load: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected separate key to load, got %d calls", base.calls)
	}
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	boom := errors.New("store unavailable")
	base := &stubLoader{err: boom}
	cache := NewCache[[]string](time.Minute)

	if _, err := cache.GetOrLoad(context.Background(), "cat", base.load); !errors.Is(err, boom) {
		t.Fatalf("expected loader error got %v", err)
	}
	if cache.Len() != 0 {
		t.Fatalf("expected no cached entries got %d", cache.Len())
	}
}

func TestCacheExpiry(t *testing.T) {
	base := &stubLoader{value: []string{"x"}}
	cache := NewCache[[]string](time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	if _, err := cache.GetOrLoad(context.Background(), "k", base.load); err != nil {
		t.Fatalf("load: %v", err)
	}

	cache.now = func() time.Time { return now.Add(2 * time.Minute) }

	if _, err := cache.GetOrLoad(context.Background(), "k", base.load); err != nil {
		t.Fatalf("load: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected cache miss after expiry got %d calls", base.calls)
	}
}

func TestCacheDefaultTTL(t *testing.T) {
	cache := NewCache[int](0)
	if cache.ttl <= 0 {
		t.Fatalf("expected ttl to default positive got %v", cache.ttl)
	}
}
