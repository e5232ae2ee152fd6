package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockStore — мок Store с fn-полями.
type mockStore struct {
	incrementFn func(ctx context.Context, key string, now time.Time, window time.Duration) (model.RateWindow, error)
	purgeFn     func(ctx context.Context, before time.Time) (int64, error)
}

func (m *mockStore) Increment(ctx context.Context, key string, now time.Time, window time.Duration) (model.RateWindow, error) {
	return m.incrementFn(ctx, key, now, window)
}

func (m *mockStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	if m.purgeFn != nil {
		return m.purgeFn(ctx, before)
	}
	return 0, nil
}

func newTestLimiter(t *testing.T, store Store, cfg Config) *Limiter {
	t.Helper()
	l, err := New(store, cfg, testLogger())
	if err != nil {
		t.Fatalf("New ошибка: %v", err)
	}
	return l
}

// TestAllow_BelowAndAboveMax проверяет: до max — пропуск, сверх max — отказ каждому.
func TestAllow_BelowAndAboveMax(t *testing.T) {
	store := NewMemoryStore(100, time.Hour)
	l := newTestLimiter(t, store, Config{Max: 5, Window: time.Minute, Salt: "s"})

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		res := l.Allow(ctx, "203.0.113.7")
		if res.Limited {
			t.Fatalf("запрос %d отклонён до исчерпания лимита", i)
		}
		if res.Remaining != 5-i {
			t.Errorf("запрос %d: Remaining = %d, ожидалось %d", i, res.Remaining, 5-i)
		}
		if res.Limit != 5 {
			t.Errorf("Limit = %d, ожидалось 5", res.Limit)
		}
	}

	for i := 0; i < 3; i++ {
		res := l.Allow(ctx, "203.0.113.7")
		if !res.Limited {
			t.Fatalf("запрос сверх лимита пропущен (%d)", i)
		}
		if res.Remaining != 0 {
			t.Errorf("Remaining = %d, ожидалось 0", res.Remaining)
		}
		if res.ResetInSeconds < 1 || res.ResetInSeconds > 60 {
			t.Errorf("ResetInSeconds = %d, ожидалось 1..60", res.ResetInSeconds)
		}
	}

	// Другой клиент считается отдельно.
	if res := l.Allow(ctx, "198.51.100.1"); res.Limited {
		t.Error("другой клиент отклонён")
	}
}

// TestAllow_WindowReset проверяет сброс счётчика после окончания окна.
func TestAllow_WindowReset(t *testing.T) {
	store := NewMemoryStore(100, time.Hour)
	l := newTestLimiter(t, store, Config{Max: 2, Window: time.Minute, Salt: "s"})

	now := time.Date(2025, 1, 29, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ctx := context.Background()
	l.Allow(ctx, "a")
	l.Allow(ctx, "a")
	if res := l.Allow(ctx, "a"); !res.Limited {
		t.Fatal("третий запрос в окне пропущен")
	}

	now = now.Add(time.Minute)
	res := l.Allow(ctx, "a")
	if res.Limited {
		t.Fatal("запрос после окончания окна отклонён")
	}
	if res.Remaining != 1 {
		t.Errorf("Remaining = %d, ожидалось 1", res.Remaining)
	}
	if res.ResetInSeconds != 60 {
		t.Errorf("ResetInSeconds = %d, ожидалось 60", res.ResetInSeconds)
	}
}

// TestAllow_Concurrent проверяет, что конкурентные инкременты не теряются.
func TestAllow_Concurrent(t *testing.T) {
	store := NewMemoryStore(100, time.Hour)
	l := newTestLimiter(t, store, Config{Max: 50, Window: time.Hour, Salt: "s"})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 80 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := l.Allow(context.Background(), "same"); !res.Limited {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("пропущено %d, ожидалось ровно 50", allowed)
	}
}

func TestAllow_StoreError(t *testing.T) {
	failing := &mockStore{
		incrementFn: func(context.Context, string, time.Time, time.Duration) (model.RateWindow, error) {
			return model.RateWindow{}, errors.New("connection refused")
		},
	}

	t.Run("fail closed", func(t *testing.T) {
		l := newTestLimiter(t, failing, Config{Max: 60, Window: time.Hour})
		res := l.Allow(context.Background(), "x")
		want := Result{Limited: true, Remaining: 0, ResetInSeconds: 60, Limit: 60}
		if res != want {
			t.Errorf("Result = %+v, ожидалось %+v", res, want)
		}
	})

	t.Run("fail open", func(t *testing.T) {
		l := newTestLimiter(t, failing, Config{Max: 50, Window: 10 * time.Minute, FailOpen: true})
		res := l.Allow(context.Background(), "x")
		want := Result{Limited: false, Remaining: 50, ResetInSeconds: 600, Limit: 50}
		if res != want {
			t.Errorf("Result = %+v, ожидалось %+v", res, want)
		}
	})
}

// TestAllow_HashedKey проверяет, что в хранилище не попадает исходный адрес.
func TestAllow_HashedKey(t *testing.T) {
	var gotKey string
	store := &mockStore{
		incrementFn: func(_ context.Context, key string, now time.Time, _ time.Duration) (model.RateWindow, error) {
			gotKey = key
			return model.RateWindow{IdentityHash: key, Count: 1, WindowStart: now}, nil
		},
	}
	l := newTestLimiter(t, store, Config{Max: 1, Window: time.Minute, Salt: "pepper"})
	l.Allow(context.Background(), "192.0.2.10")

	if gotKey == "192.0.2.10" || len(gotKey) != 32 {
		t.Errorf("ключ = %q, ожидался 32-символьный хэш", gotKey)
	}
	if gotKey != l.HashIdentity("192.0.2.10") {
		t.Error("ключ не совпадает с HashIdentity")
	}

	other := newTestLimiter(t, store, Config{Max: 1, Window: time.Minute, Salt: "salt"})
	if other.HashIdentity("192.0.2.10") == gotKey {
		t.Error("разные соли дали одинаковый хэш")
	}
}

// TestAllow_PurgeThrottled проверяет, что очистка вызывается не чаще PurgeInterval.
func TestAllow_PurgeThrottled(t *testing.T) {
	purges := 0
	var purgeBefore time.Time
	store := &mockStore{
		incrementFn: func(_ context.Context, key string, now time.Time, _ time.Duration) (model.RateWindow, error) {
			return model.RateWindow{IdentityHash: key, Count: 1, WindowStart: now}, nil
		},
		purgeFn: func(_ context.Context, before time.Time) (int64, error) {
			purges++
			purgeBefore = before
			return 3, nil
		},
	}
	l := newTestLimiter(t, store, Config{Max: 10, Window: time.Hour, PurgeInterval: 5 * time.Minute})

	now := time.Date(2025, 1, 29, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow(context.Background(), "a")
	l.Allow(context.Background(), "b")
	if purges != 1 {
		t.Fatalf("очисток = %d, ожидалась 1", purges)
	}
	if !purgeBefore.Equal(now.Add(-time.Hour)) {
		t.Errorf("before = %v, ожидалось %v", purgeBefore, now.Add(-time.Hour))
	}

	now = now.Add(5 * time.Minute)
	l.Allow(context.Background(), "c")
	if purges != 2 {
		t.Errorf("очисток = %d, ожидалось 2", purges)
	}
}

func TestNew_Validation(t *testing.T) {
	store := NewMemoryStore(1, time.Minute)
	if _, err := New(nil, Config{Max: 1, Window: time.Minute}, testLogger()); err == nil {
		t.Error("ожидалась ошибка для nil store")
	}
	if _, err := New(store, Config{Max: 0, Window: time.Minute}, testLogger()); err == nil {
		t.Error("ожидалась ошибка для Max=0")
	}
	if _, err := New(store, Config{Max: 1}, testLogger()); err == nil {
		t.Error("ожидалась ошибка для Window=0")
	}
}

func TestMemoryStore_PurgeExpired(t *testing.T) {
	s := NewMemoryStore(10, time.Hour)
	ctx := context.Background()
	base := time.Date(2025, 1, 29, 12, 0, 0, 0, time.UTC)

	_, _ = s.Increment(ctx, "old", base, time.Minute)
	_, _ = s.Increment(ctx, "new", base.Add(10*time.Minute), time.Minute)

	n, err := s.PurgeExpired(ctx, base.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("PurgeExpired ошибка: %v", err)
	}
	if n != 1 || s.Len() != 1 {
		t.Errorf("удалено %d, осталось %d; ожидалось 1 и 1", n, s.Len())
	}
}

// TestMemoryStore_CapacityEviction: при нехватке ёмкости давний клиент вытесняется,
// его счётчик начинается заново, а вытеснение учитывается; очистка истёкших окон — нет.
func TestMemoryStore_CapacityEviction(t *testing.T) {
	s := NewMemoryStore(2, time.Minute)
	ctx := context.Background()
	now := time.Date(2025, 1, 29, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	for _, key := range []string{"a", "a", "b", "c"} {
		_, _ = s.Increment(ctx, key, now, time.Minute)
	}
	if s.Evicted() != 1 || s.Len() != 2 {
		t.Fatalf("вытеснено %d, хранится %d; ожидалось 1 и 2", s.Evicted(), s.Len())
	}

	w, _ := s.Increment(ctx, "a", now, time.Minute)
	if w.Count != 1 {
		t.Errorf("счётчик вытесненного клиента = %d, ожидалось 1", w.Count)
	}
	if s.Evicted() != 2 {
		t.Errorf("вытеснено %d, ожидалось 2", s.Evicted())
	}

	later := now.Add(2 * time.Minute)
	s.now = func() time.Time { return later }
	if n, _ := s.PurgeExpired(ctx, later.Add(-time.Minute)); n != 2 {
		t.Errorf("удалено %d, ожидалось 2", n)
	}
	if s.Evicted() != 2 {
		t.Errorf("очистка истёкших окон учтена как вытеснение: %d", s.Evicted())
	}
}
