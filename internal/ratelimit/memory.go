package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
)

// memoryEvictionsTotal — окна, вытесненные из LRU до истечения.
var memoryEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "sp_rate_limit_memory_evictions_total",
	Help: "Активные окна rate limit, вытесненные из in-memory хранилища по ёмкости.",
})

// MemoryStore — окна в памяти процесса (LRU с TTL).
// Подходит для одного экземпляра и для разработки; при нескольких
// экземплярах каждый считает свои окна.
type MemoryStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, model.RateWindow]
	ttl   time.Duration
	now   func() time.Time

	evicted atomic.Int64
}

// NewMemoryStore создаёт хранилище на maxKeys клиентов.
// Запись живёт ttl с момента последнего обновления (обычно — длительность окна).
//
// Ёмкость — жёсткий предел: при потоке запросов от более чем maxKeys разных
// клиентов давно не обращавшиеся клиенты вытесняются, и их счётчики
// начинаются заново. Поэтому хранилище годится только для одного экземпляра
// и разработки; в production используется PostgreSQL. Вытеснения активных окон
// видны в sp_rate_limit_memory_evictions_total.
func NewMemoryStore(maxKeys int, ttl time.Duration) *MemoryStore {
	s := &MemoryStore{ttl: ttl, now: time.Now}
	s.cache = expirable.NewLRU[string, model.RateWindow](maxKeys, s.onEvict, ttl)
	return s
}

// onEvict учитывает только окна, которые ещё не истекли: удаление истёкших
// (по TTL или PurgeExpired) счётчик не лишает ничего.
func (s *MemoryStore) onEvict(_ string, w model.RateWindow) {
	if s.now().Sub(w.WindowStart) < s.ttl {
		s.evicted.Add(1)
		memoryEvictionsTotal.Inc()
	}
}

// Evicted возвращает число активных окон, вытесненных по ёмкости.
func (s *MemoryStore) Evicted() int64 {
	return s.evicted.Load()
}

// Increment увеличивает счётчик под мьютексом.
func (s *MemoryStore) Increment(_ context.Context, key string, now time.Time, window time.Duration) (model.RateWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.cache.Get(key)
	if !ok || !w.WindowStart.Add(window).After(now) {
		w = model.RateWindow{IdentityHash: key, Count: 0, WindowStart: now}
	}
	w.Count++
	s.cache.Add(key, w)
	return w, nil
}

// PurgeExpired удаляет окна, начатые раньше before.
func (s *MemoryStore) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, key := range s.cache.Keys() {
		w, ok := s.cache.Peek(key)
		if ok && w.WindowStart.Before(before) {
			s.cache.Remove(key)
			n++
		}
	}
	return n, nil
}

// Len возвращает число хранимых окон.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}
