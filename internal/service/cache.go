// cache.go — кэш страниц галереи с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sp_gallery_cache_hits_total",
		Help: "Общее количество попаданий в кэш страниц галереи.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sp_gallery_cache_misses_total",
		Help: "Общее количество промахов кэша страниц галереи.",
	})
)

// PageCache — LRU-кэш страниц галереи с автоматическим TTL.
// Каждый экземпляр имеет собственный кэш; галерея меняется только при
// вытеснении, поэтому короткий TTL даёт ту же свежесть, что и CDN (s-maxage).
type PageCache struct {
	cache *expirable.LRU[pageKey, *GalleryPage]
}

// pageKey — ключ страницы.
type pageKey struct {
	page  int
	limit int
}

// NewPageCache создаёт кэш на maxSize страниц с временем жизни ttl.
func NewPageCache(maxSize int, ttl time.Duration) *PageCache {
	return &PageCache{
		cache: expirable.NewLRU[pageKey, *GalleryPage](maxSize, nil, ttl),
	}
}

// Get возвращает страницу при hit или (nil, false) при miss.
func (c *PageCache) Get(page, limit int) (*GalleryPage, bool) {
	val, ok := c.cache.Get(pageKey{page: page, limit: limit})
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет страницу.
func (c *PageCache) Set(page, limit int, p *GalleryPage) {
	c.cache.Add(pageKey{page: page, limit: limit}, p)
}

// Purge очищает кэш (после вытеснения галерея изменилась).
func (c *PageCache) Purge() {
	c.cache.Purge()
}
