// ratelimit.go — ограничение частоты запросов на клиента.
// Заголовки квоты выставляются на каждый ответ, Retry-After — только при отказе.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/juliez8/snake-year-shedding-pond/internal/api/errors"
	"github.com/juliez8/snake-year-shedding-pond/internal/ratelimit"
)

// messageRateLimited — текст ответа 429.
const messageRateLimited = "Too many requests. Please try again later."

// Admitter — решение о допуске запроса клиента.
type Admitter interface {
	Allow(ctx context.Context, identity string) ratelimit.Result
}

// RateLimit возвращает middleware, пропускающий запрос только при свободной квоте.
// Клиент определяется по адресу r.RemoteAddr; за доверенным прокси его
// предварительно переписывает chi middleware.RealIP.
func RateLimit(limiter Admitter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Allow(r.Context(), ClientIP(r))
			SetRateLimitHeaders(w.Header(), res, time.Now())

			if res.Limited {
				apierrors.RateLimited(w, messageRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetRateLimitHeaders выставляет X-RateLimit-* (Reset — unix-время в секундах).
func SetRateLimitHeaders(h http.Header, res ratelimit.Result, now time.Time) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(now.Unix()+int64(res.ResetInSeconds), 10))
	if res.Limited {
		h.Set("Retry-After", strconv.Itoa(res.ResetInSeconds))
	}
}

// ClientIP возвращает адрес клиента без порта.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RealIP записывает адрес без порта
		return r.RemoteAddr
	}
	return host
}
