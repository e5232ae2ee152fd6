package middleware

import (
	"errors"
	"net/http"

	apierrors "github.com/juliez8/snake-year-shedding-pond/internal/api/errors"
)

// MessageTooLarge — текст ответа 413.
const MessageTooLarge = "Request entity too large."

// BodyLimit ограничивает размер тела запроса.
// Content-Length проверяется сразу; фактическое тело дополнительно обёрнуто
// в http.MaxBytesReader, так как заголовок может не совпадать с телом.
// Переполнение при чтении распознаётся обработчиком через IsTooLarge.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				apierrors.PayloadTooLarge(w, MessageTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// IsTooLarge сообщает, что чтение тела прервано лимитом BodyLimit.
func IsTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
