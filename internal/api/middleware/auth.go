// auth.go — аутентификация административного POST /migrate.
//
// Принимается Authorization: Bearer <credential>, где credential — либо сам
// секрет SP_MIGRATE_SECRET (сравнение за постоянное время), либо короткоживущий
// HS256 JWT, подписанный этим секретом (exp обязателен). Второй вариант нужен
// планировщикам, которые выпускают токен на каждый запуск и не хранят секрет
// в заголовках своих логов.
//
// Пустой секрет — endpoint закрыт: любой запрос получает 401.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/juliez8/snake-year-shedding-pond/internal/api/errors"
)

// messageUnauthorized — единый текст отказа, причина пишется только в лог.
const messageUnauthorized = "Unauthorized"

// MigrateAuth — middleware проверки bearer-секрета.
type MigrateAuth struct {
	secret []byte
	leeway time.Duration
	logger *slog.Logger
}

// NewMigrateAuth создаёт middleware. leeway — допустимое отклонение часов для exp/nbf.
func NewMigrateAuth(secret string, leeway time.Duration, logger *slog.Logger) *MigrateAuth {
	return &MigrateAuth{
		secret: []byte(secret),
		leeway: leeway,
		logger: logger.With(slog.String("component", "migrate_auth")),
	}
}

// Middleware возвращает HTTP middleware.
func (a *MigrateAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.authenticate(r) {
				apierrors.Unauthorized(w, messageUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate проверяет заголовок Authorization.
func (a *MigrateAuth) authenticate(r *http.Request) bool {
	if len(a.secret) == 0 {
		a.logger.Warn("SP_MIGRATE_SECRET не задан, запрос отклонён",
			slog.String("remote_addr", r.RemoteAddr),
		)
		return false
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return false
	}
	credential := parts[1]

	if subtle.ConstantTimeCompare([]byte(credential), a.secret) == 1 {
		return true
	}

	// Не секрет — возможно, подписанный им токен
	if strings.Count(credential, ".") != 2 {
		return false
	}

	token, err := jwt.Parse(credential, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
	)
	if err != nil {
		a.logger.Debug("Токен /migrate не прошёл проверку",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr),
		)
		return false
	}
	return token.Valid
}
