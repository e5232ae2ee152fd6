package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "cron-secret-0123456789"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// signToken выпускает HS256-токен с указанным сроком действия.
func signToken(t *testing.T, secret string, method jwt.SigningMethod, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "scheduler",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("подпись токена: %v", err)
	}
	return s
}

func runAuth(auth *MigrateAuth, header string) (int, bool) {
	called := false
	h := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/migrate", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code, called
}

func TestMigrateAuth(t *testing.T) {
	auth := NewMigrateAuth(testSecret, 0, testLogger())

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"secret", "Bearer " + testSecret, http.StatusOK},
		{"scheme case-insensitive", "bearer " + testSecret, http.StatusOK},
		{"hs256 token", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, time.Now().Add(time.Minute)), http.StatusOK},
		{"no header", "", http.StatusUnauthorized},
		{"wrong secret", "Bearer nope", http.StatusUnauthorized},
		{"secret prefix", "Bearer " + testSecret[:5], http.StatusUnauthorized},
		{"basic scheme", "Basic " + testSecret, http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"expired token", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, time.Now().Add(-time.Minute)), http.StatusUnauthorized},
		{"foreign key", "Bearer " + signToken(t, "another-secret", jwt.SigningMethodHS256, time.Now().Add(time.Minute)), http.StatusUnauthorized},
		{"hs512 token", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS512, time.Now().Add(time.Minute)), http.StatusUnauthorized},
		{"garbage jwt", "Bearer a.b.c", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, called := runAuth(auth, tt.header)
			if code != tt.want {
				t.Errorf("статус = %d, ожидался %d", code, tt.want)
			}
			if called != (tt.want == http.StatusOK) {
				t.Errorf("обработчик вызван = %v", called)
			}
		})
	}
}

func TestMigrateAuth_TokenWithoutExp(t *testing.T) {
	auth := NewMigrateAuth(testSecret, 0, testLogger())

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "scheduler"}).
		SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	if code, _ := runAuth(auth, "Bearer "+token); code != http.StatusUnauthorized {
		t.Errorf("токен без exp: статус %d, ожидался 401", code)
	}
}

func TestMigrateAuth_Leeway(t *testing.T) {
	auth := NewMigrateAuth(testSecret, time.Minute, testLogger())
	token := signToken(t, testSecret, jwt.SigningMethodHS256, time.Now().Add(-10*time.Second))

	if code, _ := runAuth(auth, "Bearer "+token); code != http.StatusOK {
		t.Errorf("токен в пределах leeway: статус %d, ожидался 200", code)
	}
}

// TestMigrateAuth_EmptySecret — без секрета endpoint закрыт для всех.
func TestMigrateAuth_EmptySecret(t *testing.T) {
	auth := NewMigrateAuth("", 0, testLogger())

	for _, header := range []string{"", "Bearer ", "Bearer anything"} {
		if code, called := runAuth(auth, header); code != http.StatusUnauthorized || called {
			t.Errorf("%q: статус %d, вызван %v", header, code, called)
		}
	}
}
