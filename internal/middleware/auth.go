// Package middleware содержит HTTP middleware сервиса Kuriftu Rewards.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kuriftu/rewards-system/internal/model"
)

type contextKey string

const (
	userIDKey   contextKey = "userID"
	userRoleKey contextKey = "userRole"
)

const (
	authCookieName = "auth_token"
	authCookieTTL  = 365 * 24 * time.Hour
)

// AuthMiddleware выполняет проверку аутентификации по подписанному cookie.
// Значение cookie несёт идентификатор и роль пользователя: "<id>.<role>.<подпись>".
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет cookie авторизации и добавляет идентификатор и роль
// пользователя в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		userID, role, ok := a.parseCookie(cookie.Value)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, userRoleKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole пропускает запрос только для перечисленных ролей.
// Применяется после Middleware.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRoleFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// SetAuthCookie устанавливает cookie авторизации для пользователя.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, userID int64, role model.Role) {
	value := a.sign(userID, role)

	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

func (a *AuthMiddleware) sign(userID int64, role model.Role) string {
	payload := strconv.FormatInt(userID, 10) + "." + string(role)

	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	signature := mac.Sum(nil)

	return payload + "." + hex.EncodeToString(signature)
}

func (a *AuthMiddleware) parseCookie(cookieValue string) (int64, model.Role, bool) {
	parts := strings.Split(cookieValue, ".")
	if len(parts) != 3 {
		return 0, "", false
	}

	payload := parts[0] + "." + parts[1]
	signature := parts[2]

	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return 0, "", false
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", false
	}

	role := model.Role(parts[1])
	switch role {
	case model.RoleAdmin, model.RoleStaff, model.RoleGuest:
	default:
		return 0, "", false
	}

	return id, role, true
}

// GetUserIDFromContext извлекает идентификатор пользователя из контекста запроса.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// GetUserRoleFromContext извлекает роль пользователя из контекста запроса.
func GetUserRoleFromContext(ctx context.Context) (model.Role, bool) {
	role, ok := ctx.Value(userRoleKey).(model.Role)
	return role, ok
}
