// auth.go — выпуск и проверка HS256-токенов Clinic Mock API.
// Упрощённая модель настоящего backend клиники: симметричный секрет
// вместо Keycloak, claims ограничены профилем врача.
package mockapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/medview/client-module/internal/domain/model"
)

// TokenIssuer — выпуск и проверка HS256-токенов.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer создаёт эмитент токенов.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue выпускает токен для профиля врача.
func (t *TokenIssuer) Issue(user model.UserProfile) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   fmt.Sprintf("%d", user.ID),
		"email": user.Email,
		"name":  user.FullName(),
		"iat":   now.Unix(),
		"exp":   now.Add(t.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("подпись токена: %w", err)
	}
	return signed, nil
}

// Verify проверяет подпись и срок действия токена.
func (t *TokenIssuer) Verify(tokenString string) error {
	_, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("проверка токена: %w", err)
	}
	return nil
}

// Middleware возвращает middleware аутентификации защищённых маршрутов.
// Запрос без токена или с невалидным токеном отклоняется 401.
func (t *TokenIssuer) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Отсутствует Bearer-токен")
				return
			}

			if err := t.Verify(tokenString); err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Токен не прошёл проверку")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
