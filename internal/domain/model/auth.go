// Пакет model — доменные модели клиентского модуля.
// auth.go — модели аутентификации: профиль пользователя, учётные данные,
// ответ login endpoint. Формы JSON совместимы с backend клиники.
package model

import "strings"

// UserProfile — профиль аутентифицированного пользователя (врача).
// Неизменяем после получения из ответа login.
type UserProfile struct {
	// ID — уникальный идентификатор пользователя
	ID int64 `json:"id"`
	// Name — имя
	Name string `json:"name"`
	// Surname — фамилия
	Surname string `json:"surname"`
	// Email — электронная почта
	Email string `json:"email"`
}

// FullName возвращает отображаемое имя пользователя ("имя фамилия").
// Чистая производная, отдельно не хранится.
func (u UserProfile) FullName() string {
	return u.Name + " " + u.Surname
}

// Credential — персистентная пара "токен доступа + профиль пользователя",
// представляющая активную сессию. Владелец — credstore.
type Credential struct {
	// Token — opaque токен доступа (Bearer)
	Token string `json:"token"`
	// User — профиль пользователя, которому выдан токен
	User UserProfile `json:"user"`
}

// Valid проверяет полноту учётных данных: токен непустой и профиль задан.
// Инвариант сессии: Credential присутствует ⇔ клиент считает себя
// аутентифицированным (hasToken ∧ hasUser).
func (c Credential) Valid() bool {
	return strings.TrimSpace(c.Token) != "" && c.User.ID != 0
}

// LoginRequest — тело запроса POST /api/auth/login.
type LoginRequest struct {
	// Email — идентификатор пользователя
	Email string `json:"email"`
	// Password — секрет
	Password string `json:"password"`
}

// AuthResponse — ответ успешной аутентификации.
// Возвращается login и refresh-token endpoints.
type AuthResponse struct {
	// User — профиль аутентифицированного пользователя
	User UserProfile `json:"user"`
	// Token — токен доступа для последующих запросов
	Token string `json:"token"`
}
