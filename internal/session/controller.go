// Пакет session — контроллер аутентификационной сессии.
// Единственный владелец состояния SessionState и единственный компонент,
// которому разрешены его переходы:
//
//	Anonymous → Authenticating            (Login)
//	Authenticating → Authenticated        (успех login-обмена)
//	Authenticating → Anonymous            (ошибка login-обмена)
//	Authenticated → Anonymous             (Logout или ExpireSession)
//
// Остальные компоненты только читают состояние (Current/Subscribe).
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/medview/client-module/internal/credstore"
	"github.com/bigkaa/medview/client-module/internal/domain/model"
)

// Prometheus-метрики сессии.
var loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cm_logins_total",
	Help: "Общее количество login-обменов (по исходу).",
}, []string{"outcome"})

// Ошибки контроллера сессии.
var (
	// ErrLoginInProgress — попытка Login при уже выполняющемся login-обмене.
	ErrLoginInProgress = errors.New("вход уже выполняется")
)

// State — состояние сессии.
type State int

const (
	// StateAnonymous — клиент не аутентифицирован.
	StateAnonymous State = iota
	// StateAuthenticating — login-обмен в полёте.
	StateAuthenticating
	// StateAuthenticated — клиент аутентифицирован.
	StateAuthenticated
)

// String возвращает имя состояния для логов.
func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Snapshot — наблюдаемый снимок состояния сессии.
// User задан только в состоянии StateAuthenticated.
type Snapshot struct {
	// State — текущее состояние сессии
	State State
	// User — профиль аутентифицированного пользователя (nil вне Authenticated)
	User *model.UserProfile
}

// LoginAPI — login-обмен с backend. Реализуется apiclient.Client.
type LoginAPI interface {
	Login(ctx context.Context, email, password string) (*model.AuthResponse, error)
}

// TokenVerifier — проверка подписи токена при восстановлении сессии.
// Реализуется Verifier (JWKS). nil — проверяется только структурное exp.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) error
}

// Controller — контроллер сессии.
type Controller struct {
	mu       sync.Mutex
	state    State
	user     *model.UserProfile
	subs     []chan Snapshot
	expSubs  []chan struct{}
	store    *credstore.Store
	api      LoginAPI
	verifier TokenVerifier
	logger   *slog.Logger
}

// NewController создаёт контроллер сессии. Начальное состояние — Anonymous.
// verifier может быть nil (восстановление без проверки подписи).
func NewController(store *credstore.Store, api LoginAPI, verifier TokenVerifier, logger *slog.Logger) *Controller {
	return &Controller{
		state:    StateAnonymous,
		store:    store,
		api:      api,
		verifier: verifier,
		logger:   logger.With(slog.String("component", "session")),
	}
}

// Current возвращает текущий снимок состояния сессии.
func (c *Controller) Current() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, User: c.user}
}

// IsAuthenticated сообщает, аутентифицирован ли клиент.
func (c *Controller) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateAuthenticated
}

// Subscribe возвращает канал снимков состояния. Каждый переход состояния
// доставляет снимок каждому подписчику. Медленный подписчик теряет
// промежуточные снимки (канал буферизован, отправка неблокирующая) —
// актуальное состояние всегда доступно через Current.
func (c *Controller) Subscribe() <-chan Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan Snapshot, 8)
	c.subs = append(c.subs, ch)
	return ch
}

// SubscribeExpired возвращает канал уведомлений об истечении сессии.
// Одно обнаруженное истечение — ровно одно уведомление, независимо от
// количества параллельных запросов, наблюдавших 401.
func (c *Controller) SubscribeExpired() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan struct{}, 1)
	c.expSubs = append(c.expSubs, ch)
	return ch
}

// Login выполняет login-обмен: Anonymous → Authenticating → Authenticated.
// Повторный вызов при выполняющемся обмене отклоняется ErrLoginInProgress —
// на контроллер допускается не более одного login-обмена в полёте.
// При любой ошибке (неверные учётные данные, сеть, хранилище) состояние
// возвращается в Anonymous, ошибка классифицирована пакетом apiclient.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	c.mu.Lock()
	if c.state == StateAuthenticating {
		c.mu.Unlock()
		return ErrLoginInProgress
	}
	c.setStateLocked(StateAuthenticating, nil)
	c.mu.Unlock()

	resp, err := c.api.Login(ctx, email, password)
	if err != nil {
		c.mu.Lock()
		c.setStateLocked(StateAnonymous, nil)
		c.mu.Unlock()
		loginsTotal.WithLabelValues("error").Inc()
		c.logger.Warn("Login-обмен завершился ошибкой", slog.String("error", err.Error()))
		return err
	}

	cred := &model.Credential{Token: resp.Token, User: resp.User}
	if err := c.store.Save(cred); err != nil {
		// Непpersisted сессия нарушила бы инвариант "Credential ⇔ Authenticated"
		c.mu.Lock()
		c.setStateLocked(StateAnonymous, nil)
		c.mu.Unlock()
		return fmt.Errorf("сохранение учётных данных: %w", err)
	}

	c.mu.Lock()
	user := resp.User
	c.setStateLocked(StateAuthenticated, &user)
	c.mu.Unlock()

	loginsTotal.WithLabelValues("success").Inc()
	c.logger.Info("Вход выполнен", slog.String("user", resp.User.Email))
	return nil
}

// Logout очищает хранилище учётных данных и безусловно переводит сессию
// в Anonymous. Идемпотентен; безопасен для вызова из пути обработки
// ошибки аутентификации транспорта. Ошибка очистки хранилища фатальна
// и возвращается вызывающему, переход состояния выполняется в любом случае.
func (c *Controller) Logout() error {
	err := c.store.Clear()

	c.mu.Lock()
	c.setStateLocked(StateAnonymous, nil)
	c.mu.Unlock()

	c.logger.Info("Выход выполнен")
	return err
}

// ExpireSession обрабатывает обнаруженное истечение сессии (401 вне login):
// принудительный Logout плюс одно уведомление подписчикам. В состоянии,
// отличном от Authenticated, — no-op: повторные 401 параллельных запросов
// не порождают каскада уведомлений.
func (c *Controller) ExpireSession() {
	c.mu.Lock()
	if c.state != StateAuthenticated {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateAnonymous, nil)
	expSubs := c.expSubs
	c.mu.Unlock()

	if err := c.store.Clear(); err != nil {
		c.logger.Error("Очистка учётных данных при истечении сессии", slog.String("error", err.Error()))
	}

	c.logger.Warn("Сессия истекла, выполнен принудительный выход")
	for _, ch := range expSubs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// RestoreSession восстанавливает сессию при старте процесса без сетевого
// обмена (оптимистичное восстановление): наличие валидной записи в
// хранилище переводит состояние в Authenticated. Структурно просроченный
// JWT (exp в прошлом) трактуется как отсутствие учётных данных и удаляется.
// При настроенном verifier дополнительно проверяется подпись токена.
// Последующий запрос, не прошедший аутентификацию, скорректирует
// оптимистичное восстановление через ExpireSession.
func (c *Controller) RestoreSession(ctx context.Context) {
	cred := c.store.Load()
	if cred == nil {
		return
	}

	if tokenExpired(cred.Token) {
		c.logger.Info("Сохранённый токен просрочен, сессия не восстановлена")
		if err := c.store.Clear(); err != nil {
			c.logger.Error("Очистка просроченных учётных данных", slog.String("error", err.Error()))
		}
		return
	}

	if c.verifier != nil {
		if err := c.verifier.Verify(ctx, cred.Token); err != nil {
			c.logger.Warn("Подпись сохранённого токена не прошла проверку, сессия не восстановлена",
				slog.String("error", err.Error()),
			)
			if err := c.store.Clear(); err != nil {
				c.logger.Error("Очистка отклонённых учётных данных", slog.String("error", err.Error()))
			}
			return
		}
	}

	c.mu.Lock()
	user := cred.User
	c.setStateLocked(StateAuthenticated, &user)
	c.mu.Unlock()

	c.logger.Info("Сессия восстановлена", slog.String("user", cred.User.Email))
}

// setStateLocked выполняет переход состояния и рассылает снимок подписчикам.
// Вызывается под c.mu.
func (c *Controller) setStateLocked(state State, user *model.UserProfile) {
	c.state = state
	c.user = user

	snap := Snapshot{State: state, User: user}
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// tokenExpired проверяет структурное истечение JWT без проверки подписи.
// Не-JWT (opaque) токен и JWT без exp считаются непросроченными —
// решение остаётся за backend при первом запросе.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}

	return exp.Before(time.Now())
}
