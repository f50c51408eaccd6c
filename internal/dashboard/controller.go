// Пакет dashboard — контроллер главного экрана: текущая страница реестра,
// поисковый запрос и профиль пользователя. Номер страницы всегда в
// диапазоне [1, TotalPages]; смена запроса возвращает на первую страницу,
// сокращение фильтрованного набора подрезает номер страницы.
package dashboard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bigkaa/medview/client-module/internal/domain/model"
	"github.com/bigkaa/medview/client-module/internal/session"
)

// PatientRegistry — операции реестра, нужные контроллеру.
// Реализуется directory.Directory.
type PatientRegistry interface {
	FetchAll(ctx context.Context) error
	SetQuery(query string)
	GetPage(page, pageSize int) []model.PatientSummary
	TotalPages(pageSize int) int
	Details(ctx context.Context, code string) (*model.PatientDetails, error)
	Reset()
}

// SessionControl — операции сессии, нужные контроллеру.
// Реализуется session.Controller.
type SessionControl interface {
	Current() session.Snapshot
	Logout() error
}

// Controller — контроллер главного экрана.
type Controller struct {
	mu       sync.Mutex
	page     int
	pageSize int

	registry PatientRegistry
	session  SessionControl
	logger   *slog.Logger
}

// NewController создаёт контроллер. pageSize — из конфигурации CM_PAGE_SIZE.
func NewController(registry PatientRegistry, sess SessionControl, pageSize int, logger *slog.Logger) *Controller {
	return &Controller{
		page:     1,
		pageSize: pageSize,
		registry: registry,
		session:  sess,
		logger:   logger.With(slog.String("component", "dashboard")),
	}
}

// Refresh перезагружает реестр с backend и подрезает номер страницы
// под новый размер фильтрованного набора.
func (c *Controller) Refresh(ctx context.Context) error {
	err := c.registry.FetchAll(ctx)

	c.mu.Lock()
	c.clampLocked()
	c.mu.Unlock()

	return err
}

// Page возвращает записи текущей страницы.
func (c *Controller) Page() []model.PatientSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.GetPage(c.page, c.pageSize)
}

// CurrentPage возвращает номер текущей страницы (нумерация с 1).
func (c *Controller) CurrentPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// TotalPages возвращает количество страниц фильтрованного набора.
func (c *Controller) TotalPages() int {
	return c.registry.TotalPages(c.pageSize)
}

// NextPage переходит на следующую страницу. На последней — no-op.
func (c *Controller) NextPage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page < c.registry.TotalPages(c.pageSize) {
		c.page++
	}
}

// PrevPage переходит на предыдущую страницу. На первой — no-op.
func (c *Controller) PrevPage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page > 1 {
		c.page--
	}
}

// SetQuery обновляет поисковый запрос и возвращает на первую страницу.
func (c *Controller) SetQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.SetQuery(query)
	c.page = 1
}

// OpenPatient открывает детальную анкету пациента. Запись помечается
// просмотренной реестром in-place: текущая страница и порядок записей
// не меняются.
func (c *Controller) OpenPatient(ctx context.Context, code string) (*model.PatientDetails, error) {
	return c.registry.Details(ctx, code)
}

// CurrentUser возвращает профиль аутентифицированного пользователя
// (nil вне состояния Authenticated).
func (c *Controller) CurrentUser() *model.UserProfile {
	return c.session.Current().User
}

// Logout завершает сессию и сбрасывает реестр и состояние экрана.
func (c *Controller) Logout() error {
	err := c.session.Logout()
	c.registry.Reset()

	c.mu.Lock()
	c.page = 1
	c.mu.Unlock()

	c.logger.Info("Экран сброшен после выхода")
	return err
}

// clampLocked подрезает номер страницы к [1, TotalPages].
// Вызывается под c.mu.
func (c *Controller) clampLocked() {
	total := c.registry.TotalPages(c.pageSize)
	if c.page > total {
		c.page = total
	}
	if c.page < 1 {
		c.page = 1
	}
}
