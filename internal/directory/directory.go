// Пакет directory — реестр пациентов: авторитетный полный набор,
// производное фильтрованное подмножество и постраничный доступ к нему.
// Единственный владелец DirectoryState; инварианты:
//   - filtered — всегда производная full по текущему query
//     (case-insensitive вхождение подстроки в код пациента);
//   - порядок записей — порядок получения от backend, фильтрация
//     и пагинация его не меняют.
package directory

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/medview/client-module/internal/domain/model"
)

// Prometheus-метрики реестра.
var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_fetch_total",
		Help: "Общее количество загрузок реестра пациентов (по исходу).",
	}, []string{"outcome"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cm_fetch_duration_seconds",
		Help:    "Длительность загрузки реестра пациентов.",
		Buckets: prometheus.DefBuckets,
	})
)

// PatientAPI — операции API клиники, нужные реестру.
// Реализуется apiclient.Client.
type PatientAPI interface {
	ListPatients(ctx context.Context) ([]model.PatientSummary, error)
	PatientDetails(ctx context.Context, code string) (*model.PatientDetails, error)
	UpdateSurveyStatus(ctx context.Context, code string) error
	Prediction(ctx context.Context, code string) (*model.PredictionResult, error)
}

// Snapshot — наблюдаемый снимок состояния реестра.
type Snapshot struct {
	// Loading — загрузка реестра в полёте
	Loading bool
	// Err — ошибка последней загрузки (nil после успеха)
	Err error
	// Query — текущий поисковый запрос
	Query string
	// Total — размер полного набора
	Total int
	// TotalFiltered — размер фильтрованного подмножества
	TotalFiltered int
}

// Directory — реестр пациентов.
type Directory struct {
	mu       sync.Mutex
	full     []model.PatientSummary
	filtered []model.PatientSummary
	query    string
	loading  bool
	err      error
	subs     []chan Snapshot

	api    PatientAPI
	guard  func() bool
	cache  *DetailCache
	logger *slog.Logger
}

// New создаёт пустой реестр.
// guard — проверка "сессия ещё аутентифицирована": результат загрузки,
// завершившейся после выхода из сессии, отбрасывается и не воскрешает
// данные для анонимного клиента. nil — без проверки.
func New(api PatientAPI, guard func() bool, cache *DetailCache, logger *slog.Logger) *Directory {
	return &Directory{
		api:    api,
		guard:  guard,
		cache:  cache,
		logger: logger.With(slog.String("component", "patient_directory")),
	}
}

// FetchAll загружает полный реестр с backend.
// Устанавливает флаг загрузки; при успехе полностью заменяет full,
// пересчитывает filtered по query, актуальному на момент завершения
// (не на момент выдачи запроса), и сбрасывает ошибку. При ошибке прежние
// данные остаются нетронутыми, ошибка публикуется в снимке состояния.
// Параллельные вызовы не фенсятся: состояние отражает завершившуюся
// последней загрузку (last-arrival-wins, поведение исходного клиента).
func (d *Directory) FetchAll(ctx context.Context) error {
	start := time.Now()

	d.mu.Lock()
	d.loading = true
	d.notifyLocked()
	d.mu.Unlock()

	patients, err := d.api.ListPatients(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.loading = false

	if d.guard != nil && !d.guard() {
		// Сессия завершилась, пока загрузка была в полёте
		fetchTotal.WithLabelValues("discarded").Inc()
		d.logger.Info("Результат загрузки отброшен: сессия не аутентифицирована")
		d.notifyLocked()
		return nil
	}

	if err != nil {
		fetchTotal.WithLabelValues("error").Inc()
		d.err = err
		d.logger.Warn("Загрузка реестра завершилась ошибкой", slog.String("error", err.Error()))
		d.notifyLocked()
		return err
	}

	fetchTotal.WithLabelValues("success").Inc()
	fetchDuration.Observe(time.Since(start).Seconds())

	d.full = patients
	d.filtered = filter(d.full, d.query)
	d.err = nil

	d.logger.Debug("Реестр загружен",
		slog.Int("total", len(d.full)),
		slog.Int("filtered", len(d.filtered)),
		slog.Duration("duration", time.Since(start)),
	)
	d.notifyLocked()
	return nil
}

// SetQuery обновляет поисковый запрос и пересчитывает filtered.
// Пустой или пробельный запрос — фильтрация отключена (filtered = full).
// Вызов немедленно эффективен независимо от загрузки в полёте.
func (d *Directory) SetQuery(query string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.query = query
	d.filtered = filter(d.full, d.query)
	d.notifyLocked()
}

// Query возвращает текущий поисковый запрос.
func (d *Directory) Query() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.query
}

// GetPage возвращает срез filtered для страницы page (нумерация с 1).
// Диапазон: [(page-1)*pageSize, min(page*pageSize, |filtered|)).
// Запрос за пределами данных возвращает пустой срез, никогда не паникует.
func (d *Directory) GetPage(page, pageSize int) []model.PatientSummary {
	d.mu.Lock()
	defer d.mu.Unlock()

	if page < 1 || pageSize < 1 {
		return nil
	}

	start := (page - 1) * pageSize
	if start >= len(d.filtered) {
		return nil
	}

	end := start + pageSize
	if end > len(d.filtered) {
		end = len(d.filtered)
	}
	return d.filtered[start:end]
}

// TotalPages возвращает количество страниц: max(1, ceil(|filtered| / pageSize)).
// Пустой реестр — одна (пустая) страница, соответствует «страница 1 из 1» в UI.
func (d *Directory) TotalPages(pageSize int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return totalPages(len(d.filtered), pageSize)
}

// MarkSeen обновляет статус записи по коду пациента на StatusSeen
// in-place в full и filtered, без переупорядочивания и без перезагрузки.
func (d *Directory) MarkSeen(code string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.full {
		if d.full[i].Code == code {
			d.full[i].Status = model.StatusSeen
			break
		}
	}
	for i := range d.filtered {
		if d.filtered[i].Code == code {
			d.filtered[i].Status = model.StatusSeen
			break
		}
	}
}

// Details возвращает детальную анкету пациента: из кэша или с backend.
// Успешное получение помечает запись просмотренной (MarkSeen) и отправляет
// courtesy-обновление статуса на backend; его ошибка не фатальна —
// локальное состояние уже обновлено, backend скорректируется при следующей
// полной загрузке.
func (d *Directory) Details(ctx context.Context, code string) (*model.PatientDetails, error) {
	if details, ok := d.cache.Get(code); ok {
		return details, nil
	}

	details, err := d.api.PatientDetails(ctx, code)
	if err != nil {
		return nil, err
	}

	d.cache.Set(code, details)
	d.MarkSeen(code)

	if err := d.api.UpdateSurveyStatus(ctx, code); err != nil {
		d.logger.Warn("Courtesy-обновление статуса анкеты не выполнено",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}

	return details, nil
}

// Prediction возвращает результат прогноза для пациента.
func (d *Directory) Prediction(ctx context.Context, code string) (*model.PredictionResult, error) {
	return d.api.Prediction(ctx, code)
}

// Snapshot возвращает текущий снимок состояния реестра.
func (d *Directory) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// Subscribe возвращает канал снимков состояния реестра.
// Семантика доставки — как у session.Controller.Subscribe.
func (d *Directory) Subscribe() <-chan Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan Snapshot, 8)
	d.subs = append(d.subs, ch)
	return ch
}

// Reset полностью очищает реестр и кэш деталей (при выходе из сессии).
func (d *Directory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.full = nil
	d.filtered = nil
	d.query = ""
	d.err = nil
	d.loading = false
	d.cache.Purge()
	d.notifyLocked()
}

// snapshotLocked формирует снимок. Вызывается под d.mu.
func (d *Directory) snapshotLocked() Snapshot {
	return Snapshot{
		Loading:       d.loading,
		Err:           d.err,
		Query:         d.query,
		Total:         len(d.full),
		TotalFiltered: len(d.filtered),
	}
}

// notifyLocked рассылает снимок подписчикам. Вызывается под d.mu.
func (d *Directory) notifyLocked() {
	snap := d.snapshotLocked()
	for _, ch := range d.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// filter возвращает подмножество full по case-insensitive вхождению
// query в код пациента. Пустой/пробельный query — без фильтрации.
// Порядок записей сохраняется.
func filter(full []model.PatientSummary, query string) []model.PatientSummary {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		out := make([]model.PatientSummary, len(full))
		copy(out, full)
		return out
	}

	out := make([]model.PatientSummary, 0, len(full))
	for _, p := range full {
		if strings.Contains(strings.ToLower(p.Code), q) {
			out = append(out, p)
		}
	}
	return out
}

// totalPages — max(1, ceil(total / pageSize)).
func totalPages(total, pageSize int) int {
	if pageSize < 1 || total <= 0 {
		return 1
	}
	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}
