// detailcache.go — LRU-кэш детальных анкет пациентов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package directory

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/medview/client-module/internal/domain/model"
)

// Prometheus-метрики кэша деталей.
var (
	detailCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_detail_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш детальных анкет.",
	})
	detailCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_detail_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша детальных анкет.",
	})
)

// DetailCache — LRU-кэш детальных анкет с автоматическим TTL.
// Кэш живёт в пределах процесса клиента; повторное открытие карточки
// пациента в течение TTL не порождает сетевого запроса.
type DetailCache struct {
	cache *expirable.LRU[string, *model.PatientDetails]
}

// NewDetailCache создаёт LRU-кэш с указанным максимальным размером и TTL.
// maxSize — максимальное количество записей в кэше.
// ttl — время жизни записи после добавления.
func NewDetailCache(maxSize int, ttl time.Duration) *DetailCache {
	cache := expirable.NewLRU[string, *model.PatientDetails](maxSize, nil, ttl)
	return &DetailCache{cache: cache}
}

// Get возвращает детальную анкету из кэша по коду пациента.
// Возвращает (запись, true) при hit или (nil, false) при miss.
// Обновляет Prometheus-метрики hit/miss.
func (c *DetailCache) Get(code string) (*model.PatientDetails, bool) {
	val, ok := c.cache.Get(code)
	if ok {
		detailCacheHitsTotal.Inc()
		return val, true
	}
	detailCacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *DetailCache) Set(code string, details *model.PatientDetails) {
	c.cache.Add(code, details)
}

// Purge полностью очищает кэш (при выходе из сессии).
func (c *DetailCache) Purge() {
	c.cache.Purge()
}
