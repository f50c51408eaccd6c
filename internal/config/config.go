// Пакет config — загрузка и валидация конфигурации клиентского модуля
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации клиентского модуля.
type Config struct {
	// --- Backend клиники ---

	// Базовый URL API клиники (например, https://clinic.example.com)
	APIURL string
	// Таймаут HTTP-запросов к API
	APITimeout time.Duration
	// Путь к CA-сертификату для TLS (пустая строка — стандартный пул)
	CACertPath string
	// Валидация ответов API по встроенному OpenAPI-контракту
	ValidateResponses bool

	// --- Хранилище учётных данных ---

	// Путь к файлу учётных данных
	CredentialsFile string
	// Base64-ключ AES-256 для шифрования файла (пустая строка — plaintext)
	CredentialsKey string

	// --- Проверка токена при восстановлении сессии ---

	// URL JWKS endpoint для проверки подписи токена (пустая строка — только exp)
	JWKSURL string
	// Таймаут HTTP-клиента JWKS
	JWKSTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration

	// --- Реестр пациентов ---

	// Размер страницы реестра
	PageSize int
	// Максимальное количество записей в кэше деталей
	DetailCacheSize int
	// Время жизни записи кэша деталей
	DetailCacheTTL time.Duration

	// --- Логирование ---

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- Мониторинг зависимостей ---

	// Включение dephealth-мониторинга backend
	DephealthEnabled bool
	// Имя группы в метриках dephealth
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Лейбл isentry=yes для всех зависимостей
	DephealthIsEntry bool
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Backend клиники ---

	// CM_API_URL — базовый URL API клиники (обязательная)
	cfg.APIURL, err = getEnvRequired("CM_API_URL")
	if err != nil {
		return nil, err
	}

	// CM_API_TIMEOUT — таймаут запросов (по умолчанию 10s, как в исходном клиенте)
	cfg.APITimeout, err = getEnvDuration("CM_API_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_API_TIMEOUT: %w", err)
	}

	// CM_CA_CERT_PATH — CA-сертификат для TLS (опциональная)
	cfg.CACertPath = getEnvDefault("CM_CA_CERT_PATH", "")

	// CM_VALIDATE_RESPONSES — проверка ответов по OpenAPI-контракту (по умолчанию false)
	cfg.ValidateResponses, err = getEnvBool("CM_VALIDATE_RESPONSES", false)
	if err != nil {
		return nil, fmt.Errorf("CM_VALIDATE_RESPONSES: %w", err)
	}

	// --- Хранилище учётных данных ---

	// CM_CREDENTIALS_FILE — путь к файлу (по умолчанию ~/.medview/credentials.json)
	cfg.CredentialsFile = getEnvDefault("CM_CREDENTIALS_FILE", "")
	if cfg.CredentialsFile == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return nil, fmt.Errorf("CM_CREDENTIALS_FILE не задана и домашний каталог недоступен: %w", homeErr)
		}
		cfg.CredentialsFile = filepath.Join(home, ".medview", "credentials.json")
	}

	// CM_CREDENTIALS_KEY — base64-ключ AES-256 (опциональная; пустая — plaintext)
	cfg.CredentialsKey = getEnvDefault("CM_CREDENTIALS_KEY", "")

	// --- Проверка токена ---

	// CM_JWKS_URL — JWKS endpoint (опциональная)
	cfg.JWKSURL = getEnvDefault("CM_JWKS_URL", "")

	// CM_JWKS_TIMEOUT — таймаут HTTP-клиента JWKS (по умолчанию 10s)
	cfg.JWKSTimeout, err = getEnvDuration("CM_JWKS_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_JWKS_TIMEOUT: %w", err)
	}

	// CM_JWKS_REFRESH_INTERVAL — интервал обновления ключей (по умолчанию 1h)
	cfg.JWKSRefreshInterval, err = getEnvDuration("CM_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CM_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// --- Реестр пациентов ---

	// CM_PAGE_SIZE — размер страницы реестра (по умолчанию 10)
	cfg.PageSize, err = getEnvInt("CM_PAGE_SIZE", 10)
	if err != nil {
		return nil, fmt.Errorf("CM_PAGE_SIZE: %w", err)
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("CM_PAGE_SIZE: значение должно быть > 0")
	}

	// CM_DETAIL_CACHE_SIZE — размер кэша деталей (по умолчанию 100)
	cfg.DetailCacheSize, err = getEnvInt("CM_DETAIL_CACHE_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("CM_DETAIL_CACHE_SIZE: %w", err)
	}

	// CM_DETAIL_CACHE_TTL — TTL кэша деталей (по умолчанию 5m)
	cfg.DetailCacheTTL, err = getEnvDuration("CM_DETAIL_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CM_DETAIL_CACHE_TTL: %w", err)
	}

	// --- Логирование ---

	// CM_LOG_LEVEL — уровень логирования (по умолчанию info)
	logLevel := getEnvDefault("CM_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("CM_LOG_LEVEL: %w", err)
	}

	// CM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("CM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CM_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- Мониторинг зависимостей ---

	// CM_DEPHEALTH_ENABLED — включение dephealth (по умолчанию false)
	cfg.DephealthEnabled, err = getEnvBool("CM_DEPHEALTH_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("CM_DEPHEALTH_ENABLED: %w", err)
	}

	// CM_DEPHEALTH_GROUP — имя группы (по умолчанию medview)
	cfg.DephealthGroup = getEnvDefault("CM_DEPHEALTH_GROUP", "medview")

	// CM_DEPHEALTH_CHECK_INTERVAL — интервал проверки (по умолчанию 30s)
	cfg.DephealthCheckInterval, err = getEnvDuration("CM_DEPHEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// DEPHEALTH_ISENTRY — лейбл isentry (по умолчанию true: клиент — точка входа графа)
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", true)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
