// config.go — конфигурация Clinic Mock API из переменных окружения MA_*.
package mockapi

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config — конфигурация Clinic Mock API.
type Config struct {
	// Port — порт HTTP-сервера
	Port int
	// JWTSecret — секрет подписи HS256-токенов
	JWTSecret string
	// TokenTTL — срок действия выпускаемых токенов
	TokenTTL time.Duration

	// HTTP timeouts
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	ShutdownTimeout  time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// MA_JWT_SECRET обязателен — без него сервер не стартует.
func Load() (*Config, error) {
	secret := os.Getenv("MA_JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("обязательная переменная окружения MA_JWT_SECRET не задана")
	}

	port, err := getEnvInt("MA_PORT", 8081)
	if err != nil {
		return nil, err
	}

	tokenTTL, err := getEnvDuration("MA_TOKEN_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	readTimeout, err := getEnvDuration("MA_HTTP_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	writeTimeout, err := getEnvDuration("MA_HTTP_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	idleTimeout, err := getEnvDuration("MA_HTTP_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := getEnvDuration("MA_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:             port,
		JWTSecret:        secret,
		TokenTTL:         tokenTTL,
		HTTPReadTimeout:  readTimeout,
		HTTPWriteTimeout: writeTimeout,
		HTTPIdleTimeout:  idleTimeout,
		ShutdownTimeout:  shutdownTimeout,
	}, nil
}

// getEnvInt читает целочисленную переменную окружения с значением по умолчанию.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("переменная %s должна быть целым числом, получено %q", key, value)
	}
	return parsed, nil
}

// getEnvDuration читает duration-переменную окружения с значением по умолчанию.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("переменная %s должна быть duration (например, 10s), получено %q", key, value)
	}
	return parsed, nil
}
