// main.go — точка входа Clinic Mock API.
// Фикстурный backend клиники для локальной разработки Client Module.
package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/bigkaa/medview/client-module/internal/config"
	"github.com/bigkaa/medview/client-module/internal/mockapi"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := mockapi.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	logger.Info("Clinic Mock API запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Сервер с фикстурным хранилищем и HS256-токенами
	srv := mockapi.NewServer(cfg, logger)

	// 4. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		log.Fatalf("Сервер завершился с ошибкой: %v", err)
	}

	logger.Info("Clinic Mock API остановлен")
}
