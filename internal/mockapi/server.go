// Пакет mockapi — фикстурный backend клиники для локальной разработки
// и интеграционных тестов Client Module. Повторяет контракт настоящего
// API клиники (login, реестр анкет, детали, статусы, прогнозы) поверх
// in-memory хранилища. Без TLS — локальный инструмент разработки.
package mockapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
)

// Server — HTTP-сервер Clinic Mock API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *Config
}

// NewServer создаёт сервер с настроенными маршрутами и middleware.
func NewServer(cfg *Config, logger *slog.Logger) *Server {
	store := NewStore()
	issuer := NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	handler := NewHandler(store, issuer, logger)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewRouter(handler, issuer, logger),
			ReadTimeout:  cfg.HTTPReadTimeout,
			WriteTimeout: cfg.HTTPWriteTimeout,
			IdleTimeout:  cfg.HTTPIdleTimeout,
		},
		logger: logger,
		cfg:    cfg,
	}
}

// NewRouter собирает chi-маршрутизатор Clinic Mock API.
// Login и служебные маршруты открыты, остальное API — за middleware
// аутентификации.
func NewRouter(handler *Handler, issuer *TokenIssuer, logger *slog.Logger) http.Handler {
	router := chi.NewRouter()
	router.Use(MetricsMiddleware())
	router.Use(RequestLogger(logger))

	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)
	router.Post("/api/auth/login", handler.Login)

	router.Group(func(r chi.Router) {
		r.Use(issuer.Middleware())
		r.Post("/api/auth/refresh-token", handler.RefreshToken)
		r.Get("/api/surveys", handler.ListSurveys)
		r.Get("/api/surveys/{patientNumber}", handler.SurveyDetails)
		r.Patch("/api/surveys/{patientNumber}/status", handler.UpdateSurveyStatus)
		r.Get("/api/results/{patientNumber}", handler.PredictionResult)
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
