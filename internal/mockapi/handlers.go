// handlers.go — HTTP-обработчики Clinic Mock API.
// Формы запросов и ответов повторяют контракт API клиники
// (internal/api/contract/openapi.yaml).
package mockapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/medview/client-module/internal/config"
	"github.com/bigkaa/medview/client-module/internal/domain/model"
)

// Handler — обработчики маршрутов Clinic Mock API.
type Handler struct {
	store       *Store
	issuer      *TokenIssuer
	promHandler http.Handler
	logger      *slog.Logger
}

// NewHandler создаёт обработчики Clinic Mock API.
func NewHandler(store *Store, issuer *TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{
		store:       store,
		issuer:      issuer,
		promHandler: promhttp.Handler(),
		logger:      logger.With(slog.String("component", "mock_api_handler")),
	}
}

// Login — POST /api/auth/login.
// Проверяет учётные данные по фикстурам и выпускает HS256-токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Некорректное тело запроса")
		return
	}

	profile, ok := h.store.Authenticate(req.Email, req.Password)
	if !ok {
		h.logger.Warn("Отклонён вход с неверными учётными данными", slog.String("email", req.Email))
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Неверный email или пароль")
		return
	}

	token, err := h.issuer.Issue(profile)
	if err != nil {
		h.logger.Error("Выпуск токена", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Не удалось выпустить токен")
		return
	}

	writeJSON(w, http.StatusOK, model.AuthResponse{Token: token, User: profile})
}

// RefreshToken — POST /api/auth/refresh-token.
// Токен уже проверен middleware; выпускается новый для того же врача.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	email := emailFromToken(r)
	profile, ok := h.store.ProfileByEmail(email)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Неизвестный субъект токена")
		return
	}

	token, err := h.issuer.Issue(profile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Не удалось выпустить токен")
		return
	}

	writeJSON(w, http.StatusOK, model.AuthResponse{Token: token, User: profile})
}

// ListSurveys — GET /api/surveys.
// Необязательный query-параметр status фильтрует по статусу анкеты.
func (h *Handler) ListSurveys(w http.ResponseWriter, r *http.Request) {
	var status *string
	if err := runtime.BindQueryParameter("form", true, false, "status", r.URL.Query(), &status); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Некорректный параметр status")
		return
	}

	patients := h.store.Patients()
	if status != nil {
		filtered := make([]model.PatientSummary, 0, len(patients))
		for _, p := range patients {
			if p.Status == *status {
				filtered = append(filtered, p)
			}
		}
		patients = filtered
	}

	writeJSON(w, http.StatusOK, patients)
}

// SurveyDetails — GET /api/surveys/{patientNumber}.
func (h *Handler) SurveyDetails(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "patientNumber")
	details, ok := h.store.Details(code)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Анкета пациента не найдена")
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// UpdateSurveyStatus — PATCH /api/surveys/{patientNumber}/status.
// Помечает анкету просмотренной (NOWA → ARCHIWALNA).
func (h *Handler) UpdateSurveyStatus(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "patientNumber")
	if !h.store.UpdateStatus(code) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Анкета пациента не найдена")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PredictionResult — GET /api/results/{patientNumber}.
func (h *Handler) PredictionResult(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "patientNumber")
	result, ok := h.store.Prediction(code)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Результат прогноза не найден")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HealthLive — GET /health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   config.Version,
		"service":   "clinic-mock-api",
	})
}

// HealthReady — GET /health/ready. Фикстурный backend всегда готов.
func (h *Handler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   config.Version,
		"service":   "clinic-mock-api",
	})
}

// GetMetrics — GET /metrics.
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// --- Вспомогательные функции ---

// apiError — тело ответа об ошибке.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError записывает JSON-ответ об ошибке.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Code: code, Message: message})
}

// emailFromToken извлекает email-claim из Bearer-токена запроса.
// Подпись уже проверена middleware, здесь разбор без проверки.
func emailFromToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return ""
	}

	email, _ := claims["email"].(string)
	return email
}
