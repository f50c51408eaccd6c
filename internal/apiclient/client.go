// Пакет apiclient — HTTP-клиент API клиники с аутентификацией.
// К каждому исходящему запросу прикрепляется Bearer-токен из хранилища
// учётных данных; ответ 401 вне login-обмена инвалидирует сессию через
// внедрённый callback. Сам login-обмен освобождён от этого правила:
// его 401 — ошибка "неверные учётные данные", а не истечение сессии.
package apiclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/medview/client-module/internal/api/contract"
	"github.com/bigkaa/medview/client-module/internal/domain/model"
)

// Ошибки клиента API. Неверные учётные данные, недоступность сети и
// истечение сессии — три различимых для пользователя состояния.
var (
	// ErrBadCredentials — login-обмен отклонён (неверный email/пароль).
	ErrBadCredentials = errors.New("неверные учётные данные")
	// ErrSessionExpired — аутентифицированный запрос вернул 401: сессия истекла.
	ErrSessionExpired = errors.New("сессия истекла")
	// ErrUnavailable — сетевая ошибка или таймаут (backend недоступен).
	ErrUnavailable = errors.New("сервер недоступен")
	// ErrNotFound — запрошенный ресурс не найден.
	ErrNotFound = errors.New("запись не найдена")
)

// Prometheus-метрики клиента API.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_api_requests_total",
		Help: "Общее количество запросов к API клиники.",
	}, []string{"method", "path", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cm_api_request_duration_seconds",
		Help:    "Длительность запросов к API клиники.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	sessionExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_session_expired_total",
		Help: "Количество обнаруженных истечений сессии (401 вне login).",
	})
)

// CredentialSource — источник текущих учётных данных для исходящих запросов.
// Реализуется credstore.Store. nil-результат — запросы идут без Bearer.
type CredentialSource interface {
	Load() *model.Credential
}

// Client — HTTP-клиент API клиники.
// Состояния не имеет — только ссылки на хранилище учётных данных
// и внедрённый инвалидатор сессии.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	creds          CredentialSource
	onUnauthorized func()
	validator      *contract.Validator
	logger         *slog.Logger
}

// New создаёт клиент API клиники.
// baseURL — базовый URL backend (например, https://clinic.example.com).
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
// timeout — таймаут HTTP-запросов (из конфигурации CM_API_TIMEOUT).
// creds — источник учётных данных (общий для всех клиентов процесса).
func New(
	baseURL string,
	caCertPath string,
	timeout time.Duration,
	creds CredentialSource,
	logger *slog.Logger,
) (*Client, error) {
	httpClient := &http.Client{Timeout: timeout}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата API: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		logger.Info("CA-сертификат API добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		logger:     logger.With(slog.String("component", "api_client")),
	}, nil
}

// OnUnauthorized внедряет инвалидатор сессии, вызываемый на 401 вне login.
// Внедряется после конструирования SessionController (разрыв цикла
// session ↔ transport). Инвалидатор обязан быть идемпотентным.
func (c *Client) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// SetValidator включает валидацию тел ответов по OpenAPI-контракту.
func (c *Client) SetValidator(v *contract.Validator) {
	c.validator = v
}

// Login выполняет login-обмен. 401 здесь — ErrBadCredentials,
// принудительный logout не срабатывает.
func (c *Client) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "/api/auth/login",
		model.LoginRequest{Email: email, Password: password}, &resp, true)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefreshToken запрашивает новый токен для текущей сессии.
func (c *Client) RefreshToken(ctx context.Context) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/refresh-token", "/api/auth/refresh-token",
		nil, &resp, false)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListPatients возвращает полный реестр анкет пациентов.
// GET /api/surveys
func (c *Client) ListPatients(ctx context.Context) ([]model.PatientSummary, error) {
	var patients []model.PatientSummary
	err := c.do(ctx, http.MethodGet, "/api/surveys", "/api/surveys", nil, &patients, false)
	if err != nil {
		return nil, err
	}
	return patients, nil
}

// PatientDetails возвращает детальную анкету пациента.
// GET /api/surveys/{patientNumber}
func (c *Client) PatientDetails(ctx context.Context, code string) (*model.PatientDetails, error) {
	var details model.PatientDetails
	err := c.do(ctx, http.MethodGet, "/api/surveys/{patientNumber}",
		"/api/surveys/"+code, nil, &details, false)
	if err != nil {
		return nil, err
	}
	return &details, nil
}

// UpdateSurveyStatus отправляет courtesy-обновление статуса анкеты
// (NOWA → ARCHIWALNA) после открытия деталей.
// PATCH /api/surveys/{patientNumber}/status
func (c *Client) UpdateSurveyStatus(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodPatch, "/api/surveys/{patientNumber}/status",
		"/api/surveys/"+code+"/status", nil, nil, false)
}

// Prediction возвращает результат прогноза для пациента.
// GET /api/results/{patientNumber}
func (c *Client) Prediction(ctx context.Context, code string) (*model.PredictionResult, error) {
	var result model.PredictionResult
	err := c.do(ctx, http.MethodGet, "/api/results/{patientNumber}",
		"/api/results/"+code, nil, &result, false)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// do выполняет один запрос к API: прикрепляет заголовки и Bearer-токен,
// классифицирует статус ответа, декодирует тело в out (если не nil).
// pathTemplate — шаблон пути для метрик и контракта (без подстановки id),
// path — реальный путь запроса. isLogin — запрос является login-обменом.
func (c *Client) do(ctx context.Context, method, pathTemplate, path string, body, out any, isLogin bool) error {
	start := time.Now()

	var reqBody io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("сериализация тела запроса %s: %w", pathTemplate, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("создание запроса %s %s: %w", method, pathTemplate, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	// Bearer-токен прикрепляется при наличии учётных данных
	if cred := c.creds.Load(); cred != nil {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		apiRequestsTotal.WithLabelValues(method, pathTemplate, "transport_error").Inc()
		return fmt.Errorf("%w: запрос %s %s: %s", ErrUnavailable, method, pathTemplate, err)
	}
	defer resp.Body.Close()

	apiRequestsTotal.WithLabelValues(method, pathTemplate, strconv.Itoa(resp.StatusCode)).Inc()
	apiRequestDuration.WithLabelValues(method, pathTemplate).Observe(time.Since(start).Seconds())

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if isLogin {
			// Login-обмен: 401 — неверные учётные данные, не истечение сессии
			return ErrBadCredentials
		}
		sessionExpiredTotal.Inc()
		c.logger.Warn("Получен 401 на аутентифицированном запросе, сессия инвалидируется",
			slog.String("method", method),
			slog.String("path", pathTemplate),
		)
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return ErrSessionExpired

	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, pathTemplate)

	case resp.StatusCode >= 400:
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API вернул статус %d для %s %s: %s",
			resp.StatusCode, method, pathTemplate, string(respBody))
	}

	if out == nil {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: чтение ответа %s %s: %s", ErrUnavailable, method, pathTemplate, err)
	}

	// Диагностическая проверка тела по OpenAPI-контракту (CM_VALIDATE_RESPONSES)
	if c.validator != nil {
		if err := c.validator.ValidateResponse(method, pathTemplate, resp.StatusCode, respBody); err != nil {
			return fmt.Errorf("контракт API нарушен: %w", err)
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("декодирование ответа %s %s: %w", method, pathTemplate, err)
	}

	return nil
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA-сертификатом.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		RootCAs: caCertPool,
	}, nil
}
