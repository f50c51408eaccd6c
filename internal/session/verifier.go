// verifier.go — проверка подписи сохранённого токена через JWKS backend.
// Используется при восстановлении сессии, когда задан CM_JWKS_URL:
// оптимистичное восстановление остаётся без сетевого обмена с API,
// но подпись токена проверяется по закэшированным JWKS-ключам.
package session

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// Verifier — JWKS-валидатор подписи токена.
type Verifier struct {
	jwks   keyfunc.Keyfunc
	logger *slog.Logger
}

// NewVerifier создаёт JWKS-валидатор.
// jwksURL — URL к JWKS endpoint backend.
// caCertPath — опциональный путь к CA-сертификату для TLS.
// clientTimeout — таймаут HTTP-клиента JWKS.
// refreshInterval — интервал фонового обновления JWKS-ключей.
func NewVerifier(
	jwksURL string,
	caCertPath string,
	clientTimeout time.Duration,
	refreshInterval time.Duration,
	logger *slog.Logger,
) (*Verifier, error) {
	httpClient := &http.Client{Timeout: clientTimeout}
	if caCertPath != "" {
		var err error
		httpClient, err = httpClientWithCA(caCertPath, clientTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", caCertPath, err)
		}
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	// JWKS Storage с фоновым обновлением.
	// NoErrorReturnFirstHTTPReq — стартуем даже если backend ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &Verifier{
		jwks:   k,
		logger: logger.With(slog.String("component", "token_verifier")),
	}, nil
}

// Verify проверяет подпись и срок действия токена по JWKS-ключам.
func (v *Verifier) Verify(ctx context.Context, tokenString string) error {
	token, err := jwt.Parse(tokenString, v.jwks.KeyfuncCtx(ctx),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("валидация токена: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("невалидный токен")
	}
	return nil
}

// httpClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func httpClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: caCertPool,
			},
		},
	}, nil
}
