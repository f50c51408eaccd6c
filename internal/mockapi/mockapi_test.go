package mockapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigkaa/medview/client-module/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := NewStore()
	issuer := NewTokenIssuer("test-secret", time.Hour)
	handler := NewHandler(store, issuer, testLogger())
	server := httptest.NewServer(NewRouter(handler, issuer, testLogger()))
	t.Cleanup(server.Close)
	return server
}

// login выполняет login-обмен и возвращает выпущенный токен.
func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	body, _ := json.Marshal(model.LoginRequest{Email: email, Password: password})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Login-запрос вернул ошибку: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Login вернул статус %d", resp.StatusCode)
	}

	var auth model.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		t.Fatalf("Декодирование ответа login: %v", err)
	}
	return auth.Token
}

// authorizedGet выполняет GET с Bearer-токеном.
func authorizedGet(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Запрос вернул ошибку: %v", err)
	}
	return resp
}

func TestMockAPI_LoginAndListSurveys(t *testing.T) {
	server := newTestServer(t)
	token := login(t, server, "anna@clinic.example", "secret")

	resp := authorizedGet(t, server.URL+"/api/surveys", token)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Реестр вернул статус %d", resp.StatusCode)
	}

	var patients []model.PatientSummary
	if err := json.NewDecoder(resp.Body).Decode(&patients); err != nil {
		t.Fatalf("Декодирование реестра: %v", err)
	}
	if len(patients) != 5 {
		t.Errorf("Ожидалось 5 фикстурных анкет, получено %d", len(patients))
	}
}

func TestMockAPI_LoginBadCredentials(t *testing.T) {
	server := newTestServer(t)

	body, _ := json.Marshal(model.LoginRequest{Email: "anna@clinic.example", Password: "wrong"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Login-запрос вернул ошибку: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Неверный пароль должен возвращать 401, получено %d", resp.StatusCode)
	}
}

func TestMockAPI_ProtectedRoutesRequireToken(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name string
		path string
	}{
		{"реестр", "/api/surveys"},
		{"детали", "/api/surveys/1670931"},
		{"прогноз", "/api/results/1670931"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := authorizedGet(t, server.URL+tt.path, "")
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("Без токена ожидался 401, получено %d", resp.StatusCode)
			}

			resp2 := authorizedGet(t, server.URL+tt.path, "garbage-token")
			defer resp2.Body.Close()
			if resp2.StatusCode != http.StatusUnauthorized {
				t.Errorf("С мусорным токеном ожидался 401, получено %d", resp2.StatusCode)
			}
		})
	}
}

func TestMockAPI_SurveyDetailsAndStatusFlip(t *testing.T) {
	server := newTestServer(t)
	token := login(t, server, "anna@clinic.example", "secret")

	resp := authorizedGet(t, server.URL+"/api/surveys/1670931", token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Детали вернули статус %d", resp.StatusCode)
	}

	var details model.PatientDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		t.Fatalf("Декодирование деталей: %v", err)
	}
	if details.Code != "1670931" || details.Status != model.StatusNew {
		t.Errorf("Неверные детали: %+v", details)
	}

	// PATCH статуса флипает NOWA → ARCHIWALNA
	req, _ := http.NewRequest(http.MethodPatch, server.URL+"/api/surveys/1670931/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	patchResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PATCH вернул ошибку: %v", err)
	}
	defer patchResp.Body.Close()
	if patchResp.StatusCode != http.StatusNoContent {
		t.Fatalf("PATCH вернул статус %d", patchResp.StatusCode)
	}

	resp2 := authorizedGet(t, server.URL+"/api/surveys/1670931", token)
	defer resp2.Body.Close()
	var updated model.PatientDetails
	if err := json.NewDecoder(resp2.Body).Decode(&updated); err != nil {
		t.Fatalf("Декодирование деталей: %v", err)
	}
	if updated.Status != model.StatusSeen {
		t.Errorf("Статус должен быть %s, получено %s", model.StatusSeen, updated.Status)
	}
}

func TestMockAPI_SurveyNotFound(t *testing.T) {
	server := newTestServer(t)
	token := login(t, server, "anna@clinic.example", "secret")

	resp := authorizedGet(t, server.URL+"/api/surveys/0000000", token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Неизвестный пациент должен возвращать 404, получено %d", resp.StatusCode)
	}
}

func TestMockAPI_ListSurveysStatusFilter(t *testing.T) {
	server := newTestServer(t)
	token := login(t, server, "anna@clinic.example", "secret")

	resp := authorizedGet(t, server.URL+"/api/surveys?status="+model.StatusNew, token)
	defer resp.Body.Close()

	var patients []model.PatientSummary
	if err := json.NewDecoder(resp.Body).Decode(&patients); err != nil {
		t.Fatalf("Декодирование реестра: %v", err)
	}
	if len(patients) != 3 {
		t.Errorf("Ожидалось 3 новых анкеты, получено %d", len(patients))
	}
	for _, p := range patients {
		if p.Status != model.StatusNew {
			t.Errorf("Фильтр пропустил анкету со статусом %s", p.Status)
		}
	}
}

func TestMockAPI_Prediction(t *testing.T) {
	server := newTestServer(t)
	token := login(t, server, "anna@clinic.example", "secret")

	resp := authorizedGet(t, server.URL+"/api/results/1670931", token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Прогноз вернул статус %d", resp.StatusCode)
	}

	var result model.PredictionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Декодирование прогноза: %v", err)
	}
	if result.Code != "1670931" || len(result.Values) == 0 {
		t.Errorf("Неверный результат прогноза: %+v", result)
	}
}

func TestMockAPI_RefreshToken(t *testing.T) {
	server := newTestServer(t)
	token := login(t, server, "anna@clinic.example", "secret")

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/auth/refresh-token", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Refresh-запрос вернул ошибку: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Refresh вернул статус %d", resp.StatusCode)
	}

	var auth model.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		t.Fatalf("Декодирование ответа refresh: %v", err)
	}
	if auth.Token == "" {
		t.Error("Refresh должен выпускать новый токен")
	}
	if auth.User.Email != "anna@clinic.example" {
		t.Errorf("Неверный профиль в ответе refresh: %+v", auth.User)
	}
}

func TestMockAPI_HealthEndpoints(t *testing.T) {
	server := newTestServer(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("Запрос %s вернул ошибку: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s должен возвращать 200 без токена, получено %d", path, resp.StatusCode)
		}
	}
}
