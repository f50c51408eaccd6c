package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/medview/client-module/internal/apiclient"
	"github.com/bigkaa/medview/client-module/internal/credstore"
	"github.com/bigkaa/medview/client-module/internal/domain/model"
)

// Интеграция session + apiclient: истечение сессии обнаруживается
// транспортом (401 вне login) и инвалидирует сессию ровно один раз.
func TestIntegration_SessionExpiredViaTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := credstore.New(filepath.Join(t.TempDir(), "credentials.json"), "", testLogger())
	cred := &model.Credential{Token: signedToken(t, time.Now().Add(time.Hour)), User: testUser()}
	if err := store.Save(cred); err != nil {
		t.Fatalf("Save вернул ошибку: %v", err)
	}

	client, err := apiclient.New(server.URL, "", 5*time.Second, store, testLogger())
	if err != nil {
		t.Fatalf("Создание клиента API: %v", err)
	}

	c := NewController(store, client, nil, testLogger())
	client.OnUnauthorized(c.ExpireSession)
	expired := c.SubscribeExpired()

	c.RestoreSession(context.Background())
	if !c.IsAuthenticated() {
		t.Fatal("Сессия должна восстановиться перед проверкой истечения")
	}

	// Два параллельных запроса одновременно наблюдают 401
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.ListPatients(context.Background()); !errors.Is(err, apiclient.ErrSessionExpired) {
				t.Errorf("Ожидалась ошибка ErrSessionExpired, получено: %v", err)
			}
		}()
	}
	wg.Wait()

	if snap := c.Current(); snap.State != StateAnonymous {
		t.Errorf("Сессия должна быть завершена принудительно: %+v", snap)
	}
	if store.HasCredential() {
		t.Error("Учётные данные должны быть удалены при истечении сессии")
	}

	// Ровно одно уведомление на оба 401
	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("Не получено уведомление об истечении сессии")
	}
	select {
	case <-expired:
		t.Error("Второй 401 не должен порождать второе уведомление")
	case <-time.After(50 * time.Millisecond):
	}
}

// Интеграция session + apiclient: 401 login-обмена — обычная ошибка входа,
// принудительный выход не срабатывает.
func TestIntegration_LoginUnauthorizedNoForcedLogout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := credstore.New(filepath.Join(t.TempDir(), "credentials.json"), "", testLogger())
	client, err := apiclient.New(server.URL, "", 5*time.Second, store, testLogger())
	if err != nil {
		t.Fatalf("Создание клиента API: %v", err)
	}

	c := NewController(store, client, nil, testLogger())
	client.OnUnauthorized(c.ExpireSession)
	expired := c.SubscribeExpired()

	if err := c.Login(context.Background(), "anna@clinic.example", "wrong"); !errors.Is(err, apiclient.ErrBadCredentials) {
		t.Fatalf("Ожидалась ошибка ErrBadCredentials, получено: %v", err)
	}

	if snap := c.Current(); snap.State != StateAnonymous {
		t.Errorf("Состояние должно вернуться в anonymous обычным путём: %+v", snap)
	}
	select {
	case <-expired:
		t.Error("401 login-обмена не должен порождать уведомление об истечении сессии")
	case <-time.After(50 * time.Millisecond):
	}
}
