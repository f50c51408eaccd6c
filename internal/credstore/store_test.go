package credstore

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bigkaa/medview/client-module/internal/domain/model"
)

// testCredential — валидная запись для тестов.
func testCredential() *model.Credential {
	return &model.Credential{
		Token: "test-token-123",
		User: model.UserProfile{
			ID:      7,
			Name:    "Anna",
			Surname: "Kowalska",
			Email:   "anna.kowalska@clinic.example",
		},
	}
}

// newTestKey генерирует base64-ключ AES-256 для тестов.
func newTestKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("Генерация ключа: %v", err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

// TestStore_RoundTripPlain проверяет Save → Load без шифрования.
func TestStore_RoundTripPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := New(path, "", slog.Default())

	cred := testCredential()
	if err := store.Save(cred); err != nil {
		t.Fatalf("Save ошибка: %v", err)
	}

	got := store.Load()
	if got == nil {
		t.Fatal("Load вернул nil после Save")
	}
	if got.Token != cred.Token {
		t.Errorf("Token = %q, ожидался %q", got.Token, cred.Token)
	}
	if got.User != cred.User {
		t.Errorf("User = %+v, ожидался %+v", got.User, cred.User)
	}
}

// TestStore_RoundTripEncrypted проверяет Save → Load с шифрованием
// и что файл на диске не содержит plaintext-токен.
func TestStore_RoundTripEncrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := New(path, newTestKey(t), slog.Default())

	cred := testCredential()
	if err := store.Save(cred); err != nil {
		t.Fatalf("Save ошибка: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Чтение файла: %v", err)
	}
	if bytes.Contains(raw, []byte(cred.Token)) {
		t.Error("Файл на диске содержит токен в открытом виде")
	}

	got := store.Load()
	if got == nil {
		t.Fatal("Load вернул nil после Save")
	}
	if got.User.FullName() != "Anna Kowalska" {
		t.Errorf("FullName = %q, ожидался %q", got.User.FullName(), "Anna Kowalska")
	}
}

// TestStore_KeyMismatch проверяет, что файл, записанный с одним ключом,
// под другим ключом читается как отсутствующая запись.
func TestStore_KeyMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	writer := New(path, newTestKey(t), slog.Default())
	if err := writer.Save(testCredential()); err != nil {
		t.Fatalf("Save ошибка: %v", err)
	}

	reader := New(path, newTestKey(t), slog.Default())
	if got := reader.Load(); got != nil {
		t.Errorf("Load под другим ключом вернул запись: %+v, ожидался nil", got)
	}
}

// TestStore_CorruptFile проверяет, что повреждённое содержимое
// трактуется как отсутствие записи, а не как ошибка.
func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{не json"), 0o600); err != nil {
		t.Fatalf("Подготовка файла: %v", err)
	}

	store := New(path, "", slog.Default())
	if got := store.Load(); got != nil {
		t.Errorf("Load повреждённого файла вернул %+v, ожидался nil", got)
	}
	if store.HasCredential() {
		t.Error("HasCredential = true для повреждённого файла")
	}
}

// TestStore_SaveIncomplete проверяет no-op при неполных учётных данных.
func TestStore_SaveIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := New(path, "", slog.Default())

	if err := store.Save(nil); err != nil {
		t.Errorf("Save(nil) вернул ошибку: %v", err)
	}
	if err := store.Save(&model.Credential{Token: "   "}); err != nil {
		t.Errorf("Save неполной записи вернул ошибку: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Файл создан при no-op Save")
	}
}

// TestStore_ClearIdempotent проверяет идемпотентность Clear.
func TestStore_ClearIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := New(path, "", slog.Default())

	// Clear на пустом хранилище — no-op
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear пустого хранилища: %v", err)
	}

	if err := store.Save(testCredential()); err != nil {
		t.Fatalf("Save ошибка: %v", err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear ошибка: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Повторный Clear ошибка: %v", err)
	}

	if store.HasCredential() {
		t.Error("HasCredential = true после Clear")
	}
}

// TestStore_ConcurrentAccess проверяет, что параллельные Save/Load
// не наблюдают полузаписанную запись: Load возвращает либо nil,
// либо целостную запись.
func TestStore_ConcurrentAccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := New(path, newTestKey(t), slog.Default())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := store.Save(testCredential()); err != nil {
				t.Errorf("Save ошибка: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if got := store.Load(); got != nil && got.Token != "test-token-123" {
				t.Errorf("Load вернул частичную запись: %+v", got)
			}
		}()
	}
	wg.Wait()
}
