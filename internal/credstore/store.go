// Пакет credstore — персистентное хранилище учётных данных сессии.
// Одна логическая запись (токен + профиль пользователя) в одном файле.
// Файл шифруется AES-256-GCM; при отсутствии или некорректности ключа
// хранилище деградирует до plaintext (контракт не меняется).
// Повреждённое содержимое трактуется как "запись отсутствует", не как ошибка.
package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bigkaa/medview/client-module/internal/domain/model"
)

// Store — файловое хранилище одной записи Credential.
// Операции атомарны: запись через temp-файл + rename, чтение и запись
// сериализованы мьютексом — читатель никогда не видит полузаписанную запись.
type Store struct {
	mu     sync.Mutex
	path   string
	key    []byte // nil — plaintext-режим
	logger *slog.Logger
}

// New создаёт хранилище учётных данных.
// path — путь к файлу записи.
// keyBase64 — base64-ключ AES-256 (32 байта). Пустая строка или некорректный
// ключ переводят хранилище в plaintext-режим с предупреждением в логе —
// поведение исходного клиента при сбое инициализации шифрования.
func New(path, keyBase64 string, logger *slog.Logger) *Store {
	s := &Store{
		path:   path,
		logger: logger.With(slog.String("component", "credstore")),
	}

	if keyBase64 == "" {
		s.logger.Warn("Ключ шифрования не задан, учётные данные хранятся в plaintext")
		return s
	}

	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil || len(key) != 32 {
		s.logger.Warn("Некорректный ключ шифрования (ожидается base64 от 32 байт), переход на plaintext")
		return s
	}

	s.key = key
	return s
}

// Save сохраняет учётные данные, перезаписывая предыдущую запись.
// Неполные учётные данные (nil или пустой токен/профиль) — no-op.
// Ошибки ввода-вывода фатальны для вызывающей операции и возвращаются как есть.
func (s *Store) Save(cred *model.Credential) error {
	if cred == nil || !cred.Valid() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("сериализация учётных данных: %w", err)
	}

	if s.key != nil {
		payload, err = s.seal(payload)
		if err != nil {
			return fmt.Errorf("шифрование учётных данных: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("создание каталога хранилища: %w", err)
	}

	// Атомарная запись: temp-файл в том же каталоге + rename
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("создание temp-файла: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("запись учётных данных: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("закрытие temp-файла: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("установка прав на файл учётных данных: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("замена файла учётных данных: %w", err)
	}

	return nil
}

// Load возвращает последнюю сохранённую запись или nil, если записи нет.
// Нечитаемое или повреждённое содержимое трактуется как отсутствие записи.
func (s *Store) Load() *model.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}

	if s.key != nil {
		payload, err = s.open(payload)
		if err != nil {
			s.logger.Warn("Не удалось расшифровать файл учётных данных, запись считается отсутствующей")
			return nil
		}
	}

	var cred model.Credential
	if err := json.Unmarshal(payload, &cred); err != nil {
		s.logger.Warn("Повреждённый файл учётных данных, запись считается отсутствующей")
		return nil
	}
	if !cred.Valid() {
		return nil
	}

	return &cred
}

// Clear удаляет сохранённую запись. Идемпотентна: отсутствие файла — не ошибка.
// Прочие ошибки ввода-вывода возвращаются вызывающей операции.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("удаление файла учётных данных: %w", err)
	}
	return nil
}

// HasCredential сообщает, есть ли сохранённая валидная запись.
func (s *Store) HasCredential() bool {
	return s.Load() != nil
}

// seal шифрует payload алгоритмом AES-256-GCM. Nonce добавляется префиксом.
func (s *Store) seal(payload []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, payload, nil), nil
}

// open расшифровывает payload, зашифрованный seal.
func (s *Store) open(payload []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(payload) < gcm.NonceSize() {
		return nil, fmt.Errorf("слишком короткое содержимое файла")
	}

	nonce, ciphertext := payload[:gcm.NonceSize()], payload[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
