package directory

import (
	"testing"
	"time"

	"github.com/bigkaa/medview/client-module/internal/domain/model"
)

func TestDetailCache_HitAndMiss(t *testing.T) {
	cache := NewDetailCache(4, time.Minute)

	if _, ok := cache.Get("1670931"); ok {
		t.Error("Пустой кэш не должен возвращать запись")
	}

	cache.Set("1670931", &model.PatientDetails{Code: "1670931"})

	details, ok := cache.Get("1670931")
	if !ok {
		t.Fatal("Запись не найдена в кэше")
	}
	if details.Code != "1670931" {
		t.Errorf("Неверный код в кэшированной записи: %s", details.Code)
	}
}

func TestDetailCache_TTLExpiry(t *testing.T) {
	cache := NewDetailCache(4, 50*time.Millisecond)
	cache.Set("1670931", &model.PatientDetails{Code: "1670931"})

	time.Sleep(120 * time.Millisecond)

	if _, ok := cache.Get("1670931"); ok {
		t.Error("Запись должна устареть по TTL")
	}
}

func TestDetailCache_Eviction(t *testing.T) {
	cache := NewDetailCache(2, time.Minute)
	cache.Set("a", &model.PatientDetails{Code: "a"})
	cache.Set("b", &model.PatientDetails{Code: "b"})
	cache.Set("c", &model.PatientDetails{Code: "c"})

	if _, ok := cache.Get("a"); ok {
		t.Error("Самая старая запись должна быть вытеснена")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("Новая запись должна остаться в кэше")
	}
}

func TestDetailCache_Purge(t *testing.T) {
	cache := NewDetailCache(4, time.Minute)
	cache.Set("1670931", &model.PatientDetails{Code: "1670931"})

	cache.Purge()

	if _, ok := cache.Get("1670931"); ok {
		t.Error("Purge должен очистить кэш")
	}
}
