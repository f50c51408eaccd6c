// store.go — in-memory хранилище фикстур Clinic Mock API:
// учётные записи врачей, анкеты пациентов, результаты прогнозов.
package mockapi

import (
	"sync"

	"github.com/bigkaa/medview/client-module/internal/domain/model"
)

// fixtureUser — учётная запись врача в фикстурах.
type fixtureUser struct {
	password string
	profile  model.UserProfile
}

// Store — in-memory хранилище фикстур. Потокобезопасно.
type Store struct {
	mu          sync.RWMutex
	users       map[string]fixtureUser
	patients    []model.PatientSummary
	details     map[string]*model.PatientDetails
	predictions map[string]*model.PredictionResult
}

// NewStore создаёт хранилище с предзаполненным набором фикстур.
func NewStore() *Store {
	s := &Store{
		users:       make(map[string]fixtureUser),
		details:     make(map[string]*model.PatientDetails),
		predictions: make(map[string]*model.PredictionResult),
	}
	s.seed()
	return s
}

// Authenticate проверяет учётные данные врача.
// Возвращает профиль и true при совпадении email и пароля.
func (s *Store) Authenticate(email, password string) (model.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[email]
	if !ok || user.password != password {
		return model.UserProfile{}, false
	}
	return user.profile, true
}

// ProfileByEmail возвращает профиль врача по email (без проверки пароля).
// Используется в refresh-обмене: субъект уже аутентифицирован токеном.
func (s *Store) ProfileByEmail(email string) (model.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[email]
	if !ok {
		return model.UserProfile{}, false
	}
	return user.profile, true
}

// Patients возвращает копию реестра анкет.
func (s *Store) Patients() []model.PatientSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.PatientSummary, len(s.patients))
	copy(out, s.patients)
	return out
}

// Details возвращает детальную анкету пациента.
func (s *Store) Details(code string) (*model.PatientDetails, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	details, ok := s.details[code]
	if !ok {
		return nil, false
	}
	copied := *details
	return &copied, true
}

// UpdateStatus помечает анкету пациента просмотренной (NOWA → ARCHIWALNA).
// Возвращает false, если пациент не найден.
func (s *Store) UpdateStatus(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i := range s.patients {
		if s.patients[i].Code == code {
			s.patients[i].Status = model.StatusSeen
			found = true
			break
		}
	}
	if details, ok := s.details[code]; ok {
		details.Status = model.StatusSeen
		found = true
	}
	return found
}

// Prediction возвращает результат прогноза для пациента.
func (s *Store) Prediction(code string) (*model.PredictionResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.predictions[code]
	if !ok {
		return nil, false
	}
	copied := *result
	return &copied, true
}

// seed заполняет хранилище фикстурами.
func (s *Store) seed() {
	s.users["anna@clinic.example"] = fixtureUser{
		password: "secret",
		profile:  model.UserProfile{ID: 7, Name: "Anna", Surname: "Kowalska", Email: "anna@clinic.example"},
	}
	s.users["jan@clinic.example"] = fixtureUser{
		password: "secret2",
		profile:  model.UserProfile{ID: 12, Name: "Jan", Surname: "Nowak", Email: "jan@clinic.example"},
	}

	s.patients = []model.PatientSummary{
		{Code: "1670931", SubmissionDate: "2024-03-01", Status: model.StatusNew},
		{Code: "1670933", SubmissionDate: "2024-03-02", Status: model.StatusNew},
		{Code: "2000001", SubmissionDate: "2024-03-03", Status: model.StatusSeen},
		{Code: "2000002", SubmissionDate: "2024-03-04", Status: model.StatusNew},
		{Code: "3100500", SubmissionDate: "2024-03-05", Status: model.StatusSeen},
	}

	for _, p := range s.patients {
		s.details[p.Code] = &model.PatientDetails{
			Code:           p.Code,
			SubmissionDate: p.SubmissionDate,
			Status:         p.Status,
			Survey: map[string]any{
				"weight":    92.5,
				"height":    171,
				"smoker":    false,
				"diabetes":  p.Code == "1670933",
				"operation": "gastric_bypass",
			},
		}
		s.predictions[p.Code] = &model.PredictionResult{
			Code: p.Code,
			Values: map[string]float64{
				"success_probability":  0.82,
				"complication_risk":    0.07,
				"expected_weight_loss": 27.4,
			},
		}
	}
}
