// patient.go — модели пациентов: строка реестра, детальная анкета,
// результат прогноза. Формы JSON совместимы с backend клиники
// (GET /api/surveys, /api/surveys/{id}, /api/results/{id}).
package model

// Статусы записи пациента в реестре (значения backend).
const (
	// StatusNew — новая, ещё не просмотренная анкета.
	StatusNew = "NOWA"
	// StatusSeen — анкета просмотрена врачом (архивная).
	StatusSeen = "ARCHIWALNA"
)

// PatientSummary — строка реестра пациентов.
// Идентичность записи — поле Code (patient_number), уникальное и стабильное.
type PatientSummary struct {
	// Code — номер пациента (уникальный идентификатор)
	Code string `json:"patient_number"`
	// SubmissionDate — дата отправки анкеты (ISO-8601, формат backend)
	SubmissionDate string `json:"submission_date"`
	// Status — текущий статус записи (StatusNew, StatusSeen)
	Status string `json:"status"`
}

// PatientDetails — детальная запись анкеты пациента.
// Содержимое анкеты для этого модуля opaque — отображением занимается
// презентационный слой.
type PatientDetails struct {
	// Code — номер пациента
	Code string `json:"patient_number"`
	// SubmissionDate — дата отправки анкеты
	SubmissionDate string `json:"submission_date"`
	// Status — статус записи на момент получения
	Status string `json:"status"`
	// Survey — поля анкеты (opaque для ядра)
	Survey map[string]any `json:"survey"`
}

// PredictionResult — результат прогноза для пациента.
// Значения прогноза opaque — производные метрики считает презентационный слой.
type PredictionResult struct {
	// Code — номер пациента
	Code string `json:"patient_number"`
	// Values — значения прогноза по горизонтам (opaque для ядра)
	Values map[string]float64 `json:"values"`
}
