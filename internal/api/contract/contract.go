// Пакет contract — встроенный OpenAPI-контракт backend клиники.
// Используется клиентом для диагностической валидации тел ответов:
// расхождение формата обнаруживается в месте вызова, а не глубже
// в презентационном слое.
package contract

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var spec []byte

// Validator — валидатор тел ответов по OpenAPI-контракту.
type Validator struct {
	doc *openapi3.T
}

// New загружает и валидирует встроенный контракт.
func New(ctx context.Context) (*Validator, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("загрузка OpenAPI-контракта: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("валидация OpenAPI-контракта: %w", err)
	}

	return &Validator{doc: doc}, nil
}

// ValidateResponse проверяет тело ответа по схеме контракта.
// pathTemplate — путь в форме шаблона контракта (например,
// /api/surveys/{patientNumber}). Ответы без схемы (204, error-статусы
// без content) проходят без проверки.
func (v *Validator) ValidateResponse(method, pathTemplate string, status int, body []byte) error {
	pathItem := v.doc.Paths.Find(pathTemplate)
	if pathItem == nil {
		return fmt.Errorf("путь %s отсутствует в контракте", pathTemplate)
	}

	op := pathItem.GetOperation(method)
	if op == nil {
		return fmt.Errorf("операция %s %s отсутствует в контракте", method, pathTemplate)
	}

	respRef := op.Responses.Status(status)
	if respRef == nil || respRef.Value == nil {
		return fmt.Errorf("статус %d не описан для %s %s", status, method, pathTemplate)
	}

	media := respRef.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		// Ответ без схемы тела — проверять нечего
		return nil
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("тело ответа %s %s не является JSON: %w", method, pathTemplate, err)
	}

	if err := media.Schema.Value.VisitJSON(decoded); err != nil {
		return fmt.Errorf("тело ответа %s %s не соответствует контракту: %w", method, pathTemplate, err)
	}

	return nil
}

// ValidateGet — сокращение для GET-ответов.
func (v *Validator) ValidateGet(pathTemplate string, status int, body []byte) error {
	return v.ValidateResponse(http.MethodGet, pathTemplate, status, body)
}
