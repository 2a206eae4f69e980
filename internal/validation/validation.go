// Package validation checks translation request bodies against JSON schemas and applies defaults.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/text/language"

	"nmt-api/internal/models"
)

const rootField = "(root)"

// Limits are the configurable bounds and defaults applied to requests.
type Limits struct {
	MaxTextLength    int
	DefaultNumBeams  int
	DefaultMaxLength int
	DefaultSource    string
	DefaultTarget    string
}

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Error is returned for any request that fails validation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "invalid request"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func fieldError(field, typ, format string, args ...any) *Error {
	return &Error{Fields: []FieldError{{Field: field, Type: typ, Message: fmt.Sprintf(format, args...)}}}
}

// Validator holds the compiled request schemas.
type Validator struct {
	limits Limits
	single *gojsonschema.Schema
	batch  *gojsonschema.Schema
}

// New compiles the request schemas for the given limits.
func New(limits Limits) (*Validator, error) {
	if limits.MaxTextLength <= 0 {
		return nil, errors.New("max text length must be positive")
	}
	if limits.DefaultNumBeams < models.MinNumBeams || limits.DefaultNumBeams > models.MaxNumBeams {
		return nil, fmt.Errorf("default num_beams must be between %d and %d", models.MinNumBeams, models.MaxNumBeams)
	}
	if limits.DefaultMaxLength < models.MinMaxLength || limits.DefaultMaxLength > models.MaxMaxLength {
		return nil, fmt.Errorf("default max_length must be between %d and %d", models.MinMaxLength, models.MaxMaxLength)
	}
	if limits.DefaultSource == "" {
		limits.DefaultSource = language.English.String()
	}
	if limits.DefaultTarget == "" {
		limits.DefaultTarget = language.Tamil.String()
	}

	single, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(translationSchema(limits)))
	if err != nil {
		return nil, fmt.Errorf("compile translation schema: %w", err)
	}
	batch, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(batchSchema(limits)))
	if err != nil {
		return nil, fmt.Errorf("compile batch schema: %w", err)
	}

	return &Validator{limits: limits, single: single, batch: batch}, nil
}

// Limits returns the bounds the validator was built with, defaults filled in.
func (v *Validator) Limits() Limits {
	return v.limits
}

type rawOptions struct {
	SourceLanguage *string  `json:"source_language"`
	TargetLanguage *string  `json:"target_language"`
	NumBeams       *float64 `json:"num_beams"`
	MaxLength      *float64 `json:"max_length"`
}

// TranslationRequest validates a single-translation body and returns it with defaults applied.
func (v *Validator) TranslationRequest(body []byte) (models.TranslationRequest, error) {
	var raw struct {
		Text string `json:"text"`
		rawOptions
	}
	if err := v.check(v.single, body, &raw); err != nil {
		return models.TranslationRequest{}, err
	}
	if err := blankText("text", raw.Text); err != nil {
		return models.TranslationRequest{}, err
	}

	src, tgt, err := v.languages(raw.rawOptions)
	if err != nil {
		return models.TranslationRequest{}, err
	}

	return models.TranslationRequest{
		Text:           raw.Text,
		SourceLanguage: src,
		TargetLanguage: tgt,
		NumBeams:       intOr(raw.NumBeams, v.limits.DefaultNumBeams),
		MaxLength:      intOr(raw.MaxLength, v.limits.DefaultMaxLength),
	}, nil
}

// BatchRequest validates a batch body and returns it with defaults applied.
func (v *Validator) BatchRequest(body []byte) (models.BatchTranslationRequest, error) {
	var raw struct {
		Texts []string `json:"texts"`
		rawOptions
	}
	if err := v.check(v.batch, body, &raw); err != nil {
		return models.BatchTranslationRequest{}, err
	}
	var verr Error
	for i, text := range raw.Texts {
		if err := blankText(fmt.Sprintf("texts.%d", i), text); err != nil {
			verr.Fields = append(verr.Fields, err.Fields...)
		}
	}
	if len(verr.Fields) > 0 {
		return models.BatchTranslationRequest{}, &verr
	}

	src, tgt, err := v.languages(raw.rawOptions)
	if err != nil {
		return models.BatchTranslationRequest{}, err
	}

	return models.BatchTranslationRequest{
		Texts:          raw.Texts,
		SourceLanguage: src,
		TargetLanguage: tgt,
		NumBeams:       intOr(raw.NumBeams, v.limits.DefaultNumBeams),
		MaxLength:      intOr(raw.MaxLength, v.limits.DefaultMaxLength),
	}, nil
}

// blankText rejects text that is only whitespace. The schema pattern only knows ASCII
// whitespace, so NBSP, U+3000 and friends are caught here.
func blankText(field, text string) *Error {
	if strings.TrimSpace(text) != "" {
		return nil
	}
	return fieldError(field, "pattern", "text must not be empty or only whitespace")
}

func (v *Validator) check(schema *gojsonschema.Schema, body []byte, target any) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return fieldError("body", "required", "request body is required")
	}
	if !json.Valid(body) {
		return fieldError("body", "invalid_json", "request body must be valid JSON")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fieldError("body", "invalid_json", "request body could not be read: %v", err)
	}
	if !result.Valid() {
		verr := &Error{Fields: make([]FieldError, 0, len(result.Errors()))}
		for _, desc := range result.Errors() {
			verr.Fields = append(verr.Fields, FieldError{
				Field:   fieldName(desc),
				Message: desc.Description(),
				Type:    desc.Type(),
			})
		}
		return verr
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fieldError("body", "invalid_json", "request body could not be decoded: %v", err)
	}
	return nil
}

func (v *Validator) languages(raw rawOptions) (string, string, error) {
	src, err := normalizeLanguage("source_language", raw.SourceLanguage, v.limits.DefaultSource)
	if err != nil {
		return "", "", err
	}
	tgt, err := normalizeLanguage("target_language", raw.TargetLanguage, v.limits.DefaultTarget)
	if err != nil {
		return "", "", err
	}
	return src, tgt, nil
}

// normalizeLanguage canonicalises a BCP 47 code, so "EN" and "en" are the same language.
func normalizeLanguage(field string, code *string, def string) (string, error) {
	if code == nil {
		return def, nil
	}
	tag, err := language.Parse(strings.TrimSpace(*code))
	if err != nil {
		return "", fieldError(field, "language", "%q is not a valid language code", *code)
	}
	return tag.String(), nil
}

// fieldName reports the offending property. Required errors are raised on the parent object,
// so the missing property name comes from the error details.
func fieldName(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if prop, ok := desc.Details()["property"].(string); ok && prop != "" {
		if field == rootField {
			return prop
		}
		return field + "." + prop
	}
	if field == rootField {
		return "body"
	}
	return field
}

func intOr(v *float64, def int) int {
	if v == nil {
		return def
	}
	return int(*v)
}

func languageSchema() map[string]any {
	return map[string]any{
		"type":      []any{"string", "null"},
		"minLength": 2,
		"maxLength": 35,
	}
}

func optionSchemas() map[string]any {
	return map[string]any{
		"source_language": languageSchema(),
		"target_language": languageSchema(),
		"num_beams": map[string]any{
			"type":    []any{"integer", "null"},
			"minimum": models.MinNumBeams,
			"maximum": models.MaxNumBeams,
		},
		"max_length": map[string]any{
			"type":    []any{"integer", "null"},
			"minimum": models.MinMaxLength,
			"maximum": models.MaxMaxLength,
		},
	}
}

func textSchema(limits Limits) map[string]any {
	return map[string]any{
		"type":      "string",
		"minLength": 1,
		"maxLength": limits.MaxTextLength,
		"pattern":   `\S`,
	}
}

func translationSchema(limits Limits) map[string]any {
	props := optionSchemas()
	props["text"] = textSchema(limits)
	return map[string]any{
		"type":       "object",
		"required":   []any{"text"},
		"properties": props,
	}
}

func batchSchema(limits Limits) map[string]any {
	props := optionSchemas()
	props["texts"] = map[string]any{
		"type":     "array",
		"minItems": 1,
		"maxItems": models.MaxBatchSize,
		"items":    textSchema(limits),
	}
	return map[string]any{
		"type":       "object",
		"required":   []any{"texts"},
		"properties": props,
	}
}
