package models

import "time"

// Request bounds shared by validation and the translation service.
const (
	MinNumBeams  = 1
	MaxNumBeams  = 10
	MinMaxLength = 10
	MaxMaxLength = 1024
	MaxBatchSize = 10
)

// TranslationRequest is a validated request for a single translation.
type TranslationRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	NumBeams       int    `json:"num_beams"`
	MaxLength      int    `json:"max_length"`
}

// BatchTranslationRequest carries several texts sharing one set of generation options.
type BatchTranslationRequest struct {
	Texts          []string `json:"texts"`
	SourceLanguage string   `json:"source_language"`
	TargetLanguage string   `json:"target_language"`
	NumBeams       int      `json:"num_beams"`
	MaxLength      int      `json:"max_length"`
}

// Item returns the single-text request for texts[i].
func (r BatchTranslationRequest) Item(i int) TranslationRequest {
	return TranslationRequest{
		Text:           r.Texts[i],
		SourceLanguage: r.SourceLanguage,
		TargetLanguage: r.TargetLanguage,
		NumBeams:       r.NumBeams,
		MaxLength:      r.MaxLength,
	}
}

// TranslationResponse is the result of one translation. It is never mutated after construction.
type TranslationResponse struct {
	OriginalText     string    `json:"original_text"`
	TranslatedText   string    `json:"translated_text"`
	SourceLanguage   string    `json:"source_language"`
	TargetLanguage   string    `json:"target_language"`
	NumBeams         int       `json:"num_beams"`
	ConfidenceScore  *float64  `json:"confidence_score,omitempty"`
	ProcessingTimeMs float64   `json:"processing_time_ms"`
	ModelInfo        ModelInfo `json:"model_info"`
	Timestamp        time.Time `json:"timestamp"`
}

// BatchTranslationResponse wraps per-item results with the total elapsed time.
type BatchTranslationResponse struct {
	Translations          []TranslationResponse `json:"translations"`
	TotalProcessingTimeMs float64               `json:"total_processing_time_ms"`
}

// ModelInfo describes the loaded model.
type ModelInfo struct {
	Name                string `json:"name"`
	Device              string `json:"device"`
	Loaded              bool   `json:"loaded"`
	Parameters          int64  `json:"parameters,omitempty"`
	TrainableParameters int64  `json:"trainable_parameters,omitempty"`
}

// LanguageInfo identifies a supported language.
type LanguageInfo struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
}

// SupportedLanguagesResponse lists the languages the service translates between.
type SupportedLanguagesResponse struct {
	Languages  []LanguageInfo `json:"languages"`
	TotalCount int            `json:"total_count"`
}

// HealthResponse reports readiness of the translation service.
type HealthResponse struct {
	Status      string    `json:"status"`
	Version     string    `json:"version"`
	ModelLoaded bool      `json:"model_loaded"`
	ModelInfo   ModelInfo `json:"model_info"`
	Timestamp   time.Time `json:"timestamp"`
	Error       string    `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
