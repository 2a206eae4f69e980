package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New(Limits{MaxTextLength: 20, DefaultNumBeams: 4, DefaultMaxLength: 512})
	require.NoError(t, err)
	return v
}

func requireFieldError(t *testing.T, err error, field string) {
	t.Helper()
	var verr *Error
	require.True(t, errors.As(err, &verr), "expected *validation.Error, got %v", err)
	fields := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		fields[i] = f.Field
	}
	assert.Contains(t, fields, field)
}

func TestNew_Limits(t *testing.T) {
	_, err := New(Limits{MaxTextLength: 0, DefaultNumBeams: 4, DefaultMaxLength: 512})
	assert.Error(t, err)
	_, err = New(Limits{MaxTextLength: 10, DefaultNumBeams: 11, DefaultMaxLength: 512})
	assert.Error(t, err)
	_, err = New(Limits{MaxTextLength: 10, DefaultNumBeams: 4, DefaultMaxLength: 5})
	assert.Error(t, err)

	v, err := New(Limits{MaxTextLength: 10, DefaultNumBeams: 4, DefaultMaxLength: 512})
	require.NoError(t, err)
	assert.Equal(t, "en", v.Limits().DefaultSource)
	assert.Equal(t, "ta", v.Limits().DefaultTarget)
}

func TestTranslationRequest_Defaults(t *testing.T) {
	v := newValidator(t)

	req, err := v.TranslationRequest([]byte(`{"text":"Hello, how are you?"}`))
	require.NoError(t, err)
	assert.Equal(t, "Hello, how are you?", req.Text)
	assert.Equal(t, "en", req.SourceLanguage)
	assert.Equal(t, "ta", req.TargetLanguage)
	assert.Equal(t, 4, req.NumBeams)
	assert.Equal(t, 512, req.MaxLength)
}

func TestTranslationRequest_ExplicitValues(t *testing.T) {
	v := newValidator(t)

	req, err := v.TranslationRequest([]byte(`{"text":"hi","source_language":"TA","target_language":"en","num_beams":2.0,"max_length":64,"extra":true}`))
	require.NoError(t, err)
	assert.Equal(t, "ta", req.SourceLanguage)
	assert.Equal(t, "en", req.TargetLanguage)
	assert.Equal(t, 2, req.NumBeams)
	assert.Equal(t, 64, req.MaxLength)
}

func TestTranslationRequest_NullOptionsUseDefaults(t *testing.T) {
	v := newValidator(t)

	req, err := v.TranslationRequest([]byte(`{"text":"hi","num_beams":null,"source_language":null}`))
	require.NoError(t, err)
	assert.Equal(t, 4, req.NumBeams)
	assert.Equal(t, "en", req.SourceLanguage)
}

func TestTranslationRequest_Rejects(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"empty body", ``, "body"},
		{"malformed json", `{"text":`, "body"},
		{"not an object", `["hi"]`, "body"},
		{"missing text", `{"source_language":"en"}`, "text"},
		{"empty text", `{"text":""}`, "text"},
		{"whitespace text", `{"text":"  \t\n "}`, "text"},
		{"vertical tab", `{"text":"\u000b"}`, "text"},
		{"no-break space", `{"text":"\u00a0"}`, "text"},
		{"ideographic space", `{"text":"\u3000"}`, "text"},
		{"em space and space", `{"text":"\u2003 "}`, "text"},
		{"text too long", `{"text":"` + strings.Repeat("a", 21) + `"}`, "text"},
		{"text wrong type", `{"text":42}`, "text"},
		{"beams too low", `{"text":"hi","num_beams":0}`, "num_beams"},
		{"beams too high", `{"text":"hi","num_beams":11}`, "num_beams"},
		{"beams fractional", `{"text":"hi","num_beams":2.5}`, "num_beams"},
		{"max length too low", `{"text":"hi","max_length":9}`, "max_length"},
		{"max length too high", `{"text":"hi","max_length":1025}`, "max_length"},
		{"language too short", `{"text":"hi","source_language":"e"}`, "source_language"},
		{"language unparseable", `{"text":"hi","target_language":"12"}`, "target_language"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.TranslationRequest([]byte(tt.body))
			requireFieldError(t, err, tt.field)
		})
	}
}

func TestTranslationRequest_TextLengthCountsCharacters(t *testing.T) {
	v := newValidator(t)

	// 20 Tamil code points, well over 20 bytes.
	text := strings.Repeat("த", 20)
	req, err := v.TranslationRequest([]byte(`{"text":"` + text + `"}`))
	require.NoError(t, err)
	assert.Equal(t, text, req.Text)
}

func TestBatchRequest(t *testing.T) {
	v := newValidator(t)

	req, err := v.BatchRequest([]byte(`{"texts":["Hello","Thank you"],"num_beams":3}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", "Thank you"}, req.Texts)
	assert.Equal(t, 3, req.NumBeams)
	assert.Equal(t, 512, req.MaxLength)
	assert.Equal(t, "en", req.SourceLanguage)
	assert.Equal(t, "ta", req.TargetLanguage)
}

func TestBatchRequest_Rejects(t *testing.T) {
	v := newValidator(t)

	eleven := `"a","a","a","a","a","a","a","a","a","a","a"`
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing texts", `{}`, "texts"},
		{"empty texts", `{"texts":[]}`, "texts"},
		{"too many texts", `{"texts":[` + eleven + `]}`, "texts"},
		{"whitespace item", `{"texts":["ok","   "]}`, "texts.1"},
		{"no-break space item", `{"texts":["ok","\u00a0"]}`, "texts.1"},
		{"unicode space items", `{"texts":["\u3000","ok","\u000b\u2003"]}`, "texts.2"},
		{"wrong item type", `{"texts":["ok",1]}`, "texts.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.BatchRequest([]byte(tt.body))
			requireFieldError(t, err, tt.field)
		})
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Fields: []FieldError{
		{Field: "text", Message: "too long"},
		{Field: "num_beams", Message: "too big"},
	}}
	assert.Equal(t, "invalid request: text: too long; num_beams: too big", err.Error())
	assert.Equal(t, "invalid request", (&Error{}).Error())
}
