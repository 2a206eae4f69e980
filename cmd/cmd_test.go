package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmt-api/internal/models"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSmoke_Success(t *testing.T) {
	var seen []string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/translate", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 2, body["num_beams"])
		assert.EqualValues(t, 128, body["max_length"])

		text, _ := body["text"].(string)
		seen = append(seen, text)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.TranslationResponse{
			OriginalText:   text,
			TranslatedText: strings.ToUpper(text),
			NumBeams:       2,
		})
	}))
	defer backend.Close()

	out, err := runCmd(t, "smoke", "--url", backend.URL, "--beams", "2", "Good morning", "Thank you")
	require.NoError(t, err)

	assert.Equal(t, []string{"Good morning", "Thank you"}, seen)
	assert.Contains(t, out, "Original: Good morning")
	assert.Contains(t, out, "Translation: THANK YOU")
	assert.Contains(t, out, "Beams: 2")
}

func TestSmoke_DefaultSentences(t *testing.T) {
	count := 0
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"original_text":"x","translated_text":"y","num_beams":4}`))
	}))
	defer backend.Close()

	_, err := runCmd(t, "smoke", "--url", backend.URL)
	require.NoError(t, err)
	assert.Equal(t, len(defaultSmokeSentences), count)
}

func TestSmoke_Failure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"service_unavailable","message":"model loading"}`))
	}))
	defer backend.Close()

	out, err := runCmd(t, "smoke", "--url", backend.URL, "Hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1")
	assert.Contains(t, out, "model loading")
}

func TestServe_InvalidPort(t *testing.T) {
	_, err := runCmd(t, "serve", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid TCP port")
}

func TestServe_MissingConfigFile(t *testing.T) {
	_, err := runCmd(t, "serve", "--config", "does-not-exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestUnknownCommand(t *testing.T) {
	_, err := runCmd(t, "bogus")
	assert.Error(t, err)
}
