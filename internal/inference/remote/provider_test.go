package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmt-api/internal/inference"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models/load", func(w http.ResponseWriter, r *http.Request) {
		var req loadRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Model != "t5-small" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"no such model"}`))
			return
		}
		writeJSON(w, loadResponse{ModelID: "m-1", Name: "t5-small", Device: req.Device, Parameters: 60_000_000, TrainableParameters: 60_000_000})
	})
	mux.HandleFunc("/v1/tokenize", func(w http.ResponseWriter, r *http.Request) {
		var req tokenizeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "m-1", req.ModelID)
		assert.True(t, req.Truncation)
		writeJSON(w, tokenizeResponse{InputIDs: []int{13959, 1566, 12, req.MaxLength}})
	})
	mux.HandleFunc("/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.NumBeams > 8 {
			http.Error(w, "CUDA out of memory", http.StatusInternalServerError)
			return
		}
		assert.False(t, req.DoSample)
		assert.True(t, req.EarlyStopping)
		score := -0.25
		writeJSON(w, generateResponse{OutputIDs: []int{0, 42, 1}, SequenceScore: &score})
	})
	mux.HandleFunc("/v1/decode", func(w http.ResponseWriter, r *http.Request) {
		var req decodeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.SkipSpecialTokens)
		writeJSON(w, decodeResponse{Text: "வணக்கம்"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestProvider_RoundTrip(t *testing.T) {
	backend := newBackend(t)

	p, err := New("remote", backend.URL+"/", "cpu", backend.Client())
	require.NoError(t, err)

	ctx := context.Background()
	m, err := p.Load(ctx, "t5-small")
	require.NoError(t, err)
	assert.Equal(t, inference.Metadata{Name: "t5-small", Device: "cpu", Parameters: 60_000_000, TrainableParameters: 60_000_000}, m.Metadata())

	ids, err := m.Tokenize(ctx, "translate English to Tamil: Hello", 128)
	require.NoError(t, err)
	assert.Equal(t, []int{13959, 1566, 12, 128}, ids)

	gen, err := m.Generate(ctx, ids, inference.GenerateOptions{NumBeams: 4, MaxLength: 128, EarlyStopping: true})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 42, 1}, gen.OutputIDs)
	require.NotNil(t, gen.SequenceScore)
	assert.InDelta(t, -0.25, *gen.SequenceScore, 1e-9)

	text, err := m.Decode(ctx, gen.OutputIDs)
	require.NoError(t, err)
	assert.Equal(t, "வணக்கம்", text)
}

func TestProvider_LoadNotFound(t *testing.T) {
	backend := newBackend(t)
	p, err := New("remote", backend.URL, "auto", backend.Client())
	require.NoError(t, err)

	_, err = p.Load(context.Background(), "./saved_model")
	require.Error(t, err)
	assert.ErrorIs(t, err, inference.ErrModelNotFound)
	assert.Contains(t, err.Error(), "no such model")
}

func TestProvider_GenerateBackendError(t *testing.T) {
	backend := newBackend(t)
	p, err := New("remote", backend.URL, "auto", backend.Client())
	require.NoError(t, err)

	m, err := p.Load(context.Background(), "t5-small")
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), []int{1}, inference.GenerateOptions{NumBeams: 10, MaxLength: 64, EarlyStopping: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, inference.ErrBackend)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestNew_Validation(t *testing.T) {
	_, err := New("remote", "http://localhost:8500", "auto", nil)
	assert.Error(t, err)

	_, err = New("remote", "", "auto", http.DefaultClient)
	assert.Error(t, err)
}
