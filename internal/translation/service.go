package translation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"nmt-api/internal/inference"
	"nmt-api/internal/metrics"
	"nmt-api/internal/models"
)

// ErrNotReady indicates the model has not finished loading.
var ErrNotReady = errors.New("translation service not ready")

// ErrLoadFailed indicates no model candidate could be loaded.
var ErrLoadFailed = errors.New("failed to load translation model")

// ErrInvalidInput indicates a request the model cannot be asked to translate.
var ErrInvalidInput = errors.New("invalid translation input")

// ErrTranslationFailed indicates tokenization, generation or decoding failed.
var ErrTranslationFailed = errors.New("translation failed")

// State is the lifecycle position of the service.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateFailed   State = "failed"
)

// Candidate is a model source tried during Load. Name is what clients see in model info.
type Candidate struct {
	Source string
	Name   string
}

// Cache stores translated text for deterministic requests.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, text string) error
}

// Options configures a Service.
type Options struct {
	// Candidates are tried in order; the first that loads wins.
	Candidates []Candidate
	// Device is reported in model info until the backend says otherwise.
	Device string
	// RequestTimeout bounds a single translation; zero means no bound.
	RequestTimeout time.Duration
	Cache          Cache
	Logger         *zap.Logger
}

// Status is a read-only view of the lifecycle.
type Status struct {
	State State
	Err   error
	Info  models.ModelInfo
}

// snapshot is published atomically and never modified after publication.
type snapshot struct {
	state State
	model inference.Model
	info  models.ModelInfo
	err   error
}

// Service translates text with a model obtained from an inference provider.
type Service struct {
	provider       inference.Provider
	candidates     []Candidate
	requestTimeout time.Duration
	cache          Cache
	logger         *zap.Logger

	loadMu  sync.Mutex
	current atomic.Pointer[snapshot]
}

// NewService constructs an unloaded service. Call Load before translating.
func NewService(provider inference.Provider, opts Options) (*Service, error) {
	if provider == nil {
		return nil, errors.New("inference provider must not be nil")
	}

	candidates := make([]Candidate, 0, len(opts.Candidates))
	for _, c := range opts.Candidates {
		if strings.TrimSpace(c.Source) == "" {
			continue
		}
		if c.Name == "" {
			c.Name = c.Source
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil, errors.New("at least one model candidate must be configured")
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Service{
		provider:       provider,
		candidates:     candidates,
		requestTimeout: opts.RequestTimeout,
		cache:          opts.Cache,
		logger:         log.With(zap.String("component", "translation")),
	}
	s.current.Store(&snapshot{
		state: StateUnloaded,
		info: models.ModelInfo{
			Name:   candidates[len(candidates)-1].Name,
			Device: opts.Device,
		},
	})
	return s, nil
}

// Load loads the first candidate that succeeds. It is a no-op once the service is ready.
func (s *Service) Load(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	prev := s.current.Load()
	if prev.state == StateReady {
		return nil
	}
	s.current.Store(&snapshot{state: StateLoading, info: prev.info})

	var errs []error
	for _, c := range s.candidates {
		s.logger.Info("loading model", zap.String("source", c.Source), zap.String("provider", s.provider.Name()))

		model, err := s.provider.Load(ctx, c.Source)
		if err != nil {
			metrics.ModelLoads.WithLabelValues(c.Name, "error").Inc()
			s.logger.Warn("could not load model", zap.String("source", c.Source), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.Source, err))
			continue
		}

		meta := model.Metadata()
		info := models.ModelInfo{
			Name:                c.Name,
			Device:              meta.Device,
			Loaded:              true,
			Parameters:          meta.Parameters,
			TrainableParameters: meta.TrainableParameters,
		}
		if info.Device == "" {
			info.Device = prev.info.Device
		}

		s.current.Store(&snapshot{state: StateReady, model: model, info: info})
		metrics.ModelLoads.WithLabelValues(c.Name, "success").Inc()
		metrics.ModelReady.Set(1)
		s.logger.Info("model loaded",
			zap.String("name", info.Name),
			zap.String("device", info.Device),
			zap.Int64("parameters", info.Parameters),
		)
		return nil
	}

	err := fmt.Errorf("%w: %w", ErrLoadFailed, errors.Join(errs...))
	s.current.Store(&snapshot{state: StateFailed, info: prev.info, err: err})
	s.logger.Error("error loading model", zap.Error(err))
	return err
}

// IsReady reports whether a model is loaded and serving.
func (s *Service) IsReady() bool {
	return s.current.Load().state == StateReady
}

// Status returns the current lifecycle state with the model info snapshot.
func (s *Service) Status() Status {
	snap := s.current.Load()
	return Status{State: snap.state, Err: snap.err, Info: snap.info}
}

// ModelInfo returns a copy of the model metadata.
func (s *Service) ModelInfo() models.ModelInfo {
	return s.current.Load().info
}

// Translate translates req.Text. The returned response carries the trimmed input as
// OriginalText.
func (s *Service) Translate(ctx context.Context, req models.TranslationRequest) (*models.TranslationResponse, error) {
	snap := s.current.Load()
	if snap.state != StateReady {
		return nil, ErrNotReady
	}

	resp, err := s.translate(ctx, snap, req)
	if err != nil {
		metrics.TranslationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.TranslationsTotal.WithLabelValues("success").Inc()
	metrics.TranslationDuration.Observe(resp.ProcessingTimeMs / 1000)
	return resp, nil
}

func (s *Service) translate(ctx context.Context, snap *snapshot, req models.TranslationRequest) (*models.TranslationResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: text must not be empty or only whitespace", ErrInvalidInput)
	}
	if req.NumBeams < models.MinNumBeams || req.MaxLength <= 0 {
		return nil, fmt.Errorf("%w: num_beams and max_length must be positive", ErrInvalidInput)
	}

	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	key := cacheKey(snap.info.Name, text, req)

	translated, hit := s.lookup(ctx, key)
	var score *float64
	if !hit {
		var err error
		translated, score, err = s.generate(ctx, snap.model, text, req)
		if err != nil {
			s.logger.Error("translation error", zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrTranslationFailed, err)
		}
		s.store(ctx, key, translated)
	}

	elapsed := time.Since(start)
	return &models.TranslationResponse{
		OriginalText:     text,
		TranslatedText:   translated,
		SourceLanguage:   req.SourceLanguage,
		TargetLanguage:   req.TargetLanguage,
		NumBeams:         req.NumBeams,
		ConfidenceScore:  score,
		ProcessingTimeMs: float64(elapsed.Microseconds()) / 1000,
		ModelInfo:        snap.info,
		Timestamp:        time.Now().UTC(),
	}, nil
}

func (s *Service) generate(ctx context.Context, model inference.Model, text string, req models.TranslationRequest) (string, *float64, error) {
	prompt := FormatPrompt(text, req.SourceLanguage, req.TargetLanguage)

	ids, err := model.Tokenize(ctx, prompt, req.MaxLength)
	if err != nil {
		return "", nil, err
	}

	gen, err := model.Generate(ctx, ids, inference.GenerateOptions{
		NumBeams:      req.NumBeams,
		MaxLength:     req.MaxLength,
		EarlyStopping: true,
		DoSample:      false,
	})
	if err != nil {
		return "", nil, err
	}

	out, err := model.Decode(ctx, gen.OutputIDs)
	if err != nil {
		return "", nil, err
	}
	return out, confidence(gen.SequenceScore), nil
}

// TranslateBatch translates every text independently. A failed item becomes a response whose
// TranslatedText starts with "Error: "; the batch itself only fails when the service is not
// ready. The result always has one entry per input text. Each item is bounded by the request
// timeout; items left when ctx ends are marked failed without calling the backend.
func (s *Service) TranslateBatch(ctx context.Context, req models.BatchTranslationRequest) ([]models.TranslationResponse, error) {
	snap := s.current.Load()
	if snap.state != StateReady {
		return nil, ErrNotReady
	}
	metrics.BatchSize.Observe(float64(len(req.Texts)))

	results := make([]models.TranslationResponse, 0, len(req.Texts))
	for i := range req.Texts {
		item := req.Item(i)

		// Once the caller has gone away the remaining items are not sent to the backend.
		var resp *models.TranslationResponse
		err := ctx.Err()
		if err == nil {
			resp, err = s.Translate(ctx, item)
		}
		if err != nil {
			s.logger.Error("error translating batch item", zap.Int("index", i), zap.Error(err))
			results = append(results, models.TranslationResponse{
				OriginalText:   strings.TrimSpace(item.Text),
				TranslatedText: "Error: " + err.Error(),
				SourceLanguage: item.SourceLanguage,
				TargetLanguage: item.TargetLanguage,
				NumBeams:       item.NumBeams,
				ModelInfo:      snap.info,
				Timestamp:      time.Now().UTC(),
			})
			continue
		}
		results = append(results, *resp)
	}
	return results, nil
}

func (s *Service) lookup(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	text, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("translation cache lookup failed", zap.Error(err))
		return "", false
	case ok:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return text, true
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return "", false
	}
}

func (s *Service) store(ctx context.Context, key, text string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, text); err != nil {
		s.logger.Warn("translation cache store failed", zap.Error(err))
	}
}

func cacheKey(modelName, text string, req models.TranslationRequest) string {
	h := sha256.New()
	for _, part := range []string{
		modelName,
		req.SourceLanguage,
		req.TargetLanguage,
		strconv.Itoa(req.NumBeams),
		strconv.Itoa(req.MaxLength),
		text,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// confidence converts a sequence log-probability into [0, 1].
func confidence(score *float64) *float64 {
	if score == nil || math.IsNaN(*score) {
		return nil
	}
	c := math.Exp(*score)
	if c > 1 {
		c = 1
	}
	return &c
}
