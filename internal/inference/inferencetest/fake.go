// Package inferencetest provides an in-memory inference provider for tests.
package inferencetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"nmt-api/internal/inference"
)

// Provider is a scriptable inference.Provider. Models are registered per source.
type Provider struct {
	mu       sync.Mutex
	models   map[string]*Model
	loadErrs map[string]error
	loads    []string

	// Gate, when non-nil, blocks Load until it is closed or the context ends.
	Gate chan struct{}
}

// NewProvider returns an empty provider; every Load fails until models are added.
func NewProvider() *Provider {
	return &Provider{
		models:   make(map[string]*Model),
		loadErrs: make(map[string]error),
	}
}

// Add registers m under source.
func (p *Provider) Add(source string, m *Model) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.models[source] = m
	return p
}

// FailLoad makes Load(source) return err.
func (p *Provider) FailLoad(source string, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadErrs[source] = err
	return p
}

// Loads returns the sources passed to Load, in call order.
func (p *Provider) Loads() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.loads...)
}

func (p *Provider) Name() string {
	return "fake"
}

func (p *Provider) Load(ctx context.Context, source string) (inference.Model, error) {
	if p.Gate != nil {
		select {
		case <-p.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads = append(p.loads, source)

	if err := p.loadErrs[source]; err != nil {
		return nil, err
	}
	m, ok := p.models[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", inference.ErrModelNotFound, source)
	}
	return m, nil
}

// Model encodes text as runes, so ids round-trip exactly through Decode.
type Model struct {
	Meta inference.Metadata
	// Translate maps the full prompt to the generated text. Defaults to UpperText.
	Translate func(prompt string) (string, error)
	// Score is reported as the sequence score of every generation.
	Score *float64

	mu          sync.Mutex
	generations int
	lastOpts    inference.GenerateOptions
}

// NewModel returns a model reporting the given device.
func NewModel(device string) *Model {
	return &Model{Meta: inference.Metadata{
		Name:                "fake-seq2seq",
		Device:              device,
		Parameters:          60_506_624,
		TrainableParameters: 60_506_624,
	}}
}

// UpperText returns the text after the task prefix, upper-cased.
func UpperText(prompt string) (string, error) {
	_, text, _ := strings.Cut(prompt, ": ")
	return strings.ToUpper(text), nil
}

// Generations reports how many Generate calls the model served.
func (m *Model) Generations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generations
}

// LastOptions returns the options of the most recent Generate call.
func (m *Model) LastOptions() inference.GenerateOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOpts
}

func (m *Model) Metadata() inference.Metadata {
	return m.Meta
}

func (m *Model) Tokenize(ctx context.Context, text string, maxLength int) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return encode(text, maxLength), nil
}

func (m *Model) Generate(ctx context.Context, inputIDs []int, opts inference.GenerateOptions) (*inference.Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.generations++
	m.lastOpts = opts
	m.mu.Unlock()

	translate := m.Translate
	if translate == nil {
		translate = UpperText
	}

	out, err := translate(decode(inputIDs))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", inference.ErrBackend, err)
	}
	return &inference.Generation{
		OutputIDs:     encode(out, opts.MaxLength),
		SequenceScore: m.Score,
	}, nil
}

func (m *Model) Decode(ctx context.Context, ids []int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return decode(ids), nil
}

func encode(text string, maxLength int) []int {
	runes := []rune(text)
	if maxLength > 0 && len(runes) > maxLength {
		runes = runes[:maxLength]
	}
	ids := make([]int, len(runes))
	for i, r := range runes {
		ids[i] = int(r)
	}
	return ids
}

func decode(ids []int) string {
	runes := make([]rune, len(ids))
	for i, id := range ids {
		runes[i] = rune(id)
	}
	return string(runes)
}
