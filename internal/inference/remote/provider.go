package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"nmt-api/internal/inference"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "nmt-api/1.0"

	loadPath     = "/v1/models/load"
	tokenizePath = "/v1/tokenize"
	generatePath = "/v1/generate"
	decodePath   = "/v1/decode"
)

// Provider implements inference.Provider against an HTTP inference backend that hosts the
// model runtime.
type Provider struct {
	name   string
	device string
	client *resty.Client
}

// New creates a provider talking to baseURL. device is forwarded on load ("auto", "cpu", "cuda").
func New(name, baseURL, device string, client *http.Client) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}

	rc := resty.NewWithClient(client).
		SetBaseURL(baseURL).
		SetHeader("Content-Type", contentTypeJSON).
		SetHeader("Accept", contentTypeJSON).
		SetHeader("User-Agent", userAgent)

	return &Provider{
		name:   name,
		device: device,
		client: rc,
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

// Load asks the backend to load source and returns a handle bound to the backend's model id.
func (p *Provider) Load(ctx context.Context, source string) (inference.Model, error) {
	if strings.TrimSpace(source) == "" {
		return nil, errors.New("model source must not be empty")
	}

	var out loadResponse
	if err := p.post(ctx, loadPath, loadRequest{Model: source, Device: p.device}, &out); err != nil {
		return nil, fmt.Errorf("load %q: %w", source, err)
	}
	if out.ModelID == "" {
		return nil, fmt.Errorf("load %q: %w: response is missing model_id", source, inference.ErrBackend)
	}

	return &model{
		provider: p,
		id:       out.ModelID,
		meta: inference.Metadata{
			Name:                out.Name,
			Device:              out.Device,
			Parameters:          out.Parameters,
			TrainableParameters: out.TrainableParameters,
		},
	}, nil
}

func (p *Provider) post(ctx context.Context, path string, body, result any) error {
	var apiErr errorResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return fmt.Errorf("%w: %s request failed: %v", inference.ErrBackend, path, err)
	}

	if resp.IsError() {
		msg := strings.TrimSpace(apiErr.Error)
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		if msg == "" {
			msg = resp.Status()
		}
		if resp.StatusCode() == http.StatusNotFound && path == loadPath {
			return fmt.Errorf("%w: %s", inference.ErrModelNotFound, msg)
		}
		return fmt.Errorf("%w: %s returned %d: %s", inference.ErrBackend, path, resp.StatusCode(), msg)
	}
	return nil
}

type model struct {
	provider *Provider
	id       string
	meta     inference.Metadata
}

func (m *model) Metadata() inference.Metadata {
	return m.meta
}

func (m *model) Tokenize(ctx context.Context, text string, maxLength int) ([]int, error) {
	var out tokenizeResponse
	err := m.provider.post(ctx, tokenizePath, tokenizeRequest{
		ModelID:    m.id,
		Text:       text,
		MaxLength:  maxLength,
		Truncation: true,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	return out.InputIDs, nil
}

func (m *model) Generate(ctx context.Context, inputIDs []int, opts inference.GenerateOptions) (*inference.Generation, error) {
	var out generateResponse
	err := m.provider.post(ctx, generatePath, generateRequest{
		ModelID:       m.id,
		InputIDs:      inputIDs,
		NumBeams:      opts.NumBeams,
		MaxLength:     opts.MaxLength,
		EarlyStopping: opts.EarlyStopping,
		DoSample:      opts.DoSample,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return &inference.Generation{
		OutputIDs:     out.OutputIDs,
		SequenceScore: out.SequenceScore,
	}, nil
}

func (m *model) Decode(ctx context.Context, ids []int) (string, error) {
	var out decodeResponse
	err := m.provider.post(ctx, decodePath, decodeRequest{
		ModelID:           m.id,
		IDs:               ids,
		SkipSpecialTokens: true,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return out.Text, nil
}
