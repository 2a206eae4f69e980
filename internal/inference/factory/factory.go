package factory

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"nmt-api/internal/config"
	"nmt-api/internal/inference"
	"nmt-api/internal/inference/remote"
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second

	providerName = "remote"
)

// NewProvider constructs the inference provider described by the model configuration.
// Deadlines come from the caller's context, so the HTTP client itself has no timeout:
// model loads can legitimately take minutes.
func NewProvider(cfg config.ModelConfig) (inference.Provider, error) {
	if cfg.InferenceURL == "" {
		return nil, errors.New("model.inference_url must not be empty")
	}

	p, err := remote.New(providerName, cfg.InferenceURL, cfg.Device, newHTTPClient())
	if err != nil {
		return nil, fmt.Errorf("initialise %s inference provider: %w", providerName, err)
	}
	return p, nil
}

func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
	}
}
