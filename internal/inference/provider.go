package inference

import (
	"context"
	"errors"
)

// ErrBackend indicates the inference backend rejected or failed a call.
var ErrBackend = errors.New("inference backend error")

// ErrModelNotFound indicates the requested model source could not be resolved by the backend.
var ErrModelNotFound = errors.New("model not found")

// Provider loads models from an identifier (a local path or a hub name).
type Provider interface {
	Name() string
	Load(ctx context.Context, source string) (Model, error)
}

// Model is a loaded sequence-to-sequence model and its tokenizer.
type Model interface {
	// Metadata reports what the backend knows about the loaded weights.
	Metadata() Metadata
	// Tokenize encodes text, truncating the result to maxLength tokens.
	Tokenize(ctx context.Context, text string, maxLength int) ([]int, error)
	// Generate runs sequence generation over the encoded input.
	Generate(ctx context.Context, inputIDs []int, opts GenerateOptions) (*Generation, error)
	// Decode turns generated ids back into text, dropping special tokens.
	Decode(ctx context.Context, ids []int) (string, error)
}

// Metadata describes a loaded model as reported by the backend.
type Metadata struct {
	Name                string
	Device              string
	Parameters          int64
	TrainableParameters int64
}

// GenerateOptions controls beam search. DoSample is always false for deterministic output.
type GenerateOptions struct {
	NumBeams      int
	MaxLength     int
	EarlyStopping bool
	DoSample      bool
}

// Generation is the best sequence produced by Generate.
type Generation struct {
	OutputIDs []int
	// SequenceScore is the log-probability of the sequence when the backend reports one.
	SequenceScore *float64
}
