package ocr

import (
	"context"
	"errors"
	"strings"
)

// Engine sends one image to a multimodal model and returns the model's raw
// reply text. Implementations make exactly one attempt per call.
type Engine interface {
	Name() string
	GetModel() string
	Analyze(ctx context.Context, img []byte, mime string) (string, error)
}

type Engines struct {
	OpenAI Engine
	Gemini Engine
}

var ErrUnknownEngine = errors.New("unknown llm_name; use 'openai' or 'gemini'")

// GetEngine resolves a provider name. A nil engine with a nil error means the
// provider is known but has no credential configured.
func (e *Engines) GetEngine(llmName string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(llmName)) {
	case "gpt", "openai", "":
		return e.OpenAI, nil
	case "gemini":
		return e.Gemini, nil
	default:
		return nil, ErrUnknownEngine
	}
}
