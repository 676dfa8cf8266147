package ocr

import (
	"context"
	"errors"
	"testing"
)

type namedEngine string

func (n namedEngine) Name() string     { return string(n) }
func (n namedEngine) GetModel() string { return "m" }
func (n namedEngine) Analyze(context.Context, []byte, string) (string, error) {
	return "", nil
}

func TestGetEngine(t *testing.T) {
	engs := &Engines{OpenAI: namedEngine("openai"), Gemini: namedEngine("gemini")}

	for name, want := range map[string]string{"gpt": "openai", "OpenAI": "openai", "": "openai", " gemini ": "gemini"} {
		e, err := engs.GetEngine(name)
		if err != nil {
			t.Fatalf("GetEngine(%q) returned error: %v", name, err)
		}
		if e.Name() != want {
			t.Fatalf("GetEngine(%q) = %s, want %s", name, e.Name(), want)
		}
	}

	if _, err := engs.GetEngine("deepseek"); !errors.Is(err, ErrUnknownEngine) {
		t.Fatalf("expected ErrUnknownEngine, got %v", err)
	}
}

func TestGetEngineWithoutCredential(t *testing.T) {
	engs := &Engines{}
	e, err := engs.GetEngine("gemini")
	if err != nil || e != nil {
		t.Fatalf("expected nil engine and nil error, got %v, %v", e, err)
	}
}
