package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sugun00/Meta-martin/api/internal/ocr"
)

const DefaultModel = "gemini-2.5-flash"

// Engine holds one genai client for the life of the process.
type Engine struct {
	Model string
	cl    *genai.Client
}

var _ ocr.Engine = (*Engine)(nil)

func New(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Engine, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Engine{Model: strings.TrimSpace(model), cl: cl}, nil
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Close() error {
	if e.cl == nil {
		return nil
	}
	return e.cl.Close()
}

func (e *Engine) Analyze(ctx context.Context, img []byte, mime string) (string, error) {
	if len(img) == 0 {
		return "", errors.New("gemini analyze: empty image")
	}
	m := e.cl.GenerativeModel(e.Model)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:     ptrFloat32(0.2),
		MaxOutputTokens: ptrInt32(1500),
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ocr.SystemPrompt)},
	}

	resp, err := m.GenerateContent(ctx,
		genai.Text(ocr.UserPrompt),
		&genai.Blob{MIMEType: mime, Data: img},
	)
	if err != nil {
		return "", fmt.Errorf("gemini analyze: %w", err)
	}
	txt := allText(resp)
	if strings.TrimSpace(txt) == "" {
		return "", errors.New("gemini analyze: empty response")
	}
	return txt, nil
}

// allText concatenates the text parts of the first candidate with content.
func allText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
func ptrInt32(v int32) *int32       { return &v }
