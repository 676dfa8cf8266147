package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sugun00/Meta-martin/api/internal/ocr"
	"github.com/sugun00/Meta-martin/api/internal/util"
)

const (
	DefaultBaseURL   = "https://api.openai.com/v1/chat/completions"
	DefaultModel     = "gpt-4o"
	DefaultMaxTokens = 1500

	errBodyLimit = 512
)

type Engine struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	httpc     *http.Client
}

var _ ocr.Engine = (*Engine)(nil)

func New(key, model string) *Engine {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}

	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Engine{
		APIKey:    strings.TrimSpace(key),
		Model:     strings.TrimSpace(model),
		BaseURL:   DefaultBaseURL,
		MaxTokens: DefaultMaxTokens,
		// Timeout=0: the request context owns cancellation.
		httpc: &http.Client{Timeout: 0, Transport: tr},
	}
}

// WithHTTPClient overrides the internal HTTP client (e.g., for tests or tracing).
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

func (e *Engine) WithBaseURL(u string) *Engine {
	if u = strings.TrimSpace(u); u != "" {
		e.BaseURL = u
	}
	return e
}

func (e *Engine) WithMaxTokens(n int) *Engine {
	if n > 0 {
		e.MaxTokens = n
	}
	return e
}

func (e *Engine) Name() string     { return "openai" }
func (e *Engine) GetModel() string { return e.Model }

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (e *Engine) Analyze(ctx context.Context, img []byte, mime string) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("OPENAI_API_KEY is empty")
	}
	if len(img) == 0 {
		return "", errors.New("openai analyze: empty image")
	}

	dataURL := util.MakeDataURL(mime, base64.StdEncoding.EncodeToString(img))
	body := chatRequest{
		Model: e.Model,
		Messages: []chatMessage{
			{Role: "system", Content: ocr.SystemPrompt},
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: ocr.UserPrompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURL, Detail: "high"}},
				},
			},
		},
		MaxTokens: e.MaxTokens,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("openai analyze: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("openai analyze: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai analyze: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit+1))
		return "", fmt.Errorf("openai analyze %d: %s", resp.StatusCode, util.Truncate(strings.TrimSpace(string(x)), errBodyLimit))
	}

	var raw chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("openai analyze: decode response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return "", errors.New("openai analyze: empty response")
	}
	msg := raw.Choices[0].Message
	if strings.TrimSpace(msg.Content) == "" {
		if msg.Refusal != "" {
			return "", fmt.Errorf("openai analyze: refused: %s", msg.Refusal)
		}
		return "", fmt.Errorf("openai analyze: empty content (finish_reason=%q)", raw.Choices[0].FinishReason)
	}
	return msg.Content, nil
}
