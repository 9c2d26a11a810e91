package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/itchyny/gojq"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-3-flash-preview"
	DefaultGeminiTimeout = 120 * time.Second
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

var (
	textQuery  = mustCompile(`[.candidates[0].content.parts[]?.text // empty] | join("")`)
	errorQuery = mustCompile(`.error.message // empty`)
)

// GeminiConfig configures the Gemini REST client.
type GeminiConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// GeminiClient is a Generator backed by the Gemini generateContent endpoint.
type GeminiClient struct {
	cfg    GeminiConfig
	client *http.Client
}

// NewGeminiClient creates a client. A nil httpClient gets one with the
// configured timeout.
func NewGeminiClient(cfg GeminiConfig, httpClient *http.Client) *GeminiClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGeminiTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &GeminiClient{cfg: cfg, client: httpClient}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

// Generate sends one prompt and returns the concatenated text parts of the
// first candidate.
func (c *GeminiClient) Generate(ctx context.Context, p Prompt) (string, error) {
	if c.cfg.APIKey == "" {
		return "", errors.New("gemini: api key not configured")
	}

	var reqBody geminiRequest
	reqBody.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: p.Text}}}}
	reqBody.GenerationConfig.Temperature = p.Temperature
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("gemini: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, url.PathEscape(c.cfg.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	defer resp.Body.Close()

	var doc any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&doc); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("gemini: status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg, _ := first(ctx, errorQuery, doc)
		if msg == "" {
			return "", fmt.Errorf("gemini: status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("gemini: status %d: %s", resp.StatusCode, msg)
	}

	text, err := first(ctx, textQuery, doc)
	if err != nil {
		return "", fmt.Errorf("gemini: read response: %w", err)
	}
	if text == "" {
		return "", errors.New("gemini: response has no text")
	}
	return text, nil
}

// first runs code over doc and returns its first string output.
func first(ctx context.Context, code *gojq.Code, doc any) (string, error) {
	iter := code.RunWithContext(ctx, doc)
	for {
		v, ok := iter.Next()
		if !ok {
			return "", nil
		}
		if err, isErr := v.(error); isErr {
			return "", err
		}
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
}

func mustCompile(expr string) *gojq.Code {
	q, err := gojq.Parse(expr)
	if err != nil {
		panic(fmt.Sprintf("synth: parse %q: %v", expr, err))
	}
	code, err := gojq.Compile(q, gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		panic(fmt.Sprintf("synth: compile %q: %v", expr, err))
	}
	return code
}
