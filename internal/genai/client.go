package genai

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// TextGenerator produces raw model text from a system+user prompt pair.
type TextGenerator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Config holds connection details for the Gemini backend.
type Config struct {
	BaseURL         string
	APIKey          string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
}

// GeminiClient calls the Gemini generateContent REST API. It requests
// gzip-compressed transport and decompresses transparently; callers only
// ever see plain text.
type GeminiClient struct {
	httpClient  *http.Client
	config      Config
	logger      zerolog.Logger
	generateURL string
}

var _ TextGenerator = (*GeminiClient)(nil)

// NewGeminiClient builds a client for the configured model.
func NewGeminiClient(cfg Config, logger zerolog.Logger) *GeminiClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 8192
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = defaultGeminiBaseURL
	}

	return &GeminiClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			// Compression is negotiated and decoded by hand below so the
			// Accept-Encoding header is under our control.
			Transport: &http.Transport{DisableCompression: true},
		},
		config:      cfg,
		logger:      logger.With().Str("component", "gemini_client").Logger(),
		generateURL: fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, cfg.Model),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens  int    `json:"maxOutputTokens"`
	ResponseMIMEType string `json:"responseMimeType"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// Generate requests model text for the prompt pair. Transport failures map
// to ErrModelUnavailable, non-success statuses to ErrModelError, and a
// text-free response to ErrEmptyResponse.
func (c *GeminiClient) Generate(ctx context.Context, system, user string) (string, error) {
	payload := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: system}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: user}}},
		},
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens:  c.config.MaxOutputTokens,
			ResponseMIMEType: "application/json",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.generateURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept-Encoding", "gzip")
	if c.config.APIKey != "" {
		httpReq.Header.Set("x-goog-api-key", c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := decompressBody(resp)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrModelUnavailable, err)
	}

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrModelError, resp.StatusCode, truncateForLog(raw, 200))
	}

	var genResp geminiResponse
	if err := json.Unmarshal(raw, &genResp); err != nil {
		return "", fmt.Errorf("%w: decode envelope: %v", ErrModelError, err)
	}
	if len(genResp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	candidate := genResp.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}

	// A truncated generation may still parse after repair, so it is
	// surfaced as text with a logged anomaly rather than an error.
	if candidate.FinishReason == "MAX_TOKENS" {
		c.logger.Warn().
			Int("max_output_tokens", c.config.MaxOutputTokens).
			Msg("model response truncated by token budget")
	}

	return text.String(), nil
}

func decompressBody(resp *http.Response) ([]byte, error) {
	reader := resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}
	return io.ReadAll(reader)
}

func truncateForLog(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
