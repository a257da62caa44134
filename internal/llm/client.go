// Package llm transcribes rendered PDF pages through an OpenRouter-compatible
// vision chat completion endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/observability"
)

const (
	defaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel    = "google/gemini-2.5-flash-preview-09-2025"
)

// Client handles communication with the chat completion API.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	retry      *RetryConfig
	httpClient *http.Client
	logger     *observability.Logger
}

// Config configures a Client. Empty fields take defaults.
type Config struct {
	APIKey     string
	Model      string
	Endpoint   string
	MaxRetries int
	HTTPClient *http.Client
	Logger     *observability.Logger
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// Request represents the API request structure
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Response represents the API response structure
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

// Choice represents a single completion choice
type Choice struct {
	Delta        Delta  `json:"delta"`
	Message      Delta  `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Delta represents a message delta in streaming response
type Delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// NewClient creates a new LLM client.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.Nop()
	}

	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	return &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		endpoint:   cfg.Endpoint,
		retry:      retry,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger.WithComponent("llm"),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Transcribe sends one JPEG page image and returns the streamed Markdown.
func (c *Client) Transcribe(ctx context.Context, jpeg []byte) (string, error) {
	resultCh := make(chan string, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(resultCh)
		errCh <- c.Stream(ctx, jpeg, resultCh)
	}()

	var sb strings.Builder
	for chunk := range resultCh {
		sb.WriteString(chunk)
	}
	if err := <-errCh; err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Stream sends one JPEG page image and streams Markdown chunks to resultCh.
func (c *Client) Stream(ctx context.Context, jpeg []byte, resultCh chan<- string) error {
	if c.apiKey == "" {
		return domain.ConfigError("OPENROUTER_API_KEY is not set", nil)
	}

	body, err := json.Marshal(c.buildRequest(jpeg))
	if err != nil {
		return domain.EngineFailure("failed to marshal request", err)
	}

	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("HTTP-Referer", "https://github.com/spherical/smartpdf")
		req.Header.Set("X-Title", "smartpdf")

		return c.httpClient.Do(req)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.EngineFailure(fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(bodyBytes)), nil)
	}

	if err := NewStreamParser(resp.Body).ParseAll(ctx, resultCh); err != nil {
		return domain.EngineFailure("failed to parse stream", err)
	}
	return nil
}

// buildRequest constructs the API request with the page image.
func (c *Client) buildRequest(jpeg []byte) *Request {
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)

	msg := Message{
		Role: "user",
		Content: []ContentPart{
			{Type: "text", Text: buildPrompt()},
			{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
		},
	}

	return &Request{
		Model:    c.model,
		Messages: []Message{msg},
		Stream:   true,
	}
}

func buildPrompt() string {
	return `Transcribe this PDF page into GitHub-flavored Markdown.

RULES:
- Preserve the reading order of the page
- Use # headings for titles and section headers, matching their visual hierarchy
- Render tables as Markdown tables with a header row
- Render bulleted and numbered lists as Markdown lists
- Keep numbers, units and punctuation exactly as printed
- Do not use LaTeX or math mode
- Omit running headers, footers and page numbers
- Do not describe images; transcribe any text they contain
- Output ONLY the Markdown, with no commentary
- If the page has no text, output nothing`
}
