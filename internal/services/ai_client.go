package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultAIModel       = "gpt-4o-mini"
	defaultAIBaseURL     = "https://api.openai.com/v1"
	defaultAIMaxTokens   = 2048
	maxAIResponseBytes   = 1 << 20
	maxLoggedSnippetRune = 1024
)

var ErrAIAPIKeyMissing = errors.New("ai api key is not configured")

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
	// JSONMode asks the model for a single JSON object.
	JSONMode bool
}

type ChatResponse struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// AIClient talks to an OpenAI-compatible chat completions endpoint.
type AIClient interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Enabled() bool
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type AIClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type OpenAIClient struct {
	http        httpDoer
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
}

func NewAIClient(cfg AIClientConfig) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &OpenAIClient{
		http:        &http.Client{Timeout: timeout},
		apiKey:      strings.TrimSpace(cfg.APIKey),
		baseURL:     defaultAIBaseURL,
		model:       defaultAIModel,
		maxTokens:   defaultAIMaxTokens,
		temperature: cfg.Temperature,
	}
	c.SetBaseURL(cfg.BaseURL)
	if m := strings.TrimSpace(cfg.Model); m != "" {
		c.model = m
	}
	if cfg.MaxTokens > 0 {
		c.maxTokens = cfg.MaxTokens
	}
	return c
}

// SetHTTPClient overrides the transport, mostly for tests.
func (c *OpenAIClient) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
		return
	}
	c.http = client
}

func (c *OpenAIClient) SetBaseURL(base string) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base != "" {
		c.baseURL = base
	}
}

func (c *OpenAIClient) Enabled() bool {
	return c.apiKey != ""
}

func (c *OpenAIClient) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if c.apiKey == "" {
		return ChatResponse{}, ErrAIAPIKeyMissing
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	payload := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: strings.TrimSpace(req.SystemPrompt)},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	if req.JSONMode {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("build ai request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("create ai request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "sitecraft/1.0")

	log.Printf("DEBUG: ai request model=%s prompt=%q", c.model, snippet(req.UserPrompt))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("call ai endpoint: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAIResponseBytes))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("read ai response: %w", err)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return ChatResponse{}, fmt.Errorf("ai endpoint returned %s", resp.Status)
		}
		return ChatResponse{}, fmt.Errorf("decode ai response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		errMsg := strings.TrimSpace(completion.Error.Message)
		if errMsg == "" {
			errMsg = resp.Status
		}
		return ChatResponse{}, fmt.Errorf("ai endpoint error: %s", errMsg)
	}

	if len(completion.Choices) == 0 {
		return ChatResponse{}, errors.New("ai endpoint returned no choices")
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	log.Printf("DEBUG: ai response tokens=%d/%d content=%q",
		completion.Usage.PromptTokens, completion.Usage.CompletionTokens, snippet(content))

	return ChatResponse{
		Content:          content,
		Model:            completion.Model,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}, nil
}

func snippet(s string) string {
	if utf8.RuneCountInString(s) <= maxLoggedSnippetRune {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLoggedSnippetRune]) + "…"
}
