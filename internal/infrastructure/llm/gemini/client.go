package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/llm/httpjson"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	defaultMaxOutputTokens = 4096
	defaultTopK            = 20
	defaultTopP            = 0.8
)

type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
}

// Client calls the Gemini generateContent REST endpoint.
type Client struct {
	model           string
	maxOutputTokens int
	transport       *httpjson.Client
	executor        *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}
	header := http.Header{}
	header.Set("x-goog-api-key", cfg.APIKey)
	return &Client{
		model:           cfg.Model,
		maxOutputTokens: maxTokens,
		transport:       httpjson.New("gemini", baseURL, timeout, header),
		executor:        executor,
	}
}

func (c *Client) Model() string {
	return c.model
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float32 `json:"temperature"`
	TopK             int     `json:"topK"`
	TopP             float32 `json:"topP"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	op := "gemini generate " + c.model
	body := c.generateRequest(req)

	call := func(ctx context.Context) (string, error) {
		var resp generateResponse
		if err := c.transport.Post(ctx, "/v1beta/models/"+c.model+":generateContent", body, &resp, "generate"); err != nil {
			return "", err
		}
		return responseText(resp)
	}

	var (
		text string
		err  error
	)
	if c.executor != nil {
		text, err = resilience.Call(ctx, c.executor, op, call, resilience.ClassifyTransport)
	} else {
		text, err = call(ctx)
	}
	if err != nil {
		return "", resilience.WrapTemporary(op, err, resilience.ClassifyTransport)
	}
	return text, nil
}

func (c *Client) generateRequest(req domain.CompletionRequest) generateRequest {
	maxTokens := req.MaxTokens
	if c.maxOutputTokens > maxTokens {
		maxTokens = c.maxOutputTokens
	}
	out := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.User}}}},
		GenerationConfig: generationConfig{
			Temperature:     req.Temperature,
			TopK:            defaultTopK,
			TopP:            defaultTopP,
			MaxOutputTokens: maxTokens,
		},
	}
	if strings.TrimSpace(req.System) != "" {
		out.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	if req.JSON {
		out.GenerationConfig.ResponseMIMEType = "application/json"
	}
	return out
}

func responseText(resp generateResponse) (string, error) {
	if reason := resp.PromptFeedback.BlockReason; reason != "" {
		return "", fmt.Errorf("gemini blocked prompt: %s", reason)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String()), nil
}
