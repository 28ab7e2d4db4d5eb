package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/resilience"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client is a chat completion Completer backed by the OpenAI API or any
// compatible endpoint.
type Client struct {
	api      *openai.Client
	model    string
	executor *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		apiCfg.BaseURL = base
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	apiCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:      openai.NewClientWithConfig(apiCfg),
		model:    cfg.Model,
		executor: executor,
	}
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	op := "openai chat " + c.model
	chatReq := c.chatRequest(req)

	var (
		content string
		err     error
	)
	if c.executor != nil {
		content, err = resilience.Call(ctx, c.executor, op, func(ctx context.Context) (string, error) {
			return c.create(ctx, chatReq)
		}, classifyOpenAIError)
	} else {
		content, err = c.create(ctx, chatReq)
	}
	if err != nil {
		return "", resilience.WrapTemporary(op, err, classifyOpenAIError)
	}
	return content, nil
}

func (c *Client) chatRequest(req domain.CompletionRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	// Reasoning models reject max_tokens.
	if isReasoningModel(c.model) {
		chatReq.MaxCompletionTokens = req.MaxTokens
		chatReq.Temperature = 0
	} else {
		chatReq.MaxTokens = req.MaxTokens
	}
	return chatReq
}

func (c *Client) create(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func classifyOpenAIError(err error) resilience.Classification {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return resilience.ClassifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return resilience.ClassifyStatus(reqErr.HTTPStatusCode)
	}
	return resilience.ClassifyTransport(err)
}
