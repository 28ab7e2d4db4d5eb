package ollama

import (
	"context"
	"strings"
	"time"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/llm/httpjson"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/resilience"
)

// Client is a Completer backed by a local Ollama server.
type Client struct {
	model     string
	transport *httpjson.Client
	executor  *resilience.Executor
}

func New(baseURL, model string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		model:     model,
		transport: httpjson.New("ollama", baseURL, timeout, nil),
		executor:  executor,
	}
}

func (c *Client) Model() string {
	return c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  chatOptions   `json:"options"`
}

func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	op := "ollama chat " + c.model
	body := c.chatRequest(req)

	call := func(ctx context.Context) (string, error) {
		var response struct {
			Message chatMessage `json:"message"`
		}
		if err := c.transport.Post(ctx, "/api/chat", body, &response, "chat"); err != nil {
			return "", err
		}
		return strings.TrimSpace(response.Message.Content), nil
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

func (c *Client) chatRequest(req domain.CompletionRequest) chatRequest {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	out := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options: chatOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
	if req.JSON {
		out.Format = "json"
	}
	return out
}
