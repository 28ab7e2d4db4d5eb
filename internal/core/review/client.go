package review

import (
	"context"
	"fmt"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
	"github.com/kirillkom/rx-crosscheck/internal/core/ports"
)

// Client is a reviewer backed by any chat completion provider.
type Client struct {
	name       string
	completer  ports.Completer
	normalizer *Normalizer
	prompts    PromptOptions
}

func NewClient(name string, completer ports.Completer, normalizer *Normalizer, prompts PromptOptions) *Client {
	if normalizer == nil {
		normalizer = NewNormalizer(prompts.Now)
	}
	return &Client{
		name:       name,
		completer:  completer,
		normalizer: normalizer,
		prompts:    prompts,
	}
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) Evaluate(ctx context.Context, prescription domain.Prescription, patient domain.Patient) (domain.Analysis, error) {
	op := "reviewer " + c.name

	raw, err := c.completer.Complete(ctx, BuildReviewPrompt(prescription, patient, c.prompts))
	if err != nil {
		if domain.IsKind(err, domain.ErrProviderCall) {
			return domain.Analysis{}, fmt.Errorf("%s: %w", op, err)
		}
		return domain.Analysis{}, domain.WrapError(domain.ErrProviderCall, op, err)
	}

	analysis, err := c.normalizer.Normalize(raw)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("%s: %w", op, err)
	}
	analysis.Reviewer = c.name
	return analysis, nil
}
