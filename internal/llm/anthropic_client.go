package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/csheth/paperclip/internal/retry"
)

const anthropicSystemPrompt = "You explain passages from research papers to a careful reader. Answer in concise markdown."

type anthropicClient struct {
	api    *anthropic.Client
	model  anthropic.Model
	prompt *Prompt
	policy retry.Policy
}

func newAnthropicClient(apiKey, model, baseURL string, prompt *Prompt, policy retry.Policy, httpClient *http.Client) *anthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retries go through policy so both providers back off the same way.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client := anthropic.NewClient(opts...)
	return &anthropicClient{
		api:    &client,
		model:  anthropic.Model(model),
		prompt: prompt,
		policy: policy,
	}
}

func (c *anthropicClient) Name() string {
	return fmt.Sprintf("Anthropic (%s)", c.model)
}

func (c *anthropicClient) Explain(ctx context.Context, req Request) (string, error) {
	userPrompt, err := c.prompt.Render(req)
	if err != nil {
		return "", err
	}
	var out string
	err = retry.Do(ctx, c.policy, "anthropic messages", func(ctx context.Context) error {
		msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     c.model,
			MaxTokens: 1024,
			System: []anthropic.TextBlockParam{
				{Text: anthropicSystemPrompt},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
			},
		})
		if err != nil {
			var apiErr *anthropic.Error
			if errors.As(err, &apiErr) && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
				return retry.Permanent(fmt.Errorf("anthropic API call: %w", err))
			}
			if retry.IsCanceled(ctx, err) {
				return retry.Permanent(err)
			}
			return fmt.Errorf("anthropic API call: %w", err)
		}

		var parts []string
		for _, block := range msg.Content {
			if block.Type == "text" {
				parts = append(parts, block.Text)
			}
		}
		text := strings.TrimSpace(strings.Join(parts, "\n"))
		if text == "" {
			return retry.Permanent(errors.New("no text content in API response"))
		}
		out = text
		return nil
	})
	return out, err
}
