package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/csheth/paperclip/internal/retry"
)

const openAISystemPrompt = "You are a concise research assistant helping someone read a paper."

// openAIClient talks to any chat completions endpoint that follows the
// OpenAI wire format.
type openAIClient struct {
	apiKey string
	model  string
	base   string
	prompt *Prompt
	policy retry.Policy
	client *http.Client
}

func (c *openAIClient) Name() string {
	return fmt.Sprintf("OpenAI (%s)", c.model)
}

func (c *openAIClient) Explain(ctx context.Context, req Request) (string, error) {
	prompt, err := c.prompt.Render(req)
	if err != nil {
		return "", err
	}
	var out string
	err = retry.Do(ctx, c.policy, "openai chat", func(ctx context.Context) error {
		text, err := c.chat(ctx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

func (c *openAIClient) chat(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": openAISystemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.2,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", retry.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/completions", bytes.NewReader(buf))
	if err != nil {
		return "", retry.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if retry.IsCanceled(ctx, err) {
			return "", retry.Permanent(err)
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", (&statusError{service: "openai", code: resp.StatusCode, msg: openAIErrorMessage(body)}).classify()
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", retry.Permanent(fmt.Errorf("decode openai response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", retry.Permanent(fmt.Errorf("openai API returned no choices"))
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", retry.Permanent(fmt.Errorf("openai returned an empty response"))
	}
	return text, nil
}

// openAIErrorMessage pulls error.message out of an error body, falling back
// to the raw text.
func openAIErrorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(body))
}
