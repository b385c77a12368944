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

type ollamaClient struct {
	host   string
	model  string
	prompt *Prompt
	policy retry.Policy
	client *http.Client
}

func (c *ollamaClient) Name() string {
	return fmt.Sprintf("Ollama (%s)", c.model)
}

func (c *ollamaClient) Explain(ctx context.Context, req Request) (string, error) {
	prompt, err := c.prompt.Render(req)
	if err != nil {
		return "", err
	}
	var out string
	err = retry.Do(ctx, c.policy, "ollama generate", func(ctx context.Context) error {
		text, err := c.generate(ctx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

// statusError is a non-2xx reply from an HTTP backend.
type statusError struct {
	service string
	code    int
	msg     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s API error: %d (%s)", e.service, e.code, e.msg)
}

// classify marks replies that will not change on retry as permanent.
func (e *statusError) classify() error {
	if e.code == http.StatusTooManyRequests || e.code >= 500 {
		return e
	}
	return retry.Permanent(e)
}

func (c *ollamaClient) generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", retry.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(buf))
	if err != nil {
		return "", retry.Permanent(err)
	}
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
		// Unknown model and bad payloads will not fix themselves.
		return "", (&statusError{service: "ollama", code: resp.StatusCode, msg: strings.TrimSpace(string(body))}).classify()
	}

	var parsed struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", retry.Permanent(fmt.Errorf("decode ollama response: %w", err))
	}
	if strings.TrimSpace(parsed.Response) == "" {
		return "", retry.Permanent(fmt.Errorf("ollama returned an empty response"))
	}
	return strings.TrimSpace(parsed.Response), nil
}
