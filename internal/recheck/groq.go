// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package recheck

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"shroud/internal/resilience"
)

const (
	// DefaultEndpoint is Groq's OpenAI-compatible chat completions URL
	DefaultEndpoint = "https://api.groq.com/openai/v1/chat/completions"
	// DefaultModel is used when no model is configured
	DefaultModel = "llama-3.3-70b-versatile"
)

// ErrMalformedResponse is returned when the reply is neither true nor false
var ErrMalformedResponse = errors.New("malformed classifier response")

const systemPrompt = `You classify candidate personal or secret data found by pattern matching.
Decide whether the quoted text is a genuine, real-world instance of the named data type, not a string that merely fits the pattern inside code, configuration, test data or identifiers.
Reply with exactly one word: true or false.

Examples:
- 'john.doe@example.com' as EMAIL -> true
- '123-abc-456' as PHONE -> false
- 'Hunter2!pass' as PASSWORD -> true
- 'leftFreq":20.0' as PASSWORD -> false
- 'ssh-rsa AAAAB3NzaC...' as SSH_KEY -> true
- 'ABCPE1234F' as PAN_NUMBER -> true
- 'my_variable_key' as API_KEY -> false`

// GroqClient classifies queries with an OpenAI-compatible chat completions API
type GroqClient struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

// NewGroqClient creates a client. Empty endpoint or model use the defaults;
// a nil client uses http.DefaultClient. Per-call timeouts come from the context.
func NewGroqClient(endpoint, model, apiKey string, client *http.Client) *GroqClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if model == "" {
		model = DefaultModel
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GroqClient{endpoint: endpoint, model: model, apiKey: apiKey, client: client}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

func userPrompt(q Query) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Is the text '%s' a real-world example of a '%s'?", q.Text, q.Category)
	if q.Context != "" && q.Context != q.Text {
		fmt.Fprintf(&sb, "\nSurrounding text: '%s'", q.Context)
	}
	sb.WriteString("\nAnswer true or false.")
	return sb.String()
}

// Classify implements Classifier
func (g *GroqClient) Classify(ctx context.Context, q Query) (bool, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(q)},
		},
		Temperature: 0,
		MaxTokens:   8,
	})
	if err != nil {
		return false, fmt.Errorf("groq: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("groq: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("groq: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, fmt.Errorf("groq: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("groq: %w", &resilience.StatusError{StatusCode: resp.StatusCode, Body: string(respBody)})
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return false, fmt.Errorf("groq: %w: %v", ErrMalformedResponse, err)
	}
	if len(result.Choices) == 0 {
		return false, fmt.Errorf("groq: %w: no choices", ErrMalformedResponse)
	}
	return parseVerdict(result.Choices[0].Message.Content)
}

func parseVerdict(content string) (bool, error) {
	answer := strings.ToLower(strings.Trim(strings.TrimSpace(content), ".'\"`!"))
	switch answer {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("groq: %w: %q", ErrMalformedResponse, content)
	}
}
