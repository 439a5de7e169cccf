// internal/models/anthropic.go
package models

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096
)

// AnthropicClient speaks the Anthropic /v1/messages streaming API
type AnthropicClient struct {
	name         string
	baseURL      string
	apiKey       string
	defaultModel string
	client       *http.Client
}

func NewAnthropic(name, baseURL, apiKey, defaultModel string, headerTimeout time.Duration) *AnthropicClient {
	return &AnthropicClient{
		name:         name,
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		defaultModel: defaultModel,
		client:       newHTTPClient(headerTimeout),
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
	Stream    bool               `json:"stream"`
}

func (c *AnthropicClient) Stream(ctx context.Context, spec *Spec, messages []Message) (Stream, error) {
	model := c.defaultModel
	if spec != nil && spec.Model != "" {
		model = spec.Model
	}
	if model == "" {
		return nil, fmt.Errorf("%s: no model selected", c.name)
	}

	// System prompts travel in a dedicated field, not as a message
	reqBody := anthropicRequest{
		Model:     model,
		MaxTokens: anthropicMaxTokens,
		Stream:    true,
	}
	var system []string
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		reqBody.Messages = append(reqBody.Messages, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}
	reqBody.System = strings.Join(system, "\n\n")

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if err := checkResponse(c.name, resp); err != nil {
		return nil, err
	}

	return newSSEStream(ctx, resp.Body, decodeAnthropic), nil
}

type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeAnthropic(event, data string) (string, bool, error) {
	var ev anthropicEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return "", false, nil
	}
	if ev.Type == "" {
		ev.Type = event
	}

	switch ev.Type {
	case "content_block_delta":
		if ev.Delta.Type == "text_delta" {
			return ev.Delta.Text, false, nil
		}
	case "message_stop":
		return "", true, nil
	case "error":
		return "", true, fmt.Errorf("%s: %w", ev.Error.Type, errors.New(ev.Error.Message))
	}
	return "", false, nil
}
