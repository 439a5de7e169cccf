// internal/models/openai.go
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

// OpenAIClient speaks the OpenAI-compatible /chat/completions streaming API.
// It serves OpenAI itself and the many vendors that mirror it (DeepSeek,
// OpenRouter, Groq, xAI, Ollama).
type OpenAIClient struct {
	name         string
	baseURL      string
	apiKey       string
	defaultModel string
	client       *http.Client
}

func NewOpenAI(name, baseURL, apiKey, defaultModel string, headerTimeout time.Duration) *OpenAIClient {
	return &OpenAIClient{
		name:         name,
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		defaultModel: defaultModel,
		client:       newHTTPClient(headerTimeout),
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

func (c *OpenAIClient) Stream(ctx context.Context, spec *Spec, messages []Message) (Stream, error) {
	model := c.defaultModel
	if spec != nil && spec.Model != "" {
		model = spec.Model
	}
	if model == "" {
		return nil, fmt.Errorf("%s: no model selected", c.name)
	}

	reqBody := openAIRequest{
		Model:    model,
		Messages: make([]openAIMessage, 0, len(messages)),
		Stream:   true,
	}
	for _, msg := range messages {
		reqBody.Messages = append(reqBody.Messages, openAIMessage{Role: msg.Role, Content: msg.Content})
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if err := checkResponse(c.name, resp); err != nil {
		return nil, err
	}

	return newSSEStream(ctx, resp.Body, decodeOpenAI), nil
}

type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func decodeOpenAI(_ string, data string) (string, bool, error) {
	if data == "[DONE]" {
		return "", true, nil
	}

	var chunk openAIChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		// keep-alive payloads and vendor extensions are not fatal
		return "", false, nil
	}
	if chunk.Error != nil {
		return "", true, errors.New(chunk.Error.Message)
	}

	var sb strings.Builder
	for _, choice := range chunk.Choices {
		sb.WriteString(choice.Delta.Content)
	}
	return sb.String(), false, nil
}
