package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultChatModel   = "gpt-4o-mini"
	defaultChatBaseURL = "https://api.openai.com/v1"
	doneSentinel       = "[DONE]"
)

// OpenAIClient streams chat completions from the OpenAI API.
type OpenAIClient struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// NewOpenAIClient builds a streaming chat client. Empty model or baseURL
// select the defaults. The timeout bounds the whole stream; zero means
// one minute.
func NewOpenAIClient(apiKey, model, baseURL string, temperature float64, maxTokens int, timeout time.Duration) *OpenAIClient {
	if model == "" {
		model = defaultChatModel
	}
	if baseURL == "" {
		baseURL = defaultChatBaseURL
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &OpenAIClient{
		apiKey:      apiKey,
		model:       model,
		baseURL:     baseURL,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// GenerateStream POSTs a streaming chat completion and forwards each
// content delta to onDelta as it arrives. Cancelling ctx closes the
// response body and returns ctx's error.
func (c *OpenAIClient) GenerateStream(ctx context.Context, messages []Message, onDelta func(delta string) error) error {
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      true,
	})
	if err != nil {
		return fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat completions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("chat completions: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == doneSentinel {
			return nil
		}

		var delta chatDelta
		if err := json.Unmarshal([]byte(data), &delta); err != nil {
			return fmt.Errorf("decode stream delta: %w", err)
		}
		for _, choice := range delta.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := onDelta(choice.Delta.Content); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}
