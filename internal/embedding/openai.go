package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coinwire/coinwire/internal/httpx"
)

const (
	defaultOpenAIModel   = "text-embedding-3-small"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// OpenAIProvider calls the OpenAI embeddings endpoint.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	http    *httpx.Client
}

// NewOpenAIProvider builds an OpenAI-backed provider. Empty model or
// baseURL select the defaults.
func NewOpenAIProvider(apiKey, model, baseURL string, timeout time.Duration, retries int) *OpenAIProvider {
	if model == "" {
		model = defaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		http:    httpx.NewClient(timeout, retries, 0),
	}
}

func (p *OpenAIProvider) Name() string { return "openai/" + p.model }

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp openAIEmbedResponse
	err := p.http.DoJSON(ctx, http.MethodPost, p.baseURL+"/embeddings",
		map[string]string{"Authorization": "Bearer " + p.apiKey},
		openAIEmbedRequest{Model: p.model, Input: texts},
		&resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	// The API may return entries out of order; place them by index.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("openai returned out-of-range index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
