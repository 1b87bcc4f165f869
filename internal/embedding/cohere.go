package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

const defaultCohereModel = "embed-english-v3.0"

// CohereProvider calls the Cohere Embed v2 API.
type CohereProvider struct {
	client *cohereclient.Client
	model  string
}

// NewCohereProvider builds a Cohere-backed provider. An empty model
// selects the default.
func NewCohereProvider(apiKey, model string, timeout time.Duration) *CohereProvider {
	if model == "" {
		model = defaultCohereModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	return &CohereProvider{client: client, model: model}
}

func (p *CohereProvider) Name() string { return "cohere/" + p.model }

func (p *CohereProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.V2.Embed(ctx, &cohere.V2EmbedRequest{
		Texts:          texts,
		Model:          p.model,
		InputType:      cohere.EmbedInputTypeSearchDocument,
		EmbeddingTypes: []cohere.EmbeddingType{cohere.EmbeddingTypeFloat},
	})
	if err != nil {
		return nil, fmt.Errorf("cohere embed: %w", err)
	}
	if resp == nil || resp.Embeddings == nil || resp.Embeddings.Float == nil {
		return nil, errors.New("cohere embed returned no float embeddings")
	}

	floats := resp.Embeddings.Float
	vectors := make([][]float32, len(floats))
	for i, vec := range floats {
		fv := make([]float32, len(vec))
		for j, v := range vec {
			fv[j] = float32(v)
		}
		vectors[i] = fv
	}
	return vectors, nil
}
