package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/coinwire/coinwire/internal/httpx"
)

const defaultNewsAPIEndpoint = "https://newsapi.org/v2/everything"

// NewsAPISource fetches crypto news from newsapi.org.
type NewsAPISource struct {
	apiKey     string
	endpoint   string
	keywords   []string
	maxResults int
	http       *httpx.Client
}

// DefaultKeywords is the crypto query vocabulary used when none is
// configured.
var DefaultKeywords = []string{"crypto", "web3", "blockchain", "cryptocurrency", "bitcoin"}

func NewNewsAPISource(apiKey, endpoint string, keywords []string, maxResults int) *NewsAPISource {
	if endpoint == "" {
		endpoint = defaultNewsAPIEndpoint
	}
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	if maxResults <= 0 {
		maxResults = 50
	}
	return &NewsAPISource{
		apiKey:     apiKey,
		endpoint:   endpoint,
		keywords:   keywords,
		maxResults: maxResults,
		http:       httpx.NewClient(15*time.Second, 1, 0),
	}
}

func (s *NewsAPISource) Name() string { return "newsapi" }

func (s *NewsAPISource) FetchLatest(ctx context.Context, since time.Time) ([]RawArticle, error) {
	var resp struct {
		Status   string `json:"status"`
		Articles []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			PublishedAt string `json:"publishedAt"`
			Description string `json:"description"`
			Content     string `json:"content"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}

	params := url.Values{}
	params.Set("q", strings.Join(s.keywords, " OR "))
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", fmt.Sprint(s.maxResults))
	if !since.IsZero() {
		params.Set("from", since.UTC().Format(time.RFC3339))
	}
	reqURL := s.endpoint + "?" + params.Encode()
	headers := map[string]string{"X-Api-Key": s.apiKey}
	if err := s.http.DoJSON(ctx, "GET", reqURL, headers, nil, &resp); err != nil {
		return nil, &SourceFetchError{Source: s.Name(), Err: err}
	}

	out := make([]RawArticle, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		publishedAt, err := time.Parse(time.RFC3339, a.PublishedAt)
		if err != nil {
			publishedAt = time.Now().UTC()
		}
		out = append(out, RawArticle{
			Title:       strings.TrimSpace(a.Title),
			URL:         strings.TrimSpace(a.URL),
			Source:      a.Source.Name,
			PublishedAt: publishedAt,
			Content:     a.Content,
			Summary:     a.Description,
		})
	}
	return out, nil
}
