package news

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// NewsAPIName is the registry key of the NewsAPI source.
const NewsAPIName = "newsapi"

// NewsAPIConfig configures the newsapi.org client.
type NewsAPIConfig struct {
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	PerMinute int
	PageSize  int
}

// NewsAPI searches newsapi.org's /everything endpoint.
type NewsAPI struct {
	client   *resty.Client
	limiter  *rate.Limiter
	apiKey   string
	pageSize int
}

var _ ports.NewsSource = (*NewsAPI)(nil)

// NewNewsAPI wires a resty client with a per-minute rate limit.
func NewNewsAPI(cfg NewsAPIConfig) *NewsAPI {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perMinute := cfg.PerMinute
	if perMinute <= 0 {
		perMinute = 100
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/"))
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "MarketNewsroom/1.0")

	return &NewsAPI{
		client:   client,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		apiKey:   cfg.APIKey,
		pageSize: pageSize,
	}
}

// Name identifies the source inside the registry.
func (n *NewsAPI) Name() string { return NewsAPIName }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
	} `json:"articles"`
}

// Search returns the most recent articles matching q.Query.
func (n *NewsAPI) Search(ctx context.Context, q ports.NewsQuery) ([]domain.NewsItem, error) {
	if n.apiKey == "" {
		return nil, fmt.Errorf("newsapi key not configured: %w", domain.ErrProviderUnavailable)
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("newsapi rate limit: %w", err)
	}

	pageSize := n.pageSize
	if q.Limit > 0 && q.Limit < pageSize {
		pageSize = q.Limit
	}
	language := q.Language
	if language == "" {
		language = "pt"
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":        q.Query,
			"language": language,
			"sortBy":   "publishedAt",
			"pageSize": strconv.Itoa(pageSize),
			"apiKey":   n.apiKey,
		}).
		Get("/everything")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news for %s: %v: %w", q.Query, err, domain.ErrProviderUnavailable)
	}

	var decoded newsAPIResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("newsapi error %d: %w", resp.StatusCode(), domain.ErrProviderUnavailable)
		}
		return nil, fmt.Errorf("failed to parse news response: %v: %w", err, domain.ErrMalformedResponse)
	}
	if resp.StatusCode() != 200 || decoded.Status != "ok" {
		return nil, fmt.Errorf("newsapi error %d %s: %s: %w", resp.StatusCode(), decoded.Code, decoded.Message, domain.ErrProviderUnavailable)
	}

	items := make([]domain.NewsItem, 0, len(decoded.Articles))
	for _, a := range decoded.Articles {
		if strings.TrimSpace(a.Title) == "" || a.Title == "[Removed]" {
			continue
		}
		items = append(items, domain.NewsItem{
			Title:       strings.TrimSpace(a.Title),
			Description: strings.TrimSpace(a.Description),
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
	}
	return items, nil
}
