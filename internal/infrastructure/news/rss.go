package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// RSSName is the registry key of the Google News RSS source.
const RSSName = "rss"

// RSSSource searches the Google News RSS endpoint.
type RSSSource struct {
	client  *resty.Client
	baseURL string
}

var _ ports.NewsSource = (*RSSSource)(nil)

// NewRSSSource wires a resty client; timeout defaults to 10s.
func NewRSSSource(baseURL string, timeout time.Duration) *RSSSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "MarketNewsroom/1.0")
	return &RSSSource{client: client, baseURL: baseURL}
}

// Name identifies the source inside the registry.
func (s *RSSSource) Name() string { return RSSName }

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Source      string `xml:"source"`
}

// Search fetches the feed for q.Query and converts its items.
func (s *RSSSource) Search(ctx context.Context, q ports.NewsQuery) ([]domain.NewsItem, error) {
	feedURL, err := buildSearchURL(s.baseURL, q)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.R().SetContext(ctx).Get(feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch RSS feed: %v: %w", err, domain.ErrProviderUnavailable)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("rss feed returned %s: %w", resp.Status(), domain.ErrProviderUnavailable)
	}

	var feed rssFeed
	if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
		return nil, fmt.Errorf("failed to parse RSS XML: %v: %w", err, domain.ErrMalformedResponse)
	}

	items := make([]domain.NewsItem, 0, len(feed.Channel.Items))
	for _, raw := range feed.Channel.Items {
		if q.Limit > 0 && len(items) >= q.Limit {
			break
		}
		if item, ok := parseItem(raw); ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func parseItem(raw rssItem) (domain.NewsItem, bool) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return domain.NewsItem{}, false
	}

	source := strings.TrimSpace(raw.Source)
	if source != "" {
		title = strings.TrimSpace(strings.TrimSuffix(title, " - "+source))
	} else if idx := strings.LastIndex(title, " - "); idx > 0 {
		source = strings.TrimSpace(title[idx+3:])
		title = strings.TrimSpace(title[:idx])
	}

	description := stripHTML(raw.Description)
	if description == title || strings.HasPrefix(description, title) {
		description = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(description, title), source))
	}

	publishedAt := time.Now().UTC()
	for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
		if parsed, err := time.Parse(layout, strings.TrimSpace(raw.PubDate)); err == nil {
			publishedAt = parsed.UTC()
			break
		}
	}

	return domain.NewsItem{
		Title:       title,
		Description: description,
		URL:         strings.TrimSpace(raw.Link),
		Source:      source,
		PublishedAt: publishedAt,
	}, true
}

func stripHTML(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(strings.ReplaceAll(doc.Text(), "\u00a0", " ")), " ")
}

func buildSearchURL(base string, q ports.NewsQuery) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid rss url %s: %w", base, err)
	}

	language := q.Language
	if language == "" {
		language = "pt"
	}
	hl, gl := "pt-BR", "BR"
	if language != "pt" {
		hl, gl = language, strings.ToUpper(language)
	}

	query := parsed.Query()
	query.Set("q", q.Query)
	query.Set("hl", hl)
	query.Set("gl", gl)
	query.Set("ceid", gl+":"+strings.SplitN(hl, "-", 2)[0])
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
