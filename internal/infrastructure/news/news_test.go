package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

func TestNewsAPISearch(t *testing.T) {
	t.Parallel()

	var got url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/everything", r.URL.Path)
		got = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":3,"articles":[
			{"source":{"name":"Valor"},"title":"Acme lucra mais","description":"Resultado forte","url":"https://valor.example/1","publishedAt":"2025-03-14T08:00:00Z"},
			{"source":{"name":"Removed"},"title":"[Removed]","description":"","url":"","publishedAt":"2025-03-14T07:00:00Z"},
			{"source":{"name":"InfoMoney"},"title":"Acme expande fábrica","description":"","url":"https://infomoney.example/2","publishedAt":"2025-03-13T21:00:00Z"}
		]}`))
	}))
	t.Cleanup(server.Close)

	client := NewNewsAPI(NewsAPIConfig{APIKey: "key", BaseURL: server.URL, PerMinute: 6000, PageSize: 20})
	items, err := client.Search(context.Background(), ports.NewsQuery{Query: "Acme Co", Language: "pt", Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, "Acme Co", got.Get("q"))
	assert.Equal(t, "pt", got.Get("language"))
	assert.Equal(t, "publishedAt", got.Get("sortBy"))
	assert.Equal(t, "5", got.Get("pageSize"))
	assert.Equal(t, "key", got.Get("apiKey"))

	require.Len(t, items, 2)
	assert.Equal(t, "Acme lucra mais", items[0].Title)
	assert.Equal(t, "Valor", items[0].Source)
	assert.Equal(t, time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC), items[0].PublishedAt.UTC())
	assert.Equal(t, "InfoMoney", items[1].Source)
}

func TestNewsAPIErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid"}`))
	}))
	t.Cleanup(server.Close)

	client := NewNewsAPI(NewsAPIConfig{APIKey: "bad", BaseURL: server.URL, PerMinute: 6000})
	_, err := client.Search(context.Background(), ports.NewsQuery{Query: "Acme"})
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "apiKeyInvalid")

	_, err = NewNewsAPI(NewsAPIConfig{BaseURL: server.URL}).Search(context.Background(), ports.NewsQuery{Query: "Acme"})
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Acme - Google Notícias</title>
<item>
  <title>Acme anuncia recompra de ações - Valor Econômico</title>
  <link>https://news.example/a1</link>
  <pubDate>Fri, 14 Mar 2025 08:00:00 GMT</pubDate>
  <description>&lt;a href="https://news.example/a1"&gt;Acme anuncia recompra de ações&lt;/a&gt;&amp;nbsp;&amp;nbsp;&lt;font color="#6f6f6f"&gt;Valor Econômico&lt;/font&gt;</description>
  <source url="https://valor.example">Valor Econômico</source>
</item>
<item>
  <title>Acme cai na bolsa - InfoMoney</title>
  <link>https://news.example/a2</link>
  <pubDate>Thu, 13 Mar 2025 18:30:00 +0000</pubDate>
  <description>&lt;p&gt;Papel recua após &lt;b&gt;balanço&lt;/b&gt; fraco&lt;/p&gt;</description>
</item>
<item><title></title></item>
</channel></rss>`

func TestRSSSearch(t *testing.T) {
	t.Parallel()

	var got url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	t.Cleanup(server.Close)

	source := NewRSSSource(server.URL+"/rss/search", time.Second)
	items, err := source.Search(context.Background(), ports.NewsQuery{Query: "Acme Co", Language: "pt", Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, "Acme Co", got.Get("q"))
	assert.Equal(t, "pt-BR", got.Get("hl"))
	assert.Equal(t, "BR:pt", got.Get("ceid"))

	require.Len(t, items, 2)
	assert.Equal(t, "Acme anuncia recompra de ações", items[0].Title)
	assert.Equal(t, "Valor Econômico", items[0].Source)
	assert.Equal(t, "", items[0].Description)
	assert.Equal(t, time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC), items[0].PublishedAt)

	assert.Equal(t, "Acme cai na bolsa", items[1].Title)
	assert.Equal(t, "InfoMoney", items[1].Source)
	assert.Equal(t, "Papel recua após balanço fraco", items[1].Description)
	assert.Equal(t, "https://news.example/a2", items[1].URL)
}

func TestRSSSearchLimitAndErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "broken" {
			_, _ = w.Write([]byte("<rss><channel><item>"))
			return
		}
		if r.URL.Query().Get("q") == "down" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sampleFeed))
	}))
	t.Cleanup(server.Close)

	source := NewRSSSource(server.URL, time.Second)

	items, err := source.Search(context.Background(), ports.NewsQuery{Query: "Acme", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = source.Search(context.Background(), ports.NewsQuery{Query: "broken"})
	require.ErrorIs(t, err, domain.ErrMalformedResponse)

	_, err = source.Search(context.Background(), ports.NewsQuery{Query: "down"})
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

type stubSource struct {
	name  string
	items []domain.NewsItem
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Search(context.Context, ports.NewsQuery) ([]domain.NewsItem, error) {
	s.calls++
	return s.items, s.err
}

func TestRegistryResolveAndChain(t *testing.T) {
	t.Parallel()

	primary := &stubSource{name: NewsAPIName, err: errors.New("quota exceeded")}
	backup := &stubSource{name: RSSName, items: []domain.NewsItem{{Title: "Acme sobe"}}}

	registry := NewRegistry()
	registry.Register(primary)
	registry.Register(backup)

	resolved, err := registry.Resolve(RSSName)
	require.NoError(t, err)
	assert.Same(t, backup, resolved)

	_, err = registry.Resolve("bing")
	require.Error(t, err)

	chain := registry.Chain(nil, NewsAPIName, RSSName, RSSName)
	require.NotNil(t, chain)
	assert.Equal(t, NewsAPIName, chain.Name())

	items, err := chain.Search(context.Background(), ports.NewsQuery{Query: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "Acme sobe", items[0].Title)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)

	backup.err = errors.New("feed offline")
	_, err = chain.Search(context.Background(), ports.NewsQuery{Query: "Acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Contains(t, err.Error(), "feed offline")

	assert.Same(t, backup, registry.Chain(nil, "bing", RSSName))
	assert.Nil(t, registry.Chain(nil, "bing"))
}
