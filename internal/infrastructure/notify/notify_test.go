package notify

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "gopkg.in/mail.v2"

	"MarketNewsroom/internal/config"
	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

func sampleNotice() ports.DraftReadyNotice {
	rec := "Manter posição até o próximo balanço."
	return ports.DraftReadyNotice{
		Draft: domain.Draft{
			ID:             12,
			Ticker:         "ACME4",
			Title:          "Acme_Co sobe 1,67% com *recompra*",
			Content:        "<h2>Resumo</h2><p>A <strong>Acme</strong> avançou no pregão.</p>",
			Status:         domain.DraftPendingReview,
			Recommendation: &rec,
			Metadata:       domain.DraftMetadata{Source: domain.DraftSourceAI},
		},
		Symbol: domain.Symbol{ID: 1, Ticker: "ACME4", Name: "Acme Co"},
	}
}

func TestReviewURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://newsroom.example/drafts/12", ReviewURL("https://newsroom.example/", 12))
	assert.Empty(t, ReviewURL("  ", 12))
}

func TestRendererRender(t *testing.T) {
	t.Parallel()

	msg, err := NewRenderer("https://newsroom.example").Render(sampleNotice())
	require.NoError(t, err)

	assert.Equal(t, "Nova matéria pendente de revisão: Acme_Co sobe 1,67% com *recompra*", msg.Subject)
	assert.Contains(t, msg.HTML, "<strong>Acme</strong>")
	assert.Contains(t, msg.HTML, `href="https://newsroom.example/drafts/12"`)
	assert.Contains(t, msg.HTML, "Acme Co")
	assert.Contains(t, msg.Text, "## Resumo")
	assert.Contains(t, msg.Text, "**Acme**")
	assert.Contains(t, msg.Text, "Recomendação: Manter posição até o próximo balanço.")
	assert.Contains(t, msg.Text, "Revisar: https://newsroom.example/drafts/12")
}

type captureSender struct {
	mu       sync.Mutex
	messages []*gomail.Message
	err      error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m...)
	return c.err
}

func TestEmailNotifier(t *testing.T) {
	t.Parallel()

	cfg := config.NotificationConfig{
		ReviewerEmail: "editor@newsroom.example",
		ReviewBaseURL: "https://newsroom.example",
		SMTP:          config.SMTPConfig{Host: "smtp.example", Port: 587, Username: "bot@newsroom.example"},
	}
	notifier := NewEmailNotifier(cfg, nil)
	sender := &captureSender{}
	notifier.sender = sender

	assert.Equal(t, "email", notifier.Channel())
	require.NoError(t, notifier.NotifyDraftReady(context.Background(), sampleNotice()))

	require.Len(t, sender.messages, 1)
	m := sender.messages[0]
	assert.Equal(t, []string{"bot@newsroom.example"}, m.GetHeader("From"))
	assert.Equal(t, []string{"editor@newsroom.example"}, m.GetHeader("To"))
	subject := m.GetHeader("Subject")
	require.Len(t, subject, 1)
	decoded, err := new(mime.WordDecoder).DecodeHeader(subject[0])
	require.NoError(t, err)
	assert.Equal(t, "Nova matéria pendente de revisão: Acme_Co sobe 1,67% com *recompra*", decoded)

	sender.err = errors.New("535 authentication failed")
	err = notifier.NotifyDraftReady(context.Background(), sampleNotice())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535")

	cfg.ReviewerEmail = ""
	require.Error(t, NewEmailNotifier(cfg, nil).NotifyDraftReady(context.Background(), sampleNotice()))
}

func TestTelegramNotifier(t *testing.T) {
	t.Parallel()

	var path string
	var form map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, r.ParseForm())
		form = map[string]string{
			"chat_id":    r.PostForm.Get("chat_id"),
			"text":       r.PostForm.Get("text"),
			"parse_mode": r.PostForm.Get("parse_mode"),
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)

	notifier := NewTelegramNotifier(config.NotificationConfig{
		ReviewBaseURL: "https://newsroom.example",
		Telegram:      config.TelegramConfig{BotToken: "123:abc", ChatID: "-100", BaseURL: server.URL},
	})
	assert.Equal(t, "telegram", notifier.Channel())
	require.NoError(t, notifier.NotifyDraftReady(context.Background(), sampleNotice()))

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "-100", form["chat_id"])
	assert.Equal(t, "Markdown", form["parse_mode"])
	assert.Contains(t, form["text"], "*Nova matéria pendente de revisão*")
	assert.Contains(t, form["text"], `Acme\_Co sobe 1,67% com \*recompra\*`)
	assert.Contains(t, form["text"], "Revisar: https://newsroom.example/drafts/12")
}

func TestTelegramNotifierErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	notifier := NewTelegramNotifier(config.NotificationConfig{
		Telegram: config.TelegramConfig{BotToken: "t", ChatID: "c", BaseURL: server.URL},
	})
	err := notifier.NotifyDraftReady(context.Background(), sampleNotice())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	err = NewTelegramNotifier(config.NotificationConfig{}).NotifyDraftReady(context.Background(), sampleNotice())
	require.EqualError(t, err, "telegram notifier misconfigured")
}
