package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"MarketNewsroom/internal/config"
	"MarketNewsroom/internal/ports"
)

// TelegramNotifier posts notices to a chat via the bot API.
type TelegramNotifier struct {
	botToken      string
	chatID        string
	baseURL       string
	reviewBaseURL string
	client        *http.Client
}

var _ ports.ReviewerNotifier = (*TelegramNotifier)(nil)

// NewTelegramNotifier registers bot token and chat identifier.
func NewTelegramNotifier(cfg config.NotificationConfig) *TelegramNotifier {
	baseURL := strings.TrimRight(cfg.Telegram.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramNotifier{
		botToken:      cfg.Telegram.BotToken,
		chatID:        cfg.Telegram.ChatID,
		baseURL:       baseURL,
		reviewBaseURL: cfg.ReviewBaseURL,
		client:        &http.Client{Timeout: 5 * time.Second},
	}
}

// Channel names the delivery channel.
func (n *TelegramNotifier) Channel() string { return "telegram" }

// NotifyDraftReady posts a Markdown message to Telegram.
func (n *TelegramNotifier) NotifyDraftReady(ctx context.Context, notice ports.DraftReadyNotice) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return errors.New("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", n.message(notice))
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	return nil
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func (n *TelegramNotifier) message(notice ports.DraftReadyNotice) string {
	var sb strings.Builder
	sb.WriteString("*Nova matéria pendente de revisão*\n")
	fmt.Fprintf(&sb, "%s\n", markdownEscaper.Replace(notice.Draft.Title))
	fmt.Fprintf(&sb, "Ativo: %s (%s)\n", markdownEscaper.Replace(notice.Draft.Ticker), markdownEscaper.Replace(notice.Symbol.DisplayName()))
	if notice.Draft.Recommendation != nil {
		fmt.Fprintf(&sb, "Recomendação: %s\n", markdownEscaper.Replace(*notice.Draft.Recommendation))
	}
	if link := ReviewURL(n.reviewBaseURL, notice.Draft.ID); link != "" {
		fmt.Fprintf(&sb, "Revisar: %s\n", link)
	}
	return sb.String()
}
