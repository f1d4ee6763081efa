// Package notify delivers "draft ready for review" notices over e-mail and
// Telegram.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"MarketNewsroom/internal/ports"
)

// RenderedMessage is a notice ready to be sent.
type RenderedMessage struct {
	Subject string
	Text    string
	HTML    string
}

type emailView struct {
	Title          string
	Ticker         string
	Company        string
	Recommendation string
	Source         string
	ReviewURL      string
	Content        template.HTML
}

// Renderer turns a notice into an HTML e-mail with a Markdown text part.
type Renderer struct {
	tmpl          *template.Template
	converter     *md.Converter
	reviewBaseURL string
}

// NewRenderer parses the built-in template. reviewBaseURL prefixes draft links.
func NewRenderer(reviewBaseURL string) *Renderer {
	return &Renderer{
		tmpl:          template.Must(template.New("email").Parse(emailHTMLTemplate)),
		converter:     md.NewConverter("", true, nil),
		reviewBaseURL: reviewBaseURL,
	}
}

// Render builds subject, HTML body and plain text fallback.
func (r *Renderer) Render(notice ports.DraftReadyNotice) (*RenderedMessage, error) {
	view := emailView{
		Title:     notice.Draft.Title,
		Ticker:    notice.Draft.Ticker,
		Company:   notice.Symbol.DisplayName(),
		Source:    notice.Draft.Metadata.Source,
		ReviewURL: ReviewURL(r.reviewBaseURL, notice.Draft.ID),
		Content:   template.HTML(notice.Draft.Content),
	}
	if notice.Draft.Recommendation != nil {
		view.Recommendation = *notice.Draft.Recommendation
	}

	var htmlBuf bytes.Buffer
	if err := r.tmpl.Execute(&htmlBuf, view); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}

	body, err := r.converter.ConvertString(notice.Draft.Content)
	if err != nil {
		body = notice.Draft.Content
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)\n", view.Title, view.Ticker)
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")
	if view.Recommendation != "" {
		fmt.Fprintf(&sb, "Recomendação: %s\n", view.Recommendation)
	}
	if view.ReviewURL != "" {
		fmt.Fprintf(&sb, "Revisar: %s\n", view.ReviewURL)
	}
	sb.WriteString("\n")
	sb.WriteString(strings.TrimSpace(body))
	sb.WriteString("\n")

	return &RenderedMessage{
		Subject: "Nova matéria pendente de revisão: " + view.Title,
		Text:    sb.String(),
		HTML:    htmlBuf.String(),
	}, nil
}

// ReviewURL links to a draft in the review UI; empty when no base is set.
func ReviewURL(base string, draftID int64) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/drafts/%d", base, draftID)
}

const emailHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8" />
  <title>{{.Ticker}} – {{.Title}}</title>
  <style>
    body { margin: 0; padding: 24px; background-color: #f3f4f6; font-family: -apple-system, "Segoe UI", Roboto, sans-serif; color: #111827; line-height: 1.5; }
    .container { max-width: 640px; margin: 0 auto; background: #ffffff; border-radius: 8px; border: 1px solid #e5e7eb; overflow: hidden; }
    .header { padding: 20px 24px; background: #1f2937; color: #ffffff; }
    .ticker { font-size: 24px; font-weight: 700; letter-spacing: 0.05em; }
    .body { padding: 24px; }
    .meta { color: #6b7280; font-size: 14px; }
    .button { display: inline-block; margin-top: 16px; padding: 10px 18px; background: #2563eb; color: #ffffff; border-radius: 6px; text-decoration: none; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <div class="ticker">{{.Ticker}}</div>
      <div>{{.Company}}</div>
    </div>
    <div class="body">
      <h2>{{.Title}}</h2>
      <p class="meta">Origem do texto: {{.Source}}{{if .Recommendation}} · Recomendação: {{.Recommendation}}{{end}}</p>
      <div class="article">{{.Content}}</div>
      {{if .ReviewURL}}<a class="button" href="{{.ReviewURL}}">Revisar matéria</a>{{end}}
    </div>
  </div>
</body>
</html>
`
