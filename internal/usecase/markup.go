package usecase

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	blockTags      = []string{"p", "h1", "h2", "h3", "h4", "ul", "ol", "li", "div", "section", "article", "strong", "em"}
	markdownLeakRe = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s|\*\*[^*\n]+\*\*|^\s*[-*]\s+\S|__[^_\n]+__`)
	htmlTagRe      = regexp.MustCompile(`<[a-zA-Z][^>]*>`)

	inlineStrongRe = regexp.MustCompile(`\*\*([^*\n]+)\*\*|__([^_\n]+)__`)
	inlineEmRe     = regexp.MustCompile(`(^|[^*\w])\*([^*\s][^*\n]*?)\*([^*\w]|$)`)
	headingLineRe  = regexp.MustCompile(`(?m)^[ \t]{0,3}(#{1,6})[ \t]+(.+?)[ \t]*#*[ \t]*$`)
	bulletLineRe   = regexp.MustCompile(`(?m)^[ \t]*[-*][ \t]+(\S.*)$`)

	// raw HTML inside Markdown is kept instead of being replaced by a comment
	markdown = goldmark.New(goldmark.WithRendererOptions(html.WithUnsafe()))

	recommendationRe = regexp.MustCompile(`(?i)Recomendação[:\s]+([^\n]+)`)
	recommendsRe     = regexp.MustCompile(`(?i)Recomenda-se\s+([^.\n]+)`)
	sentenceEndRe    = regexp.MustCompile(`^(.+?[.!?])(\s|$)`)
)

const maxRecommendationLength = 255

func hasBlockTags(content string) bool {
	lower := strings.ToLower(content)
	for _, tag := range blockTags {
		if strings.Contains(lower, "<"+tag) && strings.Contains(lower, "</"+tag+">") {
			return true
		}
	}
	return false
}

// IsWellFormedHTML reports whether content already is block markup without Markdown leakage.
func IsWellFormedHTML(content string) bool {
	if markdownLeakRe.MatchString(content) {
		return false
	}
	return hasBlockTags(content)
}

// MarkdownToHTML converts Markdown to HTML with goldmark.
func MarkdownToHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// NormalizeMarkup converts content to HTML when needed.
// Block HTML is kept as is; Markdown left inside it is rewritten in place.
func NormalizeMarkup(content string) (string, error) {
	content = strings.TrimSpace(content)
	if IsWellFormedHTML(content) {
		return content, nil
	}
	if hasBlockTags(content) {
		return rewriteInlineMarkdown(content), nil
	}
	return MarkdownToHTML(content)
}

func rewriteInlineMarkdown(content string) string {
	content = headingLineRe.ReplaceAllStringFunc(content, func(line string) string {
		m := headingLineRe.FindStringSubmatch(line)
		level := len(m[1])
		return fmt.Sprintf("<h%d>%s</h%d>", level, m[2], level)
	})
	content = bulletLineRe.ReplaceAllString(content, "<li>$1</li>")
	content = inlineStrongRe.ReplaceAllString(content, "<strong>$1$2</strong>")
	return inlineEmRe.ReplaceAllString(content, "$1<em>$2</em>$3")
}

// HasVisibleText reports whether content renders to any text at all.
// Comments and empty tags do not count.
func HasVisibleText(content string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return strings.TrimSpace(content) != ""
	}
	return strings.TrimSpace(doc.Text()) != ""
}

// HasDisclaimer reports whether content already carries a regulatory notice.
func HasDisclaimer(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "disclaimer") ||
		strings.Contains(lower, "aviso") ||
		strings.Contains(lower, "conteúdo foi gerado")
}

// WithDisclaimer appends the disclaimer unless one is present.
func WithDisclaimer(content string) string {
	if HasDisclaimer(content) {
		return content
	}
	return strings.TrimSpace(content) + "\n" + Disclaimer
}

// PlainText strips markup, keeping block boundaries as newlines.
func PlainText(content string) string {
	if !htmlTagRe.MatchString(content) {
		return content
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	doc.Find("p, h1, h2, h3, h4, li, br, div").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return strings.TrimSpace(doc.Text())
}

// splitHTMLTitle pulls the first h1 (or h2) out of an HTML body.
func splitHTMLTitle(content string) (string, string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", content, false
	}

	heading := doc.Find("h1").First()
	if heading.Length() == 0 {
		heading = doc.Find("h2").First()
	}
	if heading.Length() == 0 {
		return "", content, false
	}

	title := strings.TrimSpace(heading.Text())
	heading.Remove()
	body, err := doc.Find("body").Html()
	if err != nil {
		return "", content, false
	}
	return title, strings.TrimSpace(body), title != ""
}

// splitMarkdownTitle uses a leading heading or a short first line as title.
func splitMarkdownTitle(content string) (string, string, bool) {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	first := strings.TrimSpace(lines[0])
	rest := strings.TrimSpace(strings.Join(lines[1:], "\n"))

	switch {
	case strings.HasPrefix(first, "#"):
		return strings.TrimSpace(strings.Trim(first, "# ")), rest, true
	case first != "" && utf8.RuneCountInString(first) < 100 && !strings.Contains(first, ".") && rest != "":
		return first, rest, true
	}
	return "", content, false
}

// ExtractRecommendation finds the first recommendation sentence in the body text.
// The "Recomendação:" marker wins over "Recomenda-se"; nil when neither appears.
func ExtractRecommendation(content string) *string {
	text := PlainText(content)

	var found string
	if m := recommendationRe.FindStringSubmatch(text); m != nil {
		found = m[1]
	} else if m := recommendsRe.FindStringSubmatch(text); m != nil {
		found = m[1]
	}

	found = strings.TrimSpace(found)
	if m := sentenceEndRe.FindStringSubmatch(found); m != nil {
		found = m[1]
	}
	if found == "" {
		return nil
	}
	found = truncateRunes(found, maxRecommendationLength)
	return &found
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
