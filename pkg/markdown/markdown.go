package markdown

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer turns user-written ticket text into sanitized HTML.
type Renderer interface {
	ToHTMLSanitized(src string) (string, error)
	// PlainText strips all markup, for search documents.
	PlainText(src string) string
}

type renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

func NewRenderer() Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Linkify,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)

	return &renderer{
		md:     md,
		policy: bluemonday.UGCPolicy(),
		strict: bluemonday.StrictPolicy(),
	}
}

func (r *renderer) ToHTMLSanitized(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

func (r *renderer) PlainText(src string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		buf.Reset()
		buf.WriteString(src)
	}

	content := buf.String()
	// Block ends become spaces so adjacent paragraphs do not merge.
	for _, tag := range []string{"</p>", "<br>", "<br />", "</li>", "</h1>", "</h2>", "</h3>"} {
		content = strings.ReplaceAll(content, tag, " ")
	}

	text := stdhtml.UnescapeString(r.strict.Sanitize(content))
	return strings.Join(strings.Fields(text), " ")
}
