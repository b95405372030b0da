package sources

import (
	"io"
	"log/slog"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Below this size markup is a snippet, not an article body worth scoring.
const readabilityMinLength = 500

// htmlToText reduces an HTML body to readable plain text.
// Readability handles full article bodies; snippets and anything it rejects are flattened by the tokenizer.
func htmlToText(data string) string {
	data = strings.TrimSpace(data)
	if data == "" || !strings.Contains(data, "<") {
		return data
	}
	if len(data) < readabilityMinLength {
		return flattenHTML(data)
	}

	article, err := readability.FromReader(strings.NewReader(data), nil)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text
		}
	} else {
		slog.Debug("Readability extraction failed, flattening markup", "error", err)
	}

	return flattenHTML(data)
}

func flattenHTML(data string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(data))
	var b strings.Builder
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if tokenizer.Err() != io.EOF {
				return data
			}
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(tokenizer.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if blockTags[string(name)] {
				b.WriteByte(' ')
			}
		}
	}
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "section": true, "article": true, "figcaption": true,
}
