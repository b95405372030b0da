package sources

import (
	"strings"
	"testing"
)

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text passes through", "Already plain", "Already plain"},
		{"empty", "", ""},
		{"snippet is flattened", "<p>Hello <em>there</em>,\n world</p>", "Hello there, world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlToText(tt.input); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestHTMLToText_ArticleBody(t *testing.T) {
	paragraph := "<p>" + strings.Repeat("The committee met again on Tuesday to debate the budget. ", 12) + "</p>"
	body := "<html><body><nav>Menu</nav><article>" + paragraph + paragraph + "</article></body></html>"

	text := htmlToText(body)

	if strings.Contains(text, "<p>") {
		t.Errorf("Expected markup removed, got '%s'", text[:80])
	}
	if !strings.Contains(text, "The committee met again") {
		t.Error("Expected article text preserved")
	}
}

func TestFlattenHTML_BlockBoundaries(t *testing.T) {
	got := flattenHTML("<h2>Title</h2><p>First.</p><p>Second.</p>")
	if got != "Title First. Second." {
		t.Errorf("Expected block boundaries to become spaces, got '%s'", got)
	}
}
