package knowledge

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// ExtractHTMLText returns the visible text of an HTML document with
// whitespace collapsed. maxChars <= 0 means no limit.
func ExtractHTMLText(r io.Reader, maxChars int) (string, error) {
	z := html.NewTokenizer(r)
	var parts []string
	skipDepth := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", err
			}
			return truncate(strings.Join(parts, " "), maxChars), nil
		case html.StartTagToken:
			name, _ := z.TagName()
			if skippedTags[string(name)] {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skippedTags[string(name)] && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			if text := strings.Join(strings.Fields(string(z.Text())), " "); text != "" {
				parts = append(parts, text)
			}
		}
	}
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}
