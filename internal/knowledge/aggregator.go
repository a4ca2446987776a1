// Package knowledge merges a bot's training sources into grounding text and
// turns raw training inputs (web pages, uploads, product sheets) into sources.
package knowledge

import (
	"strings"

	"github.com/liliang-cn/leadchat/internal/domain"
)

// Build flattens a knowledge base into a single string: the free text
// followed by one three-line block per product, blocks separated by a blank
// line. The output depends only on kb.
func Build(kb domain.KnowledgeBase) string {
	var b strings.Builder
	b.WriteString(kb.FreeText())

	for _, p := range kb.Products() {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Product: ")
		b.WriteString(p.Name)
		b.WriteString("\nPrice: ")
		b.WriteString(p.Price)
		b.WriteString("\nDescription: ")
		b.WriteString(p.Description)
	}

	return b.String()
}
