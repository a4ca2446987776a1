package knowledge

import (
	"regexp"
	"strings"

	"github.com/liliang-cn/leadchat/internal/domain"
)

var (
	productDelimiters = []string{",", ";", "\t", "|"}
	pricePattern      = regexp.MustCompile(`\$?\d+`)
)

// ParseProducts reads one product per line from a delimited text sheet.
// A line needs a part with a number (the price) and a part without one (the
// name); everything else becomes the description. Other lines are skipped.
func ParseProducts(text string) []domain.Product {
	var products []domain.Product

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var parts []string
		for _, d := range productDelimiters {
			parts = splitTrim(line, d)
			if len(parts) >= 2 {
				break
			}
		}

		priceIdx, nameIdx := -1, -1
		for i, p := range parts {
			if p == "" {
				continue
			}
			if pricePattern.MatchString(p) {
				if priceIdx < 0 {
					priceIdx = i
				}
			} else if nameIdx < 0 {
				nameIdx = i
			}
		}
		if priceIdx < 0 || nameIdx < 0 {
			continue
		}

		var desc []string
		for i, p := range parts {
			if i != priceIdx && i != nameIdx && p != "" {
				desc = append(desc, p)
			}
		}

		products = append(products, domain.Product{
			Name:        parts[nameIdx],
			Price:       parts[priceIdx],
			Description: strings.Join(desc, " "),
		})
	}

	return products
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
