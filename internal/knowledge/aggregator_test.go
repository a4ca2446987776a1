package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/liliang-cn/leadchat/internal/domain"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		kb   domain.KnowledgeBase
		want string
	}{
		{
			name: "empty",
			kb:   domain.KnowledgeBase{},
			want: "",
		},
		{
			name: "free text only",
			kb: domain.KnowledgeBase{Sources: []domain.KnowledgeSource{
				domain.TextSource("about", "We open at 9."),
				domain.ScrapedSiteSource("https://example.com", "Located downtown."),
			}},
			want: "We open at 9.\n\nLocated downtown.",
		},
		{
			name: "products only",
			kb: domain.KnowledgeBase{Sources: []domain.KnowledgeSource{
				domain.ProductListSource([]domain.Product{
					{Name: "SEO", Price: "$100", Description: "Monthly audit"},
					{Name: "Logo", Price: "$50"},
				}),
			}},
			want: "Product: SEO\nPrice: $100\nDescription: Monthly audit\n\n" +
				"Product: Logo\nPrice: $50\nDescription: ",
		},
		{
			name: "text and products keep source order",
			kb: domain.KnowledgeBase{Sources: []domain.KnowledgeSource{
				domain.ProductListSource([]domain.Product{{Name: "A", Price: "1", Description: "a"}}),
				domain.TextSource("", "Intro"),
				domain.TextSource("", ""),
			}},
			want: "Intro\n\nProduct: A\nPrice: 1\nDescription: a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Build(tt.kb))
		})
	}
}

func TestBuildDeterministic(t *testing.T) {
	kb := domain.KnowledgeBase{Sources: []domain.KnowledgeSource{
		domain.TextSource("", "Hours: 9-5"),
		domain.ProductListSource([]domain.Product{{Name: "Cut", Price: "20", Description: "Hair"}}),
	}}

	first := Build(kb)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Build(kb))
	}
}
