package domain

// SourceKind tags a knowledge source
type SourceKind string

const (
	SourceText        SourceKind = "text"
	SourceScrapedSite SourceKind = "scraped_site"
	SourceProductList SourceKind = "product_list"
)

// Product is a single entry of a product list
type Product struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Description string `json:"description"`
}

// KnowledgeSource is one training input of a bot. Only the fields of its
// Kind are meaningful.
type KnowledgeSource struct {
	Kind     SourceKind `json:"kind"`
	Title    string     `json:"title,omitempty"`
	URL      string     `json:"url,omitempty"`
	Text     string     `json:"text,omitempty"`
	Products []Product  `json:"products,omitempty"`
}

// TextSource creates a free text source, e.g. an uploaded document extract
func TextSource(title, text string) KnowledgeSource {
	return KnowledgeSource{Kind: SourceText, Title: title, Text: text}
}

// ScrapedSiteSource creates a source from a scraped web page
func ScrapedSiteSource(url, text string) KnowledgeSource {
	return KnowledgeSource{Kind: SourceScrapedSite, URL: url, Text: text}
}

// ProductListSource creates a structured product list source
func ProductListSource(products []Product) KnowledgeSource {
	return KnowledgeSource{Kind: SourceProductList, Products: products}
}

// KnowledgeBase is the read-only set of sources a bot is grounded on
type KnowledgeBase struct {
	Sources []KnowledgeSource `json:"sources"`
}

// FreeText returns the non-empty text and scraped site contents in source
// order, separated by a blank line.
func (kb KnowledgeBase) FreeText() string {
	var out string
	for _, s := range kb.Sources {
		if s.Kind != SourceText && s.Kind != SourceScrapedSite {
			continue
		}
		if s.Text == "" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += s.Text
	}
	return out
}

// Products returns all products of all product list sources in order
func (kb KnowledgeBase) Products() []Product {
	var products []Product
	for _, s := range kb.Sources {
		if s.Kind == SourceProductList {
			products = append(products, s.Products...)
		}
	}
	return products
}
