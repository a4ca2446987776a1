package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/liliang-cn/leadchat/internal/domain"
)

// Scraper fetches web pages and reduces them to plain text sources
type Scraper struct {
	client   *http.Client
	maxChars int
}

// NewScraper creates a scraper. maxChars <= 0 disables truncation.
func NewScraper(timeout time.Duration, maxChars int) *Scraper {
	return &Scraper{
		client:   &http.Client{Timeout: timeout},
		maxChars: maxChars,
	}
}

// Scrape downloads rawURL and returns its visible text as a scraped site source
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (domain.KnowledgeSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.KnowledgeSource{}, fmt.Errorf("%w: invalid url %q", domain.ErrInvalidRequest, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.KnowledgeSource{}, err
	}
	req.Header.Set("User-Agent", "leadchat-scraper/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.KnowledgeSource{}, fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return domain.KnowledgeSource{}, fmt.Errorf("failed to fetch %s: status %d", u, resp.StatusCode)
	}

	text, err := ExtractHTMLText(resp.Body, s.maxChars)
	if err != nil {
		return domain.KnowledgeSource{}, fmt.Errorf("failed to parse %s: %w", u, err)
	}

	return domain.ScrapedSiteSource(u.String(), text), nil
}
