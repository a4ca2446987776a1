// Package extract holds best-effort heuristics that pull a visitor's name,
// phone and service interest out of free chat text. They are only used to
// fill gaps when the lead form did not provide the data.
package extract

import (
	"regexp"
	"strings"

	"github.com/liliang-cn/leadchat/internal/domain"
)

// scanWindow is how many trailing messages the heuristics look at
const scanWindow = 5

// Identity is a name and phone guessed from chat text
type Identity struct {
	Name  string
	Phone string
}

// IdentityExtractor guesses a visitor's identity from their messages
type IdentityExtractor interface {
	ExtractIdentity(messages []*domain.Message) Identity
}

// ServiceDetector guesses which service a visitor is interested in
type ServiceDetector interface {
	DetectService(messages []*domain.Message) (string, bool)
}

var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:i am|i'm|my name is|name is|call me)\s+([a-z]+(?:\s+[a-z]+)?)`),
	}
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:phone|number|contact|tel)[:\s]+(\+?[0-9][0-9\s-]{6,}[0-9])`),
		regexp.MustCompile(`(\+?[0-9][0-9\s-]{6,}[0-9])`),
	}
	phoneNoise = strings.NewReplacer(" ", "", "-", "")
)

// Heuristic is the regular expression based extractor
type Heuristic struct {
	services []serviceKeywords
}

type serviceKeywords struct {
	service  string
	keywords []string
}

// NewHeuristic creates the default heuristic extractor
func NewHeuristic() *Heuristic {
	return &Heuristic{
		services: []serviceKeywords{
			{"seo", []string{"seo", "search engine", "ranking", "google ranking"}},
			{"webdev", []string{"website", "web development", "web design"}},
			{"marketing", []string{"marketing", "advertising", "promotion"}},
		},
	}
}

var (
	_ IdentityExtractor = (*Heuristic)(nil)
	_ ServiceDetector   = (*Heuristic)(nil)
)

// ExtractIdentity implements IdentityExtractor. Only visitor messages are
// scanned.
func (h *Heuristic) ExtractIdentity(messages []*domain.Message) Identity {
	var id Identity
	for _, m := range tail(messages) {
		if m.Role != domain.RoleUser {
			continue
		}
		if id.Name == "" {
			for _, p := range namePatterns {
				if match := p.FindStringSubmatch(m.Content); match != nil {
					id.Name = titleCase(strings.TrimSpace(match[1]))
					break
				}
			}
		}
		if id.Phone == "" {
			for _, p := range phonePatterns {
				if match := p.FindStringSubmatch(m.Content); match != nil {
					id.Phone = phoneNoise.Replace(match[1])
					break
				}
			}
		}
	}
	return id
}

// DetectService implements ServiceDetector
func (h *Heuristic) DetectService(messages []*domain.Message) (string, bool) {
	parts := make([]string, 0, scanWindow)
	for _, m := range tail(messages) {
		parts = append(parts, strings.ToLower(m.Content))
	}
	text := strings.Join(parts, " ")

	for _, s := range h.services {
		for _, kw := range s.keywords {
			if strings.Contains(text, kw) {
				return s.service, true
			}
		}
	}
	return "", false
}

func tail(messages []*domain.Message) []*domain.Message {
	if len(messages) > scanWindow {
		return messages[len(messages)-scanWindow:]
	}
	return messages
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
