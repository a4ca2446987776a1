package conversation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/liliang-cn/leadchat/internal/domain"
)

// CoreRules is appended to every grounding prompt
const CoreRules = `Core Rules:
1. Only use information from the knowledge base
2. Never make up information
3. For pricing/services:
   - Quote exact details from knowledge base
   - If unavailable, offer to connect with the team
4. Keep responses human-like and warm
5. Stay focused on helping the customer
6. Never mention being a bot or AI`

var closingPhrase = regexp.MustCompile(`(?i)\b(?:bye|goodbye|thank|thanks|ok|okay|that's all|done)\b`)

// IsClosingPhrase reports whether input contains a farewell token
func IsClosingPhrase(input string) bool {
	return closingPhrase.MatchString(input)
}

// PromptInput is everything a grounding prompt is built from
type PromptInput struct {
	BotName       string
	CustomerName  string
	CustomerPhone string
	Behaviour     string
	Task          string
	Knowledge     string
	Recent        []*domain.Message
	Input         string
}

// BuildPrompt renders the grounding prompt for one turn. The output depends
// only on in.
func BuildPrompt(in PromptInput) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are %s, a friendly customer service representative.\n\n", in.BotName)

	sb.WriteString("Current Context:\n")
	fmt.Fprintf(&sb, "Speaking with: %s\n", in.CustomerName)
	fmt.Fprintf(&sb, "Phone: %s\n\n", in.CustomerPhone)

	sb.WriteString("Available Information:\n")
	sb.WriteString(in.Knowledge)
	sb.WriteString("\n\n")

	if in.Behaviour != "" {
		sb.WriteString(in.Behaviour)
		sb.WriteString("\n")
	}
	if in.Task != "" {
		sb.WriteString(in.Task)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString("Recent Conversation:\n")
	for _, m := range in.Recent {
		speaker := "Assistant"
		if m.Role == domain.RoleUser {
			speaker = "User"
		}
		fmt.Fprintf(&sb, "%s: %s\n", speaker, m.Content)
	}
	sb.WriteString("\n")

	sb.WriteString(CoreRules)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "User's message: %s\n", in.Input)
	sb.WriteString("Respond naturally without repeating previous responses.")

	return sb.String()
}

// recentWindow returns the last n text messages of history, oldest first.
// Form placeholders carry no text and are skipped.
func recentWindow(history []*domain.Message, n int) []*domain.Message {
	if n <= 0 {
		return nil
	}
	out := make([]*domain.Message, 0, n)
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		if history[i].IsForm {
			continue
		}
		out = append(out, history[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// truncateRunes cuts s to at most max runes; max <= 0 disables the cap
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
