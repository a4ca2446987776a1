package leads

import (
	"sort"
	"strings"

	"github.com/liliang-cn/leadchat/internal/domain"
)

type messageKey struct {
	unixNano int64
	role     string
	content  string
}

// CustomerKey identifies a customer across sessions
func CustomerKey(name, phone string) string {
	return strings.ToLower(strings.TrimSpace(name) + "-" + strings.TrimSpace(phone))
}

// GroupConversations merges transcript entries of the same customer.
// Messages are deduplicated by (timestamp, role, content) and ordered by
// time; conversations are ordered by most recent activity.
func GroupConversations(entries []*domain.HistoryEntry) []*domain.Conversation {
	groups := make(map[string]*domain.Conversation)
	seen := make(map[string]map[messageKey]struct{})
	var order []string

	for _, e := range entries {
		key := CustomerKey(e.CustomerName, e.CustomerPhone)
		conv, ok := groups[key]
		if !ok {
			conv = &domain.Conversation{
				CustomerKey: key,
				CreatedAt:   e.CreatedAt,
			}
			groups[key] = conv
			seen[key] = make(map[messageKey]struct{})
			order = append(order, key)
		}

		conv.EntryIDs = append(conv.EntryIDs, e.ID)
		if !containsString(conv.SessionIDs, e.SessionID) {
			conv.SessionIDs = append(conv.SessionIDs, e.SessionID)
		}
		if e.CreatedAt.Before(conv.CreatedAt) {
			conv.CreatedAt = e.CreatedAt
		}
		if !e.LastActive.Before(conv.LastActive) {
			conv.LastActive = e.LastActive
			conv.CustomerName = e.CustomerName
			conv.CustomerPhone = e.CustomerPhone
			conv.BotID = e.BotID
			conv.LastMessage = e.LastMessage
		}

		for _, m := range e.Messages {
			k := messageKey{unixNano: m.Timestamp.UnixNano(), role: m.Role, content: m.Content}
			if _, dup := seen[key][k]; dup {
				continue
			}
			seen[key][k] = struct{}{}
			conv.Messages = append(conv.Messages, m)
		}
	}

	out := make([]*domain.Conversation, 0, len(order))
	for _, key := range order {
		conv := groups[key]
		sort.SliceStable(conv.Messages, func(i, j int) bool {
			return conv.Messages[i].Timestamp.Before(conv.Messages[j].Timestamp)
		})
		out = append(out, conv)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActive.After(out[j].LastActive)
	})
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
