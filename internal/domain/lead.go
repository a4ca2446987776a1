package domain

import "time"

// Level is a high/medium/low rating produced by conversation analysis
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// ParseLevel normalizes a free-form level, defaulting to medium
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelHigh, LevelMedium, LevelLow:
		return Level(s)
	}
	return LevelMedium
}

// Reservation statuses
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// ValidStatus reports whether s is a known reservation status
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusCancelled
}

// ConversationSummary is the structured result of analyzing a transcript
type ConversationSummary struct {
	Summary            string   `json:"summary"`
	NextSteps          string   `json:"next_steps"`
	InterestedService  string   `json:"interested_service"`
	InterestLevel      Level    `json:"interest_level"`
	KeyPoints          []string `json:"key_points"`
	PotentialRevenue   Level    `json:"potential_revenue"`
	FollowUpPriority   Level    `json:"follow_up_priority"`
	RecommendedActions []string `json:"recommended_actions"`
	// Fallback is set when the summary holds default values because the
	// analysis call or its parsing failed.
	Fallback bool `json:"fallback"`
}

// DefaultSummary returns the summary used when analysis is unavailable
func DefaultSummary() ConversationSummary {
	return ConversationSummary{
		Summary:            "No summary available",
		NextSteps:          "Follow up with customer",
		InterestedService:  "General Inquiry",
		InterestLevel:      LevelMedium,
		KeyPoints:          []string{},
		PotentialRevenue:   LevelMedium,
		FollowUpPriority:   LevelMedium,
		RecommendedActions: []string{},
		Fallback:           true,
	}
}

// LeadRecord ("reservation") is the derived commercial summary of a session
type LeadRecord struct {
	SessionID     string              `json:"session_id"`
	OwnerID       string              `json:"owner_id"`
	BotID         string              `json:"bot_id"`
	CustomerName  string              `json:"customer_name"`
	CustomerPhone string              `json:"customer_phone"`
	Service       string              `json:"service"`
	RequestedDate time.Time           `json:"requested_date"`
	Status        string              `json:"status"`
	Notes         string              `json:"notes"`
	LastMessage   string              `json:"last_message"`
	Analysis      ConversationSummary `json:"analysis"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// UpdateStatusRequest changes a reservation's status
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// HistoryEntry is one appended transcript snapshot for the operator inbox
type HistoryEntry struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	BotID         string     `json:"bot_id"`
	SessionID     string     `json:"session_id"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`
	Messages      []*Message `json:"messages"`
	LastMessage   string     `json:"last_message"`
	CreatedAt     time.Time  `json:"created_at"`
	LastActive    time.Time  `json:"last_active"`
}

// Conversation is the inbox view of all transcripts of one customer
type Conversation struct {
	CustomerKey   string     `json:"customer_key"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`
	BotID         string     `json:"bot_id"`
	EntryIDs      []string   `json:"entry_ids"`
	SessionIDs    []string   `json:"session_ids"`
	Messages      []*Message `json:"messages"`
	LastMessage   string     `json:"last_message"`
	CreatedAt     time.Time  `json:"created_at"`
	LastActive    time.Time  `json:"last_active"`
}
