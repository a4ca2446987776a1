package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GateState is the lead capture state of a session
type GateState string

const (
	GateAwaitingFirstMessage   GateState = "awaiting_first_message"
	GateAwaitingFormSubmission GateState = "awaiting_form_submission"
	GateUnlocked               GateState = "unlocked"
)

// Session represents one visitor's interaction with one bot
type Session struct {
	ID            string     `json:"session_id"`
	BotID         string     `json:"bot_id"`
	CustomerName  string     `json:"customer_name,omitempty"`
	CustomerPhone string     `json:"customer_phone,omitempty"`
	GateState     GateState  `json:"gate_state"`
	Messages      []*Message `json:"messages"`
	StartedAt     time.Time  `json:"started_at"`
	LastActive    time.Time  `json:"last_active"`
}

// Message represents a chat message
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // user, assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsForm    bool      `json:"is_form,omitempty"`
	FormData  *FormData `json:"form_data,omitempty"`
}

// FormData is the embedded lead capture form of a placeholder message
type FormData struct {
	Fields    FormFields `json:"fields"`
	Submitted bool       `json:"submitted"`
}

// FormFields are the values captured by the lead form
type FormFields struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// NewSession creates a session seeded with the bot's welcome message
func NewSession(id, botID, welcome string, now time.Time) *Session {
	s := &Session{
		ID:         id,
		BotID:      botID,
		GateState:  GateAwaitingFirstMessage,
		StartedAt:  now,
		LastActive: now,
	}
	s.Append(&Message{Role: RoleAssistant, Content: welcome, Timestamp: now})
	return s
}

// HasIdentity reports whether the visitor's name and phone are known
func (s *Session) HasIdentity() bool {
	return s.CustomerName != "" && s.CustomerPhone != ""
}

// Append adds a message to the log. Timestamps never go backwards within a
// session; an earlier timestamp is clamped to the last one.
func (s *Session) Append(m *Message) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if n := len(s.Messages); n > 0 && m.Timestamp.Before(s.Messages[n-1].Timestamp) {
		m.Timestamp = s.Messages[n-1].Timestamp
	}
	s.Messages = append(s.Messages, m)
	if m.Timestamp.After(s.LastActive) {
		s.LastActive = m.Timestamp
	}
}

// LastMessage returns the most recent message or nil
func (s *Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// UserMessageCount returns the number of visitor-authored messages
func (s *Session) UserMessageCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of the session safe to hand out of a controller
func (s *Session) Snapshot() *Session {
	cp := *s
	cp.Messages = make([]*Message, len(s.Messages))
	for i, m := range s.Messages {
		mc := *m
		if m.FormData != nil {
			fd := *m.FormData
			mc.FormData = &fd
		}
		cp.Messages[i] = &mc
	}
	return &cp
}

// OpenSessionRequest opens or resumes a widget session
type OpenSessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// ChatRequest is the request to send a chat message
type ChatRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

// FormRequest is the lead capture form submission
type FormRequest struct {
	SessionID   string `json:"session_id" binding:"required"`
	Name        string `json:"name"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone"`
}

// IdentityRequest carries the device traits used to fingerprint a visitor
type IdentityRequest struct {
	Platform  string `json:"platform"`
	UserAgent string `json:"user_agent"`
	Screen    string `json:"screen"`
}

// TurnResult is the outcome of one visitor event
type TurnResult struct {
	SessionID string     `json:"session_id"`
	GateState GateState  `json:"gate_state"`
	Messages  []*Message `json:"messages"`
	Notice    string     `json:"notice,omitempty"`
}

// Stats represents system statistics
type Stats struct {
	TotalBots         int `json:"total_bots"`
	TotalSessions     int `json:"total_sessions"`
	TotalChats        int `json:"total_chats"`
	TotalReservations int `json:"total_reservations"`
}
