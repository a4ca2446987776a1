// Package gate implements the lead capture state machine that stands between
// a visitor's first message and the conversation.
//
// A session moves strictly forward:
//
//	awaiting_first_message -> awaiting_form_submission -> unlocked
package gate

import (
	"fmt"
	"strings"
	"time"

	"github.com/liliang-cn/leadchat/internal/domain"
)

// Fixed assistant texts of the gate
const (
	FormIntro           = "To better assist you, please fill out the form below:"
	confirmationPattern = "Thanks %s! How can I help you today?"
)

// FormSubmission is the visitor's lead form input
type FormSubmission struct {
	Name        string
	CountryCode string
	Phone       string
}

// Gate guards one session. It mutates the session it was created for and is
// not safe for concurrent use.
type Gate struct {
	session *domain.Session
}

// New attaches a gate to session. Sessions that already carry a name and
// phone, or whose bot does not collect leads, start unlocked; otherwise the
// persisted state is resumed.
func New(session *domain.Session, requireForm bool) *Gate {
	switch {
	case session.HasIdentity() || !requireForm:
		session.GateState = domain.GateUnlocked
	case session.GateState == "":
		session.GateState = domain.GateAwaitingFirstMessage
	}
	return &Gate{session: session}
}

// State returns the current gate state
func (g *Gate) State() domain.GateState {
	return g.session.GateState
}

// Unlocked reports whether messages are forwarded to the conversation
func (g *Gate) Unlocked() bool {
	return g.session.GateState == domain.GateUnlocked
}

// HandleMessage appends the visitor message and reports whether it should be
// answered by the conversation engine. The first message of a session is
// kept but answered with the lead form instead.
func (g *Gate) HandleMessage(text string, now time.Time) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, domain.ErrEmptyMessage
	}

	g.session.Append(&domain.Message{Role: domain.RoleUser, Content: text, Timestamp: now})

	switch g.session.GateState {
	case domain.GateAwaitingFirstMessage:
		g.session.Append(&domain.Message{Role: domain.RoleAssistant, Content: FormIntro, Timestamp: now})
		g.session.Append(&domain.Message{
			Role:      domain.RoleAssistant,
			Timestamp: now,
			IsForm:    true,
			FormData:  &domain.FormData{},
		})
		g.session.GateState = domain.GateAwaitingFormSubmission
		return false, nil
	case domain.GateAwaitingFormSubmission:
		return false, nil
	default:
		return true, nil
	}
}

// SubmitForm validates presence of name and phone, stores them on the
// session and unlocks the conversation. A rejected submission leaves the
// state unchanged.
func (g *Gate) SubmitForm(form FormSubmission, now time.Time) error {
	if g.session.GateState != domain.GateAwaitingFormSubmission {
		return domain.ErrFormNotExpected
	}

	name := strings.TrimSpace(form.Name)
	phone := strings.TrimSpace(form.Phone)
	if name == "" || phone == "" {
		return domain.ErrMissingLeadFields
	}
	fullPhone := strings.TrimSpace(form.CountryCode) + phone

	g.session.CustomerName = name
	g.session.CustomerPhone = fullPhone

	if m := g.pendingForm(); m != nil {
		m.FormData.Fields = domain.FormFields{Name: name, Phone: fullPhone}
		m.FormData.Submitted = true
	}

	g.session.Append(&domain.Message{
		Role:      domain.RoleAssistant,
		Content:   fmt.Sprintf(confirmationPattern, name),
		Timestamp: now,
	})
	g.session.GateState = domain.GateUnlocked
	return nil
}

// pendingForm returns the latest form placeholder that was not submitted
func (g *Gate) pendingForm() *domain.Message {
	for i := len(g.session.Messages) - 1; i >= 0; i-- {
		m := g.session.Messages[i]
		if m.IsForm && m.FormData != nil && !m.FormData.Submitted {
			return m
		}
	}
	return nil
}
