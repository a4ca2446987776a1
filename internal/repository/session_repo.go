package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/liliang-cn/leadchat/internal/domain"
)

// SessionRepository stores the latest full transcript of each session
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save writes the session, replacing any previous version
func (r *SessionRepository) Save(ctx context.Context, session *domain.Session) error {
	messages := session.Messages
	if messages == nil {
		messages = []*domain.Message{}
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode session messages: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (session_id, bot_id, customer_name, customer_phone, gate_state, messages, started_at, last_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			bot_id = excluded.bot_id,
			customer_name = excluded.customer_name,
			customer_phone = excluded.customer_phone,
			gate_state = excluded.gate_state,
			messages = excluded.messages,
			last_active = excluded.last_active
	`, session.ID, session.BotID, session.CustomerName, session.CustomerPhone,
		string(session.GateState), string(messagesJSON), session.StartedAt, session.LastActive)

	return err
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	session := &domain.Session{}
	var name, phone sql.NullString
	var gateState, messagesJSON string

	err := r.db.QueryRowContext(ctx, `
		SELECT session_id, bot_id, customer_name, customer_phone, gate_state, messages, started_at, last_active
		FROM chat_sessions WHERE session_id = ?
	`, id).Scan(&session.ID, &session.BotID, &name, &phone, &gateState,
		&messagesJSON, &session.StartedAt, &session.LastActive)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	session.CustomerName = name.String
	session.CustomerPhone = phone.String
	session.GateState = domain.GateState(gateState)
	if err := json.Unmarshal([]byte(messagesJSON), &session.Messages); err != nil {
		return nil, fmt.Errorf("decode session messages: %w", err)
	}

	return session, nil
}

// Count returns the number of sessions on bots of ownerID, or of all owners
func (r *SessionRepository) Count(ctx context.Context, ownerID string) (int, error) {
	var n int
	if ownerID == "" {
		err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_sessions`).Scan(&n)
		return n, err
	}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chat_sessions s
		JOIN chatbots b ON b.id = s.bot_id
		WHERE b.owner_id = ?
	`, ownerID).Scan(&n)
	return n, err
}
