package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/liliang-cn/leadchat/internal/domain"
)

// HistoryRepository stores append-only transcript snapshots for the inbox
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new chat history repository
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append inserts a new history entry
func (r *HistoryRepository) Append(ctx context.Context, entry *domain.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	messages := entry.Messages
	if messages == nil {
		messages = []*domain.Message{}
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode history messages: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO chat_history (id, owner_id, bot_id, session_id, customer_name, customer_phone, messages, last_message, created_at, last_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.OwnerID, entry.BotID, entry.SessionID, entry.CustomerName,
		entry.CustomerPhone, string(messagesJSON), entry.LastMessage, entry.CreatedAt, entry.LastActive)

	return err
}

// List retrieves the entries of ownerID, oldest first
func (r *HistoryRepository) List(ctx context.Context, ownerID string) ([]*domain.HistoryEntry, error) {
	where, args := ownerFilter(ownerID)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, bot_id, session_id, customer_name, customer_phone, messages, last_message, created_at, last_active
		FROM chat_history`+where+` ORDER BY created_at ASC, rowid ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		e := &domain.HistoryEntry{}
		var name, phone, lastMessage sql.NullString
		var messagesJSON string

		if err := rows.Scan(&e.ID, &e.OwnerID, &e.BotID, &e.SessionID, &name, &phone,
			&messagesJSON, &lastMessage, &e.CreatedAt, &e.LastActive); err != nil {
			return nil, err
		}
		e.CustomerName = name.String
		e.CustomerPhone = phone.String
		e.LastMessage = lastMessage.String
		if err := json.Unmarshal([]byte(messagesJSON), &e.Messages); err != nil {
			return nil, fmt.Errorf("decode history messages: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// DeleteByPhone removes every entry of one customer phone. It returns the
// number of deleted entries.
func (r *HistoryRepository) DeleteByPhone(ctx context.Context, ownerID, phone string) (int64, error) {
	query := `DELETE FROM chat_history WHERE customer_phone = ?`
	args := []any{phone}
	if ownerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, ownerID)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Count returns the number of history entries
func (r *HistoryRepository) Count(ctx context.Context, ownerID string) (int, error) {
	return count(ctx, r.db, "chat_history", ownerID)
}
