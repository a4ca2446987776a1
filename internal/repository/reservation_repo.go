package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/liliang-cn/leadchat/internal/domain"
)

// ReservationRepository stores lead records keyed by session ID
type ReservationRepository struct {
	db *DB
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(db *DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

const reservationColumns = `session_id, owner_id, bot_id, customer_name, customer_phone, service,
	requested_date, status, notes, last_message, analysis, created_at, updated_at`

// MergeFunc combines the stored record (nil when absent) with an incoming
// one and returns the record to store
type MergeFunc func(existing *domain.LeadRecord) *domain.LeadRecord

// Upsert reads, merges and writes the record of sessionID in one transaction
func (r *ReservationRepository) Upsert(ctx context.Context, sessionID string, merge MergeFunc) (*domain.LeadRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE session_id = ?`, sessionID))
	if err == sql.ErrNoRows {
		existing = nil
	} else if err != nil {
		return nil, err
	}

	record := merge(existing)
	record.SessionID = sessionID

	analysisJSON, err := json.Marshal(record.Analysis)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			owner_id = excluded.owner_id,
			bot_id = excluded.bot_id,
			customer_name = excluded.customer_name,
			customer_phone = excluded.customer_phone,
			service = excluded.service,
			requested_date = excluded.requested_date,
			status = excluded.status,
			notes = excluded.notes,
			last_message = excluded.last_message,
			analysis = excluded.analysis,
			updated_at = excluded.updated_at
	`, record.SessionID, record.OwnerID, record.BotID, record.CustomerName, record.CustomerPhone,
		record.Service, record.RequestedDate, record.Status, record.Notes, record.LastMessage,
		string(analysisJSON), record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return record, nil
}

// Get retrieves a reservation by session ID
func (r *ReservationRepository) Get(ctx context.Context, sessionID string) (*domain.LeadRecord, error) {
	record, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE session_id = ?`, sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return record, err
}

// List retrieves the reservations of ownerID, newest first
func (r *ReservationRepository) List(ctx context.Context, ownerID string) ([]*domain.LeadRecord, error) {
	where, args := ownerFilter(ownerID)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations`+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.LeadRecord
	for rows.Next() {
		record, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// UpdateStatus sets the operator status of a reservation
func (r *ReservationRepository) UpdateStatus(ctx context.Context, sessionID, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE session_id = ?`, status, time.Now(), sessionID)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("reservation %s: %w", sessionID, domain.ErrNotFound)
	}

	return nil
}

// Delete deletes a reservation
func (r *ReservationRepository) Delete(ctx context.Context, sessionID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE session_id = ?`, sessionID)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("reservation %s: %w", sessionID, domain.ErrNotFound)
	}

	return nil
}

// Count returns the number of reservations
func (r *ReservationRepository) Count(ctx context.Context, ownerID string) (int, error) {
	return count(ctx, r.db, "reservations", ownerID)
}

func scanReservation(row rowScanner) (*domain.LeadRecord, error) {
	rec := &domain.LeadRecord{}
	var name, phone, service, notes, lastMessage, analysisJSON sql.NullString

	if err := row.Scan(&rec.SessionID, &rec.OwnerID, &rec.BotID, &name, &phone, &service,
		&rec.RequestedDate, &rec.Status, &notes, &lastMessage, &analysisJSON,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}

	rec.CustomerName = name.String
	rec.CustomerPhone = phone.String
	rec.Service = service.String
	rec.Notes = notes.String
	rec.LastMessage = lastMessage.String
	if analysisJSON.Valid && analysisJSON.String != "" {
		if err := json.Unmarshal([]byte(analysisJSON.String), &rec.Analysis); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
	}

	return rec, nil
}
