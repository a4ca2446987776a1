// Package leads stores lead records and chat transcripts and builds the
// operator inbox view.
package leads

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/liliang-cn/leadchat/internal/domain"
	"github.com/liliang-cn/leadchat/internal/repository"
)

// ReservationStore persists lead records
type ReservationStore interface {
	Upsert(ctx context.Context, sessionID string, merge repository.MergeFunc) (*domain.LeadRecord, error)
	List(ctx context.Context, ownerID string) ([]*domain.LeadRecord, error)
	UpdateStatus(ctx context.Context, sessionID, status string) error
	Delete(ctx context.Context, sessionID string) error
}

// HistoryStore persists transcript snapshots
type HistoryStore interface {
	Append(ctx context.Context, entry *domain.HistoryEntry) error
	List(ctx context.Context, ownerID string) ([]*domain.HistoryEntry, error)
	DeleteByPhone(ctx context.Context, ownerID, phone string) (int64, error)
}

// Sink is the single writer of lead records and transcripts
type Sink struct {
	reservations ReservationStore
	history      HistoryStore
	logger       *zap.Logger
	now          func() time.Time
}

// NewSink creates a lead record sink
func NewSink(reservations ReservationStore, history HistoryStore, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		reservations: reservations,
		history:      history,
		logger:       logger,
		now:          time.Now,
	}
}

// UpsertLeadRecord merges record into the stored record of its session.
// Repeating an upsert with the same content leaves one unchanged record.
func (s *Sink) UpsertLeadRecord(ctx context.Context, record *domain.LeadRecord) error {
	if record.SessionID == "" {
		return fmt.Errorf("lead record without session id: %w", domain.ErrInvalidRequest)
	}

	_, err := s.reservations.Upsert(ctx, record.SessionID, func(existing *domain.LeadRecord) *domain.LeadRecord {
		return Merge(existing, record, s.now())
	})
	if err != nil {
		return fmt.Errorf("upsert lead record %s: %w", record.SessionID, err)
	}
	return nil
}

// Merge combines a stored record with an incoming one. Creation time and
// operator status survive, non-empty incoming fields win, and a fallback
// analysis never replaces a real one.
func Merge(existing, incoming *domain.LeadRecord, now time.Time) *domain.LeadRecord {
	if existing == nil {
		out := *incoming
		if out.Status == "" {
			out.Status = domain.StatusPending
		}
		if out.CreatedAt.IsZero() {
			out.CreatedAt = now
		}
		if out.UpdatedAt.IsZero() {
			out.UpdatedAt = out.CreatedAt
		}
		return &out
	}

	out := *existing
	setIfNotEmpty(&out.OwnerID, incoming.OwnerID)
	setIfNotEmpty(&out.BotID, incoming.BotID)
	setIfNotEmpty(&out.CustomerName, incoming.CustomerName)
	setIfNotEmpty(&out.CustomerPhone, incoming.CustomerPhone)
	setIfNotEmpty(&out.LastMessage, incoming.LastMessage)
	if !incoming.RequestedDate.IsZero() {
		out.RequestedDate = incoming.RequestedDate
	}

	if !(incoming.Analysis.Fallback && realAnalysis(existing.Analysis)) {
		out.Analysis = incoming.Analysis
		setIfNotEmpty(&out.Notes, incoming.Notes)
		setIfNotEmpty(&out.Service, incoming.Service)
	}

	if incoming.UpdatedAt.After(out.UpdatedAt) {
		out.UpdatedAt = incoming.UpdatedAt
	}
	return &out
}

func realAnalysis(a domain.ConversationSummary) bool {
	return !a.Fallback && a.Summary != ""
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// AppendTranscript stores a transcript snapshot
func (s *Sink) AppendTranscript(ctx context.Context, entry *domain.HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return fmt.Errorf("append transcript %s: %w", entry.SessionID, err)
	}
	return nil
}

// Conversations returns the inbox of ownerID grouped by customer
func (s *Sink) Conversations(ctx context.Context, ownerID string) ([]*domain.Conversation, error) {
	entries, err := s.history.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return GroupConversations(entries), nil
}

// DeleteCustomer removes every transcript of a customer phone
func (s *Sink) DeleteCustomer(ctx context.Context, ownerID, phone string) error {
	if phone == "" {
		return domain.ErrInvalidRequest
	}
	n, err := s.history.DeleteByPhone(ctx, ownerID, phone)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	s.logger.Info("customer history deleted",
		zap.String("owner_id", ownerID),
		zap.Int64("entries", n))
	return nil
}

// Reservations lists the lead records of ownerID
func (s *Sink) Reservations(ctx context.Context, ownerID string) ([]*domain.LeadRecord, error) {
	return s.reservations.List(ctx, ownerID)
}

// UpdateStatus sets the operator status of a lead record
func (s *Sink) UpdateStatus(ctx context.Context, sessionID, status string) error {
	if !domain.ValidStatus(status) {
		return fmt.Errorf("unknown status %q: %w", status, domain.ErrInvalidRequest)
	}
	return s.reservations.UpdateStatus(ctx, sessionID, status)
}

// DeleteReservation removes a lead record
func (s *Sink) DeleteReservation(ctx context.Context, sessionID string) error {
	return s.reservations.Delete(ctx, sessionID)
}
