package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/liliang-cn/leadchat/internal/domain"
)

// BotRepository handles chatbot persistence
type BotRepository struct {
	db *DB
}

// NewBotRepository creates a new bot repository
func NewBotRepository(db *DB) *BotRepository {
	return &BotRepository{db: db}
}

const botColumns = `id, owner_id, name, domain, config, training, created_at, updated_at`

// Create creates a new bot
func (r *BotRepository) Create(ctx context.Context, bot *domain.Bot) error {
	if bot.ID == "" {
		bot.ID = uuid.New().String()
	}
	now := time.Now()
	bot.CreatedAt = now
	bot.UpdatedAt = now

	configJSON, trainingJSON, err := encodeBot(bot)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO chatbots (`+botColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, bot.ID, bot.OwnerID, bot.Name, bot.Domain, configJSON, trainingJSON, bot.CreatedAt, bot.UpdatedAt)

	return err
}

// Get retrieves a bot by ID
func (r *BotRepository) Get(ctx context.Context, id string) (*domain.Bot, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+botColumns+` FROM chatbots WHERE id = ?`, id)
	bot, err := scanBot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return bot, err
}

// List retrieves the bots of ownerID, or all bots when ownerID is empty
func (r *BotRepository) List(ctx context.Context, ownerID string) ([]*domain.Bot, error) {
	where, args := ownerFilter(ownerID)
	rows, err := r.db.QueryContext(ctx, `SELECT `+botColumns+` FROM chatbots`+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bots []*domain.Bot
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, bot)
	}

	return bots, rows.Err()
}

// Update updates a bot
func (r *BotRepository) Update(ctx context.Context, bot *domain.Bot) error {
	bot.UpdatedAt = time.Now()
	configJSON, trainingJSON, err := encodeBot(bot)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE chatbots SET name = ?, domain = ?, config = ?, training = ?, updated_at = ?
		WHERE id = ?
	`, bot.Name, bot.Domain, configJSON, trainingJSON, bot.UpdatedAt, bot.ID)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("bot %s: %w", bot.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete deletes a bot
func (r *BotRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM chatbots WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("bot %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Count returns the number of bots of ownerID, or of all owners
func (r *BotRepository) Count(ctx context.Context, ownerID string) (int, error) {
	return count(ctx, r.db, "chatbots", ownerID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBot(row rowScanner) (*domain.Bot, error) {
	bot := &domain.Bot{}
	var domainName sql.NullString
	var configJSON, trainingJSON string

	if err := row.Scan(&bot.ID, &bot.OwnerID, &bot.Name, &domainName,
		&configJSON, &trainingJSON, &bot.CreatedAt, &bot.UpdatedAt); err != nil {
		return nil, err
	}
	bot.Domain = domainName.String

	if err := json.Unmarshal([]byte(configJSON), &bot.Config); err != nil {
		return nil, fmt.Errorf("decode bot config: %w", err)
	}
	if err := json.Unmarshal([]byte(trainingJSON), &bot.Training); err != nil {
		return nil, fmt.Errorf("decode bot training: %w", err)
	}

	return bot, nil
}

func encodeBot(bot *domain.Bot) (string, string, error) {
	configJSON, err := json.Marshal(bot.Config)
	if err != nil {
		return "", "", fmt.Errorf("encode bot config: %w", err)
	}
	training := bot.Training
	if training == nil {
		training = []domain.KnowledgeSource{}
	}
	trainingJSON, err := json.Marshal(training)
	if err != nil {
		return "", "", fmt.Errorf("encode bot training: %w", err)
	}
	return string(configJSON), string(trainingJSON), nil
}

func count(ctx context.Context, db *DB, table, ownerID string) (int, error) {
	where, args := ownerFilter(ownerID)
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+where, args...).Scan(&n)
	return n, err
}
