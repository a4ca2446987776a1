package service

import (
	"context"

	"github.com/liliang-cn/leadchat/internal/config"
	"github.com/liliang-cn/leadchat/internal/domain"
	"github.com/liliang-cn/leadchat/internal/gate"
	"github.com/liliang-cn/leadchat/internal/identity"
)

// WidgetService handles the public widget operations
type WidgetService struct {
	cfg      *config.Config
	bots     BotSource
	identity *identity.Resolver
	sessions *SessionManager
}

// NewWidgetService creates a new widget service
func NewWidgetService(
	cfg *config.Config,
	bots BotSource,
	resolver *identity.Resolver,
	sessions *SessionManager,
) *WidgetService {
	return &WidgetService{
		cfg:      cfg,
		bots:     bots,
		identity: resolver,
		sessions: sessions,
	}
}

// GetWidgetConfig returns the widget appearance of a bot
func (s *WidgetService) GetWidgetConfig(ctx context.Context, botID string) (*domain.WidgetConfig, error) {
	bot, err := s.bots.Get(ctx, botID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, domain.ErrNotFound
	}

	// Prompts stay private to the operator.
	cfg := bot.Config.WithDefaults()
	cfg.BehaviourPrompt = ""
	cfg.TaskPrompt = ""

	return &domain.WidgetConfig{
		BotID:   bot.ID,
		Name:    bot.Name,
		Config:  cfg,
		BaseURL: s.cfg.Server.BaseURL,
	}, nil
}

// EnsureSessionID returns the stable session id of the visitor's device
func (s *WidgetService) EnsureSessionID(ctx context.Context, req *domain.IdentityRequest) string {
	return s.identity.Ensure(ctx, identity.Fingerprint(req.Platform, req.UserAgent, req.Screen))
}

// OpenSession loads or starts a session
func (s *WidgetService) OpenSession(ctx context.Context, botID string, req *domain.OpenSessionRequest) (*domain.Session, error) {
	return s.sessions.Open(ctx, botID, req.SessionID)
}

// Chat handles a visitor message
func (s *WidgetService) Chat(ctx context.Context, botID string, req *domain.ChatRequest) (*domain.TurnResult, error) {
	return s.sessions.Send(ctx, botID, req.SessionID, req.Message)
}

// SubmitForm handles the lead capture form
func (s *WidgetService) SubmitForm(ctx context.Context, botID string, req *domain.FormRequest) (*domain.TurnResult, error) {
	return s.sessions.SubmitForm(ctx, botID, req.SessionID, gate.FormSubmission{
		Name:        req.Name,
		CountryCode: req.CountryCode,
		Phone:       req.Phone,
	})
}
