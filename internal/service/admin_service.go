package service

import (
	"context"

	"github.com/liliang-cn/leadchat/internal/config"
	"github.com/liliang-cn/leadchat/internal/domain"
	"github.com/liliang-cn/leadchat/internal/leads"
	"github.com/liliang-cn/leadchat/internal/repository"
)

// AdminService handles operator dashboard operations
type AdminService struct {
	cfg         *config.Config
	botRepo     *repository.BotRepository
	sessionRepo *repository.SessionRepository
	historyRepo *repository.HistoryRepository
	reservRepo  *repository.ReservationRepository
	sink        *leads.Sink
}

// NewAdminService creates a new admin service
func NewAdminService(
	cfg *config.Config,
	botRepo *repository.BotRepository,
	sessionRepo *repository.SessionRepository,
	historyRepo *repository.HistoryRepository,
	reservRepo *repository.ReservationRepository,
	sink *leads.Sink,
) *AdminService {
	return &AdminService{
		cfg:         cfg,
		botRepo:     botRepo,
		sessionRepo: sessionRepo,
		historyRepo: historyRepo,
		reservRepo:  reservRepo,
		sink:        sink,
	}
}

// Bot operations

func (s *AdminService) CreateBot(ctx context.Context, req *domain.CreateBotRequest) (*domain.Bot, error) {
	bot := &domain.Bot{
		OwnerID:  req.OwnerID,
		Name:     req.Name,
		Domain:   req.Domain,
		Training: req.Training,
	}

	if req.Config != nil {
		bot.Config = req.Config.WithDefaults()
	} else {
		bot.Config = domain.DefaultBotConfig()
	}

	if err := s.botRepo.Create(ctx, bot); err != nil {
		return nil, err
	}
	return bot, nil
}

func (s *AdminService) GetBot(ctx context.Context, id string) (*domain.Bot, error) {
	bot, err := s.botRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, domain.ErrNotFound
	}
	return bot, nil
}

func (s *AdminService) ListBots(ctx context.Context, ownerID string) ([]*domain.Bot, error) {
	bots, err := s.botRepo.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if bots == nil {
		bots = []*domain.Bot{}
	}
	return bots, nil
}

func (s *AdminService) UpdateBot(ctx context.Context, id string, req *domain.UpdateBotRequest) (*domain.Bot, error) {
	bot, err := s.GetBot(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		bot.Name = req.Name
	}
	if req.Domain != "" {
		bot.Domain = req.Domain
	}
	if req.Config != nil {
		bot.Config = req.Config.WithDefaults()
	}
	if req.Training != nil {
		bot.Training = req.Training
	}

	if err := s.botRepo.Update(ctx, bot); err != nil {
		return nil, err
	}
	return bot, nil
}

func (s *AdminService) DeleteBot(ctx context.Context, id string) error {
	return s.botRepo.Delete(ctx, id)
}

// EmbedCode returns the HTML snippet that installs a bot's widget
func (s *AdminService) EmbedCode(ctx context.Context, id string) (string, error) {
	bot, err := s.GetBot(ctx, id)
	if err != nil {
		return "", err
	}
	return EmbedSnippet(s.cfg.Server.BaseURL, bot.ID), nil
}

// Reservation operations

func (s *AdminService) ListReservations(ctx context.Context, ownerID string) ([]*domain.LeadRecord, error) {
	records, err := s.sink.Reservations(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*domain.LeadRecord{}
	}
	return records, nil
}

func (s *AdminService) UpdateReservationStatus(ctx context.Context, id string, req *domain.UpdateStatusRequest) error {
	return s.sink.UpdateStatus(ctx, id, req.Status)
}

func (s *AdminService) DeleteReservation(ctx context.Context, id string) error {
	return s.sink.DeleteReservation(ctx, id)
}

// Inbox operations

func (s *AdminService) Inbox(ctx context.Context, ownerID string) ([]*domain.Conversation, error) {
	return s.sink.Conversations(ctx, ownerID)
}

func (s *AdminService) DeleteCustomer(ctx context.Context, ownerID, phone string) error {
	return s.sink.DeleteCustomer(ctx, ownerID, phone)
}

// Stats

func (s *AdminService) GetStats(ctx context.Context, ownerID string) (*domain.Stats, error) {
	bots, err := s.botRepo.Count(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessionRepo.Count(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	chats, err := s.historyRepo.Count(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	reservations, err := s.reservRepo.Count(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	return &domain.Stats{
		TotalBots:         bots,
		TotalSessions:     sessions,
		TotalChats:        chats,
		TotalReservations: reservations,
	}, nil
}
