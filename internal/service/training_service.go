package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"go.uber.org/zap"

	"github.com/liliang-cn/leadchat/internal/domain"
	"github.com/liliang-cn/leadchat/internal/knowledge"
	"github.com/liliang-cn/leadchat/internal/repository"
)

// MaxUploadSize bounds an uploaded training file
const MaxUploadSize = 5 << 20

// TrainingService adds knowledge sources to bots
type TrainingService struct {
	botRepo *repository.BotRepository
	scraper *knowledge.Scraper
	logger  *zap.Logger
}

// NewTrainingService creates a new training service
func NewTrainingService(botRepo *repository.BotRepository, scraper *knowledge.Scraper, logger *zap.Logger) *TrainingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrainingService{
		botRepo: botRepo,
		scraper: scraper,
		logger:  logger,
	}
}

// AddText adds pasted text, or a product list parsed from it
func (s *TrainingService) AddText(ctx context.Context, botID string, req *domain.TrainingTextRequest) (*domain.Bot, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is empty", domain.ErrInvalidRequest)
	}

	if req.Products {
		products := knowledge.ParseProducts(text)
		if len(products) == 0 {
			return nil, fmt.Errorf("%w: no products found", domain.ErrInvalidRequest)
		}
		return s.addSource(ctx, botID, domain.ProductListSource(products))
	}
	return s.addSource(ctx, botID, domain.TextSource(req.Title, text))
}

// AddURL scrapes a web page into the bot's knowledge
func (s *TrainingService) AddURL(ctx context.Context, botID string, req *domain.TrainingURLRequest) (*domain.Bot, error) {
	if _, err := s.getBot(ctx, botID); err != nil {
		return nil, err
	}

	source, err := s.scraper.Scrape(ctx, req.URL)
	if err != nil {
		s.logger.Warn("failed to scrape training url",
			zap.String("bot_id", botID),
			zap.String("url", req.URL),
			zap.Error(err))
		return nil, err
	}
	return s.addSource(ctx, botID, source)
}

// AddUpload extracts the text of an uploaded file into the bot's knowledge
func (s *TrainingService) AddUpload(ctx context.Context, botID string, file *multipart.FileHeader) (*domain.Bot, error) {
	if file.Size > MaxUploadSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidRequest, MaxUploadSize)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, MaxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	text, fileType, err := knowledge.ExtractUploadText(file.Filename, file.Header.Get("Content-Type"), data)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("%w: file has no text", domain.ErrInvalidRequest)
	}

	s.logger.Info("training file extracted",
		zap.String("bot_id", botID),
		zap.String("filename", file.Filename),
		zap.String("file_type", fileType),
		zap.Int("chars", len(text)))

	if fileType == knowledge.FileTypeCSV {
		if products := knowledge.ParseProducts(text); len(products) > 0 {
			return s.addSource(ctx, botID, domain.ProductListSource(products))
		}
	}
	return s.addSource(ctx, botID, domain.TextSource(file.Filename, text))
}

func (s *TrainingService) addSource(ctx context.Context, botID string, source domain.KnowledgeSource) (*domain.Bot, error) {
	bot, err := s.getBot(ctx, botID)
	if err != nil {
		return nil, err
	}

	bot.Training = append(bot.Training, source)
	if err := s.botRepo.Update(ctx, bot); err != nil {
		return nil, err
	}
	return bot, nil
}

func (s *TrainingService) getBot(ctx context.Context, botID string) (*domain.Bot, error) {
	bot, err := s.botRepo.Get(ctx, botID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, domain.ErrNotFound
	}
	return bot, nil
}
