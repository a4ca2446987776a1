package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/liliang-cn/leadchat/internal/analyzer"
	"github.com/liliang-cn/leadchat/internal/api"
	"github.com/liliang-cn/leadchat/internal/config"
	"github.com/liliang-cn/leadchat/internal/conversation"
	"github.com/liliang-cn/leadchat/internal/identity"
	"github.com/liliang-cn/leadchat/internal/knowledge"
	"github.com/liliang-cn/leadchat/internal/leads"
	"github.com/liliang-cn/leadchat/internal/llm"
	"github.com/liliang-cn/leadchat/internal/metrics"
	"github.com/liliang-cn/leadchat/internal/repository"
	"github.com/liliang-cn/leadchat/internal/service"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")

	return cmd
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newIdentityStore(ctx context.Context, cfg config.IdentityConfig, logger *zap.Logger) (identity.Store, func()) {
	if cfg.Store != "redis" {
		return identity.NewMemoryStore(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		// Ensure falls back to per-device ids while redis is down.
		logger.Warn("redis unavailable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	store := identity.NewRedisStore(client, cfg.TTL)
	return store, func() { store.Close() }
}

func runServe(configPath string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Initialize database
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	botRepo := repository.NewBotRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	reservRepo := repository.NewReservationRepository(db)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Completion services; analysis may use its own model
	chatLLM, err := llm.New(ctx, cfg.LLM, "")
	if err != nil {
		return fmt.Errorf("failed to create completion client: %w", err)
	}
	analysisLLM := chatLLM
	if cfg.LLM.AnalysisModel != "" && cfg.LLM.AnalysisModel != cfg.LLM.Model {
		analysisLLM, err = llm.New(ctx, cfg.LLM, cfg.LLM.AnalysisModel)
		if err != nil {
			return fmt.Errorf("failed to create analysis client: %w", err)
		}
	}

	sink := leads.NewSink(reservRepo, historyRepo, logger.Named("leads"))

	engine := conversation.NewEngine(chatLLM, sink, conversation.Options{
		HistoryWindow:     cfg.Chat.HistoryWindow,
		MaxKnowledgeChars: cfg.Chat.MaxKnowledgeChars,
		RetryAttempts:     cfg.Chat.RetryAttempts,
		RetryDelay:        cfg.Chat.RetryDelay,
		AttemptTimeout:    cfg.LLM.Timeout,
	}, m, logger.Named("conversation"))

	an := analyzer.New(analysisLLM, sink,
		analyzer.WithTimeout(cfg.Chat.AnalysisTimeout),
		analyzer.WithMetrics(m),
		analyzer.WithLogger(logger.Named("analyzer")),
	)

	sessions := service.NewSessionManager(botRepo, sessionRepo, engine, an, service.SessionManagerConfig{
		IdleTimeout:     cfg.Chat.IdleTimeout,
		AnalysisTimeout: cfg.Chat.AnalysisTimeout,
	}, m, logger.Named("sessions"))

	store, closeStore := newIdentityStore(ctx, cfg.Identity, logger)
	defer closeStore()

	// Initialize services
	adminService := service.NewAdminService(cfg, botRepo, sessionRepo, historyRepo, reservRepo, sink)
	trainingService := service.NewTrainingService(botRepo,
		knowledge.NewScraper(cfg.Scrape.Timeout, cfg.Scrape.MaxChars),
		logger.Named("training"))
	widgetService := service.NewWidgetService(cfg, botRepo,
		identity.NewResolver(store, logger.Named("identity")),
		sessions)

	// Setup router
	router, err := api.SetupRouter(adminService, trainingService, widgetService, api.RouterConfig{
		APIKey:       cfg.Admin.APIKey,
		AllowOrigins: cfg.Server.AllowOrigins,
		BaseURL:      cfg.Server.BaseURL,
		Metrics:      m,
		Logger:       logger.Named("http"),
	})
	if err != nil {
		return fmt.Errorf("failed to setup router: %w", err)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout(cfg),
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting leadchat server",
			zap.String("address", cfg.Address()),
			zap.String("base_url", cfg.Server.BaseURL),
			zap.String("llm_provider", cfg.LLM.Provider),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Let running end-of-session analyses finish
	sessions.Close()

	logger.Info("Server exited")
	return nil
}

// writeTimeout covers the slowest chat turn: every completion attempt, the
// backoff between them, and a closing analysis. Zero disables the limit
// when completions are unbounded.
func writeTimeout(cfg *config.Config) time.Duration {
	if cfg.LLM.Timeout <= 0 {
		return 0
	}
	attempts := cfg.Chat.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := cfg.Chat.RetryDelay * time.Duration(attempts*(attempts-1)/2)
	return time.Duration(attempts)*cfg.LLM.Timeout + backoff + cfg.Chat.AnalysisTimeout + 10*time.Second
}
