package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/liliang-cn/leadchat/internal/analyzer"
	"github.com/liliang-cn/leadchat/internal/conversation"
	"github.com/liliang-cn/leadchat/internal/domain"
	"github.com/liliang-cn/leadchat/internal/gate"
	"github.com/liliang-cn/leadchat/internal/knowledge"
	"github.com/liliang-cn/leadchat/internal/metrics"
)

// NoticeSaveFailure is shown when a session could not be persisted
const NoticeSaveFailure = "Your conversation could not be saved."

// BotSource loads bots
type BotSource interface {
	Get(ctx context.Context, id string) (*domain.Bot, error)
}

// SessionStore persists the latest state of each session
type SessionStore interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
}

// SessionManagerConfig tunes session controllers
type SessionManagerConfig struct {
	IdleTimeout     time.Duration
	AnalysisTimeout time.Duration
}

// SessionManager owns one controller per active session. A controller
// processes one visitor event at a time and runs end-of-session analysis
// when the session goes quiet.
type SessionManager struct {
	bots     BotSource
	sessions SessionStore
	engine   *conversation.Engine
	analyzer *analyzer.Analyzer
	cfg      SessionManagerConfig
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	mu          sync.Mutex
	controllers map[string]*controller
	closed      bool
	wg          conc.WaitGroup
}

type controller struct {
	botID string

	mu      sync.Mutex
	session *domain.Session
	bot     *domain.Bot
	gate    *gate.Gate
	timer   *analyzer.IdleTimer
	// analyzedAt is the message count at the last saved analysis, -1 if none
	analyzedAt int
	// touched is when the idle timer was last armed
	touched time.Time
	// dirty is set while the stored session lags the in-memory one
	dirty   bool
	evicted bool
}

// NewSessionManager creates a session manager
func NewSessionManager(
	bots BotSource,
	sessions SessionStore,
	engine *conversation.Engine,
	an *analyzer.Analyzer,
	cfg SessionManagerConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Second
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = 30 * time.Second
	}
	return &SessionManager{
		bots:        bots,
		sessions:    sessions,
		engine:      engine,
		analyzer:    an,
		cfg:         cfg,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
		controllers: make(map[string]*controller),
	}
}

// Open loads or starts the session and returns a snapshot of it
func (m *SessionManager) Open(ctx context.Context, botID, sessionID string) (*domain.Session, error) {
	c, err := m.acquire(ctx, botID, sessionID)
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	return c.session.Snapshot(), nil
}

// Send processes one visitor message
func (m *SessionManager) Send(ctx context.Context, botID, sessionID, text string) (*domain.TurnResult, error) {
	c, err := m.acquire(ctx, botID, sessionID)
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	if err := m.refreshBot(ctx, c); err != nil {
		return nil, err
	}

	before := len(c.session.Messages)
	prev := c.gate.State()

	forward, err := c.gate.HandleMessage(text, m.now())
	if err != nil {
		return nil, err
	}
	if state := c.gate.State(); state != prev {
		m.metrics.GateTransition(string(state))
	}

	var notice string
	if forward {
		hook := conversation.EndOfSessionFunc(func(ctx context.Context, _ *domain.Session, _ *domain.Bot, trigger string) {
			m.finalize(ctx, c, trigger)
		})
		kb := knowledge.Build(c.bot.KnowledgeBase())

		reply, err := m.engine.Respond(ctx, c.session, c.bot, kb, text, hook)
		if err != nil {
			m.metrics.Turn(metrics.TurnFailed)
			// The visitor message stays in the log.
			m.persist(ctx, c)
			m.touch(c)
			return nil, err
		}
		notice = reply.Notice
		m.metrics.Turn(metrics.TurnAnswered)
	} else {
		m.metrics.Turn(metrics.TurnGated)
	}

	if !m.persist(ctx, c) && notice == "" {
		notice = NoticeSaveFailure
	}
	m.touch(c)

	return m.result(c, before, notice), nil
}

// SubmitForm applies the lead form to the session
func (m *SessionManager) SubmitForm(ctx context.Context, botID, sessionID string, form gate.FormSubmission) (*domain.TurnResult, error) {
	c, err := m.acquire(ctx, botID, sessionID)
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	before := len(c.session.Messages)
	if err := c.gate.SubmitForm(form, m.now()); err != nil {
		return nil, err
	}
	m.metrics.GateTransition(string(c.gate.State()))

	var notice string
	if !m.persist(ctx, c) {
		notice = NoticeSaveFailure
	}
	m.touch(c)

	return m.result(c, before, notice), nil
}

// Active returns the number of sessions held in memory
func (m *SessionManager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.controllers)
}

// Close stops all idle timers and waits for running analyses
func (m *SessionManager) Close() {
	m.mu.Lock()
	m.closed = true
	controllers := make([]*controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		controllers = append(controllers, c)
	}
	m.mu.Unlock()

	for _, c := range controllers {
		c.timer.Stop()
	}
	m.wg.Wait()
}

// acquire returns the locked controller of sessionID
func (m *SessionManager) acquire(ctx context.Context, botID, sessionID string) (*controller, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidRequest)
	}
	for {
		c, err := m.controller(ctx, botID, sessionID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if !c.evicted {
			return c, nil
		}
		c.mu.Unlock()
	}
}

func (m *SessionManager) controller(ctx context.Context, botID, sessionID string) (*controller, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("session manager is closed")
	}
	c, ok := m.controllers[sessionID]
	m.mu.Unlock()
	if ok {
		if c.botID != botID {
			return nil, fmt.Errorf("%w: session belongs to another bot", domain.ErrInvalidRequest)
		}
		return c, nil
	}

	c, err := m.load(ctx, botID, sessionID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.controllers[sessionID]; ok {
		return existing, nil
	}
	m.controllers[sessionID] = c
	return c, nil
}

func (m *SessionManager) load(ctx context.Context, botID, sessionID string) (*controller, error) {
	bot, err := m.bots.Get(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bot: %w", err)
	}
	if bot == nil {
		return nil, domain.ErrNotFound
	}

	session, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	fresh := session == nil
	if fresh {
		session = domain.NewSession(sessionID, botID, bot.Config.WithDefaults().WelcomeMessage, m.now())
	} else if session.BotID != botID {
		return nil, fmt.Errorf("%w: session belongs to another bot", domain.ErrInvalidRequest)
	}

	c := &controller{
		botID:      botID,
		session:    session,
		bot:        bot,
		gate:       gate.New(session, !bot.Config.SkipLeadForm),
		analyzedAt: -1,
	}
	c.timer = analyzer.NewIdleTimer(m.cfg.IdleTimeout, func() { m.onIdle(c) })

	if fresh {
		if err := m.sessions.Save(ctx, session); err != nil {
			m.logger.Warn("failed to save new session",
				zap.String("session_id", sessionID),
				zap.Error(err))
			c.dirty = true
		}
	}
	return c, nil
}

func (m *SessionManager) refreshBot(ctx context.Context, c *controller) error {
	bot, err := m.bots.Get(ctx, c.botID)
	if err != nil {
		return fmt.Errorf("failed to load bot: %w", err)
	}
	if bot == nil {
		return domain.ErrNotFound
	}
	c.bot = bot
	return nil
}

// persist saves the session and reports success. Failures do not roll back
// the in-memory state; the controller stays dirty until a save succeeds.
func (m *SessionManager) persist(ctx context.Context, c *controller) bool {
	if err := m.sessions.Save(ctx, c.session); err != nil {
		m.logger.Error("failed to save session",
			zap.String("session_id", c.session.ID),
			zap.Error(err))
		c.dirty = true
		return false
	}
	c.dirty = false
	return true
}

// touch restarts the idle countdown of c
func (m *SessionManager) touch(c *controller) {
	c.touched = m.now()
	c.timer.Reset()
}

func (m *SessionManager) result(c *controller, from int, notice string) *domain.TurnResult {
	snap := c.session.Snapshot()
	return &domain.TurnResult{
		SessionID: snap.ID,
		GateState: snap.GateState,
		Messages:  snap.Messages[from:],
		Notice:    notice,
	}
}

// finalize runs the analyzer with c locked. An idle trigger is dropped when
// nothing was appended since the previous saved analysis.
func (m *SessionManager) finalize(ctx context.Context, c *controller, trigger string) {
	count := len(c.session.Messages)
	if trigger == analyzer.TriggerIdle && count == c.analyzedAt {
		m.metrics.Analysis(trigger, metrics.AnalysisSkipped)
		return
	}

	record, err := m.analyzer.Finalize(ctx, c.session, c.bot, trigger)
	if err != nil {
		m.logger.Warn("end of session analysis failed",
			zap.String("session_id", c.session.ID),
			zap.String("trigger", trigger),
			zap.Error(err))
		return
	}
	if record != nil {
		c.analyzedAt = count
	}
}

func (m *SessionManager) onIdle(c *controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.wg.Go(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// A turn that re-armed the timer while this run waited for the
		// lock wins.
		if c.evicted || m.now().Sub(c.touched) < m.cfg.IdleTimeout {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.AnalysisTimeout)
		m.finalize(ctx, c, analyzer.TriggerIdle)
		if c.dirty {
			m.persist(ctx, c)
		}
		cancel()

		// A dirty session stays in memory until a save succeeds.
		if c.dirty {
			m.logger.Warn("keeping unsaved session in memory",
				zap.String("session_id", c.session.ID))
			m.mu.Lock()
			closed := m.closed
			m.mu.Unlock()
			if !closed {
				m.touch(c)
			}
			return
		}

		m.mu.Lock()
		if m.controllers[c.session.ID] == c {
			delete(m.controllers, c.session.ID)
		}
		m.mu.Unlock()
		c.evicted = true
		c.timer.Stop()
	})
}
