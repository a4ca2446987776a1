package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/leadchat/internal/analyzer"
	"github.com/liliang-cn/leadchat/internal/conversation"
	"github.com/liliang-cn/leadchat/internal/domain"
	"github.com/liliang-cn/leadchat/internal/gate"
	"github.com/liliang-cn/leadchat/internal/leads"
	"github.com/liliang-cn/leadchat/internal/llm"
	"github.com/liliang-cn/leadchat/internal/metrics"
	"github.com/liliang-cn/leadchat/internal/repository"
)

type fixture struct {
	mgr          *SessionManager
	completer    *llm.MockCompleter
	bots         *repository.BotRepository
	sessions     *repository.SessionRepository
	history      *repository.HistoryRepository
	reservations *repository.ReservationRepository
	sink         *leads.Sink
}

func newFixture(t *testing.T, idle time.Duration) *fixture {
	t.Helper()
	return newFixtureWithStore(t, idle, nil)
}

// newFixtureWithStore lets wrap stand in front of the session repository
func newFixtureWithStore(t *testing.T, idle time.Duration, wrap func(*repository.SessionRepository) SessionStore) *fixture {
	t.Helper()

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "leadchat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		completer:    llm.NewMockCompleter(),
		bots:         repository.NewBotRepository(db),
		sessions:     repository.NewSessionRepository(db),
		history:      repository.NewHistoryRepository(db),
		reservations: repository.NewReservationRepository(db),
	}
	f.sink = leads.NewSink(f.reservations, f.history, nil)

	m := metrics.New()
	opts := conversation.DefaultOptions()
	opts.RetryAttempts = 2
	opts.RetryDelay = time.Millisecond
	engine := conversation.NewEngine(f.completer, f.sink, opts, m, nil)
	an := analyzer.New(f.completer, f.sink, analyzer.WithMetrics(m))

	var store SessionStore = f.sessions
	if wrap != nil {
		store = wrap(f.sessions)
	}
	f.mgr = NewSessionManager(f.bots, store, engine, an, SessionManagerConfig{
		IdleTimeout:     idle,
		AnalysisTimeout: time.Second,
	}, m, nil)
	t.Cleanup(f.mgr.Close)
	return f
}

// failingSessions rejects saves while failing is set
type failingSessions struct {
	*repository.SessionRepository

	mu      sync.Mutex
	failing bool
	saves   int
}

func (s *failingSessions) Save(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	s.saves++
	failing := s.failing
	s.mu.Unlock()
	if failing {
		return errors.New("disk full")
	}
	return s.SessionRepository.Save(ctx, session)
}

func (s *failingSessions) setFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

func (s *failingSessions) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func newFailingFixture(t *testing.T, idle time.Duration) (*fixture, *failingSessions) {
	t.Helper()
	var store *failingSessions
	f := newFixtureWithStore(t, idle, func(repo *repository.SessionRepository) SessionStore {
		store = &failingSessions{SessionRepository: repo, failing: true}
		return store
	})
	return f, store
}

func (f *fixture) createBot(t *testing.T, skipForm bool) *domain.Bot {
	t.Helper()
	cfg := domain.DefaultBotConfig()
	cfg.SkipLeadForm = skipForm
	bot := &domain.Bot{OwnerID: "owner1", Name: "Acme", Config: cfg}
	require.NoError(t, f.bots.Create(context.Background(), bot))
	return bot
}

func TestSessionManagerOpenSeedsWelcome(t *testing.T) {
	f := newFixture(t, time.Hour)
	bot := f.createBot(t, false)

	s, err := f.mgr.Open(context.Background(), bot.ID, "s1")
	require.NoError(t, err)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, domain.RoleAssistant, s.Messages[0].Role)
	assert.Equal(t, bot.Config.WelcomeMessage, s.Messages[0].Content)
	assert.Equal(t, domain.GateAwaitingFirstMessage, s.GateState)

	stored, err := f.sessions.Get(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, bot.ID, stored.BotID)
}

func TestSessionManagerGateFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	bot := f.createBot(t, false)

	res, err := f.mgr.Send(ctx, bot.ID, "s1", "Hi there")
	require.NoError(t, err)
	assert.Equal(t, domain.GateAwaitingFormSubmission, res.GateState)
	require.Len(t, res.Messages, 3)
	assert.Equal(t, "Hi there", res.Messages[0].Content)
	assert.Equal(t, gate.FormIntro, res.Messages[1].Content)
	assert.True(t, res.Messages[2].IsForm)
	assert.Equal(t, 0, f.completer.Calls())

	_, err = f.mgr.SubmitForm(ctx, bot.ID, "s1", gate.FormSubmission{Name: "Ann"})
	assert.ErrorIs(t, err, domain.ErrMissingLeadFields)

	res, err = f.mgr.SubmitForm(ctx, bot.ID, "s1", gate.FormSubmission{Name: "Ann", CountryCode: "+1", Phone: "5550100"})
	require.NoError(t, err)
	assert.Equal(t, domain.GateUnlocked, res.GateState)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "Thanks Ann! How can I help you today?", res.Messages[0].Content)

	_, err = f.mgr.SubmitForm(ctx, bot.ID, "s1", gate.FormSubmission{Name: "Ann", Phone: "1"})
	assert.ErrorIs(t, err, domain.ErrFormNotExpected)

	res, err = f.mgr.Send(ctx, bot.ID, "s1", "Do you do SEO?")
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, llm.DefaultMockReply, res.Messages[1].Content)
	assert.Equal(t, 1, f.completer.Calls())

	stored, err := f.sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.GateUnlocked, stored.GateState)
	assert.Equal(t, "Ann", stored.CustomerName)
	assert.Equal(t, "+15550100", stored.CustomerPhone)
	assert.Len(t, stored.Messages, 7)

	entries, err := f.history.List(ctx, bot.OwnerID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSessionManagerRejectsEmptyMessage(t *testing.T) {
	f := newFixture(t, time.Hour)
	bot := f.createBot(t, false)

	_, err := f.mgr.Send(context.Background(), bot.ID, "s1", "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
}

func TestSessionManagerClosingPhraseSavesLead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	bot := f.createBot(t, true)

	f.completer.
		Reply("We offer SEO audits.").
		Reply("You're welcome!").
		Reply(`{"summary":"Wants an SEO audit","interested_service":"SEO","interest_level":"high"}`)

	_, err := f.mgr.Send(ctx, bot.ID, "s1", "I need SEO for my shop")
	require.NoError(t, err)

	record, err := f.reservations.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, record)

	res, err := f.mgr.Send(ctx, bot.ID, "s1", "ok thanks, bye")
	require.NoError(t, err)
	assert.Equal(t, "You're welcome!", res.Messages[len(res.Messages)-1].Content)

	record, err = f.reservations.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, domain.StatusPending, record.Status)
	assert.Equal(t, "SEO", record.Service)
	assert.Equal(t, domain.LevelHigh, record.Analysis.InterestLevel)
	assert.Equal(t, bot.OwnerID, record.OwnerID)
	assert.Equal(t, "ok thanks, bye", record.LastMessage)
}

func TestSessionManagerCompletionFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	bot := f.createBot(t, true)

	f.completer.Fail(nil).Fail(nil)

	_, err := f.mgr.Send(ctx, bot.ID, "s1", "Hello?")
	require.ErrorIs(t, err, domain.ErrCompletionFailed)

	s, err := f.mgr.Open(ctx, bot.ID, "s1")
	require.NoError(t, err)
	last := s.Messages[len(s.Messages)-1]
	assert.Equal(t, domain.RoleUser, last.Role)
	assert.Equal(t, "Hello?", last.Content)

	stored, err := f.sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Hello?", stored.Messages[len(stored.Messages)-1].Content)
}

func TestSessionManagerIdleAnalysis(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30*time.Millisecond)
	bot := f.createBot(t, true)

	_, err := f.mgr.Send(ctx, bot.ID, "s1", "Can you build me a website?")
	require.NoError(t, err)
	assert.Equal(t, 1, f.mgr.Active())

	require.Eventually(t, func() bool {
		return f.mgr.Active() == 0
	}, 2*time.Second, 10*time.Millisecond)

	record, err := f.reservations.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.Analysis.Fallback)
	assert.Equal(t, "webdev", record.Service)
	assert.Equal(t, 2, f.completer.Calls())
}

func TestSessionManagerIdleSkipsAnalyzedSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30*time.Millisecond)
	bot := f.createBot(t, true)

	_, err := f.mgr.Send(ctx, bot.ID, "s1", "thanks, bye")
	require.NoError(t, err)
	// One reply plus the closing phrase analysis.
	assert.Equal(t, 2, f.completer.Calls())

	require.Eventually(t, func() bool {
		return f.mgr.Active() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, f.completer.Calls())
}

func TestSessionManagerGatedSessionNotAnalyzed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30*time.Millisecond)
	bot := f.createBot(t, false)

	_, err := f.mgr.Send(ctx, bot.ID, "s1", "Hi")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.mgr.Active() == 0
	}, 2*time.Second, 10*time.Millisecond)

	record, err := f.reservations.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.Equal(t, 0, f.completer.Calls())
}

func TestSessionManagerRejectsForeignSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	bot := f.createBot(t, false)
	other := f.createBot(t, false)

	_, err := f.mgr.Open(ctx, bot.ID, "s1")
	require.NoError(t, err)

	_, err = f.mgr.Open(ctx, other.ID, "s1")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.mgr.Open(ctx, "missing", "s2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.mgr.Open(ctx, bot.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestSessionManagerKeepsUnsavedSession(t *testing.T) {
	ctx := context.Background()
	f, store := newFailingFixture(t, 30*time.Millisecond)
	bot := f.createBot(t, false)

	res, err := f.mgr.Send(ctx, bot.ID, "s1", "Hi")
	require.NoError(t, err)
	assert.Equal(t, NoticeSaveFailure, res.Notice)

	res, err = f.mgr.SubmitForm(ctx, bot.ID, "s1", gate.FormSubmission{Name: "Ann", CountryCode: "+1", Phone: "5550100"})
	require.NoError(t, err)
	assert.Equal(t, domain.GateUnlocked, res.GateState)
	assert.Equal(t, NoticeSaveFailure, res.Notice)

	// The idle run retries the save and keeps the session when it fails.
	saves := store.saveCount()
	require.Eventually(t, func() bool {
		return store.saveCount() > saves
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, f.mgr.Active())

	res, err = f.mgr.Send(ctx, bot.ID, "s1", "Do you do SEO?")
	require.NoError(t, err)
	assert.Equal(t, domain.GateUnlocked, res.GateState)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, "Do you do SEO?", res.Messages[0].Content)
	assert.False(t, res.Messages[1].IsForm)

	stored, err := f.sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSessionManagerEvictsOnceSaved(t *testing.T) {
	ctx := context.Background()
	f, store := newFailingFixture(t, 30*time.Millisecond)
	bot := f.createBot(t, false)

	_, err := f.mgr.Send(ctx, bot.ID, "s1", "Hi")
	require.NoError(t, err)
	res, err := f.mgr.SubmitForm(ctx, bot.ID, "s1", gate.FormSubmission{Name: "Ann", CountryCode: "+1", Phone: "5550100"})
	require.NoError(t, err)
	assert.Equal(t, NoticeSaveFailure, res.Notice)

	store.setFailing(false)

	require.Eventually(t, func() bool {
		return f.mgr.Active() == 0
	}, 2*time.Second, 10*time.Millisecond)

	stored, err := f.sessions.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.GateUnlocked, stored.GateState)
	assert.Equal(t, "Ann", stored.CustomerName)
}
