// Package conversation answers unlocked visitor messages with a grounded
// completion and records the transcript for the operator inbox.
package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liliang-cn/leadchat/internal/domain"
	"github.com/liliang-cn/leadchat/internal/llm"
	"github.com/liliang-cn/leadchat/internal/metrics"
)

// Visitor facing notices
const (
	NoticeRetry          = "Failed to get response. Please try again."
	NoticeHistoryFailure = "Your conversation could not be saved."
)

// TriggerClosingPhrase labels analyses started by a farewell message
const TriggerClosingPhrase = "closing_phrase"

// TranscriptSink stores transcript snapshots for the inbox
type TranscriptSink interface {
	AppendTranscript(ctx context.Context, entry *domain.HistoryEntry) error
}

// EndOfSession is run synchronously after a reply to a closing phrase
type EndOfSession interface {
	EndSession(ctx context.Context, session *domain.Session, bot *domain.Bot, trigger string)
}

// EndOfSessionFunc adapts a function to EndOfSession
type EndOfSessionFunc func(ctx context.Context, session *domain.Session, bot *domain.Bot, trigger string)

// EndSession implements EndOfSession
func (f EndOfSessionFunc) EndSession(ctx context.Context, session *domain.Session, bot *domain.Bot, trigger string) {
	f(ctx, session, bot, trigger)
}

// Options tune prompt building and the retry policy
type Options struct {
	HistoryWindow     int
	MaxKnowledgeChars int
	RetryAttempts     int
	RetryDelay        time.Duration

	// AttemptTimeout bounds each completion attempt when positive.
	AttemptTimeout time.Duration
}

// DefaultOptions returns the recommended engine settings
func DefaultOptions() Options {
	return Options{
		HistoryWindow: 3,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}
}

// Reply is the outcome of a successful turn
type Reply struct {
	Message *domain.Message
	Closing bool
	Notice  string
}

// Engine produces assistant replies for unlocked sessions
type Engine struct {
	completer llm.Completer
	sink      TranscriptSink
	opts      Options
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates a conversation engine. sink and m may be nil.
func NewEngine(completer llm.Completer, sink TranscriptSink, opts Options, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	return &Engine{
		completer: completer,
		sink:      sink,
		opts:      opts,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Respond answers input, which must already be the last message of session.
// On failure the session is left untouched and ErrCompletionFailed is
// returned. When input is a closing phrase, hook runs after the reply is
// appended.
func (e *Engine) Respond(ctx context.Context, session *domain.Session, bot *domain.Bot, knowledge, input string, hook EndOfSession) (*Reply, error) {
	history := session.Messages
	if last := session.LastMessage(); last != nil && last.Role == domain.RoleUser && last.Content == input {
		history = history[:len(history)-1]
	}

	prompt := BuildPrompt(PromptInput{
		BotName:       bot.Name,
		CustomerName:  session.CustomerName,
		CustomerPhone: session.CustomerPhone,
		Behaviour:     bot.Config.BehaviourPrompt,
		Task:          bot.Config.TaskPrompt,
		Knowledge:     truncateRunes(knowledge, e.opts.MaxKnowledgeChars),
		Recent:        recentWindow(history, e.opts.HistoryWindow),
		Input:         input,
	})

	text, err := llm.Retry(ctx, e.opts.RetryAttempts, e.opts.RetryDelay, func(ctx context.Context) (string, error) {
		if e.opts.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.opts.AttemptTimeout)
			defer cancel()
		}
		out, err := e.completer.Complete(ctx, prompt)
		e.metrics.CompletionAttempt(err)
		if err != nil {
			e.logger.Warn("completion attempt failed",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
		return out, err
	})
	if err != nil {
		e.logger.Error("completion failed",
			zap.String("session_id", session.ID),
			zap.String("bot_id", bot.ID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrCompletionFailed, err)
	}

	msg := &domain.Message{Role: domain.RoleAssistant, Content: text, Timestamp: e.now()}
	session.Append(msg)

	reply := &Reply{Message: msg, Closing: IsClosingPhrase(input)}

	if e.sink != nil {
		entry := &domain.HistoryEntry{
			ID:            uuid.New().String(),
			OwnerID:       bot.OwnerID,
			BotID:         bot.ID,
			SessionID:     session.ID,
			CustomerName:  session.CustomerName,
			CustomerPhone: session.CustomerPhone,
			Messages:      session.Snapshot().Messages,
			LastMessage:   input,
			CreatedAt:     e.now(),
			LastActive:    session.LastActive,
		}
		if err := e.sink.AppendTranscript(ctx, entry); err != nil {
			e.logger.Error("failed to append chat history",
				zap.String("session_id", session.ID),
				zap.Error(err))
			reply.Notice = NoticeHistoryFailure
		}
	}

	if reply.Closing && hook != nil {
		hook.EndSession(ctx, session, bot, TriggerClosingPhrase)
	}

	return reply, nil
}
