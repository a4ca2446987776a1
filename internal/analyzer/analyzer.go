// Package analyzer turns a finished conversation into a structured summary
// and a pending lead record.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/liliang-cn/leadchat/internal/domain"
	"github.com/liliang-cn/leadchat/internal/extract"
	"github.com/liliang-cn/leadchat/internal/llm"
	"github.com/liliang-cn/leadchat/internal/metrics"
)

// Triggers
const (
	TriggerClosingPhrase = "closing_phrase"
	TriggerIdle          = "idle"
)

const analysisPrompt = `Analyze this conversation and return a JSON object with this exact structure (no markdown, no code blocks, just the JSON):
{
  "summary": "brief summary of the conversation",
  "nextSteps": "recommended next steps",
  "interestedService": "identified service or 'General Inquiry'",
  "interestLevel": "high/medium/low",
  "keyPoints": ["key point 1", "key point 2"],
  "potentialRevenue": "high/medium/low",
  "followUpPriority": "high/medium/low",
  "recommendedActions": ["action 1", "action 2"]
}

Conversation to analyze:
%s

Remember: Return only the JSON object, no markdown formatting or code blocks.`

// LeadSink stores derived lead records
type LeadSink interface {
	UpsertLeadRecord(ctx context.Context, record *domain.LeadRecord) error
}

// Analyzer summarizes conversations and records leads
type Analyzer struct {
	completer llm.Completer
	sink      LeadSink
	identity  extract.IdentityExtractor
	services  extract.ServiceDetector
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithTimeout bounds a single analysis call
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) { a.timeout = d }
}

// WithMetrics records analyzer runs
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithHeuristics replaces the fallback identity and service heuristics
func WithHeuristics(id extract.IdentityExtractor, svc extract.ServiceDetector) Option {
	return func(a *Analyzer) {
		a.identity = id
		a.services = svc
	}
}

// New creates an analyzer
func New(completer llm.Completer, sink LeadSink, opts ...Option) *Analyzer {
	h := extract.NewHeuristic()
	a := &Analyzer{
		completer: completer,
		sink:      sink,
		identity:  h,
		services:  h,
		timeout:   30 * time.Second,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze asks the completion service for a structured summary of
// messages. It never fails: any call or parse error yields
// domain.DefaultSummary.
func (a *Analyzer) Analyze(ctx context.Context, messages []*domain.Message) domain.ConversationSummary {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	text, err := a.completer.Complete(ctx, fmt.Sprintf(analysisPrompt, transcript(messages)))
	a.metrics.CompletionAttempt(err)
	if err != nil {
		a.logger.Warn("conversation analysis failed", zap.Error(err))
		return domain.DefaultSummary()
	}

	summary, ok := ParseSummary(text)
	if !ok {
		a.logger.Warn("unparseable conversation analysis", zap.String("response", text))
		return domain.DefaultSummary()
	}
	return summary
}

// Finalize analyzes session and upserts its lead record. It returns
// (nil, nil) when the session is not eligible: the gate must be unlocked
// and the visitor must have sent at least one message.
func (a *Analyzer) Finalize(ctx context.Context, session *domain.Session, bot *domain.Bot, trigger string) (*domain.LeadRecord, error) {
	if session.GateState != domain.GateUnlocked || session.UserMessageCount() == 0 {
		a.metrics.Analysis(trigger, metrics.AnalysisSkipped)
		return nil, nil
	}

	summary := a.Analyze(ctx, session.Messages)
	record := a.buildRecord(session, bot, summary)

	if err := a.sink.UpsertLeadRecord(ctx, record); err != nil {
		a.metrics.Analysis(trigger, metrics.AnalysisError)
		a.logger.Error("failed to save lead record",
			zap.String("session_id", session.ID),
			zap.String("trigger", trigger),
			zap.Error(err))
		return nil, fmt.Errorf("failed to save lead record: %w", err)
	}

	result := metrics.AnalysisOK
	if summary.Fallback {
		result = metrics.AnalysisFallback
	}
	a.metrics.Analysis(trigger, result)
	a.logger.Info("lead record saved",
		zap.String("session_id", session.ID),
		zap.String("trigger", trigger),
		zap.String("service", record.Service),
		zap.String("interest_level", string(summary.InterestLevel)))

	return record, nil
}

func (a *Analyzer) buildRecord(session *domain.Session, bot *domain.Bot, summary domain.ConversationSummary) *domain.LeadRecord {
	now := a.now()

	name, phone := session.CustomerName, session.CustomerPhone
	if (name == "" || phone == "") && a.identity != nil {
		guess := a.identity.ExtractIdentity(session.Messages)
		if name == "" {
			name = guess.Name
		}
		if phone == "" {
			phone = guess.Phone
		}
	}

	service := summary.InterestedService
	if summary.Fallback && a.services != nil {
		if s, ok := a.services.DetectService(session.Messages); ok {
			service = s
		}
	}
	if service == "" {
		service = "General Inquiry"
	}

	var lastMessage string
	for i := len(session.Messages) - 1; i >= 0; i-- {
		if m := session.Messages[i]; m.Role == domain.RoleUser {
			lastMessage = m.Content
			break
		}
	}

	return &domain.LeadRecord{
		SessionID:     session.ID,
		OwnerID:       bot.OwnerID,
		BotID:         bot.ID,
		CustomerName:  name,
		CustomerPhone: phone,
		Service:       service,
		RequestedDate: now,
		Status:        domain.StatusPending,
		Notes:         Notes(summary),
		LastMessage:   lastMessage,
		Analysis:      summary,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Notes renders the operator facing bullet summary of a lead
func Notes(s domain.ConversationSummary) string {
	var sb strings.Builder
	sb.WriteString("Key Points:\n")
	sb.WriteString(strings.Join(s.KeyPoints, "\n"))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Potential Revenue: %s\n", s.PotentialRevenue)
	fmt.Fprintf(&sb, "Follow-up Priority: %s\n\n", s.FollowUpPriority)
	sb.WriteString("Recommended Actions:\n")
	sb.WriteString(strings.Join(s.RecommendedActions, "\n"))
	return strings.TrimSpace(sb.String())
}

// ParseSummary decodes a completion into a summary. Code fences and text
// around the JSON object are ignored. Missing fields take default values.
func ParseSummary(text string) (domain.ConversationSummary, bool) {
	raw := stripFences(text)
	if !gjson.Valid(raw) {
		return domain.ConversationSummary{}, false
	}
	res := gjson.Parse(raw)
	if !res.IsObject() {
		return domain.ConversationSummary{}, false
	}

	d := domain.DefaultSummary()
	return domain.ConversationSummary{
		Summary:            stringField(res, d.Summary, "summary"),
		NextSteps:          stringField(res, d.NextSteps, "nextSteps", "next_steps"),
		InterestedService:  stringField(res, d.InterestedService, "interestedService", "interested_service"),
		InterestLevel:      domain.ParseLevel(strings.ToLower(stringField(res, "", "interestLevel", "interest_level"))),
		KeyPoints:          listField(res, "keyPoints", "key_points"),
		PotentialRevenue:   domain.ParseLevel(strings.ToLower(stringField(res, "", "potentialRevenue", "potential_revenue"))),
		FollowUpPriority:   domain.ParseLevel(strings.ToLower(stringField(res, "", "followUpPriority", "follow_up_priority"))),
		RecommendedActions: listField(res, "recommendedActions", "recommended_actions"),
	}, true
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

func stringField(res gjson.Result, def string, keys ...string) string {
	for _, k := range keys {
		if v := res.Get(k); v.Exists() && v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
			return strings.TrimSpace(v.String())
		}
	}
	return def
}

func listField(res gjson.Result, keys ...string) []string {
	out := []string{}
	for _, k := range keys {
		v := res.Get(k)
		if !v.IsArray() {
			continue
		}
		for _, item := range v.Array() {
			if s := strings.TrimSpace(item.String()); s != "" {
				out = append(out, s)
			}
		}
		break
	}
	return out
}

func transcript(messages []*domain.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.IsForm {
			continue
		}
		lines = append(lines, m.Role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
