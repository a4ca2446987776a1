package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/leadchat/internal/domain"
	"github.com/liliang-cn/leadchat/internal/llm"
)

type recordingSink struct {
	records []*domain.LeadRecord
	err     error
}

func (s *recordingSink) UpsertLeadRecord(ctx context.Context, r *domain.LeadRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, r)
	return nil
}

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

const goodJSON = `{
  "summary": "Customer asked about SEO packages",
  "nextSteps": "Send pricing",
  "interestedService": "SEO",
  "interestLevel": "HIGH",
  "keyPoints": ["Wants top ranking", "Budget 500"],
  "potentialRevenue": "high",
  "followUpPriority": "low",
  "recommendedActions": ["Call tomorrow"]
}`

func testBot() *domain.Bot {
	return &domain.Bot{ID: "bot1", OwnerID: "owner1", Name: "Acme"}
}

func unlockedSession() *domain.Session {
	s := domain.NewSession("s1", "bot1", "Hello!", t0)
	s.GateState = domain.GateUnlocked
	s.CustomerName = "Sara"
	s.CustomerPhone = "+966501234567"
	s.Append(&domain.Message{Role: domain.RoleUser, Content: "Do you do SEO?", Timestamp: t0})
	s.Append(&domain.Message{Role: domain.RoleAssistant, Content: "Yes we do.", Timestamp: t0})
	s.Append(&domain.Message{Role: domain.RoleUser, Content: "thanks, bye", Timestamp: t0})
	return s
}

func TestParseSummary(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"plain", goodJSON, true},
		{"fenced", "```json\n" + goodJSON + "\n```", true},
		{"bare fence", "```\n" + goodJSON + "\n```", true},
		{"surrounding text", "Here you go:\n" + goodJSON + "\nHope this helps", true},
		{"not json", "The customer seems interested.", false},
		{"array", `["a","b"]`, false},
		{"truncated", `{"summary": "x"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := ParseSummary(tt.input)
			assert.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, "Customer asked about SEO packages", s.Summary)
			assert.Equal(t, "SEO", s.InterestedService)
			assert.Equal(t, domain.LevelHigh, s.InterestLevel)
			assert.Equal(t, domain.LevelLow, s.FollowUpPriority)
			assert.Equal(t, []string{"Wants top ranking", "Budget 500"}, s.KeyPoints)
			assert.False(t, s.Fallback)
		})
	}
}

func TestParseSummaryDefaultsMissingFields(t *testing.T) {
	s, ok := ParseSummary(`{"summary": "", "interestLevel": "enormous", "keyPoints": "not a list"}`)
	require.True(t, ok)
	assert.Equal(t, "No summary available", s.Summary)
	assert.Equal(t, "Follow up with customer", s.NextSteps)
	assert.Equal(t, "General Inquiry", s.InterestedService)
	assert.Equal(t, domain.LevelMedium, s.InterestLevel)
	assert.Empty(t, s.KeyPoints)
	assert.NotNil(t, s.KeyPoints)
}

func TestAnalyzeNonJSONFallsBack(t *testing.T) {
	a := New(llm.NewMockCompleter().Reply("I think they liked it"), &recordingSink{})
	s := a.Analyze(context.Background(), unlockedSession().Messages)

	assert.True(t, s.Fallback)
	assert.Equal(t, domain.LevelMedium, s.InterestLevel)
	assert.Empty(t, s.KeyPoints)
	assert.Equal(t, "No summary available", s.Summary)
}

func TestAnalyzeCallFailureFallsBack(t *testing.T) {
	a := New(llm.NewMockCompleter().Fail(errors.New("timeout")), &recordingSink{})
	s := a.Analyze(context.Background(), unlockedSession().Messages)
	assert.Equal(t, domain.DefaultSummary(), s)
}

func TestAnalyzePromptCarriesTranscript(t *testing.T) {
	mock := llm.NewMockCompleter().Reply(goodJSON)
	a := New(mock, &recordingSink{})
	a.Analyze(context.Background(), unlockedSession().Messages)

	prompt := mock.Prompts()[0]
	assert.Contains(t, prompt, "user: Do you do SEO?")
	assert.Contains(t, prompt, "assistant: Yes we do.")
}

func TestFinalizeCreatesPendingRecord(t *testing.T) {
	sink := &recordingSink{}
	a := New(llm.NewMockCompleter().Reply(goodJSON), sink)

	rec, err := a.Finalize(context.Background(), unlockedSession(), testBot(), TriggerClosingPhrase)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Len(t, sink.records, 1)

	assert.Equal(t, "s1", rec.SessionID)
	assert.Equal(t, "owner1", rec.OwnerID)
	assert.Equal(t, domain.StatusPending, rec.Status)
	assert.Equal(t, "Sara", rec.CustomerName)
	assert.Equal(t, "+966501234567", rec.CustomerPhone)
	assert.Equal(t, "SEO", rec.Service)
	assert.Equal(t, "thanks, bye", rec.LastMessage)
	assert.Equal(t, "Key Points:\nWants top ranking\nBudget 500\n\nPotential Revenue: high\nFollow-up Priority: low\n\nRecommended Actions:\nCall tomorrow", rec.Notes)
}

func TestFinalizeWithFallbackAnalysis(t *testing.T) {
	sink := &recordingSink{}
	a := New(llm.NewMockCompleter().Reply("sorry, no json"), sink)

	s := unlockedSession()
	s.CustomerName = ""
	s.CustomerPhone = ""
	s.Append(&domain.Message{Role: domain.RoleUser, Content: "I'm omar, phone: 0501234567", Timestamp: t0})

	rec, err := a.Finalize(context.Background(), s, testBot(), TriggerIdle)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.True(t, rec.Analysis.Fallback)
	assert.Equal(t, domain.LevelMedium, rec.Analysis.InterestLevel)
	assert.Empty(t, rec.Analysis.KeyPoints)
	assert.Equal(t, domain.StatusPending, rec.Status)
	assert.Equal(t, "seo", rec.Service)
	assert.Equal(t, "Omar", rec.CustomerName)
	assert.Equal(t, "0501234567", rec.CustomerPhone)
}

func TestFinalizeSkipsIneligibleSessions(t *testing.T) {
	sink := &recordingSink{}
	mock := llm.NewMockCompleter()
	a := New(mock, sink)

	fresh := domain.NewSession("s2", "bot1", "Hello!", t0)
	fresh.GateState = domain.GateUnlocked
	rec, err := a.Finalize(context.Background(), fresh, testBot(), TriggerIdle)
	require.NoError(t, err)
	assert.Nil(t, rec)

	gated := domain.NewSession("s3", "bot1", "Hello!", t0)
	gated.Append(&domain.Message{Role: domain.RoleUser, Content: "Hi", Timestamp: t0})
	gated.GateState = domain.GateAwaitingFormSubmission
	rec, err = a.Finalize(context.Background(), gated, testBot(), TriggerIdle)
	require.NoError(t, err)
	assert.Nil(t, rec)

	assert.Empty(t, sink.records)
	assert.Zero(t, mock.Calls())
}

func TestFinalizeSinkError(t *testing.T) {
	a := New(llm.NewMockCompleter().Reply(goodJSON), &recordingSink{err: errors.New("locked")})
	_, err := a.Finalize(context.Background(), unlockedSession(), testBot(), TriggerIdle)
	assert.Error(t, err)
}
