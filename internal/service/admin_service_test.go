package service

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/leadchat/internal/config"
	"github.com/liliang-cn/leadchat/internal/domain"
	"github.com/liliang-cn/leadchat/internal/identity"
	"github.com/liliang-cn/leadchat/internal/knowledge"
)

func testConfig() *config.Config {
	return &config.Config{Server: config.ServerConfig{BaseURL: "https://chat.example.com/"}}
}

func (f *fixture) admin() *AdminService {
	return NewAdminService(testConfig(), f.bots, f.sessions, f.history, f.reservations, f.sink)
}

func TestAdminServiceBots(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	svc := f.admin()

	bot, err := svc.CreateBot(ctx, &domain.CreateBotRequest{OwnerID: "owner1", Name: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultBotConfig(), bot.Config)

	custom, err := svc.CreateBot(ctx, &domain.CreateBotRequest{
		OwnerID: "owner1",
		Name:    "Custom",
		Config:  &domain.BotConfig{WelcomeMessage: "Hey!", PrimaryColor: "#000000"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hey!", custom.Config.WelcomeMessage)
	assert.Equal(t, "#000000", custom.Config.PrimaryColor)
	assert.Equal(t, domain.DefaultBotConfig().BotMessageBg, custom.Config.BotMessageBg)

	updated, err := svc.UpdateBot(ctx, bot.ID, &domain.UpdateBotRequest{Name: "Acme Studio"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Studio", updated.Name)
	assert.Equal(t, domain.DefaultBotConfig(), updated.Config)

	bots, err := svc.ListBots(ctx, "owner1")
	require.NoError(t, err)
	assert.Len(t, bots, 2)

	none, err := svc.ListBots(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	code, err := svc.EmbedCode(ctx, bot.ID)
	require.NoError(t, err)
	assert.Contains(t, code, `src="https://chat.example.com/api/embed"`)
	assert.Contains(t, code, fmt.Sprintf("data-bot-id=%q", bot.ID))

	require.NoError(t, svc.DeleteBot(ctx, custom.ID))
	_, err = svc.GetBot(ctx, custom.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.EmbedCode(ctx, custom.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdminServiceStatsAndReservations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	svc := f.admin()
	bot := f.createBot(t, true)

	_, err := f.mgr.Send(ctx, bot.ID, "s1", "I want a new website, thanks bye")
	require.NoError(t, err)

	stats, err := svc.GetStats(ctx, bot.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalBots)
	assert.Equal(t, 1, stats.TotalSessions)
	assert.Equal(t, 1, stats.TotalChats)
	assert.Equal(t, 1, stats.TotalReservations)

	records, err := svc.ListReservations(ctx, bot.OwnerID)
	require.NoError(t, err)
	require.Len(t, records, 1)

	err = svc.UpdateReservationStatus(ctx, "s1", &domain.UpdateStatusRequest{Status: "archived"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	require.NoError(t, svc.UpdateReservationStatus(ctx, "s1", &domain.UpdateStatusRequest{Status: domain.StatusConfirmed}))

	records, err = svc.ListReservations(ctx, bot.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, records[0].Status)

	require.NoError(t, svc.DeleteReservation(ctx, "s1"))
	records, err = svc.ListReservations(ctx, bot.OwnerID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTrainingServiceAddText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	bot := f.createBot(t, true)
	svc := NewTrainingService(f.bots, knowledge.NewScraper(time.Second, 0), nil)

	_, err := svc.AddText(ctx, bot.ID, &domain.TrainingTextRequest{Title: "About", Text: "We build websites."})
	require.NoError(t, err)

	got, err := svc.AddText(ctx, bot.ID, &domain.TrainingTextRequest{
		Text:     "SEO Audit, $99, Full site review\nLanding page, $499",
		Products: true,
	})
	require.NoError(t, err)
	require.Len(t, got.Training, 2)
	assert.Equal(t, domain.SourceProductList, got.Training[1].Kind)
	assert.Len(t, got.Training[1].Products, 2)

	_, err = svc.AddText(ctx, bot.ID, &domain.TrainingTextRequest{Text: "no prices here", Products: true})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.AddText(ctx, "missing", &domain.TrainingTextRequest{Text: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTrainingServiceAddURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	bot := f.createBot(t, true)
	svc := NewTrainingService(f.bots, knowledge.NewScraper(time.Second, 0), nil)

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>Acme</h1><p>Open Monday to Friday.</p><script>x()</script></body></html>")
	}))
	defer site.Close()

	got, err := svc.AddURL(ctx, bot.ID, &domain.TrainingURLRequest{URL: site.URL})
	require.NoError(t, err)
	require.Len(t, got.Training, 1)
	assert.Equal(t, domain.SourceScrapedSite, got.Training[0].Kind)
	assert.Contains(t, got.Training[0].Text, "Open Monday to Friday.")
	assert.NotContains(t, got.Training[0].Text, "x()")

	_, err = svc.AddURL(ctx, bot.ID, &domain.TrainingURLRequest{URL: "ftp://example.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func uploadHeader(t *testing.T, filename string, data []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}

func TestTrainingServiceAddUpload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	bot := f.createBot(t, true)
	svc := NewTrainingService(f.bots, knowledge.NewScraper(time.Second, 0), nil)

	got, err := svc.AddUpload(ctx, bot.ID, uploadHeader(t, "faq.txt", []byte("  We ship worldwide.  \n\nReturns within 30 days.\n")))
	require.NoError(t, err)
	require.Len(t, got.Training, 1)
	assert.Equal(t, domain.SourceText, got.Training[0].Kind)
	assert.Equal(t, "faq.txt", got.Training[0].Title)

	got, err = svc.AddUpload(ctx, bot.ID, uploadHeader(t, "prices.csv", []byte("name,price\nSEO Audit,$99\n")))
	require.NoError(t, err)
	require.Len(t, got.Training, 2)
	assert.Equal(t, domain.SourceProductList, got.Training[1].Kind)

	_, err = svc.AddUpload(ctx, bot.ID, uploadHeader(t, "logo.png", []byte{0x89, 0x50}))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestWidgetService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	bot := f.createBot(t, false)
	svc := NewWidgetService(testConfig(), f.bots, identity.NewResolver(identity.NewMemoryStore(), nil), f.mgr)

	wc, err := svc.GetWidgetConfig(ctx, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, bot.Name, wc.Name)
	assert.Equal(t, domain.DefaultBotConfig().PrimaryColor, wc.Config.PrimaryColor)

	_, err = svc.GetWidgetConfig(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	device := &domain.IdentityRequest{Platform: "MacIntel", UserAgent: "Mozilla/5.0", Screen: "1440x900"}
	id := svc.EnsureSessionID(ctx, device)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, svc.EnsureSessionID(ctx, device))
	other := &domain.IdentityRequest{Platform: "MacIntel", UserAgent: "Mozilla/5.0 (Firefox)", Screen: "1440x900"}
	assert.NotEqual(t, id, svc.EnsureSessionID(ctx, other))

	s, err := svc.OpenSession(ctx, bot.ID, &domain.OpenSessionRequest{SessionID: id})
	require.NoError(t, err)
	assert.Len(t, s.Messages, 1)

	res, err := svc.Chat(ctx, bot.ID, &domain.ChatRequest{SessionID: id, Message: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, domain.GateAwaitingFormSubmission, res.GateState)

	res, err = svc.SubmitForm(ctx, bot.ID, &domain.FormRequest{SessionID: id, Name: "Bo", CountryCode: "+44", Phone: "7700900"})
	require.NoError(t, err)
	assert.Equal(t, domain.GateUnlocked, res.GateState)
}
