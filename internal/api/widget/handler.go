package widget

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liliang-cn/leadchat/internal/api/respond"
	"github.com/liliang-cn/leadchat/internal/domain"
	"github.com/liliang-cn/leadchat/internal/service"
)

// Handler handles widget API requests
type Handler struct {
	widgetService *service.WidgetService
}

// NewHandler creates a new widget handler
func NewHandler(widgetService *service.WidgetService) *Handler {
	return &Handler{widgetService: widgetService}
}

// RegisterRoutes registers widget routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/config/:bot_id", h.GetConfig)
	r.POST("/identity", h.Identity)
	r.POST("/sessions/:bot_id", h.OpenSession)
	r.POST("/chat/:bot_id", h.Chat)
	r.POST("/form/:bot_id", h.SubmitForm)
}

// GetConfig returns the widget configuration for a bot
func (h *Handler) GetConfig(c *gin.Context) {
	config, err := h.widgetService.GetWidgetConfig(c.Request.Context(), c.Param("bot_id"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, config)
}

// Identity returns the session id of the visitor's device
func (h *Handler) Identity(c *gin.Context) {
	var req domain.IdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = c.Request.UserAgent()
	}

	id := h.widgetService.EnsureSessionID(c.Request.Context(), &req)
	c.JSON(http.StatusOK, gin.H{"session_id": id})
}

// OpenSession loads or starts a session
func (h *Handler) OpenSession(c *gin.Context) {
	var req domain.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}

	session, err := h.widgetService.OpenSession(c.Request.Context(), c.Param("bot_id"), &req)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// Chat handles a chat message
func (h *Handler) Chat(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}

	resp, err := h.widgetService.Chat(c.Request.Context(), c.Param("bot_id"), &req)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SubmitForm handles the lead capture form
func (h *Handler) SubmitForm(c *gin.Context) {
	var req domain.FormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}

	resp, err := h.widgetService.SubmitForm(c.Request.Context(), c.Param("bot_id"), &req)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
