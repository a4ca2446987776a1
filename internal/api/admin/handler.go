package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liliang-cn/leadchat/internal/api/respond"
	"github.com/liliang-cn/leadchat/internal/domain"
	"github.com/liliang-cn/leadchat/internal/service"
)

// Handler handles admin API requests
type Handler struct {
	adminService    *service.AdminService
	trainingService *service.TrainingService
}

// NewHandler creates a new admin handler
func NewHandler(adminService *service.AdminService, trainingService *service.TrainingService) *Handler {
	return &Handler{
		adminService:    adminService,
		trainingService: trainingService,
	}
}

// RegisterRoutes registers admin routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	bots := r.Group("/bots")
	{
		bots.POST("", h.CreateBot)
		bots.GET("", h.ListBots)
		bots.GET("/:id", h.GetBot)
		bots.PUT("/:id", h.UpdateBot)
		bots.DELETE("/:id", h.DeleteBot)
		bots.POST("/:id/training/text", h.TrainText)
		bots.POST("/:id/training/url", h.TrainURL)
		bots.POST("/:id/training/upload", h.TrainUpload)
		bots.GET("/:id/embed-code", h.EmbedCode)
	}

	reservations := r.Group("/reservations")
	{
		reservations.GET("", h.ListReservations)
		reservations.PUT("/:id/status", h.UpdateReservationStatus)
		reservations.DELETE("/:id", h.DeleteReservation)
	}

	inbox := r.Group("/inbox")
	{
		inbox.GET("", h.Inbox)
		inbox.DELETE("/:phone", h.DeleteCustomer)
	}

	r.GET("/stats", h.GetStats)
}

// ownerID returns the ?owner_id= filter; empty means all owners
func ownerID(c *gin.Context) string {
	return c.Query("owner_id")
}

// Bot handlers

func (h *Handler) CreateBot(c *gin.Context) {
	var req domain.CreateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}

	bot, err := h.adminService.CreateBot(c.Request.Context(), &req)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, bot)
}

func (h *Handler) ListBots(c *gin.Context) {
	bots, err := h.adminService.ListBots(c.Request.Context(), ownerID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bots": bots})
}

func (h *Handler) GetBot(c *gin.Context) {
	bot, err := h.adminService.GetBot(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, bot)
}

func (h *Handler) UpdateBot(c *gin.Context) {
	var req domain.UpdateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}

	bot, err := h.adminService.UpdateBot(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, bot)
}

func (h *Handler) DeleteBot(c *gin.Context) {
	if err := h.adminService.DeleteBot(c.Request.Context(), c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "bot deleted"})
}

func (h *Handler) EmbedCode(c *gin.Context) {
	code, err := h.adminService.EmbedCode(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"embed_code": code})
}

// Training handlers

func (h *Handler) TrainText(c *gin.Context) {
	var req domain.TrainingTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}

	bot, err := h.trainingService.AddText(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, bot)
}

func (h *Handler) TrainURL(c *gin.Context) {
	var req domain.TrainingURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}

	bot, err := h.trainingService.AddURL(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, bot)
}

func (h *Handler) TrainUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	bot, err := h.trainingService.AddUpload(c.Request.Context(), c.Param("id"), file)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, bot)
}

// Reservation handlers

func (h *Handler) ListReservations(c *gin.Context) {
	reservations, err := h.adminService.ListReservations(c.Request.Context(), ownerID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reservations": reservations})
}

func (h *Handler) UpdateReservationStatus(c *gin.Context) {
	var req domain.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}

	if err := h.adminService.UpdateReservationStatus(c.Request.Context(), c.Param("id"), &req); err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "status updated"})
}

func (h *Handler) DeleteReservation(c *gin.Context) {
	if err := h.adminService.DeleteReservation(c.Request.Context(), c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reservation deleted"})
}

// Inbox handlers

func (h *Handler) Inbox(c *gin.Context) {
	conversations, err := h.adminService.Inbox(c.Request.Context(), ownerID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if conversations == nil {
		conversations = []*domain.Conversation{}
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (h *Handler) DeleteCustomer(c *gin.Context) {
	if err := h.adminService.DeleteCustomer(c.Request.Context(), ownerID(c), c.Param("phone")); err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "customer deleted"})
}

// Stats handler

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.adminService.GetStats(c.Request.Context(), ownerID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
