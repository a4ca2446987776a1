// Package respond maps service errors to HTTP responses.
package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liliang-cn/leadchat/internal/domain"
)

// Visitor-safe error texts
const (
	MsgCompletionFailed = "Failed to get response. Please try again."
	MsgInternal         = "Something went wrong. Please try again."
)

// Error writes err with the status its kind maps to. Unclassified errors are
// attached to the context for the request logger and hidden from the client.
func Error(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrMissingLeadFields),
		errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrFormNotExpected):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrCompletionFailed):
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": MsgCompletionFailed})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": MsgInternal})
	}
}

// BadRequest writes a binding failure
func BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
