package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/leadchat/internal/domain"
)

func TestError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"not found", fmt.Errorf("bot: %w", domain.ErrNotFound), http.StatusNotFound, "not found"},
		{"empty", domain.ErrEmptyMessage, http.StatusBadRequest, domain.ErrEmptyMessage.Error()},
		{"missing fields", domain.ErrMissingLeadFields, http.StatusBadRequest, domain.ErrMissingLeadFields.Error()},
		{"form", domain.ErrFormNotExpected, http.StatusConflict, domain.ErrFormNotExpected.Error()},
		{"completion", fmt.Errorf("%w: upstream 500", domain.ErrCompletionFailed), http.StatusServiceUnavailable, MsgCompletionFailed},
		{"other", errors.New("disk I/O error"), http.StatusInternalServerError, MsgInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			Error(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.body, body["error"])
		})
	}
}
