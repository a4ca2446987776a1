package api

import (
	"embed"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liliang-cn/leadchat/internal/service"
)

//go:embed static/widget.html
var staticFS embed.FS

// SetupStaticRoutes sets up the embed script and the widget page
func SetupStaticRoutes(r *gin.Engine, baseURL string) error {
	page, err := staticFS.ReadFile("static/widget.html")
	if err != nil {
		return err
	}
	script := []byte(service.EmbedScript(baseURL))

	r.GET("/api/embed", func(c *gin.Context) {
		c.Header("Cache-Control", "public, max-age=300")
		c.Data(http.StatusOK, "application/javascript; charset=utf-8", script)
	})

	// The page reads the bot id from its own path.
	r.GET("/bot/:bot_id/widget", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	})

	return nil
}
