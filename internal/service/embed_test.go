package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbedScript(t *testing.T) {
	js := EmbedScript("https://chat.example.com/")

	assert.Contains(t, js, `var base = "https://chat.example.com";`)
	assert.Contains(t, js, `base + "/bot/" + encodeURIComponent(botId) + "/widget"`)
	assert.Contains(t, js, "border-radius:50%;")
	assert.NotContains(t, js, "%!")
}

func TestEmbedSnippet(t *testing.T) {
	html := EmbedSnippet("http://localhost:8080", "bot-1")

	assert.Contains(t, html, `botId: "bot-1"`)
	assert.Contains(t, html, `src="http://localhost:8080/api/embed"`)
	assert.Contains(t, html, `data-bot-id="bot-1"`)
}
