package service

import (
	"fmt"
	"strings"
)

// EmbedSnippet returns the HTML a site owner pastes into their pages
func EmbedSnippet(baseURL, botID string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	return fmt.Sprintf(`<!-- leadchat widget -->
<script>
  window.leadchatConfig = {
    botId: %q
  };
</script>
<script
  src="%s/api/embed"
  defer
  data-bot-id=%q
></script>`, botID, baseURL, botID)
}

// EmbedScript returns the loader script served at /api/embed. It reads the
// bot id from its own script tag (or window.leadchatConfig) and injects the
// widget iframe behind a toggle button.
func EmbedScript(baseURL string) string {
	return fmt.Sprintf(embedScriptTemplate, strings.TrimRight(baseURL, "/"))
}

const embedScriptTemplate = `(function () {
  var base = %q;
  var script = document.currentScript;
  var botId = (script && script.getAttribute("data-bot-id")) ||
    (window.leadchatConfig && window.leadchatConfig.botId);
  if (!botId || document.getElementById("leadchat-frame")) {
    return;
  }

  var frame = document.createElement("iframe");
  frame.id = "leadchat-frame";
  frame.src = base + "/bot/" + encodeURIComponent(botId) + "/widget";
  frame.title = "Chat";
  frame.style.cssText = "position:fixed;bottom:90px;right:20px;width:370px;height:560px;" +
    "max-height:80vh;border:none;border-radius:12px;box-shadow:0 8px 24px rgba(0,0,0,.25);" +
    "z-index:2147483646;display:none;";

  var button = document.createElement("button");
  button.id = "leadchat-toggle";
  button.setAttribute("aria-label", "Open chat");
  button.textContent = "\u{1F4AC}";
  button.style.cssText = "position:fixed;bottom:20px;right:20px;width:56px;height:56px;" +
    "border:none;border-radius:50%%;font-size:24px;cursor:pointer;color:#fff;" +
    "background:#2563eb;box-shadow:0 4px 12px rgba(0,0,0,.25);z-index:2147483647;";

  fetch(base + "/api/bot-config/" + encodeURIComponent(botId))
    .then(function (r) { return r.ok ? r.json() : null; })
    .then(function (cfg) {
      if (cfg && cfg.config && cfg.config.primary_color) {
        button.style.background = cfg.config.primary_color;
      }
    })
    .catch(function () {});

  button.addEventListener("click", function () {
    var open = frame.style.display !== "none";
    frame.style.display = open ? "none" : "block";
    button.setAttribute("aria-label", open ? "Open chat" : "Close chat");
  });

  document.body.appendChild(frame);
  document.body.appendChild(button);
})();
`
