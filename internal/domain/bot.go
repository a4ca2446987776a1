package domain

import "time"

// Bot represents a chatbot configuration owned by an operator
type Bot struct {
	ID        string            `json:"id"`
	OwnerID   string            `json:"owner_id"`
	Name      string            `json:"name"`
	Domain    string            `json:"domain,omitempty"`
	Config    BotConfig         `json:"config"`
	Training  []KnowledgeSource `json:"training"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// BotConfig holds the prompts and widget appearance of a bot
type BotConfig struct {
	WelcomeMessage  string `json:"welcome_message"`
	BehaviourPrompt string `json:"behaviour_prompt"`
	TaskPrompt      string `json:"task_prompt"`
	SkipLeadForm    bool   `json:"skip_lead_form"`
	PrimaryColor    string `json:"primary_color"`
	BackgroundColor string `json:"background_color"`
	BotTextColor    string `json:"bot_text_color"`
	BotMessageBg    string `json:"bot_message_bg"`
	UserTextColor   string `json:"user_text_color"`
	UserMessageBg   string `json:"user_message_bg"`
}

// KnowledgeBase returns the bot's training sources as a knowledge base
func (b *Bot) KnowledgeBase() KnowledgeBase {
	return KnowledgeBase{Sources: b.Training}
}

// CreateBotRequest is the request to create a bot
type CreateBotRequest struct {
	OwnerID  string            `json:"owner_id" binding:"required"`
	Name     string            `json:"name" binding:"required"`
	Domain   string            `json:"domain,omitempty"`
	Config   *BotConfig        `json:"config,omitempty"`
	Training []KnowledgeSource `json:"training,omitempty"`
}

// UpdateBotRequest is the request to update a bot
type UpdateBotRequest struct {
	Name     string            `json:"name,omitempty"`
	Domain   string            `json:"domain,omitempty"`
	Config   *BotConfig        `json:"config,omitempty"`
	Training []KnowledgeSource `json:"training,omitempty"`
}

// DefaultBotConfig returns default bot configuration
func DefaultBotConfig() BotConfig {
	return BotConfig{
		WelcomeMessage:  "Hello! How can I help you today?",
		PrimaryColor:    "#2563eb",
		BackgroundColor: "#0a0a0a",
		BotTextColor:    "#ffffff",
		BotMessageBg:    "#1e293b",
		UserTextColor:   "#ffffff",
		UserMessageBg:   "#2563eb",
	}
}

// WithDefaults fills empty appearance fields and the welcome message from defaults
func (c BotConfig) WithDefaults() BotConfig {
	d := DefaultBotConfig()
	if c.WelcomeMessage == "" {
		c.WelcomeMessage = d.WelcomeMessage
	}
	if c.PrimaryColor == "" {
		c.PrimaryColor = d.PrimaryColor
	}
	if c.BackgroundColor == "" {
		c.BackgroundColor = d.BackgroundColor
	}
	if c.BotTextColor == "" {
		c.BotTextColor = d.BotTextColor
	}
	if c.BotMessageBg == "" {
		c.BotMessageBg = d.BotMessageBg
	}
	if c.UserTextColor == "" {
		c.UserTextColor = d.UserTextColor
	}
	if c.UserMessageBg == "" {
		c.UserMessageBg = d.UserMessageBg
	}
	return c
}

// TrainingTextRequest adds pasted text to a bot's knowledge. With Products
// set, the text is parsed as one product per line instead.
type TrainingTextRequest struct {
	Title    string `json:"title"`
	Text     string `json:"text" binding:"required"`
	Products bool   `json:"products"`
}

// TrainingURLRequest adds a scraped web page to a bot's knowledge
type TrainingURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// WidgetConfig is the public appearance of a bot's chat widget
type WidgetConfig struct {
	BotID   string    `json:"bot_id"`
	Name    string    `json:"name"`
	Config  BotConfig `json:"config"`
	BaseURL string    `json:"base_url"`
}
