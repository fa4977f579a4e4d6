package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier sends alerts via the Telegram Bot API.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	// channel is used instead of chatID for "@name" targets.
	channel string
}

// TelegramConfig configures a TelegramNotifier.
type TelegramConfig struct {
	BotToken string // Bot API token from @BotFather, "<id>:<secret>"
	ChatID   string // numeric chat/group ID or "@channelname"

	// Endpoint overrides the Bot API endpoint format (tests).
	Endpoint string
	Timeout  time.Duration
}

// NewTelegramNotifier authorizes the bot (one getMe call) and returns a notifier.
func NewTelegramNotifier(cfg TelegramConfig) (*TelegramNotifier, error) {
	if !strings.Contains(cfg.BotToken, ":") {
		return nil, fmt.Errorf("telegram: malformed bot token (missing ':')")
	}
	if cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram: chat id is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram: authorize: %w", err)
	}

	t := &TelegramNotifier{bot: bot}
	if id, err := strconv.ParseInt(cfg.ChatID, 10, 64); err == nil {
		t.chatID = id
	} else if strings.HasPrefix(cfg.ChatID, "@") {
		t.channel = cfg.ChatID
	} else {
		return nil, fmt.Errorf("telegram: chat id %q is neither numeric nor @channel", cfg.ChatID)
	}

	slog.Info("telegram bot authorized",
		slog.String("component", "notify"), slog.String("username", bot.Self.UserName))
	return t, nil
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	text := fmt.Sprintf("%s *%s*\n\n%s", levelEmoji(alert.Level),
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, alert.Title),
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, alert.Message))

	var msg tgbotapi.MessageConfig
	if t.channel != "" {
		msg = tgbotapi.NewMessageToChannel(t.channel, text)
	} else {
		msg = tgbotapi.NewMessage(t.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	sent, err := t.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}

	slog.Info("telegram alert sent",
		slog.String("component", "notify"),
		slog.String("title", alert.Title),
		slog.Int("message_id", sent.MessageID))
	return nil
}

func levelEmoji(l AlertLevel) string {
	switch l {
	case AlertWarning:
		return "🔔"
	case AlertCritical:
		return "🚨"
	default:
		return "ℹ️"
	}
}
