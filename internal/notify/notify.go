// Package notify delivers rendered messages to the configured channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/madmonkey48/kh-allert-radar/internal/config"
)

// Sender sends one outbound message to one channel.
// Params: context and rendered message text.
// Returns: transport error when send fails.
type Sender interface {
	Name() string
	Send(ctx context.Context, text string) error
}

// Dispatcher delivers messages with retry and backoff.
// Transient failures are retried up to the attempt budget; permanent
// failures stop immediately.
// Params: sender, retry policy, and logger.
// Returns: delivery helper for the service layer.
type Dispatcher struct {
	sender Sender
	policy config.NotifyRetry
	logger *slog.Logger
}

// NewDispatcher builds a dispatcher around one sender.
// Params: sender transport, retry policy, and logger.
// Returns: configured dispatcher.
func NewDispatcher(sender Sender, policy config.NotifyRetry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		policy: policy,
		logger: logger,
	}
}

// Deliver sends one message, retrying transient failures with backoff.
// Params: ctx bounds the whole attempt budget; text is the message body.
// Returns: nil on delivery, or the last error after the budget is spent.
func (d *Dispatcher) Deliver(ctx context.Context, text string) error {
	err := retry.Do(
		func() error {
			sendErr := d.sender.Send(ctx, text)
			if sendErr == nil {
				return nil
			}
			if IsPermanent(sendErr) {
				return retry.Unrecoverable(sendErr)
			}
			return sendErr
		},
		retry.Context(ctx),
		retry.Attempts(uint(d.policy.MaxAttempts)),
		retry.Delay(time.Duration(d.policy.InitialMS)*time.Millisecond),
		retry.MaxDelay(time.Duration(d.policy.MaxMS)*time.Millisecond),
		retry.OnRetry(func(attempt uint, attemptErr error) {
			if d.policy.LogEachAttempt && d.logger != nil {
				d.logger.Warn("notify send attempt failed",
					"channel", d.sender.Name(),
					"attempt", attempt+1,
					"error", attemptErr.Error())
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("channel %s: %w", d.sender.Name(), err)
	}
	return nil
}

// IsPermanent reports whether a send error will not succeed on retry.
// Params: err is a sender transport error.
// Returns: true for rejections that retrying cannot fix.
func IsPermanent(err error) bool {
	return errors.Is(err, tgbot.ErrorForbidden) ||
		errors.Is(err, tgbot.ErrorBadRequest) ||
		errors.Is(err, tgbot.ErrorUnauthorized) ||
		errors.Is(err, tgbot.ErrorNotFound)
}

// TelegramSender sends messages to one chat via the Telegram Bot API.
// Params: bot token, chat id, API base, and parse mode from config.
// Returns: Telegram channel sender.
type TelegramSender struct {
	client    *tgbot.Bot
	chatID    any
	parseMode tgmodels.ParseMode
	initErr   error
}

// NewTelegramSender creates a Telegram sender with its HTTP client.
// Params: cfg is the Telegram notifier config.
// Returns: initialized sender; init errors surface on first Send.
func NewTelegramSender(cfg config.TelegramNotifier) *TelegramSender {
	sender := &TelegramSender{
		chatID:    normalizeChatID(cfg.ChatID),
		parseMode: parseMode(cfg.ParseMode),
	}

	if strings.TrimSpace(cfg.BotToken) == "" {
		sender.initErr = errors.New("telegram bot token is required")
		return sender
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		sender.initErr = errors.New("telegram chat_id is required")
		return sender
	}

	options := []tgbot.Option{
		tgbot.WithSkipGetMe(),
		tgbot.WithServerURL(strings.TrimRight(cfg.APIBase, "/")),
	}
	botClient, err := tgbot.New(cfg.BotToken, options...)
	if err != nil {
		sender.initErr = fmt.Errorf("init telegram bot: %w", err)
		return sender
	}
	sender.client = botClient
	return sender
}

// Name returns the sender channel name.
// Params: none.
// Returns: static channel key.
func (s *TelegramSender) Name() string {
	return "telegram"
}

// Send posts one message to the configured Telegram chat.
// Params: context and message text.
// Returns: transport or API error.
func (s *TelegramSender) Send(ctx context.Context, text string) error {
	if s.initErr != nil {
		return s.initErr
	}
	if s.client == nil {
		return errors.New("telegram client is not initialized")
	}

	sent, err := s.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    s.chatID,
		Text:      text,
		ParseMode: s.parseMode,
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return errors.New("telegram send returned empty message id")
	}
	return nil
}

// normalizeChatID converts numeric chat IDs to int64 and keeps the rest as string.
// Params: raw configured chat ID value.
// Returns: Telegram API chat id union value.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}

// parseMode maps the config parse mode to the Telegram API value.
// Params: mode is a normalized config parse mode.
// Returns: Telegram API parse mode.
func parseMode(mode string) tgmodels.ParseMode {
	switch mode {
	case config.ParseModeMarkdownV2:
		return tgmodels.ParseModeMarkdown
	case config.ParseModeHTML:
		return tgmodels.ParseModeHTML
	default:
		return tgmodels.ParseModeMarkdownV1
	}
}

// LogSender writes messages to the log instead of a remote channel.
// Used when no notification channel is enabled.
// Params: logger destination.
// Returns: always-successful sender.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only sender.
// Params: logger destination.
// Returns: initialized sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name returns the sender channel name.
// Params: none.
// Returns: static channel key.
func (s *LogSender) Name() string {
	return "log"
}

// Send writes the message to the log.
// Params: context and message text.
// Returns: always nil.
func (s *LogSender) Send(_ context.Context, text string) error {
	s.logger.Info("notification", "text", text)
	return nil
}
