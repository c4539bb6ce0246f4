// Package notify announces newly saved job matches.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/jobs"
)

type bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetMe() (tgbotapi.User, error)
}

// Telegram sends one HTML message per matched job to a chat.
type Telegram struct {
	bot    bot
	chatID int64
	logger *zap.Logger
}

func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is required")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Telegram{bot: api, chatID: chatID, logger: logger}, nil
}

func (t *Telegram) Notify(ctx context.Context, matches []jobs.ProcessedJob) error {
	var errs []error
	for _, job := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg := tgbotapi.NewMessage(t.chatID, FormatJob(job))
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true

		if _, err := t.bot.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("send %q: %w", job.Role, err))
			continue
		}
	}

	t.logger.Info("sent telegram notifications", zap.Int("jobs", len(matches)), zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

// Ping checks the bot token.
func (t *Telegram) Ping(context.Context) error {
	if _, err := t.bot.GetMe(); err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	return nil
}

// FormatJob renders the notification text for one job.
func FormatJob(job jobs.ProcessedJob) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(job.Role))
	fmt.Fprintf(&b, "Company: %s\n", html.EscapeString(job.Company))
	if job.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", html.EscapeString(job.Location))
	}
	fmt.Fprintf(&b, "Rating: %s/10\n", jobs.FormatRating(job.Rating))
	if job.Skills != "" {
		fmt.Fprintf(&b, "Skills: %s\n", html.EscapeString(job.Skills))
	}
	if job.ReasonForMatch != "" {
		fmt.Fprintf(&b, "<i>%s</i>\n", html.EscapeString(job.ReasonForMatch))
	}
	if job.JobLink != "" {
		fmt.Fprintf(&b, "<a href=\"%s\">Apply</a>", html.EscapeString(job.JobLink))
	}
	return strings.TrimSpace(b.String())
}
