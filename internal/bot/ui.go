package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const sendSpinnerInterval = 3 * time.Second

func (b *Bot) sendTyping(ctx context.Context, chatID int64) {
	if b.actions == nil {
		return
	}

	_, err := b.actions.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})
	if err != nil && ctx.Err() == nil {
		b.log.ErrorContext(ctx, "Failed to send chat action",
			"error", err)
	}
}

func (b *Bot) withSpinner(ctx context.Context, chatID int64, fn func() error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		b.sendTyping(ctx, chatID)

		t := time.NewTicker(sendSpinnerInterval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				b.sendTyping(ctx, chatID)
			}
		}
	}()

	return fn()
}

// send delivers MarkdownV2 text, one message per page.
func (b *Bot) send(ctx context.Context, chatID int64, pages ...string) error {
	disabled := true

	var errs []error
	for _, text := range pages {
		normalizedText := strings.ToValidUTF8(text, "?")
		if normalizedText != text {
			b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
				"chatID", chatID,
				"originalLen", len(text),
				"normalizedLen", len(normalizedText))
		}

		_, err := b.out.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:             chatID,
			Text:               normalizedText,
			ParseMode:          models.ParseModeMarkdown,
			LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: &disabled},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("send message: %w", err))
		}
	}

	return errors.Join(errs...)
}

// fail reports err to the user and returns it together with any send error.
func (b *Bot) fail(ctx context.Context, chatID int64, userText string, err error) error {
	if sendErr := b.send(ctx, chatID, "❌ "+bot.EscapeMarkdown(userText)); sendErr != nil {
		return errors.Join(err, sendErr)
	}

	return err
}
