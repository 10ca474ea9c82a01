package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"newsdesk/internal/feed"
	"newsdesk/internal/tools"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const unknownCommandText = "🤷 Unknown command\\. Send /help to see what I can do\\."

func (b *Bot) handleMessage(ctx context.Context, message *models.Message) error {
	chatID := message.Chat.ID

	return b.withSpinner(ctx, chatID, func() error {
		command, args := parseCommand(message.Text)

		switch command {
		case "/start", "/help":
			return b.send(ctx, chatID, helpText)
		case "/digest":
			return b.handleDigestCommand(ctx, chatID)
		case "/read":
			return b.handleReadCommand(ctx, chatID, args)
		case "/readall":
			return b.handleReadAllCommand(ctx, chatID)
		case "/rate":
			return b.handleRateCommand(ctx, chatID, args)
		case "/sources":
			return b.handleSourcesCommand(ctx, chatID)
		case "/addsource":
			return b.handleAddSourceCommand(ctx, chatID, args)
		case "/removesource":
			return b.handleRemoveSourceCommand(ctx, chatID, args)
		case "/interest":
			return b.handleInterestCommand(ctx, chatID, args)
		case "/forget":
			return b.handleForgetCommand(ctx, chatID, args)
		case "/profile":
			return b.handleProfileCommand(ctx, chatID)
		case "/stats":
			return b.handleStatsCommand(ctx, chatID)
		case "":
			return b.handleRandomText(ctx, chatID, message.Text)
		default:
			return b.send(ctx, chatID, unknownCommandText)
		}
	})
}

// parseCommand splits "/cmd@botname a b" into "/cmd" and "a b". Plain text
// yields an empty command.
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	command, args, _ := strings.Cut(text, " ")
	command, _, _ = strings.Cut(command, "@")

	return strings.ToLower(command), strings.TrimSpace(args)
}

// handleRandomText looks for feed URLs in free text and validates them, so
// the user only has to confirm with /addsource.
func (b *Bot) handleRandomText(ctx context.Context, chatID int64, text string) error {
	urls, err := feed.FindFeedURLs(text)
	if err != nil {
		return b.fail(ctx, chatID, "Failed to look for feed URLs.", fmt.Errorf("find feed URLs: %w", err))
	}

	if len(urls) == 0 {
		return b.send(ctx, chatID, unknownCommandText)
	}

	var (
		errs   []error
		checks []tools.FeedValidationView
	)

	for _, u := range urls {
		result, validateErr := b.svc.ValidateFeed(ctx, tools.ValidateFeedRequest{URL: u})
		if validateErr != nil {
			errs = append(errs, fmt.Errorf("validate feed: %w", validateErr))
			continue
		}

		checks = append(checks, result)
	}

	if len(checks) == 0 {
		return b.fail(ctx, chatID, "Failed to validate feeds.", errors.Join(errs...))
	}

	if err = b.send(ctx, chatID, formatFeedChecks(checks)); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func escape(s string) string {
	return bot.EscapeMarkdown(s)
}
