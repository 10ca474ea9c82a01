package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"newsdesk/internal/ratelimiter"
	"newsdesk/internal/tools"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const updateProcessingTimeout = 60 * time.Second

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type chatActionSender interface {
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// Bot is the chat front-end. It only answers users from the allow-list; an
// empty allow-list admits everyone.
type Bot struct {
	api          *bot.Bot
	rateLimiter  *ratelimiter.RateLimiter
	out          messageSender
	actions      chatActionSender
	svc          *tools.Service
	allowedUsers []int64
	log          *slog.Logger
}

func New(
	token string,
	svc *tools.Service,
	allowedUsers []int64,
	log *slog.Logger,
) (*Bot, error) {
	b := newBot(svc, nil, allowedUsers, log)

	api, err := bot.New(
		strings.TrimSpace(token),
		bot.WithDefaultHandler(b.handleUpdate),
		bot.WithMiddlewares(b.allowList),
	)
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	b.api = api
	b.rateLimiter = ratelimiter.New(api, log)
	b.out = b.rateLimiter
	b.actions = api

	return b, nil
}

func newBot(
	svc *tools.Service,
	out messageSender,
	allowedUsers []int64,
	log *slog.Logger,
) *Bot {
	return &Bot{
		out:          out,
		svc:          svc,
		allowedUsers: allowedUsers,
		log:          log,
	}
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.log.InfoContext(ctx, "Bot is polling for updates",
		"allowedUserCount", len(b.allowedUsers))

	b.api.Start(ctx)

	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func (b *Bot) allowList(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, api *bot.Bot, update *models.Update) {
		userID, chatID := updateIDs(update)

		if !b.userAllowed(userID) {
			b.log.DebugContext(ctx, "User is not allowed",
				"userID", userID,
				"chatID", chatID)

			return
		}

		next(ctx, api, update)
	}
}

func (b *Bot) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil {
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	message := update.Message
	if err := b.handleMessage(updateCtx, message); err != nil {
		userID, chatID := updateIDs(update)

		b.log.ErrorContext(updateCtx, "Failed to handle message",
			"error", err,
			"chatID", chatID,
			"userID", userID,
			"chatType", message.Chat.Type,
			"messageID", message.ID)
	}
}

func updateIDs(update *models.Update) (int64, int64) {
	if update == nil || update.Message == nil {
		return 0, 0
	}

	var userID int64
	if update.Message.From != nil {
		userID = update.Message.From.ID
	}

	return userID, update.Message.Chat.ID
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}
