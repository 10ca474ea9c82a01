package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"newsdesk/internal/domain"
	"newsdesk/internal/tools"
)

const (
	digestLimit = 100

	helpText = `🗞 *Newsdesk*

I collect articles from your sources, rank them against your interests and learn from your ratings\.

/digest – unread articles by relevance
/read 12 13 – mark articles read
/readall – mark everything read
/rate 12 5 \[note\] – rate an article from 1 to 5
/sources – list sources
/addsource name url – follow a feed
/removesource name – stop following a feed
/interest topic \[high\|medium\|low\] – add an interest
/forget topic – drop an interest
/profile – your interest profile
/stats – reading and learning statistics

Send me any link and I will check whether it is a feed\.`
)

func (b *Bot) handleDigestCommand(ctx context.Context, chatID int64) error {
	resp, err := b.svc.GetArticles(ctx, tools.GetArticlesRequest{
		ReadStatus: string(domain.ReadStatusUnread),
		Limit:      digestLimit,
		Grouped:    true,
	})
	if err != nil {
		return b.fail(ctx, chatID, "Failed to build the digest.", fmt.Errorf("get articles: %w", err))
	}

	return b.send(ctx, chatID, formatDigest(resp)...)
}

func (b *Bot) handleReadCommand(ctx context.Context, chatID int64, args string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return b.fail(ctx, chatID, "Usage: /read 12 13", err)
	}

	resp, err := b.svc.MarkRead(ctx, tools.MarkReadRequest{ArticleIDs: ids})
	if err != nil {
		return b.fail(ctx, chatID, userMessage(err), fmt.Errorf("mark read: %w", err))
	}

	return b.send(ctx, chatID, fmt.Sprintf("✅ Marked %d article\\(s\\) read\\.", resp.Changed))
}

func (b *Bot) handleReadAllCommand(ctx context.Context, chatID int64) error {
	resp, err := b.svc.MarkAllRead(ctx)
	if err != nil {
		return b.fail(ctx, chatID, userMessage(err), fmt.Errorf("mark all read: %w", err))
	}

	return b.send(ctx, chatID, fmt.Sprintf("✅ Marked %d article\\(s\\) read\\.", resp.Changed))
}

func (b *Bot) handleRateCommand(ctx context.Context, chatID int64, args string) error {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return b.fail(ctx, chatID, "Usage: /rate 12 5 [note]", nil)
	}

	id, idErr := strconv.ParseInt(fields[0], 10, 64)
	rating, ratingErr := strconv.Atoi(fields[1])
	if err := errors.Join(idErr, ratingErr); err != nil {
		return b.fail(ctx, chatID, "Usage: /rate 12 5 [note]", err)
	}

	resp, err := b.svc.SaveFeedback(ctx, tools.SaveFeedbackRequest{
		ArticleID: id,
		Rating:    rating,
		Note:      strings.Join(fields[2:], " "),
	})
	if err != nil {
		return b.fail(ctx, chatID, userMessage(err), fmt.Errorf("save feedback: %w", err))
	}

	return b.send(ctx, chatID, formatFeedback(resp))
}

func (b *Bot) handleSourcesCommand(ctx context.Context, chatID int64) error {
	sources, err := b.svc.ListSources(ctx)
	if err != nil {
		return b.fail(ctx, chatID, userMessage(err), fmt.Errorf("list sources: %w", err))
	}

	return b.send(ctx, chatID, formatSources(sources)...)
}

func (b *Bot) handleAddSourceCommand(ctx context.Context, chatID int64, args string) error {
	name, rawURL, _ := strings.Cut(args, " ")
	name = strings.TrimSpace(name)
	rawURL = strings.TrimSpace(rawURL)

	if name == "" || rawURL == "" {
		return b.fail(ctx, chatID, "Usage: /addsource name url", nil)
	}

	check, err := b.svc.ValidateFeed(ctx, tools.ValidateFeedRequest{URL: rawURL})
	if err != nil {
		return b.fail(ctx, chatID, userMessage(err), fmt.Errorf("validate feed: %w", err))
	}

	if !check.Valid {
		return b.send(ctx, chatID, formatFeedChecks([]tools.FeedValidationView{check}))
	}

	src, err := b.svc.AddSource(ctx, tools.AddSourceRequest{Name: name, URL: rawURL})
	if err != nil {
		return b.fail(ctx, chatID, userMessage(err), fmt.Errorf("add source: %w", err))
	}

	return b.send(ctx, chatID, fmt.Sprintf(
		"✅ Following *%s* \\(%d entries right now\\)\\.",
		escape(src.Name),
		check.EntryCount,
	))
}

func (b *Bot) handleRemoveSourceCommand(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		return b.fail(ctx, chatID, "Usage: /removesource name", nil)
	}

	if err := b.svc.RemoveSource(ctx, args); err != nil {
		return b.fail(ctx, chatID, userMessage(err), fmt.Errorf("remove source: %w", err))
	}

	return b.send(ctx, chatID, fmt.Sprintf("✅ Removed *%s*\\.", escape(args)))
}

func (b *Bot) handleInterestCommand(ctx context.Context, chatID int64, args string) error {
	topic, priority := args, ""

	if i := strings.LastIndex(args, " "); i > 0 {
		switch last := strings.ToLower(args[i+1:]); last {
		case "high", "medium", "low":
			topic, priority = strings.TrimSpace(args[:i]), last
		}
	}

	view, err := b.svc.AddInterest(ctx, tools.AddInterestRequest{Topic: topic, Priority: priority})
	if err != nil {
		return b.fail(ctx, chatID, userMessage(err), fmt.Errorf("add interest: %w", err))
	}

	return b.send(ctx, chatID, fmt.Sprintf(
		"✅ Interested in *%s* with weight %s\\.",
		escape(view.Topic),
		escape(formatWeight(view.Weight)),
	))
}

func (b *Bot) handleForgetCommand(ctx context.Context, chatID int64, args string) error {
	if err := b.svc.RemoveInterest(ctx, args); err != nil {
		return b.fail(ctx, chatID, userMessage(err), fmt.Errorf("remove interest: %w", err))
	}

	return b.send(ctx, chatID, fmt.Sprintf("✅ Forgot *%s*\\.", escape(args)))
}

func (b *Bot) handleProfileCommand(ctx context.Context, chatID int64) error {
	profile, err := b.svc.GetProfile(ctx)
	if err != nil {
		return b.fail(ctx, chatID, userMessage(err), fmt.Errorf("get profile: %w", err))
	}

	return b.send(ctx, chatID, formatProfile(profile)...)
}

func (b *Bot) handleStatsCommand(ctx context.Context, chatID int64) error {
	stats, err := b.svc.Stats(ctx)
	if err != nil {
		return b.fail(ctx, chatID, userMessage(err), fmt.Errorf("get stats: %w", err))
	}

	return b.send(ctx, chatID, formatStats(stats))
}

func parseIDs(args string) ([]int64, error) {
	fields := strings.FieldsFunc(args, func(r rune) bool { return r == ' ' || r == ',' })
	if len(fields) == 0 {
		return nil, fmt.Errorf("no article ids: %w", domain.ErrInvalidArgument)
	}

	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(strings.TrimPrefix(f, "#"), 10, 64)
		if err != nil {
			return nil, tools.InvalidParam("article id", f)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// userMessage turns a service error into text that is safe to show in chat.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "Not found."
	case errors.Is(err, domain.ErrDuplicateSource):
		return "A source with this name or URL already exists."
	case errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrInvalidArgument):
		return err.Error()
	case errors.Is(err, domain.ErrStoreBusy):
		return "The database is busy, try again in a moment."
	default:
		return "Failed."
	}
}
