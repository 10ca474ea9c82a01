package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsdesk/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"mvdan.cc/xurls/v2"
)

const (
	httpClientTimeout  = 20 * time.Second
	entryTitleMaxChars = 120
)

// Content is one fetched feed: its title and parsed entries in feed order.
type Content struct {
	Title   string
	Entries []domain.ParsedEntry
}

type Reader struct {
	libParser  *gofeed.Parser
	httpClient *http.Client
	log        *slog.Logger
}

func NewReader(log *slog.Logger) *Reader {
	httpClient := &http.Client{Timeout: httpClientTimeout}

	libParser := gofeed.NewParser()
	libParser.Client = httpClient
	libParser.UserAgent = userAgent

	return &Reader{
		libParser:  libParser,
		httpClient: httpClient,
		log:        log,
	}
}

// Read fetches and parses feedURL. Public Telegram channels are scraped,
// everything else goes through the RSS/Atom/JSON parser.
func (r *Reader) Read(ctx context.Context, feedURL string) (Content, error) {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return Content{}, errors.New("feed URL is empty")
	}

	if slug, ok := channelSlug(feedURL); ok {
		return r.readChannel(ctx, slug)
	}

	parsed, err := r.libParser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return Content{}, fmt.Errorf("parse feed (URL = %s): %w", feedURL, err)
	}

	return r.contentFromFeed(ctx, feedURL, parsed), nil
}

// Validate probes feedURL and reports the outcome. Network and parse failures
// are part of the result, never an error.
func (r *Reader) Validate(ctx context.Context, feedURL string) domain.FeedValidation {
	result := domain.FeedValidation{URL: strings.TrimSpace(feedURL)}

	u, err := url.Parse(result.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		result.Error = "URL must be an absolute http(s) URL"

		return result
	}

	content, err := r.Read(ctx, result.URL)
	if err != nil {
		r.log.WarnContext(ctx, "Feed validation failed",
			"error", err,
			"feedURL", result.URL)

		result.Error = err.Error()

		return result
	}

	result.Valid = true
	result.Title = content.Title
	result.EntryCount = len(content.Entries)

	if slug, ok := channelSlug(result.URL); ok {
		result.URL = TelegramChannelCanonicalURL(slug)
	}

	return result
}

func (r *Reader) contentFromFeed(ctx context.Context, feedURL string, parsed *gofeed.Feed) Content {
	title := strings.TrimSpace(parsed.Title)
	if title == "" {
		r.log.WarnContext(ctx, "Empty feed title",
			"feedURL", feedURL,
			"fallbackTitle", feedURL)

		title = feedURL
	}

	entries := make([]domain.ParsedEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		entries = append(entries, entryFromItem(item))
	}

	return Content{Title: title, Entries: entries}
}

func entryFromItem(item *gofeed.Item) domain.ParsedEntry {
	var published time.Time
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	body := item.Content
	if strings.TrimSpace(body) == "" {
		body = item.Description
	}

	return domain.ParsedEntry{
		URL:         strings.TrimSpace(item.Link),
		Title:       strings.TrimSpace(item.Title),
		Body:        htmlToText(body),
		PublishedAt: published,
	}
}

// htmlToText flattens an HTML fragment into whitespace-normalised plain text.
// Input that does not parse is returned with its whitespace collapsed.
func htmlToText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}

	doc.Find("script, style").Remove()
	doc.Find("br, p, div, li").Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml(" ")
	})

	return strings.Join(strings.Fields(doc.Text()), " ")
}

// FindFeedURLs extracts candidate feed URLs from free text: https links and
// @channel mentions, which are expanded to their public Telegram page.
func FindFeedURLs(text string) ([]string, error) {
	text = strings.TrimSpace(text)

	httpsURLRe, err := xurls.StrictMatchingScheme("https://")
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	var (
		urls []string
		seen = make(map[string]struct{})
	)

	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" {
			return
		}

		if _, ok := seen[u]; ok {
			return
		}

		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	for _, u := range httpsURLRe.FindAllString(text, -1) {
		add(u)
	}

	for _, m := range telegramAtSignSlugRe.FindAllStringSubmatch(text, -1) {
		if len(m) < atSignSlugMatchParts {
			continue
		}

		slug := strings.TrimSpace(m[2])
		if !telegramSlugRe.MatchString(slug) {
			continue
		}

		add(TelegramChannelCanonicalURL(slug))
	}

	return urls, nil
}

func entryTitleFromText(text string, fallback string) string {
	firstLine, _, _ := strings.Cut(strings.TrimSpace(text), "\n")

	normalized := strings.Join(strings.Fields(firstLine), " ")
	if normalized == "" {
		return fallback
	}

	runes := []rune(normalized)
	if len(runes) <= entryTitleMaxChars {
		return normalized
	}

	trimmed := strings.TrimSpace(string(runes[:entryTitleMaxChars]))
	if trimmed == "" {
		return normalized
	}

	return trimmed + "..."
}
