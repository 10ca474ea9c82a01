package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"newsdesk/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	// atSignSlugMatchParts is the full match plus both capture groups before
	// the slug.
	atSignSlugMatchParts = 3

	telegramHost = "t.me"
)

var (
	telegramSlugRe       = regexp.MustCompile(`^\w{5,32}$`)
	telegramAtSignSlugRe = regexp.MustCompile(`(\s|^)@(\w{5,32})(\s|$)`)
)

func TelegramMessageCanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}

	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

func TelegramChannelCanonicalURL(slug string) string {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ""
	}

	return fmt.Sprintf("https://%s/s/%s", telegramHost, slug)
}

// channelSlug reports the channel slug of a t.me/<slug> or t.me/s/<slug> URL.
func channelSlug(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host != telegramHost {
		return "", false
	}

	path := strings.Trim(u.Path, "/")
	if rest, ok := strings.CutPrefix(path, "s/"); ok {
		path = rest
	}

	slug, _, _ := strings.Cut(path, "/")
	if !telegramSlugRe.MatchString(slug) {
		return "", false
	}

	return slug, true
}

// readChannel scrapes the public web preview of a channel. Every post becomes
// an entry titled by its first line.
func (r *Reader) readChannel(ctx context.Context, slug string) (Content, error) {
	pageURL := TelegramChannelCanonicalURL(slug)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Content{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := r.httpClient.Do(req) //nolint:gosec // Telegram URL
	if err != nil {
		return Content{}, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			r.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"pageURL", pageURL)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return Content{}, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Content{}, fmt.Errorf("create document from reader: %w", err)
	}

	title, posts := parseChannelPage(doc)
	if title == "" {
		title = pageURL
	}

	entries := make([]domain.ParsedEntry, 0, len(posts))
	for _, post := range posts {
		if post.err != nil {
			r.log.WarnContext(ctx, "Skipping malformed channel post",
				"error", post.err,
				"pageURL", pageURL)

			continue
		}

		entries = append(entries, post.entry)
	}

	return Content{Title: title, Entries: entries}, nil
}

type channelPost struct {
	entry domain.ParsedEntry
	err   error
}

func parseChannelPage(doc *goquery.Document) (string, []channelPost) {
	var posts []channelPost

	doc.Find("a.tgme_widget_message_date").Each(func(_ int, s *goquery.Selection) {
		entry, err := postEntry(s)
		if err != nil {
			err = fmt.Errorf("read channel post: %w", err)
		}

		posts = append(posts, channelPost{entry: entry, err: err})
	})

	title := strings.TrimSpace(doc.Find("meta[property='og:title']").AttrOr("content", ""))
	if title == "" {
		title = strings.TrimSpace(doc.Find(".tgme_channel_info_header_title").Text())
	}

	return title, posts
}

// postEntry builds an entry from the date link of a post. The link carries
// the post URL and its publication time.
func postEntry(dateLink *goquery.Selection) (domain.ParsedEntry, error) {
	href := TelegramMessageCanonicalURL(dateLink.AttrOr("href", ""))
	if href == "" {
		return domain.ParsedEntry{}, errors.New("post link is empty")
	}

	var paragraphs []string
	dateLink.ParentsFiltered(".tgme_widget_message").First().
		Find(".tgme_widget_message_text, .tgme_widget_message_caption").
		Each(func(_ int, part *goquery.Selection) {
			part.Find("br").ReplaceWithHtml("\n")

			if text := strings.TrimSpace(part.Text()); text != "" {
				paragraphs = append(paragraphs, text)
			}
		})

	entry := domain.ParsedEntry{
		URL:  href,
		Body: strings.Join(paragraphs, "\n"),
	}
	entry.Title = entryTitleFromText(entry.Body, href)

	if datetime := strings.TrimSpace(dateLink.Find("time").AttrOr("datetime", "")); datetime != "" {
		published, err := time.Parse(time.RFC3339, datetime)
		if err != nil {
			return domain.ParsedEntry{}, fmt.Errorf("parse datetime: %w", err)
		}

		entry.PublishedAt = published
	}

	return entry, nil
}
