package feed

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example News</title>
  <link>https://example.com</link>
  <item>
    <title>First post</title>
    <link>https://example.com/first?utm_source=rss</link>
    <description><![CDATA[<p>Hello <b>world</b></p><p>Second paragraph</p>]]></description>
    <pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Second post</title>
    <link>https://example.com/second</link>
  </item>
</channel>
</rss>`

const testTelegramPage = `<html><head><meta property="og:title" content="Example Channel"></head>
<body>
<div class="tgme_widget_message">
  <div class="tgme_widget_message_text">First line<br>second line</div>
  <a class="tgme_widget_message_date" href="https://t.me/example/1?single"><time datetime="2025-06-02T10:00:00+00:00"></time></a>
</div>
<div class="tgme_widget_message">
  <div class="tgme_widget_message_text">Broken date</div>
  <a class="tgme_widget_message_date" href="https://t.me/example/2"><time datetime="yesterday"></time></a>
</div>
</body></html>`

func TestHTMLToText(t *testing.T) {
	tests := map[string]string{
		"":                                      "",
		"plain   text":                          "plain text",
		"<p>Hello <b>world</b></p><p>next</p>":  "Hello world next",
		"<div>a<br>b</div><script>x()</script>": "a b",
	}

	for in, want := range tests {
		if got := htmlToText(in); got != want {
			t.Errorf("htmlToText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEntryFromItemPrefersContent(t *testing.T) {
	updated := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	entry := entryFromItem(&gofeed.Item{
		Title:         " Title ",
		Link:          " https://example.com/a ",
		Content:       "<p>full content</p>",
		Description:   "short description",
		UpdatedParsed: &updated,
	})

	if entry.Body != "full content" {
		t.Fatalf("expected content body, got %q", entry.Body)
	}

	if entry.Title != "Title" || entry.URL != "https://example.com/a" {
		t.Fatalf("expected trimmed title and URL, got %+v", entry)
	}

	if !entry.PublishedAt.Equal(updated) {
		t.Fatalf("expected updated time fallback, got %v", entry.PublishedAt)
	}
}

func TestEntryTitleFromText(t *testing.T) {
	if got := entryTitleFromText("  \n ", "https://t.me/x/1"); got != "https://t.me/x/1" {
		t.Fatalf("expected fallback for empty text, got %q", got)
	}

	if got := entryTitleFromText("Headline here\nbody", ""); got != "Headline here" {
		t.Fatalf("expected first line, got %q", got)
	}

	long := strings.Repeat("a", entryTitleMaxChars+10)
	got := entryTitleFromText(long, "")
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != entryTitleMaxChars+3 {
		t.Fatalf("expected truncated title, got %q", got)
	}
}

func TestParseChannelPage(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(testTelegramPage))
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}

	title, posts := parseChannelPage(doc)
	if title != "Example Channel" {
		t.Fatalf("unexpected title %q", title)
	}

	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}

	first := posts[0]
	if first.err != nil {
		t.Fatalf("unexpected error for first post: %v", first.err)
	}

	if first.entry.URL != "https://t.me/example/1" {
		t.Fatalf("expected canonical message URL, got %q", first.entry.URL)
	}

	if first.entry.Body != "First line\nsecond line" || first.entry.Title != "First line" {
		t.Fatalf("unexpected entry %+v", first.entry)
	}

	if posts[1].err == nil {
		t.Fatalf("expected malformed datetime to be reported")
	}
}

func TestChannelSlug(t *testing.T) {
	tests := map[string]string{
		"https://t.me/s/example_channel":  "example_channel",
		"https://t.me/example_channel":    "example_channel",
		"https://t.me/example_channel/42": "example_channel",
		"https://t.me/s/":                 "",
		"https://example.com/rss":         "",
		"https://t.me/abc":                "",
	}

	for raw, want := range tests {
		slug, ok := channelSlug(raw)
		if ok != (want != "") || slug != want {
			t.Errorf("channelSlug(%q) = %q, %v", raw, slug, ok)
		}
	}
}

func TestReaderReadRSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testRSS))
	}))
	defer srv.Close()

	reader := NewReader(slog.New(slog.DiscardHandler))

	content, err := reader.Read(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("read feed: %v", err)
	}

	if content.Title != "Example News" {
		t.Fatalf("unexpected title %q", content.Title)
	}

	if len(content.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(content.Entries))
	}

	first := content.Entries[0]
	if first.Body != "Hello world Second paragraph" {
		t.Fatalf("unexpected body %q", first.Body)
	}

	if first.PublishedAt.IsZero() {
		t.Fatalf("expected published time to be parsed")
	}

	if !content.Entries[1].PublishedAt.IsZero() {
		t.Fatalf("expected zero published time for undated entry")
	}
}

func TestReaderValidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.Error(w, "nope", http.StatusInternalServerError)

			return
		}

		_, _ = w.Write([]byte(testRSS))
	}))
	defer srv.Close()

	reader := NewReader(slog.New(slog.DiscardHandler))
	ctx := context.Background()

	ok := reader.Validate(ctx, srv.URL)
	if !ok.Valid || ok.Title != "Example News" || ok.EntryCount != 2 {
		t.Fatalf("unexpected validation %+v", ok)
	}

	broken := reader.Validate(ctx, srv.URL+"/broken")
	if broken.Valid || broken.Error == "" {
		t.Fatalf("expected failed validation, got %+v", broken)
	}

	relative := reader.Validate(ctx, "not a url")
	if relative.Valid || relative.Error == "" {
		t.Fatalf("expected invalid URL to be reported, got %+v", relative)
	}
}
