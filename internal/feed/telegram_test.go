package feed_test

import (
	"testing"

	"newsdesk/internal/feed"
)

func TestTelegramMessageCanonicalURL(t *testing.T) {
	raw := "https://t.me/example/123?single=1"
	got := feed.TelegramMessageCanonicalURL(raw)
	want := "https://t.me/example/123"
	if got != want {
		t.Fatalf("canonicalized URL mismatch: got %q want %q", got, want)
	}
}

func TestTelegramMessageCanonicalURLInvalid(t *testing.T) {
	raw := "::not a url::"
	if got := feed.TelegramMessageCanonicalURL(raw); got != raw {
		t.Fatalf("expected invalid URLs to be returned verbatim, got %q", got)
	}
}

func TestTelegramMessageCanonicalURLTrimsWhitespace(t *testing.T) {
	raw := "  https://t.me/example/123  "
	got := feed.TelegramMessageCanonicalURL(raw)
	want := "https://t.me/example/123"
	if got != want {
		t.Fatalf("expected trimmed URL, got %q", got)
	}
}

func TestTelegramChannelCanonicalURLTrimsSlug(t *testing.T) {
	got := feed.TelegramChannelCanonicalURL("  example  ")
	want := "https://t.me/s/example"
	if got != want {
		t.Fatalf("expected trimmed slug, got %q", got)
	}
}

func TestTelegramChannelCanonicalURLEmptySlug(t *testing.T) {
	if got := feed.TelegramChannelCanonicalURL("   "); got != "" {
		t.Fatalf("expected empty slug to return empty URL, got %q", got)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "drops query and fragment", raw: " https://Example.COM/a/b?utm=1#top ", want: "https://example.com/a/b"},
		{name: "lowercases scheme", raw: "HTTP://example.com/x", want: "http://example.com/x"},
		{name: "keeps path case", raw: "https://example.com/Post", want: "https://example.com/Post"},
		{name: "empty", raw: "   ", wantErr: true},
		{name: "relative", raw: "/posts/1", wantErr: true},
		{name: "unsupported scheme", raw: "ftp://example.com/file", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := feed.NormalizeURL(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestFindFeedURLs(t *testing.T) {
	text := "add https://example.com/rss and @golang_news please, https://example.com/rss again"

	urls, err := feed.FindFeedURLs(text)
	if err != nil {
		t.Fatalf("find feed URLs: %v", err)
	}

	want := []string{"https://example.com/rss", "https://t.me/s/golang_news"}
	if len(urls) != len(want) {
		t.Fatalf("expected %v, got %v", want, urls)
	}

	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("url %d: got %q want %q", i, urls[i], want[i])
		}
	}
}
