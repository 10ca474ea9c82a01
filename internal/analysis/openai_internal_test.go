package analysis

import (
	"strings"
	"testing"
)

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    Result
		wantErr bool
	}{
		{
			name: "plain json",
			text: `{"summary": "Go 1.26 ships.", "relevance": 0.8}`,
			want: Result{Summary: "Go 1.26 ships.", Relevance: 0.8},
		},
		{
			name: "fenced json",
			text: "```json\n{\"summary\": \" short \", \"relevance\": 0}\n```",
			want: Result{Summary: "short", Relevance: 0},
		},
		{
			name: "bare fence",
			text: "```\n{\"summary\": \"s\", \"relevance\": 1}\n```",
			want: Result{Summary: "s", Relevance: 1},
		},
		{name: "not json", text: "I think it is relevant", wantErr: true},
		{name: "empty summary", text: `{"summary": " ", "relevance": 0.5}`, wantErr: true},
		{name: "relevance too high", text: `{"summary": "s", "relevance": 1.5}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResult(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("short", 10); got != "short" {
		t.Fatalf("expected untouched text, got %q", got)
	}

	got := truncateRunes(strings.Repeat("ж", 12), 10)
	if got != strings.Repeat("ж", 10)+"..." {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}

func TestWriteArticleTruncatesBody(t *testing.T) {
	b := strings.Builder{}
	writeArticle(&b, Input{Title: "t", Body: "abcdef", SourceName: "src"}, 3)

	out := b.String()
	if !strings.Contains(out, "Source:\nsrc\n") || !strings.HasSuffix(out, "Content:\nabc...") {
		t.Fatalf("unexpected prompt %q", out)
	}

	if strings.Contains(out, "URL:") {
		t.Fatalf("expected empty URL to be omitted")
	}
}
