package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func TestGetDelay(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		chatID   int64
		lastSent time.Time
		wantZero bool
	}{
		{
			"Private chat - no delay needed",
			123456789,
			now.Add(-2 * time.Second),
			true,
		},
		{
			"Private chat - delay needed",
			123456789,
			now.Add(-500 * time.Millisecond),
			false,
		},
		{
			"Group chat - no delay needed",
			-123456789,
			now.Add(-4 * time.Second),
			true,
		},
		{
			"Group chat - delay needed",
			-123456789,
			now.Add(-1 * time.Second),
			false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := getDelay(test.chatID, test.lastSent)

			if test.wantZero && got > 0 {
				t.Errorf("Expected zero delay, got %v", got)
			}

			if !test.wantZero && got <= 0 {
				t.Errorf("Expected positive delay, got %v", got)
			}
		})
	}
}

func TestGetChatID(t *testing.T) {
	tests := []struct {
		name   string
		params *bot.SendMessageParams
		want   int64
	}{
		{"int64", &bot.SendMessageParams{ChatID: int64(12345)}, 12345},
		{"int", &bot.SendMessageParams{ChatID: 67890}, 67890},
		{"username", &bot.SendMessageParams{ChatID: "@channel"}, 0},
		{"nil", nil, 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := getChatID(test.params); got != test.want {
				t.Errorf("Expected %d, got %d", test.want, got)
			}
		})
	}
}

type recordingSender struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.texts = append(s.texts, params.Text)

	return &models.Message{ID: len(s.texts), Text: params.Text}, nil
}

func TestSendMessageDeliversInOrder(t *testing.T) {
	sender := &recordingSender{}
	rl := New(sender, slog.New(slog.DiscardHandler))
	t.Cleanup(rl.Stop)

	ctx := context.Background()
	for _, text := range []string{"first", "second"} {
		msg, err := rl.SendMessage(ctx, &bot.SendMessageParams{ChatID: int64(1), Text: text})
		if err != nil {
			t.Fatalf("send %q: %v", text, err)
		}

		if msg.Text != text {
			t.Fatalf("unexpected message %+v", msg)
		}
	}

	if len(sender.texts) != 2 || sender.texts[0] != "first" {
		t.Fatalf("unexpected delivery order %v", sender.texts)
	}
}

func TestSendMessageAfterStop(t *testing.T) {
	rl := New(&recordingSender{}, slog.New(slog.DiscardHandler))
	rl.Stop()

	if _, err := rl.SendMessage(context.Background(), &bot.SendMessageParams{ChatID: int64(1)}); err == nil {
		t.Fatalf("expected stopped limiter to refuse messages")
	}
}
