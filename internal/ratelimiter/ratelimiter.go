package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
	queueSize       = 1000
)

// Sender delivers one message to Telegram.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type request struct {
	ctx      context.Context
	params   *bot.SendMessageParams
	response chan response
}

type response struct {
	message *models.Message
	err     error
}

// RateLimiter serializes outgoing messages and keeps at least privateChatRate
// (groupChatRate for groups) between two messages to the same chat.
type RateLimiter struct {
	api      Sender
	queue    chan request
	lastSent map[int64]time.Time
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	log      *slog.Logger
}

func New(api Sender, log *slog.Logger) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		api:      api,
		queue:    make(chan request, queueSize),
		lastSent: make(map[int64]time.Time),
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}

	go rl.processQueue()

	return rl
}

// SendMessage queues params and waits until the message is sent, ctx is done
// or the limiter is stopped.
func (rl *RateLimiter) SendMessage(
	ctx context.Context,
	params *bot.SendMessageParams,
) (*models.Message, error) {
	if err := rl.ctx.Err(); err != nil {
		return nil, err
	}

	req := request{
		ctx:      ctx,
		params:   params,
		response: make(chan response, 1),
	}

	select {
	case rl.queue <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-rl.ctx.Done():
		return nil, rl.ctx.Err()
	}

	select {
	case resp := <-req.response:
		return resp.message, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (rl *RateLimiter) Stop() {
	rl.cancel()
}

func (rl *RateLimiter) processQueue() {
	for {
		select {
		case req := <-rl.queue:
			rl.handleRequest(req)
		case <-rl.ctx.Done():
			for {
				select {
				case req := <-rl.queue:
					req.response <- response{err: rl.ctx.Err()}
				default:
					return
				}
			}
		}
	}
}

func (rl *RateLimiter) handleRequest(req request) {
	if err := req.ctx.Err(); err != nil {
		req.response <- response{err: err}
		return
	}

	chatID := getChatID(req.params)

	rl.mu.Lock()
	lastSent, exists := rl.lastSent[chatID]
	rl.mu.Unlock()

	if exists {
		if delay := getDelay(chatID, lastSent); delay > 0 {
			rl.log.DebugContext(req.ctx, "Rate limiting message",
				"chatID", chatID,
				"delay", delay,
				"queueLen", len(rl.queue))

			select {
			case <-time.After(delay):
			case <-req.ctx.Done():
				req.response <- response{err: req.ctx.Err()}
				return
			case <-rl.ctx.Done():
				req.response <- response{err: rl.ctx.Err()}
				return
			}
		}
	}

	message, err := rl.api.SendMessage(req.ctx, req.params)

	rl.mu.Lock()
	rl.lastSent[chatID] = time.Now()
	rl.mu.Unlock()

	req.response <- response{
		message: message,
		err:     err,
	}
}

func getChatID(params *bot.SendMessageParams) int64 {
	if params == nil {
		return 0
	}

	switch id := params.ChatID.(type) {
	case int64:
		return id
	case int:
		return int64(id)
	default:
		return 0
	}
}

func getDelay(
	chatID int64,
	lastSent time.Time,
) time.Duration {
	elapsed := time.Since(lastSent)
	rate := getRate(chatID)

	return max(rate-elapsed, 0)
}

func getRate(chatID int64) time.Duration {
	if chatID < 0 {
		return groupChatRate
	}

	return privateChatRate
}
