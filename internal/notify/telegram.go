// Package notify announces solved challenges to a Telegram chat.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"geo-challenge/internal/config"
	"geo-challenge/internal/model"
)

const queueSize = 64

// sender is the subset of *tele.Bot used for announcements.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Solve is a solved challenge waiting to be announced.
type Solve struct {
	Challenge *model.Challenge
	Attempt   *model.Attempt
}

// TelegramAnnouncer posts solve messages from a background worker so
// callers never wait on Telegram.
type TelegramAnnouncer struct {
	bot    sender
	chat   tele.ChatID
	queue  chan Solve
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// NewTelegramAnnouncer creates an announcer for cfg and starts its worker.
func NewTelegramAnnouncer(cfg config.TelegramConfig) (*TelegramAnnouncer, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}

	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return newTelegramAnnouncer(b, cfg.ChatID), nil
}

func newTelegramAnnouncer(b sender, chatID int64) *TelegramAnnouncer {
	a := &TelegramAnnouncer{
		bot:   b,
		chat:  tele.ChatID(chatID),
		queue: make(chan Solve, queueSize),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

// Announce queues a solve. When the queue is full or the announcer is
// closed the solve is dropped.
func (a *TelegramAnnouncer) Announce(s Solve) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- s:
	default:
		log.Warn().
			Str("challenge_id", s.Attempt.ChallengeID).
			Str("user_id", s.Attempt.UserID).
			Msg("Announcement queue full, dropping solve")
	}
}

// Close stops accepting solves and waits up to timeout for the queue to drain.
func (a *TelegramAnnouncer) Close(timeout time.Duration) {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
	case <-time.After(timeout):
		log.Warn().Msg("Announcement queue not drained before shutdown")
	}
}

func (a *TelegramAnnouncer) run() {
	defer close(a.done)
	for s := range a.queue {
		if _, err := a.bot.Send(a.chat, FormatSolve(s)); err != nil {
			log.Error().Err(err).
				Str("challenge_id", s.Attempt.ChallengeID).
				Str("user_id", s.Attempt.UserID).
				Msg("Failed to announce solve")
		}
	}
}

// FormatSolve renders the announcement text. It never includes the
// boundary or the guessed coordinate.
func FormatSolve(s Solve) string {
	guesses := "guesses"
	if s.Attempt.AttemptNumber == 1 {
		guesses = "guess"
	}
	return fmt.Sprintf("🎯 %s solved \"%s\" in %d %s!",
		s.Attempt.UserID, s.Challenge.Title, s.Attempt.AttemptNumber, guesses)
}

// Noop discards announcements.
type Noop struct{}

// Announce does nothing.
func (Noop) Announce(Solve) {}

// Close does nothing.
func (Noop) Close(time.Duration) {}
