package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"geo-challenge/internal/config"
	"geo-challenge/internal/model"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	to   []tele.Recipient
	err  error
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.to = append(f.to, to)
	f.sent = append(f.sent, what.(string))
	return &tele.Message{}, f.err
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func solve(user string, n int) Solve {
	return Solve{
		Challenge: &model.Challenge{ID: "c1", Title: "Old Town"},
		Attempt:   &model.Attempt{ChallengeID: "c1", UserID: user, AttemptNumber: n},
	}
}

func TestTelegramAnnouncer_SendsQueuedSolves(t *testing.T) {
	f := &fakeSender{}
	a := newTelegramAnnouncer(f, -1001)

	a.Announce(solve("alice", 1))
	a.Announce(solve("bob", 3))
	a.Close(time.Second)

	msgs := f.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, `🎯 alice solved "Old Town" in 1 guess!`, msgs[0])
	assert.Equal(t, `🎯 bob solved "Old Town" in 3 guesses!`, msgs[1])
	assert.Equal(t, tele.ChatID(-1001), f.to[0])
}

func TestTelegramAnnouncer_SendErrorDoesNotStopWorker(t *testing.T) {
	f := &fakeSender{err: errors.New("telegram down")}
	a := newTelegramAnnouncer(f, 1)

	a.Announce(solve("alice", 1))
	a.Announce(solve("bob", 2))
	a.Close(time.Second)

	assert.Len(t, f.messages(), 2)
}

func TestTelegramAnnouncer_CloseTwice(t *testing.T) {
	a := newTelegramAnnouncer(&fakeSender{}, 1)
	a.Close(time.Second)
	assert.NotPanics(t, func() { a.Close(time.Second) })
}

func TestNewTelegramAnnouncer_RequiresConfig(t *testing.T) {
	_, err := NewTelegramAnnouncer(config.TelegramConfig{})
	assert.Error(t, err)

	_, err = NewTelegramAnnouncer(config.TelegramConfig{Token: "x"})
	assert.Error(t, err)
}
