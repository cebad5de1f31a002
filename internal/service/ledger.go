package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geo-challenge/internal/model"
	"geo-challenge/internal/pkg/lock"
)

// DefaultLockTimeout bounds how long an append waits for its pair.
const DefaultLockTimeout = 5 * time.Second

// AttemptStore is the durable, append-only attempt log. Append must assign
// the next attempt number and reject pairs that already have a Correct
// attempt, atomically.
type AttemptStore interface {
	Append(ctx context.Context, draft *model.Attempt) (*model.Attempt, error)
	ListForUser(ctx context.Context, challengeID, userID string) ([]*model.Attempt, error)
	HasSolved(ctx context.Context, challengeID, userID string) (bool, error)
}

// Ledger is the single writer of attempt numbers. Appends for one
// (challenge, user) pair are serialised in process; the store repeats the
// check so several processes can share one database.
type Ledger struct {
	attempts    AttemptStore
	locks       *lock.KeyLock
	lockTimeout time.Duration
}

// NewLedger creates a new Ledger instance. A non-positive lockTimeout
// falls back to DefaultLockTimeout.
func NewLedger(attempts AttemptStore, locks *lock.KeyLock, lockTimeout time.Duration) *Ledger {
	if locks == nil {
		locks = lock.NewKeyLock()
	}
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Ledger{
		attempts:    attempts,
		locks:       locks,
		lockTimeout: lockTimeout,
	}
}

// Append records draft and returns it with its attempt number and
// submission time. The draft's own AttemptNumber is ignored. Waiting for a
// busy pair ends with ErrStorageFailure after the lock timeout or when ctx
// is done.
func (l *Ledger) Append(ctx context.Context, draft *model.Attempt) (*model.Attempt, error) {
	var out *model.Attempt
	err := l.locks.WithLockContext(ctx, pairKey(draft.ChallengeID, draft.UserID), l.lockTimeout, func() error {
		d := *draft
		d.AttemptNumber = 0
		a, err := l.attempts.Append(ctx, &d)
		if err != nil {
			return storageError("append attempt", err)
		}
		out = a
		return nil
	})
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, lock.ErrLockTimeout):
		return nil, fmt.Errorf("%w: attempt pair busy for %s", ErrStorageFailure, l.lockTimeout)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: waiting for attempt pair: %w", ErrStorageFailure, err)
	default:
		return nil, err
	}
}

// ListForUser returns a user's attempts on a challenge in order.
func (l *Ledger) ListForUser(ctx context.Context, challengeID, userID string) ([]*model.Attempt, error) {
	attempts, err := l.attempts.ListForUser(ctx, challengeID, userID)
	if err != nil {
		return nil, storageError("list attempts", err)
	}
	return attempts, nil
}

// HasSolved reports whether the user already solved the challenge.
func (l *Ledger) HasSolved(ctx context.Context, challengeID, userID string) (bool, error) {
	solved, err := l.attempts.HasSolved(ctx, challengeID, userID)
	if err != nil {
		return false, storageError("check solved", err)
	}
	return solved, nil
}

func pairKey(challengeID, userID string) string {
	return challengeID + "\x00" + userID
}
