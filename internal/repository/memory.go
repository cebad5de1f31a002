package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"geo-challenge/internal/model"
)

// MemoryChallengeRepository keeps challenges in process memory.
type MemoryChallengeRepository struct {
	mu         sync.RWMutex
	challenges map[string]*model.Challenge
	now        func() time.Time
}

// NewMemoryChallengeRepository creates an empty in-memory challenge store.
func NewMemoryChallengeRepository() *MemoryChallengeRepository {
	return &MemoryChallengeRepository{
		challenges: make(map[string]*model.Challenge),
		now:        time.Now,
	}
}

// Create stores a copy of c and stamps its CreatedAt.
func (r *MemoryChallengeRepository) Create(_ context.Context, c *model.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.challenges[c.ID]; ok {
		return ErrDuplicateChallenge
	}
	c.CreatedAt = r.now().UTC()
	stored := *c
	r.challenges[c.ID] = &stored
	return nil
}

// GetByID returns a copy of the challenge or ErrChallengeNotFound.
func (r *MemoryChallengeRepository) GetByID(_ context.Context, id string) (*model.Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.challenges[id]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	out := *c
	return &out, nil
}

// List returns a page of challenges, newest first.
func (r *MemoryChallengeRepository) List(_ context.Context, offset, limit int) ([]*model.Challenge, error) {
	r.mu.RLock()
	all := make([]*model.Challenge, 0, len(r.challenges))
	for _, c := range r.challenges {
		cp := *c
		all = append(all, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return []*model.Challenge{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// CountByCreator returns how many challenges a user has created.
func (r *MemoryChallengeRepository) CountByCreator(_ context.Context, creatorID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, c := range r.challenges {
		if c.CreatorID == creatorID {
			n++
		}
	}
	return n, nil
}

func pairKey(challengeID, userID string) string {
	return challengeID + "\x00" + userID
}

// MemoryAttemptRepository keeps the attempt log in process memory. A single
// mutex serialises appends, so numbering and the solved check are atomic.
type MemoryAttemptRepository struct {
	mu         sync.RWMutex
	challenges *MemoryChallengeRepository
	attempts   map[string][]*model.Attempt
	now        func() time.Time
}

// NewMemoryAttemptRepository creates an empty attempt log. When challenges
// is non-nil, appends for unknown challenges fail with ErrChallengeNotFound.
func NewMemoryAttemptRepository(challenges *MemoryChallengeRepository) *MemoryAttemptRepository {
	return &MemoryAttemptRepository{
		challenges: challenges,
		attempts:   make(map[string][]*model.Attempt),
		now:        time.Now,
	}
}

// Append assigns the next attempt number and records the attempt.
func (r *MemoryAttemptRepository) Append(ctx context.Context, draft *model.Attempt) (*model.Attempt, error) {
	if r.challenges != nil {
		if _, err := r.challenges.GetByID(ctx, draft.ChallengeID); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey(draft.ChallengeID, draft.UserID)
	log := r.attempts[key]
	for _, a := range log {
		if a.Correct() {
			return nil, ErrAlreadySolved
		}
	}

	a := *draft
	a.AttemptNumber = len(log) + 1
	a.SubmittedAt = r.now().UTC()
	r.attempts[key] = append(log, &a)

	out := a
	return &out, nil
}

// ListForUser returns a user's attempts on a challenge by attempt number.
func (r *MemoryAttemptRepository) ListForUser(_ context.Context, challengeID, userID string) ([]*model.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log := r.attempts[pairKey(challengeID, userID)]
	out := make([]*model.Attempt, 0, len(log))
	for _, a := range log {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// ListCorrect returns every Correct attempt for a challenge.
func (r *MemoryAttemptRepository) ListCorrect(_ context.Context, challengeID string) ([]*model.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Attempt, 0)
	for _, log := range r.attempts {
		for _, a := range log {
			if a.ChallengeID == challengeID && a.Correct() {
				cp := *a
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

// CountCorrect returns how many users have solved a challenge.
func (r *MemoryAttemptRepository) CountCorrect(_ context.Context, challengeID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, log := range r.attempts {
		for _, a := range log {
			if a.ChallengeID == challengeID && a.Correct() {
				n++
			}
		}
	}
	return n, nil
}

// UserTotals returns a user's attempt count and solved challenge count.
func (r *MemoryAttemptRepository) UserTotals(_ context.Context, userID string) (guesses, solved int, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, log := range r.attempts {
		for _, a := range log {
			if a.UserID != userID {
				continue
			}
			guesses++
			if a.Correct() {
				solved++
			}
		}
	}
	return guesses, solved, nil
}

// HasSolved reports whether the user already has a Correct attempt.
func (r *MemoryAttemptRepository) HasSolved(_ context.Context, challengeID, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.attempts[pairKey(challengeID, userID)] {
		if a.Correct() {
			return true, nil
		}
	}
	return false, nil
}
