package service

import (
	"context"
	"sort"
	"sync"

	"geo-challenge/internal/model"
)

// SolveLog is the read side of the attempt log the leaderboard needs.
// CountCorrect must never decrease for a challenge.
type SolveLog interface {
	ListCorrect(ctx context.Context, challengeID string) ([]*model.Attempt, error)
	CountCorrect(ctx context.Context, challengeID string) (int, error)
}

// RankingService derives per-challenge leaderboards from the attempt log.
// A cached leaderboard is tagged with the solve count it was built from and
// is rebuilt whenever the store reports a different count, so a solve
// committed by any process is visible to the next read.
type RankingService struct {
	challenges ChallengeStore
	solves     SolveLog

	mu    sync.Mutex
	cache map[string]board
}

type board struct {
	solves  int
	entries []model.LeaderboardEntry
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(challenges ChallengeStore, solves SolveLog) *RankingService {
	return &RankingService{
		challenges: challenges,
		solves:     solves,
		cache:      make(map[string]board),
	}
}

// Rank returns the leaderboard for a challenge, best first. A positive
// limit truncates the result.
func (s *RankingService) Rank(ctx context.Context, challengeID string, limit int) ([]model.LeaderboardEntry, error) {
	count, err := s.solves.CountCorrect(ctx, challengeID)
	if err != nil {
		return nil, storageError("count solves", err)
	}

	s.mu.Lock()
	cached, ok := s.cache[challengeID]
	s.mu.Unlock()

	entries := cached.entries
	if !ok || cached.solves != count {
		if _, err := s.challenges.GetByID(ctx, challengeID); err != nil {
			return nil, storageError("get challenge", err)
		}
		correct, err := s.solves.ListCorrect(ctx, challengeID)
		if err != nil {
			return nil, storageError("list solves", err)
		}
		entries = BuildLeaderboard(challengeID, correct)

		s.mu.Lock()
		// Never replace a newer board with one built from an older read.
		if cur, ok := s.cache[challengeID]; !ok || cur.solves <= len(correct) {
			s.cache[challengeID] = board{solves: len(correct), entries: entries}
		}
		s.mu.Unlock()
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return append([]model.LeaderboardEntry(nil), entries...), nil
}

// BuildLeaderboard ranks users by the attempt number of their first Correct
// attempt, then by solve time, then by user id. Non-Correct attempts and
// attempts for other challenges are ignored.
func BuildLeaderboard(challengeID string, attempts []*model.Attempt) []model.LeaderboardEntry {
	best := make(map[string]*model.Attempt)
	for _, a := range attempts {
		if a.ChallengeID != challengeID || !a.Correct() {
			continue
		}
		if cur, ok := best[a.UserID]; !ok || a.AttemptNumber < cur.AttemptNumber {
			best[a.UserID] = a
		}
	}

	entries := make([]model.LeaderboardEntry, 0, len(best))
	for _, a := range best {
		entries = append(entries, model.LeaderboardEntry{
			ChallengeID:         challengeID,
			UserID:              a.UserID,
			WinningAttemptCount: a.AttemptNumber,
			SolvedAt:            a.SubmittedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.WinningAttemptCount != b.WinningAttemptCount {
			return a.WinningAttemptCount < b.WinningAttemptCount
		}
		if !a.SolvedAt.Equal(b.SolvedAt) {
			return a.SolvedAt.Before(b.SolvedAt)
		}
		return a.UserID < b.UserID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
