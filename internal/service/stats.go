package service

import (
	"context"
	"fmt"

	"geo-challenge/internal/model"
)

// CreatorCounter counts challenges per creator.
type CreatorCounter interface {
	CountByCreator(ctx context.Context, creatorID string) (int, error)
}

// GuessCounter totals a user's attempts across challenges.
type GuessCounter interface {
	UserTotals(ctx context.Context, userID string) (guesses, solved int, err error)
}

// StatsService reports per-user activity.
type StatsService struct {
	challenges CreatorCounter
	attempts   GuessCounter
}

// NewStatsService creates a new StatsService instance.
func NewStatsService(challenges CreatorCounter, attempts GuessCounter) *StatsService {
	return &StatsService{challenges: challenges, attempts: attempts}
}

// Stats returns a user's totals. Unknown users have all-zero stats.
func (s *StatsService) Stats(ctx context.Context, userID string) (*model.UserStats, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidRequest)
	}

	created, err := s.challenges.CountByCreator(ctx, userID)
	if err != nil {
		return nil, storageError("count challenges", err)
	}
	guesses, solved, err := s.attempts.UserTotals(ctx, userID)
	if err != nil {
		return nil, storageError("count attempts", err)
	}

	return &model.UserStats{
		UserID:            userID,
		ChallengesCreated: created,
		ChallengesSolved:  solved,
		TotalGuesses:      guesses,
	}, nil
}
