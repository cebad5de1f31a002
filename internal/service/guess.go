package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"geo-challenge/internal/geofence"
	"geo-challenge/internal/model"
	"geo-challenge/internal/notify"
	"geo-challenge/internal/photo"
)

// Scorer compares a candidate photo with a challenge's reference photo and
// returns a similarity in [0, 1].
type Scorer interface {
	Score(ctx context.Context, referenceRef string, candidate model.Photo) (float64, error)
}

// Announcer publishes solved challenges. Announce must not block.
type Announcer interface {
	Announce(s notify.Solve)
}

// GuessInput is one guess as submitted by a user.
type GuessInput struct {
	ChallengeID string
	UserID      string
	Coordinate  *model.Coordinate
	Photo       *model.Photo
}

// GuessDependencies holds everything GuessService needs.
type GuessDependencies struct {
	Challenges ChallengeStore
	Ledger     *Ledger
	Evaluator  *geofence.Evaluator
	Scorer     Scorer
	Threshold  float64
	Photos     PhotoStore
	Validator  *photo.Validator
	Announcer  Announcer
}

// GuessService evaluates guesses and records them in the ledger.
type GuessService struct {
	challenges ChallengeStore
	ledger     *Ledger
	evaluator  *geofence.Evaluator
	scorer     Scorer
	threshold  float64
	photos     PhotoStore
	validator  *photo.Validator
	announcer  Announcer
}

// NewGuessService creates a new GuessService instance.
func NewGuessService(deps GuessDependencies) *GuessService {
	evaluator := deps.Evaluator
	if evaluator == nil {
		evaluator = geofence.NewEvaluator(geofence.DefaultToleranceMeters)
	}
	announcer := deps.Announcer
	if announcer == nil {
		announcer = notify.Noop{}
	}
	return &GuessService{
		challenges: deps.Challenges,
		ledger:     deps.Ledger,
		evaluator:  evaluator,
		scorer:     deps.Scorer,
		threshold:  deps.Threshold,
		photos:     deps.Photos,
		validator:  deps.Validator,
		announcer:  announcer,
	}
}

// Evaluate judges a guess and appends it to the ledger.
//
// A coordinate decides the verdict through the geofence; a photo alone is
// scored against the challenge photo instead. When both are given the photo
// is stored with the attempt but not scored. Slow work (scoring, upload)
// happens before the ledger append.
func (s *GuessService) Evaluate(ctx context.Context, in GuessInput) (*model.Attempt, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidRequest)
	}

	challenge, err := s.challenges.GetByID(ctx, in.ChallengeID)
	if err != nil {
		return nil, storageError("get challenge", err)
	}

	if in.Coordinate == nil && in.Photo == nil {
		return nil, ErrEmptyGuess
	}
	if in.Coordinate != nil && !geofence.ValidCoordinate(*in.Coordinate) {
		return nil, fmt.Errorf("%w: coordinate (%v, %v) out of range", ErrInvalidRequest, in.Coordinate.Lat, in.Coordinate.Lng)
	}

	var p model.Photo
	if in.Photo != nil {
		p = *in.Photo
		contentType, err := s.validator.Validate(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPhoto, err)
		}
		p.ContentType = contentType
	}

	// Early exit so a solved user does not pay for upload or scoring. The
	// ledger checks again under the pair lock.
	solved, err := s.ledger.HasSolved(ctx, challenge.ID, in.UserID)
	if err != nil {
		return nil, err
	}
	if solved {
		return nil, ErrAlreadySolved
	}

	draft := &model.Attempt{
		ChallengeID: challenge.ID,
		UserID:      in.UserID,
	}

	if in.Coordinate != nil {
		s.judgeCoordinate(draft, challenge, *in.Coordinate)
	} else if err := s.judgePhoto(ctx, draft, challenge, p); err != nil {
		return nil, err
	}

	// The photo is stored only once the guess has a verdict, and removed
	// again if the ledger refuses it.
	var photoKey string
	if in.Photo != nil {
		photoKey = photo.GuessKey(challenge.ID, in.UserID, uuid.NewString())
		ref, err := s.photos.Put(ctx, photoKey, p)
		if err != nil {
			log.Error().Err(err).Str("challenge_id", challenge.ID).Msg("Failed to store guess photo")
			return nil, fmt.Errorf("%w: store photo: %v", ErrStorageFailure, err)
		}
		draft.PhotoRef = &ref
	}

	attempt, err := s.ledger.Append(ctx, draft)
	if err != nil {
		if photoKey != "" {
			discardPhoto(ctx, s.photos, photoKey)
		}
		if !errors.Is(err, ErrAlreadySolved) {
			log.Error().Err(err).
				Str("challenge_id", challenge.ID).
				Str("user_id", in.UserID).
				Msg("Failed to record attempt")
		}
		return nil, err
	}

	log.Debug().
		Str("challenge_id", attempt.ChallengeID).
		Str("user_id", attempt.UserID).
		Int("attempt", attempt.AttemptNumber).
		Str("verdict", string(attempt.Verdict)).
		Msg("Guess evaluated")

	if attempt.Correct() {
		log.Info().
			Str("challenge_id", attempt.ChallengeID).
			Str("user_id", attempt.UserID).
			Int("attempts", attempt.AttemptNumber).
			Msg("Challenge solved")
		s.announcer.Announce(notify.Solve{Challenge: challenge, Attempt: attempt})
	}
	return attempt, nil
}

func (s *GuessService) judgeCoordinate(draft *model.Attempt, challenge *model.Challenge, pt model.Coordinate) {
	res := s.evaluator.Evaluate(challenge.Boundary, pt)
	dist := res.DistanceMeters

	draft.Coordinate = &pt
	draft.DistanceMeters = &dist
	draft.Verdict = model.VerdictIncorrect
	if res.Inside {
		draft.Verdict = model.VerdictCorrect
	}
	draft.Feedback = coordinateFeedback(res)
}

func (s *GuessService) judgePhoto(ctx context.Context, draft *model.Attempt, challenge *model.Challenge, p model.Photo) error {
	if s.scorer == nil {
		return fmt.Errorf("%w: no scorer configured", ErrScoringUnavailable)
	}

	score, err := s.scorer.Score(ctx, challenge.PhotoRef, p)
	if err != nil {
		log.Warn().Err(err).Str("challenge_id", challenge.ID).Msg("Photo scoring failed")
		return fmt.Errorf("%w: %v", ErrScoringUnavailable, err)
	}

	correct := score > s.threshold
	draft.SimilarityScore = &score
	draft.Verdict = model.VerdictIncorrect
	if correct {
		draft.Verdict = model.VerdictCorrect
	}
	draft.Feedback = similarityFeedback(score, s.threshold, correct)
	return nil
}
