package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"geo-challenge/internal/geofence"
	"geo-challenge/internal/model"
	"geo-challenge/internal/photo"
)

// Pagination bounds for List.
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
	maxTitleLength   = 200
)

// ChallengeStore persists challenges.
type ChallengeStore interface {
	Create(ctx context.Context, c *model.Challenge) error
	GetByID(ctx context.Context, id string) (*model.Challenge, error)
	List(ctx context.Context, offset, limit int) ([]*model.Challenge, error)
}

// PhotoStore uploads photos and returns an opaque reference.
type PhotoStore interface {
	Put(ctx context.Context, key string, p model.Photo) (string, error)
	Delete(ctx context.Context, key string) error
}

// CreateChallengeInput is a challenge as submitted by its creator.
type CreateChallengeInput struct {
	Title       string
	Description string
	CreatorID   string
	Boundary    model.Polygon
	Photo       *model.Photo
}

// ChallengeService handles challenge creation and lookup.
type ChallengeService struct {
	challenges ChallengeStore
	photos     PhotoStore
	validator  *photo.Validator
}

// NewChallengeService creates a new ChallengeService instance.
func NewChallengeService(challenges ChallengeStore, photos PhotoStore, validator *photo.Validator) *ChallengeService {
	return &ChallengeService{
		challenges: challenges,
		photos:     photos,
		validator:  validator,
	}
}

// Create validates and stores a new challenge. The boundary is normalized
// and checked but never repaired; the photo is uploaded before the record
// is written, so a stored challenge always has a photo.
func (s *ChallengeService) Create(ctx context.Context, in CreateChallengeInput) (*model.Challenge, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidRequest, maxTitleLength)
	}
	if in.CreatorID == "" {
		return nil, fmt.Errorf("%w: creator is required", ErrInvalidRequest)
	}

	boundary := geofence.Normalize(in.Boundary)
	if err := geofence.Validate(boundary); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBoundary, err)
	}

	if in.Photo == nil {
		return nil, fmt.Errorf("%w: photo is required", ErrInvalidPhoto)
	}
	p := *in.Photo
	contentType, err := s.validator.Validate(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPhoto, err)
	}
	p.ContentType = contentType

	id := uuid.NewString()
	ref, err := s.photos.Put(ctx, photo.ChallengeKey(id), p)
	if err != nil {
		log.Error().Err(err).Str("challenge_id", id).Msg("Failed to store challenge photo")
		return nil, fmt.Errorf("%w: store photo: %v", ErrStorageFailure, err)
	}

	c := &model.Challenge{
		ID:          id,
		Title:       title,
		Description: in.Description,
		CreatorID:   in.CreatorID,
		Boundary:    boundary,
		PhotoRef:    ref,
	}
	if err := s.challenges.Create(ctx, c); err != nil {
		discardPhoto(ctx, s.photos, photo.ChallengeKey(id))
		return nil, storageError("create challenge", err)
	}

	log.Info().
		Str("challenge_id", c.ID).
		Str("creator_id", c.CreatorID).
		Int("vertices", len(boundary.Rings[0])).
		Msg("Challenge created")
	return c, nil
}

// discardPhoto removes a stored photo whose record was never written.
// Failures only leave an orphaned blob, so they are logged and dropped.
func discardPhoto(ctx context.Context, photos PhotoStore, key string) {
	if err := photos.Delete(context.WithoutCancel(ctx), key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to delete orphaned photo")
	}
}

// Get returns a challenge by id.
func (s *ChallengeService) Get(ctx context.Context, id string) (*model.Challenge, error) {
	c, err := s.challenges.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("get challenge", err)
	}
	return c, nil
}

// List returns a page of challenges. Out-of-range paging values are clamped.
func (s *ChallengeService) List(ctx context.Context, offset, limit int) ([]*model.Challenge, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	challenges, err := s.challenges.List(ctx, offset, limit)
	if err != nil {
		return nil, storageError("list challenges", err)
	}
	return challenges, nil
}
