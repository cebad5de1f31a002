package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"geo-challenge/internal/model"
	"geo-challenge/internal/service"
)

// ChallengeService is the challenge store as seen by the API.
type ChallengeService interface {
	Create(ctx context.Context, in service.CreateChallengeInput) (*model.Challenge, error)
	Get(ctx context.Context, id string) (*model.Challenge, error)
	List(ctx context.Context, offset, limit int) ([]*model.Challenge, error)
}

// Ranker produces leaderboards.
type Ranker interface {
	Rank(ctx context.Context, challengeID string, limit int) ([]model.LeaderboardEntry, error)
}

// ChallengeHandler serves challenge creation, lookup and leaderboards.
type ChallengeHandler struct {
	challenges   ChallengeService
	ranker       Ranker
	maxBodyBytes int64
	defaultLimit int
}

// NewChallengeHandler creates a new ChallengeHandler. maxPhotoBytes bounds
// the accepted request body; defaultLimit is the leaderboard size when the
// caller gives none.
func NewChallengeHandler(challenges ChallengeService, ranker Ranker, maxPhotoBytes int64, defaultLimit int) *ChallengeHandler {
	return &ChallengeHandler{
		challenges:   challenges,
		ranker:       ranker,
		maxBodyBytes: bodyLimit(maxPhotoBytes),
		defaultLimit: defaultLimit,
	}
}

type createChallengeRequest struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	CreatorID     string          `json:"creatorId"`
	Boundary      json.RawMessage `json:"boundary"`
	Photo         string          `json:"photo"`
	PhotoFilename string          `json:"photoFilename"`
}

// Create handles POST /challenges.
func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	in, err := h.decodeCreate(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if id, ok := UserIDFromContext(r.Context()); ok {
		in.CreatorID = id
	}

	c, err := h.challenges.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *ChallengeHandler) decodeCreate(r *http.Request) (service.CreateChallengeInput, error) {
	var in service.CreateChallengeInput

	if isMultipart(r) {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return in, fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
		}
		in.Title = formValue(r.MultipartForm, "title")
		in.Description = formValue(r.MultipartForm, "description")
		in.CreatorID = formValue(r.MultipartForm, "creatorId")

		boundary, err := ParseBoundary(json.RawMessage(formValue(r.MultipartForm, "boundary")))
		if err != nil {
			return in, fmt.Errorf("%w: %v", service.ErrInvalidBoundary, err)
		}
		in.Boundary = boundary

		in.Photo, err = formPhoto(r)
		return in, err
	}

	var req createChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return in, fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
	}
	in.Title = req.Title
	in.Description = req.Description
	in.CreatorID = req.CreatorID

	boundary, err := ParseBoundary(req.Boundary)
	if err != nil {
		return in, fmt.Errorf("%w: %v", service.ErrInvalidBoundary, err)
	}
	in.Boundary = boundary

	in.Photo, err = decodePhoto(req.Photo, req.PhotoFilename)
	return in, err
}

// List handles GET /challenges.
func (h *ChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", service.DefaultListLimit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	challenges, err := h.challenges.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, challenges)
}

// Get handles GET /challenges/{id}.
func (h *ChallengeHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.challenges.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Leaderboard handles GET /challenges/{id}/leaderboard.
func (h *ChallengeHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", h.defaultLimit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if limit < 0 {
		writeServiceError(w, r, fmt.Errorf("%w: limit must not be negative", service.ErrInvalidRequest))
		return
	}

	entries, err := h.ranker.Rank(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// bodyLimit allows for base64 expansion of the photo plus form fields.
func bodyLimit(maxPhotoBytes int64) int64 {
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = 16 << 20
	}
	return maxPhotoBytes*4/3 + 1<<20
}
