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

// GuessService evaluates guesses.
type GuessService interface {
	Evaluate(ctx context.Context, in service.GuessInput) (*model.Attempt, error)
}

// AttemptLister reads a user's attempt history.
type AttemptLister interface {
	ListForUser(ctx context.Context, challengeID, userID string) ([]*model.Attempt, error)
}

// GuessHandler serves guess submission and attempt history.
type GuessHandler struct {
	challenges   ChallengeService
	guesses      GuessService
	attempts     AttemptLister
	maxBodyBytes int64
}

// NewGuessHandler creates a new GuessHandler.
func NewGuessHandler(challenges ChallengeService, guesses GuessService, attempts AttemptLister, maxPhotoBytes int64) *GuessHandler {
	return &GuessHandler{
		challenges:   challenges,
		guesses:      guesses,
		attempts:     attempts,
		maxBodyBytes: bodyLimit(maxPhotoBytes),
	}
}

type guessRequest struct {
	UserID        string            `json:"userId"`
	Coordinate    *model.Coordinate `json:"coordinate"`
	Photo         string            `json:"photo"`
	PhotoFilename string            `json:"photoFilename"`
}

// Submit handles POST /challenges/{id}/guess.
func (h *GuessHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	in, err := h.decodeGuess(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	in.ChallengeID = chi.URLParam(r, "id")
	if id, ok := UserIDFromContext(r.Context()); ok {
		in.UserID = id
	}

	attempt, err := h.guesses.Evaluate(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *GuessHandler) decodeGuess(r *http.Request) (service.GuessInput, error) {
	var in service.GuessInput

	if isMultipart(r) {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return in, fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
		}
		in.UserID = formValue(r.MultipartForm, "userId")

		var err error
		if in.Coordinate, err = formCoordinate(r.MultipartForm); err != nil {
			return in, err
		}
		in.Photo, err = formPhoto(r)
		return in, err
	}

	var req guessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return in, fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
	}
	in.UserID = req.UserID
	in.Coordinate = req.Coordinate

	var err error
	in.Photo, err = decodePhoto(req.Photo, req.PhotoFilename)
	return in, err
}

// Attempts handles GET /challenges/{id}/attempts?userId=.
func (h *GuessHandler) Attempts(w http.ResponseWriter, r *http.Request) {
	challengeID := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("userId")
	if id, ok := UserIDFromContext(r.Context()); ok {
		userID = id
	}
	if userID == "" {
		writeServiceError(w, r, fmt.Errorf("%w: userId is required", service.ErrInvalidRequest))
		return
	}

	if _, err := h.challenges.Get(r.Context(), challengeID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	attempts, err := h.attempts.ListForUser(r.Context(), challengeID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}
