// Package model defines the data models for the challenge service.
package model

import "time"

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Ring is a closed sequence of vertices. The closing vertex is implicit:
// the last vertex connects back to the first.
type Ring []Coordinate

// Polygon is the canonical boundary shape. Rings[0] is the outer ring,
// any further rings are holes.
type Polygon struct {
	Rings []Ring `json:"rings"`
}

// Photo is an uploaded image payload before it reaches blob storage.
type Photo struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Challenge is an immutable target region created by a user.
type Challenge struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatorID   string    `json:"creatorId"`
	Boundary    Polygon   `json:"boundary"`
	PhotoRef    string    `json:"photoRef"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Verdict is the outcome of evaluating a guess.
type Verdict string

// Verdict values.
const (
	VerdictCorrect   Verdict = "Correct"
	VerdictIncorrect Verdict = "Incorrect"
)

// Attempt is one recorded guess by a user against a challenge.
// AttemptNumber is assigned by the ledger, starting at 1.
type Attempt struct {
	ChallengeID     string      `json:"challengeId"`
	UserID          string      `json:"userId"`
	AttemptNumber   int         `json:"attemptNumber"`
	SubmittedAt     time.Time   `json:"submittedAt"`
	Coordinate      *Coordinate `json:"coordinate,omitempty"`
	PhotoRef        *string     `json:"photoRef,omitempty"`
	Verdict         Verdict     `json:"verdict"`
	DistanceMeters  *float64    `json:"distanceMeters,omitempty"`
	SimilarityScore *float64    `json:"similarityScore,omitempty"`
	Feedback        string      `json:"feedback"`
}

// Correct reports whether the attempt solved its challenge.
func (a *Attempt) Correct() bool {
	return a.Verdict == VerdictCorrect
}

// LeaderboardEntry is a derived ranking row. It is never stored.
type LeaderboardEntry struct {
	Rank                int       `json:"rank"`
	ChallengeID         string    `json:"challengeId"`
	UserID              string    `json:"userId"`
	WinningAttemptCount int       `json:"winningAttemptCount"`
	SolvedAt            time.Time `json:"solvedAt"`
}

// UserStats summarises a user's activity. It is derived from the challenge
// store and the attempt log and never stored.
type UserStats struct {
	UserID            string `json:"userId"`
	ChallengesCreated int    `json:"challengesCreated"`
	ChallengesSolved  int    `json:"challengesSolved"`
	TotalGuesses      int    `json:"totalGuesses"`
}
