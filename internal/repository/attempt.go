package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"geo-challenge/internal/model"
)

// Postgres error codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const attemptColumns = `challenge_id, user_id, attempt_number, submitted_at, lat, lng,
	photo_ref, verdict, distance_meters, similarity_score, feedback`

// AttemptRepository is the append-only attempt log in PostgreSQL.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository instance.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Append assigns the next attempt number for the draft's (challenge, user)
// pair and inserts it. The solved check, numbering and insert run in one
// transaction under a pair-scoped advisory lock keyed by the two ids; the
// primary key and the one-correct index back that up across processes.
func (r *AttemptRepository) Append(ctx context.Context, draft *model.Attempt) (*model.Attempt, error) {
	const lockQuery = `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`
	const stateQuery = `
		SELECT COALESCE(MAX(attempt_number), 0), COALESCE(BOOL_OR(verdict = 'Correct'), false)
		FROM attempts
		WHERE challenge_id = $1 AND user_id = $2
	`
	const insertQuery = `
		INSERT INTO attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, NOW(), $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + attemptColumns

	var out *model.Attempt
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockQuery, draft.ChallengeID, draft.UserID); err != nil {
			return fmt.Errorf("failed to lock attempt pair: %w", err)
		}

		var (
			last   int
			solved bool
		)
		if err := tx.QueryRow(ctx, stateQuery, draft.ChallengeID, draft.UserID).Scan(&last, &solved); err != nil {
			return fmt.Errorf("failed to read attempt state: %w", err)
		}
		if solved {
			return ErrAlreadySolved
		}

		var lat, lng *float64
		if draft.Coordinate != nil {
			lat, lng = &draft.Coordinate.Lat, &draft.Coordinate.Lng
		}

		row := tx.QueryRow(ctx, insertQuery,
			draft.ChallengeID,
			draft.UserID,
			last+1,
			lat,
			lng,
			draft.PhotoRef,
			string(draft.Verdict),
			draft.DistanceMeters,
			draft.SimilarityScore,
			draft.Feedback,
		)
		a, err := scanAttempt(row)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				if pgErr.ConstraintName == "idx_attempts_one_correct" {
					return nil, ErrAlreadySolved
				}
			case pgForeignKeyViolation:
				return nil, ErrChallengeNotFound
			}
		}
		if errors.Is(err, ErrAlreadySolved) {
			return nil, ErrAlreadySolved
		}
		return nil, fmt.Errorf("failed to append attempt: %w", err)
	}
	return out, nil
}

// ListForUser returns a user's attempts on a challenge by attempt number.
func (r *AttemptRepository) ListForUser(ctx context.Context, challengeID, userID string) ([]*model.Attempt, error) {
	const query = `
		SELECT ` + attemptColumns + `
		FROM attempts
		WHERE challenge_id = $1 AND user_id = $2
		ORDER BY attempt_number ASC
	`
	return r.query(ctx, query, challengeID, userID)
}

// ListCorrect returns every Correct attempt for a challenge. There is at
// most one per user.
func (r *AttemptRepository) ListCorrect(ctx context.Context, challengeID string) ([]*model.Attempt, error) {
	const query = `
		SELECT ` + attemptColumns + `
		FROM attempts
		WHERE challenge_id = $1 AND verdict = 'Correct'
		ORDER BY attempt_number ASC, submitted_at ASC, user_id ASC
	`
	return r.query(ctx, query, challengeID)
}

// CountCorrect returns how many users have solved a challenge. Correct rows
// are never removed, so the count only grows.
func (r *AttemptRepository) CountCorrect(ctx context.Context, challengeID string) (int, error) {
	const query = `SELECT COUNT(*) FROM attempts WHERE challenge_id = $1 AND verdict = 'Correct'`

	var n int
	if err := r.pool.QueryRow(ctx, query, challengeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count solves: %w", err)
	}
	return n, nil
}

// UserTotals returns a user's attempt count and solved challenge count
// across all challenges.
func (r *AttemptRepository) UserTotals(ctx context.Context, userID string) (guesses, solved int, err error) {
	const query = `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE verdict = 'Correct')
		FROM attempts
		WHERE user_id = $1
	`

	if err := r.pool.QueryRow(ctx, query, userID).Scan(&guesses, &solved); err != nil {
		return 0, 0, fmt.Errorf("failed to count user attempts: %w", err)
	}
	return guesses, solved, nil
}

// HasSolved reports whether the user already has a Correct attempt.
func (r *AttemptRepository) HasSolved(ctx context.Context, challengeID, userID string) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM attempts
			WHERE challenge_id = $1 AND user_id = $2 AND verdict = 'Correct'
		)
	`

	var solved bool
	if err := r.pool.QueryRow(ctx, query, challengeID, userID).Scan(&solved); err != nil {
		return false, fmt.Errorf("failed to check solved state: %w", err)
	}
	return solved, nil
}

func (r *AttemptRepository) query(ctx context.Context, query string, args ...any) ([]*model.Attempt, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]*model.Attempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}
	return attempts, nil
}

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	var (
		a        model.Attempt
		lat, lng *float64
		verdict  string
	)
	err := row.Scan(
		&a.ChallengeID,
		&a.UserID,
		&a.AttemptNumber,
		&a.SubmittedAt,
		&lat,
		&lng,
		&a.PhotoRef,
		&verdict,
		&a.DistanceMeters,
		&a.SimilarityScore,
		&a.Feedback,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan attempt: %w", err)
	}
	a.Verdict = model.Verdict(verdict)
	if lat != nil && lng != nil {
		a.Coordinate = &model.Coordinate{Lat: *lat, Lng: *lng}
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
