// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"geo-challenge/internal/model"
)

// Common errors for repository operations.
var (
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrAlreadySolved      = errors.New("challenge already solved by user")
	ErrDuplicateChallenge = errors.New("challenge id already exists")
)

// ChallengeRepository handles challenge persistence in PostgreSQL.
type ChallengeRepository struct {
	pool *pgxpool.Pool
}

// NewChallengeRepository creates a new ChallengeRepository instance.
func NewChallengeRepository(pool *pgxpool.Pool) *ChallengeRepository {
	return &ChallengeRepository{pool: pool}
}

// Create inserts a challenge in a single statement, so it is never visible
// half-written. CreatedAt is taken from the database.
func (r *ChallengeRepository) Create(ctx context.Context, c *model.Challenge) error {
	const query = `
		INSERT INTO challenges (id, title, description, creator_id, boundary, photo_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`

	boundary, err := json.Marshal(c.Boundary)
	if err != nil {
		return fmt.Errorf("failed to encode boundary: %w", err)
	}

	err = r.pool.QueryRow(ctx, query,
		c.ID, c.Title, c.Description, c.CreatorID, string(boundary), c.PhotoRef,
	).Scan(&c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateChallenge
		}
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	return nil
}

// GetByID retrieves a challenge by id.
// Returns ErrChallengeNotFound if the challenge does not exist.
func (r *ChallengeRepository) GetByID(ctx context.Context, id string) (*model.Challenge, error) {
	const query = `
		SELECT id, title, description, creator_id, boundary, photo_ref, created_at
		FROM challenges
		WHERE id = $1
	`

	c, err := scanChallenge(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return c, nil
}

// List retrieves a page of challenges, newest first.
func (r *ChallengeRepository) List(ctx context.Context, offset, limit int) ([]*model.Challenge, error) {
	const query = `
		SELECT id, title, description, creator_id, boundary, photo_ref, created_at
		FROM challenges
		ORDER BY created_at DESC, id
		OFFSET $1
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	challenges := make([]*model.Challenge, 0)
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating challenges: %w", err)
	}
	return challenges, nil
}

// CountByCreator returns how many challenges a user has created.
func (r *ChallengeRepository) CountByCreator(ctx context.Context, creatorID string) (int, error) {
	const query = `SELECT COUNT(*) FROM challenges WHERE creator_id = $1`

	var n int
	if err := r.pool.QueryRow(ctx, query, creatorID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count challenges: %w", err)
	}
	return n, nil
}

func scanChallenge(row pgx.Row) (*model.Challenge, error) {
	var (
		c        model.Challenge
		boundary []byte
	)
	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&c.CreatorID,
		&boundary,
		&c.PhotoRef,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(boundary, &c.Boundary); err != nil {
		return nil, fmt.Errorf("failed to decode boundary: %w", err)
	}
	return &c, nil
}
