package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "challenges table",
		sql: `
		CREATE TABLE IF NOT EXISTS challenges (
			id TEXT PRIMARY KEY,
			title VARCHAR(200) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			creator_id TEXT NOT NULL,
			boundary JSONB NOT NULL,
			photo_ref TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_challenges_created ON challenges(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_challenges_creator ON challenges(creator_id);
	`,
	},
	{
		// attempt_number is part of the primary key so a duplicate number for
		// the same pair can never commit, and at most one Correct row per pair.
		name: "attempts table",
		sql: `
		CREATE TABLE IF NOT EXISTS attempts (
			challenge_id TEXT NOT NULL REFERENCES challenges(id),
			user_id TEXT NOT NULL,
			attempt_number INT NOT NULL CHECK (attempt_number > 0),
			submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			lat DOUBLE PRECISION,
			lng DOUBLE PRECISION,
			photo_ref TEXT,
			verdict VARCHAR(16) NOT NULL,
			distance_meters DOUBLE PRECISION,
			similarity_score DOUBLE PRECISION,
			feedback TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (challenge_id, user_id, attempt_number)
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_one_correct
			ON attempts(challenge_id, user_id) WHERE verdict = 'Correct';
		CREATE INDEX IF NOT EXISTS idx_attempts_user ON attempts(user_id);
	`,
	},
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")
	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("step", i+1).Str("name", m.name).Msg("Migration applied")
	}
	log.Info().Msg("All migrations completed successfully")
	return nil
}
