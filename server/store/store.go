package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"herocoach/server/engine"
)

//go:embed schema.sql sqlite_schema.sql
var schema embed.FS

// DB is the Postgres backend. Documents are stored as JSONB next to a few
// columns that are handy for ad hoc queries.
type DB struct{ *pgxpool.Pool }

func Open(ctx context.Context, dsn string) (*DB, error) {
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{p}, nil
}

func (db *DB) Close() error                   { db.Pool.Close(); return nil }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

func (db *DB) LoadProfile(ctx context.Context, playerID string) (*engine.PlayerProfile, error) {
	var doc []byte
	err := db.QueryRow(ctx, `SELECT doc FROM player_profiles WHERE player_id = $1`, playerID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return decodeProfile(doc)
}

func (db *DB) SaveProfile(ctx context.Context, playerID string, p *engine.PlayerProfile) error {
	doc, err := encodeProfile(p)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO player_profiles(player_id, doc, skill, sessions, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (player_id) DO UPDATE
		   SET doc = EXCLUDED.doc,
		       skill = EXCLUDED.skill,
		       sessions = EXCLUDED.sessions,
		       updated_at = now()
	`, playerID, doc, p.Skill, p.SessionCount)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (db *DB) LoadRecommendation(ctx context.Context, playerID string) (*engine.Recommendation, error) {
	var doc []byte
	err := db.QueryRow(ctx, `SELECT doc FROM player_recommendations WHERE player_id = $1`, playerID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load recommendation: %w", err)
	}
	return decodeRecommendation(doc)
}

func (db *DB) SaveRecommendation(ctx context.Context, playerID string, r *engine.Recommendation) error {
	doc, err := encodeRecommendation(r)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO player_recommendations(player_id, doc, game_id, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (player_id) DO UPDATE
		   SET doc = EXCLUDED.doc,
		       game_id = EXCLUDED.game_id,
		       updated_at = now()
	`, playerID, doc, r.GameID)
	if err != nil {
		return fmt.Errorf("save recommendation: %w", err)
	}
	return nil
}

// RecordSession appends one history row. Replaying the same session is a no-op.
func (db *DB) RecordSession(ctx context.Context, rec engine.SessionRecord) error {
	_, err := db.Exec(ctx, `
		INSERT INTO session_history(
			player_id, session_id, game_id, run_mode, difficulty,
			skill_before, skill_after, perf_score, grade, flag_count, ended_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (player_id, session_id) DO NOTHING
	`, rec.PlayerID, rec.SessionID, rec.GameID, string(rec.RunMode), string(rec.Difficulty),
		rec.SkillBefore, rec.SkillAfter, rec.PerfScore, string(rec.Grade), rec.FlagCount, rec.EndedAt)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// History returns up to limit sessions, newest first.
func (db *DB) History(ctx context.Context, playerID string, limit int) ([]engine.SessionRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := db.Query(ctx, `
		SELECT session_id, game_id, run_mode, difficulty, skill_before, skill_after,
		       perf_score, grade, flag_count, ended_at
		  FROM session_history
		 WHERE player_id = $1
		 ORDER BY ended_at DESC, id DESC
		 LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []engine.SessionRecord
	for rows.Next() {
		var (
			r                    engine.SessionRecord
			runMode, diff, grade string
		)
		if err := rows.Scan(&r.SessionID, &r.GameID, &runMode, &diff, &r.SkillBefore, &r.SkillAfter,
			&r.PerfScore, &grade, &r.FlagCount, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		r.PlayerID = playerID
		r.RunMode = engine.RunMode(runMode)
		r.Difficulty = engine.Difficulty(diff)
		r.Grade = engine.Grade(grade)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return out, nil
}
