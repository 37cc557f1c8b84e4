package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"herocoach/server/engine"
)

// SQLite is the single-host durable backend.
type SQLite struct {
	sqlDB *sql.DB
}

func toMillis(v time.Time) int64   { return v.UTC().UnixMilli() }
func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// OpenSQLite opens (creating if needed) the database at path and applies
// the embedded schema, so a fresh file is usable without --migrate.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	s := &SQLite{sqlDB: sqlDB}
	if err := s.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLite) Migrate(ctx context.Context) error {
	b, err := schema.ReadFile("sqlite_schema.sql")
	if err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *SQLite) loadDoc(ctx context.Context, table, playerID string) ([]byte, error) {
	var doc string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT doc FROM `+table+` WHERE player_id = ?`, playerID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	return []byte(doc), nil
}

func (s *SQLite) LoadProfile(ctx context.Context, playerID string) (*engine.PlayerProfile, error) {
	doc, err := s.loadDoc(ctx, "player_profiles", playerID)
	if err != nil {
		return nil, err
	}
	return decodeProfile(doc)
}

func (s *SQLite) SaveProfile(ctx context.Context, playerID string, p *engine.PlayerProfile) error {
	doc, err := encodeProfile(p)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO player_profiles (player_id, doc, skill, sessions, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET
		   doc = excluded.doc,
		   skill = excluded.skill,
		   sessions = excluded.sessions,
		   updated_at = excluded.updated_at`,
		playerID, string(doc), p.Skill, p.SessionCount, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *SQLite) LoadRecommendation(ctx context.Context, playerID string) (*engine.Recommendation, error) {
	doc, err := s.loadDoc(ctx, "player_recommendations", playerID)
	if err != nil {
		return nil, err
	}
	return decodeRecommendation(doc)
}

func (s *SQLite) SaveRecommendation(ctx context.Context, playerID string, r *engine.Recommendation) error {
	doc, err := encodeRecommendation(r)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO player_recommendations (player_id, doc, game_id, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET
		   doc = excluded.doc,
		   game_id = excluded.game_id,
		   updated_at = excluded.updated_at`,
		playerID, string(doc), r.GameID, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("save recommendation: %w", err)
	}
	return nil
}

func (s *SQLite) RecordSession(ctx context.Context, rec engine.SessionRecord) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO session_history (
		   player_id, session_id, game_id, run_mode, difficulty,
		   skill_before, skill_after, perf_score, grade, flag_count, ended_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(player_id, session_id) DO NOTHING`,
		rec.PlayerID, rec.SessionID, rec.GameID, string(rec.RunMode), string(rec.Difficulty),
		rec.SkillBefore, rec.SkillAfter, rec.PerfScore, string(rec.Grade), rec.FlagCount, toMillis(rec.EndedAt))
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

func (s *SQLite) History(ctx context.Context, playerID string, limit int) ([]engine.SessionRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT session_id, game_id, run_mode, difficulty, skill_before, skill_after,
		        perf_score, grade, flag_count, ended_at
		   FROM session_history
		  WHERE player_id = ?
		  ORDER BY ended_at DESC, id DESC
		  LIMIT ?`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []engine.SessionRecord
	for rows.Next() {
		var (
			r                    engine.SessionRecord
			runMode, diff, grade string
			endedAt              int64
		)
		if err := rows.Scan(&r.SessionID, &r.GameID, &runMode, &diff, &r.SkillBefore, &r.SkillAfter,
			&r.PerfScore, &grade, &r.FlagCount, &endedAt); err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		r.PlayerID = playerID
		r.RunMode = engine.RunMode(runMode)
		r.Difficulty = engine.Difficulty(diff)
		r.Grade = engine.Grade(grade)
		r.EndedAt = fromMillis(endedAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return out, nil
}
