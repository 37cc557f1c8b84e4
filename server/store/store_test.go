package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"herocoach/server/engine"
)

// exerciseBackend runs the ProfileStore contract against b.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()
	player := "player-" + uuid.NewString()

	if _, err := b.LoadProfile(ctx, player); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing profile: want ErrNotFound, got %v", err)
	}
	if _, err := b.LoadRecommendation(ctx, player); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing recommendation: want ErrNotFound, got %v", err)
	}

	p := engine.DefaultProfile()
	p.Skill = 0.62
	p.SessionCount = 3
	p.Game("plate", engine.Hard).SessionCount = 3
	p.GroupConfusion["fruit->veg"] = 4
	if err := b.SaveProfile(ctx, player, p); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	got, err := b.LoadProfile(ctx, player)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if got.Skill != 0.62 || got.SessionCount != 3 || got.PerGame["plate"].LastDifficulty != engine.Hard || got.GroupConfusion["fruit->veg"] != 4 {
		t.Fatalf("profile did not survive: %+v", got)
	}

	p.Skill = 0.7
	if err := b.SaveProfile(ctx, player, p); err != nil {
		t.Fatalf("overwrite profile: %v", err)
	}
	if got, _ := b.LoadProfile(ctx, player); got.Skill != 0.7 {
		t.Fatalf("overwrite lost: %v", got.Skill)
	}

	rec := &engine.Recommendation{
		SchemaVersion:  engine.SchemaVersion,
		GameID:         "plate",
		Grade:          engine.GradeA,
		NextDifficulty: engine.Normal,
		Flags:          []string{engine.FlagAFK},
		Tuning:         &engine.Tuning{SpawnMultiplier: 1.01, TargetTTLMultiplier: 0.97, HazardMultiplier: 1.1, Note: engine.TuningNote},
	}
	if err := b.SaveRecommendation(ctx, player, rec); err != nil {
		t.Fatalf("save recommendation: %v", err)
	}
	gotRec, err := b.LoadRecommendation(ctx, player)
	if err != nil {
		t.Fatalf("load recommendation: %v", err)
	}
	if gotRec.GameID != "plate" || gotRec.Tuning == nil || *gotRec.Tuning != *rec.Tuning || len(gotRec.Flags) != 1 {
		t.Fatalf("recommendation did not survive: %+v", gotRec)
	}

	if rr, ok := b.(engine.SessionRecorder); ok {
		hr, ok := b.(HistoryReader)
		if !ok {
			t.Fatalf("recorder without history reader")
		}
		t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		ids := make([]string, 3)
		for i := range ids {
			ids[i] = uuid.NewString()
			err := rr.RecordSession(ctx, engine.SessionRecord{
				PlayerID: player, SessionID: ids[i], GameID: "plate",
				RunMode: engine.RunPlay, Difficulty: engine.Normal,
				SkillBefore: 0.5, SkillAfter: 0.5 + float64(i)/100, PerfScore: 0.8,
				Grade: engine.GradeA, EndedAt: t0.Add(time.Duration(i) * time.Minute),
			})
			if err != nil {
				t.Fatalf("record session: %v", err)
			}
		}
		rows, err := hr.History(ctx, player, 2)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(rows) != 2 || rows[0].SessionID != ids[2] || rows[1].SessionID != ids[1] || !rows[0].EndedAt.Equal(t0.Add(2*time.Minute)) {
			t.Fatalf("history should be newest first and limited: %+v", rows)
		}
	}
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemory())
}

func TestFileBackend(t *testing.T) {
	f, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	exerciseBackend(t, f)
}

func TestFileBackendEscapesPlayerID(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	path := f.FilePath("../../etc/passwd", "profile")
	if filepath.Dir(path) != dir {
		t.Fatalf("player id escaped the base dir: %s", path)
	}
}

func TestFileBackendCorruptDocument(t *testing.T) {
	f, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := os.WriteFile(f.FilePath("p1", "profile"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err = f.LoadProfile(context.Background(), "p1")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("corrupt document should be a decode error, got %v", err)
	}
}

func TestSQLiteBackend(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "coach.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate should be repeatable: %v", err)
	}
	exerciseBackend(t, s)

	ctx := context.Background()
	rec := engine.SessionRecord{PlayerID: "replay", SessionID: "s1", GameID: "plate", EndedAt: time.Now()}
	for i := 0; i < 2; i++ {
		if err := s.RecordSession(ctx, rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	rows, err := s.History(ctx, "replay", 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("replayed session should be stored once: %d rows, err %v", len(rows), err)
	}
}

func TestSQLiteUsableWithoutMigrate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fresh", "coach.db")
	b, err := New(ctx, Options{Kind: KindSQLite, Path: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	eng := engine.New("p1", b)
	eng.StartSession(ctx, engine.StartOptions{GameID: "plate", RunMode: engine.RunPlay, Difficulty: engine.Normal, Seed: "s-1"})
	rec, ok := eng.EndSession(ctx, engine.SessionEndPayload{AccuracyGoodPct: 95, Misses: 1, ComboMax: 30, AvgRtGoodMs: 250, DurationPlayedSec: 90})
	if !ok || rec == nil {
		t.Fatalf("end session failed")
	}
	want := eng.GetProfile(ctx).Skill
	if want <= engine.DefaultSkill {
		t.Fatalf("a strong session should raise skill, got %v", want)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err = New(ctx, Options{Kind: KindSQLite, Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	p := engine.New("p1", b).GetProfile(ctx)
	if p.Skill != want || p.SessionCount != 1 {
		t.Fatalf("profile not persisted: skill %v (want %v) sessions %d", p.Skill, want, p.SessionCount)
	}
	if got := engine.New("p1", b).GetLastRecommendation(ctx); got == nil || got.SessionID != rec.SessionID {
		t.Fatalf("recommendation not persisted: %+v", got)
	}
}

func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	b, err := New(ctx, Options{Kind: KindPostgres, DatabaseURL: dsn})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	if err := b.(Migrator).Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	exerciseBackend(t, b)
}

func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	b, err := New(context.Background(), Options{Kind: KindRedis, RedisAddr: addr, RedisPrefix: "herocoach-test:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	exerciseBackend(t, b)
}

func TestNewRejectsUnknownKind(t *testing.T) {
	if _, err := New(context.Background(), Options{Kind: "etcd"}); err == nil {
		t.Fatalf("unknown kind should fail")
	}
	if _, err := New(context.Background(), Options{Kind: KindPostgres}); err == nil {
		t.Fatalf("postgres without a DSN should fail")
	}
	b, err := New(context.Background(), Options{})
	if err != nil {
		t.Fatalf("empty kind should default to memory: %v", err)
	}
	if _, ok := b.(*Memory); !ok {
		t.Fatalf("expected *Memory, got %T", b)
	}
}
