package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"herocoach/server/engine"
)

// File keeps one JSON document per player and kind under a directory.
// Writes go to a temp file first and are renamed into place.
type File struct {
	basePath string
}

func NewFile(basePath string) (*File, error) {
	if basePath == "" {
		return nil, fmt.Errorf("file store: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}
	return &File{basePath: basePath}, nil
}

// FilePath is the document path for a player; the id is escaped so it cannot leave basePath.
func (f *File) FilePath(playerID, kind string) string {
	return filepath.Join(f.basePath, url.PathEscape(playerID)+"."+kind+".json")
}

func (f *File) read(ctx context.Context, playerID, kind string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(f.FilePath(playerID, kind))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", kind, err)
	}
	return b, nil
}

func (f *File) write(ctx context.Context, playerID, kind string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.basePath, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", kind, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("write %s: %w", kind, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("write %s: %w", kind, err)
	}
	if err := os.Rename(name, f.FilePath(playerID, kind)); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("write %s: %w", kind, err)
	}
	return nil
}

func (f *File) LoadProfile(ctx context.Context, playerID string) (*engine.PlayerProfile, error) {
	b, err := f.read(ctx, playerID, "profile")
	if err != nil {
		return nil, err
	}
	return decodeProfile(b)
}

func (f *File) SaveProfile(ctx context.Context, playerID string, p *engine.PlayerProfile) error {
	b, err := encodeProfile(p)
	if err != nil {
		return err
	}
	return f.write(ctx, playerID, "profile", b)
}

func (f *File) LoadRecommendation(ctx context.Context, playerID string) (*engine.Recommendation, error) {
	b, err := f.read(ctx, playerID, "recommendation")
	if err != nil {
		return nil, err
	}
	return decodeRecommendation(b)
}

func (f *File) SaveRecommendation(ctx context.Context, playerID string, r *engine.Recommendation) error {
	b, err := encodeRecommendation(r)
	if err != nil {
		return err
	}
	return f.write(ctx, playerID, "recommendation", b)
}

func (f *File) Close() error { return nil }
