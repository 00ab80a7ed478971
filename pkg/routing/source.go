package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/rhuss/weiche/pkg/debug"
)

// Source supplies the raw routes JSON. It is consulted on every request.
type Source interface {
	Routes() (string, error)
}

// StaticSource serves a fixed routes string.
type StaticSource string

// Routes returns the fixed string.
func (s StaticSource) Routes() (string, error) {
	return string(s), nil
}

// EnvSource reads the routes JSON from the first non-empty environment
// variable in Names at every call.
type EnvSource struct {
	Names []string
}

// Routes returns the current value of the first set variable.
func (s EnvSource) Routes() (string, error) {
	for _, name := range s.Names {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("none of %v is set", s.Names)
}

// FileSource serves the contents of a routes file and re-reads it when
// the file changes. The parent directory is watched so that editors and
// mounted config maps that replace the file atomically are picked up.
type FileSource struct {
	path string

	mu      sync.RWMutex
	content string
}

// NewFileSource reads path once and returns a source serving its contents.
// Call Watch to follow later changes.
func NewFileSource(path string) (*FileSource, error) {
	s := &FileSource{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Routes returns the most recently read contents.
func (s *FileSource) Routes() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content, nil
}

// Path returns the watched file path.
func (s *FileSource) Path() string { return s.path }

func (s *FileSource) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading routes file: %w", err)
	}
	s.mu.Lock()
	s.content = string(data)
	s.mu.Unlock()
	return nil
}

// Watch follows the file until ctx is cancelled. A failed re-read keeps
// the previous contents. onChange, if set, is called after each
// successful reload.
func (s *FileSource) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	slog.Info("watching routes file", "path", s.path)

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			debug.Log("config", "routes file event", "path", event.Name, "op", event.Op.String())
			if err := s.reload(); err != nil {
				slog.Warn("routes file reload failed, keeping previous routes", "error", err)
				continue
			}
			slog.Info("routes file reloaded", "path", s.path)
			if onChange != nil {
				onChange()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			slog.Error("routes file watcher error", "error", err)
		}
	}
}
