package notes

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ErrAlreadyWatching is returned by Watch while another Watch call on the
// same store is running.
var ErrAlreadyWatching = errors.New("note store is already being watched")

// Watch serves reads from an in-memory snapshot while it runs and drops
// that snapshot whenever the backing file changes on disk, so edits made
// by another process are picked up on the next read. It blocks until ctx
// is cancelled.
func (s *Store) Watch(ctx context.Context) error {
	if !s.watching.CompareAndSwap(false, true) {
		return ErrAlreadyWatching
	}
	s.invalidate()
	defer func() {
		s.watching.Store(false)
		s.invalidate()
	}()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// the directory, not the file: atomic rewrites replace the inode
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	base := filepath.Base(s.path)

	s.logger.Info("watching note store", "path", s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base || ev.Op == fsnotify.Chmod {
				continue
			}
			s.invalidate()
			s.logger.Debug("note store changed on disk", "op", ev.Op.String())
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("note store watcher", "error", err)
		}
	}
}
