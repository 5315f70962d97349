package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"discharge-assistant/pkg"
)

// FileSource reads patient records from a JSON array on disk.
type FileSource struct {
	Path string
}

// Load reads and decodes the file.  Anything other than a JSON array of
// records is an error.
func (s FileSource) Load(_ context.Context) ([]pkg.PatientRecord, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read patients file: %w", err)
	}
	var records []pkg.PatientRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode patients file %s: %w", s.Path, err)
	}
	return records, nil
}

// Watch invalidates d whenever the file at path is written, created, renamed
// or removed.  The parent directory is watched so editors that replace the
// file atomically are seen.  Watch returns once the watcher is running; it
// stops when ctx is done.
func Watch(ctx context.Context, d *Directory, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	target := filepath.Clean(path)

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				d.logger.Info("patients file changed, reloading", zap.String("path", event.Name), zap.String("op", event.Op.String()))
				d.Invalidate()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				d.logger.Warn("patients file watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
