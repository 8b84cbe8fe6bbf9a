package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// backupTimeFormat sorts lexically, so backup file names order by age.
const backupTimeFormat = "20060102T150405.000000000"

// RotatingFileWriter appends to a single log file. When the file would grow
// past the size limit it is renamed to a timestamped backup and a fresh file
// is started; the oldest backups are pruned down to the retention count.
type RotatingFileWriter struct {
	mu           sync.Mutex
	path         string
	maxSizeBytes int64
	maxBackups   int
	file         *os.File
	size         int64

	now func() time.Time
}

func NewRotatingFileWriter(path string, maxSizeBytes int64, maxBackups int) (*RotatingFileWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("log path is required")
	}
	if maxSizeBytes <= 0 {
		return nil, fmt.Errorf("maxSizeBytes must be > 0")
	}
	if maxBackups < 0 {
		maxBackups = 0
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	var size int64
	if stat, err := f.Stat(); err == nil {
		size = stat.Size()
	}

	w := &RotatingFileWriter{
		path:         path,
		maxSizeBytes: maxSizeBytes,
		maxBackups:   maxBackups,
		file:         f,
		size:         size,
		now:          time.Now,
	}

	if w.size > w.maxSizeBytes {
		if err := w.rotateLocked(); err != nil {
			return nil, err
		}
	}

	return w, nil
}

func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	// Allow one write into an empty file so a single oversized line
	// cannot trigger rotation forever.
	if w.size > 0 && w.size+int64(len(p)) > w.maxSizeBytes {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingFileWriter) rotateLocked() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return err
		}
		w.file = nil
	}

	if w.maxBackups <= 0 {
		if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
			return err
		}
	} else {
		backup := w.path + "." + w.now().UTC().Format(backupTimeFormat)
		if err := os.Rename(w.path, backup); err != nil && !os.IsNotExist(err) {
			return err
		}
		if err := w.pruneBackups(); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	w.file = f
	w.size = 0
	return nil
}

// pruneBackups deletes the oldest timestamped backups beyond the retention
// count. Files next to the log that do not match the backup naming scheme
// are left alone.
func (w *RotatingFileWriter) pruneBackups() error {
	matches, err := filepath.Glob(w.path + ".*")
	if err != nil {
		return err
	}

	var backups []string
	for _, m := range matches {
		suffix := m[len(w.path)+1:]
		if _, err := time.Parse(backupTimeFormat, suffix); err == nil {
			backups = append(backups, m)
		}
	}
	if len(backups) <= w.maxBackups {
		return nil
	}

	sort.Strings(backups)
	for _, stale := range backups[:len(backups)-w.maxBackups] {
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
