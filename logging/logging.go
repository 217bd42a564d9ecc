package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Policy is when the log file rolls over and how many old files survive.
// With Backups == 0 the file is simply truncated.
type Policy struct {
	MaxSize int64
	Backups int
}

var DefaultPolicy = Policy{MaxSize: 2 << 20, Backups: 3}

// RotatingWriter is an append-only log file rolled into path.1 .. path.N
// once it grows past MaxSize. A write never straddles two files.
type RotatingWriter struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	size   int64
	policy Policy
}

// Setup points the standard logger at stdout and a rotating file.
func Setup(path string, p Policy) (*RotatingWriter, error) {
	rw, err := NewRotatingWriter(path, p)
	if err != nil {
		return nil, err
	}

	log.SetOutput(io.MultiWriter(os.Stdout, rw))
	return rw, nil
}

// NewRotatingWriter opens path for appending. A file already past MaxSize
// from an earlier process is rolled first rather than appended to.
func NewRotatingWriter(path string, p Policy) (*RotatingWriter, error) {
	if p.MaxSize <= 0 {
		p.MaxSize = DefaultPolicy.MaxSize
	}
	w := &RotatingWriter{path: path, policy: p}

	if info, err := os.Stat(path); err == nil && info.Size() > p.MaxSize {
		if err := w.shift(); err != nil {
			return nil, err
		}
	}
	if err := w.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.size > 0 && w.size+int64(len(p)) > w.policy.MaxSize {
		if err := w.roll(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingWriter) roll() error {
	w.file.Close()
	w.file = nil
	if err := w.shift(); err != nil {
		return err
	}
	return w.open(os.O_TRUNC)
}

// shift moves path.i to path.i+1, dropping the oldest, and path to path.1.
func (w *RotatingWriter) shift() error {
	if w.policy.Backups == 0 {
		return os.Truncate(w.path, 0)
	}
	os.Remove(w.backup(w.policy.Backups))
	for i := w.policy.Backups - 1; i >= 1; i-- {
		if err := os.Rename(w.backup(i), w.backup(i+1)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("rotate %s: %w", w.backup(i), err)
		}
	}
	if err := os.Rename(w.path, w.backup(1)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rotate %s: %w", w.path, err)
	}
	return nil
}

func (w *RotatingWriter) open(flag int) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|flag, 0o644)
	if err != nil {
		return err
	}
	var size int64
	if info, _ := f.Stat(); info != nil {
		size = info.Size()
	}
	w.file, w.size = f, size
	return nil
}

func (w *RotatingWriter) backup(i int) string {
	return fmt.Sprintf("%s.%d", w.path, i)
}

// Close may be called more than once; later writes fail with os.ErrClosed.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
