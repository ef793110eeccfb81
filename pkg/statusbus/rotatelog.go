package statusbus

import (
	"fmt"
	"os"
	"sync"
)

// RotatingLog is a simple size-rotated log file for labels that fall
// outside the accepted IPC prefix set (§6.1) or CT_LOG_WHITELIST. There is
// no logging library in the teacher's stack to borrow this from, and
// nothing in the retrieval pack imports a rotation library directly, so
// this is standard-library os.Rename/os.Create; see DESIGN.md.
type RotatingLog struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	backups  int

	f    *os.File
	size int64
}

// NewRotatingLog opens (creating if needed) a log file at path, rotating
// once it exceeds maxBytes and keeping backups old copies (path.1, path.2,
// ...).
func NewRotatingLog(path string, maxBytes int64, backups int) (*RotatingLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &RotatingLog{path: path, maxBytes: maxBytes, backups: backups, f: f, size: info.Size()}, nil
}

// WriteLine appends line plus a trailing newline, rotating first if the
// write would exceed maxBytes.
func (r *RotatingLog) WriteLine(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := int64(len(line)) + 1
	if r.size+n > r.maxBytes {
		if err := r.rotate(); err != nil {
			return err
		}
	}

	if _, err := r.f.WriteString(line); err != nil {
		return err
	}
	if _, err := r.f.WriteString("\n"); err != nil {
		return err
	}
	r.size += n
	return nil
}

func (r *RotatingLog) rotate() error {
	if err := r.f.Close(); err != nil {
		return err
	}

	for i := r.backups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", r.path, i)
		newPath := fmt.Sprintf("%s.%d", r.path, i+1)
		if _, err := os.Stat(oldPath); err == nil {
			os.Rename(oldPath, newPath)
		}
	}
	if r.backups > 0 {
		os.Rename(r.path, fmt.Sprintf("%s.1", r.path))
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	r.f = f
	r.size = 0
	return nil
}

// Close releases the underlying file handle.
func (r *RotatingLog) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}
