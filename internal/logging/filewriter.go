package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

const backupTimeFormat = "20060102-150405.000"

// FileOptions controls rotation of a log file. Zero values disable the
// corresponding limit.
type FileOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// FileWriter is an io.Writer that appends to a file and rotates it by size.
// Rotated files are named <path>.<timestamp>, plus .gz when compressed.
type FileWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	maxSize int64
	opts    FileOptions
	size    int64
	now     func() time.Time

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// NewFileWriter opens path for appending, creating its directory.
func NewFileWriter(path string, opts FileOptions) (*FileWriter, error) {
	fw := &FileWriter{
		path:    path,
		maxSize: int64(opts.MaxSizeMB) * 1024 * 1024,
		opts:    opts,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := fw.open(); err != nil {
		return nil, err
	}

	if opts.MaxBackups > 0 || opts.MaxAgeDays > 0 {
		fw.wg.Add(1)
		go fw.pruneDaily()
	}
	return fw, nil
}

func (fw *FileWriter) Write(p []byte) (int, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.file == nil {
		return 0, os.ErrClosed
	}
	if fw.maxSize > 0 && fw.size > 0 && fw.size+int64(len(p)) > fw.maxSize {
		if err := fw.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := fw.file.Write(p)
	fw.size += int64(n)
	return n, err
}

// Close stops background work, waits for pending compression and closes
// the file.
func (fw *FileWriter) Close() error {
	fw.stopOnce.Do(func() { close(fw.stop) })
	fw.wg.Wait()

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.file == nil {
		return nil
	}
	err := fw.file.Close()
	fw.file = nil
	return err
}

func (fw *FileWriter) open() error {
	file, err := os.OpenFile(fw.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	fw.file = file
	fw.size = info.Size()
	return nil
}

// rotate must be called with mu held.
func (fw *FileWriter) rotate() error {
	if err := fw.file.Close(); err != nil {
		return err
	}
	fw.file = nil

	backup := fw.path + "." + fw.now().Format(backupTimeFormat)
	if err := os.Rename(fw.path, backup); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	if err := fw.open(); err != nil {
		return err
	}

	fw.wg.Add(1)
	go func() {
		defer fw.wg.Done()
		if fw.opts.Compress {
			_ = compressFile(backup)
		}
		fw.prune()
	}()
	return nil
}

// compressFile gzips path to path.gz and removes the original.
func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		_ = zw.Close()
		_ = dst.Close()
		_ = os.Remove(path + ".gz")
		return err
	}
	if err := zw.Close(); err != nil {
		_ = dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

func (fw *FileWriter) pruneDaily() {
	defer fw.wg.Done()
	fw.prune()

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fw.prune()
		case <-fw.stop:
			return
		}
	}
}

// backups returns rotated files, newest first. The timestamp suffix sorts
// lexically.
func (fw *FileWriter) backups() []string {
	matches, err := filepath.Glob(fw.path + ".*")
	if err != nil {
		return nil
	}
	prefix := fw.path + "."
	var out []string
	for _, m := range matches {
		stamp := strings.TrimSuffix(strings.TrimPrefix(m, prefix), ".gz")
		if _, err := time.Parse(backupTimeFormat, stamp); err == nil {
			out = append(out, m)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// prune removes backups beyond MaxBackups or older than MaxAgeDays.
func (fw *FileWriter) prune() {
	backups := fw.backups()
	var cutoff time.Time
	if fw.opts.MaxAgeDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -fw.opts.MaxAgeDays)
	}

	for i, b := range backups {
		if fw.opts.MaxBackups > 0 && i >= fw.opts.MaxBackups {
			_ = os.Remove(b)
			continue
		}
		if !cutoff.IsZero() {
			if info, err := os.Stat(b); err == nil && info.ModTime().Before(cutoff) {
				_ = os.Remove(b)
			}
		}
	}
}
