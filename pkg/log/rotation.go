// Log file rotation for scan logs
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const rotationStamp = "20060102-150405"

// RotationConfig configures log file rotation.
type RotationConfig struct {
	// Filename is the path to the log file.
	Filename string

	// MaxSize is the maximum size in megabytes before rotation.
	// Default is 10 MB.
	MaxSize int

	// MaxBackups is the maximum number of rotated files to retain.
	// Default is 5.
	MaxBackups int

	// Compress gzips rotated files.
	Compress bool
}

// RotatingFileWriter is an io.Writer that rotates its file by size.
type RotatingFileWriter struct {
	mu          sync.Mutex
	cfg         RotationConfig
	maxBytes    int64
	currentSize int64
	file        *os.File
	now         func() time.Time
}

// NewRotatingFileWriter opens (or creates) the log file for appending.
func NewRotatingFileWriter(cfg RotationConfig) (*RotatingFileWriter, error) {
	if cfg.Filename == "" {
		return nil, fmt.Errorf("log: filename is required")
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}
	w := &RotatingFileWriter{
		cfg:      cfg,
		maxBytes: int64(cfg.MaxSize) * 1024 * 1024,
		now:      time.Now,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingFileWriter) open() error {
	if err := os.MkdirAll(filepath.Dir(w.cfg.Filename), 0755); err != nil {
		return fmt.Errorf("log: create directory: %w", err)
	}
	f, err := os.OpenFile(w.cfg.Filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("log: open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("log: stat file: %w", err)
	}
	w.file = f
	w.currentSize = info.Size()
	return nil
}

// Write implements io.Writer.
func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentSize > 0 && w.currentSize+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.currentSize += int64(n)
	return n, err
}

func (w *RotatingFileWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("log: close file: %w", err)
	}
	ext := filepath.Ext(w.cfg.Filename)
	base := strings.TrimSuffix(w.cfg.Filename, ext)
	rotated := fmt.Sprintf("%s.%s%s", base, w.now().Format(rotationStamp), ext)
	if err := os.Rename(w.cfg.Filename, rotated); err != nil {
		_ = w.open()
		return fmt.Errorf("log: rename file: %w", err)
	}
	if w.cfg.Compress {
		if err := gzipFile(rotated); err == nil {
			rotated += ".gz"
		}
	}
	w.pruneBackups()
	return w.open()
}

func gzipFile(name string) error {
	src, err := os.Open(name)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(name + ".gz")
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(dst)
	_, copyErr := io.Copy(gz, src)
	closeErr := gz.Close()
	dst.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(name + ".gz")
		if copyErr != nil {
			return copyErr
		}
		return closeErr
	}
	return os.Remove(name)
}

// Backups returns rotated files for this log, oldest first.
func (w *RotatingFileWriter) Backups() []string {
	dir := filepath.Dir(w.cfg.Filename)
	base := filepath.Base(w.cfg.Filename)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var backups []string
	for _, entry := range entries {
		name := entry.Name()
		if name == base || !strings.HasPrefix(name, prefix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".gz"), ext)
		if _, err := time.Parse(rotationStamp, stamp); err != nil {
			continue
		}
		backups = append(backups, filepath.Join(dir, name))
	}
	// Timestamps sort lexically.
	sort.Strings(backups)
	return backups
}

func (w *RotatingFileWriter) pruneBackups() {
	backups := w.Backups()
	for len(backups) > w.cfg.MaxBackups {
		os.Remove(backups[0])
		backups = backups[1:]
	}
}

// Close closes the current file.
func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// Filename returns the active log filename.
func (w *RotatingFileWriter) Filename() string {
	return w.cfg.Filename
}

// NewConsoleAndFileLogger creates a logger that writes to stderr and a
// rotating file. Colors are disabled since they would end up in the file.
func NewConsoleAndFileLogger(prefix string, cfg RotationConfig) (*Logger, *RotatingFileWriter, error) {
	fileWriter, err := NewRotatingFileWriter(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger := New(prefix)
	logger.SetWriter(io.MultiWriter(os.Stderr, fileWriter))
	logger.SetColorize(false)
	return logger, fileWriter, nil
}
