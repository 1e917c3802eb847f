package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSlot stores the snapshot in a single JSON file
type FileSlot struct {
	path string
	mu   sync.Mutex
}

// NewFileSlot creates a slot backed by path. The file is created on first save.
func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

func (f *FileSlot) Load(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart file: %w", err)
	}
	return data, nil
}

// Save replaces the file atomically via a temporary file and rename
func (f *FileSlot) Save(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cart directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move cart into place: %w", err)
	}
	return nil
}

// Ping checks that the directory holding the file is usable
func (f *FileSlot) Ping(ctx context.Context) error {
	info, err := os.Stat(filepath.Dir(f.path))
	if errors.Is(err, os.ErrNotExist) {
		// Created on first save
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(f.path))
	}
	return nil
}

func (f *FileSlot) Close() error {
	return nil
}
