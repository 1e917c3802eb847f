// Package dataset keeps a local copy of the Open Food Facts parquet dump
// for offline sessions
package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/noot-app/food-explorer/internal/config"
)

// hfResolveSuffix turns a bare Hugging Face dataset URL into a file download
const hfResolveSuffix = "/resolve/main/food.parquet"

// Metadata describes the local copy of the dump
type Metadata struct {
	SHA256       string    `json:"sha256"`
	DownloadedAt time.Time `json:"downloaded_at"`
	ETag         string    `json:"etag,omitempty"`
	Size         int64     `json:"size"`
}

// Manager downloads the dump once, refreshes it when the remote copy
// changes, and coordinates concurrent instances through a lock file
type Manager struct {
	cfg        *config.Config
	httpClient *http.Client
	log        *slog.Logger

	// pollInterval and waitTimeout bound waiting on another instance's download
	pollInterval time.Duration
	waitTimeout  time.Duration
}

// NewManager creates a dataset manager for the paths and URL in cfg
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: 30 * time.Minute},
		log:          config.Component(logger, "dataset"),
		pollInterval: 2 * time.Second,
		waitTimeout:  10 * time.Minute,
	}
}

// Path returns where the parquet file lives
func (m *Manager) Path() string {
	return m.cfg.ParquetPath
}

// Metadata returns the recorded metadata of the local copy
func (m *Manager) Metadata() (*Metadata, error) {
	return m.loadMetadata()
}

// Verify checks the local file against the hash recorded at download time
func (m *Manager) Verify() error {
	meta, err := m.loadMetadata()
	if err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}
	sha, err := computeSHA256(m.cfg.ParquetPath)
	if err != nil {
		return fmt.Errorf("failed to hash dataset: %w", err)
	}
	if sha != meta.SHA256 {
		return fmt.Errorf("dataset hash mismatch: have %s, recorded %s", shortHash(sha), shortHash(meta.SHA256))
	}
	return nil
}

// EnsureDataset makes sure a usable parquet file exists at Path. An
// existing file is kept when remote checks are disabled, when it is younger
// than the refresh interval, or when the remote copy has not changed.
func (m *Manager) EnsureDataset(ctx context.Context) error {
	start := time.Now()
	m.log.Info("Ensuring dataset is available", "parquet_path", m.cfg.ParquetPath)

	if _, err := os.Stat(m.cfg.ParquetPath); err == nil {
		if m.cfg.DisableRemoteCheck {
			m.log.Info("Remote checks disabled, using local dataset", "duration", time.Since(start))
			return nil
		}

		upToDate, err := m.isUpToDate(ctx)
		if err != nil {
			// A stale copy still serves queries
			m.log.Warn("Failed to verify dataset freshness, using local dataset", "error", err)
			return nil
		}
		if upToDate {
			m.log.Info("Dataset is up-to-date", "duration", time.Since(start))
			return nil
		}
	}

	if err := m.downloadWithLock(ctx); err != nil {
		return fmt.Errorf("failed to download dataset: %w", err)
	}

	m.log.Info("Dataset ensured", "duration", time.Since(start))
	return nil
}

// downloadURL resolves a dataset page URL into a direct file URL
func (m *Manager) downloadURL() string {
	u := strings.TrimRight(m.cfg.ParquetURL, "/")
	if strings.Contains(u, "huggingface.co/datasets/") && !strings.Contains(u, "/resolve/") {
		return u + hfResolveSuffix
	}
	return u
}

func (m *Manager) isUpToDate(ctx context.Context) (bool, error) {
	local, err := m.loadMetadata()
	if err != nil {
		m.log.Debug("No local metadata found", "error", err)
		return false, nil
	}

	if interval := m.cfg.RefreshInterval(); interval > 0 && time.Since(local.DownloadedAt) < interval {
		m.log.Debug("Dataset within refresh interval", "downloaded_at", local.DownloadedAt, "interval", interval)
		return true, nil
	}

	remote, err := m.remoteMetadata(ctx)
	if err != nil {
		return false, err
	}

	if remote.ETag != "" && local.ETag != "" {
		upToDate := remote.ETag == local.ETag
		m.log.Debug("ETag comparison", "local", local.ETag, "remote", remote.ETag, "up_to_date", upToDate)
		if upToDate {
			m.touchMetadata(local)
		}
		return upToDate, nil
	}

	upToDate := remote.Size == local.Size
	m.log.Debug("Size comparison", "local", local.Size, "remote", remote.Size, "up_to_date", upToDate)
	if upToDate {
		m.touchMetadata(local)
	}
	return upToDate, nil
}

// touchMetadata restarts the refresh interval after a successful remote check
func (m *Manager) touchMetadata(meta *Metadata) {
	meta.DownloadedAt = time.Now().UTC()
	if err := m.saveMetadata(meta); err != nil {
		m.log.Warn("Failed to update metadata", "error", err)
	}
}

// remoteMetadata issues a HEAD request for the ETag and size
func (m *Manager) remoteMetadata(ctx context.Context) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.downloadURL(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", m.cfg.UserAgent)

	client := &http.Client{Timeout: m.cfg.HTTPTimeout()}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HEAD request failed with status: %d", resp.StatusCode)
	}

	return &Metadata{
		ETag: resp.Header.Get("ETag"),
		Size: resp.ContentLength,
	}, nil
}

func (m *Manager) downloadWithLock(ctx context.Context) error {
	start := time.Now()
	lockPath := m.cfg.LockFile

	if m.cfg.IgnoreLock {
		if err := os.Remove(lockPath); err == nil {
			m.log.Warn("IGNORE_LOCK enabled, removed existing lock file", "lock_path", lockPath)
		}
	}

	lockFile, err := acquireLock(lockPath)
	switch {
	case err == nil:
		defer releaseLock(lockFile, lockPath)
	case m.cfg.IgnoreLock:
		m.log.Warn("IGNORE_LOCK enabled, downloading without lock", "error", err)
	default:
		m.log.Info("Another instance is downloading, waiting", "lock_path", lockPath)
		return m.waitForDownload(ctx)
	}

	dir := filepath.Dir(m.cfg.ParquetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Download next to the target so the final rename stays on one filesystem
	tmp, err := os.CreateTemp(dir, filepath.Base(m.cfg.ParquetPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	etag, size, sha, err := m.download(ctx, tmp)
	tmp.Close()
	if err != nil {
		return err
	}

	if err := os.Rename(tmpPath, m.cfg.ParquetPath); err != nil {
		return fmt.Errorf("failed to move dataset into place: %w", err)
	}

	meta := &Metadata{SHA256: sha, DownloadedAt: time.Now().UTC(), ETag: etag, Size: size}
	if err := m.saveMetadata(meta); err != nil {
		m.log.Warn("Failed to save metadata", "error", err)
	}

	m.log.Info("Dataset downloaded successfully", "size", size, "sha256", shortHash(sha), "duration", time.Since(start))
	return nil
}

// download streams the dump into dst, hashing as it goes
func (m *Manager) download(ctx context.Context, dst io.Writer) (etag string, size int64, sha string, err error) {
	url := m.downloadURL()
	m.log.Info("Downloading dataset", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, "", err
	}
	req.Header.Set("User-Agent", m.cfg.UserAgent)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, "", fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	hash := sha256.New()
	written, err := io.Copy(io.MultiWriter(dst, hash), resp.Body)
	if err != nil {
		return "", 0, "", fmt.Errorf("download interrupted: %w", err)
	}

	return resp.Header.Get("ETag"), written, hex.EncodeToString(hash.Sum(nil)), nil
}

// waitForDownload waits for another instance to finish and release the lock
func (m *Manager) waitForDownload(ctx context.Context) error {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	timeout := time.After(m.waitTimeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return errors.New("timeout waiting for download by other instance")
		case <-ticker.C:
			if _, err := os.Stat(m.cfg.LockFile); !errors.Is(err, os.ErrNotExist) {
				continue
			}
			if _, err := os.Stat(m.cfg.ParquetPath); err == nil {
				m.log.Info("Dataset now available after other instance completed")
				return nil
			}
			return errors.New("other instance finished without producing a dataset")
		}
	}
}

func (m *Manager) loadMetadata() (*Metadata, error) {
	data, err := os.ReadFile(m.cfg.MetadataPath)
	if err != nil {
		return nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (m *Manager) saveMetadata(meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.cfg.MetadataPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(m.cfg.MetadataPath, data, 0644)
}

// acquireLock creates the lock file exclusively
func acquireLock(lockPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
}

func releaseLock(f *os.File, lockPath string) {
	f.Close()
	os.Remove(lockPath)
}

// computeSHA256 hashes a file on disk
func computeSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func shortHash(sha string) string {
	if len(sha) > 16 {
		return sha[:16] + "..."
	}
	return sha
}
