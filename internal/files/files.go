// Package files manages the bot's on-disk layout: one directory per user with
// an uploaded/ area for source files and a generated/ area for review output.
package files

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// UploadMeta sits next to every uploaded file as <name>.meta.json.
type UploadMeta struct {
	UploadedAt string `json:"uploaded_at"`
	Viewed     bool   `json:"viewed"`
}

// Manager owns the per-user directory tree under one base directory.
type Manager struct {
	baseDir string
}

// NewManager creates a manager rooted at baseDir.
func NewManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir}
}

// UserDir returns (and creates) the user's root directory.
func (m *Manager) UserDir(userID int64) (string, error) {
	path := filepath.Join(m.baseDir, strconv.FormatInt(userID, 10))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// UploadDir returns (and creates) the user's upload directory.
func (m *Manager) UploadDir(userID int64) (string, error) {
	user, err := m.UserDir(userID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(user, "uploaded")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// UploadPath resolves an uploaded file by name. The name is cleaned to its
// base so callback data cannot escape the user's directory.
func (m *Manager) UploadPath(userID int64, name string) (string, error) {
	dir, err := m.UploadDir(userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(name)), nil
}

// SaveUpload stores an uploaded file plus its metadata and returns its path.
func (m *Manager) SaveUpload(userID int64, name string, data []byte) (string, error) {
	path, err := m.UploadPath(userID, name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}

	meta := UploadMeta{UploadedAt: time.Now().Format(timeLayout)}
	if err := writeMeta(path, meta); err != nil {
		return "", err
	}
	return path, nil
}

// MarkFileOpened flips the viewed flag in the file's metadata.
func (m *Manager) MarkFileOpened(userID int64, name string) error {
	path, err := m.UploadPath(userID, name)
	if err != nil {
		return err
	}
	meta, err := readMeta(path)
	if err != nil {
		return err
	}
	meta.Viewed = true
	return writeMeta(path, meta)
}

// TotalUploadSizeMB sums the user's uploaded files in megabytes.
func (m *Manager) TotalUploadSizeMB(userID int64) (float64, error) {
	dir, err := m.UploadDir(userID)
	if err != nil {
		return 0, err
	}

	var total int64
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return float64(total) / (1024 * 1024), nil
}

// ListTxtFiles returns the names of the user's uploaded .txt files.
func (m *Manager) ListTxtFiles(userID int64) ([]string, error) {
	dir, err := m.UploadDir(userID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && IsTxtFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// DeleteUserData removes everything stored for the user.
func (m *Manager) DeleteUserData(userID int64) error {
	return os.RemoveAll(filepath.Join(m.baseDir, strconv.FormatInt(userID, 10)))
}

// DeleteInactiveFiles removes uploads older than maxAge across all users,
// together with their metadata. Files without metadata fall back to mtime.
func (m *Manager) DeleteInactiveFiles(maxAge time.Duration) error {
	users, err := os.ReadDir(m.baseDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-maxAge)
	for _, u := range users {
		if !u.IsDir() {
			continue
		}
		dir := filepath.Join(m.baseDir, u.Name(), "uploaded")
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !IsTxtFile(e.Name()) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if uploadedAfter(path, e, cutoff) {
				continue
			}
			os.Remove(path)
			os.Remove(path + ".meta.json")
		}
	}
	return nil
}

func uploadedAfter(path string, e os.DirEntry, cutoff time.Time) bool {
	if meta, err := readMeta(path); err == nil {
		if at, err := time.ParseInLocation(timeLayout, meta.UploadedAt, time.Local); err == nil {
			return at.After(cutoff)
		}
	}
	info, err := e.Info()
	if err != nil {
		return true
	}
	return info.ModTime().After(cutoff)
}

// IsTxtFile reports whether the name has a .txt extension.
func IsTxtFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".txt")
}

// ReadableSize formats the file's size with a binary unit suffix.
func ReadableSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "unknown"
	}
	size := float64(info.Size())
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return fmt.Sprintf("%.2f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.2f TB", size)
}

// CountLines counts the lines in a file.
func CountLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}

func metaPath(path string) string {
	return path + ".meta.json"
}

func readMeta(path string) (UploadMeta, error) {
	var meta UploadMeta
	data, err := os.ReadFile(metaPath(path))
	if err != nil {
		return meta, err
	}
	return meta, json.Unmarshal(data, &meta)
}

func writeMeta(path string, meta UploadMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(metaPath(path), append(data, '\n'), 0o644)
}
