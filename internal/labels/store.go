// Package labels persists per-user, per-source account classifications: a
// flat uid→label index plus one text file of rendered blocks per label.
package labels

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/Kurz4K/RZXInfoBot/internal/account"
)

// IndexFileName is the flat uid→label document kept next to the label files.
const IndexFileName = "labeled_accounts.json"

// All assignable labels, in display order.
var All = []string{"Good", "Average", "Trash", "Incorrect", "Banned"}

// Valid reports whether label is one of the assignable labels.
func Valid(label string) bool {
	for _, l := range All {
		if l == label {
			return true
		}
	}
	return false
}

// Store owns the label files and index for every (user, source) scope under
// one base directory. All mutation is serialized per scope.
type Store struct {
	baseDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Dir returns the scope directory for one user's source file, creating it if
// needed.
func (s *Store) Dir(userID int64, source string) (string, error) {
	dir := filepath.Join(s.baseDir, strconv.FormatInt(userID, 10), "generated", source)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scope dir: %w", err)
	}
	return dir, nil
}

func (s *Store) scopeLock(userID int64, source string) *sync.Mutex {
	key := strconv.FormatInt(userID, 10) + "/" + source
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Assign sets the record's label within the scope. If the record already has
// a different label, its block is first removed from the old label's file.
// Assigning the same label again leaves the files untouched. A missing old
// file or absent block is logged and skipped; the index is updated anyway.
func (s *Store) Assign(userID int64, source string, rec *account.Record, label string) error {
	if !Valid(label) {
		return fmt.Errorf("unknown label %q", label)
	}

	lock := s.scopeLock(userID, source)
	lock.Lock()
	defer lock.Unlock()

	dir, err := s.Dir(userID, source)
	if err != nil {
		return err
	}

	index, err := loadIndex(dir)
	if err != nil {
		return err
	}

	block := rec.FormatBlock()
	old := index[rec.UID]
	if old == label {
		return nil
	}
	if old != "" {
		oldPath := filepath.Join(dir, old+".txt")
		removed, err := removeBlock(oldPath, block)
		if err != nil {
			return err
		}
		if !removed {
			log.Printf("label file %s missing block for uid %s, index updated anyway", oldPath, rec.UID)
		}
	}

	newPath := filepath.Join(dir, label+".txt")
	if err := appendBlock(newPath, block); err != nil {
		return err
	}

	index[rec.UID] = label
	return saveIndex(dir, index)
}

// CurrentLabel returns the record's assigned label within the scope, or ""
// when it has none.
func (s *Store) CurrentLabel(userID int64, source, uid string) (string, error) {
	lock := s.scopeLock(userID, source)
	lock.Lock()
	defer lock.Unlock()

	dir, err := s.Dir(userID, source)
	if err != nil {
		return "", err
	}
	index, err := loadIndex(dir)
	if err != nil {
		return "", err
	}
	return index[uid], nil
}

// LabeledFiles returns the paths of every non-empty label file in the scope,
// in label display order.
func (s *Store) LabeledFiles(userID int64, source string) ([]string, error) {
	dir, err := s.Dir(userID, source)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, label := range All {
		path := filepath.Join(dir, label+".txt")
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if info.Size() > 0 {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func loadIndex(dir string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFileName))
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read label index: %w", err)
	}

	index := make(map[string]string)
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse label index: %w", err)
	}
	return index, nil
}

func saveIndex(dir string, index map[string]string) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, IndexFileName), append(data, '\n'))
}

// removeBlock rewrites path without the first block equal to block. Blocks
// are compared whole, split on the blank-line separator, so one rendering can
// never match inside another. Returns false when the file or block is absent.
func removeBlock(path, block string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read label file: %w", err)
	}

	blocks := splitBlocks(string(data))
	for i, b := range blocks {
		if b == block {
			blocks = append(blocks[:i], blocks[i+1:]...)
			return true, writeFileAtomic(path, []byte(joinBlocks(blocks)))
		}
	}
	return false, nil
}

func appendBlock(path, block string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open label file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(block + "\n\n"); err != nil {
		return fmt.Errorf("failed to append to label file: %w", err)
	}
	return nil
}

func splitBlocks(content string) []string {
	content = strings.TrimSuffix(content, "\n\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n\n")
}

func joinBlocks(blocks []string) string {
	var b strings.Builder
	for _, block := range blocks {
		b.WriteString(block)
		b.WriteString("\n\n")
	}
	return b.String()
}

// writeFileAtomic writes via a temp file and rename so concurrent readers
// never observe a partial rewrite.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
