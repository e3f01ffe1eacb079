// Package review drives the interactive account-checking flow: one session
// per user, a cursor over the parsed records, and labeling against the label
// store. The cursor and the set of already-labeled accounts persist on disk
// so a check can be resumed after a restart.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Kurz4K/RZXInfoBot/internal/account"
	"github.com/Kurz4K/RZXInfoBot/internal/labels"
	"github.com/Kurz4K/RZXInfoBot/internal/repair"
)

var (
	// ErrNoValidAccounts means no line of the source survived parsing and repair.
	ErrNoValidAccounts = errors.New("no valid accounts in source")
	// ErrSessionNotFound means the user has no active checking session.
	ErrSessionNotFound = errors.New("session not found")
)

const resumeFileName = "resume.json"

// Session is one user's walk through the records of a single source file.
type Session struct {
	UserID int64
	Source string

	store      *labels.Store
	resumePath string

	mu      sync.Mutex
	records []*account.Record
	idx     int
	checked map[string]bool
}

// View is a read-only snapshot of the cursor position for rendering.
type View struct {
	Record  *account.Record
	Index   int
	Total   int
	Label   string
	Checked bool
}

// Manager keeps at most one session per user. Starting a new session replaces
// the previous one; persisted label files and resume state are untouched.
type Manager struct {
	store *labels.Store

	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewManager creates a session manager over the given label store.
func NewManager(store *labels.Store) *Manager {
	return &Manager{
		store:    store,
		sessions: make(map[int64]*Session),
	}
}

// Start parses every line of the source (falling back to the fixer once per
// rejected line), restores any saved cursor for the same scope, and installs
// the session for the user. A nil fixer simply drops unparseable lines.
func (m *Manager) Start(ctx context.Context, userID int64, source string, lines []string, fixer repair.Fixer) (*Session, error) {
	records := ParseAll(ctx, lines, fixer)
	if len(records) == 0 {
		return nil, ErrNoValidAccounts
	}

	dir, err := m.store.Dir(userID, source)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		UserID:     userID,
		Source:     source,
		store:      m.store,
		resumePath: filepath.Join(dir, resumeFileName),
		records:    records,
		checked:    make(map[string]bool),
	}
	sess.loadResume()

	m.mu.Lock()
	m.sessions[userID] = sess
	m.mu.Unlock()

	return sess, nil
}

// Get returns the user's active session.
func (m *Manager) Get(userID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Drop discards the user's in-memory session, if any.
func (m *Manager) Drop(userID int64) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}

// ParseAll decodes lines in order, trying the fixer once per rejected line.
// Lines that still fail are dropped; the batch never fails as a whole.
func ParseAll(ctx context.Context, lines []string, fixer repair.Fixer) []*account.Record {
	var records []*account.Record
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := account.ParseLine(line)
		if err != nil {
			rec = tryRepair(ctx, line, fixer)
			if rec == nil {
				continue
			}
		}
		records = append(records, rec)
	}
	return records
}

func tryRepair(ctx context.Context, line string, fixer repair.Fixer) *account.Record {
	if fixer == nil {
		return nil
	}
	fixed, err := fixer.Fix(ctx, line)
	if err != nil {
		log.Printf("repair failed, dropping line: %v", err)
		return nil
	}
	rec, err := account.ParseLine(fixed)
	if err != nil {
		log.Printf("repaired line still malformed, dropping: %v", err)
		return nil
	}
	return rec
}

// Current returns a view of the record under the cursor.
func (s *Session) Current() (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// Next moves the cursor forward by one, staying put on the last record.
func (s *Session) Next() (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx < len(s.records)-1 {
		s.idx++
		s.saveResume()
	}
	return s.view()
}

// Prev moves the cursor back by one, staying put on the first record.
func (s *Session) Prev() (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx > 0 {
		s.idx--
		s.saveResume()
	}
	return s.view()
}

// Label assigns the current record to the given label. The cursor does not
// move.
func (s *Session) Label(label string) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[s.idx]
	if err := s.store.Assign(s.UserID, s.Source, rec, label); err != nil {
		return nil, err
	}
	s.checked[rec.UID] = true
	s.saveResume()
	return s.view()
}

// Export returns the non-empty label files produced so far for this scope.
func (s *Session) Export() ([]string, error) {
	return s.store.LabeledFiles(s.UserID, s.Source)
}

func (s *Session) view() (*View, error) {
	rec := s.records[s.idx]
	label, err := s.store.CurrentLabel(s.UserID, s.Source, rec.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up label: %w", err)
	}
	return &View{
		Record:  rec,
		Index:   s.idx,
		Total:   len(s.records),
		Label:   label,
		Checked: s.checked[rec.UID],
	}, nil
}

type resumeState struct {
	Line    int      `json:"line"`
	Checked []string `json:"checked"`
}

func (s *Session) loadResume() {
	data, err := os.ReadFile(s.resumePath)
	if err != nil {
		return
	}
	var state resumeState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Printf("ignoring unreadable resume file %s: %v", s.resumePath, err)
		return
	}

	if state.Line >= 0 && state.Line < len(s.records) {
		s.idx = state.Line
	}
	for _, uid := range state.Checked {
		s.checked[uid] = true
	}
}

func (s *Session) saveResume() {
	state := resumeState{Line: s.idx, Checked: make([]string, 0, len(s.checked))}
	for uid := range s.checked {
		state.Checked = append(state.Checked, uid)
	}
	sort.Strings(state.Checked)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		log.Printf("failed to encode resume state: %v", err)
		return
	}
	if err := os.WriteFile(s.resumePath, append(data, '\n'), 0o644); err != nil {
		log.Printf("failed to save resume state: %v", err)
	}
}
