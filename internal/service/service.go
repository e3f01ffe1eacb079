package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Kurz4K/RZXInfoBot/internal/account"
	"github.com/Kurz4K/RZXInfoBot/internal/files"
	"github.com/Kurz4K/RZXInfoBot/internal/repair"
	"github.com/Kurz4K/RZXInfoBot/internal/review"
)

var (
	// ErrQuotaExceeded means the user's upload area is over its size limit.
	ErrQuotaExceeded = errors.New("upload quota exceeded")
	// ErrSeparationLimit means the user already ran their separations for today.
	ErrSeparationLimit = errors.New("daily separation limit reached")
)

// Store is the subset of the Postgres layer the service needs.
type Store interface {
	UpsertUser(ctx context.Context, tgID int64, username string) error
	GetAllUserIDs(ctx context.Context) ([]int64, error)
	GetUsername(ctx context.Context, tgID int64) (string, error)
	RecordSeparation(ctx context.Context, tgID int64) error
	CountSeparationsSince(ctx context.Context, tgID int64, since time.Time) (int, error)
	SetGroupTarget(ctx context.Context, label string, chatID int64) error
	GetGroupTarget(ctx context.Context, label string) (int64, error)
}

// CheckServiceInterface is what the Telegram handlers call. Kept as an
// interface so handler tests can mock it.
type CheckServiceInterface interface {
	RegisterUser(ctx context.Context, tgID int64, username string) error
	SaveUpload(userID int64, name string, data []byte) (string, error)
	ListFiles(userID int64) ([]string, error)
	UploadedFiles(userID int64) ([]string, error)
	DeleteUserData(userID int64) error

	StartCheck(ctx context.Context, userID int64, name string) (*review.View, error)
	CurrentView(userID int64) (*review.View, error)
	Navigate(userID int64, delta int) (*review.View, error)
	LabelCurrent(userID int64, label string) (*review.View, error)
	ExportFiles(userID int64) ([]string, error)

	Clean(ctx context.Context, userID int64, name string) (string, error)
	Separate(ctx context.Context, userID int64, name string, clean bool) (map[account.BucketKey]string, error)

	AllUserIDs(ctx context.Context) ([]int64, error)
	Username(ctx context.Context, userID int64) (string, error)
	BindGroup(ctx context.Context, label string, chatID int64) error
	GroupTarget(ctx context.Context, label string) (int64, error)
}

// CheckService wires the account pipeline together: uploads on disk, one
// review session per user, the label store, and the Postgres bookkeeping.
type CheckService struct {
	files    *files.Manager
	store    Store
	sessions *review.Manager
	fixer    repair.Fixer

	maxUploadMB   int
	dailySepLimit int
}

func New(fm *files.Manager, store Store, sessions *review.Manager, fixer repair.Fixer, maxUploadMB, dailySepLimit int) *CheckService {
	return &CheckService{
		files:         fm,
		store:         store,
		sessions:      sessions,
		fixer:         fixer,
		maxUploadMB:   maxUploadMB,
		dailySepLimit: dailySepLimit,
	}
}

// RegisterUser records the user for broadcasts and admin uploads.
func (s *CheckService) RegisterUser(ctx context.Context, tgID int64, username string) error {
	return s.store.UpsertUser(ctx, tgID, username)
}

// SaveUpload stores a user's uploaded file after checking the size quota.
func (s *CheckService) SaveUpload(userID int64, name string, data []byte) (string, error) {
	used, err := s.files.TotalUploadSizeMB(userID)
	if err != nil {
		return "", err
	}
	if used+float64(len(data))/(1024*1024) > float64(s.maxUploadMB) {
		return "", ErrQuotaExceeded
	}
	return s.files.SaveUpload(userID, name, data)
}

// ListFiles returns the names of the user's uploaded .txt files.
func (s *CheckService) ListFiles(userID int64) ([]string, error) {
	return s.files.ListTxtFiles(userID)
}

// UploadedFiles returns full paths of the user's uploaded .txt files.
func (s *CheckService) UploadedFiles(userID int64) ([]string, error) {
	names, err := s.files.ListTxtFiles(userID)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path, err := s.files.UploadPath(userID, name)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// DeleteUserData wipes the user's stored files and drops their session.
func (s *CheckService) DeleteUserData(userID int64) error {
	s.sessions.Drop(userID)
	return s.files.DeleteUserData(userID)
}

// StartCheck parses the named upload and starts (or restarts) the user's
// review session, resuming at the saved position for that file.
func (s *CheckService) StartCheck(ctx context.Context, userID int64, name string) (*review.View, error) {
	lines, err := s.readUpload(userID, name)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Start(ctx, userID, name, lines, s.fixer)
	if err != nil {
		return nil, err
	}
	if err := s.files.MarkFileOpened(userID, name); err != nil {
		return nil, err
	}
	return sess.Current()
}

// CurrentView returns the record under the user's cursor.
func (s *CheckService) CurrentView(userID int64) (*review.View, error) {
	sess, err := s.sessions.Get(userID)
	if err != nil {
		return nil, err
	}
	return sess.Current()
}

// Navigate moves the cursor forward (delta > 0) or back (delta < 0), clamped
// at the ends.
func (s *CheckService) Navigate(userID int64, delta int) (*review.View, error) {
	sess, err := s.sessions.Get(userID)
	if err != nil {
		return nil, err
	}
	if delta > 0 {
		return sess.Next()
	}
	if delta < 0 {
		return sess.Prev()
	}
	return sess.Current()
}

// LabelCurrent assigns the record under the cursor to a label.
func (s *CheckService) LabelCurrent(userID int64, label string) (*review.View, error) {
	sess, err := s.sessions.Get(userID)
	if err != nil {
		return nil, err
	}
	return sess.Label(label)
}

// ExportFiles returns the non-empty label files of the user's session scope.
func (s *CheckService) ExportFiles(userID int64) ([]string, error) {
	sess, err := s.sessions.Get(userID)
	if err != nil {
		return nil, err
	}
	return sess.Export()
}

// Clean parses the named upload and renders every valid record as a
// human-readable block, blocks separated by blank lines.
func (s *CheckService) Clean(ctx context.Context, userID int64, name string) (string, error) {
	lines, err := s.readUpload(userID, name)
	if err != nil {
		return "", err
	}

	records := review.ParseAll(ctx, lines, s.fixer)
	if len(records) == 0 {
		return "", review.ErrNoValidAccounts
	}

	blocks := make([]string, 0, len(records))
	for _, r := range records {
		blocks = append(blocks, r.FormatBlock())
	}
	return strings.Join(blocks, "\n\n") + "\n", nil
}

// Separate parses the named upload and splits it into level buckets, subject
// to the daily per-user limit.
func (s *CheckService) Separate(ctx context.Context, userID int64, name string, clean bool) (map[account.BucketKey]string, error) {
	count, err := s.store.CountSeparationsSince(ctx, userID, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	if count >= s.dailySepLimit {
		return nil, ErrSeparationLimit
	}

	lines, err := s.readUpload(userID, name)
	if err != nil {
		return nil, err
	}
	records := review.ParseAll(ctx, lines, s.fixer)
	if len(records) == 0 {
		return nil, review.ErrNoValidAccounts
	}

	mode := account.RenderCanonical
	if clean {
		mode = account.RenderClean
	}
	buckets := account.Separate(records, mode)

	if err := s.store.RecordSeparation(ctx, userID); err != nil {
		return nil, err
	}
	return buckets, nil
}

// AllUserIDs returns every known user id.
func (s *CheckService) AllUserIDs(ctx context.Context) ([]int64, error) {
	return s.store.GetAllUserIDs(ctx)
}

// Username returns the stored username for a user, or "".
func (s *CheckService) Username(ctx context.Context, userID int64) (string, error) {
	return s.store.GetUsername(ctx, userID)
}

// BindGroup binds a chat as the destination for one label type.
func (s *CheckService) BindGroup(ctx context.Context, label string, chatID int64) error {
	return s.store.SetGroupTarget(ctx, label, chatID)
}

// GroupTarget returns the chat bound to a label type, or 0.
func (s *CheckService) GroupTarget(ctx context.Context, label string) (int64, error) {
	return s.store.GetGroupTarget(ctx, label)
}

func (s *CheckService) readUpload(userID int64, name string) ([]string, error) {
	path, err := s.files.UploadPath(userID, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n"), nil
}
