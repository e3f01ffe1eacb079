package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Kurz4K/RZXInfoBot/internal/files"
	"github.com/Kurz4K/RZXInfoBot/internal/labels"
	"github.com/Kurz4K/RZXInfoBot/internal/review"
)

// mockStore is a mock implementation of Store for tests.
type mockStore struct {
	separationCount int
	separationsRun  int
	users           map[int64]string
	groupTargets    map[string]int64
}

func newMockStore() *mockStore {
	return &mockStore{
		users:        make(map[int64]string),
		groupTargets: make(map[string]int64),
	}
}

func (m *mockStore) UpsertUser(ctx context.Context, tgID int64, username string) error {
	m.users[tgID] = username
	return nil
}

func (m *mockStore) GetAllUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	for id := range m.users {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *mockStore) GetUsername(ctx context.Context, tgID int64) (string, error) {
	return m.users[tgID], nil
}

func (m *mockStore) RecordSeparation(ctx context.Context, tgID int64) error {
	m.separationsRun++
	return nil
}

func (m *mockStore) CountSeparationsSince(ctx context.Context, tgID int64, since time.Time) (int, error) {
	return m.separationCount, nil
}

func (m *mockStore) SetGroupTarget(ctx context.Context, label string, chatID int64) error {
	m.groupTargets[label] = chatID
	return nil
}

func (m *mockStore) GetGroupTarget(ctx context.Context, label string) (int64, error) {
	return m.groupTargets[label], nil
}

const (
	testUser = int64(99)
	fooLine  = "a@x.com:pw1 | uid = 111 (2001) | name = Foo | max_rank = Mythic | level = 45 | country = US | is_banned = False"
	barLine  = "b@x.com:pw2 | uid = 222 (2002) | name = Bar | max_rank = Epic | level = 15 | country = PH | is_banned = True"
)

func newTestService(t *testing.T, store Store) *CheckService {
	t.Helper()
	base := t.TempDir()
	fm := files.NewManager(base)
	sessions := review.NewManager(labels.NewStore(base))
	return New(fm, store, sessions, nil, 30, 1)
}

func TestSaveUpload_Quota(t *testing.T) {
	svc := newTestService(t, newMockStore())
	svc.maxUploadMB = 1

	_, err := svc.SaveUpload(testUser, "small.txt", []byte(fooLine))
	require.NoError(t, err)

	_, err = svc.SaveUpload(testUser, "big.txt", bytes.Repeat([]byte("x"), 2*1024*1024))
	require.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestStartCheck_AndNavigate(t *testing.T) {
	svc := newTestService(t, newMockStore())

	_, err := svc.SaveUpload(testUser, "accounts.txt", []byte(fooLine+"\n"+barLine+"\n"))
	require.NoError(t, err)

	view, err := svc.StartCheck(context.Background(), testUser, "accounts.txt")
	require.NoError(t, err)
	require.Equal(t, 0, view.Index)
	require.Equal(t, 2, view.Total)
	require.Equal(t, "Foo", view.Record.Name)

	view, err = svc.Navigate(testUser, 1)
	require.NoError(t, err)
	require.Equal(t, "Bar", view.Record.Name)

	view, err = svc.LabelCurrent(testUser, "Banned")
	require.NoError(t, err)
	require.Equal(t, "Banned", view.Label)

	paths, err := svc.ExportFiles(testUser)
	require.NoError(t, err)
	require.Len(t, paths, 1)
}

func TestStartCheck_NoSession(t *testing.T) {
	svc := newTestService(t, newMockStore())
	_, err := svc.CurrentView(testUser)
	require.ErrorIs(t, err, review.ErrSessionNotFound)
}

func TestClean(t *testing.T) {
	svc := newTestService(t, newMockStore())

	_, err := svc.SaveUpload(testUser, "accounts.txt", []byte(fooLine+"\nnot parseable\n"+barLine+"\n"))
	require.NoError(t, err)

	text, err := svc.Clean(context.Background(), testUser, "accounts.txt")
	require.NoError(t, err)
	require.Contains(t, text, "👤 Username: Foo")
	require.Contains(t, text, "👤 Username: Bar")
	require.NotContains(t, text, "not parseable")
}

func TestClean_NoValidLines(t *testing.T) {
	svc := newTestService(t, newMockStore())

	_, err := svc.SaveUpload(testUser, "junk.txt", []byte("junk\nmore junk\n"))
	require.NoError(t, err)

	_, err = svc.Clean(context.Background(), testUser, "junk.txt")
	require.ErrorIs(t, err, review.ErrNoValidAccounts)
}

func TestSeparate(t *testing.T) {
	store := newMockStore()
	svc := newTestService(t, store)

	_, err := svc.SaveUpload(testUser, "accounts.txt", []byte(fooLine+"\n"+barLine+"\n"))
	require.NoError(t, err)

	buckets, err := svc.Separate(context.Background(), testUser, "accounts.txt", false)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	require.Contains(t, buckets["31-60"], "Foo")
	require.Contains(t, buckets["0-30"], "Bar")
	require.Equal(t, 1, store.separationsRun)
}

func TestSeparate_DailyLimit(t *testing.T) {
	store := newMockStore()
	store.separationCount = 1
	svc := newTestService(t, store)

	_, err := svc.SaveUpload(testUser, "accounts.txt", []byte(fooLine+"\n"))
	require.NoError(t, err)

	_, err = svc.Separate(context.Background(), testUser, "accounts.txt", false)
	require.ErrorIs(t, err, ErrSeparationLimit)
	require.Zero(t, store.separationsRun)
}

func TestDeleteUserData_DropsSession(t *testing.T) {
	svc := newTestService(t, newMockStore())

	_, err := svc.SaveUpload(testUser, "accounts.txt", []byte(fooLine+"\n"))
	require.NoError(t, err)
	_, err = svc.StartCheck(context.Background(), testUser, "accounts.txt")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUserData(testUser))

	_, err = svc.CurrentView(testUser)
	require.ErrorIs(t, err, review.ErrSessionNotFound)

	names, err := svc.ListFiles(testUser)
	require.NoError(t, err)
	require.Empty(t, names)
}
