package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduit/internal/domain"
	"conduit/internal/repository/sqlite"
	"conduit/internal/roster"
	"conduit/internal/service"
	"conduit/internal/storage"
)

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) Upload(_ context.Context, bucket, key string, body io.Reader, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return storage.Location(bucket, key), nil
}

func (m *memoryStorage) ListObjects(context.Context, string, string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]storage.ObjectInfo, 0, len(m.objects))
	for key, data := range m.objects {
		out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(data))})
	}
	return out, nil
}

func (m *memoryStorage) PresignGet(context.Context, string, string, time.Duration) (string, error) {
	return "", errors.New("not supported")
}

func (m *memoryStorage) object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

type staticRoster struct {
	stats []domain.UserStat
	err   error
}

func (s staticRoster) ComputeRoster(context.Context) ([]domain.UserStat, error) {
	return s.stats, s.err
}

// blockingRoster holds ComputeRoster until its context is cancelled.
type blockingRoster struct {
	entered chan struct{}
	once    sync.Once
}

func (b *blockingRoster) ComputeRoster(ctx context.Context) ([]domain.UserStat, error) {
	b.once.Do(func() { close(b.entered) })
	<-ctx.Done()
	return nil, fmt.Errorf("%w: list users: %w", service.ErrStoreUnavailable, ctx.Err())
}

func newExportService(t *testing.T) service.ExportService {
	t.Helper()
	db, err := sqlite.NewStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return service.NewExportService(db.Exports)
}

func newManager(exports service.ExportService, rosterSvc service.RosterService, store storage.Service) Manager {
	logger, _ := test.NewNullLogger()
	return NewManager(Config{Bucket: "rosters", KeyPrefix: "/snapshots/", Logger: logger}, exports, rosterSvc, store)
}

func setup(t *testing.T, rosterSvc service.RosterService, store storage.Service) (service.ExportService, Manager) {
	t.Helper()
	exports := newExportService(t)
	return exports, newManager(exports, rosterSvc, store)
}

func waitFinished(t *testing.T, exports service.ExportService, id int64) *domain.Export {
	t.Helper()
	var export *domain.Export
	require.Eventually(t, func() bool {
		got, err := exports.GetExport(context.Background(), id)
		if err != nil {
			return false
		}
		export = got
		return got.Finished()
	}, 5*time.Second, 10*time.Millisecond)
	return export
}

func TestManager_UploadsSnapshot(t *testing.T) {
	first := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	stats := []domain.UserStat{
		{Username: "alice", TotalArticles: 2, TotalFavorites: 8, FirstArticleDate: &first},
		{Username: "bob"},
	}
	store := newMemoryStorage()
	exports, mgr := setup(t, staticRoster{stats: stats}, store)
	ctx := context.Background()
	require.NoError(t, mgr.Start(ctx))
	defer mgr.Shutdown()

	export, err := exports.CreateExport(ctx)
	require.NoError(t, err)
	require.NoError(t, mgr.Enqueue(ctx, export.ID))

	done := waitFinished(t, exports, export.ID)
	require.Equal(t, domain.ExportStatusCompleted, done.Status, done.ErrorMessage)
	assert.Equal(t, 2, done.Rows)
	require.NotNil(t, done.CompletedAt)

	key, err := storage.SplitLocation(done.Location, "rosters")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "snapshots/roster-"), key)

	data, ok := store.object(key)
	require.True(t, ok)
	var snap roster.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, export.ID, snap.ExportID)
	assert.Equal(t, roster.Rows(stats), snap.Roster)
}

func TestManager_RosterFailureMarksFailed(t *testing.T) {
	exports, mgr := setup(t, staticRoster{err: service.ErrStoreUnavailable}, newMemoryStorage())
	ctx := context.Background()
	require.NoError(t, mgr.Start(ctx))
	defer mgr.Shutdown()

	export, err := exports.CreateExport(ctx)
	require.NoError(t, err)
	require.NoError(t, mgr.Enqueue(ctx, export.ID))

	done := waitFinished(t, exports, export.ID)
	assert.Equal(t, domain.ExportStatusFailed, done.Status)
	assert.Contains(t, done.ErrorMessage, "compute roster")
	assert.Empty(t, done.Location)
}

func TestManager_UploadFailureMarksFailed(t *testing.T) {
	store := newMemoryStorage()
	store.err = errors.New("bucket unreachable")
	exports, mgr := setup(t, staticRoster{}, store)
	ctx := context.Background()
	require.NoError(t, mgr.Start(ctx))
	defer mgr.Shutdown()

	export, err := exports.CreateExport(ctx)
	require.NoError(t, err)
	require.NoError(t, mgr.Enqueue(ctx, export.ID))

	done := waitFinished(t, exports, export.ID)
	assert.Equal(t, domain.ExportStatusFailed, done.Status)
	assert.Contains(t, done.ErrorMessage, "bucket unreachable")
}

func TestManager_ResumePicksUpUnfinished(t *testing.T) {
	store := newMemoryStorage()
	exports, mgr := setup(t, staticRoster{stats: []domain.UserStat{{Username: "bob"}}}, store)
	ctx := context.Background()

	pending, err := exports.CreateExport(ctx)
	require.NoError(t, err)
	running, err := exports.CreateExport(ctx)
	require.NoError(t, err)
	require.NoError(t, exports.UpdateStatus(ctx, running.ID, domain.ExportStatusRunning, nil))

	require.NoError(t, mgr.Start(ctx))
	defer mgr.Shutdown()
	require.NoError(t, mgr.Resume(ctx))

	for _, id := range []int64{pending.ID, running.ID} {
		done := waitFinished(t, exports, id)
		assert.Equal(t, domain.ExportStatusCompleted, done.Status)
	}
	objects, err := store.ListObjects(ctx, "rosters", "")
	require.NoError(t, err)
	assert.Len(t, objects, 2)
}

func TestManager_RequiresStartAndBucket(t *testing.T) {
	exports, mgr := setup(t, staticRoster{}, newMemoryStorage())
	ctx := context.Background()

	assert.Error(t, mgr.Enqueue(ctx, 1))

	noBucket := NewManager(Config{}, exports, staticRoster{}, newMemoryStorage())
	assert.Error(t, noBucket.Start(ctx))
}

func TestManager_ShutdownLeavesExportResumable(t *testing.T) {
	exports := newExportService(t)
	ctx := context.Background()

	blocking := &blockingRoster{entered: make(chan struct{})}
	mgr := newManager(exports, blocking, newMemoryStorage())
	require.NoError(t, mgr.Start(ctx))

	export, err := exports.CreateExport(ctx)
	require.NoError(t, err)
	require.NoError(t, mgr.Enqueue(ctx, export.ID))

	select {
	case <-blocking.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("export never started")
	}
	mgr.Shutdown()

	got, err := exports.GetExport(ctx, export.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusRunning, got.Status)
	assert.Empty(t, got.ErrorMessage)

	store := newMemoryStorage()
	next := newManager(exports, staticRoster{stats: []domain.UserStat{{Username: "bob"}}}, store)
	require.NoError(t, next.Start(ctx))
	defer next.Shutdown()
	require.NoError(t, next.Resume(ctx))

	done := waitFinished(t, exports, export.ID)
	assert.Equal(t, domain.ExportStatusCompleted, done.Status)
	assert.Equal(t, 1, done.Rows)
}
