package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"conduit/internal/domain"
	"conduit/internal/roster"
	"conduit/internal/service"
	"conduit/internal/storage"
)

// Manager runs roster exports in the background with bounded concurrency.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	Enqueue(ctx context.Context, exportID int64) error
	Resume(ctx context.Context) error
}

type Config struct {
	Bucket        string
	KeyPrefix     string
	MaxConcurrent int
	Logger        logrus.FieldLogger
}

type manager struct {
	cfg     Config
	exports service.ExportService
	roster  service.RosterService
	storage storage.Service

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	active map[int64]struct{}
}

func NewManager(cfg Config, exports service.ExportService, rosterSvc service.RosterService, store storage.Service) Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	return &manager{
		cfg:     cfg,
		exports: exports,
		roster:  rosterSvc,
		storage: store,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		active:  make(map[int64]struct{}),
	}
}

func (m *manager) Start(ctx context.Context) error {
	if m.cfg.Bucket == "" {
		return fmt.Errorf("export bucket is required")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.cfg.Logger.Infof("export manager started, bucket: %s", m.cfg.Bucket)
	return nil
}

func (m *manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("export manager stopped")
}

func (m *manager) Enqueue(ctx context.Context, exportID int64) error {
	if m.ctx == nil {
		return fmt.Errorf("export manager not started")
	}
	export, err := m.exports.GetExport(ctx, exportID)
	if err != nil {
		return err
	}
	m.spawn(*export)
	return nil
}

// Resume re-queues exports left pending or running by a previous process.
func (m *manager) Resume(ctx context.Context) error {
	exports, err := m.exports.ListByStatuses(ctx, domain.ExportStatusPending, domain.ExportStatusRunning)
	if err != nil {
		return err
	}
	for i := range exports {
		m.spawn(exports[i])
	}
	return nil
}

func (m *manager) spawn(export domain.Export) {
	if !m.register(export.ID) {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.unregister(export.ID)
		select {
		case <-m.ctx.Done():
			return
		case m.sem <- struct{}{}:
			defer func() { <-m.sem }()
			m.run(m.ctx, &export)
		}
	}()
}

// register reports false when the export is already queued in this process.
func (m *manager) register(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[id]; ok {
		return false
	}
	m.active[id] = struct{}{}
	return true
}

func (m *manager) unregister(id int64) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

func (m *manager) run(ctx context.Context, export *domain.Export) {
	logger := m.cfg.Logger.WithField("export_id", export.ID)
	if export.Finished() {
		logger.Debug("export already finished, skipping")
		return
	}

	if err := m.exports.UpdateStatus(ctx, export.ID, domain.ExportStatusRunning, nil); err != nil {
		logger.Errorf("update status failed: %v", err)
		return
	}

	stats, err := m.roster.ComputeRoster(ctx)
	if err != nil {
		m.fail(ctx, export.ID, fmt.Errorf("compute roster: %w", err))
		return
	}

	body, err := json.Marshal(roster.Snapshot{
		ExportID:    export.ID,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Roster:      roster.Rows(stats),
	})
	if err != nil {
		m.fail(ctx, export.ID, fmt.Errorf("encode snapshot: %w", err))
		return
	}

	location, err := m.storage.Upload(ctx, m.cfg.Bucket, m.objectKey(export.ID), bytes.NewReader(body), "application/json")
	if err != nil {
		m.fail(ctx, export.ID, err)
		return
	}

	if err := m.exports.MarkCompleted(ctx, export.ID, location, len(stats)); err != nil {
		logger.Errorf("mark completed failed: %v", err)
		return
	}
	logger.WithFields(logrus.Fields{"rows": len(stats), "location": location}).Info("roster export completed")
}

func (m *manager) objectKey(exportID int64) string {
	name := fmt.Sprintf("roster-%d-%s.json", exportID, strings.SplitN(uuid.NewString(), "-", 2)[0])
	if m.cfg.KeyPrefix == "" {
		return name
	}
	return path.Join(m.cfg.KeyPrefix, name)
}

func (m *manager) fail(ctx context.Context, exportID int64, failErr error) {
	if ctx.Err() != nil && errors.Is(failErr, context.Canceled) {
		// interrupted by shutdown; left running so Resume retries it
		m.cfg.Logger.WithField("export_id", exportID).Warnf("export interrupted: %v", failErr)
		return
	}
	msg := failErr.Error()
	// the run context may already be cancelled; the failure should still land
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.exports.UpdateStatus(persistCtx, exportID, domain.ExportStatusFailed, &msg); err != nil {
		m.cfg.Logger.WithField("export_id", exportID).Errorf("persist failure status: %v", err)
	}
	m.cfg.Logger.WithField("export_id", exportID).Error(msg)
}
