// Package backup snapshots the record store to JSON files on disk. A
// snapshot is a secondary safety net behind Postgres; failures are
// logged by callers and never fail an import.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zhwen/stockpool/backend/internal/contracts"
	"github.com/zhwen/stockpool/backend/pkg/logger"
)

const (
	snapshotPrefix = "snapshot-"
	snapshotExt    = ".json"
	fileTimeLayout = "20060102-150405"
)

// Snapshot is the on-disk shape: one JSON document holding all four
// collections.
type Snapshot struct {
	TakenAt time.Time                    `json:"takenAt"`
	Infos   []*contracts.StockInfo       `json:"stockInfos"`
	Records []*contracts.DailyRecord     `json:"dailyRecords"`
	Metas   []*contracts.DateMeta        `json:"dateMetas"`
	Blobs   []*contracts.AnalysisSummary `json:"analyses"`
}

// Manager writes, restores, and prunes snapshots in one directory.
type Manager struct {
	store  contracts.RecordStore
	dir    string
	keep   int
	logger *logger.Logger
	now    func() time.Time
}

var _ contracts.BackupSink = (*Manager)(nil)

// New creates a Manager. keep <= 0 disables pruning.
func New(store contracts.RecordStore, dir string, keep int, log *logger.Logger) *Manager {
	return &Manager{
		store:  store,
		dir:    dir,
		keep:   keep,
		logger: log,
		now:    time.Now,
	}
}

// Snapshot dumps the whole store to a timestamped file and returns its
// path. The file appears atomically: content goes to a temp file first
// and is renamed into place, so a crash never leaves a half snapshot.
func (m *Manager) Snapshot(ctx context.Context) (string, error) {
	snap := Snapshot{TakenAt: m.now()}

	var err error
	if snap.Infos, err = m.store.ListStockInfos(ctx); err != nil {
		return "", fmt.Errorf("snapshot stock infos: %w", err)
	}
	if snap.Records, err = m.store.ListDailyRecords(ctx); err != nil {
		return "", fmt.Errorf("snapshot daily records: %w", err)
	}
	if snap.Metas, err = m.store.ListDateMetas(ctx); err != nil {
		return "", fmt.Errorf("snapshot date metas: %w", err)
	}
	if snap.Blobs, err = m.store.ListAnalyses(ctx); err != nil {
		return "", fmt.Errorf("snapshot analyses: %w", err)
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	name := snapshotPrefix + snap.TakenAt.Format(fileTimeLayout) + snapshotExt
	path := filepath.Join(m.dir, name)

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(m.dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize snapshot: %w", err)
	}

	m.logger.WithFields(map[string]interface{}{
		"path":    path,
		"records": len(snap.Records),
		"dates":   len(snap.Metas),
	}).Info("Snapshot written")

	if m.keep > 0 {
		if err := m.Prune(m.keep); err != nil {
			m.logger.WithError(err).Warn("Snapshot prune failed")
		}
	}
	return path, nil
}

// Restore loads a snapshot file back into the store. Existing rows with
// the same keys are overwritten; rows the snapshot does not know about
// are left alone.
func (m *Manager) Restore(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", filepath.Base(path), err)
	}

	err = m.store.WithinTx(ctx, func(tx contracts.RecordTx) error {
		for _, info := range snap.Infos {
			if err := tx.UpsertStockInfo(ctx, info); err != nil {
				return err
			}
		}
		for _, rec := range snap.Records {
			if err := tx.PutDailyRecord(ctx, rec); err != nil {
				return err
			}
		}
		for _, meta := range snap.Metas {
			if err := tx.PutDateMeta(ctx, meta); err != nil {
				return err
			}
		}
		for _, blob := range snap.Blobs {
			if err := tx.PutAnalysis(ctx, blob); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}

	m.logger.WithFields(map[string]interface{}{
		"path":    path,
		"records": len(snap.Records),
	}).Info("Snapshot restored")
	return nil
}

// List returns snapshot file paths, newest first.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backup dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		paths = append(paths, filepath.Join(m.dir, name))
	}

	// Timestamps in the names are fixed-width, so name order is time order.
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}

// Latest returns the newest snapshot path, or "" when none exist.
func (m *Manager) Latest() (string, error) {
	paths, err := m.List()
	if err != nil || len(paths) == 0 {
		return "", err
	}
	return paths[0], nil
}

// Prune deletes all but the newest keep snapshots.
func (m *Manager) Prune(keep int) error {
	paths, err := m.List()
	if err != nil {
		return err
	}
	if keep < 0 {
		keep = 0
	}

	for _, path := range paths[min(keep, len(paths)):] {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("prune snapshot %s: %w", filepath.Base(path), err)
		}
		m.logger.WithField("path", path).Debug("Pruned old snapshot")
	}
	return nil
}
