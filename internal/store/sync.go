package store

import (
	"context"
	"fmt"
	"time"

	"github.com/xelth-com/parcprepgo/internal/models"
	"gorm.io/gorm"
)

// Snapshot is a consistent view of one file taken for a push
type Snapshot struct {
	File     models.ParcPrepFile
	Logs     []models.Log
	Revision int64
	TakenAt  time.Time
}

// DirtyFileIDs lists files that need a push, oldest first
func (s *Store) DirtyFileIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.ParcPrepFile{}).
		Where("all_synced = ?", false).
		Order("creation_date ASC").
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("dirty parc-prep files: %w", err)
	}
	return ids, nil
}

// SyncSnapshot reads a file and all its logs in one transaction while
// holding the file's writer lock, so the revision matches the rows.
func (s *Store) SyncSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	snap := &Snapshot{TakenAt: s.now()}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Stats").Where("id = ?", id).Take(&snap.File).Error; err != nil {
			return translate(err)
		}
		ensureStats(&snap.File)

		snap.Logs = make([]models.Log, 0)
		if err := tx.Where("parc_prep_id = ?", id).Order(logReadOrder).Find(&snap.Logs).Error; err != nil {
			return err
		}
		snap.Revision = snap.File.Revision
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot parc-prep file %q: %w", id, err)
	}
	return snap, nil
}

// MarkSynced records an acknowledged push of revision. The file only
// becomes synced when nothing mutated it since the snapshot; otherwise the
// sync date is still recorded and false is returned.
func (s *Store) MarkSynced(ctx context.Context, id string, revision int64, syncedAt time.Time) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	at := syncedAt.UTC()
	var cleared bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ParcPrepFile{}).
			Where("id = ? AND revision = ?", id, revision).
			Updates(map[string]interface{}{
				"all_synced":      true,
				"synced_revision": revision,
				"last_sync_date":  at,
				"last_sync_error": "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			cleared = true
			return nil
		}

		// Superseded: keep the dirty flag, remember what the ERP has.
		res = tx.Model(&models.ParcPrepFile{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"synced_revision": revision,
				"last_sync_date":  at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("parc-prep file %q: %w", id, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("mark synced: %w", err)
	}

	if cleared {
		s.notify(ChangeFileSynced, id, "")
	}
	return cleared, nil
}

// MarkSyncFailed stores the failure reason. The dirty flag is left as it is:
// only a local mutation dirties a file, so a failed re-push of a synced file
// keeps it synced.
func (s *Store) MarkSyncFailed(ctx context.Context, id string, reason string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	res := s.db.WithContext(ctx).
		Model(&models.ParcPrepFile{}).
		Where("id = ?", id).
		Update("last_sync_error", reason)
	if res.Error != nil {
		return fmt.Errorf("mark sync failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark sync failed: parc-prep file %q: %w", id, ErrNotFound)
	}

	s.notify(ChangeSyncFailed, id, "")
	return nil
}

// RecordSyncHistory appends one push pass to the audit table
func (s *Store) RecordSyncHistory(ctx context.Context, h *models.SyncHistory) error {
	if err := s.db.WithContext(ctx).Create(h).Error; err != nil {
		return fmt.Errorf("record sync history: %w", err)
	}
	return nil
}

// RecentSyncHistory returns the latest passes, newest first
func (s *Store) RecentSyncHistory(ctx context.Context, limit int) ([]models.SyncHistory, error) {
	if limit <= 0 {
		limit = 30
	}
	history := make([]models.SyncHistory, 0)
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("sync history: %w", err)
	}
	return history, nil
}
