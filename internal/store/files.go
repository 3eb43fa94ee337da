package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/xelth-com/parcprepgo/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FileFilter narrows ListFiles
type FileFilter struct {
	Type        models.ParcPrepType
	OnlyDirty   bool
	OnlyDefault bool
	AACPrefix   string
}

// InsertFile creates a parc-prep file and its empty stats row.
// The new file starts dirty.
func (s *Store) InsertFile(ctx context.Context, f *models.ParcPrepFile) (*models.ParcPrepFile, error) {
	if f == nil {
		return nil, &ValidationError{Entity: "parc-prep file", Violations: Violations{"file": "required"}}
	}

	in := *f
	normalizeFile(&in)
	if in.CreationDate.IsZero() {
		in.CreationDate = s.now()
	}
	if err := validateFile(&in); err != nil {
		return nil, err
	}

	in.AllSynced = false
	in.Revision = 1
	in.SyncedRevision = 0
	in.LastSyncDate = nil
	in.LastSyncError = ""
	in.Stats = nil

	unlock := s.locks.Lock(in.ID)
	defer unlock()
	if in.IsDefault {
		s.defaultMu.Lock()
		defer s.defaultMu.Unlock()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ParcPrepFile{}).Where("id = ?", in.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("parc-prep file %q: %w", in.ID, ErrDuplicateKey)
		}

		if in.IsDefault {
			if err := demoteDefaults(tx, in.ID); err != nil {
				return err
			}
		}

		if err := tx.Omit(clause.Associations).Create(&in).Error; err != nil {
			return translate(err)
		}

		return tx.Create(&models.ParcPrepStats{ParcPrepID: in.ID}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("insert parc-prep file: %w", err)
	}

	s.notify(ChangeFileInserted, in.ID, "")
	return s.GetFile(ctx, in.ID)
}

// UpdateFile rewrites the header of an existing file. markDirty asks for a
// re-sync; a change to aac, type, creation date or site always requires one,
// whatever the caller says. The id is immutable.
func (s *Store) UpdateFile(ctx context.Context, f *models.ParcPrepFile, markDirty bool) (*models.ParcPrepFile, error) {
	if f == nil {
		return nil, &ValidationError{Entity: "parc-prep file", Violations: Violations{"file": "required"}}
	}

	in := *f
	normalizeFile(&in)
	if in.ID == "" {
		return nil, &ValidationError{Entity: "parc-prep file", Violations: Violations{"id": "required"}}
	}

	unlock := s.locks.Lock(in.ID)
	defer unlock()
	if in.IsDefault {
		s.defaultMu.Lock()
		defer s.defaultMu.Unlock()
	}

	var dirtied bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ParcPrepFile
		if err := tx.Where("id = ?", in.ID).Take(&existing).Error; err != nil {
			return translate(err)
		}

		if in.CreationDate.IsZero() {
			in.CreationDate = existing.CreationDate
		}
		if err := validateFile(&in); err != nil {
			return err
		}

		headerChanged := existing.AAC != in.AAC ||
			existing.Type != in.Type ||
			existing.Site != in.Site ||
			!existing.CreationDate.Equal(in.CreationDate)

		if in.IsDefault && !existing.IsDefault {
			if err := demoteDefaults(tx, in.ID); err != nil {
				return err
			}
		}

		updates := map[string]interface{}{
			"aac":           in.AAC,
			"type":          in.Type,
			"site":          in.Site,
			"creation_date": in.CreationDate.UTC(),
			"is_default":    in.IsDefault,
		}
		if markDirty || headerChanged {
			for k, v := range dirtyColumns() {
				updates[k] = v
			}
			dirtied = true
		}

		return tx.Model(&models.ParcPrepFile{}).Where("id = ?", in.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update parc-prep file %q: %w", in.ID, err)
	}

	if dirtied {
		s.notify(ChangeFileUpdated, in.ID, "")
	}
	return s.GetFile(ctx, in.ID)
}

// SetDefaultFile makes id the quick-entry target and demotes the previous
// one. The default flag is local only and never dirties a file.
func (s *Store) SetDefaultFile(ctx context.Context, id string) (*models.ParcPrepFile, error) {
	unlock := s.locks.Lock(id)
	defer unlock()
	s.defaultMu.Lock()
	defer s.defaultMu.Unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ParcPrepFile{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("parc-prep file %q: %w", id, ErrNotFound)
		}
		if err := demoteDefaults(tx, id); err != nil {
			return err
		}
		return tx.Model(&models.ParcPrepFile{}).Where("id = ?", id).Update("is_default", true).Error
	})
	if err != nil {
		return nil, fmt.Errorf("set default parc-prep file: %w", err)
	}
	return s.GetFile(ctx, id)
}

// DefaultFile returns the quick-entry target
func (s *Store) DefaultFile(ctx context.Context) (*models.ParcPrepFile, error) {
	var f models.ParcPrepFile
	err := s.db.WithContext(ctx).Preload("Stats").Where("is_default = ?", true).Take(&f).Error
	if err != nil {
		return nil, fmt.Errorf("default parc-prep file: %w", translate(err))
	}
	ensureStats(&f)
	return &f, nil
}

// GetFile returns one file joined with its stats
func (s *Store) GetFile(ctx context.Context, id string) (*models.ParcPrepFile, error) {
	var f models.ParcPrepFile
	err := s.db.WithContext(ctx).Preload("Stats").Where("id = ?", id).Take(&f).Error
	if err != nil {
		return nil, fmt.Errorf("parc-prep file %q: %w", id, translate(err))
	}
	ensureStats(&f)
	return &f, nil
}

// ListFiles returns files joined with their stats, newest first
func (s *Store) ListFiles(ctx context.Context, filter FileFilter) ([]models.ParcPrepFile, error) {
	q := s.db.WithContext(ctx).Model(&models.ParcPrepFile{}).Preload("Stats")

	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.OnlyDirty {
		q = q.Where("all_synced = ?", false)
	}
	if filter.OnlyDefault {
		q = q.Where("is_default = ?", true)
	}
	if filter.AACPrefix != "" {
		q = q.Where("aac LIKE ?", filter.AACPrefix+"%")
	}

	var files []models.ParcPrepFile
	if err := q.Order("creation_date DESC").Order("id ASC").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list parc-prep files: %w", err)
	}
	for i := range files {
		ensureStats(&files[i])
	}
	return files, nil
}

func demoteDefaults(tx *gorm.DB, exceptID string) error {
	return tx.Model(&models.ParcPrepFile{}).
		Where("is_default = ? AND id <> ?", true, exceptID).
		Update("is_default", false).Error
}

// dirtyColumns are the columns written by any mutation that needs a re-sync
func dirtyColumns() map[string]interface{} {
	return map[string]interface{}{
		"all_synced":      false,
		"revision":        gorm.Expr("revision + 1"),
		"last_sync_error": "",
	}
}

func markFileDirty(tx *gorm.DB, id string) error {
	res := tx.Model(&models.ParcPrepFile{}).Where("id = ?", id).Updates(dirtyColumns())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("parc-prep file %q: %w", id, ErrNotFound)
	}
	return nil
}

func ensureStats(f *models.ParcPrepFile) {
	if f.Stats == nil {
		f.Stats = &models.ParcPrepStats{ParcPrepID: f.ID}
	}
}

// isNotFound is true for both gorm and store not-found errors
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
