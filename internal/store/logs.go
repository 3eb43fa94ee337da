package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/xelth-com/parcprepgo/internal/models"
	"gorm.io/gorm"
)

// Projection selects the shape returned by ListLogsForFile
type Projection int

const (
	ProjectionFull    Projection = iota // every column, models.Log
	ProjectionBarcode                   // id, barcode and section, models.LogSummary
)

const logReadOrder = "creation_date ASC, insert_seq ASC"

// InsertLog records a scanned item. An empty ParcPrepID targets the default
// file; an empty ID is generated; an empty creation date is now. The stats
// rollup and the file's dirty marker are written in the same transaction.
func (s *Store) InsertLog(ctx context.Context, l *models.Log) (*models.Log, error) {
	if l == nil {
		return nil, &ValidationError{Entity: "log", Violations: Violations{"log": "required"}}
	}

	in := *l
	normalizeLog(&in)

	if in.ParcPrepID == "" {
		def, err := s.DefaultFile(ctx)
		if err != nil {
			if isNotFound(err) {
				return nil, &ValidationError{Entity: "log", Violations: Violations{"parcPrepId": "required (no default file)"}}
			}
			return nil, err
		}
		in.ParcPrepID = def.ID
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreationDate.IsZero() {
		in.CreationDate = s.now()
	}
	if err := validateLog(&in); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(in.ParcPrepID)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var files int64
		if err := tx.Model(&models.ParcPrepFile{}).Where("id = ?", in.ParcPrepID).Count(&files).Error; err != nil {
			return err
		}
		if files == 0 {
			return fmt.Errorf("parc-prep file %q: %w", in.ParcPrepID, ErrForeignKeyViolation)
		}

		var dup int64
		if err := tx.Model(&models.Log{}).
			Where("parc_prep_id = ? AND id = ?", in.ParcPrepID, in.ID).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return fmt.Errorf("log %q in %q: %w", in.ID, in.ParcPrepID, ErrDuplicateKey)
		}

		if err := insertLogWithStats(tx, &in); err != nil {
			return err
		}
		return markFileDirty(tx, in.ParcPrepID)
	})
	if err != nil {
		return nil, fmt.Errorf("insert log: %w", err)
	}

	s.notify(ChangeLogInserted, in.ParcPrepID, in.ID)
	return s.getLog(ctx, in.ParcPrepID, in.ID)
}

// UpdateLog rewrites the log id within l.ParcPrepID. A zero creation date
// keeps the stored one. Stats are recomputed by re-scanning the file's logs.
func (s *Store) UpdateLog(ctx context.Context, id string, l *models.Log) (*models.Log, error) {
	if l == nil {
		return nil, &ValidationError{Entity: "log", Violations: Violations{"log": "required"}}
	}

	in := *l
	in.ID = id
	normalizeLog(&in)
	if err := validateLog(&in); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(in.ParcPrepID)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Log
		if err := tx.Where("parc_prep_id = ? AND id = ?", in.ParcPrepID, in.ID).Take(&existing).Error; err != nil {
			return fmt.Errorf("log %q in %q: %w", in.ID, in.ParcPrepID, translate(err))
		}

		updates := map[string]interface{}{
			"barcode":        in.BarCode,
			"section_number": in.SectionNumber,
			"site":           in.Site,
		}
		if !in.CreationDate.IsZero() {
			updates["creation_date"] = in.CreationDate.UTC()
		}

		if err := tx.Model(&models.Log{}).
			Where("parc_prep_id = ? AND id = ?", in.ParcPrepID, in.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		if err := recomputeStats(tx, in.ParcPrepID); err != nil {
			return err
		}
		return markFileDirty(tx, in.ParcPrepID)
	})
	if err != nil {
		return nil, fmt.Errorf("update log: %w", err)
	}

	s.notify(ChangeLogUpdated, in.ParcPrepID, in.ID)
	return s.getLog(ctx, in.ParcPrepID, in.ID)
}

// ListLogsForFile returns []models.Log or []models.LogSummary depending on p
func (s *Store) ListLogsForFile(ctx context.Context, parcPrepID string, p Projection) (interface{}, error) {
	if p == ProjectionBarcode {
		return s.GetRawLogs(ctx, parcPrepID)
	}
	return s.GetLogs(ctx, parcPrepID)
}

// GetLogs returns every column of a file's logs, oldest first
func (s *Store) GetLogs(ctx context.Context, parcPrepID string) ([]models.Log, error) {
	logs := make([]models.Log, 0)
	err := s.db.WithContext(ctx).
		Where("parc_prep_id = ?", parcPrepID).
		Order(logReadOrder).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("logs of %q: %w", parcPrepID, err)
	}
	return logs, nil
}

// GetRawLogs returns the barcode-only projection, oldest first
func (s *Store) GetRawLogs(ctx context.Context, parcPrepID string) ([]models.LogSummary, error) {
	out := make([]models.LogSummary, 0)
	err := s.db.WithContext(ctx).
		Model(&models.Log{}).
		Select("id", "barcode", "section_number").
		Where("parc_prep_id = ?", parcPrepID).
		Order(logReadOrder).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("raw logs of %q: %w", parcPrepID, err)
	}
	return out, nil
}

func (s *Store) getLog(ctx context.Context, parcPrepID, id string) (*models.Log, error) {
	var l models.Log
	err := s.db.WithContext(ctx).Where("parc_prep_id = ? AND id = ?", parcPrepID, id).Take(&l).Error
	if err != nil {
		return nil, fmt.Errorf("log %q in %q: %w", id, parcPrepID, translate(err))
	}
	return &l, nil
}
