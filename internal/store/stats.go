package store

import (
	"errors"

	"github.com/xelth-com/parcprepgo/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// insertLogWithStats writes l and moves the stats rollup forward.
// A missing stats row is rebuilt from the log table instead of failing.
func insertLogWithStats(tx *gorm.DB, l *models.Log) error {
	var stats models.ParcPrepStats
	err := tx.Where("parc_prep_id = ?", l.ParcPrepID).Take(&stats).Error
	missing := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !missing {
		return err
	}

	var maxSeq int64
	if err := tx.Model(&models.Log{}).
		Where("parc_prep_id = ?", l.ParcPrepID).
		Select("COALESCE(MAX(insert_seq), 0)").
		Scan(&maxSeq).Error; err != nil {
		return err
	}
	l.InsertSeq = maxSeq + 1

	if err := tx.Create(l).Error; err != nil {
		return translate(err)
	}

	if missing {
		return recomputeStats(tx, l.ParcPrepID)
	}

	stats.LogsNumber++
	// Later insertion wins a tie on creation date.
	if stats.LastLogDate == nil || !l.CreationDate.Before(*stats.LastLogDate) {
		date := l.CreationDate.UTC()
		id := l.ID
		stats.LastLogDate = &date
		stats.LastLogID = &id
	}

	return upsertStats(tx, &stats)
}

// recomputeStats rebuilds the rollup of a file from its log rows. Used on
// update, where the edited log may have been (or become) the latest one.
func recomputeStats(tx *gorm.DB, parcPrepID string) error {
	stats := models.ParcPrepStats{ParcPrepID: parcPrepID}

	if err := tx.Model(&models.Log{}).Where("parc_prep_id = ?", parcPrepID).Count(&stats.LogsNumber).Error; err != nil {
		return err
	}

	var latest models.Log
	err := tx.Where("parc_prep_id = ?", parcPrepID).
		Order("creation_date DESC").
		Order("insert_seq DESC").
		Take(&latest).Error
	switch {
	case err == nil:
		date := latest.CreationDate.UTC()
		id := latest.ID
		stats.LastLogDate = &date
		stats.LastLogID = &id
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	return upsertStats(tx, &stats)
}

func upsertStats(tx *gorm.DB, stats *models.ParcPrepStats) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "parc_prep_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"logs_number", "last_log_date", "last_log_id", "updated_at"}),
	}).Create(stats).Error
}
