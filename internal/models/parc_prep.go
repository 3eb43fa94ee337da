package models

import (
	"time"

	"gorm.io/gorm"
)

// ParcPrepType is the kind of preparation batch
type ParcPrepType string

const (
	ParcPrepTypeBarcodeAssignment ParcPrepType = "Attribution code a barre"
	ParcPrepTypeInventory         ParcPrepType = "Inventaire"
)

// Valid reports whether t is one of the known batch kinds
func (t ParcPrepType) Valid() bool {
	return t == ParcPrepTypeBarcodeAssignment || t == ParcPrepTypeInventory
}

// ParcPrepFile is a preparation batch identified by the barcode printed on its label.
// Convention: Go PascalCase -> DB snake_case (GORM auto) -> JSON camelCase
type ParcPrepFile struct {
	ID           string       `gorm:"primaryKey;type:varchar(255)" json:"id"`
	AAC          string       `gorm:"column:aac;type:varchar(8);not null;index" json:"aac"`
	Type         ParcPrepType `gorm:"type:varchar(50);not null" json:"type"`
	CreationDate time.Time    `gorm:"not null;index" json:"creationDate"`
	Site         string       `gorm:"type:varchar(255)" json:"site,omitempty"`
	IsDefault    bool         `gorm:"not null;default:false;index" json:"isDefault"`
	AllSynced    bool         `gorm:"not null;default:false;index" json:"allSynced"`

	// Revision is bumped by every mutation that needs a re-sync; a sync
	// acknowledgment only clears AllSynced when it still matches.
	Revision       int64      `gorm:"not null;default:0" json:"revision"`
	SyncedRevision int64      `gorm:"not null;default:0" json:"-"`
	LastSyncDate   *time.Time `json:"lastSyncDate,omitempty"`
	LastSyncError  string     `gorm:"type:text" json:"lastSyncError,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	Stats *ParcPrepStats `gorm:"foreignKey:ParcPrepID;references:ID" json:"stats,omitempty"`
}

// TableName specifies the table name for ParcPrepFile
func (ParcPrepFile) TableName() string {
	return "parc_prep_files"
}

// BeforeSave keeps every timestamp in UTC so lexical ordering in SQLite matches time ordering
func (f *ParcPrepFile) BeforeSave(tx *gorm.DB) error {
	f.CreationDate = f.CreationDate.UTC()
	if f.LastSyncDate != nil {
		t := f.LastSyncDate.UTC()
		f.LastSyncDate = &t
	}
	return nil
}

// ParcPrepStats is the denormalized per-file rollup read by list and detail views.
// It is written only as a side effect of log mutations.
type ParcPrepStats struct {
	ParcPrepID  string     `gorm:"primaryKey;type:varchar(255)" json:"-"`
	LogsNumber  int64      `gorm:"not null;default:0" json:"logsNumber"`
	LastLogDate *time.Time `json:"lastLogDate"`
	LastLogID   *string    `gorm:"type:varchar(255)" json:"lastLogId"`
	UpdatedAt   time.Time  `json:"-"`
}

// TableName specifies the table name for ParcPrepStats
func (ParcPrepStats) TableName() string {
	return "parc_prep_stats"
}
