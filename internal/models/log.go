package models

import (
	"time"

	"gorm.io/gorm"
)

// Log is one scanned item (a "bille") recorded against a parc-prep file.
// The id is unique within its file.
type Log struct {
	ParcPrepID    string    `gorm:"primaryKey;type:varchar(255);index:idx_logs_order,priority:1" json:"parcPrepId"`
	ID            string    `gorm:"primaryKey;type:varchar(255)" json:"id"`
	BarCode       string    `gorm:"column:barcode;type:varchar(255);not null;index" json:"barCode"`
	SectionNumber string    `gorm:"type:varchar(255);not null" json:"sectionNumber"`
	Site          string    `gorm:"type:varchar(255)" json:"site,omitempty"`
	CreationDate  time.Time `gorm:"not null;index:idx_logs_order,priority:2" json:"creationDate"`
	InsertSeq     int64     `gorm:"not null;index:idx_logs_order,priority:3" json:"-"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

// TableName specifies the table name for Log
func (Log) TableName() string {
	return "logs"
}

// BeforeSave normalizes the creation date to UTC
func (l *Log) BeforeSave(tx *gorm.DB) error {
	l.CreationDate = l.CreationDate.UTC()
	return nil
}

// LogSummary is the lightweight projection used by compact list displays
type LogSummary struct {
	ID            string `json:"id"`
	BarCode       string `gorm:"column:barcode" json:"barCode"`
	SectionNumber string `json:"sectionNumber"`
}

// ResolveSite returns the location of a log: its own site when set,
// otherwise the site of the file it belongs to.
func ResolveSite(l Log, f ParcPrepFile) string {
	if l.Site != "" {
		return l.Site
	}
	return f.Site
}
