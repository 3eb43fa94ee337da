package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncHistory records each push pass towards the ERP
type SyncHistory struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider    string         `gorm:"column:provider;not null;index" json:"provider"` // "odoo-jsonrpc", "odoo-xmlrpc"
	Status      string         `gorm:"column:status;not null;index" json:"status"`     // "success", "error", "partial", "idle"
	StartedAt   time.Time      `gorm:"column:started_at;not null;index" json:"startedAt"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completedAt"`
	Duration    int            `gorm:"column:duration;default:0" json:"duration"` // milliseconds
	Attempted   int            `gorm:"column:attempted;default:0" json:"attempted"`
	Synced      int            `gorm:"column:synced;default:0" json:"synced"`
	Superseded  int            `gorm:"column:superseded;default:0" json:"superseded"` // acknowledged but mutated mid-flight
	Errors      int            `gorm:"column:errors;default:0" json:"errors"`
	ErrorDetail string         `gorm:"column:error_detail;type:text" json:"errorDetail"`
	DebugInfo   datatypes.JSON `gorm:"column:debug_info" json:"debugInfo"` // per-file outcomes
	CreatedAt   time.Time      `gorm:"column:created_at" json:"-"`
}

// TableName specifies the table name
func (SyncHistory) TableName() string {
	return "sync_history"
}

