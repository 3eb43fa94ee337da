package sync

import (
	"context"
	"errors"
	"time"

	"github.com/xelth-com/parcprepgo/internal/models"
)

// SyncState is the push state of one parc-prep file
type SyncState string

const (
	StateSynced     SyncState = "synced"
	StateDirty      SyncState = "dirty"
	StateSyncing    SyncState = "syncing"
	StateSyncFailed SyncState = "sync_failed"
)

// Outcome is how one push attempt ended
type Outcome string

const (
	OutcomeSynced               Outcome = "synced"
	OutcomeSupersededByMutation Outcome = "superseded_by_mutation" // acknowledged, but mutated after the snapshot
	OutcomeFailed               Outcome = "failed"
	OutcomeInProgress           Outcome = "in_progress" // another attempt owns the file
)

// Sync error kinds. Failures never leave a file synced.
var (
	ErrSyncTransport  = errors.New("sync transport error")
	ErrSyncProtocol   = errors.New("sync protocol error")
	ErrSyncInProgress = errors.New("sync already in progress")
)

// Ack is the remote acknowledgment of one pushed file
type Ack struct {
	Success  bool              `json:"success"`
	SyncDate models.OdooString `json:"sync_date"`
	RemoteID int64             `json:"id"`
	Message  models.OdooString `json:"message"`
}

// Sink delivers a sync body to the ERP.
// Implementations wrap their failures in ErrSyncTransport or ErrSyncProtocol.
type Sink interface {
	Name() string
	Push(ctx context.Context, body *SyncBody) (*Ack, error)
}

// FileOutcome reports one SyncFile call
type FileOutcome struct {
	ParcPrepID  string               `json:"parcPrepId"`
	Outcome     Outcome              `json:"outcome"`
	Revision    int64                `json:"revision"`
	SyncDate    *time.Time           `json:"syncDate,omitempty"`
	Logs        int                  `json:"logs"`
	Divergences []LocationDivergence `json:"divergences,omitempty"`
	Err         error                `json:"-"`
	Error       string               `json:"error,omitempty"`
}

// SyncRequest is queued to the background worker
type SyncRequest struct {
	ParcPrepID string // empty means every dirty file
	Operation  string // full_sync, sync
}

// SyncResult summarizes one pass over the dirty files
type SyncResult struct {
	Success    bool          `json:"success"`
	Attempted  int           `json:"attempted"`
	Synced     int           `json:"synced"`
	Superseded int           `json:"superseded"`
	Failed     int           `json:"failed"`
	Outcomes   []FileOutcome `json:"outcomes"`
	Errors     []error       `json:"-"`
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Status names the pass result for the sync_history table
func (r *SyncResult) Status() string {
	switch {
	case r.Attempted == 0:
		return "idle"
	case r.Failed == 0:
		return "success"
	case r.Failed == r.Attempted:
		return "error"
	default:
		return "partial"
	}
}
