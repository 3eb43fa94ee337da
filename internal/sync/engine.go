package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/xelth-com/parcprepgo/internal/config"
	"github.com/xelth-com/parcprepgo/internal/models"
	"github.com/xelth-com/parcprepgo/internal/store"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// Store is the part of the local store the engine drives
type Store interface {
	GetFile(ctx context.Context, id string) (*models.ParcPrepFile, error)
	DirtyFileIDs(ctx context.Context) ([]string, error)
	SyncSnapshot(ctx context.Context, id string) (*store.Snapshot, error)
	MarkSynced(ctx context.Context, id string, revision int64, syncedAt time.Time) (bool, error)
	MarkSyncFailed(ctx context.Context, id string, reason string) error
	RecordSyncHistory(ctx context.Context, h *models.SyncHistory) error
}

// SyncEngine pushes dirty parc-prep files to the ERP
type SyncEngine struct {
	mu sync.RWMutex

	// Core components
	store   Store
	sink    Sink
	config  *config.SyncConfig
	appID   string
	timeout time.Duration
	now     func() time.Time

	// State
	inFlight       map[string]struct{}
	isRunning      bool
	lastSync       time.Time
	lastResult     *SyncResult
	syncInProgress bool

	// Channels
	stopChan chan struct{}
	syncChan chan SyncRequest
	wg       sync.WaitGroup
}

// NewSyncEngine creates a new sync engine
func NewSyncEngine(st Store, sink Sink, cfg *config.SyncConfig, appID string) *SyncEngine {
	return &SyncEngine{
		store:    st,
		sink:     sink,
		config:   cfg,
		appID:    appID,
		timeout:  cfg.Timeout(),
		now:      func() time.Time { return time.Now().UTC() },
		inFlight: make(map[string]struct{}),
	}
}

// Start launches the request worker and the auto-sync ticker
func (se *SyncEngine) Start() error {
	se.mu.Lock()
	defer se.mu.Unlock()

	if se.isRunning {
		return fmt.Errorf("sync engine already running")
	}

	se.isRunning = true
	se.stopChan = make(chan struct{})
	se.syncChan = make(chan SyncRequest, 100)
	log.Printf("🔄 Sync Engine starting (sink: %s)...", se.sink.Name())

	se.wg.Add(1)
	go se.syncWorker(se.stopChan, se.syncChan)

	if se.config.AutoSyncEnabled {
		se.wg.Add(1)
		go se.autoSyncLoop(se.stopChan)
	}

	// queue takes mu, so the startup request goes straight onto the fresh channel
	if se.config.SyncOnStartup {
		se.syncChan <- SyncRequest{Operation: "full_sync"}
	}

	log.Println("✅ Sync Engine started")
	return nil
}

// Stop stops the background goroutines and waits for the current request
func (se *SyncEngine) Stop() {
	se.mu.Lock()
	if !se.isRunning {
		se.mu.Unlock()
		return
	}
	log.Println("🛑 Stopping Sync Engine...")
	se.isRunning = false
	close(se.stopChan)
	se.mu.Unlock()

	se.wg.Wait()
	log.Println("✅ Sync Engine stopped")
}

// RequestFullSync queues a pass over every dirty file
func (se *SyncEngine) RequestFullSync() bool {
	log.Println("📥 Full sync requested")
	return se.queue(SyncRequest{Operation: "full_sync"})
}

// RequestFileSync queues a push of one file
func (se *SyncEngine) RequestFileSync(id string) bool {
	return se.queue(SyncRequest{ParcPrepID: id, Operation: "sync"})
}

// queue never blocks; a full queue drops the request since the next pass
// picks up every dirty file anyway.
func (se *SyncEngine) queue(req SyncRequest) bool {
	se.mu.RLock()
	defer se.mu.RUnlock()

	if !se.isRunning {
		return false
	}
	select {
	case se.syncChan <- req:
		return true
	default:
		log.Printf("⚠️ Sync queue full, dropping %s request", req.Operation)
		return false
	}
}

func (se *SyncEngine) syncWorker(stop <-chan struct{}, requests <-chan SyncRequest) {
	defer se.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	for {
		select {
		case req := <-requests:
			se.processSyncRequest(ctx, req)
		case <-stop:
			return
		}
	}
}

func (se *SyncEngine) processSyncRequest(ctx context.Context, req SyncRequest) {
	switch req.Operation {
	case "full_sync":
		se.SyncDirty(ctx)
	case "sync":
		out := se.SyncFile(ctx, req.ParcPrepID)
		if out.Err != nil && !errors.Is(out.Err, ErrSyncInProgress) {
			log.Printf("❌ Sync of %s failed: %v", req.ParcPrepID, out.Err)
		}
	default:
		log.Printf("Unknown sync operation: %s", req.Operation)
	}
}

func (se *SyncEngine) autoSyncLoop(stop <-chan struct{}) {
	defer se.wg.Done()

	ticker := time.NewTicker(se.config.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Println("Auto-sync triggered")
			se.RequestFullSync()
		case <-stop:
			return
		}
	}
}

// SyncDirty pushes every dirty file with at most config.Workers in parallel.
// Each file succeeds or fails on its own; one history row is recorded per pass.
func (se *SyncEngine) SyncDirty(ctx context.Context) *SyncResult {
	result := &SyncResult{Timestamp: se.now()}

	se.mu.Lock()
	se.syncInProgress = true
	se.mu.Unlock()
	defer func() {
		se.mu.Lock()
		se.syncInProgress = false
		se.lastSync = se.now()
		se.lastResult = result
		se.mu.Unlock()
	}()

	ids, err := se.store.DirtyFileIDs(ctx)
	if err != nil {
		log.Printf("❌ Failed to list dirty files: %v", err)
		result.Errors = append(result.Errors, err)
		result.Duration = se.now().Sub(result.Timestamp)
		se.recordHistory(ctx, result)
		return result
	}

	outcomes := make([]FileOutcome, len(ids))
	var g errgroup.Group
	g.SetLimit(max(se.config.Workers, 1))
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			outcomes[i] = se.SyncFile(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		if out.Outcome == OutcomeInProgress {
			continue
		}
		result.Attempted++
		result.Outcomes = append(result.Outcomes, out)
		switch out.Outcome {
		case OutcomeSynced:
			result.Synced++
		case OutcomeSupersededByMutation:
			result.Superseded++
		default:
			result.Failed++
			result.Errors = append(result.Errors, out.Err)
		}
	}

	result.Success = result.Failed == 0
	result.Duration = se.now().Sub(result.Timestamp)
	log.Printf("✅ Sync pass completed in %v: %d attempted, %d synced, %d superseded, %d failed",
		result.Duration, result.Attempted, result.Synced, result.Superseded, result.Failed)

	se.recordHistory(ctx, result)
	return result
}

// SyncFile runs one push attempt: snapshot, build, push, reconcile.
// The file only becomes synced if nothing mutated it after the snapshot.
func (se *SyncEngine) SyncFile(ctx context.Context, id string) FileOutcome {
	out := FileOutcome{ParcPrepID: id}

	if !se.acquire(id) {
		out.Outcome = OutcomeInProgress
		return out.fail(fmt.Errorf("parc-prep file %q: %w", id, ErrSyncInProgress))
	}
	defer se.release(id)

	snap, err := se.store.SyncSnapshot(ctx, id)
	if err != nil {
		out.Outcome = OutcomeFailed
		return out.fail(err)
	}
	out.Revision = snap.Revision
	out.Logs = len(snap.Logs)

	body, divergences, err := BuildSyncBody(snap.File, snap.Logs, PayloadOptions{
		AppID:     se.appID,
		Placement: se.config.LocationPlacement,
	})
	if err != nil {
		return se.failed(ctx, out, err)
	}
	out.Divergences = divergences
	for _, d := range divergences {
		log.Printf("⚠️ Log %s/%s site %q differs from file site %q; sending file site", id, d.LogID, d.LogSite, d.FileSite)
	}

	requestedAt := se.now()
	body.SyncDate = FormatTime(requestedAt)

	pushCtx, cancel := context.WithTimeout(ctx, se.timeout)
	ack, err := se.sink.Push(pushCtx, body)
	cancel()
	if err == nil {
		err = checkAck(ack)
	}
	if err != nil {
		return se.failed(ctx, out, classify(err))
	}

	syncedAt := requestedAt
	if t, ok := parseAckDate(ack.SyncDate.String()); ok {
		syncedAt = t
	}

	cleared, err := se.store.MarkSynced(context.WithoutCancel(ctx), id, snap.Revision, syncedAt)
	if err != nil {
		out.Outcome = OutcomeFailed
		return out.fail(err)
	}
	out.SyncDate = &syncedAt
	if !cleared {
		log.Printf("🔁 %s changed while syncing, stays dirty", id)
		out.Outcome = OutcomeSupersededByMutation
		return out
	}

	log.Printf("✅ Synced %s (%d logs, revision %d)", id, out.Logs, out.Revision)
	out.Outcome = OutcomeSynced
	return out
}

// FileState reports where a file is in the push cycle
func (se *SyncEngine) FileState(ctx context.Context, id string) (SyncState, error) {
	f, err := se.store.GetFile(ctx, id)
	if err != nil {
		return "", err
	}
	return StateOf(*f, se.InFlight(id)), nil
}

// InFlight reports whether a push of id is running
func (se *SyncEngine) InFlight(id string) bool {
	se.mu.RLock()
	defer se.mu.RUnlock()
	_, busy := se.inFlight[id]
	return busy
}

// StateOf derives the push state from the stored file
func StateOf(f models.ParcPrepFile, inFlight bool) SyncState {
	switch {
	case inFlight:
		return StateSyncing
	case f.AllSynced:
		return StateSynced
	case f.LastSyncError != "":
		return StateSyncFailed
	default:
		return StateDirty
	}
}

// GetSyncStatus returns the current sync status
func (se *SyncEngine) GetSyncStatus() map[string]interface{} {
	se.mu.RLock()
	defer se.mu.RUnlock()

	inFlight := make([]string, 0, len(se.inFlight))
	for id := range se.inFlight {
		inFlight = append(inFlight, id)
	}

	return map[string]interface{}{
		"is_running":         se.isRunning,
		"sync_in_progress":   se.syncInProgress,
		"last_sync":          se.lastSync,
		"last_result":        se.lastResult,
		"in_flight":          inFlight,
		"sink":               se.sink.Name(),
		"auto_sync":          se.config.AutoSyncEnabled,
		"location_placement": se.config.LocationPlacement,
	}
}

func (se *SyncEngine) acquire(id string) bool {
	se.mu.Lock()
	defer se.mu.Unlock()
	if _, busy := se.inFlight[id]; busy {
		return false
	}
	se.inFlight[id] = struct{}{}
	return true
}

func (se *SyncEngine) release(id string) {
	se.mu.Lock()
	delete(se.inFlight, id)
	se.mu.Unlock()
}

// failed records the reason on the file, which stays dirty
func (se *SyncEngine) failed(ctx context.Context, out FileOutcome, err error) FileOutcome {
	log.Printf("❌ Sync of %s failed: %v", out.ParcPrepID, err)
	if markErr := se.store.MarkSyncFailed(context.WithoutCancel(ctx), out.ParcPrepID, err.Error()); markErr != nil {
		log.Printf("❌ Failed to record sync failure of %s: %v", out.ParcPrepID, markErr)
	}
	out.Outcome = OutcomeFailed
	return out.fail(err)
}

func (out FileOutcome) fail(err error) FileOutcome {
	out.Err = err
	out.Error = err.Error()
	return out
}

func (se *SyncEngine) recordHistory(ctx context.Context, result *SyncResult) {
	completed := se.now()
	h := &models.SyncHistory{
		Provider:    se.sink.Name(),
		Status:      result.Status(),
		StartedAt:   result.Timestamp,
		CompletedAt: &completed,
		Duration:    int(result.Duration.Milliseconds()),
		Attempted:   result.Attempted,
		Synced:      result.Synced,
		Superseded:  result.Superseded,
		Errors:      len(result.Errors),
	}
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, err := range result.Errors {
			msgs = append(msgs, err.Error())
		}
		h.ErrorDetail = strings.Join(msgs, "\n")
	}
	if debug, err := json.Marshal(result.Outcomes); err == nil {
		h.DebugInfo = datatypes.JSON(debug)
	}

	if err := se.store.RecordSyncHistory(context.WithoutCancel(ctx), h); err != nil {
		log.Printf("⚠️ Failed to record sync history: %v", err)
	}
}

func checkAck(ack *Ack) error {
	switch {
	case ack == nil:
		return fmt.Errorf("%w: empty acknowledgment", ErrSyncProtocol)
	case !ack.Success:
		msg := ack.Message.String()
		if msg == "" {
			msg = "success=false"
		}
		return fmt.Errorf("%w: rejected: %s", ErrSyncProtocol, msg)
	}
	return nil
}

// classify makes sure every push failure carries one of the sync error kinds.
// Timeouts and cancellations count as transport failures.
func classify(err error) error {
	if errors.Is(err, ErrSyncTransport) || errors.Is(err, ErrSyncProtocol) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrSyncTransport, err)
}
