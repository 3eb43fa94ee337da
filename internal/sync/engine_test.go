package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xelth-com/parcprepgo/internal/config"
	"github.com/xelth-com/parcprepgo/internal/database"
	"github.com/xelth-com/parcprepgo/internal/models"
	"github.com/xelth-com/parcprepgo/internal/store"
)

var engineTime = time.Date(2024, 3, 18, 8, 0, 0, 0, time.UTC)

// fakeSink records pushes and answers with push, defaulting to success
type fakeSink struct {
	mu     sync.Mutex
	bodies []*SyncBody
	push   func(ctx context.Context, body *SyncBody) (*Ack, error)
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Push(ctx context.Context, body *SyncBody) (*Ack, error) {
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	push := f.push
	f.mu.Unlock()

	if push != nil {
		return push(ctx, body)
	}
	return &Ack{Success: true}, nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

func newTestEngine(t *testing.T, sink Sink) (*SyncEngine, *store.Store) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), nil)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	st := store.New(db.DB, store.WithClock(func() time.Time { return engineTime }))
	cfg := &config.SyncConfig{
		Enabled:           true,
		SyncTimeout:       5,
		Workers:           3,
		LocationPlacement: config.PlacementFile,
	}
	engine := NewSyncEngine(st, sink, cfg, "parc-prep-test")
	engine.now = func() time.Time { return engineTime }
	return engine, st
}

// seedFile inserts a file and one log per id; barcodes are derived from the ids
func seedFile(t *testing.T, st *store.Store, id string, logIDs ...string) {
	t.Helper()
	ctx := context.Background()
	_, err := st.InsertFile(ctx, &models.ParcPrepFile{
		ID: id, AAC: "12-34-56", Type: models.ParcPrepTypeInventory, CreationDate: engineTime, Site: "Quai 3",
	})
	if err != nil {
		t.Fatalf("insert file: %v", err)
	}
	for i, logID := range logIDs {
		_, err := st.InsertLog(ctx, &models.Log{
			ParcPrepID: id, ID: logID, BarCode: logID + "-bc", SectionNumber: "T1",
			CreationDate: engineTime.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert log: %v", err)
		}
	}
}

func fileOf(t *testing.T, st *store.Store, id string) *models.ParcPrepFile {
	t.Helper()
	f, err := st.GetFile(context.Background(), id)
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	return f
}

func TestSyncFile_Success(t *testing.T) {
	sink := &fakeSink{push: func(ctx context.Context, body *SyncBody) (*Ack, error) {
		return &Ack{Success: true, SyncDate: "2024-03-18 09:15:00"}, nil
	}}
	engine, st := newTestEngine(t, sink)
	seedFile(t, st, "F1", "A1", "A2")

	out := engine.SyncFile(context.Background(), "F1")
	if out.Outcome != OutcomeSynced || out.Err != nil {
		t.Fatalf("outcome = %s, err = %v", out.Outcome, out.Err)
	}

	f := fileOf(t, st, "F1")
	if !f.AllSynced {
		t.Error("file should be synced")
	}
	if f.LastSyncDate == nil || !f.LastSyncDate.Equal(time.Date(2024, 3, 18, 9, 15, 0, 0, time.UTC)) {
		t.Errorf("LastSyncDate = %v, want the acknowledged date", f.LastSyncDate)
	}

	body := sink.bodies[0]
	if body.SyncDate != "2024-03-18T08:00:00.000Z" || body.AppID != "parc-prep-test" || len(body.Billes) != 2 {
		t.Errorf("unexpected body: %+v", body)
	}

	state, err := engine.FileState(context.Background(), "F1")
	if err != nil || state != StateSynced {
		t.Errorf("state = %s, %v", state, err)
	}
}

func TestSyncFile_RequestTimeWithoutAckDate(t *testing.T) {
	engine, st := newTestEngine(t, &fakeSink{})
	seedFile(t, st, "F1", "A1")

	engine.SyncFile(context.Background(), "F1")

	f := fileOf(t, st, "F1")
	if f.LastSyncDate == nil || !f.LastSyncDate.Equal(engineTime) {
		t.Errorf("LastSyncDate = %v, want request time", f.LastSyncDate)
	}
}

func TestSyncFile_Failures(t *testing.T) {
	cases := map[string]struct {
		push    func(ctx context.Context, body *SyncBody) (*Ack, error)
		wantErr error
	}{
		"transport": {
			push: func(ctx context.Context, body *SyncBody) (*Ack, error) {
				return nil, fmt.Errorf("%w: connection refused", ErrSyncTransport)
			},
			wantErr: ErrSyncTransport,
		},
		"unclassified": {
			push: func(ctx context.Context, body *SyncBody) (*Ack, error) {
				return nil, errors.New("boom")
			},
			wantErr: ErrSyncTransport,
		},
		"rejected": {
			push: func(ctx context.Context, body *SyncBody) (*Ack, error) {
				return &Ack{Success: false, Message: "aac inconnu"}, nil
			},
			wantErr: ErrSyncProtocol,
		},
		"empty ack": {
			push: func(ctx context.Context, body *SyncBody) (*Ack, error) {
				return nil, nil
			},
			wantErr: ErrSyncProtocol,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			engine, st := newTestEngine(t, &fakeSink{push: tc.push})
			seedFile(t, st, "F1", "A1")

			out := engine.SyncFile(context.Background(), "F1")
			if out.Outcome != OutcomeFailed {
				t.Errorf("outcome = %s", out.Outcome)
			}
			if !errors.Is(out.Err, tc.wantErr) {
				t.Errorf("err = %v, want %v", out.Err, tc.wantErr)
			}

			f := fileOf(t, st, "F1")
			if f.AllSynced {
				t.Error("failed sync must leave the file dirty")
			}
			if f.LastSyncError == "" {
				t.Error("failure reason not recorded")
			}
			state, _ := engine.FileState(context.Background(), "F1")
			if state != StateSyncFailed {
				t.Errorf("state = %s, want %s", state, StateSyncFailed)
			}
		})
	}
}

func TestSyncFile_Timeout(t *testing.T) {
	sink := &fakeSink{push: func(ctx context.Context, body *SyncBody) (*Ack, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	engine, st := newTestEngine(t, sink)
	engine.timeout = 50 * time.Millisecond
	seedFile(t, st, "F1", "A1")

	out := engine.SyncFile(context.Background(), "F1")
	if !errors.Is(out.Err, ErrSyncTransport) {
		t.Fatalf("err = %v, want transport error", out.Err)
	}
	if fileOf(t, st, "F1").AllSynced {
		t.Error("timed out sync must leave the file dirty")
	}
}

func TestSyncFile_MutationDuringFlight(t *testing.T) {
	var st *store.Store
	sink := &fakeSink{}
	sink.push = func(ctx context.Context, body *SyncBody) (*Ack, error) {
		if _, err := st.InsertLog(context.Background(), &models.Log{
			ParcPrepID: "F1", ID: "late", BarCode: "LATE", SectionNumber: "T9",
		}); err != nil {
			return nil, err
		}
		return &Ack{Success: true}, nil
	}
	engine, s := newTestEngine(t, sink)
	st = s
	seedFile(t, st, "F1", "A1")

	out := engine.SyncFile(context.Background(), "F1")
	if out.Outcome != OutcomeSupersededByMutation {
		t.Fatalf("outcome = %s, err = %v", out.Outcome, out.Err)
	}
	f := fileOf(t, st, "F1")
	if f.AllSynced {
		t.Error("mutation during flight must keep the file dirty")
	}

	// The next attempt carries the late log and clears the flag.
	sink.push = nil
	out = engine.SyncFile(context.Background(), "F1")
	if out.Outcome != OutcomeSynced || out.Logs != 2 {
		t.Errorf("second attempt: outcome=%s logs=%d", out.Outcome, out.Logs)
	}
	if !fileOf(t, st, "F1").AllSynced {
		t.Error("file should be synced after the second attempt")
	}
}

func TestSyncFile_OneAttemptInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	sink := &fakeSink{push: func(ctx context.Context, body *SyncBody) (*Ack, error) {
		close(entered)
		<-release
		return &Ack{Success: true}, nil
	}}
	engine, st := newTestEngine(t, sink)
	seedFile(t, st, "F1", "A1")

	done := make(chan FileOutcome)
	go func() { done <- engine.SyncFile(context.Background(), "F1") }()
	<-entered

	state, err := engine.FileState(context.Background(), "F1")
	if err != nil || state != StateSyncing {
		t.Errorf("state = %s, %v", state, err)
	}

	second := engine.SyncFile(context.Background(), "F1")
	if !errors.Is(second.Err, ErrSyncInProgress) {
		t.Errorf("second attempt err = %v", second.Err)
	}

	close(release)
	if first := <-done; first.Outcome != OutcomeSynced {
		t.Errorf("first attempt outcome = %s", first.Outcome)
	}
	if sink.count() != 1 {
		t.Errorf("pushes = %d, want 1", sink.count())
	}
}

func TestSyncDirty_IndependentOutcomes(t *testing.T) {
	sink := &fakeSink{push: func(ctx context.Context, body *SyncBody) (*Ack, error) {
		if body.Name == "F2" {
			return nil, fmt.Errorf("%w: HTTP 502", ErrSyncTransport)
		}
		return &Ack{Success: true}, nil
	}}
	engine, st := newTestEngine(t, sink)
	seedFile(t, st, "F1", "A1")
	seedFile(t, st, "F2", "B1")
	seedFile(t, st, "F3")

	result := engine.SyncDirty(context.Background())
	if result.Attempted != 3 || result.Synced != 2 || result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}
	if result.Success || result.Status() != "partial" {
		t.Errorf("success=%v status=%s", result.Success, result.Status())
	}

	if !fileOf(t, st, "F1").AllSynced || !fileOf(t, st, "F3").AllSynced {
		t.Error("healthy files should be synced")
	}
	if fileOf(t, st, "F2").AllSynced {
		t.Error("failed file should stay dirty")
	}

	history, err := st.RecentSyncHistory(context.Background(), 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Status != "partial" || history[0].Provider != "fake" {
		t.Errorf("history = %+v", history)
	}

	// Only the failed file is retried.
	sink.push = nil
	result = engine.SyncDirty(context.Background())
	if result.Attempted != 1 || result.Synced != 1 {
		t.Errorf("retry result = %+v", result)
	}
}

func TestSyncDirty_Idle(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeSink{})

	result := engine.SyncDirty(context.Background())
	if result.Attempted != 0 || !result.Success || result.Status() != "idle" {
		t.Errorf("result = %+v", result)
	}
}

func TestEngine_BackgroundRequests(t *testing.T) {
	sink := &fakeSink{}
	engine, st := newTestEngine(t, sink)
	seedFile(t, st, "F1", "A1")

	if engine.RequestFileSync("F1") {
		t.Error("request accepted while stopped")
	}

	if err := engine.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := engine.Start(); err == nil {
		t.Error("second Start should fail")
	}
	if !engine.RequestFileSync("F1") {
		t.Fatal("request rejected")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !fileOf(t, st, "F1").AllSynced {
		if time.Now().After(deadline) {
			t.Fatal("background sync did not run")
		}
		time.Sleep(10 * time.Millisecond)
	}

	status := engine.GetSyncStatus()
	if status["is_running"] != true || status["sink"] != "fake" {
		t.Errorf("status = %v", status)
	}

	engine.Stop()
	if engine.GetSyncStatus()["is_running"] != false {
		t.Error("engine still running after Stop")
	}
}

func TestSyncFile_FailedRepushKeepsSyncedFile(t *testing.T) {
	sink := &fakeSink{}
	engine, st := newTestEngine(t, sink)
	seedFile(t, st, "F1", "A1")

	if out := engine.SyncFile(context.Background(), "F1"); out.Outcome != OutcomeSynced {
		t.Fatalf("first push: outcome = %s, err = %v", out.Outcome, out.Err)
	}
	before := fileOf(t, st, "F1")

	sink.push = func(ctx context.Context, body *SyncBody) (*Ack, error) {
		return nil, fmt.Errorf("%w: network down", ErrSyncTransport)
	}
	out := engine.SyncFile(context.Background(), "F1")
	if !errors.Is(out.Err, ErrSyncTransport) {
		t.Fatalf("err = %v, want transport error", out.Err)
	}

	after := fileOf(t, st, "F1")
	if !after.AllSynced || after.Revision != before.Revision {
		t.Errorf("allSynced=%v revision=%d, want true and %d", after.AllSynced, after.Revision, before.Revision)
	}
	if state := StateOf(*after, false); state != StateSynced {
		t.Errorf("state = %s, want %s", state, StateSynced)
	}
}

func TestEngine_StartWithStartupSync(t *testing.T) {
	engine, st := newTestEngine(t, &fakeSink{})
	engine.config.SyncOnStartup = true
	seedFile(t, st, "F1", "A1")

	started := make(chan error, 1)
	go func() { started <- engine.Start() }()

	select {
	case err := <-started:
		if err != nil {
			t.Fatalf("start: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return")
	}
	defer engine.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for !fileOf(t, st, "F1").AllSynced {
		if time.Now().After(deadline) {
			t.Fatal("startup pass did not sync the dirty file")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSyncDirty_DurationUsesEngineClock(t *testing.T) {
	engine, st := newTestEngine(t, &fakeSink{})
	seedFile(t, st, "F1", "A1")

	result := engine.SyncDirty(context.Background())
	if result.Duration != 0 {
		t.Errorf("duration = %v, want 0 with a frozen clock", result.Duration)
	}
}
