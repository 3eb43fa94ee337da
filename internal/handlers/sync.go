package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/xelth-com/parcprepgo/internal/store"
	"github.com/xelth-com/parcprepgo/internal/sync"
)

func (r *Router) requireSync(w http.ResponseWriter) bool {
	if r.syncEngine == nil {
		respondError(w, http.StatusServiceUnavailable, "Odoo sync is not configured")
		return false
	}
	return true
}

// syncAll runs one pass over every dirty file and returns its summary
func (r *Router) syncAll(w http.ResponseWriter, req *http.Request) {
	if !r.requireSync(w) {
		return
	}
	respondJSON(w, http.StatusOK, r.syncEngine.SyncDirty(req.Context()))
}

// syncOne pushes a single file
func (r *Router) syncOne(w http.ResponseWriter, req *http.Request) {
	if !r.requireSync(w) {
		return
	}

	out := r.syncEngine.SyncFile(req.Context(), mux.Vars(req)["id"])
	switch {
	case out.Err == nil:
		respondJSON(w, http.StatusOK, out)
	case errors.Is(out.Err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, out.Error)
	case errors.Is(out.Err, sync.ErrSyncInProgress):
		respondJSON(w, http.StatusConflict, out)
	case errors.Is(out.Err, sync.ErrSyncTransport), errors.Is(out.Err, sync.ErrSyncProtocol):
		respondJSON(w, http.StatusBadGateway, out)
	case errors.Is(out.Err, store.ErrValidation):
		respondJSON(w, http.StatusUnprocessableEntity, out)
	default:
		respondJSON(w, http.StatusInternalServerError, out)
	}
}

// getSyncState reports synced, dirty, syncing or sync_failed
func (r *Router) getSyncState(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	f, err := r.store.GetFile(req.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	inFlight := r.syncEngine != nil && r.syncEngine.InFlight(id)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":            f.ID,
		"state":         sync.StateOf(*f, inFlight),
		"revision":      f.Revision,
		"lastSyncDate":  f.LastSyncDate,
		"lastSyncError": f.LastSyncError,
	})
}

func (r *Router) getSyncStatus(w http.ResponseWriter, req *http.Request) {
	if !r.requireSync(w) {
		return
	}
	respondJSON(w, http.StatusOK, r.syncEngine.GetSyncStatus())
}

// getSyncHistory returns the latest passes; ?limit= overrides the default
func (r *Router) getSyncHistory(w http.ResponseWriter, req *http.Request) {
	limit := r.historyKeep
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	history, err := r.store.RecentSyncHistory(req.Context(), limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}
