package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/parcprepgo/internal/buildinfo"
	"github.com/xelth-com/parcprepgo/internal/middleware"
	"github.com/xelth-com/parcprepgo/internal/store"
	"github.com/xelth-com/parcprepgo/internal/sync"
	"github.com/xelth-com/parcprepgo/internal/websocket"
)

// Router wraps the mux router and the services behind it
type Router struct {
	*mux.Router
	store       *store.Store
	syncEngine  *sync.SyncEngine // nil when no Odoo sink is configured
	hub         *websocket.Hub
	historyKeep int
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(st *store.Store, engine *sync.SyncEngine, hub *websocket.Hub, historyKeep int) *Router {
	r := &Router{
		Router:      mux.NewRouter(),
		store:       st,
		syncEngine:  engine,
		hub:         hub,
		historyKeep: historyKeep,
	}

	r.Use(middleware.Recover, middleware.RequestLogger)

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Parc-prep files; /default before /{id}
	api.HandleFunc("/parc-preps", r.listFiles).Methods("GET")
	api.HandleFunc("/parc-preps", r.createFile).Methods("POST")
	api.HandleFunc("/parc-preps/default", r.getDefaultFile).Methods("GET")
	api.HandleFunc("/parc-preps/{id}", r.getFile).Methods("GET")
	api.HandleFunc("/parc-preps/{id}", r.updateFile).Methods("PUT")
	api.HandleFunc("/parc-preps/{id}/default", r.setDefaultFile).Methods("POST")
	api.HandleFunc("/parc-preps/{id}/sync-state", r.getSyncState).Methods("GET")
	api.HandleFunc("/parc-preps/{id}/label", r.printLabel).Methods("GET")

	// Logs
	api.HandleFunc("/parc-preps/{id}/logs", r.listLogs).Methods("GET")
	api.HandleFunc("/parc-preps/{id}/logs", r.createLog).Methods("POST")
	api.HandleFunc("/parc-preps/{id}/logs/{logId}", r.updateLog).Methods("PUT")
	api.HandleFunc("/logs", r.createLogForDefault).Methods("POST")

	// Sync control
	api.HandleFunc("/sync", r.syncAll).Methods("POST")
	api.HandleFunc("/sync/status", r.getSyncStatus).Methods("GET")
	api.HandleFunc("/sync/history", r.getSyncHistory).Methods("GET")
	api.HandleFunc("/sync/{id}", r.syncOne).Methods("POST")

	// Change feed
	if hub != nil {
		r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
			websocket.ServeWs(hub, w, req)
		})
	}

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"sync_enabled": r.syncEngine != nil,
		"build_time":   buildinfo.BuildTime,
		"commit":       buildinfo.CommitHash,
		"started_at":   buildinfo.StartTime,
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondStoreError maps store error kinds to status codes
func respondStoreError(w http.ResponseWriter, err error) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":      err.Error(),
			"violations": verr.Violations,
		})
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicateKey):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrForeignKeyViolation):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
