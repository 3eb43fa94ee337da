package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/xelth-com/parcprepgo/internal/models"
	"github.com/xelth-com/parcprepgo/internal/store"
)

// listFiles returns files with their stats, newest first
func (r *Router) listFiles(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	filter := store.FileFilter{
		Type:      models.ParcPrepType(q.Get("type")),
		AACPrefix: q.Get("aac"),
	}
	filter.OnlyDirty, _ = strconv.ParseBool(q.Get("dirty"))
	filter.OnlyDefault, _ = strconv.ParseBool(q.Get("default"))

	files, err := r.store.ListFiles(req.Context(), filter)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, files)
}

// createFile registers a new parc-prep file
func (r *Router) createFile(w http.ResponseWriter, req *http.Request) {
	var f models.ParcPrepFile
	if err := json.NewDecoder(req.Body).Decode(&f); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	created, err := r.store.InsertFile(req.Context(), &f)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (r *Router) getDefaultFile(w http.ResponseWriter, req *http.Request) {
	f, err := r.store.DefaultFile(req.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

func (r *Router) getFile(w http.ResponseWriter, req *http.Request) {
	f, err := r.store.GetFile(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

// updateFile rewrites the header; ?dirty=true forces a re-sync
func (r *Router) updateFile(w http.ResponseWriter, req *http.Request) {
	var f models.ParcPrepFile
	if err := json.NewDecoder(req.Body).Decode(&f); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	f.ID = mux.Vars(req)["id"]
	markDirty, _ := strconv.ParseBool(req.URL.Query().Get("dirty"))

	updated, err := r.store.UpdateFile(req.Context(), &f, markDirty)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (r *Router) setDefaultFile(w http.ResponseWriter, req *http.Request) {
	f, err := r.store.SetDefaultFile(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

// listLogs returns full rows, or the barcode projection with ?view=raw
func (r *Router) listLogs(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if _, err := r.store.GetFile(req.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}

	projection := store.ProjectionFull
	if req.URL.Query().Get("view") == "raw" {
		projection = store.ProjectionBarcode
	}

	logs, err := r.store.ListLogsForFile(req.Context(), id, projection)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

func (r *Router) createLog(w http.ResponseWriter, req *http.Request) {
	var l models.Log
	if err := json.NewDecoder(req.Body).Decode(&l); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	l.ParcPrepID = mux.Vars(req)["id"]

	created, err := r.store.InsertLog(req.Context(), &l)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// createLogForDefault is the quick-entry path; an empty parcPrepId goes to the default file
func (r *Router) createLogForDefault(w http.ResponseWriter, req *http.Request) {
	var l models.Log
	if err := json.NewDecoder(req.Body).Decode(&l); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	created, err := r.store.InsertLog(req.Context(), &l)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (r *Router) updateLog(w http.ResponseWriter, req *http.Request) {
	var l models.Log
	if err := json.NewDecoder(req.Body).Decode(&l); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	vars := mux.Vars(req)
	l.ParcPrepID = vars["id"]

	updated, err := r.store.UpdateLog(req.Context(), vars["logId"], &l)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}
