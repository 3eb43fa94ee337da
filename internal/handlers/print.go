package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/xelth-com/parcprepgo/internal/models"
	"github.com/xelth-com/parcprepgo/internal/services/printer"
)

// printLabel renders the QR label of one file as a PDF download
func (r *Router) printLabel(w http.ResponseWriter, req *http.Request) {
	f, err := r.store.GetFile(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}

	pdfBytes, err := printer.GenerateFileLabelsPDF([]models.ParcPrepFile{*f}, printer.DefaultLabelConfig())
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate PDF: %v", err))
		return
	}

	// Set headers for download
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"parc_prep_%s.pdf\"", f.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdfBytes)))

	w.Write(pdfBytes)
}
