package sync

import (
	"time"

	"github.com/xelth-com/parcprepgo/internal/config"
	"github.com/xelth-com/parcprepgo/internal/models"
	"github.com/xelth-com/parcprepgo/internal/store"
)

// ISOMillis is the timestamp layout expected by the Odoo controller
const ISOMillis = "2006-01-02T15:04:05.000Z07:00"

// SyncBody is the push request for one file and all its logs
type SyncBody struct {
	AAC          string      `json:"aac" xmlrpc:"aac"`
	Type         string      `json:"type" xmlrpc:"type"`
	CreationDate string      `json:"creation_date" xmlrpc:"creation_date"`
	Name         string      `json:"name" xmlrpc:"name"`
	Emplacement  string      `json:"emplacement,omitempty" xmlrpc:"emplacement,omitempty"`
	Sync         bool        `json:"sync" xmlrpc:"sync"`
	SyncDate     string      `json:"sync_date" xmlrpc:"sync_date"`
	AppID        string      `json:"appId" xmlrpc:"appId"`
	Billes       []BilleBody `json:"billes" xmlrpc:"billes"`
}

// BilleBody is one log in the push request
type BilleBody struct {
	Barcode     string `json:"barcode" xmlrpc:"barcode"`
	NumTroncon  string `json:"num_troncon" xmlrpc:"num_troncon"`
	Emplacement string `json:"emplacement,omitempty" xmlrpc:"emplacement,omitempty"`
}

// PayloadOptions select the wire shape
type PayloadOptions struct {
	AppID     string
	Placement string // config.PlacementFile or config.PlacementLog
}

// LocationDivergence is a log whose own site differs from its file's site
// while the payload only carries the file-level location.
type LocationDivergence struct {
	LogID    string `json:"logId"`
	LogSite  string `json:"logSite"`
	FileSite string `json:"fileSite"`
}

// BuildSyncBody turns a file and its ordered logs into a push request.
// It performs no I/O; SyncDate is left for the caller to stamp.
func BuildSyncBody(file models.ParcPrepFile, logs []models.Log, opts PayloadOptions) (*SyncBody, []LocationDivergence, error) {
	v := store.Violations{}
	if file.ID == "" {
		v["name"] = "required"
	}
	if file.AAC == "" {
		v["aac"] = "required"
	}
	if file.Type == "" {
		v["type"] = "required"
	}
	if file.CreationDate.IsZero() {
		v["creation_date"] = "required"
	}
	for _, l := range logs {
		if l.BarCode == "" {
			v["billes."+l.ID+".barcode"] = "required"
		}
	}
	switch opts.Placement {
	case config.PlacementFile, config.PlacementLog:
	default:
		v["placement"] = "file or log"
	}
	if !v.Empty() {
		return nil, nil, &store.ValidationError{Entity: "sync body", Violations: v}
	}

	body := &SyncBody{
		AAC:          file.AAC,
		Type:         string(file.Type),
		CreationDate: FormatTime(file.CreationDate),
		Name:         file.ID,
		Sync:         true,
		AppID:        opts.AppID,
		Billes:       make([]BilleBody, 0, len(logs)),
	}

	var divergences []LocationDivergence
	if opts.Placement == config.PlacementFile {
		body.Emplacement = file.Site
	}

	for _, l := range logs {
		bille := BilleBody{
			Barcode:    l.BarCode,
			NumTroncon: l.SectionNumber,
		}
		if opts.Placement == config.PlacementLog {
			bille.Emplacement = models.ResolveSite(l, file)
		} else if l.Site != "" && l.Site != file.Site {
			divergences = append(divergences, LocationDivergence{LogID: l.ID, LogSite: l.Site, FileSite: file.Site})
		}
		body.Billes = append(body.Billes, bille)
	}

	return body, divergences, nil
}

// FormatTime renders t in UTC with millisecond precision
func FormatTime(t time.Time) string {
	return t.UTC().Format(ISOMillis)
}

// parseAckDate reads the sync date echoed by Odoo; both ISO and Odoo's
// "YYYY-MM-DD HH:MM:SS" server format are accepted, as UTC.
func parseAckDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, ISOMillis, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
