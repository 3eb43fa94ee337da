package sync

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/xelth-com/parcprepgo/internal/config"
	"github.com/xelth-com/parcprepgo/internal/models"
	"github.com/xelth-com/parcprepgo/internal/store"
)

func payloadFile() models.ParcPrepFile {
	return models.ParcPrepFile{
		ID:           "PP-0001",
		AAC:          "12-34-56",
		Type:         models.ParcPrepTypeInventory,
		CreationDate: time.Date(2024, 3, 18, 9, 30, 0, 0, time.FixedZone("CET", 3600)),
		Site:         "Depot Nord",
	}
}

func payloadLogs() []models.Log {
	return []models.Log{
		{ParcPrepID: "PP-0001", ID: "L1", BarCode: "BC-001", SectionNumber: "T1"},
		{ParcPrepID: "PP-0001", ID: "L2", BarCode: "BC-002", SectionNumber: "T2", Site: "Quai 3"},
		{ParcPrepID: "PP-0001", ID: "L3", BarCode: "BC-003", SectionNumber: "T1", Site: "Depot Nord"},
	}
}

func TestBuildSyncBody_FilePlacement(t *testing.T) {
	body, divergences, err := BuildSyncBody(payloadFile(), payloadLogs(), PayloadOptions{
		AppID:     "parc-prep-mobile",
		Placement: config.PlacementFile,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if body.Name != "PP-0001" || body.AAC != "12-34-56" || body.Type != "Inventaire" {
		t.Errorf("unexpected header: %+v", body)
	}
	if body.CreationDate != "2024-03-18T08:30:00.000Z" {
		t.Errorf("CreationDate = %s", body.CreationDate)
	}
	if !body.Sync || body.SyncDate != "" || body.AppID != "parc-prep-mobile" {
		t.Errorf("sync=%v syncDate=%q appId=%q", body.Sync, body.SyncDate, body.AppID)
	}
	if body.Emplacement != "Depot Nord" {
		t.Errorf("Emplacement = %q", body.Emplacement)
	}

	if len(body.Billes) != 3 {
		t.Fatalf("billes = %d, want 3", len(body.Billes))
	}
	for i, want := range []string{"BC-001", "BC-002", "BC-003"} {
		if body.Billes[i].Barcode != want {
			t.Errorf("bille %d = %s, want %s", i, body.Billes[i].Barcode, want)
		}
		if body.Billes[i].Emplacement != "" {
			t.Errorf("bille %d carries a location in file placement", i)
		}
	}
	if body.Billes[1].NumTroncon != "T2" {
		t.Errorf("NumTroncon = %s", body.Billes[1].NumTroncon)
	}

	if len(divergences) != 1 || divergences[0].LogID != "L2" || divergences[0].LogSite != "Quai 3" {
		t.Errorf("divergences = %+v", divergences)
	}
}

func TestBuildSyncBody_LogPlacement(t *testing.T) {
	body, divergences, err := BuildSyncBody(payloadFile(), payloadLogs(), PayloadOptions{Placement: config.PlacementLog})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if body.Emplacement != "" {
		t.Errorf("header Emplacement = %q in log placement", body.Emplacement)
	}
	if len(divergences) != 0 {
		t.Errorf("divergences reported in log placement: %+v", divergences)
	}

	want := []string{"Depot Nord", "Quai 3", "Depot Nord"}
	for i, w := range want {
		if body.Billes[i].Emplacement != w {
			t.Errorf("bille %d emplacement = %q, want %q", i, body.Billes[i].Emplacement, w)
		}
	}
}

func TestBuildSyncBody_WireShape(t *testing.T) {
	body, _, err := BuildSyncBody(payloadFile(), payloadLogs()[:1], PayloadOptions{AppID: "app", Placement: config.PlacementFile})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	body.SyncDate = "2024-03-18T10:00:00.000Z"

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"aac", "type", "creation_date", "name", "emplacement", "sync", "sync_date", "appId", "billes"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q in %s", key, raw)
		}
	}
	billes := decoded["billes"].([]interface{})
	bille := billes[0].(map[string]interface{})
	if bille["barcode"] != "BC-001" || bille["num_troncon"] != "T1" {
		t.Errorf("unexpected bille: %v", bille)
	}
	if _, ok := bille["emplacement"]; ok {
		t.Error("bille emplacement should be omitted in file placement")
	}
}

func TestBuildSyncBody_EmptyLogs(t *testing.T) {
	body, _, err := BuildSyncBody(payloadFile(), nil, PayloadOptions{Placement: config.PlacementFile})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if body.Billes == nil || len(body.Billes) != 0 {
		t.Errorf("billes should be an empty list, got %#v", body.Billes)
	}
}

func TestBuildSyncBody_Validation(t *testing.T) {
	f := payloadFile()
	f.AAC = ""
	logs := payloadLogs()
	logs[2].BarCode = ""

	body, _, err := BuildSyncBody(f, logs, PayloadOptions{Placement: config.PlacementFile})
	if body != nil {
		t.Error("partial payload returned")
	}
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var verr *store.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *store.ValidationError, got %T", err)
	}
	if _, ok := verr.Violations["aac"]; !ok {
		t.Error("missing aac violation")
	}
	if _, ok := verr.Violations["billes.L3.barcode"]; !ok {
		t.Error("missing barcode violation")
	}

	_, _, err = BuildSyncBody(payloadFile(), nil, PayloadOptions{Placement: "both"})
	if !errors.Is(err, store.ErrValidation) {
		t.Errorf("unknown placement accepted: %v", err)
	}
}

func TestParseAckDate(t *testing.T) {
	cases := map[string]time.Time{
		"2024-03-18T10:00:00.000Z":  time.Date(2024, 3, 18, 10, 0, 0, 0, time.UTC),
		"2024-03-18T11:00:00+01:00": time.Date(2024, 3, 18, 10, 0, 0, 0, time.UTC),
		"2024-03-18 10:00:00":       time.Date(2024, 3, 18, 10, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, ok := parseAckDate(in)
		if !ok || !got.Equal(want) {
			t.Errorf("parseAckDate(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := parseAckDate(""); ok {
		t.Error("empty date parsed")
	}
}
