package store

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xelth-com/parcprepgo/internal/models"
)

// aacPattern matches NN-NN-NN; "99" wildcard segments are plain digits
var aacPattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{2}$`)

const (
	minBarcodeLen = 3
	minSectionLen = 1
)

// ValidAAC reports whether code is a well-formed batch classification code
func ValidAAC(code string) bool {
	return aacPattern.MatchString(code)
}

func normalizeFile(f *models.ParcPrepFile) {
	f.ID = strings.TrimSpace(f.ID)
	f.AAC = strings.TrimSpace(f.AAC)
	f.Site = strings.TrimSpace(f.Site)
	f.Type = models.ParcPrepType(strings.TrimSpace(string(f.Type)))
}

func validateFile(f *models.ParcPrepFile) error {
	v := Violations{}
	if f.ID == "" {
		v["id"] = "required"
	}
	switch {
	case f.AAC == "":
		v["aac"] = "required"
	case !ValidAAC(f.AAC):
		v["aac"] = "pattern NN-NN-NN"
	}
	switch {
	case f.Type == "":
		v["type"] = "required"
	case !f.Type.Valid():
		v["type"] = "unknown type"
	}
	if f.CreationDate.IsZero() {
		v["creationDate"] = "required"
	}
	if f.Type == models.ParcPrepTypeInventory && f.Site == "" {
		v["site"] = "required for Inventaire"
	}
	if v.Empty() {
		return nil
	}
	return &ValidationError{Entity: "parc-prep file", Violations: v}
}

func normalizeLog(l *models.Log) {
	l.ParcPrepID = strings.TrimSpace(l.ParcPrepID)
	l.ID = strings.TrimSpace(l.ID)
	l.BarCode = strings.TrimSpace(l.BarCode)
	l.SectionNumber = strings.TrimSpace(l.SectionNumber)
	l.Site = strings.TrimSpace(l.Site)
}

func validateLog(l *models.Log) error {
	v := Violations{}
	if l.ParcPrepID == "" {
		v["parcPrepId"] = "required"
	}
	if l.ID == "" {
		v["id"] = "required"
	}
	if utf8.RuneCountInString(l.BarCode) < minBarcodeLen {
		v["barCode"] = "min length 3"
	}
	if utf8.RuneCountInString(l.SectionNumber) < minSectionLen {
		v["sectionNumber"] = "required"
	}
	if v.Empty() {
		return nil
	}
	return &ValidationError{Entity: "log", Violations: v}
}
