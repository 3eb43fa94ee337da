package printer

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
	"github.com/xelth-com/parcprepgo/internal/models"
)

// LabelConfig holds the sheet layout for file labels
type LabelConfig struct {
	Cols       int     `json:"cols"`
	Rows       int     `json:"rows"`
	MarginTop  float64 `json:"marginTop"`
	MarginLeft float64 `json:"marginLeft"`
	GapX       float64 `json:"gapX"`
	GapY       float64 `json:"gapY"`
}

// DefaultLabelConfig is a 2x4 sheet of A4 labels
func DefaultLabelConfig() LabelConfig {
	return LabelConfig{Cols: 2, Rows: 4, MarginTop: 10, MarginLeft: 10, GapX: 4, GapY: 4}
}

// GenerateFileLabelsPDF prints one label per parc-prep file. The QR code
// carries the file id, which is what the scanner reads to reopen the file.
func GenerateFileLabelsPDF(files []models.ParcPrepFile, cfg LabelConfig) ([]byte, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no file to print")
	}
	if cfg.Cols <= 0 || cfg.Rows <= 0 {
		cfg = DefaultLabelConfig()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Arial", "B", 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// A4 dimensions
	pageWidth, pageHeight := 210.0, 297.0

	totalGapX := float64(cfg.Cols-1) * cfg.GapX
	totalGapY := float64(cfg.Rows-1) * cfg.GapY
	availW := pageWidth - (cfg.MarginLeft * 2)
	availH := pageHeight - (cfg.MarginTop * 2)
	labelW := (availW - totalGapX) / float64(cfg.Cols)
	labelH := (availH - totalGapY) / float64(cfg.Rows)

	labelsPerPage := cfg.Cols * cfg.Rows

	for i, f := range files {
		if i%labelsPerPage == 0 {
			pdf.AddPage()
		}

		indexOnPage := i % labelsPerPage
		col := indexOnPage % cfg.Cols
		row := indexOnPage / cfg.Cols

		// Top-left of label
		x := cfg.MarginLeft + float64(col)*(labelW+cfg.GapX)
		y := cfg.MarginTop + float64(row)*(labelH+cfg.GapY)

		qrPng, err := qrcode.Encode(f.ID, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("qr code for %s: %w", f.ID, err)
		}

		imgName := fmt.Sprintf("qr_%d", i)
		imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		pdf.RegisterImageOptionsReader(imgName, imgOptions, bytes.NewReader(qrPng))

		// QR on the left half, text on the right
		qrSize := labelH * 0.75
		if qrSize > labelW/2 {
			qrSize = labelW / 2
		}
		qrY := y + (labelH-qrSize)/2
		pdf.ImageOptions(imgName, x+2, qrY, qrSize, qrSize, false, imgOptions, 0, "")

		textX := x + qrSize + 4
		textW := labelW - qrSize - 6

		pdf.SetXY(textX, y+6)
		pdf.SetFontSize(12)
		pdf.CellFormat(textW, 6, tr(f.ID), "", 2, "L", false, 0, "")

		pdf.SetFontSize(16)
		pdf.CellFormat(textW, 9, f.AAC, "", 2, "L", false, 0, "")

		pdf.SetFont("Arial", "", 8)
		pdf.CellFormat(textW, 4, tr(string(f.Type)), "", 2, "L", false, 0, "")
		if f.Site != "" {
			pdf.CellFormat(textW, 4, tr(f.Site), "", 2, "L", false, 0, "")
		}
		pdf.CellFormat(textW, 4, f.CreationDate.UTC().Format("2006-01-02 15:04"), "", 2, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 10)

		pdf.Rect(x, y, labelW, labelH, "D")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
