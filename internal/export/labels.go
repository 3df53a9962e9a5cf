package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/piwi3910/levelforge/internal/model"
)

// LabelInfo holds the data encoded into each anchor label's QR code. Anchors
// mark where externally managed game elements (spawners, loot, scripts) go,
// so the label carries everything a placement tool needs to look them up.
type LabelInfo struct {
	AnchorName string  `json:"anchor"`
	AnchorTag  string  `json:"tag,omitempty"`
	ChunkID    string  `json:"chunk"`
	ChunkTag   string  `json:"chunk_tag"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
}

// Label layout constants for Avery 5160-compatible labels (3 columns, 10 rows per page).
// Each label cell is approximately 66.7mm x 25.4mm on US Letter paper.
const (
	labelPageWidth  = 215.9 // US Letter width in mm
	labelPageHeight = 279.4 // US Letter height in mm
	labelMarginTop  = 12.7  // mm
	labelMarginLeft = 4.8   // mm
	labelWidth      = 66.7  // mm per label
	labelHeight     = 25.4  // mm per label
	labelCols       = 3
	labelRows       = 10
	labelsPerPage   = labelCols * labelRows
	qrSize          = 20.0 // QR code size in mm
	labelPadding    = 2.0  // mm internal padding
)

// ExportLabels generates a PDF of QR-coded labels, one per anchor in the
// level. Each label shows the anchor name, its absolute position, and a QR
// code encoding the anchor metadata as JSON. Labels are laid out on a
// standard label sheet format (Avery 5160 / 3 columns x 10 rows on US Letter).
func ExportLabels(path string, level *model.Level) error {
	if level == nil || level.Count() == 0 {
		return fmt.Errorf("%w: no placed chunks to generate labels for", model.ErrInvalidArgument)
	}

	labels := CollectLabelInfos(level)
	if len(labels) == 0 {
		return fmt.Errorf("%w: level has no anchors to generate labels for", model.ErrInvalidArgument)
	}

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)

	for i, label := range labels {
		if i%labelsPerPage == 0 {
			pdf.AddPage()
		}

		posOnPage := i % labelsPerPage
		col := posOnPage % labelCols
		row := posOnPage / labelCols

		x := labelMarginLeft + float64(col)*labelWidth
		y := labelMarginTop + float64(row)*labelHeight

		if err := renderLabel(pdf, x, y, i, label); err != nil {
			return fmt.Errorf("failed to render label for %q: %w", label.AnchorName, err)
		}
	}

	return pdf.OutputFileAndClose(path)
}

// renderLabel draws a single label at the given position.
func renderLabel(pdf *fpdf.Fpdf, x, y float64, seq int, info LabelInfo) error {
	// Light border as a cutting guide.
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.1)
	pdf.Rect(x, y, labelWidth, labelHeight, "D")

	qrData, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal label info: %w", err)
	}

	qrPNG, err := qrcode.Encode(string(qrData), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}

	imgName := fmt.Sprintf("qr_%s_%d", info.ChunkID, seq)
	pdf.RegisterImageOptionsReader(imgName, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qrPNG))

	// QR code on the right side of the label.
	qrX := x + labelWidth - qrSize - labelPadding
	qrY := y + (labelHeight-qrSize)/2
	pdf.ImageOptions(imgName, qrX, qrY, qrSize, qrSize, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	// Text area on the left.
	textX := x + labelPadding
	textW := labelWidth - qrSize - 3*labelPadding

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(textX, y+labelPadding)

	name := info.AnchorName
	if pdf.GetStringWidth(name) > textW {
		for len(name) > 0 && pdf.GetStringWidth(name+"...") > textW {
			name = name[:len(name)-1]
		}
		name += "..."
	}
	pdf.CellFormat(textW, 4.5, name, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	pdf.SetXY(textX, y+labelPadding+5)
	pos := fmt.Sprintf("(%.1f, %.1f)", info.X, info.Y)
	if info.Z != 0 {
		pos = fmt.Sprintf("(%.1f, %.1f, %.1f)", info.X, info.Y, info.Z)
	}
	pdf.CellFormat(textW, 3.5, pos, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 6)
	pdf.SetTextColor(100, 100, 100)
	pdf.SetXY(textX, y+labelPadding+9)
	chunkInfo := fmt.Sprintf("%s chunk %s", info.ChunkTag, info.ChunkID)
	pdf.CellFormat(textW, 3, chunkInfo, "", 1, "L", false, 0, "")

	if info.AnchorTag != "" {
		pdf.SetXY(textX, y+labelPadding+12.5)
		pdf.SetFont("Helvetica", "I", 6)
		pdf.SetTextColor(150, 100, 0)
		pdf.CellFormat(textW, 3, info.AnchorTag, "", 0, "L", false, 0, "")
	}

	pdf.SetTextColor(0, 0, 0)

	return nil
}

// CollectLabelInfos extracts label information from a level for use in
// testing or alternative export formats.
func CollectLabelInfos(level *model.Level) []LabelInfo {
	var labels []LabelInfo
	for _, c := range level.Chunks() {
		for _, a := range c.Anchors {
			abs := a.AbsolutePosition()
			labels = append(labels, LabelInfo{
				AnchorName: a.Name,
				AnchorTag:  a.Tag,
				ChunkID:    c.ID,
				ChunkTag:   c.Tag(),
				X:          abs.X,
				Y:          abs.Y,
				Z:          abs.Z,
			})
		}
	}
	return labels
}
