// Package export renders generated levels to external formats: a PDF layout
// document, printable anchor label sheets, and an Excel placement manifest.
package export

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-pdf/fpdf"

	"github.com/piwi3910/levelforge/internal/geom"
	"github.com/piwi3910/levelforge/internal/model"
)

// chunkColor represents an RGB color for a placed chunk.
type chunkColor struct {
	R, G, B int
}

// chunkColors assigns colors by template index so chunks from the same
// template look alike across pages.
var chunkColors = []chunkColor{
	{R: 76, G: 175, B: 80},  // green
	{R: 33, G: 150, B: 243}, // blue
	{R: 255, G: 152, B: 0},  // orange
	{R: 156, G: 39, B: 176}, // purple
	{R: 0, G: 188, B: 212},  // cyan
	{R: 244, G: 67, B: 54},  // red
	{R: 255, G: 235, B: 59}, // yellow
	{R: 121, G: 85, B: 72},  // brown
}

// Page layout constants (A4 landscape in mm).
const (
	pageWidth    = 297.0
	pageHeight   = 210.0
	marginLeft   = 15.0
	marginRight  = 15.0
	marginTop    = 15.0
	marginBottom = 15.0
	headerHeight = 12.0
	legendHeight = 20.0
	drawAreaTop  = marginTop + headerHeight + 5.0
)

// ExportPDF renders a level to a PDF document: a layout page with the placed
// chunks drawn to scale, followed by a summary page. 3D levels are drawn as
// a top-down projection onto the X/Z plane.
func ExportPDF(path string, level *model.Level, seed int64) error {
	if level == nil || level.Count() == 0 {
		return fmt.Errorf("%w: no placed chunks to export", model.ErrInvalidArgument)
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, marginBottom)

	pdf.AddPage()
	renderLayoutPage(pdf, level, seed)

	pdf.AddPage()
	renderSummaryPage(pdf, level, seed)

	return pdf.OutputFileAndClose(path)
}

// planarExtent returns the drawing-plane extents of a box: X/Y for 2D and
// X/Z for the 3D top-down projection.
func planarExtent(b geom.Box, dim geom.Dim) (x, y, w, h float64) {
	if dim == geom.Dim3 {
		return b.Min.X, b.Min.Z, b.Size.W, b.Size.D
	}
	return b.Min.X, b.Min.Y, b.Size.W, b.Size.H
}

// renderLayoutPage draws the level layout on the current PDF page.
func renderLayoutPage(pdf *fpdf.Fpdf, level *model.Level, seed int64) {
	levelX, levelY, levelW, levelH := planarExtent(level.Bounds(), level.Dim())

	// Title
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetXY(marginLeft, marginTop)
	title := fmt.Sprintf("Level Layout (%s, %.0f x %.0f", level.Dim(), level.Size().W, level.Size().H)
	if level.Dim() == geom.Dim3 {
		title = fmt.Sprintf("%s x %.0f, top-down", title, level.Size().D)
	}
	title += ")"
	pdf.CellFormat(pageWidth-marginLeft-marginRight, headerHeight, title, "", 0, "L", false, 0, "")

	// Stats line
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(marginLeft, marginTop+headerHeight)
	stats := fmt.Sprintf("Seed: %d | Chunks: %d | Fill: %.1f%%",
		seed, level.Count(), level.FillFraction()*100)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 5, stats, "", 0, "L", false, 0, "")

	// Scale the level bounds to fit the drawing area.
	drawWidth := pageWidth - marginLeft - marginRight
	drawHeight := pageHeight - drawAreaTop - marginBottom - legendHeight
	scale := math.Min(drawWidth/levelW, drawHeight/levelH)

	canvasW := levelW * scale
	canvasH := levelH * scale
	offsetX := marginLeft + (drawWidth-canvasW)/2
	offsetY := drawAreaTop

	// Level background
	pdf.SetFillColor(240, 240, 240)
	pdf.SetDrawColor(100, 100, 100)
	pdf.SetLineWidth(0.5)
	pdf.Rect(offsetX, offsetY, canvasW, canvasH, "FD")

	// Placed chunks
	for _, c := range level.Chunks() {
		cx, cy, cw, ch := planarExtent(c.Bounds(), level.Dim())
		col := chunkColors[c.Index()%len(chunkColors)]
		px := offsetX + (cx-levelX)*scale
		py := offsetY + (cy-levelY)*scale
		pw := cw * scale
		ph := ch * scale

		pdf.SetFillColor(col.R, col.G, col.B)
		pdf.SetDrawColor(30, 30, 30)
		pdf.SetLineWidth(0.3)
		pdf.Rect(px, py, pw, ph, "FD")

		if pw > 15 && ph > 8 {
			pdf.SetFont("Helvetica", "", labelFontSize(pw, ph))
			pdf.SetTextColor(0, 0, 0)

			label := c.Tag()
			dims := fmt.Sprintf("%.0fx%.0f", c.Size.W, c.Size.H)

			labelW := pdf.GetStringWidth(label)
			dimsW := pdf.GetStringWidth(dims)

			if labelW < pw-2 {
				pdf.SetXY(px+(pw-labelW)/2, py+ph/2-4)
				pdf.CellFormat(labelW, 4, label, "", 0, "C", false, 0, "")
			}
			if ph > 14 && dimsW < pw-2 {
				pdf.SetXY(px+(pw-dimsW)/2, py+ph/2)
				pdf.CellFormat(dimsW, 4, dims, "", 0, "C", false, 0, "")
			}
		}

		drawContextMarkers(pdf, c, level.Dim(), levelX, levelY, scale, offsetX, offsetY)
	}

	drawDimensionAnnotations(pdf, levelW, levelH, offsetX, offsetY, canvasW, canvasH)
	drawChunkLegend(pdf, level, offsetY+canvasH+5)
}

// drawContextMarkers draws a dot per context: solid green when aligned,
// solid red when blocked without a partner, hollow when still open.
func drawContextMarkers(pdf *fpdf.Fpdf, c *model.Chunk, dim geom.Dim, levelX, levelY, scale, offsetX, offsetY float64) {
	for _, ctx := range c.Contexts {
		abs := ctx.AbsolutePosition()
		mx := offsetX + (abs.X-levelX)*scale
		var my float64
		if dim == geom.Dim3 {
			my = offsetY + (abs.Z-levelY)*scale
		} else {
			my = offsetY + (abs.Y-levelY)*scale
		}

		pdf.SetLineWidth(0.2)
		switch {
		case ctx.Aligned():
			pdf.SetFillColor(0, 150, 0)
			pdf.SetDrawColor(0, 90, 0)
			pdf.Circle(mx, my, 1.0, "FD")
		case ctx.Blocked:
			pdf.SetFillColor(200, 0, 0)
			pdf.SetDrawColor(120, 0, 0)
			pdf.Circle(mx, my, 1.0, "FD")
		default:
			pdf.SetDrawColor(60, 60, 60)
			pdf.Circle(mx, my, 1.0, "D")
		}
	}
}

// drawDimensionAnnotations adds extent labels outside the level rectangle.
func drawDimensionAnnotations(pdf *fpdf.Fpdf, levelW, levelH, offsetX, offsetY, canvasW, canvasH float64) {
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(80, 80, 80)

	widthLabel := fmt.Sprintf("%.0f", levelW)
	wLabelW := pdf.GetStringWidth(widthLabel)
	pdf.SetXY(offsetX+(canvasW-wLabelW)/2, offsetY+canvasH+1)
	pdf.CellFormat(wLabelW, 4, widthLabel, "", 0, "C", false, 0, "")

	heightLabel := fmt.Sprintf("%.0f", levelH)
	pdf.TransformBegin()
	pdf.TransformRotate(90, offsetX-3, offsetY+canvasH/2)
	hLabelW := pdf.GetStringWidth(heightLabel)
	pdf.SetXY(offsetX-3-hLabelW/2, offsetY+canvasH/2-2)
	pdf.CellFormat(hLabelW, 4, heightLabel, "", 0, "C", false, 0, "")
	pdf.TransformEnd()

	pdf.SetTextColor(0, 0, 0)
}

// drawChunkLegend renders a compact per-template legend below the layout.
func drawChunkLegend(pdf *fpdf.Fpdf, level *model.Level, startY float64) {
	counts := templateCounts(level)
	if len(counts) == 0 {
		return
	}

	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(marginLeft, startY)
	pdf.CellFormat(30, 4, "Templates:", "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	xPos := marginLeft + 32
	maxX := pageWidth - marginRight

	for _, tc := range counts {
		col := chunkColors[tc.index%len(chunkColors)]
		label := fmt.Sprintf("%s x%d", tc.tag, tc.count)
		labelW := pdf.GetStringWidth(label) + 6

		if xPos+labelW > maxX {
			startY += 5
			xPos = marginLeft
		}

		pdf.SetFillColor(col.R, col.G, col.B)
		pdf.Rect(xPos, startY+0.5, 3, 3, "F")

		pdf.SetXY(xPos+4, startY)
		pdf.CellFormat(labelW-4, 4, label, "", 0, "L", false, 0, "")

		xPos += labelW + 2
	}
}

// templateCount aggregates placements per template.
type templateCount struct {
	index int
	tag   string
	count int
}

// templateCounts returns per-template placement counts in library order.
func templateCounts(level *model.Level) []templateCount {
	byIndex := map[int]*templateCount{}
	for _, c := range level.Chunks() {
		tc, ok := byIndex[c.Index()]
		if !ok {
			tc = &templateCount{index: c.Index(), tag: c.Tag()}
			byIndex[c.Index()] = tc
		}
		tc.count++
	}

	counts := make([]templateCount, 0, len(byIndex))
	for _, tc := range byIndex {
		counts = append(counts, *tc)
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].index < counts[j].index })
	return counts
}

// renderSummaryPage draws the final summary page with run statistics.
func renderSummaryPage(pdf *fpdf.Fpdf, level *model.Level, seed int64) {
	// Title
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetXY(marginLeft, marginTop)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 10, "Generation Summary", "", 0, "L", false, 0, "")

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Line(marginLeft, marginTop+12, pageWidth-marginRight, marginTop+12)

	y := marginTop + 18

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(100, 7, "Overall Statistics", "", 0, "L", false, 0, "")
	y += 9

	open, blocked, aligned := contextTotals(level)
	summaryItems := []struct {
		label string
		value string
	}{
		{"Seed", fmt.Sprintf("%d", seed)},
		{"Chunks Placed", fmt.Sprintf("%d", level.Count())},
		{"Fill Fraction", fmt.Sprintf("%.1f%%", level.FillFraction()*100)},
		{"Aligned Contexts", fmt.Sprintf("%d", aligned)},
		{"Dead-End Contexts", fmt.Sprintf("%d", blocked)},
		{"Open Contexts", fmt.Sprintf("%d", open)},
	}

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range summaryItems {
		pdf.SetXY(marginLeft+5, y)
		pdf.CellFormat(60, 6, item.label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, item.value, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		y += 7
	}

	y += 5

	// Per-template breakdown table
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(100, 7, "Template Breakdown", "", 0, "L", false, 0, "")
	y += 9

	colWidths := []float64{50, 45, 30, 45}
	headers := []string{"Template", "Extents", "Placed", "Share of Fill"}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	xPos := marginLeft
	for i, header := range headers {
		pdf.SetXY(xPos, y)
		pdf.CellFormat(colWidths[i], 6, header, "1", 0, "C", true, 0, "")
		xPos += colWidths[i]
	}
	y += 6

	placed := level.PlacedMeasure()
	pdf.SetFont("Helvetica", "", 9)
	for i, tc := range templateCounts(level) {
		var sample *model.Chunk
		for _, c := range level.Chunks() {
			if c.Index() == tc.index {
				sample = c
				break
			}
		}

		share := 0.0
		if placed > 0 && sample != nil {
			share = float64(tc.count) * sample.Template.Size.Measure(level.Dim()) / placed * 100
		}

		extents := fmt.Sprintf("%.0f x %.0f", sample.Template.Size.W, sample.Template.Size.H)
		if level.Dim() == geom.Dim3 {
			extents = fmt.Sprintf("%s x %.0f", extents, sample.Template.Size.D)
		}

		rowData := []string{
			tc.tag,
			extents,
			fmt.Sprintf("%d", tc.count),
			fmt.Sprintf("%.1f%%", share),
		}

		if i%2 == 0 {
			pdf.SetFillColor(245, 245, 245)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}

		xPos = marginLeft
		for j, cell := range rowData {
			pdf.SetXY(xPos, y)
			pdf.CellFormat(colWidths[j], 6, cell, "1", 0, "C", true, 0, "")
			xPos += colWidths[j]
		}
		y += 6
	}

	// Footer
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(marginLeft, pageHeight-marginBottom)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 4, "Generated by LevelForge", "", 0, "C", false, 0, "")
}

// contextTotals counts contexts by final state across the level.
func contextTotals(level *model.Level) (open, blocked, aligned int) {
	for _, c := range level.Chunks() {
		for _, ctx := range c.Contexts {
			switch {
			case ctx.Aligned():
				aligned++
			case ctx.Blocked:
				blocked++
			default:
				open++
			}
		}
	}
	return open, blocked, aligned
}

// labelFontSize returns an appropriate font size for a rectangle.
func labelFontSize(w, h float64) float64 {
	minDim := math.Min(w, h)
	switch {
	case minDim > 40:
		return 8
	case minDim > 20:
		return 7
	default:
		return 6
	}
}
