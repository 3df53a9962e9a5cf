package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/piwi3910/levelforge/internal/geom"
	"github.com/piwi3910/levelforge/internal/model"
)

// ExportManifest writes an Excel workbook describing every placed chunk and
// anchor. The Chunks sheet has one row per placement, the Anchors sheet one
// row per anchor with absolute coordinates, ready for downstream tooling.
func ExportManifest(path string, level *model.Level) error {
	if level == nil || level.Count() == 0 {
		return fmt.Errorf("%w: no placed chunks to export", model.ErrInvalidArgument)
	}

	f := excelize.NewFile()
	defer f.Close()

	chunkSheet := f.GetSheetName(0)
	if err := f.SetSheetName(chunkSheet, "Chunks"); err != nil {
		return err
	}
	chunkSheet = "Chunks"

	chunkHeaders := []interface{}{
		"ID", "Tag", "Template", "X", "Y", "Z",
		"Width", "Height", "Depth", "Rotation", "Aligned", "Open",
	}
	if err := f.SetSheetRow(chunkSheet, "A1", &chunkHeaders); err != nil {
		return err
	}

	for i, c := range level.Chunks() {
		aligned := 0
		open := 0
		for _, ctx := range c.Contexts {
			if ctx.Aligned() {
				aligned++
			} else {
				open++
			}
		}

		yDeg, xDeg, zDeg := c.Rotation()
		rotation := fmt.Sprintf("Z%d", zDeg)
		if c.Dim() == geom.Dim3 {
			rotation = fmt.Sprintf("Y%d X%d Z%d", yDeg, xDeg, zDeg)
		}

		row := []interface{}{
			c.ID, c.Tag(), c.Index(),
			c.Position.X, c.Position.Y, c.Position.Z,
			c.Size.W, c.Size.H, c.Size.D,
			rotation, aligned, open,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(chunkSheet, cell, &row); err != nil {
			return err
		}
	}

	anchorSheet := "Anchors"
	if _, err := f.NewSheet(anchorSheet); err != nil {
		return err
	}

	anchorHeaders := []interface{}{"Anchor", "Tag", "Chunk ID", "Chunk Tag", "X", "Y", "Z"}
	if err := f.SetSheetRow(anchorSheet, "A1", &anchorHeaders); err != nil {
		return err
	}

	rowNum := 2
	for _, c := range level.Chunks() {
		for _, a := range c.Anchors {
			abs := a.AbsolutePosition()
			row := []interface{}{a.Name, a.Tag, c.ID, c.Tag(), abs.X, abs.Y, abs.Z}
			cell, err := excelize.CoordinatesToCellName(1, rowNum)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(anchorSheet, cell, &row); err != nil {
				return err
			}
			rowNum++
		}
	}

	return f.SaveAs(path)
}
