// Package importer reads chunk template definitions from external files:
// CSV and Excel part lists with flexible column mapping, and DXF drawings
// whose closed outlines become template footprints.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/piwi3910/levelforge/internal/geom"
	"github.com/piwi3910/levelforge/internal/model"
)

// ImportResult holds the results of an import operation. Row-level problems
// are collected rather than aborting the whole file.
type ImportResult struct {
	Templates []*model.ChunkTemplate
	Errors    []string
	Warnings  []string
}

// ColumnMapping maps semantic column roles to their indices in the data.
type ColumnMapping struct {
	Tag    int
	Width  int
	Height int
	Depth  int
	Weight int
	Rotate int
}

// headerAliases maps canonical column names to their accepted aliases (all lowercase).
var headerAliases = map[string][]string{
	"tag":    {"tag", "name", "label", "template", "chunk", "type", "kind"},
	"width":  {"width", "w", "x"},
	"height": {"height", "h", "y"},
	"depth":  {"depth", "d", "z"},
	"weight": {"weight", "wt", "chance", "probability", "freq", "frequency"},
	"rotate": {"rotate", "rotation", "rotatable", "rot", "turn"},
}

// DetectCSVDelimiter determines the most likely CSV delimiter by trying
// comma, semicolon, tab, and pipe. The delimiter that produces the most
// consistent multi-column split across lines wins.
func DetectCSVDelimiter(data []byte) rune {
	candidates := []rune{',', ';', '\t', '|'}
	bestDelimiter := ','
	bestScore := 0

	for _, delim := range candidates {
		reader := csv.NewReader(bytes.NewReader(data))
		reader.Comma = delim
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		records, err := reader.ReadAll()
		if err != nil || len(records) < 1 {
			continue
		}

		firstCols := len(records[0])
		if firstCols < 2 {
			continue
		}

		score := 0
		for _, row := range records {
			if len(row) == firstCols {
				score++
			}
		}

		weighted := score*10 + firstCols
		if weighted > bestScore {
			bestScore = weighted
			bestDelimiter = delim
		}
	}

	return bestDelimiter
}

// DetectColumns examines a header row and returns a ColumnMapping. Matching
// is case-insensitive against the known aliases for each column role. When
// no header is recognized it returns a positional mapping and false.
func DetectColumns(row []string) (ColumnMapping, bool) {
	mapping := ColumnMapping{
		Tag:    -1,
		Width:  -1,
		Height: -1,
		Depth:  -1,
		Weight: -1,
		Rotate: -1,
	}

	assign := func(dst *int, i int) {
		if *dst == -1 {
			*dst = i
		}
	}

	isHeader := false
	for i, cell := range row {
		normalized := strings.ToLower(strings.TrimSpace(cell))
		for role, aliases := range headerAliases {
			for _, alias := range aliases {
				if normalized != alias {
					continue
				}
				isHeader = true
				switch role {
				case "tag":
					assign(&mapping.Tag, i)
				case "width":
					assign(&mapping.Width, i)
				case "height":
					assign(&mapping.Height, i)
				case "depth":
					assign(&mapping.Depth, i)
				case "weight":
					assign(&mapping.Weight, i)
				case "rotate":
					assign(&mapping.Rotate, i)
				}
			}
		}
	}

	if !isHeader {
		// Positional fallback: Tag, Width, Height, Weight, Rotate.
		return ColumnMapping{
			Tag:    0,
			Width:  1,
			Height: 2,
			Depth:  -1,
			Weight: 3,
			Rotate: 4,
		}, false
	}

	return mapping, true
}

// parseRotate converts a rotation flag string to a bool. The second return
// value reports whether the string was recognized.
func parseRotate(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1", "on":
		return true, true
	case "", "no", "n", "false", "0", "off", "-":
		return false, true
	default:
		return false, false
	}
}

// getCell safely retrieves a cell value from a row by column index.
func getCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseRow extracts a chunk template from a row using the given column
// mapping. Returns the template, any error message, and any warning message.
func parseRow(row []string, mapping ColumnMapping, rowLabel string, count int) (*model.ChunkTemplate, string, string) {
	tag := getCell(row, mapping.Tag)
	if tag == "" {
		tag = fmt.Sprintf("chunk-%d", count+1)
	}

	widthStr := getCell(row, mapping.Width)
	if widthStr == "" {
		return nil, fmt.Sprintf("%s: Missing width value", rowLabel), ""
	}
	width, err := strconv.ParseFloat(widthStr, 64)
	if err != nil {
		return nil, fmt.Sprintf("%s: Invalid width '%s'", rowLabel, widthStr), ""
	}

	heightStr := getCell(row, mapping.Height)
	if heightStr == "" {
		return nil, fmt.Sprintf("%s: Missing height value", rowLabel), ""
	}
	height, err := strconv.ParseFloat(heightStr, 64)
	if err != nil {
		return nil, fmt.Sprintf("%s: Invalid height '%s'", rowLabel, heightStr), ""
	}

	depth := 0.0
	if depthStr := getCell(row, mapping.Depth); depthStr != "" {
		depth, err = strconv.ParseFloat(depthStr, 64)
		if err != nil {
			return nil, fmt.Sprintf("%s: Invalid depth '%s'", rowLabel, depthStr), ""
		}
	}

	weight := 1
	var warning string
	if weightStr := getCell(row, mapping.Weight); weightStr != "" {
		weight, err = strconv.Atoi(weightStr)
		if err != nil {
			return nil, fmt.Sprintf("%s: Invalid weight '%s'", rowLabel, weightStr), ""
		}
	}

	rotate := false
	if rotateStr := getCell(row, mapping.Rotate); rotateStr != "" {
		parsed, ok := parseRotate(rotateStr)
		if ok {
			rotate = parsed
		} else {
			warning = fmt.Sprintf("%s: Unknown rotation flag '%s', defaulting to no rotation", rowLabel, rotateStr)
		}
	}

	dim := geom.Dim2
	if depth > 0 {
		dim = geom.Dim3
	}
	tpl, err := model.NewChunkTemplate(dim, tag, geom.Size{W: width, H: height, D: depth}, weight, rotate)
	if err != nil {
		return nil, fmt.Sprintf("%s: %v", rowLabel, err), ""
	}
	if err := addEdgeContexts(tpl); err != nil {
		return nil, fmt.Sprintf("%s: %v", rowLabel, err), ""
	}

	return tpl, "", warning
}

// addEdgeContexts attaches the default door context at the midpoint of each
// face. Imported tabular data carries no context positions of its own.
func addEdgeContexts(tpl *model.ChunkTemplate) error {
	w, h, d := tpl.Size.W, tpl.Size.H, tpl.Size.D
	var midZ float64
	if tpl.Dim == geom.Dim3 {
		midZ = d / 2
	}

	faces := []struct {
		name string
		pos  geom.Vec
	}{
		{"west", geom.Vec{X: 0, Y: h / 2, Z: midZ}},
		{"east", geom.Vec{X: w, Y: h / 2, Z: midZ}},
		{"south", geom.Vec{X: w / 2, Y: 0, Z: midZ}},
		{"north", geom.Vec{X: w / 2, Y: h, Z: midZ}},
	}
	if tpl.Dim == geom.Dim3 {
		faces = append(faces,
			struct {
				name string
				pos  geom.Vec
			}{"down", geom.Vec{X: w / 2, Y: h / 2, Z: 0}},
			struct {
				name string
				pos  geom.Vec
			}{"up", geom.Vec{X: w / 2, Y: h / 2, Z: d}},
		)
	}

	for _, f := range faces {
		if err := tpl.AddContext(f.name, "door", f.pos); err != nil {
			return err
		}
	}
	return nil
}

// isEmptyRow returns true if the row has no meaningful content.
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ImportCSV imports chunk templates from a CSV file. It automatically
// detects the delimiter and maps columns by header names.
func ImportCSV(path string) ImportResult {
	result := ImportResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open file: %v", err))
		return result
	}

	if len(bytes.TrimSpace(data)) == 0 {
		result.Errors = append(result.Errors, "File is empty")
		return result
	}

	delimiter := DetectCSVDelimiter(data)
	if delimiter != ',' {
		delimName := map[rune]string{';': "semicolon", '\t': "tab", '|': "pipe"}[delimiter]
		result.Warnings = append(result.Warnings, fmt.Sprintf("Detected %s delimiter", delimName))
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read CSV: %v", err))
		return result
	}

	if len(records) == 0 {
		result.Errors = append(result.Errors, "File is empty")
		return result
	}

	return importFromRows(records, "Line", result.Warnings)
}

// ImportCSVFromReader imports chunk templates from a CSV reader with a known
// delimiter.
func ImportCSVFromReader(reader io.Reader, delimiter rune) ImportResult {
	result := ImportResult{}

	csvReader := csv.NewReader(reader)
	csvReader.Comma = delimiter
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read CSV: %v", err))
		return result
	}

	if len(records) == 0 {
		result.Errors = append(result.Errors, "File is empty")
		return result
	}

	return importFromRows(records, "Line", nil)
}

// ImportExcel imports chunk templates from an Excel (.xlsx) file. Reads the
// first sheet and auto-detects column mapping from headers.
func ImportExcel(path string) ImportResult {
	result := ImportResult{}

	f, err := excelize.OpenFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open Excel file: %v", err))
		return result
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		result.Errors = append(result.Errors, "Excel file has no sheets")
		return result
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read Excel data: %v", err))
		return result
	}

	if len(rows) == 0 {
		result.Errors = append(result.Errors, "Sheet is empty")
		return result
	}

	return importFromRows(rows, "Row", nil)
}

// importFromRows is the shared import logic for both CSV and Excel data.
// It detects headers, maps columns, and parses each row into a template.
func importFromRows(rows [][]string, rowPrefix string, initialWarnings []string) ImportResult {
	result := ImportResult{
		Warnings: initialWarnings,
	}

	if len(rows) == 0 {
		result.Errors = append(result.Errors, "No data rows found")
		return result
	}

	mapping, hasHeader := DetectColumns(rows[0])
	startRow := 0
	if hasHeader {
		startRow = 1
		result.Warnings = append(result.Warnings, "Detected header row, skipping")

		missing := []string{}
		if mapping.Width == -1 {
			missing = append(missing, "Width")
		}
		if mapping.Height == -1 {
			missing = append(missing, "Height")
		}
		if len(missing) > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("Required columns not found in header: %s", strings.Join(missing, ", ")))
			return result
		}
	} else if len(rows[0]) >= 2 {
		if _, err := strconv.ParseFloat(strings.TrimSpace(rows[0][1]), 64); err != nil {
			// First column after the tag is not numeric: treat the row as an
			// unrecognized header but keep the positional mapping.
			startRow = 1
			result.Warnings = append(result.Warnings, "Detected header row, skipping")
		}
	}

	for i := startRow; i < len(rows); i++ {
		row := rows[i]
		lineNum := i + 1

		if isEmptyRow(row) {
			continue
		}

		rowLabel := fmt.Sprintf("%s %d", rowPrefix, lineNum)
		tpl, errMsg, warning := parseRow(row, mapping, rowLabel, len(result.Templates))

		if errMsg != "" {
			result.Errors = append(result.Errors, errMsg)
			continue
		}
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}

		result.Templates = append(result.Templates, tpl)
	}

	return result
}
