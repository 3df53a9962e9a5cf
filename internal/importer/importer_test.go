package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/piwi3910/levelforge/internal/geom"
)

// ─── DetectCSVDelimiter Tests ──────────────────────────────

func TestDetectCSVDelimiter_Comma(t *testing.T) {
	data := []byte("Tag,Width,Height,Weight\nroom,4,3,2\ncorridor,2,1,1\n")
	got := DetectCSVDelimiter(data)
	if got != ',' {
		t.Errorf("expected comma delimiter, got %q", got)
	}
}

func TestDetectCSVDelimiter_Semicolon(t *testing.T) {
	data := []byte("Tag;Width;Height;Weight\nroom;4;3;2\ncorridor;2;1;1\n")
	got := DetectCSVDelimiter(data)
	if got != ';' {
		t.Errorf("expected semicolon delimiter, got %q", got)
	}
}

func TestDetectCSVDelimiter_Tab(t *testing.T) {
	data := []byte("Tag\tWidth\tHeight\tWeight\nroom\t4\t3\t2\ncorridor\t2\t1\t1\n")
	got := DetectCSVDelimiter(data)
	if got != '\t' {
		t.Errorf("expected tab delimiter, got %q", got)
	}
}

func TestDetectCSVDelimiter_Pipe(t *testing.T) {
	data := []byte("Tag|Width|Height|Weight\nroom|4|3|2\ncorridor|2|1|1\n")
	got := DetectCSVDelimiter(data)
	if got != '|' {
		t.Errorf("expected pipe delimiter, got %q", got)
	}
}

// ─── DetectColumns Tests ───────────────────────────────────

func TestDetectColumns_StandardHeaders(t *testing.T) {
	row := []string{"Tag", "Width", "Height", "Weight", "Rotate"}
	mapping, isHeader := DetectColumns(row)

	if !isHeader {
		t.Error("expected header to be detected")
	}
	if mapping.Tag != 0 {
		t.Errorf("expected Tag at 0, got %d", mapping.Tag)
	}
	if mapping.Width != 1 {
		t.Errorf("expected Width at 1, got %d", mapping.Width)
	}
	if mapping.Height != 2 {
		t.Errorf("expected Height at 2, got %d", mapping.Height)
	}
	if mapping.Weight != 3 {
		t.Errorf("expected Weight at 3, got %d", mapping.Weight)
	}
	if mapping.Rotate != 4 {
		t.Errorf("expected Rotate at 4, got %d", mapping.Rotate)
	}
}

func TestDetectColumns_CaseInsensitive(t *testing.T) {
	row := []string{"NAME", "WIDTH", "HEIGHT", "WEIGHT"}
	mapping, isHeader := DetectColumns(row)

	if !isHeader {
		t.Error("expected header to be detected")
	}
	if mapping.Tag != 0 {
		t.Errorf("expected Tag at 0, got %d", mapping.Tag)
	}
	if mapping.Width != 1 {
		t.Errorf("expected Width at 1, got %d", mapping.Width)
	}
}

func TestDetectColumns_AlternativeNames(t *testing.T) {
	row := []string{"Template", "W", "H", "D", "Chance", "Rotation"}
	mapping, isHeader := DetectColumns(row)

	if !isHeader {
		t.Error("expected header to be detected")
	}
	if mapping.Tag != 0 {
		t.Errorf("expected Tag at 0, got %d", mapping.Tag)
	}
	if mapping.Width != 1 {
		t.Errorf("expected Width at 1, got %d", mapping.Width)
	}
	if mapping.Height != 2 {
		t.Errorf("expected Height at 2, got %d", mapping.Height)
	}
	if mapping.Depth != 3 {
		t.Errorf("expected Depth at 3, got %d", mapping.Depth)
	}
	if mapping.Weight != 4 {
		t.Errorf("expected Weight at 4, got %d", mapping.Weight)
	}
	if mapping.Rotate != 5 {
		t.Errorf("expected Rotate at 5, got %d", mapping.Rotate)
	}
}

func TestDetectColumns_NoHeader(t *testing.T) {
	row := []string{"room", "4", "3", "2"}
	mapping, isHeader := DetectColumns(row)

	if isHeader {
		t.Error("expected no header for numeric data row")
	}
	if mapping.Tag != 0 || mapping.Width != 1 || mapping.Height != 2 {
		t.Errorf("expected positional mapping, got %+v", mapping)
	}
}

// ─── CSV Reader Tests ──────────────────────────────────────

func TestImportCSVFromReader_WithHeader(t *testing.T) {
	data := "Tag,Width,Height,Weight,Rotate\nroom,4,3,2,yes\ncorridor,2,1,1,no\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',')

	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Templates) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(result.Templates))
	}

	room := result.Templates[0]
	if room.Tag != "room" {
		t.Errorf("expected tag 'room', got %q", room.Tag)
	}
	if room.Size.W != 4 || room.Size.H != 3 {
		t.Errorf("expected 4x3, got %.0fx%.0f", room.Size.W, room.Size.H)
	}
	if room.Weight != 2 {
		t.Errorf("expected weight 2, got %d", room.Weight)
	}
	if !room.AllowRotation {
		t.Error("expected rotation to be allowed")
	}
	if result.Templates[1].AllowRotation {
		t.Error("expected rotation to be forbidden for 'no'")
	}
}

func TestImportCSVFromReader_EdgeContexts(t *testing.T) {
	data := "Tag,Width,Height\nroom,4,2\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',')

	if len(result.Templates) != 1 {
		t.Fatalf("expected 1 template, got %d (errors: %v)", len(result.Templates), result.Errors)
	}

	tpl := result.Templates[0]
	if len(tpl.Contexts) != 4 {
		t.Fatalf("expected 4 edge contexts, got %d", len(tpl.Contexts))
	}
	want := map[string]geom.Vec{
		"west":  {X: 0, Y: 1},
		"east":  {X: 4, Y: 1},
		"south": {X: 2, Y: 0},
		"north": {X: 2, Y: 2},
	}
	for _, c := range tpl.Contexts {
		pos, ok := want[c.Name]
		if !ok {
			t.Errorf("unexpected context %q", c.Name)
			continue
		}
		if c.Position != pos {
			t.Errorf("context %q: expected %+v, got %+v", c.Name, pos, c.Position)
		}
		if c.Tag != "door" {
			t.Errorf("context %q: expected tag 'door', got %q", c.Name, c.Tag)
		}
	}
}

func TestImportCSVFromReader_DepthMakes3D(t *testing.T) {
	data := "Tag,Width,Height,Depth\nvault,4,3,2\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',')

	if len(result.Templates) != 1 {
		t.Fatalf("expected 1 template, got %d (errors: %v)", len(result.Templates), result.Errors)
	}

	tpl := result.Templates[0]
	if tpl.Dim != geom.Dim3 {
		t.Errorf("expected 3D template, got %v", tpl.Dim)
	}
	if len(tpl.Contexts) != 6 {
		t.Errorf("expected 6 face contexts for 3D, got %d", len(tpl.Contexts))
	}
}

func TestImportCSVFromReader_DefaultsAndAutoTag(t *testing.T) {
	data := "Tag,Width,Height\n,6,3\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',')

	if len(result.Templates) != 1 {
		t.Fatalf("expected 1 template, got %d (errors: %v)", len(result.Templates), result.Errors)
	}
	if result.Templates[0].Tag != "chunk-1" {
		t.Errorf("expected auto-generated tag 'chunk-1', got %q", result.Templates[0].Tag)
	}
	if result.Templates[0].Weight != 1 {
		t.Errorf("expected default weight 1, got %d", result.Templates[0].Weight)
	}
}

func TestImportCSVFromReader_InvalidRows(t *testing.T) {
	data := "Tag,Width,Height\nroom,abc,3\nhall,4,\nok,2,2\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',')

	if len(result.Templates) != 1 {
		t.Errorf("expected 1 template, got %d", len(result.Templates))
	}
	if len(result.Errors) != 2 {
		t.Errorf("expected 2 errors, got %d: %v", len(result.Errors), result.Errors)
	}
}

func TestImportCSVFromReader_EmptyRows(t *testing.T) {
	data := "Tag,Width,Height\nroom,4,3\n\n\ncorridor,2,1\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',')

	if len(result.Templates) != 2 {
		t.Errorf("expected 2 templates (skipping empty rows), got %d (errors: %v)",
			len(result.Templates), result.Errors)
	}
}

func TestImportCSVFromReader_UnknownRotateFlag(t *testing.T) {
	data := "Tag,Width,Height,Rotate\nroom,4,3,sideways\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',')

	if len(result.Templates) != 1 {
		t.Fatalf("expected 1 template, got %d (errors: %v)", len(result.Templates), result.Errors)
	}
	if result.Templates[0].AllowRotation {
		t.Error("unknown rotation flag must default to no rotation")
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "Unknown rotation flag") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected rotation flag warning, got: %v", result.Warnings)
	}
}

func TestImportCSVFromReader_MissingRequiredColumnInHeader(t *testing.T) {
	data := "Tag,Width,Weight\nroom,4,2\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',')

	if len(result.Errors) == 0 {
		t.Error("expected error for missing Height column")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "Required columns not found") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 'Required columns not found' error, got: %v", result.Errors)
	}
}

// ─── CSV File Import Tests ──────────────────────────────────

func TestImportCSV_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.csv")
	content := "Tag,Width,Height,Weight\nroom,4,3,2\ncorridor,2,1,1\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	result := ImportCSV(path)

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
	if len(result.Templates) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(result.Templates))
	}
}

func TestImportCSV_SemicolonFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.csv")
	content := "Tag;Width;Height;Weight\nroom;4;3;2\ncorridor;2;1;1\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	result := ImportCSV(path)

	if len(result.Templates) != 2 {
		t.Errorf("expected 2 templates, got %d (errors: %v)", len(result.Templates), result.Errors)
	}

	hasSemicolonWarning := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "semicolon") {
			hasSemicolonWarning = true
		}
	}
	if !hasSemicolonWarning {
		t.Error("expected warning about semicolon delimiter detection")
	}
}

func TestImportCSV_FileNotFound(t *testing.T) {
	result := ImportCSV("/nonexistent/path/file.csv")

	if len(result.Errors) == 0 {
		t.Error("expected error for nonexistent file")
	}
}

func TestImportCSV_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	result := ImportCSV(path)

	if len(result.Errors) == 0 {
		t.Error("expected error for empty file")
	}
}

// ─── Excel Import Tests ────────────────────────────────────

func createTestExcel(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, row := range rows {
		for j, cell := range row {
			cellRef, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("failed to create cell reference: %v", err)
			}
			if err := f.SetCellValue(sheet, cellRef, cell); err != nil {
				t.Fatalf("failed to set cell value: %v", err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save Excel file: %v", err)
	}
	return path
}

func TestImportExcel_WithHeaders(t *testing.T) {
	path := createTestExcel(t, [][]interface{}{
		{"Tag", "Width", "Height", "Weight", "Rotate"},
		{"room", 4, 3, 2, "yes"},
		{"corridor", 2, 1, 1, "no"},
	})

	result := ImportExcel(path)

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
	if len(result.Templates) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(result.Templates))
	}

	if result.Templates[0].Tag != "room" {
		t.Errorf("expected 'room', got %q", result.Templates[0].Tag)
	}
	if result.Templates[0].Size.W != 4 {
		t.Errorf("expected width 4, got %f", result.Templates[0].Size.W)
	}
	if !result.Templates[0].AllowRotation {
		t.Error("expected rotation to be allowed")
	}
}

func TestImportExcel_ReorderedColumns(t *testing.T) {
	path := createTestExcel(t, [][]interface{}{
		{"Weight", "Name", "Height", "Width"},
		{2, "room", 3, 4},
	})

	result := ImportExcel(path)

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
	if len(result.Templates) != 1 {
		t.Fatalf("expected 1 template, got %d", len(result.Templates))
	}
	if result.Templates[0].Tag != "room" {
		t.Errorf("expected 'room', got %q", result.Templates[0].Tag)
	}
	if result.Templates[0].Size.W != 4 {
		t.Errorf("expected width 4, got %f", result.Templates[0].Size.W)
	}
}

func TestImportExcel_FileNotFound(t *testing.T) {
	result := ImportExcel("/nonexistent/file.xlsx")

	if len(result.Errors) == 0 {
		t.Error("expected error for nonexistent file")
	}
}

func TestImportExcel_InvalidData(t *testing.T) {
	path := createTestExcel(t, [][]interface{}{
		{"Tag", "Width", "Height"},
		{"room", "abc", 3},
	})

	result := ImportExcel(path)

	if len(result.Errors) == 0 {
		t.Error("expected error for invalid width")
	}
}

// ─── DXF Import Tests ──────────────────────────────────────

func TestImportDXF_FileNotFound(t *testing.T) {
	result := ImportDXF("/nonexistent/file.dxf")

	if len(result.Errors) == 0 {
		t.Error("expected error for nonexistent file")
	}
}

// ─── parseRotate Tests ─────────────────────────────────────

func TestParseRotate(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
		ok       bool
	}{
		{"yes", true, true},
		{"Y", true, true},
		{"true", true, true},
		{"1", true, true},
		{"on", true, true},
		{"no", false, true},
		{"N", false, true},
		{"false", false, true},
		{"0", false, true},
		{"-", false, true},
		{"", false, true},
		{"  yes  ", true, true},
		{"sideways", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseRotate(tt.input)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("parseRotate(%q) = (%v, %v), expected (%v, %v)",
					tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

// ─── Segment Chaining Tests ────────────────────────────────

func TestChainSegments_ClosedRectangle(t *testing.T) {
	segs := []segment{
		{start: point2{0, 0}, end: point2{4, 0}},
		{start: point2{4, 0}, end: point2{4, 3}},
		{start: point2{4, 3}, end: point2{0, 3}},
		{start: point2{0, 3}, end: point2{0, 0}},
	}

	outlines := chainSegments(segs, 0.01)

	if len(outlines) != 1 {
		t.Fatalf("expected 1 closed outline, got %d", len(outlines))
	}
	if len(outlines[0]) != 4 {
		t.Errorf("expected 4 vertices, got %d", len(outlines[0]))
	}

	min, max := boundingBox(outlines[0])
	if max.X-min.X != 4 || max.Y-min.Y != 3 {
		t.Errorf("expected 4x3 bounding box, got %.1fx%.1f", max.X-min.X, max.Y-min.Y)
	}
	if !isRectangle(outlines[0], min, max, 0.01) {
		t.Error("expected the chained outline to be rectangular")
	}
}

func TestChainSegments_OpenChainDiscarded(t *testing.T) {
	segs := []segment{
		{start: point2{0, 0}, end: point2{4, 0}},
		{start: point2{4, 0}, end: point2{4, 3}},
	}

	outlines := chainSegments(segs, 0.01)

	if len(outlines) != 0 {
		t.Errorf("expected no outlines from an open chain, got %d", len(outlines))
	}
}
