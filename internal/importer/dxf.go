package importer

import (
	"fmt"
	"math"
	"sort"

	"github.com/yofu/dxf"
	"github.com/yofu/dxf/entity"

	"github.com/piwi3910/levelforge/internal/geom"
	"github.com/piwi3910/levelforge/internal/model"
)

// point2 is a 2D drawing coordinate.
type point2 struct {
	X, Y float64
}

// segment represents a line segment between two drawing points, used for
// chaining disconnected LINE entities into closed outlines.
type segment struct {
	start point2
	end   point2
}

// ImportDXF imports chunk templates from a DXF drawing. Each closed shape
// (LWPOLYLINE or chain of connected LINEs) becomes one 2D template whose
// extents are the shape's bounding box. Templates made this way get the
// default edge-midpoint contexts; non-rectangular shapes are imported by
// bounding box with a warning.
func ImportDXF(path string) ImportResult {
	result := ImportResult{}

	drawing, err := dxf.Open(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open DXF file: %v", err))
		return result
	}

	entities := drawing.Entities()
	if len(entities) == 0 {
		result.Errors = append(result.Errors, "DXF file contains no entities")
		return result
	}

	var outlines [][]point2
	var segments []segment

	for _, ent := range entities {
		switch e := ent.(type) {
		case *entity.LwPolyline:
			outline := lwPolylineToOutline(e)
			if len(outline) >= 3 {
				outlines = append(outlines, outline)
			} else {
				result.Warnings = append(result.Warnings,
					"Skipped LWPOLYLINE with fewer than 3 vertices")
			}

		case *entity.Line:
			segments = append(segments, segment{
				start: point2{X: e.Start[0], Y: e.Start[1]},
				end:   point2{X: e.End[0], Y: e.End[1]},
			})

		default:
			// Unsupported entity types are silently skipped.
		}
	}

	outlines = append(outlines, chainSegments(segments, 0.01)...)

	if len(outlines) == 0 {
		result.Errors = append(result.Errors, "No closed shapes found in DXF file")
		return result
	}

	num := 0
	for _, outline := range outlines {
		num++
		min, max := boundingBox(outline)
		width := max.X - min.X
		height := max.Y - min.Y

		if width < 0.01 || height < 0.01 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Skipped degenerate shape (%.2f x %.2f)", width, height))
			continue
		}
		if !isRectangle(outline, min, max, 0.01) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Shape %d is not rectangular, using its bounding box", num))
		}

		tpl, err := model.NewChunkTemplate(geom.Dim2, fmt.Sprintf("dxf-%d", num),
			geom.Size{W: width, H: height}, 1, true)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Shape %d: %v", num, err))
			continue
		}
		if err := addEdgeContexts(tpl); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Shape %d: %v", num, err))
			continue
		}
		result.Templates = append(result.Templates, tpl)
	}

	return result
}

// lwPolylineToOutline converts a DXF LWPOLYLINE entity to an outline,
// ignoring bulge arcs: only the vertices matter for a bounding footprint.
func lwPolylineToOutline(lw *entity.LwPolyline) []point2 {
	outline := make([]point2, 0, len(lw.Vertices))
	for _, v := range lw.Vertices {
		outline = append(outline, point2{X: v[0], Y: v[1]})
	}
	return outline
}

// chainSegments connects individual segments into closed outlines. tolerance
// is the maximum endpoint distance to consider two segments connected.
func chainSegments(segs []segment, tolerance float64) [][]point2 {
	if len(segs) == 0 {
		return nil
	}

	used := make([]bool, len(segs))
	var outlines [][]point2

	for {
		startIdx := -1
		for i, u := range used {
			if !u {
				startIdx = i
				break
			}
		}
		if startIdx == -1 {
			break
		}

		chain := []point2{segs[startIdx].start, segs[startIdx].end}
		used[startIdx] = true

		changed := true
		for changed {
			changed = false
			tail := chain[len(chain)-1]

			for i, seg := range segs {
				if used[i] {
					continue
				}
				if pointsClose(tail, seg.start, tolerance) {
					chain = append(chain, seg.end)
					used[i] = true
					changed = true
					break
				}
				if pointsClose(tail, seg.end, tolerance) {
					chain = append(chain, seg.start)
					used[i] = true
					changed = true
					break
				}
			}
		}

		// A chain only counts when it closes back on its first point.
		if len(chain) >= 4 && pointsClose(chain[0], chain[len(chain)-1], tolerance) {
			outlines = append(outlines, chain[:len(chain)-1])
		}
	}

	// Largest first for consistent ordering.
	sort.Slice(outlines, func(i, j int) bool {
		return outlineArea(outlines[i]) > outlineArea(outlines[j])
	})

	return outlines
}

func pointsClose(a, b point2, tolerance float64) bool {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx+dy*dy) <= tolerance
}

// outlineArea computes the absolute area of a polygon using the shoelace
// formula.
func outlineArea(o []point2) float64 {
	n := len(o)
	if n < 3 {
		return 0
	}
	var area float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += o[i].X * o[j].Y
		area -= o[j].X * o[i].Y
	}
	return math.Abs(area) / 2
}

// boundingBox returns the min and max corners of an outline.
func boundingBox(o []point2) (point2, point2) {
	min := o[0]
	max := o[0]
	for _, p := range o[1:] {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
	}
	return min, max
}

// isRectangle reports whether every outline vertex sits on a corner of the
// bounding box, i.e. the shape is an axis-aligned rectangle.
func isRectangle(o []point2, min, max point2, tolerance float64) bool {
	if len(o) != 4 {
		return false
	}
	for _, p := range o {
		onX := math.Abs(p.X-min.X) <= tolerance || math.Abs(p.X-max.X) <= tolerance
		onY := math.Abs(p.Y-min.Y) <= tolerance || math.Abs(p.Y-max.Y) <= tolerance
		if !onX || !onY {
			return false
		}
	}
	return true
}
