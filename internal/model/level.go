package model

import (
	"fmt"

	"github.com/piwi3910/levelforge/internal/geom"
)

// Level is an ordered collection of placed chunks bounded by fixed extents.
// It maintains two invariants: no two chunks' bounding volumes overlap, and
// every chunk lies entirely within the level bounds.
type Level struct {
	dim    geom.Dim
	size   geom.Size
	chunks []*Chunk
}

// NewLevel creates an empty level with fixed positive extents.
func NewLevel(dim geom.Dim, size geom.Size) (*Level, error) {
	if !dim.Valid() {
		return nil, fmt.Errorf("%w: unsupported dimensionality %d", ErrInvalidArgument, int(dim))
	}
	if !size.Positive(dim) {
		return nil, fmt.Errorf("%w: level extents must be positive for %s (got %.2f x %.2f x %.2f)",
			ErrInvalidArgument, dim, size.W, size.H, size.D)
	}
	return &Level{dim: dim, size: size}, nil
}

// Dim returns the level's dimensionality.
func (l *Level) Dim() geom.Dim {
	return l.dim
}

// Size returns the level extents.
func (l *Level) Size() geom.Size {
	return l.size
}

// Bounds returns the level's bounding volume, anchored at the origin.
func (l *Level) Bounds() geom.Box {
	return geom.Box{Size: l.size}
}

// Count returns the number of placed chunks.
func (l *Level) Count() int {
	return len(l.chunks)
}

// Chunks returns the placed chunks in insertion order. The slice is shared;
// callers must not modify it.
func (l *Level) Chunks() []*Chunk {
	return l.chunks
}

// Fits reports whether a bounding volume lies within the level and clear of
// every placed chunk.
func (l *Level) Fits(b geom.Box) bool {
	if !l.Bounds().Contains(b, l.dim) {
		return false
	}
	for _, placed := range l.chunks {
		if placed.Bounds().Intersects(b, l.dim) {
			return false
		}
	}
	return true
}

// AddChunk appends a chunk, enforcing the level invariants.
func (l *Level) AddChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("%w: chunk must not be nil", ErrInvalidArgument)
	}
	if c.Dim() != l.dim {
		return fmt.Errorf("%w: cannot place %s chunk %q in %s level",
			ErrDimensionMismatch, c.Dim(), c.Tag(), l.dim)
	}
	bounds := c.Bounds()
	if !l.Bounds().Contains(bounds, l.dim) {
		return fmt.Errorf("%w: chunk %q at (%.2f, %.2f, %.2f)",
			ErrOutOfBounds, c.Tag(), c.Position.X, c.Position.Y, c.Position.Z)
	}
	for _, placed := range l.chunks {
		if placed.Bounds().Intersects(bounds, l.dim) {
			return fmt.Errorf("%w: chunk %q intersects chunk %q", ErrOverlap, c.Tag(), placed.Tag())
		}
	}
	l.chunks = append(l.chunks, c)
	return nil
}

// RemoveChunk detaches a chunk from the level. All of the chunk's context
// pairings are cleared, which may re-open contexts on neighboring chunks.
// Removing a chunk that is not present fails.
func (l *Level) RemoveChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("%w: chunk must not be nil", ErrInvalidArgument)
	}
	for i, have := range l.chunks {
		if have == c {
			for _, ctx := range c.Contexts {
				ctx.ClearTarget()
			}
			l.chunks = append(l.chunks[:i], l.chunks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: chunk %s is not part of the level", ErrNotFound, c.ID)
}

// PlacedMeasure returns the cumulative area (2D) or volume (3D) covered by
// placed chunks.
func (l *Level) PlacedMeasure() float64 {
	var total float64
	for _, c := range l.chunks {
		total += c.Size.Measure(l.dim)
	}
	return total
}

// Capacity returns the level's total area or volume.
func (l *Level) Capacity() float64 {
	return l.size.Measure(l.dim)
}

// FillFraction returns PlacedMeasure divided by Capacity.
func (l *Level) FillFraction() float64 {
	cap := l.Capacity()
	if cap == 0 {
		return 0
	}
	return l.PlacedMeasure() / cap
}
