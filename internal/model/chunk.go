package model

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/piwi3910/levelforge/internal/geom"
)

// Context is a runtime alignment point attached to a chunk. Its position is
// chunk-relative and is rotated together with the chunk during candidate
// search. Once aligned, a context holds a mutual target reference to exactly
// one peer context and is never re-aligned.
type Context struct {
	Name     string
	Tag      string
	Index    int      // chunk-unique, in template order
	Position geom.Vec // chunk-relative
	Blocked  bool     // no further placement attempts once set

	target *Context
	chunk  *Chunk
}

// Chunk returns the owning chunk, or nil after the context has been
// discarded by a policy.
func (c *Context) Chunk() *Chunk {
	return c.chunk
}

// Dim returns the dimensionality of the owning chunk.
func (c *Context) Dim() geom.Dim {
	return c.chunk.Dim()
}

// Target returns the peer context this one is aligned to, or nil.
func (c *Context) Target() *Context {
	return c.target
}

// Aligned reports whether the context has a target.
func (c *Context) Aligned() bool {
	return c.target != nil
}

// AbsolutePosition returns the context position in level space.
func (c *Context) AbsolutePosition() geom.Vec {
	return c.chunk.Position.Add(c.Position)
}

// AlignTo pairs this context with other. Both sides get their target set,
// or neither does. Re-aligning an already-aligned context and pairing
// contexts of different dimensionality are invalid operations.
func (c *Context) AlignTo(other *Context) error {
	if other == nil {
		return fmt.Errorf("%w: alignment target must not be nil", ErrInvalidArgument)
	}
	if other == c {
		return fmt.Errorf("%w: context %q cannot align to itself", ErrInvalidArgument, c.Name)
	}
	if c.target != nil || other.target != nil {
		return fmt.Errorf("%w: %q -> %q", ErrAlreadyAligned, c.Name, other.Name)
	}
	if c.Dim() != other.Dim() {
		return fmt.Errorf("%w: cannot align %s context %q to %s context %q",
			ErrDimensionMismatch, c.Dim(), c.Name, other.Dim(), other.Name)
	}
	c.target = other
	other.target = c
	return nil
}

// ClearTarget removes the pairing on both sides. Clearing an unaligned
// context is a no-op.
func (c *Context) ClearTarget() {
	if c.target == nil {
		return
	}
	c.target.target = nil
	c.target = nil
}

// Anchor is a marker position for externally placed game elements. Its
// chunk-relative position is derived from the template only when the chunk's
// final position is set, using the chunk's accumulated rotation.
type Anchor struct {
	Name     string
	Tag      string
	Position geom.Vec // chunk-relative, rotation-aware after SetPosition

	templateRel geom.Vec
	chunk       *Chunk
}

// AbsolutePosition returns the anchor position in level space.
func (a *Anchor) AbsolutePosition() geom.Vec {
	return a.chunk.Position.Add(a.Position)
}

// Chunk is a placed (or candidate) instance of a chunk template. It holds a
// mutable absolute position, extents that rotation may permute, and the
// accumulated quarter-turn counts per axis.
type Chunk struct {
	ID       string
	Template *ChunkTemplate
	Position geom.Vec
	Size     geom.Size
	Contexts []*Context
	Anchors  []*Anchor

	// Quarter turns accumulated so far. 2D chunks only use rotZ.
	rotY, rotX, rotZ int
}

// NewChunk instantiates a chunk from a template, deep-copying its contexts
// and anchors. The template must not be nil.
func NewChunk(t *ChunkTemplate) *Chunk {
	c := &Chunk{
		ID:       uuid.New().String()[:8],
		Template: t,
		Size:     t.Size,
	}
	for i, ct := range t.Contexts {
		c.Contexts = append(c.Contexts, &Context{
			Name:     ct.Name,
			Tag:      ct.Tag,
			Index:    i,
			Position: ct.Position,
			chunk:    c,
		})
	}
	for _, at := range t.Anchors {
		c.Anchors = append(c.Anchors, &Anchor{
			Name:        at.Name,
			Tag:         at.Tag,
			Position:    at.Position,
			templateRel: at.Position,
			chunk:       c,
		})
	}
	return c
}

// Dim returns the chunk's dimensionality.
func (c *Chunk) Dim() geom.Dim {
	return c.Template.Dim
}

// Index returns the template's library index.
func (c *Chunk) Index() int {
	return c.Template.Index()
}

// Tag returns the template's category tag.
func (c *Chunk) Tag() string {
	return c.Template.Tag
}

// Weight returns the template's relative selection weight.
func (c *Chunk) Weight() int {
	return c.Template.Weight
}

// Bounds returns the chunk's bounding volume at its current position.
func (c *Chunk) Bounds() geom.Box {
	return geom.Box{Min: c.Position, Size: c.Size}
}

// BoundsAt returns the bounding volume the chunk would occupy at pos.
func (c *Chunk) BoundsAt(pos geom.Vec) geom.Box {
	return geom.Box{Min: pos, Size: c.Size}
}

// Rotation returns the accumulated rotation in degrees about the Y, X and Z
// axes. 2D chunks only ever rotate about Z.
func (c *Chunk) Rotation() (yDeg, xDeg, zDeg int) {
	return c.rotY * 90, c.rotX * 90, c.rotZ * 90
}

// DistinctRotations returns the number of distinct orientations the chunk
// can take: 1 when the template forbids rotation, 4 for 2D and 64 for 3D.
func (c *Chunk) DistinctRotations() int {
	if !c.Template.AllowRotation {
		return 1
	}
	if c.Dim() == geom.Dim3 {
		return 64
	}
	return 4
}

// Rotate advances the chunk to its next orientation, rotating every context
// position in place and permuting the extents. 2D chunks step 90 degrees
// about Z. 3D chunks step about Y; every full Y turn cascades into an X
// step, and every full X turn into a Z step. The return value is false once
// the chunk has come back to its identity orientation, meaning the distinct
// rotation cycle is exhausted. Chunks whose template forbids rotation never
// rotate.
func (c *Chunk) Rotate() bool {
	if !c.Template.AllowRotation {
		return false
	}
	if c.Dim() == geom.Dim2 {
		c.rotateStep(geom.PlaneXY)
		c.rotZ = (c.rotZ + 1) % 4
		return c.rotZ != 0
	}

	c.rotateStep(geom.PlaneXZ)
	c.rotY = (c.rotY + 1) % 4
	if c.rotY != 0 {
		return true
	}
	c.rotateStep(geom.PlaneYZ)
	c.rotX = (c.rotX + 1) % 4
	if c.rotX != 0 {
		return true
	}
	c.rotateStep(geom.PlaneXY)
	c.rotZ = (c.rotZ + 1) % 4
	return c.rotZ != 0
}

// rotateStep applies one quarter turn in the plane to all contexts and the
// extents. Anchors are deliberately left alone; they are re-derived when
// the final position is set.
func (c *Chunk) rotateStep(pl geom.Plane) {
	for _, ctx := range c.Contexts {
		ctx.Position = geom.RotatePoint(ctx.Position, c.Size, pl)
	}
	c.Size = geom.RotateSize(c.Size, pl)
}

// SetPosition moves the chunk to an absolute position and re-derives every
// anchor from its template-relative position using the accumulated rotation.
// Contexts are rotation-aware continuously during candidate search; anchors
// only become rotation-aware here, at commit time.
func (c *Chunk) SetPosition(pos geom.Vec) {
	c.Position = pos
	for _, a := range c.Anchors {
		a.Position = c.replayRotation(a.templateRel)
	}
}

// replayRotation applies the accumulated quarter turns to a
// template-relative point. The cascade applies Z turns earliest, then X,
// then Y, so the replay composes them in that order.
func (c *Chunk) replayRotation(p geom.Vec) geom.Vec {
	size := c.Template.Size
	step := func(pl geom.Plane, n int) {
		for i := 0; i < n; i++ {
			p = geom.RotatePoint(p, size, pl)
			size = geom.RotateSize(size, pl)
		}
	}
	step(geom.PlaneXY, c.rotZ)
	step(geom.PlaneYZ, c.rotX)
	step(geom.PlaneXZ, c.rotY)
	return p
}

// RemoveContext detaches a context from the chunk, clearing its pairing
// first. Removing a context that is not present fails.
func (c *Chunk) RemoveContext(ctx *Context) error {
	for i, have := range c.Contexts {
		if have == ctx {
			ctx.ClearTarget()
			ctx.chunk = nil
			c.Contexts = append(c.Contexts[:i], c.Contexts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: context %q is not owned by chunk %s", ErrNotFound, ctx.Name, c.ID)
}

// HasOpenContext reports whether any context is still unaligned. Blocked
// but unaligned contexts count as open.
func (c *Chunk) HasOpenContext() bool {
	for _, ctx := range c.Contexts {
		if !ctx.Aligned() {
			return true
		}
	}
	return false
}
