package model

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/piwi3910/levelforge/internal/geom"
)

// ContextTemplate describes an alignment point on a chunk template. The
// position is relative to the chunk's own origin.
type ContextTemplate struct {
	Name     string   `json:"name"`
	Tag      string   `json:"tag"`
	Position geom.Vec `json:"position"`
}

// AnchorTemplate describes a marker position for externally placed game
// elements. Anchors never participate in alignment.
type AnchorTemplate struct {
	Name     string   `json:"name"`
	Tag      string   `json:"tag"`
	Position geom.Vec `json:"position"`
}

// ChunkTemplate is the immutable blueprint chunks are instantiated from.
// Templates are owned by a ChunkLibrary which assigns each one a
// library-unique index on insertion.
type ChunkTemplate struct {
	ID            string            `json:"id"`
	Tag           string            `json:"tag"`
	Dim           geom.Dim          `json:"dim"`
	Size          geom.Size         `json:"size"`
	Weight        int               `json:"weight"`
	AllowRotation bool              `json:"allow_rotation"`
	Contexts      []ContextTemplate `json:"contexts,omitempty"`
	Anchors       []AnchorTemplate  `json:"anchors,omitempty"`

	index int // assigned by the owning library, -1 until then
}

// NewChunkTemplate validates and builds a template. Weight must be a
// positive integer (the relative selection probability; pass 1 for the
// default). Extents must be positive for every axis of dim.
func NewChunkTemplate(dim geom.Dim, tag string, size geom.Size, weight int, allowRotation bool) (*ChunkTemplate, error) {
	if !dim.Valid() {
		return nil, fmt.Errorf("%w: unsupported dimensionality %d", ErrInvalidArgument, int(dim))
	}
	if tag == "" {
		return nil, fmt.Errorf("%w: template tag must not be empty", ErrInvalidArgument)
	}
	if !size.Positive(dim) {
		return nil, fmt.Errorf("%w: template %q extents must be positive for %s (got %.2f x %.2f x %.2f)",
			ErrInvalidArgument, tag, dim, size.W, size.H, size.D)
	}
	if weight <= 0 {
		return nil, fmt.Errorf("%w: template %q weight must be positive, got %d", ErrInvalidArgument, tag, weight)
	}
	return &ChunkTemplate{
		ID:            uuid.New().String()[:8],
		Tag:           tag,
		Dim:           dim,
		Size:          size,
		Weight:        weight,
		AllowRotation: allowRotation,
		index:         -1,
	}, nil
}

// AddContext appends an alignment point to the template.
func (t *ChunkTemplate) AddContext(name, tag string, pos geom.Vec) error {
	if err := t.checkPoint(name, pos); err != nil {
		return err
	}
	t.Contexts = append(t.Contexts, ContextTemplate{Name: name, Tag: tag, Position: pos})
	return nil
}

// AddAnchor appends a marker position to the template.
func (t *ChunkTemplate) AddAnchor(name, tag string, pos geom.Vec) error {
	if err := t.checkPoint(name, pos); err != nil {
		return err
	}
	t.Anchors = append(t.Anchors, AnchorTemplate{Name: name, Tag: tag, Position: pos})
	return nil
}

func (t *ChunkTemplate) checkPoint(name string, pos geom.Vec) error {
	if name == "" {
		return fmt.Errorf("%w: point name must not be empty", ErrInvalidArgument)
	}
	if t.Dim == geom.Dim2 && pos.Z != 0 {
		return fmt.Errorf("%w: 2D template %q cannot hold point %q with Z=%.2f",
			ErrDimensionMismatch, t.Tag, name, pos.Z)
	}
	return nil
}

// Index returns the library-assigned insertion index, or -1 when the
// template has not been added to a library yet.
func (t *ChunkTemplate) Index() int {
	return t.index
}

// ChunkLibrary is an ordered, read-mostly collection of chunk templates.
type ChunkLibrary struct {
	templates []*ChunkTemplate
}

func NewChunkLibrary() *ChunkLibrary {
	return &ChunkLibrary{}
}

// Add inserts a template and assigns its library-unique index. A template
// can belong to at most one library.
func (l *ChunkLibrary) Add(t *ChunkTemplate) error {
	if t == nil {
		return fmt.Errorf("%w: template must not be nil", ErrInvalidArgument)
	}
	if t.index >= 0 {
		return fmt.Errorf("%w: template %q already belongs to a library", ErrInvalidArgument, t.Tag)
	}
	t.index = len(l.templates)
	l.templates = append(l.templates, t)
	return nil
}

// Count returns the number of templates in insertion order.
func (l *ChunkLibrary) Count() int {
	return len(l.templates)
}

// At returns the template at the given insertion index.
func (l *ChunkLibrary) At(i int) *ChunkTemplate {
	return l.templates[i]
}

// Templates returns the templates in insertion order. The slice is shared;
// callers must not modify it.
func (l *ChunkLibrary) Templates() []*ChunkTemplate {
	return l.templates
}
