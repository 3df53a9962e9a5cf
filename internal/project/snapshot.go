package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/piwi3910/levelforge/internal/geom"
	"github.com/piwi3910/levelforge/internal/model"
)

// PairRef identifies a context by chunk insertion index and context index.
type PairRef struct {
	Chunk   int `json:"chunk"`
	Context int `json:"context"`
}

// ContextSnapshot captures a context's final state.
type ContextSnapshot struct {
	Name      string   `json:"name"`
	Tag       string   `json:"tag,omitempty"`
	Position  geom.Vec `json:"position"`
	Blocked   bool     `json:"blocked"`
	AlignedTo *PairRef `json:"aligned_to,omitempty"`
}

// AnchorSnapshot captures an anchor's rotation-aware relative position.
type AnchorSnapshot struct {
	Name     string   `json:"name"`
	Tag      string   `json:"tag,omitempty"`
	Position geom.Vec `json:"position"`
}

// ChunkSnapshot captures one placed chunk.
type ChunkSnapshot struct {
	ID       string            `json:"id"`
	Tag      string            `json:"tag"`
	Template int               `json:"template"`
	Position geom.Vec          `json:"position"`
	Size     geom.Size         `json:"size"`
	RotY     int               `json:"rot_y,omitempty"` // degrees
	RotX     int               `json:"rot_x,omitempty"`
	RotZ     int               `json:"rot_z,omitempty"`
	Contexts []ContextSnapshot `json:"contexts,omitempty"`
	Anchors  []AnchorSnapshot  `json:"anchors,omitempty"`
}

// LevelSnapshot is the serializable result of a generation run.
type LevelSnapshot struct {
	Dim    int             `json:"dim"`
	Size   geom.Size       `json:"size"`
	Chunks []ChunkSnapshot `json:"chunks"`
}

// Snapshot converts a level into its serializable form. Context pairings
// are recorded as (chunk index, context index) references.
func Snapshot(level *model.Level) LevelSnapshot {
	chunkIdx := make(map[*model.Chunk]int, level.Count())
	for i, c := range level.Chunks() {
		chunkIdx[c] = i
	}
	ctxIdx := func(ctx *model.Context) *PairRef {
		peer := ctx.Target()
		if peer == nil || peer.Chunk() == nil {
			return nil
		}
		ci, ok := chunkIdx[peer.Chunk()]
		if !ok {
			return nil
		}
		for j, have := range peer.Chunk().Contexts {
			if have == peer {
				return &PairRef{Chunk: ci, Context: j}
			}
		}
		return nil
	}

	snap := LevelSnapshot{Dim: int(level.Dim()), Size: level.Size()}
	for _, c := range level.Chunks() {
		yDeg, xDeg, zDeg := c.Rotation()
		cs := ChunkSnapshot{
			ID:       c.ID,
			Tag:      c.Tag(),
			Template: c.Index(),
			Position: c.Position,
			Size:     c.Size,
			RotY:     yDeg,
			RotX:     xDeg,
			RotZ:     zDeg,
		}
		for _, ctx := range c.Contexts {
			cs.Contexts = append(cs.Contexts, ContextSnapshot{
				Name:      ctx.Name,
				Tag:       ctx.Tag,
				Position:  ctx.Position,
				Blocked:   ctx.Blocked,
				AlignedTo: ctxIdx(ctx),
			})
		}
		for _, a := range c.Anchors {
			cs.Anchors = append(cs.Anchors, AnchorSnapshot{
				Name:     a.Name,
				Tag:      a.Tag,
				Position: a.Position,
			})
		}
		snap.Chunks = append(snap.Chunks, cs)
	}
	return snap
}

// SaveLevel writes a level snapshot as indented JSON.
func SaveLevel(path string, level *model.Level) error {
	if level == nil {
		return fmt.Errorf("%w: level must not be nil", model.ErrInvalidArgument)
	}
	data, err := json.MarshalIndent(Snapshot(level), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadSnapshot reads a previously saved level snapshot. A missing file
// yields an empty snapshot.
func LoadSnapshot(path string) (LevelSnapshot, error) {
	var snap LevelSnapshot
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return snap, nil
		}
		return snap, fmt.Errorf("read level snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("parse level snapshot %s: %w", path, err)
	}
	return snap, nil
}
