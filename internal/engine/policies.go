package engine

import (
	"go.uber.org/zap"

	"github.com/piwi3910/levelforge/internal/model"
)

// Policy is an independent post-processing pass over a finished level.
// Policies run in registration order and must tolerate running any number
// of times; their only side effects are level mutations.
type Policy interface {
	Apply(cfg *Config, level *model.Level) error
}

// AlignAdjacentContextsPolicy pairs up open contexts that ended up within
// Offset of each other, closing gaps the placement loop left behind.
type AlignAdjacentContextsPolicy struct {
	Offset float64
}

// Apply scans every unordered pair of open contexts in discovery order
// (chunk order, then context order) and aligns pairs whose Euclidean
// distance is within the offset, subject to the configured restriction.
// A context aligned mid-scan is skipped for further pairing.
func (p AlignAdjacentContextsPolicy) Apply(cfg *Config, level *model.Level) error {
	var open []*model.Context
	for _, chunk := range level.Chunks() {
		for _, ctx := range chunk.Contexts {
			if !ctx.Aligned() {
				open = append(open, ctx)
			}
		}
	}

	aligned := 0
	for i := 0; i < len(open); i++ {
		a := open[i]
		if a.Aligned() {
			continue
		}
		for j := i + 1; j < len(open); j++ {
			b := open[j]
			if b.Aligned() {
				continue
			}
			if a.AbsolutePosition().Dist(b.AbsolutePosition()) > p.Offset {
				continue
			}
			if cfg.Restriction != nil && !cfg.Restriction(a, b, level) {
				continue
			}
			if err := a.AlignTo(b); err != nil {
				return err
			}
			aligned++
			break
		}
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("aligned adjacent contexts",
			zap.Float64("offset", p.Offset),
			zap.Int("pairs", aligned))
	}
	return nil
}

// DiscardOpenChunksPolicy removes chunks that still have unaligned
// contexts. Removal clears the removed chunk's pairings, which can re-open
// contexts on neighbors, so the scan repeats until a full pass removes
// nothing.
type DiscardOpenChunksPolicy struct {
	// Restriction decides whether an open chunk is actually removed.
	// Nil accepts every open chunk.
	Restriction func(chunk *model.Chunk, level *model.Level) bool
}

func (p DiscardOpenChunksPolicy) Apply(cfg *Config, level *model.Level) error {
	discarded := 0
	for {
		removed := false
		snapshot := append([]*model.Chunk(nil), level.Chunks()...)
		for _, chunk := range snapshot {
			if !chunk.HasOpenContext() {
				continue
			}
			if p.Restriction != nil && !p.Restriction(chunk, level) {
				continue
			}
			if err := level.RemoveChunk(chunk); err != nil {
				return err
			}
			removed = true
			discarded++
		}
		if !removed {
			break
		}
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("discarded open chunks", zap.Int("chunks", discarded))
	}
	return nil
}

// DiscardOpenContextsPolicy strips remaining open contexts from their
// chunks in a single pass.
type DiscardOpenContextsPolicy struct {
	// Restriction decides whether an open context is removed. Nil accepts
	// every open context.
	Restriction func(ctx *model.Context, level *model.Level) bool
}

func (p DiscardOpenContextsPolicy) Apply(cfg *Config, level *model.Level) error {
	discarded := 0
	for _, chunk := range level.Chunks() {
		open := make([]*model.Context, 0, len(chunk.Contexts))
		for _, ctx := range chunk.Contexts {
			if !ctx.Aligned() {
				open = append(open, ctx)
			}
		}
		for _, ctx := range open {
			if p.Restriction != nil && !p.Restriction(ctx, level) {
				continue
			}
			if err := chunk.RemoveContext(ctx); err != nil {
				return err
			}
			discarded++
		}
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("discarded open contexts", zap.Int("contexts", discarded))
	}
	return nil
}
