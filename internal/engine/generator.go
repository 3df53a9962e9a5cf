// Package engine drives the iterative chunk-placement algorithm and the
// post-processing policy pipeline. Generation is single-threaded and
// synchronous; one random source belongs to one generation run.
package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/piwi3910/levelforge/internal/geom"
	"github.com/piwi3910/levelforge/internal/model"
	"github.com/piwi3910/levelforge/internal/random"
)

// ErrInvariant marks programming-contract violations that should have been
// prevented by construction-time validation.
var ErrInvariant = errors.New("invariant violation")

// Restriction decides whether the candidate context may be aligned to the
// free context. The default permits everything.
type Restriction func(free, candidate *model.Context, level *model.Level) bool

// WeightFunc computes the effective selection weight of a placement
// candidate. The default returns the candidate's template weight; custom
// implementations can use the free context or the level for frequency
// balancing. Results must be non-negative.
type WeightFunc func(free, candidate *model.Context, level *model.Level) int

// Termination is consulted once per placement iteration, before the
// candidate pass. Returning true ends generation early.
type Termination func(level *model.Level) bool

// ProgressFunc receives the fraction of level capacity filled after each
// committed chunk.
type ProgressFunc func(fraction float64)

// Config carries the injectable strategy hooks. The zero value is valid:
// all hooks default to permissive or identity behavior and logging is
// discarded.
type Config struct {
	Restriction  Restriction
	Weight       WeightFunc
	Terminations []Termination
	Policies     []Policy
	Progress     ProgressFunc
	Logger       *zap.Logger
}

// Generator runs the chunk-placement loop against a level.
type Generator struct {
	cfg Config
}

// New builds a generator, filling in the default hooks.
func New(cfg Config) *Generator {
	if cfg.Restriction == nil {
		cfg.Restriction = func(free, candidate *model.Context, level *model.Level) bool { return true }
	}
	if cfg.Weight == nil {
		cfg.Weight = func(free, candidate *model.Context, level *model.Level) int {
			return candidate.Chunk().Weight()
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Generator{cfg: cfg}
}

// MaxChunks returns a termination condition that caps the chunk count.
func MaxChunks(n int) Termination {
	return func(level *model.Level) bool {
		return level.Count() >= n
	}
}

// FindProcessibleContext scans chunks in level-insertion order and contexts
// in chunk order, returning the first context that is neither blocked nor
// aligned. It returns nil when generation is complete.
func FindProcessibleContext(level *model.Level) *model.Context {
	for _, chunk := range level.Chunks() {
		for _, ctx := range chunk.Contexts {
			if !ctx.Blocked && !ctx.Aligned() {
				return ctx
			}
		}
	}
	return nil
}

// candidate is one usable placement found during the candidate pass.
type candidate struct {
	chunk *model.Chunk
	ctx   *model.Context
	pos   geom.Vec
}

// GenerateLevel places chunks from the library into the level until every
// context is blocked or aligned, a termination condition fires, or the
// library offers nothing that fits. The level is seeded with one uniformly
// random chunk when empty. After the loop the configured policies run in
// registration order.
func (g *Generator) GenerateLevel(lib *model.ChunkLibrary, level *model.Level, rng random.Source) error {
	if lib == nil || lib.Count() == 0 {
		return fmt.Errorf("%w: chunk library must not be nil or empty", model.ErrInvalidArgument)
	}
	if level == nil {
		return fmt.Errorf("%w: level must not be nil", model.ErrInvalidArgument)
	}
	if rng == nil {
		return fmt.Errorf("%w: random source must not be nil", model.ErrInvalidArgument)
	}
	for _, tpl := range lib.Templates() {
		if tpl.Dim != level.Dim() {
			return fmt.Errorf("%w: %s template %q in %s level",
				model.ErrDimensionMismatch, tpl.Dim, tpl.Tag, level.Dim())
		}
	}

	if level.Count() == 0 {
		if err := g.placeStartingChunk(lib, level, rng); err != nil {
			return err
		}
	}

	for {
		if g.shouldTerminate(level) {
			g.cfg.Logger.Info("generation ended by termination condition",
				zap.Int("chunks", level.Count()))
			break
		}

		free := FindProcessibleContext(level)
		if free == nil {
			g.cfg.Logger.Info("generation finished, no processible context left",
				zap.Int("chunks", level.Count()))
			break
		}

		candidates := g.collectCandidates(lib, level, free)
		if len(candidates) == 0 {
			// Expected dead end: nothing in the library fits here. Block
			// the context permanently and move on.
			free.Blocked = true
			g.cfg.Logger.Debug("blocked context without candidates",
				zap.String("chunk", free.Chunk().ID),
				zap.String("context", free.Name))
			continue
		}

		selected, err := g.selectCandidate(free, level, candidates, rng)
		if err != nil {
			return err
		}
		if err := g.commit(level, free, selected); err != nil {
			return err
		}
	}

	return g.applyPolicies(level)
}

// placeStartingChunk seeds an empty level with a uniformly random template
// at a uniformly random in-bounds position.
func (g *Generator) placeStartingChunk(lib *model.ChunkLibrary, level *model.Level, rng random.Source) error {
	chunk := model.NewChunk(lib.At(rng.Intn(lib.Count())))

	ls, cs := level.Size(), chunk.Size
	if cs.W > ls.W || cs.H > ls.H || cs.D > ls.D {
		return fmt.Errorf("%w: starting chunk %q does not fit level extents",
			model.ErrInvalidArgument, chunk.Tag())
	}
	chunk.SetPosition(geom.Vec{
		X: rng.Float64() * (ls.W - cs.W),
		Y: rng.Float64() * (ls.H - cs.H),
		Z: rng.Float64() * (ls.D - cs.D),
	})

	if err := level.AddChunk(chunk); err != nil {
		return err
	}
	g.notifyPlaced(level, chunk)
	return nil
}

func (g *Generator) shouldTerminate(level *model.Level) bool {
	for _, cond := range g.cfg.Terminations {
		if cond(level) {
			return true
		}
	}
	return false
}

// collectCandidates runs the candidate pass for one free context: every
// template is instantiated once and tried through all of its contexts and
// permitted rotations. The first usable context per candidate wins; a
// candidate with no usable context in any rotation is dropped.
func (g *Generator) collectCandidates(lib *model.ChunkLibrary, level *model.Level, free *model.Context) []candidate {
	freeAbs := free.AbsolutePosition()

	var usable []candidate
	for i := 0; i < lib.Count(); i++ {
		chunk := model.NewChunk(lib.At(i))

		found := false
		rotations := chunk.DistinctRotations()
		for r := 0; r < rotations && !found; r++ {
			for _, ctx := range chunk.Contexts {
				if !g.cfg.Restriction(free, ctx, level) {
					continue
				}
				pos := freeAbs.Sub(ctx.Position)
				if !level.Fits(chunk.BoundsAt(pos)) {
					continue
				}
				usable = append(usable, candidate{chunk: chunk, ctx: ctx, pos: pos})
				found = true
				break
			}
			if !found && r+1 < rotations {
				chunk.Rotate()
			}
		}
	}
	return usable
}

// selectCandidate draws one candidate with probability proportional to its
// effective weight.
func (g *Generator) selectCandidate(free *model.Context, level *model.Level, candidates []candidate, rng random.Source) (candidate, error) {
	weights := make([]int, len(candidates))
	total := 0
	for i, c := range candidates {
		w := g.cfg.Weight(free, c.ctx, level)
		if w < 0 {
			return candidate{}, fmt.Errorf("%w: negative effective weight %d for template %q",
				ErrInvariant, w, c.chunk.Tag())
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return candidate{}, fmt.Errorf("%w: total effective weight is zero with %d candidates",
			ErrInvariant, len(candidates))
	}
	return candidates[drawWeighted(weights, total, rng)], nil
}

// drawWeighted implements cumulative-sum sampling: draw a uniform integer
// in [0, total) and walk the weights until the remainder goes negative.
func drawWeighted(weights []int, total int, rng random.Source) int {
	draw := rng.Intn(total)
	for i, w := range weights {
		draw -= w
		if draw < 0 {
			return i
		}
	}
	// Unreachable while total == sum(weights).
	return len(weights) - 1
}

// commit aligns the free context to the selected candidate, blocks both
// sides, positions the new chunk and appends it to the level.
func (g *Generator) commit(level *model.Level, free *model.Context, sel candidate) error {
	if err := free.AlignTo(sel.ctx); err != nil {
		return err
	}
	free.Blocked = true
	sel.ctx.Blocked = true

	sel.chunk.SetPosition(sel.pos)
	if err := level.AddChunk(sel.chunk); err != nil {
		return err
	}
	g.notifyPlaced(level, sel.chunk)
	return nil
}

func (g *Generator) notifyPlaced(level *model.Level, chunk *model.Chunk) {
	frac := level.FillFraction()
	g.cfg.Logger.Info("placed chunk",
		zap.String("chunk", chunk.ID),
		zap.String("tag", chunk.Tag()),
		zap.Float64("x", chunk.Position.X),
		zap.Float64("y", chunk.Position.Y),
		zap.Float64("fill", frac))
	if g.cfg.Progress != nil {
		g.cfg.Progress(frac)
	}
}

// applyPolicies runs the configured post-processing policies in
// registration order against the finished level.
func (g *Generator) applyPolicies(level *model.Level) error {
	for _, p := range g.cfg.Policies {
		if err := p.Apply(&g.cfg, level); err != nil {
			return err
		}
	}
	return nil
}
