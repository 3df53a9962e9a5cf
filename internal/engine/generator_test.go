package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/levelforge/internal/geom"
	"github.com/piwi3910/levelforge/internal/model"
	"github.com/piwi3910/levelforge/internal/random"
)

func doorTemplate(t *testing.T, tag string, weight int) *model.ChunkTemplate {
	t.Helper()
	tpl, err := model.NewChunkTemplate(geom.Dim2, tag, geom.Size{W: 2, H: 2}, weight, true)
	require.NoError(t, err)
	require.NoError(t, tpl.AddContext("door", "door", geom.Vec{X: 1, Y: 0}))
	return tpl
}

func doorLibrary(t *testing.T) *model.ChunkLibrary {
	t.Helper()
	lib := model.NewChunkLibrary()
	require.NoError(t, lib.Add(doorTemplate(t, "room", 1)))
	return lib
}

func newLevel2D(t *testing.T, w, h float64) *model.Level {
	t.Helper()
	lvl, err := model.NewLevel(geom.Dim2, geom.Size{W: w, H: h})
	require.NoError(t, err)
	return lvl
}

func TestGenerateLevel_ValidatesArguments(t *testing.T) {
	g := New(Config{})
	lib := doorLibrary(t)
	lvl := newLevel2D(t, 10, 10)
	rng := random.NewSource(1)

	assert.ErrorIs(t, g.GenerateLevel(nil, lvl, rng), model.ErrInvalidArgument)
	assert.ErrorIs(t, g.GenerateLevel(model.NewChunkLibrary(), lvl, rng), model.ErrInvalidArgument)
	assert.ErrorIs(t, g.GenerateLevel(lib, nil, rng), model.ErrInvalidArgument)
	assert.ErrorIs(t, g.GenerateLevel(lib, lvl, nil), model.ErrInvalidArgument)
}

func TestGenerateLevel_RejectsDimensionMismatch(t *testing.T) {
	lib := model.NewChunkLibrary()
	tpl, err := model.NewChunkTemplate(geom.Dim3, "cube", geom.Size{W: 1, H: 1, D: 1}, 1, false)
	require.NoError(t, err)
	require.NoError(t, lib.Add(tpl))

	g := New(Config{})
	err = g.GenerateLevel(lib, newLevel2D(t, 10, 10), random.NewSource(1))
	assert.ErrorIs(t, err, model.ErrDimensionMismatch)
}

func TestGenerateLevel_SingleTemplateScenario(t *testing.T) {
	// Library with one 2x2 template and a single door context in a 10x10
	// level: the generator must place at least one chunk, terminate, and
	// keep everything inside bounds without overlaps.
	g := New(Config{})
	lvl := newLevel2D(t, 10, 10)

	require.NoError(t, g.GenerateLevel(doorLibrary(t), lvl, random.NewSource(7)))
	require.GreaterOrEqual(t, lvl.Count(), 1)

	chunks := lvl.Chunks()
	for _, c := range chunks {
		assert.True(t, lvl.Bounds().Contains(c.Bounds(), geom.Dim2),
			"chunk %s out of bounds", c.ID)
	}
	for i := 0; i < len(chunks); i++ {
		for j := i + 1; j < len(chunks); j++ {
			assert.False(t, chunks[i].Bounds().Intersects(chunks[j].Bounds(), geom.Dim2),
				"chunks %s and %s overlap", chunks[i].ID, chunks[j].ID)
		}
	}

	// Terminal state: nothing left to process.
	assert.Nil(t, FindProcessibleContext(lvl))
}

func TestGenerateLevel_Deterministic(t *testing.T) {
	run := func(seed int64) []geom.Vec {
		lvl := newLevel2D(t, 20, 20)
		require.NoError(t, New(Config{}).GenerateLevel(doorLibrary(t), lvl, random.NewSource(seed)))
		var positions []geom.Vec
		for _, c := range lvl.Chunks() {
			positions = append(positions, c.Position)
		}
		return positions
	}

	assert.Equal(t, run(42), run(42), "same seed must reproduce the same level")
}

func TestGenerateLevel_AlignmentSymmetryAndBlocking(t *testing.T) {
	lvl := newLevel2D(t, 10, 10)
	require.NoError(t, New(Config{}).GenerateLevel(doorLibrary(t), lvl, random.NewSource(3)))

	for _, c := range lvl.Chunks() {
		for _, ctx := range c.Contexts {
			if ctx.Aligned() {
				assert.Same(t, ctx, ctx.Target().Target(), "alignment must be mutual")
				assert.True(t, ctx.Blocked, "aligned contexts are blocked at commit")
			} else {
				assert.True(t, ctx.Blocked, "generation only ends once every context is blocked or aligned")
			}
		}
	}
}

func TestGenerateLevel_TerminationCondition(t *testing.T) {
	g := New(Config{Terminations: []Termination{MaxChunks(3)}})
	lvl := newLevel2D(t, 100, 100)

	require.NoError(t, g.GenerateLevel(doorLibrary(t), lvl, random.NewSource(5)))
	assert.Equal(t, 3, lvl.Count())
}

func TestGenerateLevel_RestrictionBlocksEverything(t *testing.T) {
	g := New(Config{
		Restriction: func(free, candidate *model.Context, level *model.Level) bool {
			return false
		},
	})
	lvl := newLevel2D(t, 10, 10)

	require.NoError(t, g.GenerateLevel(doorLibrary(t), lvl, random.NewSource(5)))

	// Only the seed chunk fits; its context ends up blocked as a dead end.
	require.Equal(t, 1, lvl.Count())
	ctx := lvl.Chunks()[0].Contexts[0]
	assert.True(t, ctx.Blocked)
	assert.False(t, ctx.Aligned())
}

func TestGenerateLevel_CustomWeightSteersSelection(t *testing.T) {
	lib := model.NewChunkLibrary()
	require.NoError(t, lib.Add(doorTemplate(t, "common", 1)))
	require.NoError(t, lib.Add(doorTemplate(t, "rare", 1)))

	// Zero out every candidate except the "rare" template; all non-seed
	// chunks must then come from it.
	g := New(Config{
		Weight: func(free, candidate *model.Context, level *model.Level) int {
			if candidate.Chunk().Tag() == "rare" {
				return 10
			}
			return 0
		},
		Terminations: []Termination{MaxChunks(5)},
	})
	lvl := newLevel2D(t, 100, 100)
	require.NoError(t, g.GenerateLevel(lib, lvl, random.NewSource(11)))

	for _, c := range lvl.Chunks()[1:] {
		assert.Equal(t, "rare", c.Tag())
	}
}

func TestGenerateLevel_ZeroTotalWeightIsInvariantViolation(t *testing.T) {
	g := New(Config{
		Weight: func(free, candidate *model.Context, level *model.Level) int { return 0 },
	})
	lvl := newLevel2D(t, 100, 100)

	err := g.GenerateLevel(doorLibrary(t), lvl, random.NewSource(2))
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestGenerateLevel_ProgressNotifications(t *testing.T) {
	var fractions []float64
	g := New(Config{
		Progress:     func(f float64) { fractions = append(fractions, f) },
		Terminations: []Termination{MaxChunks(4)},
	})
	lvl := newLevel2D(t, 100, 100)

	require.NoError(t, g.GenerateLevel(doorLibrary(t), lvl, random.NewSource(9)))

	require.Len(t, fractions, 4, "one notification per committed chunk")
	for i := 1; i < len(fractions); i++ {
		assert.Greater(t, fractions[i], fractions[i-1], "fill fraction must grow")
	}
	assert.InDelta(t, lvl.FillFraction(), fractions[len(fractions)-1], 1e-9)
}

func TestGenerateLevel_3DSmoke(t *testing.T) {
	lib := model.NewChunkLibrary()
	tpl, err := model.NewChunkTemplate(geom.Dim3, "vault", geom.Size{W: 2, H: 2, D: 2}, 1, true)
	require.NoError(t, err)
	require.NoError(t, tpl.AddContext("door", "door", geom.Vec{X: 1, Y: 1, Z: 0}))
	require.NoError(t, lib.Add(tpl))

	lvl, err := model.NewLevel(geom.Dim3, geom.Size{W: 10, H: 10, D: 10})
	require.NoError(t, err)

	require.NoError(t, New(Config{}).GenerateLevel(lib, lvl, random.NewSource(13)))
	require.GreaterOrEqual(t, lvl.Count(), 1)

	for _, c := range lvl.Chunks() {
		assert.True(t, lvl.Bounds().Contains(c.Bounds(), geom.Dim3))
	}
	assert.Nil(t, FindProcessibleContext(lvl))
}

func TestFindProcessibleContext_OrderAndExhaustion(t *testing.T) {
	lvl := newLevel2D(t, 10, 10)

	tpl := doorTemplate(t, "room", 1)
	a := model.NewChunk(tpl)
	a.SetPosition(geom.Vec{X: 0, Y: 0})
	b := model.NewChunk(tpl)
	b.SetPosition(geom.Vec{X: 5, Y: 5})
	require.NoError(t, lvl.AddChunk(a))
	require.NoError(t, lvl.AddChunk(b))

	// Insertion order wins.
	assert.Same(t, a.Contexts[0], FindProcessibleContext(lvl))

	a.Contexts[0].Blocked = true
	assert.Same(t, b.Contexts[0], FindProcessibleContext(lvl))

	b.Contexts[0].Blocked = true
	assert.Nil(t, FindProcessibleContext(lvl))
}

func TestDrawWeighted_Distribution(t *testing.T) {
	// Effective weights [1, 1, 2] should select roughly 25% / 25% / 50%.
	weights := []int{1, 1, 2}
	rng := random.NewSource(1234)

	const draws = 20000
	counts := make([]int, 3)
	for i := 0; i < draws; i++ {
		counts[drawWeighted(weights, 4, rng)]++
	}

	assert.InDelta(t, 0.25, float64(counts[0])/draws, 0.02)
	assert.InDelta(t, 0.25, float64(counts[1])/draws, 0.02)
	assert.InDelta(t, 0.50, float64(counts[2])/draws, 0.02)
}
