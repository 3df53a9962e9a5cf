// LevelForge - procedural chunk-based level generator
//
// Generates 2D and 3D game levels by placing chunk templates from a library,
// aligning their contexts until the level is saturated, then running the
// configured post-processing policies.
//
// Build:
//   go build -o levelforge ./cmd/levelforge

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/piwi3910/levelforge/internal/config"
	"github.com/piwi3910/levelforge/internal/engine"
	"github.com/piwi3910/levelforge/internal/export"
	"github.com/piwi3910/levelforge/internal/geom"
	"github.com/piwi3910/levelforge/internal/importer"
	"github.com/piwi3910/levelforge/internal/model"
	"github.com/piwi3910/levelforge/internal/project"
	"github.com/piwi3910/levelforge/internal/random"
	"github.com/piwi3910/levelforge/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// generate flags
	libraryPath string
	seedFlag    int64
	outPath     string

	// runs / import flags
	storePath string
	importOut string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "levelforge",
	Short: "LevelForge - procedural chunk-based level generator",
	Long: `LevelForge generates game levels by repeatedly placing chunk templates
from a library and aligning their contexts, then post-processing the result
with alignment and discard policies.

Levels, libraries and run archives are plain files, so the tool fits into
build pipelines as easily as interactive use.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a level from a chunk library",
	Long: `Generates a level using the settings file (or defaults), placing chunks
until every context is blocked or aligned or a termination condition fires.

Optional exports (PDF layout, anchor labels, Excel manifest) and the SQLite
run archive are driven by the settings file.`,
	RunE: runGenerate,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived generation runs",
	RunE:  runListRuns,
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import chunk templates from CSV, Excel or DXF into a library file",
	Long: `Reads chunk template definitions from a CSV or Excel sheet (tag, width,
height, optional depth, weight and rotation columns) or from closed shapes in
a DXF drawing, and writes them as a library file. Imported templates get a
door context at the midpoint of each face.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	generateCmd.Flags().StringVarP(&configPath, "config", "c", "", "settings file (YAML)")
	generateCmd.Flags().StringVarP(&libraryPath, "library", "l", "", "chunk library file (overrides settings)")
	generateCmd.Flags().Int64VarP(&seedFlag, "seed", "s", 0, "random seed (overrides settings)")
	generateCmd.Flags().StringVarP(&outPath, "out", "o", "", "write the level snapshot JSON to this path")

	runsCmd.Flags().StringVar(&storePath, "store", "", "run archive database path")

	importCmd.Flags().StringVarP(&importOut, "out", "o", "", "library file to write (default <input>.yaml)")

	rootCmd.AddCommand(generateCmd, runsCmd, importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadSettings() (config.Settings, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.Default(), nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if libraryPath != "" {
		settings.Library = libraryPath
	}
	if cmd.Flags().Changed("seed") {
		settings.Seed = seedFlag
	}
	if settings.Library == "" {
		return fmt.Errorf("%w: no chunk library given (set library in the settings file or pass --library)",
			model.ErrInvalidArgument)
	}

	lib, err := project.LoadLibrary(settings.Library)
	if err != nil {
		return err
	}

	dim, size := settings.Level.Dim, settings.Level.Size()
	level, err := model.NewLevel(geom.Dim(dim), size)
	if err != nil {
		return err
	}

	logger.Info("generating level",
		zap.Int64("seed", settings.Seed),
		zap.Int("dim", dim),
		zap.Int("templates", lib.Count()))

	gen := engine.New(engine.Config{
		Terminations: settings.BuildTerminations(),
		Policies:     settings.BuildPolicies(),
		Logger:       logger,
	})
	if err := gen.GenerateLevel(lib, level, random.NewSource(settings.Seed)); err != nil {
		return err
	}

	logger.Info("generation complete",
		zap.Int("chunks", level.Count()),
		zap.Float64("fill", level.FillFraction()))

	if outPath != "" {
		if err := project.SaveLevel(outPath, level); err != nil {
			return err
		}
		logger.Info("wrote level snapshot", zap.String("path", outPath))
	}

	if err := runExports(settings, level); err != nil {
		return err
	}

	if settings.Store != "" {
		archive, err := store.Open(settings.Store)
		if err != nil {
			return err
		}
		defer archive.Close()

		run := store.NewRun(level, settings.Seed, store.HashLibrary(lib))
		if err := archive.SaveRun(cmd.Context(), run); err != nil {
			return err
		}
		logger.Info("archived run", zap.String("run", run.ID), zap.String("store", settings.Store))
	}

	fmt.Printf("Placed %d chunks (%.1f%% fill)\n", level.Count(), level.FillFraction()*100)
	return nil
}

func runExports(settings config.Settings, level *model.Level) error {
	if settings.Exports.PDF != "" {
		if err := export.ExportPDF(settings.Exports.PDF, level, settings.Seed); err != nil {
			return fmt.Errorf("pdf export: %w", err)
		}
		logger.Info("wrote layout PDF", zap.String("path", settings.Exports.PDF))
	}
	if settings.Exports.Labels != "" {
		if err := export.ExportLabels(settings.Exports.Labels, level); err != nil {
			return fmt.Errorf("label export: %w", err)
		}
		logger.Info("wrote anchor labels", zap.String("path", settings.Exports.Labels))
	}
	if settings.Exports.Manifest != "" {
		if err := export.ExportManifest(settings.Exports.Manifest, level); err != nil {
			return fmt.Errorf("manifest export: %w", err)
		}
		logger.Info("wrote placement manifest", zap.String("path", settings.Exports.Manifest))
	}
	return nil
}

func runListRuns(cmd *cobra.Command, args []string) error {
	path := storePath
	if path == "" {
		dir, err := project.DefaultDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "runs.db")
	}

	archive, err := store.Open(path)
	if err != nil {
		return err
	}
	defer archive.Close()

	summaries, err := archive.ListRuns(context.Background())
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No archived runs.")
		return nil
	}

	fmt.Printf("%-10s %-20s %-12s %-10s %-4s %-7s %s\n", "ID", "CREATED", "SEED", "LIBRARY", "DIM", "CHUNKS", "TEMPLATES")
	for _, s := range summaries {
		fmt.Printf("%-10s %-20s %-12d %-10s %-4d %-7d %d\n",
			s.ID, s.CreatedAt.Format("2006-01-02 15:04:05"), s.Seed, shortHash(s.LibraryHash),
			s.Dim, s.Chunks, s.ChunkKind)
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

func runImport(cmd *cobra.Command, args []string) error {
	src := args[0]

	var result importer.ImportResult
	switch strings.ToLower(filepath.Ext(src)) {
	case ".csv":
		result = importer.ImportCSV(src)
	case ".xlsx":
		result = importer.ImportExcel(src)
	case ".dxf":
		result = importer.ImportDXF(src)
	default:
		return fmt.Errorf("%w: unsupported import format %q", model.ErrInvalidArgument, filepath.Ext(src))
	}

	for _, w := range result.Warnings {
		logger.Warn(w)
	}
	for _, e := range result.Errors {
		logger.Error(e)
	}
	if len(result.Templates) == 0 {
		return fmt.Errorf("no templates imported from %s", src)
	}

	lib := model.NewChunkLibrary()
	for _, tpl := range result.Templates {
		if err := lib.Add(tpl); err != nil {
			return err
		}
	}

	dst := importOut
	if dst == "" {
		dst = strings.TrimSuffix(src, filepath.Ext(src)) + ".yaml"
	}
	if err := project.SaveLibrary(dst, lib); err != nil {
		return err
	}

	fmt.Printf("Imported %d templates into %s (%d errors, %d warnings)\n",
		len(result.Templates), dst, len(result.Errors), len(result.Warnings))
	return nil
}
