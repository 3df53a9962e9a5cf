// Package project handles file-based persistence: chunk library definitions
// and generated level snapshots.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/piwi3910/levelforge/internal/geom"
	"github.com/piwi3910/levelforge/internal/model"
)

// PointDef describes a context or anchor position in a library file.
type PointDef struct {
	Name string  `yaml:"name" json:"name"`
	Tag  string  `yaml:"tag,omitempty" json:"tag,omitempty"`
	X    float64 `yaml:"x" json:"x"`
	Y    float64 `yaml:"y" json:"y"`
	Z    float64 `yaml:"z,omitempty" json:"z,omitempty"`
}

// TemplateDef describes one chunk template in a library file.
type TemplateDef struct {
	Tag      string     `yaml:"tag" json:"tag"`
	Width    float64    `yaml:"width" json:"width"`
	Height   float64    `yaml:"height" json:"height"`
	Depth    float64    `yaml:"depth,omitempty" json:"depth,omitempty"`
	Weight   int        `yaml:"weight,omitempty" json:"weight,omitempty"` // defaults to 1
	Rotate   bool       `yaml:"rotate,omitempty" json:"rotate,omitempty"`
	Contexts []PointDef `yaml:"contexts,omitempty" json:"contexts,omitempty"`
	Anchors  []PointDef `yaml:"anchors,omitempty" json:"anchors,omitempty"`
}

// LibraryFile is the on-disk chunk library format. YAML and JSON are both
// supported, chosen by file extension.
type LibraryFile struct {
	Dim       int           `yaml:"dim" json:"dim"` // 2 or 3, defaults to 2
	Templates []TemplateDef `yaml:"templates" json:"templates"`
}

// DefaultDir returns the directory used for library and level files when
// the caller does not pass explicit paths.
func DefaultDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "levelforge"), nil
}

// LoadLibrary reads a library file and builds the validated chunk library.
// A missing file reads as an empty library, which the emptiness check below
// rejects like any other library without templates.
func LoadLibrary(path string) (*model.ChunkLibrary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return buildLibrary(LibraryFile{})
		}
		return nil, fmt.Errorf("read library: %w", err)
	}

	var file LibraryFile
	if isYAML(path) {
		err = yaml.Unmarshal(raw, &file)
	} else {
		err = json.Unmarshal(raw, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("parse library %s: %w", path, err)
	}
	return buildLibrary(file)
}

// buildLibrary turns the file representation into model templates,
// applying the weight default and running all constructor validation.
func buildLibrary(file LibraryFile) (*model.ChunkLibrary, error) {
	dim := geom.Dim(file.Dim)
	if file.Dim == 0 {
		dim = geom.Dim2
	}

	lib := model.NewChunkLibrary()
	for i, def := range file.Templates {
		weight := def.Weight
		if weight == 0 {
			weight = 1
		}
		size := geom.Size{W: def.Width, H: def.Height, D: def.Depth}

		tpl, err := model.NewChunkTemplate(dim, def.Tag, size, weight, def.Rotate)
		if err != nil {
			return nil, fmt.Errorf("template %d: %w", i, err)
		}
		for _, c := range def.Contexts {
			if err := tpl.AddContext(c.Name, c.Tag, geom.Vec{X: c.X, Y: c.Y, Z: c.Z}); err != nil {
				return nil, fmt.Errorf("template %d context %q: %w", i, c.Name, err)
			}
		}
		for _, a := range def.Anchors {
			if err := tpl.AddAnchor(a.Name, a.Tag, geom.Vec{X: a.X, Y: a.Y, Z: a.Z}); err != nil {
				return nil, fmt.Errorf("template %d anchor %q: %w", i, a.Name, err)
			}
		}
		if err := lib.Add(tpl); err != nil {
			return nil, err
		}
	}

	if lib.Count() == 0 {
		return nil, fmt.Errorf("%w: library file holds no templates", model.ErrInvalidArgument)
	}
	return lib, nil
}

// SaveLibrary writes a chunk library back to disk in the format implied by
// the file extension.
func SaveLibrary(path string, lib *model.ChunkLibrary) error {
	if lib == nil || lib.Count() == 0 {
		return fmt.Errorf("%w: library must not be nil or empty", model.ErrInvalidArgument)
	}

	file := LibraryFile{}
	for _, tpl := range lib.Templates() {
		file.Dim = int(tpl.Dim)
		def := TemplateDef{
			Tag:    tpl.Tag,
			Width:  tpl.Size.W,
			Height: tpl.Size.H,
			Depth:  tpl.Size.D,
			Weight: tpl.Weight,
			Rotate: tpl.AllowRotation,
		}
		for _, c := range tpl.Contexts {
			def.Contexts = append(def.Contexts, PointDef{
				Name: c.Name, Tag: c.Tag, X: c.Position.X, Y: c.Position.Y, Z: c.Position.Z,
			})
		}
		for _, a := range tpl.Anchors {
			def.Anchors = append(def.Anchors, PointDef{
				Name: a.Name, Tag: a.Tag, X: a.Position.X, Y: a.Position.Y, Z: a.Position.Z,
			})
		}
		file.Templates = append(file.Templates, def)
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(file)
	} else {
		data, err = json.MarshalIndent(file, "", "  ")
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
