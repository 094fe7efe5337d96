// Package mapdoc turns map sources (ASCII mazes and JSON documents) into
// models.GameMap values.
package mapdoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"burrow/server/models"
)

var glyphs = map[rune]int{
	'.': models.TileFloor,
	'#': models.TileWall,
	'+': models.TileDoor,
	'~': models.TileWater,
	',': models.TileGrass,
	'T': models.TileTree,
	'<': models.TileStairsUp,
	'>': models.TileStairsDown,
	'_': models.TileSand,
	'=': models.TilePavement,
	'*': models.TileSnow,
	'L': models.TileLava,
	'^': models.TileAsh,
	'Y': models.TileCactus,
	'-': models.TileIce,
}

var tileGlyphs = func() map[int]rune {
	out := make(map[int]rune, len(glyphs))
	for r, t := range glyphs {
		out[t] = r
	}
	return out
}()

// Glyph returns the ASCII character used for a tile.
func Glyph(tile int) rune {
	if r, ok := tileGlyphs[tile]; ok {
		return r
	}
	return '?'
}

// ParseASCII reads one character per cell. Rows run top to bottom (y grows
// downward) and a blank line starts the next z level.
func ParseASCII(name, text string) (*models.GameMap, error) {
	var levels [][][]int
	var cur [][]int
	flush := func() {
		if len(cur) > 0 {
			levels = append(levels, cur)
			cur = nil
		}
	}
	for i, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			flush()
			continue
		}
		row := make([]int, 0, len(line))
		for col, r := range line {
			tile, ok := glyphs[r]
			if !ok {
				return nil, fmt.Errorf("%s:%d:%d: unknown glyph %q", name, i+1, col+1, r)
			}
			row = append(row, tile)
		}
		cur = append(cur, row)
	}
	flush()
	if len(levels) == 0 {
		return nil, fmt.Errorf("%s: empty map", name)
	}

	m := &models.GameMap{
		Name:   name,
		Width:  len(levels[0][0]),
		Height: len(levels[0]),
		Depth:  len(levels),
		Tiles:  levels,
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return m, nil
}

// FormatASCII renders a map back into the ASCII form ParseASCII reads.
func FormatASCII(m *models.GameMap) string {
	var b strings.Builder
	for z, level := range m.Tiles {
		if z > 0 {
			b.WriteByte('\n')
		}
		for _, row := range level {
			for _, t := range row {
				b.WriteRune(Glyph(t))
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

const mapSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "width", "height", "tiles"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "width": {"type": "integer", "minimum": 1},
    "height": {"type": "integer", "minimum": 1},
    "depth": {"type": "integer", "minimum": 1},
    "periodic": {"type": "boolean"},
    "tiles": {
      "type": "array", "minItems": 1,
      "items": {"type": "array", "items": {"type": "array", "items": {"type": "integer", "minimum": 0, "maximum": 14}}}
    },
    "heights": {
      "type": "array",
      "items": {"type": "array", "items": {"type": "array", "items": {"type": "number"}}}
    }
  },
  "additionalProperties": false
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("map.schema.json", mapSchema)
	})
	return schema, schemaErr
}

// ParseJSON validates a JSON map document against the map schema and decodes it.
func ParseJSON(data []byte) (*models.GameMap, error) {
	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile map schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode map document: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("validate map document: %w", err)
	}

	var m models.GameMap
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode map document: %w", err)
	}
	if m.Depth == 0 {
		m.Depth = len(m.Tiles)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("map %q: %w", m.Name, err)
	}
	return &m, nil
}

// LoadFile picks the parser by extension: .json documents or ASCII text.
func LoadFile(path string) (*models.GameMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(raw)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ParseASCII(name, string(raw))
}
