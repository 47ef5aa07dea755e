package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownCategory = errors.New("catalog: unknown category")
	ErrTargetNotFound  = errors.New("catalog: target not found")
)

// TargetImage is a single reference face a user's face can be swapped onto.
// Mode is the selection key the chat front-end sends back; it is unique
// within a category.
type TargetImage struct {
	Mode     string `json:"mode"`
	Name     string `json:"name"`
	Filepath string `json:"filepath"`
}

// Category is an ordered set of target images plus one collage preview.
type Category struct {
	Name    string
	Targets []TargetImage
	Collage string
}

// Summary is the presentation view of a category.
type Summary struct {
	Name    string `json:"name"`
	Collage string `json:"collage"`
	Targets int    `json:"targets"`
}

// Catalog indexes categories by name while preserving document order.
// It is built once at startup and read-only afterwards, so concurrent
// reads need no locking.
type Catalog struct {
	categories map[string]*Category
	order      []string
}

type document struct {
	Categories json.RawMessage   `json:"categories"`
	Collages   map[string]string `json:"collages"`
}

// Load reads and validates a catalog document. It fails on a malformed
// document, a category with zero targets, a duplicate target mode within one
// category, a category without a collage, and any referenced file that does
// not exist. Relative file paths are resolved against the document directory.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	if len(doc.Categories) == 0 {
		return nil, fmt.Errorf("catalog: %s has no categories section", path)
	}

	names, targetsByName, err := decodeOrderedCategories(doc.Categories)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("catalog: %s defines no categories", path)
	}

	baseDir := filepath.Dir(path)
	c := &Catalog{
		categories: make(map[string]*Category, len(names)),
		order:      names,
	}

	for _, name := range names {
		targets := targetsByName[name]
		if len(targets) == 0 {
			return nil, fmt.Errorf("catalog: category %q has no targets", name)
		}

		seen := make(map[string]struct{}, len(targets))
		for i := range targets {
			t := &targets[i]
			if t.Mode == "" {
				return nil, fmt.Errorf("catalog: category %q target %q has an empty mode", name, t.Name)
			}
			if _, dup := seen[t.Mode]; dup {
				return nil, fmt.Errorf("catalog: category %q has duplicate mode %q", name, t.Mode)
			}
			seen[t.Mode] = struct{}{}

			t.Filepath = resolvePath(baseDir, t.Filepath)
			if err := statFile(t.Filepath); err != nil {
				return nil, fmt.Errorf("catalog: category %q target %q: %w", name, t.Name, err)
			}
		}

		collage, ok := doc.Collages[name]
		if !ok || collage == "" {
			return nil, fmt.Errorf("catalog: category %q has no collage", name)
		}
		collage = resolvePath(baseDir, collage)
		if err := statFile(collage); err != nil {
			return nil, fmt.Errorf("catalog: category %q collage: %w", name, err)
		}

		c.categories[name] = &Category{
			Name:    name,
			Targets: targets,
			Collage: collage,
		}
	}

	for name := range doc.Collages {
		if _, ok := c.categories[name]; !ok {
			log.Warn().Str("category", name).Msg("Collage references a category that does not exist")
		}
	}

	log.Info().
		Int("categories", len(c.order)).
		Str("path", path).
		Msg("Target catalog loaded")

	return c, nil
}

// decodeOrderedCategories walks the categories object token by token so the
// document's key order survives decoding.
func decodeOrderedCategories(raw json.RawMessage) ([]string, map[string][]TargetImage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("categories section is not an object")
	}

	var names []string
	targets := make(map[string][]TargetImage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v in categories section", tok)
		}

		var list []TargetImage
		if err := dec.Decode(&list); err != nil {
			return nil, nil, fmt.Errorf("category %q: %w", name, err)
		}

		names = append(names, name)
		targets[name] = list
	}

	return names, targets, nil
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func statFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("missing file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	return nil
}

// GetCategory returns a category by name.
func (c *Catalog) GetCategory(name string) (*Category, error) {
	cat, ok := c.categories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	return cat, nil
}

// ResolveTarget returns the target with the given mode inside a category.
// An empty mode selects the category's first target.
func (c *Catalog) ResolveTarget(category, mode string) (TargetImage, error) {
	cat, err := c.GetCategory(category)
	if err != nil {
		return TargetImage{}, err
	}

	if mode == "" {
		return cat.Targets[0], nil
	}

	for _, t := range cat.Targets {
		if t.Mode == mode {
			return t, nil
		}
	}

	return TargetImage{}, fmt.Errorf("%w: mode %q in category %q", ErrTargetNotFound, mode, category)
}

// Categories lists all categories in document order.
func (c *Catalog) Categories() []Summary {
	out := make([]Summary, 0, len(c.order))
	for _, name := range c.order {
		cat := c.categories[name]
		out = append(out, Summary{
			Name:    cat.Name,
			Collage: cat.Collage,
			Targets: len(cat.Targets),
		})
	}
	return out
}
