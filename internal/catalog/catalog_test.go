package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTestCatalog(t *testing.T, doc string, files ...string) string {
	t.Helper()
	dir := t.TempDir()

	for _, name := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	path := filepath.Join(dir, "targets.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

const validDoc = `{
	"categories": {
		"art": [
			{"mode": "art_1", "name": "Mona Lisa", "filepath": "targets/mona.png"},
			{"mode": "art_2", "name": "Girl with a Pearl Earring", "filepath": "targets/pearl.png"}
		],
		"movies": [
			{"mode": "mov_1", "name": "Neo", "filepath": "targets/neo.png"}
		]
	},
	"collages": {
		"art": "collages/art.png",
		"movies": "collages/movies.png"
	}
}`

var validFiles = []string{
	"targets/mona.png", "targets/pearl.png", "targets/neo.png",
	"collages/art.png", "collages/movies.png",
}

func TestLoad(t *testing.T) {
	t.Run("valid document round-trips names and counts in order", func(t *testing.T) {
		c, err := Load(writeTestCatalog(t, validDoc, validFiles...))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}

		got := c.Categories()
		if len(got) != 2 {
			t.Fatalf("got %d categories, want 2", len(got))
		}
		if got[0].Name != "art" || got[1].Name != "movies" {
			t.Errorf("got order %q, %q; want art, movies", got[0].Name, got[1].Name)
		}
		if got[0].Targets != 2 || got[1].Targets != 1 {
			t.Errorf("got target counts %d, %d; want 2, 1", got[0].Targets, got[1].Targets)
		}
		if got[0].Collage == "" {
			t.Error("expected collage path to be set")
		}
	})

	t.Run("missing target file fails", func(t *testing.T) {
		files := []string{"targets/mona.png", "targets/pearl.png", "collages/art.png", "collages/movies.png"}
		if _, err := Load(writeTestCatalog(t, validDoc, files...)); err == nil {
			t.Error("expected load to fail on missing target file")
		}
	})

	t.Run("missing collage fails", func(t *testing.T) {
		doc := `{
			"categories": {"art": [{"mode": "art_1", "name": "Mona Lisa", "filepath": "targets/mona.png"}]},
			"collages": {}
		}`
		if _, err := Load(writeTestCatalog(t, doc, "targets/mona.png")); err == nil {
			t.Error("expected load to fail on missing collage")
		}
	})

	t.Run("empty category fails", func(t *testing.T) {
		doc := `{
			"categories": {"art": []},
			"collages": {"art": "collages/art.png"}
		}`
		if _, err := Load(writeTestCatalog(t, doc, "collages/art.png")); err == nil {
			t.Error("expected load to fail on category with zero targets")
		}
	})

	t.Run("duplicate mode within a category fails", func(t *testing.T) {
		doc := `{
			"categories": {
				"art": [
					{"mode": "art_1", "name": "Mona Lisa", "filepath": "targets/mona.png"},
					{"mode": "art_1", "name": "Copy", "filepath": "targets/pearl.png"}
				]
			},
			"collages": {"art": "collages/art.png"}
		}`
		files := []string{"targets/mona.png", "targets/pearl.png", "collages/art.png"}
		if _, err := Load(writeTestCatalog(t, doc, files...)); err == nil {
			t.Error("expected load to fail on duplicate mode")
		}
	})

	t.Run("malformed document fails", func(t *testing.T) {
		if _, err := Load(writeTestCatalog(t, `{"categories": 42}`)); err == nil {
			t.Error("expected load to fail on malformed document")
		}
	})
}

func TestResolveTarget(t *testing.T) {
	c, err := Load(writeTestCatalog(t, validDoc, validFiles...))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	t.Run("resolves by mode", func(t *testing.T) {
		target, err := c.ResolveTarget("art", "art_2")
		if err != nil {
			t.Fatalf("ResolveTarget: %v", err)
		}
		if target.Name != "Girl with a Pearl Earring" {
			t.Errorf("got target %q, want Girl with a Pearl Earring", target.Name)
		}
	})

	t.Run("empty mode selects the first target", func(t *testing.T) {
		target, err := c.ResolveTarget("art", "")
		if err != nil {
			t.Fatalf("ResolveTarget: %v", err)
		}
		if target.Mode != "art_1" {
			t.Errorf("got mode %q, want art_1", target.Mode)
		}
	})

	t.Run("unknown category never falls back", func(t *testing.T) {
		_, err := c.ResolveTarget("animals", "")
		if !errors.Is(err, ErrUnknownCategory) {
			t.Errorf("got %v, want ErrUnknownCategory", err)
		}
	})

	t.Run("unknown mode fails", func(t *testing.T) {
		_, err := c.ResolveTarget("art", "art_99")
		if !errors.Is(err, ErrTargetNotFound) {
			t.Errorf("got %v, want ErrTargetNotFound", err)
		}
	})
}
