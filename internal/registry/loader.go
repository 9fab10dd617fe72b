// Package registry builds the set of models the server can load, from a
// directory scan and from explicit config entries.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"llamabind/internal/binding"
	"llamabind/internal/common/fsutil"
	"llamabind/internal/config"
	"llamabind/pkg/types"
)

// Entry is a model together with the binding configuration used to load it.
type Entry struct {
	types.Model
	Config binding.Config
}

// LoadDir scans a directory for *.gguf files and builds a registry from filenames.
// ID is the full filename (including extension); Path is the absolute file path.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		m := types.Model{ID: name, Name: name, Path: filepath.Join(abs, name)}
		if fi, err := e.Info(); err == nil {
			m.SizeBytes = fi.Size()
		}
		models = append(models, m)
	}
	return models, nil
}

// Build merges the models found in dir (if set) with explicit entries.
// An entry whose ID matches a discovered file overrides its load settings
// and inherits its path when no model path is given. Relative model paths
// are resolved against dir. The result is sorted by ID.
func Build(dir string, entries []config.ModelEntry) ([]Entry, error) {
	byID := make(map[string]Entry)
	var base string
	if dir != "" {
		found, err := LoadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, m := range found {
			byID[m.ID] = Entry{Model: m, Config: binding.Config{Model: m.Path}}
		}
		if b, err := fsutil.ExpandHome(dir); err == nil {
			base, _ = filepath.Abs(b)
		}
	}
	for _, me := range entries {
		cfg := me.Config.Clone()
		prev, discovered := byID[me.ID]
		path := strings.TrimSpace(cfg.Model)
		switch {
		case path == "" && discovered:
			path = prev.Path
		case path == "":
			return nil, fmt.Errorf("model %q: no model path and no file %q in models_dir", me.ID, me.ID)
		default:
			p, err := fsutil.ResolvePath(path, base)
			if err != nil {
				return nil, err
			}
			path = p
		}
		cfg.Model = path
		m := types.Model{ID: me.ID, Name: me.ID, Path: path}
		if fi, err := os.Stat(path); err == nil {
			m.SizeBytes = fi.Size()
		}
		byID[me.ID] = Entry{Model: m, Config: cfg}
	}
	out := make([]Entry, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Models projects entries to their public model descriptions.
func Models(entries []Entry) []types.Model {
	out := make([]types.Model, len(entries))
	for i, e := range entries {
		out[i] = e.Model
	}
	return out
}
