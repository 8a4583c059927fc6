package module

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/modenv/internal/ctxlog"
)

const (
	// ManifestFilename is the name of the manifest file in a module directory.
	ManifestFilename = "module.hcl"
	// AssetsDir is the directory, relative to the module directory, holding its assets.
	AssetsDir = "assets"
)

// ErrInvalidManifest is wrapped by manifest parse and validation errors.
var ErrInvalidManifest = errors.New("module: invalid manifest")

type manifestFile struct {
	Module Manifest `hcl:"module,block"`
	Remain hcl.Body `hcl:",remain"`
}

// ParseManifest decodes a module.hcl document.
func ParseManifest(src []byte, filename string) (*Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, filename, diags)
	}

	var mf manifestFile
	if diags := gohcl.DecodeBody(file.Body, nil, &mf); diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, filename, diags)
	}
	if mf.Module.ID == "" {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, filename, ErrMissingID)
	}
	return &mf.Module, nil
}

// LoadManifest reads and decodes a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return ParseManifest(src, path)
}

// Discovered is a module directory found on disk.
type Discovered struct {
	Dir      string
	Manifest Manifest
}

// Discover finds module directories directly under root. A directory is a
// module if it contains a module.hcl file. Results are sorted by module ID.
func Discover(ctx context.Context, root string) ([]Discovered, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Discovering modules.", "path", root)

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read modules directory %s: %w", root, err)
	}

	var found []Discovered
	seen := make(map[string]string)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		manifestPath := filepath.Join(dir, ManifestFilename)
		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}

		manifest, err := LoadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[manifest.ID]; dup {
			return nil, fmt.Errorf("%w: %q in %s and %s", ErrDuplicateModule, manifest.ID, prev, dir)
		}
		seen[manifest.ID] = dir
		found = append(found, Discovered{Dir: dir, Manifest: *manifest})
		logger.Debug("Found module manifest.", "module", manifest.ID, "dir", dir)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Manifest.ID < found[j].Manifest.ID })
	logger.Info("Module discovery complete.", "found", len(found))
	return found, nil
}

// Assemble loads every discovered module, pairing it with the compiled-in
// provider of the same ID, and resolves the result into a Set. A manifest
// without a provider becomes an asset-only module.
func Assemble(ctx context.Context, found []Discovered, providers map[string]Provider) (*Set, error) {
	logger := ctxlog.FromContext(ctx)

	mods := make([]*Module, 0, len(found))
	for _, d := range found {
		provider, ok := providers[d.Manifest.ID]
		if !ok {
			logger.Debug("No Go provider for module, loading assets only.", "module", d.Manifest.ID)
		}

		var assets = os.DirFS(filepath.Join(d.Dir, AssetsDir))
		if info, err := os.Stat(filepath.Join(d.Dir, AssetsDir)); err != nil || !info.IsDir() {
			assets = nil
		}

		m, err := New(d.Manifest, provider, assets)
		if err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}

	for id := range providers {
		if !containsID(found, id) {
			logger.Debug("Compiled-in module has no manifest and is not loaded.", "module", id)
		}
	}

	return NewSet(mods...)
}

func containsID(found []Discovered, id string) bool {
	for _, d := range found {
		if d.Manifest.ID == id {
			return true
		}
	}
	return false
}
