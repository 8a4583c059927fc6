package prefab

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/modenv/internal/asset"
	"github.com/specialistvlad/modenv/internal/ctxlog"
	"github.com/specialistvlad/modenv/internal/record"
	"github.com/specialistvlad/modenv/internal/urn"
	"github.com/zclconf/go-cty/cty"
)

// hclPrefabFile is the top-level structure of a prefab file.
type hclPrefabFile struct {
	Parent     *string         `hcl:"parent,optional"`
	Components []*hclComponent `hcl:"component,block"`
}

// hclDeltaFile is the top-level structure of a prefab delta file.
type hclDeltaFile struct {
	Remove     []string        `hcl:"remove,optional"`
	Components []*hclComponent `hcl:"component,block"`
}

type hclComponent struct {
	Type string   `hcl:"type,label"`
	Body hcl.Body `hcl:",remain"`
}

// Format reads prefab files, decoding components through one generation's
// record registry.
type Format struct {
	records *record.Library
}

// NewFormat creates a format bound to records.
func NewFormat(records *record.Library) *Format {
	return &Format{records: records}
}

func (f *Format) Name() string      { return "prefab" }
func (f *Format) Extension() string { return Extension }

// Records returns the registry the format decodes with.
func (f *Format) Records() *record.Library {
	return f.records
}

// Load implements asset.Format. A parent is named by "module:name" or by a
// name in the loading module.
func (f *Format) Load(ctx context.Context, id urn.URN, data []byte, deps asset.Resolver) (any, error) {
	var file hclPrefabFile
	if err := decodeFile(data, id, &file); err != nil {
		return nil, err
	}

	p := newPrefab(id)
	if file.Parent != nil {
		parentID, err := resolveName(id, *file.Parent)
		if err != nil {
			return nil, err
		}
		dep, err := deps.Resolve(ctx, parentID)
		if err != nil {
			return nil, fmt.Errorf("parent %s of prefab %s: %w", parentID, id, err)
		}
		parent, ok := dep.(*Prefab)
		if !ok {
			return nil, fmt.Errorf("parent %s of prefab %s is a %T", parentID, id, dep)
		}
		p.Parent = parent.URN
		inherit(ctx, f.records, p, parent)
	}

	if err := applyComponents(f.records, id, p, file.Components); err != nil {
		return nil, err
	}
	return p, nil
}

// DeltaFormat reads prefab delta files.
type DeltaFormat struct {
	records *record.Library
}

// NewDeltaFormat creates a delta format bound to records.
func NewDeltaFormat(records *record.Library) *DeltaFormat {
	return &DeltaFormat{records: records}
}

func (f *DeltaFormat) Name() string      { return "prefab-delta" }
func (f *DeltaFormat) Extension() string { return Extension }

// Records returns the registry the format decodes with.
func (f *DeltaFormat) Records() *record.Library {
	return f.records
}

// Apply implements asset.DeltaFormat. The base prefab is left unchanged.
func (f *DeltaFormat) Apply(ctx context.Context, id urn.URN, base any, data []byte) (any, error) {
	orig, ok := base.(*Prefab)
	if !ok {
		return nil, fmt.Errorf("delta for %s applied to %T", id, base)
	}
	var file hclDeltaFile
	if err := decodeFile(data, id, &file); err != nil {
		return nil, err
	}

	p := newPrefab(orig.URN)
	p.Parent = orig.Parent
	inherit(ctx, f.records, p, orig)
	for _, name := range file.Remove {
		meta, err := resolveComponent(f.records, id, name)
		if err != nil {
			return nil, err
		}
		p.remove(meta.URN)
	}
	if err := applyComponents(f.records, id, p, file.Components); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeFile(data []byte, id urn.URN, into any) error {
	parser := hclparse.NewParser()
	filename := id.String() + Extension
	hclFile, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse %s: %w", filename, diags)
	}
	if diags := gohcl.DecodeBody(hclFile.Body, nil, into); diags.HasErrors() {
		return fmt.Errorf("failed to decode %s: %w", filename, diags)
	}
	return nil
}

// inherit copies the components of parent into p. Components that cannot
// be copied are shared.
func inherit(ctx context.Context, records *record.Library, p, parent *Prefab) {
	for _, e := range parent.components {
		v := e.value
		if meta, ok := records.Components().Metadata(e.id); ok {
			if copied, ok := meta.Copy(v); ok {
				v = copied
			}
		} else {
			ctxlog.FromContext(ctx).Debug("Inherited component is not registered in this generation.", "prefab", p.URN.String(), "component", e.id.String())
		}
		p.set(e.id, v)
	}
}

func applyComponents(records *record.Library, id urn.URN, p *Prefab, blocks []*hclComponent) error {
	seen := make(map[urn.URN]bool, len(blocks))
	for _, b := range blocks {
		meta, err := resolveComponent(records, id, b.Type)
		if err != nil {
			return err
		}
		if seen[meta.URN.Key()] {
			return fmt.Errorf("prefab %s: duplicate component %q", id, b.Type)
		}
		seen[meta.URN.Key()] = true

		v, err := attributes(b.Body)
		if err != nil {
			return fmt.Errorf("prefab %s component %s: %w", id, meta.URN, err)
		}
		current, _ := p.Component(meta.URN)
		value, err := meta.Overlay(current, v)
		if err != nil {
			return fmt.Errorf("prefab %s: %w", id, err)
		}
		p.set(meta.URN, value)
	}
	return nil
}

// attributes evaluates the attributes of a component block into an object.
func attributes(body hcl.Body) (cty.Value, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	if len(attrs) == 0 {
		return cty.EmptyObjectVal, nil
	}
	vals := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return cty.NilVal, diags
		}
		vals[name] = v
	}
	return cty.ObjectVal(vals), nil
}

// resolveComponent looks a component name up in the loading module first,
// then across modules.
func resolveComponent(records *record.Library, id urn.URN, name string) (*record.Metadata, error) {
	if records == nil {
		return nil, fmt.Errorf("prefab %s: no record registry", id)
	}
	if local, err := urn.Parse(name); err != nil {
		if meta, ok := records.Components().Metadata(urn.New(id.Module, name)); ok {
			return meta, nil
		}
	} else if meta, ok := records.Components().Metadata(local); ok {
		return meta, nil
	}
	meta, err := records.Components().Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("prefab %s: %w", id, err)
	}
	return meta, nil
}

func resolveName(id urn.URN, name string) (urn.URN, error) {
	if parsed, err := urn.Parse(name); err == nil {
		return parsed, nil
	}
	if name == "" {
		return urn.URN{}, fmt.Errorf("prefab %s: empty parent name", id)
	}
	return urn.New(id.Module, name), nil
}
