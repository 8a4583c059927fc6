// Package asset is the module-scoped asset pipeline. Each asset kind has a
// Producer holding the file formats currently installed for it; the Manager
// loads every asset of the current module environment through them.
package asset

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/specialistvlad/modenv/internal/urn"
)

// Kind names an asset type, e.g. "prefab".
type Kind string

// Resolver loads other assets of the same kind while one is being loaded.
type Resolver interface {
	Resolve(ctx context.Context, id urn.URN) (any, error)
}

// Format turns a file into an asset.
type Format interface {
	Name() string
	// Extension is the file name suffix the format reads, e.g. ".prefab".
	Extension() string
	Load(ctx context.Context, id urn.URN, data []byte, deps Resolver) (any, error)
}

// DeltaFormat modifies an asset another module provides.
type DeltaFormat interface {
	Name() string
	Extension() string
	Apply(ctx context.Context, id urn.URN, base any, data []byte) (any, error)
}

// Producer holds the formats installed for one asset kind. Formats are
// identified by instance: removing a format only removes that instance.
type Producer struct {
	kind Kind

	mu      sync.RWMutex
	formats []Format
	deltas  []DeltaFormat
}

// NewProducer creates a producer with no formats.
func NewProducer(kind Kind) *Producer {
	return &Producer{kind: kind}
}

// Kind returns the asset kind the producer serves.
func (p *Producer) Kind() Kind {
	return p.kind
}

// AddFormat installs f. Adding an installed instance again is a no-op.
func (p *Producer) AddFormat(f Format) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !slices.Contains(p.formats, f) {
		p.formats = append(p.formats, f)
	}
}

// RemoveFormat uninstalls f and reports whether it was installed.
func (p *Producer) RemoveFormat(f Format) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.Index(p.formats, f)
	if i < 0 {
		return false
	}
	p.formats = slices.Delete(p.formats, i, i+1)
	return true
}

// AddDeltaFormat installs f. Adding an installed instance again is a no-op.
func (p *Producer) AddDeltaFormat(f DeltaFormat) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !slices.Contains(p.deltas, f) {
		p.deltas = append(p.deltas, f)
	}
}

// RemoveDeltaFormat uninstalls f and reports whether it was installed.
func (p *Producer) RemoveDeltaFormat(f DeltaFormat) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.Index(p.deltas, f)
	if i < 0 {
		return false
	}
	p.deltas = slices.Delete(p.deltas, i, i+1)
	return true
}

// Formats returns the installed formats in installation order.
func (p *Producer) Formats() []Format {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.formats)
}

// DeltaFormats returns the installed delta formats in installation order.
func (p *Producer) DeltaFormats() []DeltaFormat {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.deltas)
}

// formatFor returns the first installed format reading name.
func (p *Producer) formatFor(name string) (Format, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, f := range p.formats {
		if strings.HasSuffix(name, f.Extension()) {
			return f, true
		}
	}
	return nil, false
}

// deltaFormatFor returns the first installed delta format reading name.
func (p *Producer) deltaFormatFor(name string) (DeltaFormat, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, f := range p.deltas {
		if strings.HasSuffix(name, f.Extension()) {
			return f, true
		}
	}
	return nil, false
}
