// Package method defines the drawing-method contract: a pluggable strategy
// that turns high-level parameters into a canonical path.
//
// The core never inspects which strategy produced a path; it depends only on
// the [Method] interface. Concrete strategies live in subpackages (lines,
// hatch, stipple, vector) and are listed by pkg/method/builtin, which exists
// to break import cycles the same way language packages are listed separately
// from their contract.
//
// Parameters are opaque to the core: a [Params] map is passed through to the
// method unvalidated, and each method documents the keys it recognizes.
// Method failures surface as DRAWING_METHOD errors before any device I/O.
package method

import (
	"context"
	"sort"

	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/path"
)

// Method is the capability contract every drawing strategy implements.
type Method interface {
	// Name returns the stable identifier used on the CLI and API
	// (e.g. "lines", "hatch").
	Name() string

	// Info returns a one-line human-readable description.
	Info() string

	// Produce generates the canonical path for the given parameters.
	// Implementations must respect context cancellation for long-running
	// generation and return ctx.Err() when cancelled.
	//
	// Errors abort job creation before any command is compiled or sent.
	Produce(ctx context.Context, params Params) (*path.Path, error)
}

// Params carries method-specific options. The core treats it opaquely; the
// typed accessors are conveniences for method implementations.
type Params map[string]any

// Float returns the parameter as a float64, or def when absent.
// Integer values are widened; other types fall back to def.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// Int returns the parameter as an int, or def when absent.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// String returns the parameter as a string, or def when absent.
func (p Params) String(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

// Registry holds the known drawing methods, looked up by name.
type Registry struct {
	methods map[string]Method
}

// NewRegistry creates a registry containing the given methods.
// Later entries with duplicate names override earlier ones.
func NewRegistry(methods ...Method) *Registry {
	r := &Registry{methods: make(map[string]Method, len(methods))}
	for _, m := range methods {
		r.methods[m.Name()] = m
	}
	return r
}

// Lookup returns the method with the given name, or an INVALID_METHOD error
// listing the available names.
func (r *Registry) Lookup(name string) (Method, error) {
	if m, ok := r.methods[name]; ok {
		return m, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidMethod,
		"unknown drawing method %q (available: %v)", name, r.Names())
}

// Names returns the registered method names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Produce runs the named method and normalizes its failure modes: any error
// other than context cancellation is wrapped as DRAWING_METHOD.
func (r *Registry) Produce(ctx context.Context, name string, params Params) (*path.Path, error) {
	m, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	p, err := m.Produce(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(errors.ErrCodeDrawingMethod, err, "method %q", name)
	}
	return p, nil
}
