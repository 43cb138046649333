// Package builtin provides the complete catalog of built-in drawing methods.
//
// This package exists to break import cycles: the individual method packages
// (lines, hatch, etc.) import pkg/method, so pkg/method cannot import them
// back. Consumers that need the full catalog import this package instead.
//
// Usage:
//
//	import "github.com/matzehuels/penplot/pkg/method/builtin"
//
//	registry := builtin.Registry()
//	m, err := registry.Lookup("hatch")
package builtin

import (
	"github.com/matzehuels/penplot/pkg/method"
	"github.com/matzehuels/penplot/pkg/method/hatch"
	"github.com/matzehuels/penplot/pkg/method/lines"
	"github.com/matzehuels/penplot/pkg/method/stipple"
	"github.com/matzehuels/penplot/pkg/method/vector"
)

// All is the canonical list of built-in drawing methods.
var All = []method.Method{
	lines.New(),
	hatch.New(),
	stipple.New(),
	vector.New(),
}

// Registry returns a registry populated with every built-in method.
func Registry() *method.Registry {
	return method.NewRegistry(All...)
}
