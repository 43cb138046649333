package hatch

import (
	"context"
	"testing"

	"github.com/matzehuels/penplot/pkg/method"
	"github.com/matzehuels/penplot/pkg/path"
)

func TestProduceStaysInRegion(t *testing.T) {
	m := New()
	for _, angle := range []float64{0, 30, 45, 90, 135} {
		p, err := m.Produce(context.Background(), method.Params{
			"width": 120.0, "height": 80.0, "margin": 10.0,
			"spacing": 7.0, "angle": angle,
		})
		if err != nil {
			t.Fatalf("angle %g: Produce() error: %v", angle, err)
		}

		minPt, maxPt := p.Bounds()
		const eps = 1e-6
		if minPt.X < 10-eps || minPt.Y < 10-eps || maxPt.X > 110+eps || maxPt.Y > 70+eps {
			t.Errorf("angle %g: path escapes region: bounds %v %v", angle, minPt, maxPt)
		}
	}
}

func TestProduceLineCount(t *testing.T) {
	// Horizontal hatching of a 100x100 region at 10mm spacing: the offset
	// range spans the region height, so roughly height/spacing lines.
	p, err := New().Produce(context.Background(), method.Params{
		"width": 120.0, "height": 120.0, "margin": 10.0,
		"spacing": 10.0, "angle": 0.0,
	})
	if err != nil {
		t.Fatalf("Produce() error: %v", err)
	}

	inked := 0
	for _, s := range p.Segments() {
		if s.PenDown {
			inked++
		}
	}
	if inked < 9 || inked > 12 {
		t.Errorf("inked segments = %d, want ~10-11 hatch lines", inked)
	}
}

func TestProduceDeterministic(t *testing.T) {
	params := method.Params{"spacing": 4.0, "angle": 37.0}
	a, err := New().Produce(context.Background(), params)
	if err != nil {
		t.Fatalf("Produce() error: %v", err)
	}
	b, err := New().Produce(context.Background(), params)
	if err != nil {
		t.Fatalf("Produce() error: %v", err)
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("same parameters should produce identical paths")
	}
}

func TestProduceRejectsBadSpacing(t *testing.T) {
	if _, err := New().Produce(context.Background(), method.Params{"spacing": -1.0}); err == nil {
		t.Error("Produce() succeeded with negative spacing, want error")
	}
}

func TestClipLineMiss(t *testing.T) {
	// A horizontal line far below the rectangle must miss it.
	_, _, ok := clipLine(
		path.Point{X: 1, Y: 0}, path.Point{X: 0, Y: 1}, 500,
		10, 10, 100, 100,
	)
	if ok {
		t.Error("clipLine() hit a rectangle it should miss")
	}
}
