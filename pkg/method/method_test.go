package method

import (
	"context"
	"fmt"
	"testing"

	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/path"
)

type stubMethod struct {
	name string
	err  error
}

func (s *stubMethod) Name() string { return s.name }
func (s *stubMethod) Info() string { return "stub" }

func (s *stubMethod) Produce(ctx context.Context, params Params) (*path.Path, error) {
	if s.err != nil {
		return nil, s.err
	}
	return path.NewBuilder().MoveTo(0, 0).PenDown().LineTo(1, 1).Build()
}

func TestParamsAccessors(t *testing.T) {
	p := Params{
		"spacing": 2.5,
		"count":   7,
		"angle":   float64(45),
		"style":   "dense",
	}

	if got := p.Float("spacing", 1); got != 2.5 {
		t.Errorf("Float(spacing) = %v, want 2.5", got)
	}
	if got := p.Float("count", 1); got != 7 {
		t.Errorf("Float(count) = %v, want 7 (int widened)", got)
	}
	if got := p.Float("missing", 3.3); got != 3.3 {
		t.Errorf("Float(missing) = %v, want default 3.3", got)
	}
	if got := p.Int("count", 0); got != 7 {
		t.Errorf("Int(count) = %v, want 7", got)
	}
	if got := p.Int("angle", 0); got != 45 {
		t.Errorf("Int(angle) = %v, want 45 (float narrowed)", got)
	}
	if got := p.String("style", "plain"); got != "dense" {
		t.Errorf("String(style) = %v, want dense", got)
	}
	if got := p.String("missing", "plain"); got != "plain" {
		t.Errorf("String(missing) = %v, want default", got)
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(&stubMethod{name: "alpha"}, &stubMethod{name: "beta"})

	if _, err := r.Lookup("alpha"); err != nil {
		t.Errorf("Lookup(alpha) error: %v", err)
	}

	_, err := r.Lookup("gamma")
	if err == nil {
		t.Fatal("Lookup(gamma) succeeded, want error")
	}
	if !errors.Is(err, errors.ErrCodeInvalidMethod) {
		t.Errorf("error code = %v, want INVALID_METHOD", errors.GetCode(err))
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("Names() = %v, want sorted [alpha beta]", names)
	}
}

func TestProduceWrapsMethodErrors(t *testing.T) {
	r := NewRegistry(&stubMethod{name: "bad", err: fmt.Errorf("spacing must be positive")})

	_, err := r.Produce(context.Background(), "bad", nil)
	if err == nil {
		t.Fatal("Produce() succeeded, want error")
	}
	if !errors.Is(err, errors.ErrCodeDrawingMethod) {
		t.Errorf("error code = %v, want DRAWING_METHOD", errors.GetCode(err))
	}
}

func TestProduceHonoursCancellation(t *testing.T) {
	blocked := &stubMethod{name: "slow", err: context.Canceled}
	r := NewRegistry(blocked)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Produce(ctx, "slow", nil)
	if err != context.Canceled {
		t.Errorf("Produce() error = %v, want context.Canceled", err)
	}
}
