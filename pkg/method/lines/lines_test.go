package lines

import (
	"context"
	"testing"

	"github.com/matzehuels/penplot/pkg/method"
)

func TestProduce(t *testing.T) {
	m := New()
	p, err := m.Produce(context.Background(), method.Params{
		"width": 100.0, "height": 100.0, "margin": 10.0, "spacing": 20.0,
	})
	if err != nil {
		t.Fatalf("Produce() error: %v", err)
	}

	first := p.At(0)
	if first.PenDown {
		t.Error("first segment must be pen-up")
	}

	minPt, maxPt := p.Bounds()
	if minPt.X < 10 || minPt.Y < 10 || maxPt.X > 90 || maxPt.Y > 90 {
		t.Errorf("path escapes margins: bounds %v %v", minPt, maxPt)
	}

	// Everything after the initial travel move should be inked.
	for i := 1; i < p.Len(); i++ {
		if !p.At(i).PenDown {
			t.Fatalf("segment %d is pen-up, serpentine fill never lifts the pen", i)
		}
	}
}

func TestProduceRejectsBadParams(t *testing.T) {
	m := New()
	tests := []struct {
		name   string
		params method.Params
	}{
		{"zero spacing", method.Params{"spacing": 0.0}},
		{"negative spacing", method.Params{"spacing": -2.0}},
		{"margin swallows page", method.Params{"width": 20.0, "height": 20.0, "margin": 15.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Produce(context.Background(), tt.params); err == nil {
				t.Error("Produce() succeeded, want error")
			}
		})
	}
}

func TestProduceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Produce(ctx, nil); err != context.Canceled {
		t.Errorf("Produce() error = %v, want context.Canceled", err)
	}
}
