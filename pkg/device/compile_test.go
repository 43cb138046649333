package device

import (
	"math"
	"reflect"
	"testing"

	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/path"
)

func mustPath(t *testing.T, segments []path.Segment) *path.Path {
	t.Helper()
	p, err := path.New(segments)
	if err != nil {
		t.Fatalf("path.New() error: %v", err)
	}
	return p
}

func testOpts() Options {
	return Options{Area: Area{Width: 200, Height: 200}}
}

// The canonical scenario: a path starting at the origin compiles to pen-down
// plus the two moves, with the coincident initial travel suppressed and no
// redundant PenUp (the pen starts raised by invariant).
func TestCompileBasicSequence(t *testing.T) {
	p := mustPath(t, []path.Segment{
		{Kind: path.MoveTo, End: path.Point{X: 0, Y: 0}},
		{Kind: path.LineTo, End: path.Point{X: 10, Y: 0}, PenDown: true},
		{Kind: path.LineTo, End: path.Point{X: 10, Y: 10}, PenDown: true},
	})

	cmds, err := Compile(p, IdentityTransform(), testOpts())
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}

	if len(cmds) != 3 {
		t.Fatalf("command count = %d, want 3: %v", len(cmds), cmds)
	}
	if cmds[0].Op != OpPenDown {
		t.Errorf("cmds[0] = %v, want PenDown", cmds[0])
	}
	if cmds[1].Op != OpMove || cmds[1].X != 10 || cmds[1].Y != 0 {
		t.Errorf("cmds[1] = %v, want Move(10, 0)", cmds[1])
	}
	if cmds[2].Op != OpMove || cmds[2].X != 10 || cmds[2].Y != 10 {
		t.Errorf("cmds[2] = %v, want Move(10, 10)", cmds[2])
	}
}

func TestCompileSequenceNumbersContiguous(t *testing.T) {
	b := path.NewBuilder().MoveTo(5, 5).PenDown()
	for i := 0; i < 40; i++ {
		b.LineTo(5+float64(i*2), 5+float64(i%7))
	}
	b.PenUp().MoveTo(100, 100).PenDown().LineTo(110, 100)
	p, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	cmds, err := Compile(p, IdentityTransform(), testOpts())
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	for i, c := range cmds {
		if c.Seq != uint32(i) {
			t.Fatalf("cmds[%d].Seq = %d, want %d", i, c.Seq, i)
		}
	}
}

func TestCompileDeterministic(t *testing.T) {
	p := mustPath(t, []path.Segment{
		{Kind: path.MoveTo, End: path.Point{X: 3, Y: 4}},
		{Kind: path.LineTo, End: path.Point{X: 50, Y: 4}, PenDown: true},
		{Kind: path.CurveTo, End: path.Point{X: 60, Y: 30}, PenDown: true},
		{Kind: path.MoveTo, End: path.Point{X: 10, Y: 80}},
		{Kind: path.LineTo, End: path.Point{X: 90, Y: 80}, PenDown: true},
	})
	tr := Transform{ScaleX: 1.5, ScaleY: 1.5, Rotation: 0.3, OffsetX: 20, OffsetY: 10}

	a, err := Compile(p, tr, testOpts())
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	b, err := Compile(p, tr, testOpts())
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("compiling the same path and transform twice produced different commands")
	}
}

func TestCompileNoRedundantPenCommands(t *testing.T) {
	// Alternating pen-up travel and pen-down strokes.
	p, err := path.NewBuilder().
		MoveTo(10, 10).PenDown().LineTo(20, 10).LineTo(30, 10).
		PenUp().MoveTo(50, 50).PenDown().LineTo(60, 50).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	cmds, err := Compile(p, IdentityTransform(), testOpts())
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}

	penDown := false // pen starts raised
	for _, c := range cmds {
		switch c.Op {
		case OpPenDown:
			if penDown {
				t.Fatalf("redundant PenDown at seq %d", c.Seq)
			}
			penDown = true
		case OpPenUp:
			if !penDown {
				t.Fatalf("redundant PenUp at seq %d", c.Seq)
			}
			penDown = false
		}
	}
}

func TestCompileOutOfBounds(t *testing.T) {
	p := mustPath(t, []path.Segment{
		{Kind: path.MoveTo, End: path.Point{X: 0, Y: 0}},
		{Kind: path.LineTo, End: path.Point{X: 250, Y: 10}, PenDown: true},
	})

	cmds, err := Compile(p, IdentityTransform(), testOpts())
	if err == nil {
		t.Fatal("Compile() succeeded, want OUT_OF_BOUNDS")
	}
	if !errors.Is(err, errors.ErrCodeOutOfBounds) {
		t.Errorf("error code = %v, want OUT_OF_BOUNDS", errors.GetCode(err))
	}
	if cmds != nil {
		t.Errorf("Compile() emitted %d commands alongside the error, want none", len(cmds))
	}
}

func TestCompileBoundsCheckedAfterTransform(t *testing.T) {
	// In-bounds canonically, pushed out by the transform.
	p := mustPath(t, []path.Segment{
		{Kind: path.MoveTo, End: path.Point{X: 0, Y: 0}},
		{Kind: path.LineTo, End: path.Point{X: 150, Y: 10}, PenDown: true},
	})
	tr := IdentityTransform()
	tr.OffsetX = 100

	if _, err := Compile(p, tr, testOpts()); !errors.Is(err, errors.ErrCodeOutOfBounds) {
		t.Errorf("error = %v, want OUT_OF_BOUNDS", err)
	}
}

func TestCompileMergesShortRuns(t *testing.T) {
	// 20 collinear 0.1mm steps, all below the 0.25mm default threshold,
	// followed by a long stroke.
	b := path.NewBuilder().MoveTo(10, 10).PenDown()
	for i := 1; i <= 20; i++ {
		b.LineTo(10+float64(i)*0.1, 10)
	}
	b.LineTo(50, 10)
	p, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	cmds, err := Compile(p, IdentityTransform(), testOpts())
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}

	// PenDown + travel + merged run + long stroke.
	var moves []Command
	for _, c := range cmds {
		if c.Op == OpMove {
			moves = append(moves, c)
		}
	}
	if len(moves) != 3 {
		t.Fatalf("move count = %d, want 3 (travel, merged run, long stroke): %v", len(moves), moves)
	}

	// The merged run must end exactly on the final endpoint of the run,
	// never an interpolated value.
	if math.Abs(moves[1].X-12) > 1e-9 || moves[1].Y != 10 {
		t.Errorf("merged run endpoint = (%v, %v), want (12, 10)", moves[1].X, moves[1].Y)
	}
}

func TestCompileDoesNotMergeDirectionChanges(t *testing.T) {
	// Short steps that zigzag must not merge across the turn.
	p, err := path.NewBuilder().
		MoveTo(10, 10).PenDown().
		LineTo(10.1, 10).
		LineTo(10.2, 10).
		LineTo(10.2, 10.1).
		LineTo(10.2, 10.2).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	cmds, err := Compile(p, IdentityTransform(), testOpts())
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}

	var moves []Command
	for _, c := range cmds {
		if c.Op == OpMove {
			moves = append(moves, c)
		}
	}
	// Travel + horizontal merged pair + vertical merged pair.
	if len(moves) != 3 {
		t.Fatalf("move count = %d, want 3: %v", len(moves), moves)
	}
	if math.Abs(moves[1].X-10.2) > 1e-9 || math.Abs(moves[1].Y-10) > 1e-9 {
		t.Errorf("horizontal run endpoint = (%v, %v), want (10.2, 10)", moves[1].X, moves[1].Y)
	}
	if math.Abs(moves[2].X-10.2) > 1e-9 || math.Abs(moves[2].Y-10.2) > 1e-9 {
		t.Errorf("vertical run endpoint = (%v, %v), want (10.2, 10.2)", moves[2].X, moves[2].Y)
	}
}

func TestCompileSpeeds(t *testing.T) {
	p, err := path.NewBuilder().
		MoveTo(10, 10).PenDown().LineTo(50, 10).
		PenUp().MoveTo(100, 100).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	opts := testOpts()
	opts.DrawSpeed = 30
	opts.TravelSpeed = 90
	cmds, err := Compile(p, IdentityTransform(), opts)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}

	for _, c := range cmds {
		if c.Op != OpMove {
			continue
		}
		// The stroke to (50, 10) is the only pen-down move.
		if c.X == 50 && c.Speed != 30 {
			t.Errorf("pen-down move speed = %v, want 30", c.Speed)
		}
		if c.X != 50 && c.Speed != 90 {
			t.Errorf("travel move speed = %v, want 90", c.Speed)
		}
	}
}

func TestTransformApply(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
		in   path.Point
		want path.Point
	}{
		{
			name: "identity",
			tr:   IdentityTransform(),
			in:   path.Point{X: 3, Y: 4},
			want: path.Point{X: 3, Y: 4},
		},
		{
			name: "scale and offset",
			tr:   Transform{ScaleX: 2, ScaleY: 3, OffsetX: 1, OffsetY: -1},
			in:   path.Point{X: 3, Y: 4},
			want: path.Point{X: 7, Y: 11},
		},
		{
			name: "quarter rotation",
			tr:   Transform{ScaleX: 1, ScaleY: 1, Rotation: math.Pi / 2},
			in:   path.Point{X: 1, Y: 0},
			want: path.Point{X: 0, Y: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.tr.Apply(tt.in)
			if got.Dist(tt.want) > 1e-9 {
				t.Errorf("Apply(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAreaContains(t *testing.T) {
	a := Area{Width: 200, Height: 100}
	if !a.Contains(path.Point{X: 0, Y: 0}) || !a.Contains(path.Point{X: 200, Y: 100}) {
		t.Error("corners should be inside")
	}
	if a.Contains(path.Point{X: -1, Y: 50}) || a.Contains(path.Point{X: 50, Y: 101}) {
		t.Error("outside points reported inside")
	}
}
