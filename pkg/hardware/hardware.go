// Package hardware models the physical rig: two stepper motors at the top
// corners driving belts that suspend the pen. Drawing coordinates are
// cartesian millimetres on the page; the motors only understand belt
// lengths, so this package holds the conversions between the two, plus the
// step resolution of the motor and pulley combination.
//
// The machine plane has its origin at the left motor shaft, x growing
// toward the right motor and y growing downward. The page hangs inside
// that plane at a configurable offset.
package hardware

import (
	"math"

	"github.com/matzehuels/penplot/pkg/errors"
)

// Motor and pulley constants.
const (
	// StepsPerRev is the number of motor steps for one shaft revolution.
	StepsPerRev = 3200

	// WheelDiameter is the pulley wheel diameter in millimetres.
	WheelDiameter = 12.63
)

// StepsPerMM returns the number of steps that move a belt one millimetre.
func StepsPerMM() float64 {
	return StepsPerRev / (math.Pi * WheelDiameter)
}

// StepsToMM returns the belt travel for a number of steps.
func StepsToMM(steps int) float64 {
	return float64(steps) / StepsPerMM()
}

// MMToSteps returns the whole number of steps closest to a belt travel.
func MMToSteps(mm float64) int {
	return int(math.Round(mm * StepsPerMM()))
}

// CartesianToBelt converts a machine-plane coordinate into the two belt
// lengths, measured from each motor shaft to the pen.
func CartesianToBelt(x, y, interspace float64) (left, right float64) {
	left = math.Hypot(x, y)
	right = math.Hypot(interspace-x, y)
	return left, right
}

// BeltToCartesian converts belt lengths back into a machine-plane
// coordinate. The result is relative to the left motor shaft, growing
// rightward and downward.
func BeltToCartesian(left, right, interspace float64) (x, y float64) {
	x = (interspace*interspace + left*left - right*right) / (2 * interspace)
	y = math.Sqrt(left*left - x*x)
	return x, y
}

// Dimensions is the physical layout of one machine. All values are
// millimetres.
type Dimensions struct {
	// MotorInterspace is the horizontal distance between the motor shafts.
	MotorInterspace float64 `toml:"motor_interspace"`

	// PageOffsetX and PageOffsetY locate the page's top-left corner
	// relative to the left motor shaft.
	PageOffsetX float64 `toml:"page_offset_x"`
	PageOffsetY float64 `toml:"page_offset_y"`

	// PageWidth and PageHeight are the drawable page size.
	PageWidth  float64 `toml:"page_width"`
	PageHeight float64 `toml:"page_height"`
}

// Validate rejects layouts the belts cannot serve.
func (d Dimensions) Validate() error {
	if d.MotorInterspace <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "motor interspace must be positive, got %v", d.MotorInterspace)
	}
	if d.PageWidth <= 0 || d.PageHeight <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "page size must be positive, got %vx%v", d.PageWidth, d.PageHeight)
	}
	if d.PageOffsetY <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "page must hang below the motor shafts")
	}
	// All four page corners must be reachable.
	for _, corner := range [][2]float64{
		{0, 0}, {d.PageWidth, 0}, {0, d.PageHeight}, {d.PageWidth, d.PageHeight},
	} {
		if !d.Reachable(corner[0], corner[1]) {
			return errors.New(errors.ErrCodeInvalidConfig,
				"page corner (%v, %v) is outside the belts' reach", corner[0], corner[1])
		}
	}
	return nil
}

// Reachable reports whether a page coordinate can be held by both belts
// under tension: strictly between the motors horizontally and below the
// shafts.
func (d Dimensions) Reachable(x, y float64) bool {
	mx := d.PageOffsetX + x
	my := d.PageOffsetY + y
	return mx > 0 && mx < d.MotorInterspace && my > 0
}

// ToMachine converts a page coordinate to the machine plane.
func (d Dimensions) ToMachine(x, y float64) (float64, float64) {
	return d.PageOffsetX + x, d.PageOffsetY + y
}

// ToPage converts a machine-plane coordinate to page coordinates.
func (d Dimensions) ToPage(x, y float64) (float64, float64) {
	return x - d.PageOffsetX, y - d.PageOffsetY
}

// Belts tracks the two physical belt lengths as the motors step. It is the
// pen position ground truth a preview uses to replay motor motion.
type Belts struct {
	Left       float64
	Right      float64
	Interspace float64
}

// NewBeltsAt initialises belts holding the pen at a machine-plane
// coordinate.
func NewBeltsAt(x, y, interspace float64) Belts {
	left, right := CartesianToBelt(x, y, interspace)
	return Belts{Left: left, Right: right, Interspace: interspace}
}

// MoveSteps winds each belt by a step count; negative steps shorten.
func (b *Belts) MoveSteps(left, right int) {
	b.Left += StepsToMM(left)
	b.Right += StepsToMM(right)
}

// Cartesian returns the pen's machine-plane position.
func (b Belts) Cartesian() (x, y float64) {
	return BeltToCartesian(b.Left, b.Right, b.Interspace)
}
