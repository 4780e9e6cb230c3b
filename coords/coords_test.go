package coords

import (
	"math"
	"testing"
)

func TestUnitConversions(t *testing.T) {
	if got := MillimetersToPoints(25.4); math.Abs(got-72) > 1e-9 {
		t.Fatalf("25.4mm = %vpt, want 72", got)
	}
	if got := PointsToMillimeters(72); math.Abs(got-25.4) > 1e-9 {
		t.Fatalf("72pt = %vmm, want 25.4", got)
	}
	if got := PointsToMillimeters(MillimetersToPoints(203.2)); math.Abs(got-203.2) > 1e-9 {
		t.Fatalf("round trip drifted: %v", got)
	}
}

func TestImagePlacementMapsUnitSquare(t *testing.T) {
	m := ImagePlacement(10, 20, 300, 400)
	want := Matrix{300, 0, 0, 400, 10, 20}
	if m != want {
		t.Fatalf("placement = %v, want %v", m, want)
	}
	corner := m.Transform(Point{X: 1, Y: 1})
	if corner != (Point{X: 310, Y: 420}) {
		t.Fatalf("upper-right corner = %+v", corner)
	}
}

func TestInverse(t *testing.T) {
	m := ImagePlacement(5, 7, 2, 4)
	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("inverse: %v", err)
	}
	p := inv.Transform(m.Transform(Point{X: 0.25, Y: 0.75}))
	if math.Abs(p.X-0.25) > 1e-12 || math.Abs(p.Y-0.75) > 1e-12 {
		t.Fatalf("inverse did not undo transform: %+v", p)
	}
	if _, err := Scale(0, 1).Inverse(); err == nil {
		t.Fatalf("expected singular matrix error")
	}
}
