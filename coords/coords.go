// Package coords holds the length units and affine transforms used to place
// images on a page.
package coords

import (
	"errors"
	"math"
)

const (
	MillimetersPerInch = 25.4
	PointsPerInch      = 72.0
)

// MillimetersToPoints converts a length in millimetres to PDF points.
func MillimetersToPoints(mm float64) float64 { return mm * PointsPerInch / MillimetersPerInch }

// PointsToMillimeters converts a length in PDF points to millimetres.
func PointsToMillimeters(pt float64) float64 { return pt * MillimetersPerInch / PointsPerInch }

// Matrix is a PDF transformation matrix [a b c d e f].
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{
		m[3] / det, -m[1] / det,
		-m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det, (m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }

// ImagePlacement maps the unit square an image occupies onto a box of the
// given size whose lower-left corner is at (x, y).
func ImagePlacement(x, y, width, height float64) Matrix {
	return Scale(width, height).Multiply(Translate(x, y))
}
