package locate

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"lora-locator/internal/geo"
)

// ErrDegenerateGeometry is returned when the gateways cannot constrain a
// unique fix: fewer than three of them, or a (near) collinear layout.
var ErrDegenerateGeometry = errors.New("degenerate gateway geometry")

// MinGateways is the smallest number of gateways that can produce a fix.
const MinGateways = 3

const (
	maxCondition = 1e12
	minRangeM    = 1e-3
)

// Solve estimates a position from ranged gateways. The gateways are projected
// onto a tangent plane anchored at their centroid and the circle equations are
// linearized against the first sample:
//
//	2(xi-x1)x + 2(yi-y1)y = (r1²-ri²) - (x1²-xi²+y1²-yi²)
//
// Rows are weighted by 1/ri² so that short, more reliable ranges dominate, and
// the normal equations (AᵀWA)p = AᵀWb are solved for p.
func Solve(samples []Sample) (geo.Point, error) {
	if len(samples) < MinGateways {
		return geo.Point{}, fmt.Errorf("%w: %d gateways, need %d", ErrDegenerateGeometry, len(samples), MinGateways)
	}

	positions := make([]geo.Point, len(samples))
	for i, s := range samples {
		positions[i] = s.Position
	}
	proj := geo.NewProjection(geo.Centroid(positions))

	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	rs := make([]float64, len(samples))
	for i, s := range samples {
		xs[i], ys[i] = proj.Forward(s.Position)
		rs[i] = math.Max(s.DistanceM, minRangeM)
		if math.IsNaN(s.DistanceM) || math.IsInf(s.DistanceM, 0) {
			return geo.Point{}, fmt.Errorf("%w: non-finite range to %s", ErrDegenerateGeometry, s.GatewayID)
		}
	}

	rows := len(samples) - 1
	a := mat.NewDense(rows, 2, nil)
	b := mat.NewVecDense(rows, nil)
	w := mat.NewDiagDense(rows, nil)
	x1, y1, r1 := xs[0], ys[0], rs[0]
	for i := 1; i < len(samples); i++ {
		a.Set(i-1, 0, 2*(xs[i]-x1))
		a.Set(i-1, 1, 2*(ys[i]-y1))
		b.SetVec(i-1, (r1*r1-rs[i]*rs[i])-(x1*x1-xs[i]*xs[i]+y1*y1-ys[i]*ys[i]))
		w.SetDiag(i-1, 1/(rs[i]*rs[i]))
	}

	var atw mat.Dense
	atw.Mul(a.T(), w)
	var ata mat.Dense
	ata.Mul(&atw, a)
	var atb mat.VecDense
	atb.MulVec(&atw, b)

	if cond := mat.Cond(&ata, 2); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > maxCondition {
		return geo.Point{}, fmt.Errorf("%w: condition number %.3g", ErrDegenerateGeometry, cond)
	}

	var p mat.VecDense
	if err := p.SolveVec(&ata, &atb); err != nil {
		return geo.Point{}, fmt.Errorf("%w: %v", ErrDegenerateGeometry, err)
	}
	return proj.Inverse(p.AtVec(0), p.AtVec(1)), nil
}
