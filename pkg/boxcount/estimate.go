package boxcount

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"gonum.org/v1/gonum/stat"

	"fractaldim/pkg/config"
)

// ErrNumerical is returned when a frame does not yield enough scale levels
// for a regression.
var ErrNumerical = errors.New("degenerate box-count curve")

// EmptyDimension is reported for frames without any occupied voxel
const EmptyDimension = 0.0

// RegressionPoint is one (log box size, log box count) sample
type RegressionPoint struct {
	Level    int
	LogSize  float64
	LogCount float64
}

// FrameResult is the estimate for one frame
type FrameResult struct {
	Frame     int
	Dimension float64

	// RSquared is the coefficient of determination of the log-log fit
	RSquared float64

	// Empty is set when the frame had no occupied voxel and Dimension is
	// the EmptyDimension sentinel.
	Empty bool

	// Lacunarity holds Λ(L) for every level 0..BitsPerDim
	Lacunarity []float64

	Points  []RegressionPoint
	Buckets []ScaleBucket
}

// MeanLacunarity averages the lacunarity curve over all levels
func (r FrameResult) MeanLacunarity() float64 {
	if len(r.Lacunarity) == 0 {
		return 0
	}
	return stat.Mean(r.Lacunarity, nil)
}

// Estimator turns scale buckets into a dimension estimate
type Estimator struct {
	bitsPerDim int
}

// NewEstimator creates an estimator for the given analysis parameters
func NewEstimator(a config.Analysis) *Estimator {
	return &Estimator{bitsPerDim: a.BitsPerDim}
}

// MaxLevel returns the finest level that still splits every non-singleton
// axis of an (x, y, z) grid into boxes at least one voxel wide.
func (e *Estimator) MaxLevel(x, y, z int) int {
	shortest := 0
	for _, n := range []int{x, y, z} {
		if n > 1 && (shortest == 0 || n < shortest) {
			shortest = n
		}
	}
	if shortest == 0 {
		return 0
	}
	return min(bits.Len(uint(shortest))-1, e.bitsPerDim)
}

// Points returns the regression points of an aggregation over an (x, y, z) grid.
// Levels beyond MaxLevel and levels without occupied boxes are skipped.
func (e *Estimator) Points(agg Aggregation, x, y, z int) []RegressionPoint {
	extent := float64(max(x, y, z))
	maxLevel := min(e.MaxLevel(x, y, z), len(agg.Buckets)-1)

	points := make([]RegressionPoint, 0, maxLevel+1)
	for l := 0; l <= maxLevel; l++ {
		n := agg.Buckets[l].OccupiedBoxes
		if n <= 0 {
			continue
		}
		points = append(points, RegressionPoint{
			Level:    l,
			LogSize:  math.Log(extent / math.Exp2(float64(l))),
			LogCount: math.Log(float64(n)),
		})
	}
	return points
}

// Estimate fits log N(L) against log box size and returns the negated slope
// as the fractal dimension of the frame.
func (e *Estimator) Estimate(frame int, agg Aggregation, x, y, z int) (FrameResult, error) {
	res := FrameResult{
		Frame:      frame,
		Lacunarity: make([]float64, len(agg.Buckets)),
		Buckets:    agg.Buckets,
	}
	for l, b := range agg.Buckets {
		res.Lacunarity[l] = b.Lacunarity()
	}

	if agg.Occupied == 0 {
		res.Dimension = EmptyDimension
		res.Empty = true
		return res, nil
	}

	res.Points = e.Points(agg, x, y, z)
	if len(res.Points) < 2 {
		return res, fmt.Errorf("frame %d: %w: %d usable scale levels for a %dx%dx%d grid",
			frame, ErrNumerical, len(res.Points), x, y, z)
	}

	xs := make([]float64, len(res.Points))
	ys := make([]float64, len(res.Points))
	for i, p := range res.Points {
		xs[i] = p.LogSize
		ys[i] = p.LogCount
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return res, fmt.Errorf("frame %d: %w: slope is %v", frame, ErrNumerical, beta)
	}
	res.Dimension = 0 - beta
	res.RSquared = stat.RSquared(xs, ys, nil, alpha, beta)
	if math.IsNaN(res.RSquared) {
		// flat curve, the fit is exact
		res.RSquared = 1
	}

	return res, nil
}
