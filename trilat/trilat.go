// Package trilat estimates a 2D source position from per-site signal
// amplitudes by weighted nonlinear least squares.
package trilat

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidInput  = errors.New("trilat: invalid input")
	ErrNoConvergence = errors.New("trilat: no convergence")
)

// Site is a receiver position in the local frame, meters.
type Site struct {
	X float64
	Y float64
}

// Fix is a converged position estimate.
type Fix struct {
	X          float64
	Y          float64
	Residual   float64 // weighted RMS residual at the solution
	Iterations int
}

// Options tune the solver. Zero values select the defaults, which match the
// tolerances the field tooling has always shipped with.
type Options struct {
	Scale   float64 // amplitude-to-pseudo-distance scale, default 1000
	Tol     float64 // relative step tolerance, default 1e-8
	MaxIter int     // iteration budget, default 100
}

const (
	defaultScale   = 1000.0
	defaultTol     = 1e-8
	defaultMaxIter = 100

	// minDist keeps the Jacobian finite when the candidate lands on a site.
	minDist = 1e-12

	lambdaInit = 1e-3
	lambdaMin  = 1e-12
	lambdaMax  = 1e12
)

func (o Options) withDefaults() Options {
	if o.Scale == 0 {
		o.Scale = defaultScale
	}
	if o.Tol == 0 {
		o.Tol = defaultTol
	}
	if o.MaxIter == 0 {
		o.MaxIter = defaultMaxIter
	}
	return o
}

// PseudoDistances maps amplitudes to distance-like fit targets, d = scale/a^2.
//
// Model decision: the amplitude of a point source falls off with the square of
// range, so a larger amplitude means a smaller pseudo-distance target and,
// through w = 1/d, a larger weight. The fit is therefore pulled toward the
// loudest site. This is a model assumption about the emitter, not a law; the
// inverse convention would rank sites the other way around.
func PseudoDistances(amplitudes []float64, scale float64) ([]float64, error) {
	if len(amplitudes) == 0 {
		return nil, fmt.Errorf("%w: no amplitudes", ErrInvalidInput)
	}
	if scale <= 0 {
		return nil, fmt.Errorf("%w: scale must be > 0, got %g", ErrInvalidInput, scale)
	}
	out := make([]float64, len(amplitudes))
	for i, a := range amplitudes {
		if a == 0 {
			return nil, fmt.Errorf("%w: amplitude[%d] is zero", ErrInvalidInput, i)
		}
		if a < 0 || math.IsNaN(a) || math.IsInf(a, 0) {
			return nil, fmt.Errorf("%w: amplitude[%d]=%g not a positive real", ErrInvalidInput, i, a)
		}
		out[i] = scale / (a * a)
	}
	return out, nil
}

// Estimate fits a source position to the amplitude readings by
// Levenberg-Marquardt, starting from guess. Weights are folded into the
// residual as sqrt(w_i)*(d_i - |b - site_i|), so each iteration is a plain
// linear least-squares solve of the damped system.
//
// The result is deterministic for identical inputs and options. It is a local
// minimum; a poor guess or degenerate geometry can settle away from the true
// source.
func Estimate(sites []Site, amplitudes []float64, guess Site, opt Options) (Fix, error) {
	opt = opt.withDefaults()

	if len(sites) != len(amplitudes) {
		return Fix{}, fmt.Errorf("%w: %d sites but %d amplitudes", ErrInvalidInput, len(sites), len(amplitudes))
	}
	if len(sites) < 2 {
		return Fix{}, fmt.Errorf("%w: need at least 2 sites, got %d", ErrInvalidInput, len(sites))
	}
	targets, err := PseudoDistances(amplitudes, opt.Scale)
	if err != nil {
		return Fix{}, err
	}

	n := len(sites)
	// sqrt of the weights w_i = 1/d_i
	sw := make([]float64, n)
	for i, d := range targets {
		sw[i] = math.Sqrt(1 / d)
	}

	bx, by := guess.X, guess.Y
	cost := residualCost(sites, targets, sw, bx, by, nil)

	r := make([]float64, n)
	lambda := lambdaInit

	// Damped system: [J; sqrt(lambda)*I] * delta = [-r; 0], solved by QR.
	A := mat.NewDense(n+2, 2, nil)
	rhs := mat.NewVecDense(n+2, nil)
	var delta mat.VecDense
	var qr mat.QR

	for iter := 1; iter <= opt.MaxIter; iter++ {
		residualCost(sites, targets, sw, bx, by, r)
		for i, s := range sites {
			dx := bx - s.X
			dy := by - s.Y
			dist := math.Hypot(dx, dy)
			if dist < minDist {
				dist = minDist
			}
			A.Set(i, 0, -sw[i]*dx/dist)
			A.Set(i, 1, -sw[i]*dy/dist)
			rhs.SetVec(i, -r[i])
		}
		sl := math.Sqrt(lambda)
		A.Set(n, 0, sl)
		A.Set(n, 1, 0)
		A.Set(n+1, 0, 0)
		A.Set(n+1, 1, sl)
		rhs.SetVec(n, 0)
		rhs.SetVec(n+1, 0)

		qr.Factorize(A)
		if err := qr.SolveVecTo(&delta, false, rhs); err != nil {
			// Ill-conditioned step; damp harder and retry.
			lambda = math.Min(lambda*10, lambdaMax)
			continue
		}
		stepX := delta.AtVec(0)
		stepY := delta.AtVec(1)
		step := math.Hypot(stepX, stepY)
		if step <= opt.Tol*(1+math.Hypot(bx, by)) {
			// Already at a stationary point for this damping.
			return Fix{
				X:          bx,
				Y:          by,
				Residual:   math.Sqrt(cost / float64(n)),
				Iterations: iter,
			}, nil
		}

		trialCost := residualCost(sites, targets, sw, bx+stepX, by+stepY, nil)
		if trialCost >= cost {
			lambda = math.Min(lambda*10, lambdaMax)
			continue
		}

		bx += stepX
		by += stepY
		prev := cost
		cost = trialCost
		lambda = math.Max(lambda*0.3, lambdaMin)

		if step <= opt.Tol*(1+math.Hypot(bx, by)) || prev-cost <= opt.Tol*prev {
			return Fix{
				X:          bx,
				Y:          by,
				Residual:   math.Sqrt(cost / float64(n)),
				Iterations: iter,
			}, nil
		}
	}

	return Fix{}, fmt.Errorf("%w: %d iterations exhausted (cost %g)", ErrNoConvergence, opt.MaxIter, cost)
}

// residualCost evaluates the weighted residuals at (bx, by) and returns the
// summed squared cost. When out is non-nil it receives the residuals.
func residualCost(sites []Site, targets, sw []float64, bx, by float64, out []float64) float64 {
	cost := 0.0
	for i, s := range sites {
		dist := math.Hypot(bx-s.X, by-s.Y)
		ri := sw[i] * (targets[i] - dist)
		if out != nil {
			out[i] = ri
		}
		cost += ri * ri
	}
	return cost
}
