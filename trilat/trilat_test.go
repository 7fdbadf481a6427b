package trilat

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// ampForDistance inverts the pseudo-distance mapping so the fit target for a
// site equals its true distance from the source.
func ampForDistance(d, scale float64) float64 {
	return math.Sqrt(scale / d)
}

func TestEstimateLengthMismatch(t *testing.T) {
	sites := []Site{{0, 0}, {10, 0}, {5, 10}}
	_, err := Estimate(sites, []float64{1, 2}, Site{5, 5}, Options{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEstimateEmptyInput(t *testing.T) {
	_, err := Estimate(nil, nil, Site{}, Options{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEstimateTooFewSites(t *testing.T) {
	_, err := Estimate([]Site{{0, 0}}, []float64{3}, Site{1, 1}, Options{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEstimateZeroAmplitude(t *testing.T) {
	sites := []Site{{0, 0}, {10, 0}, {5, 10}}
	_, err := Estimate(sites, []float64{2, 0, 2}, Site{5, 5}, Options{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEstimateNegativeAmplitude(t *testing.T) {
	sites := []Site{{0, 0}, {10, 0}, {5, 10}}
	_, err := Estimate(sites, []float64{2, -2, 2}, Site{5, 5}, Options{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPseudoDistances(t *testing.T) {
	d, err := PseudoDistances([]float64{2, 10}, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(d[0], 250, 1e-12) || !almostEqual(d[1], 10, 1e-12) {
		t.Fatalf("unexpected pseudo-distances %v", d)
	}
}

func TestEstimateRecoversExactSource(t *testing.T) {
	src := Site{3, 4}
	sites := []Site{{0, 0}, {10, 0}, {5, 10}, {-5, 5}}
	amps := make([]float64, len(sites))
	for i, s := range sites {
		amps[i] = ampForDistance(math.Hypot(src.X-s.X, src.Y-s.Y), defaultScale)
	}

	fix, err := Estimate(sites, amps, Site{4, 5}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(fix.X, src.X, 1e-5) || !almostEqual(fix.Y, src.Y, 1e-5) {
		t.Fatalf("fix (%g, %g) != source (%g, %g)", fix.X, fix.Y, src.X, src.Y)
	}
	if fix.Residual > 1e-5 {
		t.Fatalf("residual %g should be ~0 for a consistent scenario", fix.Residual)
	}
}

// Equal amplitudes mean equal weights and a single shared distance target, so
// the fit settles at the point equidistant from all sites: the circumcenter,
// here (5, 3.75).
func TestEstimateEqualAmplitudesSymmetricCenter(t *testing.T) {
	sites := []Site{{0, 0}, {10, 0}, {5, 10}}
	a := ampForDistance(6.25, defaultScale) // circumradius of the triangle
	amps := []float64{a, a, a}

	fix, err := Estimate(sites, amps, Site{5, 5}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(fix.X, 5, 1e-3) || !almostEqual(fix.Y, 3.75, 1e-3) {
		t.Fatalf("fix (%g, %g), want near (5, 3.75)", fix.X, fix.Y)
	}
}

// The loudest site carries the dominant weight and the smallest distance
// target, so the fix lands next to it.
func TestEstimateDominantAmplitude(t *testing.T) {
	sites := []Site{{0, 0}, {10, 0}}
	amps := []float64{100, 1}

	fix, err := Estimate(sites, amps, Site{5, 0}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	dLoud := math.Hypot(fix.X-0, fix.Y-0)
	dQuiet := math.Hypot(fix.X-10, fix.Y-0)
	if dLoud > 1.0 {
		t.Fatalf("fix (%g, %g) is %g from the loud site, want < 1", fix.X, fix.Y, dLoud)
	}
	if dLoud >= dQuiet {
		t.Fatalf("fix should sit closer to the loud site (%g vs %g)", dLoud, dQuiet)
	}
}

// As one site's amplitude grows while the rest stay fixed, the fix tightens
// onto that site.
func TestEstimateWeightConcentration(t *testing.T) {
	sites := []Site{{0, 0}, {10, 0}, {5, 10}}
	guess := Site{1, 1}

	distTo0 := func(a0 float64) float64 {
		fix, err := Estimate(sites, []float64{a0, 1, 1}, guess, Options{})
		if err != nil {
			t.Fatalf("a0=%g: %v", a0, err)
		}
		return math.Hypot(fix.X, fix.Y)
	}

	d50 := distTo0(50)
	d500 := distTo0(500)
	if d500 >= d50 {
		t.Fatalf("fix should tighten onto the loud site: a0=500 gives %g, a0=50 gives %g", d500, d50)
	}
}

// Reflecting the sites and the guess across the y-axis reflects the fix.
func TestEstimateMirrorSymmetry(t *testing.T) {
	src := Site{3, 4}
	sites := []Site{{0, 0}, {10, 0}, {5, 10}, {-5, 5}}
	amps := make([]float64, len(sites))
	for i, s := range sites {
		amps[i] = ampForDistance(math.Hypot(src.X-s.X, src.Y-s.Y), defaultScale)
	}

	fix, err := Estimate(sites, amps, Site{4, 5}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	mirrored := make([]Site, len(sites))
	for i, s := range sites {
		mirrored[i] = Site{-s.X, s.Y}
	}
	mfix, err := Estimate(mirrored, amps, Site{-4, 5}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if !almostEqual(mfix.X, -fix.X, 1e-6) {
		t.Fatalf("mirrored x %g, want %g", mfix.X, -fix.X)
	}
	if !almostEqual(mfix.Y, fix.Y, 1e-6) {
		t.Fatalf("mirrored y %g, want %g", mfix.Y, fix.Y)
	}
}

func TestEstimateDeterministic(t *testing.T) {
	sites := []Site{{0, 0}, {10, 0}, {5, 10}}
	amps := []float64{5, 7, 3}
	guess := Site{5, 5}

	a, err := Estimate(sites, amps, guess, Options{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Estimate(sites, amps, guess, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if a.X != b.X || a.Y != b.Y || a.Residual != b.Residual || a.Iterations != b.Iterations {
		t.Fatalf("two identical runs differ: %+v vs %+v", a, b)
	}
}

func TestEstimateIterationBudget(t *testing.T) {
	sites := []Site{{0, 0}, {10, 0}, {5, 10}}
	amps := []float64{5, 7, 3}

	_, err := Estimate(sites, amps, Site{1000, 1000}, Options{MaxIter: 1, Tol: 1e-15})
	if !errors.Is(err, ErrNoConvergence) {
		t.Fatalf("expected ErrNoConvergence, got %v", err)
	}
}
