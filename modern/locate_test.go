package modern

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/CK6170/Locrunrilla-go/models"
	"github.com/CK6170/Locrunrilla-go/trilat"
)

func simParams() *models.PARAMETERS {
	return &models.PARAMETERS{
		SERIAL: &models.SERIAL{PORT: "sim", BAUDRATE: 115200, COMMAND: "A"},
		SITES: []*models.SITE{
			{ID: 1, X: 0, Y: 0},
			{ID: 2, X: 100, Y: 0},
			{ID: 3, X: 100, Y: 100},
			{ID: 4, X: 0, Y: 100},
		},
		AVG:    4,
		IGNORE: 2,
		// Large scale keeps count quantization well below the geometry.
		SCALE: 1e6,
		GUESS: &models.GUESS{X: 50, Y: 50},
	}
}

func TestSampleAmplitudesPhases(t *testing.T) {
	p := simParams()
	sim, err := NewSimulator(p, trilat.Site{X: 30, Y: 40}, 0, 1)
	if err != nil {
		t.Fatal(err)
	}

	var phases []SamplePhase
	amps, err := SampleAmplitudes(context.Background(), sim, len(p.SITES), p.IGNORE, p.AVG, func(u SampleUpdate) {
		phases = append(phases, u.Phase)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(amps) != len(p.SITES) {
		t.Fatalf("got %d amplitudes for %d sites", len(amps), len(p.SITES))
	}
	for i, a := range amps {
		if a <= 0 {
			t.Fatalf("site %d averaged amplitude %g", i, a)
		}
	}
	if phases[len(phases)-1] != SamplePhaseFinished {
		t.Fatalf("last phase %q", phases[len(phases)-1])
	}
}

func TestSampleAmplitudesCancel(t *testing.T) {
	p := simParams()
	sim, _ := NewSimulator(p, trilat.Site{X: 30, Y: 40}, 0, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SampleAmplitudes(ctx, sim, len(p.SITES), 5, 5, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunLocateRecoversEmitter(t *testing.T) {
	p := simParams()
	emitter := trilat.Site{X: 30, Y: 40}
	sim, err := NewSimulator(p, emitter, 0, 1)
	if err != nil {
		t.Fatal(err)
	}

	res, err := RunLocate(context.Background(), sim, p, nil)
	if err != nil {
		t.Fatal(err)
	}
	dx := res.Fix.X - emitter.X
	dy := res.Fix.Y - emitter.Y
	if math.Hypot(dx, dy) > 1.0 {
		t.Fatalf("fix (%g, %g) too far from emitter (%g, %g)", res.Fix.X, res.Fix.Y, emitter.X, emitter.Y)
	}
}

func TestEstimateFromParamsZeroAmplitude(t *testing.T) {
	p := simParams()
	_, err := EstimateFromParams(p, []float64{10, 0, 10, 10})
	if !errors.Is(err, trilat.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTrackEmitsFixes(t *testing.T) {
	p := simParams()
	sim, _ := NewSimulator(p, trilat.Site{X: 30, Y: 40}, 0, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var fixes int
	err := Track(ctx, sim, p, nil, 10*time.Millisecond, func(s TrackSnapshot) {
		if s.Fix != nil && s.Err == "" {
			fixes++
		}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if fixes == 0 {
		t.Fatal("no fixes emitted while tracking")
	}
}

func TestSimulatorSnapshot(t *testing.T) {
	p := simParams()
	sim, _ := NewSimulator(p, trilat.Site{X: 30, Y: 40}, 0, 1)
	amps, err := sim.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(amps) != len(p.SITES) {
		t.Fatalf("got %d amplitudes", len(amps))
	}
	// Closest site hears the loudest signal.
	if !(amps[0] > amps[2]) {
		t.Fatalf("site (0,0) should outhear site (100,100): %v", amps)
	}
}
