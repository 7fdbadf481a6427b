package modern

import (
	"context"
	"fmt"
	"time"

	"github.com/CK6170/Locrunrilla-go/models"
	"github.com/CK6170/Locrunrilla-go/trilat"
)

type LocatePhase string

const (
	LocatePhaseSampling LocatePhase = "sampling"
	LocatePhaseSolving  LocatePhase = "solving"
	LocatePhaseFinished LocatePhase = "finished"
)

type LocateUpdate struct {
	Phase  LocatePhase
	Sample *SampleUpdate
	Fix    *trilat.Fix
}

type LocateResult struct {
	Amplitudes []float64
	Fix        trilat.Fix
}

// EstimateFromParams runs the solver with the geometry, guess and scale from
// the config. Pure; no device involved.
func EstimateFromParams(p *models.PARAMETERS, amplitudes []float64) (trilat.Fix, error) {
	if p == nil {
		return trilat.Fix{}, fmt.Errorf("parameters nil")
	}
	if p.GUESS == nil {
		return trilat.Fix{}, fmt.Errorf("missing GUESS section")
	}
	sites := make([]trilat.Site, len(p.SITES))
	for i, s := range p.SITES {
		sites[i] = trilat.Site{X: s.X, Y: s.Y}
	}
	return trilat.Estimate(sites, amplitudes, trilat.Site{X: p.GUESS.X, Y: p.GUESS.Y}, trilat.Options{Scale: p.SCALE})
}

// RunLocate samples amplitudes from all sites, then solves for the source
// position. Progress flows through onUpdate; nothing is printed.
func RunLocate(ctx context.Context, src RSSISource, p *models.PARAMETERS, onUpdate func(LocateUpdate)) (*LocateResult, error) {
	if p == nil {
		return nil, fmt.Errorf("parameters nil")
	}
	emit := func(u LocateUpdate) {
		if onUpdate != nil {
			onUpdate(u)
		}
	}

	amps, err := SampleAmplitudes(ctx, src, len(p.SITES), p.IGNORE, p.AVG, func(su SampleUpdate) {
		emit(LocateUpdate{Phase: LocatePhaseSampling, Sample: &su})
	})
	if err != nil {
		return nil, err
	}

	emit(LocateUpdate{Phase: LocatePhaseSolving})
	fix, err := EstimateFromParams(p, amps)
	if err != nil {
		return nil, err
	}
	emit(LocateUpdate{Phase: LocatePhaseFinished, Fix: &fix})

	return &LocateResult{Amplitudes: amps, Fix: fix}, nil
}

type FloorProgress struct {
	SampleDone   int
	SampleTarget int
}

// CollectNoiseFloor averages quiet-air counts per site so live tracking can
// report amplitude above the floor instead of raw counts.
func CollectNoiseFloor(ctx context.Context, src RSSISource, nsites, samples int, onProgress func(FloorProgress)) ([]float64, error) {
	if src == nil || nsites <= 0 {
		return nil, fmt.Errorf("no sites to sample")
	}
	if samples <= 0 {
		return nil, fmt.Errorf("samples must be > 0")
	}
	sums := make([]float64, nsites)
	for n := 0; n < samples; n++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		for i := 0; i < nsites; i++ {
			v, err := src.GetRSSI(i)
			if err != nil {
				return nil, fmt.Errorf("site %d: %v", i, err)
			}
			sums[i] += float64(v)
		}
		if onProgress != nil {
			onProgress(FloorProgress{SampleDone: n + 1, SampleTarget: samples})
		}
		time.Sleep(5 * time.Millisecond)
	}
	floor := make([]float64, nsites)
	for i := range floor {
		floor[i] = sums[i] / float64(samples)
	}
	return floor, nil
}

type TrackSnapshot struct {
	At         time.Time
	Amplitudes []float64
	Fix        *trilat.Fix
	Err        string
}

// Track polls all sites at the given interval and re-estimates the source
// each tick, seeding the solver with the previous fix once one exists. A tick
// whose readings cannot be solved (a site at or below the noise floor, or a
// non-converging geometry) is reported in the snapshot and tracking carries on.
func Track(ctx context.Context, src RSSISource, p *models.PARAMETERS, floor []float64, interval time.Duration, onSnap func(TrackSnapshot)) error {
	if p == nil {
		return fmt.Errorf("parameters nil")
	}
	if len(floor) != 0 && len(floor) != len(p.SITES) {
		return fmt.Errorf("floor has %d entries for %d sites", len(floor), len(p.SITES))
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	track := *p
	if p.GUESS != nil {
		g := *p.GUESS
		track.GUESS = &g
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			amps := make([]float64, len(p.SITES))
			readErr := ""
			for i := range p.SITES {
				v, err := src.GetRSSI(i)
				if err != nil {
					readErr = fmt.Sprintf("site %d: %v", i, err)
					break
				}
				a := float64(v)
				if len(floor) > 0 {
					a -= floor[i]
				}
				if a < 0 {
					a = 0
				}
				amps[i] = a
			}
			snap := TrackSnapshot{At: time.Now(), Amplitudes: amps}
			if readErr != "" {
				snap.Err = readErr
			} else if fix, err := EstimateFromParams(&track, amps); err != nil {
				snap.Err = err.Error()
			} else {
				snap.Fix = &fix
				track.GUESS.X = fix.X
				track.GUESS.Y = fix.Y
			}
			if onSnap != nil {
				onSnap(snap)
			}
		}
	}
}
