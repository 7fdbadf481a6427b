package modern

import (
	"context"
	"fmt"
	"time"
)

type SamplePhase string

const (
	SamplePhaseLive      SamplePhase = "live"
	SamplePhaseIgnoring  SamplePhase = "ignoring"
	SamplePhaseAveraging SamplePhase = "averaging"
	SamplePhaseFinished  SamplePhase = "finished"
)

type SampleUpdate struct {
	Phase        SamplePhase
	IgnoreDone   int
	IgnoreTarget int
	AvgDone      int
	AvgTarget    int
	// Current raw counts, one per site
	Current []uint64
	// Final averaged amplitudes when Phase == finished, one per site
	Final []float64
}

// RSSISource is anything that can be polled for a per-site amplitude count.
// Array485 satisfies it; the simulator does too.
type RSSISource interface {
	GetRSSI(index int) (uint64, error)
}

// SampleAmplitudes performs the ignore+average sampling flow shared by every
// front end: a number of discarded warm-up sweeps while the AGC settles, then
// averaged sweeps that produce one amplitude per site. It is UI-agnostic and
// cancellable.
func SampleAmplitudes(
	ctx context.Context,
	src RSSISource,
	nsites int,
	ignoreTarget int,
	avgTarget int,
	onUpdate func(SampleUpdate),
) ([]float64, error) {
	if src == nil || nsites <= 0 {
		return nil, fmt.Errorf("no sites to sample")
	}
	if ignoreTarget < 0 {
		ignoreTarget = 0
	}
	if avgTarget <= 0 {
		return nil, fmt.Errorf("avgTarget must be > 0")
	}

	phase := SamplePhaseLive
	ignoreDone := 0
	avgDone := 0

	sums := make([]float64, nsites)
	counts := make([]int64, nsites)

	sweep := func() []uint64 {
		cur := make([]uint64, nsites)
		for i := 0; i < nsites; i++ {
			if v, err := src.GetRSSI(i); err == nil {
				cur[i] = v
			}
		}
		return cur
	}

	// initial live tick
	if onUpdate != nil {
		onUpdate(SampleUpdate{
			Phase:        phase,
			IgnoreDone:   ignoreDone,
			IgnoreTarget: ignoreTarget,
			AvgDone:      avgDone,
			AvgTarget:    avgTarget,
			Current:      sweep(),
		})
	}

	// ignore phase
	phase = SamplePhaseIgnoring
	for ignoreDone < ignoreTarget {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		cur := sweep()
		ignoreDone++
		if onUpdate != nil {
			onUpdate(SampleUpdate{
				Phase:        phase,
				IgnoreDone:   ignoreDone,
				IgnoreTarget: ignoreTarget,
				AvgDone:      0,
				AvgTarget:    avgTarget,
				Current:      cur,
			})
		}
		time.Sleep(5 * time.Millisecond)
	}

	// averaging phase
	phase = SamplePhaseAveraging
	for avgDone < avgTarget {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		cur := sweep()
		avgDone++
		for i := 0; i < nsites; i++ {
			sums[i] += float64(cur[i])
			counts[i]++
		}
		if onUpdate != nil {
			onUpdate(SampleUpdate{
				Phase:        phase,
				IgnoreDone:   ignoreTarget,
				IgnoreTarget: ignoreTarget,
				AvgDone:      avgDone,
				AvgTarget:    avgTarget,
				Current:      cur,
			})
		}
		time.Sleep(5 * time.Millisecond)
	}

	final := make([]float64, nsites)
	for i := 0; i < nsites; i++ {
		if counts[i] > 0 {
			final[i] = sums[i] / float64(counts[i])
		}
	}

	if onUpdate != nil {
		onUpdate(SampleUpdate{
			Phase:        SamplePhaseFinished,
			IgnoreDone:   ignoreTarget,
			IgnoreTarget: ignoreTarget,
			AvgDone:      avgTarget,
			AvgTarget:    avgTarget,
			Current:      nil,
			Final:        final,
		})
	}

	return final, nil
}
