package modern

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/CK6170/Locrunrilla-go/models"
	"github.com/CK6170/Locrunrilla-go/trilat"
)

// Simulator stands in for an Array485 when no hardware is on the bench. Each
// poll synthesizes an RSSI count from an inverse-square falloff between the
// emitter and the polled site, with optional multiplicative noise.
type Simulator struct {
	Sites []*models.SITE
	Scale float64
	Noise float64 // relative sigma, 0 disables

	mu      sync.Mutex
	rnd     *rand.Rand
	emitter trilat.Site
}

func NewSimulator(p *models.PARAMETERS, emitter trilat.Site, noise float64, seed int64) (*Simulator, error) {
	if p == nil || len(p.SITES) == 0 {
		return nil, fmt.Errorf("no SITES configured")
	}
	scale := p.SCALE
	if scale <= 0 {
		scale = models.DefaultScale
	}
	return &Simulator{
		Sites:   p.SITES,
		Scale:   scale,
		Noise:   noise,
		rnd:     rand.New(rand.NewSource(seed)),
		emitter: emitter,
	}, nil
}

// MoveEmitter repositions the simulated source, for live-tracking demos.
func (s *Simulator) MoveEmitter(to trilat.Site) {
	s.mu.Lock()
	s.emitter = to
	s.mu.Unlock()
}

// GetRSSI implements RSSISource.
func (s *Simulator) GetRSSI(index int) (uint64, error) {
	if index < 0 || index >= len(s.Sites) {
		return 0, fmt.Errorf("site index %d out of range", index)
	}
	site := s.Sites[index]

	s.mu.Lock()
	defer s.mu.Unlock()
	dist := math.Hypot(s.emitter.X-site.X, s.emitter.Y-site.Y)
	if dist < 1e-3 {
		dist = 1e-3
	}
	// Invert the pseudo-distance model: d = scale/a^2 => a = sqrt(scale/d).
	a := math.Sqrt(s.Scale / dist)
	if s.Noise > 0 {
		a *= 1 + s.Noise*s.rnd.NormFloat64()
	}
	if a < 1 {
		a = 1
	}
	return uint64(math.Round(a)), nil
}

// Snapshot synthesizes one amplitude per site in parallel, one goroutine per
// site like a real multi-drop poll overlapped across ports.
func (s *Simulator) Snapshot() ([]float64, error) {
	amps := make([]float64, len(s.Sites))
	var g errgroup.Group
	for i := range s.Sites {
		g.Go(func() error {
			v, err := s.GetRSSI(i)
			if err != nil {
				return err
			}
			amps[i] = float64(v)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return amps, nil
}
