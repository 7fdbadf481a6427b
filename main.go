package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/CK6170/Locrunrilla-go/models"
	"github.com/CK6170/Locrunrilla-go/modern"
	"github.com/CK6170/Locrunrilla-go/trilat"
	"github.com/CK6170/Locrunrilla-go/ui"
)

func main() {
	var (
		configPath = flag.String("config", "config.json", "path to parameters json")
		simFlag    = flag.Bool("sim", false, "run against the built-in emitter simulator")
		simX       = flag.Float64("simx", 0, "simulated emitter x")
		simY       = flag.Float64("simy", 0, "simulated emitter y")
		simNoise   = flag.Float64("simnoise", 0.05, "simulator amplitude noise sigma")
		live       = flag.Bool("live", false, "track continuously instead of a one-shot locate")
		outPath    = flag.String("out", "", "where to write the located json (default <config>_located.json)")
	)
	flag.Parse()

	p, err := modern.LoadParameters(*configPath)
	if err != nil {
		log.Fatalf("load %s: %v", *configPath, err)
	}
	debugPrintf(p.DEBUG, "loaded %d sites, scale %g\n", len(p.SITES), p.SCALE)

	var src modern.RSSISource
	simMode := *simFlag || strings.EqualFold(strings.TrimSpace(p.SERIAL.PORT), "sim")
	if simMode {
		emitter := trilat.Site{X: *simX, Y: *simY}
		sim, err := modern.NewSimulator(p, emitter, *simNoise, time.Now().UnixNano())
		if err != nil {
			log.Fatal(err)
		}
		warningPrintf("simulator mode: emitter at (%g, %g)\n", emitter.X, emitter.Y)
		src = sim
	} else {
		if changed, err := modern.EnsureSerialPort(*configPath, p, true); err != nil {
			log.Fatal(err)
		} else if changed {
			greenPrintf("auto-detected port %s\n", p.SERIAL.PORT)
		}
		sess, err := modern.Connect(p)
		if err != nil {
			log.Fatal(err)
		}
		defer sess.Close()
		if err := modern.ProbeVersion(sess); err != nil {
			log.Fatalf("version probe failed: %v", err)
		}
		src = sess.Array
	}

	if *live {
		// The simulator synthesizes signal, not quiet air, so a floor
		// measured against it would swallow the signal itself.
		if err := runLive(src, p, !simMode); err != nil && err != context.Canceled {
			log.Fatal(err)
		}
		return
	}

	res, err := modern.RunLocate(context.Background(), src, p, func(u modern.LocateUpdate) {
		if u.Sample != nil && u.Sample.Phase == modern.SamplePhaseAveraging {
			fmt.Printf("\rsampling %d/%d", u.Sample.AvgDone, u.Sample.AvgTarget)
		}
		if u.Phase == modern.LocatePhaseSolving {
			fmt.Printf("\rsolving...          \n")
		}
	})
	if err != nil {
		fmt.Println()
		log.Fatal(err)
	}

	greenPrintf("fix: (%.3f, %.3f)\n", res.Fix.X, res.Fix.Y)
	fmt.Printf("residual %.4g after %d iterations\n", res.Fix.Residual, res.Fix.Iterations)

	out := *outPath
	if out == "" {
		out = modern.LocatedPath(*configPath)
	}
	if err := modern.SaveLocatedJSON(out, p, res); err != nil {
		log.Fatalf("save %s: %v", out, err)
	}
	fmt.Printf("wrote %s\n", out)
}

// runLive tracks continuously until q or Esc is pressed.
func runLive(src modern.RSSISource, p *models.PARAMETERS, withFloor bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var floor []float64
	if withFloor {
		fmt.Printf("collecting noise floor over %d samples...\n", p.AVG)
		var err error
		floor, err = modern.CollectNoiseFloor(ctx, src, len(p.SITES), p.AVG, nil)
		if err != nil {
			return err
		}
	}

	keys := ui.StartKeyEvents()
	ui.DrainKeys()
	go func() {
		for k := range keys {
			if k == 'q' || k == 27 {
				cancel()
				return
			}
		}
	}()

	clearScreen()
	fmt.Println("tracking; press q to stop")
	return modern.Track(ctx, src, p, floor, 250*time.Millisecond, func(snap modern.TrackSnapshot) {
		if snap.Err != "" {
			warningPrintf("\r%s                    ", snap.Err)
			return
		}
		if snap.Fix != nil {
			fmt.Printf("\rfix (%8.3f, %8.3f)  residual %.4g   ", snap.Fix.X, snap.Fix.Y, snap.Fix.Residual)
		}
	})
}
