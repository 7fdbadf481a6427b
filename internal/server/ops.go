package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/CK6170/Locrunrilla-go/models"
	"github.com/CK6170/Locrunrilla-go/modern"
	"github.com/CK6170/Locrunrilla-go/trilat"
)

func (s *Server) handleLocateStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	s.dev.mu.Lock()
	if s.dev.array == nil || s.dev.params == nil {
		s.dev.mu.Unlock()
		s.writeJSON(w, 400, APIError{Error: "not connected"})
		return
	}
	s.dev.cancelLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.dev.opCancel = cancel
	s.dev.opKind = "locate"
	arr := s.dev.array
	p := s.dev.params
	s.dev.mu.Unlock()

	go func() {
		res, err := modern.RunLocate(ctx, arr, p, func(u modern.LocateUpdate) {
			switch u.Phase {
			case modern.LocatePhaseSampling:
				s.wsLocate.Broadcast(WSMessage{Type: "sample", Data: u.Sample})
			case modern.LocatePhaseSolving:
				s.wsLocate.Broadcast(WSMessage{Type: "solving"})
			}
		})
		if err != nil {
			s.wsLocate.Broadcast(WSMessage{Type: "error", Data: map[string]string{"error": err.Error()}})
			return
		}

		// Keep the located record so the UI can download it later.
		raw, err := encodeLocatedJSON(p, res)
		if err != nil {
			s.wsLocate.Broadcast(WSMessage{Type: "error", Data: map[string]string{"error": err.Error()}})
			return
		}
		rec, err := s.store.Put(kindLocated, raw, p)
		if err != nil {
			s.wsLocate.Broadcast(WSMessage{Type: "error", Data: map[string]string{"error": err.Error()}})
			return
		}

		s.wsLocate.Broadcast(WSMessage{
			Type: "done",
			Data: map[string]interface{}{
				"fix":        res.Fix,
				"amplitudes": res.Amplitudes,
				"locatedId":  rec.ID,
			},
		})
	}()

	s.writeJSON(w, 200, map[string]bool{"ok": true})
}

func encodeLocatedJSON(p *models.PARAMETERS, res *modern.LocateResult) ([]byte, error) {
	payload := struct {
		SITES      []*models.SITE `json:"SITES"`
		SCALE      float64        `json:"SCALE"`
		GUESS      *models.GUESS  `json:"GUESS"`
		AMPLITUDES []float64      `json:"AMPLITUDES"`
		FIX        trilat.Fix     `json:"FIX"`
	}{
		SITES:      p.SITES,
		SCALE:      p.SCALE,
		GUESS:      p.GUESS,
		AMPLITUDES: res.Amplitudes,
		FIX:        res.Fix,
	}
	return json.MarshalIndent(payload, "", "  ")
}

func (s *Server) handleLiveStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req LiveStartRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}

	s.dev.mu.Lock()
	if s.dev.array == nil || s.dev.params == nil {
		s.dev.mu.Unlock()
		s.writeJSON(w, 400, APIError{Error: "not connected"})
		return
	}
	s.dev.cancelLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.dev.opCancel = cancel
	s.dev.opKind = "live"
	arr := s.dev.array
	p := s.dev.params
	s.dev.mu.Unlock()

	interval := 250 * time.Millisecond
	if req.IntervalMs > 0 {
		interval = time.Duration(req.IntervalMs) * time.Millisecond
	}
	floorAvg := req.FloorAvg
	if floorAvg <= 0 {
		floorAvg = p.AVG
	}

	go func() {
		floor, err := modern.CollectNoiseFloor(ctx, arr, len(p.SITES), floorAvg, func(fp modern.FloorProgress) {
			s.wsLive.Broadcast(WSMessage{Type: "floorProgress", Data: fp})
		})
		if err != nil {
			s.wsLive.Broadcast(WSMessage{Type: "error", Data: map[string]string{"error": err.Error()}})
			return
		}
		s.wsLive.Broadcast(WSMessage{Type: "floorDone"})

		err = modern.Track(ctx, arr, p, floor, interval, func(snap modern.TrackSnapshot) {
			s.wsLive.Broadcast(WSMessage{Type: "snapshot", Data: snap})
		})
		if err == context.Canceled {
			s.wsLive.Broadcast(WSMessage{Type: "stopped"})
			return
		}
		if err != nil {
			s.wsLive.Broadcast(WSMessage{Type: "error", Data: map[string]string{"error": err.Error()}})
		}
	}()

	s.writeJSON(w, 200, map[string]bool{"ok": true})
}
