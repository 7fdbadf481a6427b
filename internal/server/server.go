package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/CK6170/Locrunrilla-go/models"
	serialpkg "github.com/CK6170/Locrunrilla-go/serial"
	"github.com/CK6170/Locrunrilla-go/trilat"
)

type DeviceSession struct {
	mu sync.Mutex

	configID string
	params   *models.PARAMETERS
	array    *serialpkg.Array485

	// One active operation at a time
	opCancel func()
	opKind   string
}

type Server struct {
	mux *http.ServeMux

	store *ConfigStore
	dev   *DeviceSession

	// WebSocket hubs
	wsLocate *WSHub
	wsLive   *WSHub
}

func New() *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		store:    NewConfigStore(),
		dev:      &DeviceSession{},
		wsLocate: NewWSHub(),
		wsLive:   NewWSHub(),
	}

	// API
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/upload/config", s.handleUploadConfig)
	s.mux.HandleFunc("/api/connect", s.handleConnect)
	s.mux.HandleFunc("/api/disconnect", s.handleDisconnect)
	s.mux.HandleFunc("/api/download", s.handleDownload)

	s.mux.HandleFunc("/api/estimate", s.handleEstimate)

	s.mux.HandleFunc("/api/locate/start", s.handleLocateStart)
	s.mux.HandleFunc("/api/locate/stop", s.handleStopOp)

	s.mux.HandleFunc("/api/live/start", s.handleLiveStart)
	s.mux.HandleFunc("/api/live/stop", s.handleStopOp)

	// WS
	s.mux.HandleFunc("/ws/locate", s.handleWSLocate)
	s.mux.HandleFunc("/ws/live", s.handleWSLive)

	// Static frontend
	s.mux.Handle("/", http.FileServer(http.Dir("./web")))

	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	b, err := io.ReadAll(io.LimitReader(r.Body, 2<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, 200, HealthResponse{OK: true, Timestamp: time.Now()})
}

func (s *Server) handleUploadConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	f, _, err := fileFromMultipart(r, "file")
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, 4<<20))
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	p, err := decodeParameters(raw)
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	rec, err := s.store.Put(kindConfig, raw, p)
	if err != nil {
		s.writeJSON(w, 500, APIError{Error: err.Error()})
		return
	}
	s.writeJSON(w, 200, UploadResponse{ConfigID: rec.ID, Kind: string(kindConfig)})
}

func fileFromMultipart(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return nil, nil, err
	}
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return nil, nil, err
	}
	return f, hdr, nil
}

func decodeParameters(raw []byte) (*models.PARAMETERS, error) {
	var p models.PARAMETERS
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.IGNORE <= 0 {
		p.IGNORE = p.AVG
	}
	if p.SCALE <= 0 {
		p.SCALE = models.DefaultScale
	}
	return &p, nil
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req ConnectRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	rec, ok := s.store.Get(req.ConfigID)
	if !ok || rec.Kind != kindConfig {
		s.writeJSON(w, 404, APIError{Error: "configId not found (upload config.json first)"})
		return
	}

	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()

	s.dev.cancelLocked()
	_ = s.dev.disconnectLocked()

	// Ensure port
	if strings.TrimSpace(rec.P.SERIAL.PORT) == "" {
		port := serialpkg.AutoDetectPort(rec.P)
		if port == "" {
			s.writeJSON(w, 400, APIError{Error: "could not auto-detect serial port"})
			return
		}
		rec.P.SERIAL.PORT = port
	}

	arr, err := openArray(rec.P.SERIAL, rec.P.SITES)
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	// Probe
	if _, _, _, err := arr.GetVersion(0); err != nil {
		_ = arr.Close()
		s.writeJSON(w, 400, APIError{Error: "receiver version probe failed: " + err.Error()})
		return
	}

	s.dev.configID = rec.ID
	s.dev.params = rec.P
	s.dev.array = arr

	s.writeJSON(w, 200, ConnectResponse{
		Connected: true,
		Port:      rec.P.SERIAL.PORT,
		Sites:     len(rec.P.SITES),
	})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	s.dev.cancelLocked()
	_ = s.dev.disconnectLocked()
	s.writeJSON(w, 200, map[string]bool{"ok": true})
}

func (s *Server) handleStopOp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	s.dev.cancelLocked()
	s.writeJSON(w, 200, map[string]bool{"ok": true})
}

func (d *DeviceSession) cancelLocked() {
	if d.opCancel != nil {
		d.opCancel()
		d.opCancel = nil
		d.opKind = ""
	}
}

func (d *DeviceSession) disconnectLocked() error {
	if d.array != nil {
		_ = d.array.Close()
	}
	d.array = nil
	d.params = nil
	d.configID = ""
	return nil
}

// handleEstimate is the pure solve: no device, no session, one POST in, one
// fix out.
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req EstimateRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	sites := make([]trilat.Site, len(req.Sites))
	for i, xy := range req.Sites {
		sites[i] = trilat.Site{X: xy[0], Y: xy[1]}
	}
	fix, err := trilat.Estimate(sites, req.Amplitudes, trilat.Site{X: req.Guess[0], Y: req.Guess[1]}, trilat.Options{Scale: req.Scale})
	if err != nil {
		status := 500
		if errors.Is(err, trilat.ErrInvalidInput) {
			status = 400
		} else if errors.Is(err, trilat.ErrNoConvergence) {
			status = 422
		}
		s.writeJSON(w, status, APIError{Error: err.Error()})
		return
	}
	s.writeJSON(w, 200, EstimateResponse{
		X:          fix.X,
		Y:          fix.Y,
		Residual:   fix.Residual,
		Iterations: fix.Iterations,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeJSON(w, 400, APIError{Error: "missing id"})
		return
	}
	rec, ok := s.store.Get(id)
	if !ok {
		s.writeJSON(w, 404, APIError{Error: "not found"})
		return
	}
	name := "config.json"
	if rec.Kind == kindLocated {
		name = "located.json"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(name)))
	w.WriteHeader(200)
	_, _ = w.Write(rec.Raw)
}
