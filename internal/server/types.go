package server

import "time"

type APIError struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp"`
}

type UploadResponse struct {
	ConfigID string `json:"configId"`
	Kind     string `json:"kind"`
}

type ConnectRequest struct {
	ConfigID string `json:"configId"`
}

type ConnectResponse struct {
	Connected bool   `json:"connected"`
	Port      string `json:"port"`
	Sites     int    `json:"sites"`
}

// EstimateRequest is the one-shot, device-free solve: geometry and readings
// in, fix out.
type EstimateRequest struct {
	Sites      [][2]float64 `json:"sites"`
	Amplitudes []float64    `json:"amplitudes"`
	Guess      [2]float64   `json:"guess"`
	Scale      float64      `json:"scale,omitempty"`
}

type EstimateResponse struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Residual   float64 `json:"residual"`
	Iterations int     `json:"iterations"`
}

type LiveStartRequest struct {
	IntervalMs int `json:"intervalMs,omitempty"`
	FloorAvg   int `json:"floorAvg,omitempty"`
}
