package models

import "fmt"

// PARAMETERS mirrors the JSON layout of the config file shared with the
// firmware tooling, hence the upper-case field names.
type PARAMETERS struct {
	SERIAL *SERIAL `json:"SERIAL"`
	SITES  []*SITE `json:"SITES"`
	AVG    int     `json:"AVG"`
	IGNORE int     `json:"IGNORE"`
	SCALE  float64 `json:"SCALE"`
	GUESS  *GUESS  `json:"GUESS"`
	DEBUG  bool    `json:"DEBUG"`
}

type SERIAL struct {
	PORT     string `json:"PORT"`
	BAUDRATE int    `json:"BAUDRATE"`
	COMMAND  string `json:"COMMAND"`
}

// SITE is one receiver on the RS-485 bus, at a known survey position.
// Coordinates are meters in the local site frame.
type SITE struct {
	ID int     `json:"ID"`
	X  float64 `json:"X"`
	Y  float64 `json:"Y"`
}

// GUESS seeds the solver. The fit is only as good as the starting point when
// geometry is poor, so the config carries it explicitly.
type GUESS struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
}

// DefaultScale is the amplitude-to-pseudo-distance scale used when SCALE is
// absent from the config.
const DefaultScale = 1000.0

func (p *PARAMETERS) Validate() error {
	if p == nil {
		return fmt.Errorf("parameters nil")
	}
	if p.SERIAL == nil {
		return fmt.Errorf("missing SERIAL section")
	}
	if len(p.SITES) < 2 {
		return fmt.Errorf("need at least 2 SITES, got %d", len(p.SITES))
	}
	seen := make(map[int]bool, len(p.SITES))
	for i, s := range p.SITES {
		if s == nil {
			return fmt.Errorf("SITES[%d] is null", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate site ID %d", s.ID)
		}
		seen[s.ID] = true
	}
	if p.GUESS == nil {
		return fmt.Errorf("missing GUESS section")
	}
	return nil
}
