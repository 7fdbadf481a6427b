package server

import (
	"fmt"

	"github.com/CK6170/Locrunrilla-go/models"
	serialpkg "github.com/CK6170/Locrunrilla-go/serial"
)

// openArray opens the serial port and wraps it, validating the config the way
// the CLI does before it ever touches the bus.
func openArray(ser *models.SERIAL, sites []*models.SITE) (*serialpkg.Array485, error) {
	if ser == nil {
		return nil, fmt.Errorf("missing SERIAL")
	}
	if ser.PORT == "" {
		return nil, fmt.Errorf("missing SERIAL.PORT")
	}
	if len(sites) < 2 {
		return nil, fmt.Errorf("need at least 2 SITES, got %d", len(sites))
	}
	seen := make(map[int]bool, len(sites))
	for _, site := range sites {
		if seen[site.ID] {
			return nil, fmt.Errorf("duplicate site ID %d", site.ID)
		}
		seen[site.ID] = true
	}
	return serialpkg.OpenArray485(ser, sites)
}
