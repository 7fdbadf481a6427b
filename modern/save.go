package modern

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/CK6170/Locrunrilla-go/models"
	"github.com/CK6170/Locrunrilla-go/trilat"
)

// SaveLocatedJSON writes a _located.json file carrying the fix together with
// the inputs that produced it, so a run can be replayed or plotted later.
// It intentionally does not print to stdout/stderr (UI should surface errors itself).
func SaveLocatedJSON(path string, p *models.PARAMETERS, res *LocateResult) error {
	if p == nil {
		return fmt.Errorf("parameters nil")
	}
	if res == nil {
		return fmt.Errorf("result nil")
	}
	payload := struct {
		SERIAL     *models.SERIAL `json:"SERIAL"`
		SITES      []*models.SITE `json:"SITES"`
		SCALE      float64        `json:"SCALE"`
		GUESS      *models.GUESS  `json:"GUESS"`
		AMPLITUDES []float64      `json:"AMPLITUDES"`
		FIX        trilat.Fix     `json:"FIX"`
		LOCATEDAT  string         `json:"LOCATEDAT"`
	}{
		SERIAL:     p.SERIAL,
		SITES:      p.SITES,
		SCALE:      p.SCALE,
		GUESS:      p.GUESS,
		AMPLITUDES: res.Amplitudes,
		FIX:        res.Fix,
		LOCATEDAT:  time.Now().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
