package serial

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/CK6170/Locrunrilla-go/models"
	goserial "github.com/tarm/serial"
)

// Array485 drives a daisy chain of RSSI receivers over one RS-485 port.
// Site order matches models.PARAMETERS.SITES; the bus is polled one site at a
// time, so all methods taking an index are bus transactions.
type Array485 struct {
	Serial       *goserial.Port
	Sites        []*models.SITE
	SerialConfig *models.SERIAL
}

// OpenArray485 opens the port and wraps it. It never terminates the process;
// callers surface errors themselves.
func OpenArray485(ser *models.SERIAL, sites []*models.SITE) (*Array485, error) {
	if ser == nil {
		return nil, fmt.Errorf("missing SERIAL")
	}
	if ser.PORT == "" {
		return nil, fmt.Errorf("missing SERIAL.PORT")
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("no SITES configured")
	}
	config := &goserial.Config{
		Name:        ser.PORT,
		Baud:        ser.BAUDRATE,
		Parity:      goserial.ParityNone,
		Size:        8,
		StopBits:    goserial.Stop1,
		ReadTimeout: time.Millisecond * 300,
	}
	port, err := goserial.OpenPort(config)
	if err != nil {
		return nil, err
	}
	return &Array485{
		Serial:       port,
		Sites:        sites,
		SerialConfig: ser,
	}, nil
}

func (a *Array485) Close() error { return a.Serial.Close() }

// GetRSSI polls site index for its current amplitude count. The command
// letter comes from the config (default "A") so firmware variants with a
// different register map keep working.
func (a *Array485) GetRSSI(index int) (uint64, error) {
	if index < 0 || index >= len(a.Sites) {
		return 0, fmt.Errorf("site index %d out of range", index)
	}
	payload := a.SerialConfig.COMMAND
	if payload == "" {
		payload = "A"
	}
	cmd := GetCommand(a.Sites[index].ID, []byte(payload))
	response, err := sendCommand(a.Serial, cmd, 200)
	if err != nil {
		return 0, err
	}
	counts, err := parseCounts(response)
	if err != nil {
		return 0, err
	}
	// Multi-channel sites report per-antenna counts; use the strongest.
	best := counts[0]
	for _, c := range counts[1:] {
		if c > best {
			best = c
		}
	}
	return best, nil
}

// GetVersion probes site index with the Version command.
func (a *Array485) GetVersion(index int) (int, int, int, error) {
	cmd := GetCommand(a.Sites[index].ID, []byte("V"))
	response, err := sendCommand(a.Serial, cmd, 200)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("GetVersion error: %v", err)
	}
	versionStart := strings.Index(response, "Version ")
	if versionStart == -1 {
		return 0, 0, 0, fmt.Errorf("no version")
	}
	version := strings.TrimSpace(response[versionStart+8:])
	parts := strings.Split(version, ".")
	if len(parts) < 3 {
		return 0, 0, 0, fmt.Errorf("invalid version")
	}
	id, _ := strconv.Atoi(parts[0])
	major, _ := strconv.Atoi(parts[1])
	minor, _ := strconv.Atoi(parts[2])
	return id, major, minor, nil
}
