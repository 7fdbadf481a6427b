package serial

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	goserial "github.com/tarm/serial"
)

// Bus framing: '@' + two-digit site ID + command payload + CR. Receivers stay
// quiet unless addressed, so one port serves the whole daisy chain.

func GetCommand(siteID int, payload []byte) []byte {
	cmd := make([]byte, 0, 4+len(payload))
	cmd = append(cmd, fmt.Sprintf("@%02d", siteID)...)
	cmd = append(cmd, payload...)
	cmd = append(cmd, '\r')
	return cmd
}

// sendCommand writes cmd and reads the reply until CR or the deadline.
func sendCommand(port *goserial.Port, cmd []byte, timeoutMs int) (string, error) {
	if port == nil {
		return "", fmt.Errorf("port not open")
	}
	if _, err := port.Write(cmd); err != nil {
		return "", err
	}
	return readReply(port, timeoutMs)
}

func readReply(port *goserial.Port, timeoutMs int) (string, error) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	var sb strings.Builder
	buf := make([]byte, 64)
	for time.Now().Before(deadline) {
		n, err := port.Read(buf)
		if n > 0 {
			for _, b := range buf[:n] {
				if b == '\r' || b == '\n' {
					if sb.Len() > 0 {
						return sb.String(), nil
					}
					continue
				}
				sb.WriteByte(b)
			}
		}
		if err != nil {
			// ReadTimeout expiry reports an error with n == 0; keep polling
			// until the overall deadline.
			continue
		}
	}
	if sb.Len() > 0 {
		return sb.String(), nil
	}
	return "", fmt.Errorf("timeout after %dms", timeoutMs)
}

// GetData is the exported variant used by port probing.
func GetData(port *goserial.Port, cmd []byte, timeoutMs int) (string, error) {
	return sendCommand(port, cmd, timeoutMs)
}

// parseCounts parses an amplitude reply of the form "A00123456|00045678|".
// Sites with a single detector report one field; the pipe separators are kept
// for compatibility with the multi-channel firmware.
func parseCounts(response string) ([]uint64, error) {
	body := strings.TrimSpace(response)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty reply")
	}
	// Strip the echoed command letter, if present.
	if body[0] < '0' || body[0] > '9' {
		body = body[1:]
	}
	parts := strings.Split(strings.Trim(body, "|"), "|")
	counts := make([]uint64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad count %q: %v", part, err)
		}
		counts = append(counts, v)
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("no counts in reply %q", response)
	}
	return counts, nil
}
