package modern

import (
	"fmt"

	"github.com/CK6170/Locrunrilla-go/models"
	serialpkg "github.com/CK6170/Locrunrilla-go/serial"
)

type Session struct {
	Params *models.PARAMETERS
	Array  *serialpkg.Array485
}

func Connect(p *models.PARAMETERS) (*Session, error) {
	if p == nil || p.SERIAL == nil {
		return nil, fmt.Errorf("missing SERIAL section")
	}
	arr, err := serialpkg.OpenArray485(p.SERIAL, p.SITES)
	if err != nil {
		return nil, err
	}
	return &Session{Params: p, Array: arr}, nil
}

func (s *Session) Close() error {
	if s == nil || s.Array == nil {
		return nil
	}
	return s.Array.Close()
}

func ProbeVersion(s *Session) error {
	if s == nil || s.Array == nil {
		return fmt.Errorf("not connected")
	}
	_, _, _, err := s.Array.GetVersion(0)
	return err
}
