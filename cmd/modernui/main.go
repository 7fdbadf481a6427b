package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/CK6170/Locrunrilla-go/models"
	"github.com/CK6170/Locrunrilla-go/modern"
	"github.com/CK6170/Locrunrilla-go/trilat"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type screen int

const (
	screenEntry screen = iota
	screenLocate
	screenLive
)

type modeStatus int

const (
	statusIdle modeStatus = iota
	statusRunning
	statusDone
	statusError
)

type model struct {
	scr screen

	// entry
	configInput textinput.Model
	configPath  string

	// connection
	params   *models.PARAMETERS
	sess     *modern.Session
	src      modern.RSSISource
	simMode  bool
	lastErr  error
	infoLine string

	// locate state
	locStatus modeStatus
	locSample *modern.SampleUpdate
	locResult *modern.LocateResult
	locCh     chan tea.Msg

	// live state
	liveStatus modeStatus
	liveSnap   *modern.TrackSnapshot
	liveCh     chan tea.Msg

	// cancellation for long-running mode work
	modeCtx    context.Context
	modeCancel context.CancelFunc
	runID      int
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func initialModel() model {
	in := textinput.New()
	in.Placeholder = "Path to config.json"
	in.Focus()
	in.CharLimit = 512
	in.Width = 60

	m := model{
		scr:         screenEntry,
		configInput: in,
	}
	// support passing config path as arg
	if len(os.Args) > 1 && strings.TrimSpace(os.Args[1]) != "" {
		m.configInput.SetValue(os.Args[1])
		m.configInput.CursorEnd()
	}
	return m
}

type errMsg struct{ err error }
type infoMsg struct{ s string }
type connectedMsg struct {
	params     *models.PARAMETERS
	sess       *modern.Session
	src        modern.RSSISource
	sim        bool
	configPath string
}
type locUpdateMsg struct {
	runID int
	u     modern.LocateUpdate
}
type locDoneMsg struct {
	runID int
	res   *modern.LocateResult
	err   error
}
type liveSnapMsg struct {
	runID int
	snap  modern.TrackSnapshot
}
type liveStoppedMsg struct {
	runID int
	err   error
}

func (m model) Init() tea.Cmd { return textinput.Blink }

func connectCmd(path string) tea.Cmd {
	return func() tea.Msg {
		p, err := modern.LoadParameters(path)
		if err != nil {
			return errMsg{err}
		}
		// PORT "sim" runs against the built-in emitter simulator.
		if strings.EqualFold(strings.TrimSpace(p.SERIAL.PORT), "sim") {
			emitter := trilat.Site{X: p.GUESS.X, Y: p.GUESS.Y}
			sim, err := modern.NewSimulator(p, emitter, 0.05, time.Now().UnixNano())
			if err != nil {
				return errMsg{err}
			}
			return connectedMsg{params: p, src: sim, sim: true, configPath: path}
		}
		if _, err := modern.EnsureSerialPort(path, p, false); err != nil {
			return errMsg{err}
		}
		sess, err := modern.Connect(p)
		if err != nil {
			return errMsg{err}
		}
		if err := modern.ProbeVersion(sess); err != nil {
			sess.Close()
			return errMsg{fmt.Errorf("version probe failed: %v", err)}
		}
		return connectedMsg{params: p, sess: sess, src: sess.Array, configPath: path}
	}
}

func waitCh(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-ch }
}

func (m *model) startLocate() tea.Cmd {
	m.cancelMode()
	ctx, cancel := context.WithCancel(context.Background())
	m.modeCtx, m.modeCancel = ctx, cancel
	m.runID++
	runID := m.runID
	m.locStatus = statusRunning
	m.locSample = nil
	m.locResult = nil
	m.lastErr = nil
	ch := make(chan tea.Msg, 32)
	m.locCh = ch

	p := m.params
	src := m.src
	go func() {
		res, err := modern.RunLocate(ctx, src, p, func(u modern.LocateUpdate) {
			select {
			case ch <- locUpdateMsg{runID: runID, u: u}:
			default:
			}
		})
		ch <- locDoneMsg{runID: runID, res: res, err: err}
	}()
	return waitCh(ch)
}

func (m *model) startLive() tea.Cmd {
	m.cancelMode()
	ctx, cancel := context.WithCancel(context.Background())
	m.modeCtx, m.modeCancel = ctx, cancel
	m.runID++
	runID := m.runID
	m.liveStatus = statusRunning
	m.liveSnap = nil
	m.lastErr = nil
	ch := make(chan tea.Msg, 32)
	m.liveCh = ch

	p := m.params
	src := m.src
	go func() {
		err := modern.Track(ctx, src, p, nil, 250*time.Millisecond, func(snap modern.TrackSnapshot) {
			select {
			case ch <- liveSnapMsg{runID: runID, snap: snap}:
			default:
			}
		})
		ch <- liveStoppedMsg{runID: runID, err: err}
	}()
	return waitCh(ch)
}

func (m *model) cancelMode() {
	if m.modeCancel != nil {
		m.modeCancel()
		m.modeCancel = nil
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancelMode()
			if m.sess != nil {
				m.sess.Close()
			}
			return m, tea.Quit
		}
		switch m.scr {
		case screenEntry:
			switch msg.String() {
			case "enter":
				path := strings.TrimSpace(m.configInput.Value())
				if path == "" {
					m.lastErr = fmt.Errorf("enter a config path")
					return m, nil
				}
				m.infoLine = "connecting..."
				return m, connectCmd(path)
			case "q", "esc":
				return m, tea.Quit
			}
		case screenLocate:
			switch msg.String() {
			case "enter", "r":
				if m.locStatus != statusRunning {
					return m, m.startLocate()
				}
			case "s":
				if m.locStatus == statusRunning {
					m.cancelMode()
				}
			case "l":
				m.scr = screenLive
				return m, nil
			case "esc":
				m.cancelMode()
				m.scr = screenEntry
				return m, nil
			}
		case screenLive:
			switch msg.String() {
			case "enter", "r":
				if m.liveStatus != statusRunning {
					return m, m.startLive()
				}
			case "s":
				if m.liveStatus == statusRunning {
					m.cancelMode()
				}
			case "esc":
				m.cancelMode()
				m.liveStatus = statusIdle
				m.scr = screenLocate
				return m, nil
			}
		}

	case errMsg:
		m.lastErr = msg.err
		m.infoLine = ""
		if m.scr == screenLocate {
			m.locStatus = statusError
		}
		return m, nil

	case infoMsg:
		m.infoLine = msg.s
		return m, nil

	case connectedMsg:
		m.params = msg.params
		m.sess = msg.sess
		m.src = msg.src
		m.simMode = msg.sim
		m.configPath = msg.configPath
		m.lastErr = nil
		if msg.sim {
			m.infoLine = "connected (simulator)"
		} else {
			m.infoLine = fmt.Sprintf("connected on %s", msg.params.SERIAL.PORT)
		}
		m.scr = screenLocate
		return m, nil

	case locUpdateMsg:
		if msg.runID != m.runID {
			return m, nil
		}
		if msg.u.Sample != nil {
			m.locSample = msg.u.Sample
		}
		return m, waitCh(m.locCh)

	case locDoneMsg:
		if msg.runID != m.runID {
			return m, nil
		}
		if errors.Is(msg.err, context.Canceled) {
			m.locStatus = statusIdle
			return m, nil
		}
		if msg.err != nil {
			m.lastErr = msg.err
			m.locStatus = statusError
			return m, nil
		}
		m.locResult = msg.res
		m.locStatus = statusDone
		if m.configPath != "" {
			_ = modern.SaveLocatedJSON(modern.LocatedPath(m.configPath), m.params, msg.res)
		}
		return m, nil

	case liveSnapMsg:
		if msg.runID != m.runID {
			return m, nil
		}
		snap := msg.snap
		m.liveSnap = &snap
		return m, waitCh(m.liveCh)

	case liveStoppedMsg:
		if msg.runID != m.runID {
			return m, nil
		}
		if m.liveStatus == statusRunning {
			m.liveStatus = statusIdle
		}
		return m, nil
	}

	if m.scr == screenEntry {
		var cmd tea.Cmd
		m.configInput, cmd = m.configInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	switch m.scr {
	case screenEntry:
		b.WriteString(titleStyle.Render("Locrunrilla") + "\n\n")
		b.WriteString(m.configInput.View() + "\n\n")
		b.WriteString(helpStyle.Render("enter: connect  •  q: quit") + "\n")
	case screenLocate:
		b.WriteString(titleStyle.Render("Locate") + "\n\n")
		b.WriteString(m.connectionLine() + "\n\n")
		switch m.locStatus {
		case statusRunning:
			b.WriteString("sampling " + sampleLine(m.locSample) + "\n")
		case statusDone:
			if m.locResult != nil {
				f := m.locResult.Fix
				b.WriteString(okStyle.Render(fmt.Sprintf("fix: (%.3f, %.3f)", f.X, f.Y)) + "\n")
				b.WriteString(fmt.Sprintf("residual %.4g after %d iterations\n", f.Residual, f.Iterations))
				b.WriteString(fmt.Sprintf("amplitudes: %s\n", ampLine(m.locResult.Amplitudes)))
			}
		}
		b.WriteString("\n" + helpStyle.Render("enter: locate  •  s: stop  •  l: live  •  esc: back") + "\n")
	case screenLive:
		b.WriteString(titleStyle.Render("Live tracking") + "\n\n")
		b.WriteString(m.connectionLine() + "\n\n")
		if m.liveStatus == statusRunning {
			if m.liveSnap == nil {
				b.WriteString("waiting for first fix...\n")
			} else if m.liveSnap.Err != "" {
				b.WriteString(errStyle.Render("tick: "+m.liveSnap.Err) + "\n")
			} else if m.liveSnap.Fix != nil {
				f := m.liveSnap.Fix
				b.WriteString(okStyle.Render(fmt.Sprintf("fix: (%.3f, %.3f)", f.X, f.Y)) + "\n")
				b.WriteString(fmt.Sprintf("amplitudes: %s\n", ampLine(m.liveSnap.Amplitudes)))
			}
		} else {
			b.WriteString("stopped\n")
		}
		b.WriteString("\n" + helpStyle.Render("enter: start  •  s: stop  •  esc: back") + "\n")
	}
	if m.infoLine != "" {
		b.WriteString("\n" + m.infoLine + "\n")
	}
	if m.lastErr != nil {
		b.WriteString("\n" + errStyle.Render("error: "+m.lastErr.Error()) + "\n")
	}
	return b.String()
}

func (m model) connectionLine() string {
	if m.params == nil {
		return "not connected"
	}
	mode := "serial"
	if m.simMode {
		mode = "simulator"
	}
	return fmt.Sprintf("%d sites (%s), scale %g", len(m.params.SITES), mode, m.params.SCALE)
}

func sampleLine(u *modern.SampleUpdate) string {
	if u == nil {
		return ""
	}
	switch u.Phase {
	case modern.SamplePhaseIgnoring:
		return fmt.Sprintf("[ignore %d/%d]", u.IgnoreDone, u.IgnoreTarget)
	case modern.SamplePhaseAveraging:
		return fmt.Sprintf("[avg %d/%d]", u.AvgDone, u.AvgTarget)
	default:
		return string(u.Phase)
	}
}

func ampLine(amps []float64) string {
	parts := make([]string, len(amps))
	for i, a := range amps {
		parts[i] = fmt.Sprintf("%.1f", a)
	}
	return strings.Join(parts, " | ")
}

func main() {
	if _, err := tea.NewProgram(initialModel()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
