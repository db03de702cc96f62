package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"misterwhisper/action"
	"misterwhisper/history"
	"misterwhisper/status"
)

type statusMsg status.Status
type historyMsg []string
type errorMsg struct{ err error }
type settingsMsg struct{ line string }
type tickMsg time.Time

type tuiModel struct {
	st       status.Status
	since    time.Time
	frame    int
	width    int
	height   int
	key      string
	settings string
	recent   []string
	lastErr  string
	errAt    time.Time

	// cycleAction and toggleSilence change settings from the keyboard.
	cycleAction   func()
	toggleSilence func()
}

const (
	tuiRecent  = 5
	errVisible = 10 * time.Second
)

// Pixel styles for the eye, indexed by colour slot.
var (
	pixelColorsRec   = []string{"", "226", "220", "214", "208", "196", "160", "124", "88", "52", "236", "236", "236", "236", "255", "249"}
	pixelColorsTrans = []string{"", "231", "229", "228", "222", "214", "172", "130", "94", "58", "236", "236", "236", "236", "255", "249"}
	pixelColorsIdle  = []string{"", "231", "224", "217", "210", "160", "124", "88", "52", "236", "236", "236", "236", "236", "255", "249"}

	pixelStyles [3][16]lipgloss.Style
	pixelBg     [3][16][16]lipgloss.Style
)

func init() {
	for s, colors := range [][]string{pixelColorsIdle, pixelColorsRec, pixelColorsTrans} {
		for i, fg := range colors {
			if fg == "" {
				continue
			}
			pixelStyles[s][i] = lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
			for j, bg := range colors {
				if bg != "" {
					pixelBg[s][i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(fg)).Background(lipgloss.Color(bg))
				}
			}
		}
	}
}

// runTUI shows the status view until the user quits or ctx ends. Quitting
// from the view calls quit.
func runTUI(ctx context.Context, quit func(), a *app) error {
	m := tuiModel{
		key:      a.currentKey().String(),
		settings: settingsLine(a),
		recent:   a.history.Recent(tuiRecent),
	}
	var p *tea.Program
	m.cycleAction = func() {
		a.setAction(nextAction(a.Store.Get().Mode()))
		go p.Send(settingsMsg{settingsLine(a)})
	}
	m.toggleSilence = func() {
		a.setSilence(!a.Store.Get().Silence)
		go p.Send(settingsMsg{settingsLine(a)})
	}
	p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	unsubStatus := a.status.Subscribe(func(s status.Status) { p.Send(statusMsg(s)) })
	defer unsubStatus()
	unsubHistory := a.history.Subscribe(func(history.Event) {
		p.Send(historyMsg(a.history.Recent(tuiRecent)))
	})
	defer unsubHistory()
	a.Report.OnError(func(err error) { go p.Send(errorMsg{err}) })

	_, err := p.Run()
	quit()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func settingsLine(a *app) string {
	cfg := a.Store.Get()
	silence := "off"
	if cfg.Silence {
		silence = cfg.SilenceDetector
	}
	return fmt.Sprintf("[%s | silence %s | %s]", cfg.Mode(), silence, engineLabel(a))
}

func engineLabel(a *app) string {
	if d := engineDetail(a.Engine); d != "" {
		return a.Engine.Name() + " " + d
	}
	return a.Engine.Name()
}

func nextAction(m action.Mode) action.Mode {
	switch m {
	case action.Paste:
		return action.Type
	case action.Type:
		return action.None
	default:
		return action.Paste
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "a":
			if m.cycleAction != nil {
				m.cycleAction()
			}
		case "s":
			if m.toggleSilence != nil {
				m.toggleSilence()
			}
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case statusMsg:
		if msg.Recording && !m.st.Recording {
			m.since = time.Now()
		}
		m.st = status.Status(msg)

	case historyMsg:
		m.recent = msg

	case errorMsg:
		m.lastErr = msg.err.Error()
		m.errAt = time.Now()

	case settingsMsg:
		m.settings = msg.line
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const eyeWidth = 45
	state := m.st.State()
	eye := renderHALEye(m.frame, state)

	var info []string
	switch state {
	case status.Recording:
		info = append(info, lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true).
			Render(fmt.Sprintf("● REC %.1fs", time.Since(m.since).Seconds())))
	case status.Transcribing:
		info = append(info, lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Render("◌ TRANSCRIBING"))
	default:
		info = append(info, lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Render("○ STANDBY"))
	}
	if m.settings != "" {
		info = append(info, lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(m.settings))
	}
	if m.lastErr != "" && time.Since(m.errAt) < errVisible {
		info = append(info, lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Render("⚠ "+m.lastErr))
	}
	info = append(info, "")

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldStyle := helpStyle.Bold(true)
	info = append(info,
		boldStyle.Render(m.key)+helpStyle.Render(" to record"),
		helpStyle.Render("a action · s silence · q quit"),
		helpStyle.Render("misterwhisper "+version),
	)
	for _, line := range info {
		eye += line + "\n"
	}
	eyeLines := strings.Split(eye, "\n")

	logWidth := max(m.width-eyeWidth-1, 20)
	wrapWidth := max(logWidth-2, 10)

	var right strings.Builder
	if len(m.recent) == 0 {
		right.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Render("No transcriptions yet"))
	} else {
		right.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color("246")).
			Render("Recent transcriptions") + "\n\n")
		latest := lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
		older := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
		for i, text := range m.recent {
			style := older
			if i == 0 {
				style = latest
			}
			for _, line := range wrapText(text, wrapWidth) {
				right.WriteString(style.Render(line) + "\n")
			}
			right.WriteString("\n")
		}
	}

	logPanel := lipgloss.NewStyle().
		Width(logWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(right.String())

	eyePadded := make([]string, m.height)
	for i := range eyePadded {
		if i < len(eyeLines) {
			eyePadded[i] = eyeLines[i]
		} else {
			eyePadded[i] = strings.Repeat(" ", eyeWidth-1)
		}
	}
	eyePanel := lipgloss.NewStyle().
		Width(eyeWidth - 1).
		Height(m.height).
		Render(strings.Join(eyePadded, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, eyePanel, logPanel)
}

func renderHALEye(frame int, state status.State) string {
	const charsW = 44
	const charsH = 15
	const pixW = charsW
	const pixH = charsH * 2

	centerX := float64(pixW) / 2
	centerY := float64(pixH) / 2

	var breathe float64
	switch state {
	case status.Recording:
		breathe = math.Sin(float64(frame)*0.18)*0.06 - 0.02
	case status.Transcribing:
		breathe = math.Sin(float64(frame)*0.30)*0.04 - 0.04
	default:
		breathe = math.Sin(float64(frame)*0.08)*0.02 - 0.05
	}

	pixels := make([][]int, pixH)
	for i := range pixels {
		pixels[i] = make([]int, pixW)
	}

	type ring struct {
		radius     float64
		breatheAmt float64
		colorIdx   int
	}

	rings := []ring{
		{0.6, 0.10, 1},
		{1.3, 0.12, 2},
		{2.0, 0.15, 3},
		{2.8, 0.35, 4}, // red rings: high reactivity
		{3.5, 0.40, 5},
		{4.2, 0.38, 6},
		{5.0, 0.30, 7},
		{5.8, 0.15, 8},
		{6.5, 0.03, 9},
		{7.2, 0.0, 10},
		{8.0, 0.0, 11},
		{10.0, 0.0, 12},
		{12.0, 0.0, 13},
	}

	for y := 0; y < pixH; y++ {
		for x := 0; x < pixW; x++ {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			dist := math.Sqrt(dx*dx + dy*dy)
			for _, r := range rings {
				radius := r.radius + breathe*r.breatheAmt*20
				if radius > 10.0 {
					radius = 10.0
				}
				if dist < radius {
					pixels[y][x] = r.colorIdx
					break
				}
			}
		}
	}

	// Glass reflections
	type spot struct {
		ox, oy float64
		radius float64
		color  int
	}
	dSide := 9.0
	dSide2 := 7.2
	dTop := 10.0
	dTop2 := 8.2
	spots := []spot{
		{-dSide * 0.707, -dSide * 0.707, 0.7, 14},
		{-dSide2 * 0.707, -dSide2 * 0.707, 0.4, 15},
		{0, -dTop, 0.8, 14},
		{0, -dTop2, 0.6, 15},
		{dSide * 0.707, -dSide * 0.707, 0.7, 14},
		{dSide2 * 0.707, -dSide2 * 0.707, 0.4, 15},
		{0, -2.0, 0.6, 14},
	}
	for y := 0; y < pixH; y++ {
		for x := 0; x < pixW; x++ {
			px := float64(x) - centerX
			py := float64(y) - centerY
			for _, s := range spots {
				dx := px - s.ox
				dy := py - s.oy
				rLen := math.Sqrt(s.ox*s.ox + s.oy*s.oy)
				if rLen < 0.001 {
					rLen = 1
				}
				tx, ty := -s.oy/rLen, s.ox/rLen
				dt := dx*tx + dy*ty
				dn := dx*(-ty) + dy*tx
				if (dt*dt)/9.0+dn*dn < s.radius*s.radius {
					pixels[y][x] = s.color
				}
			}
		}
	}

	styles := &pixelStyles[state]
	bgStyles := &pixelBg[state]

	var result strings.Builder
	for cy := 0; cy < charsH; cy++ {
		for cx := 0; cx < charsW; cx++ {
			topY := cy * 2
			botY := cy*2 + 1
			top := 0
			bot := 0
			if topY < pixH {
				top = pixels[topY][cx]
			}
			if botY < pixH {
				bot = pixels[botY][cx]
			}
			if top == 0 && bot == 0 {
				result.WriteString(" ")
			} else if top == bot {
				result.WriteString(styles[top].Render("█"))
			} else if top != 0 && bot == 0 {
				result.WriteString(styles[top].Render("▀"))
			} else if top == 0 && bot != 0 {
				result.WriteString(styles[bot].Render("▄"))
			} else {
				result.WriteString(bgStyles[top][bot].Render("▀"))
			}
		}
		result.WriteString("\n")
	}
	return result.String()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
