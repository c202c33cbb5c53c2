// Package tui provides the Bubble Tea preset control interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/oscreplay/internal/model"
	"github.com/verte-zerg/oscreplay/internal/playback"
)

// Controller is the preset control surface the UI drives.
type Controller interface {
	SelectFile(index int, path string) error
	SetLoop(index int, enabled bool) error
	Start(index int) error
	Stop(index int) error
	StopAll()
	Snapshot(index int) (model.Preset, error)
}

// Recorder stores finished runs.
type Recorder interface {
	InsertRun(ctx context.Context, run model.RunSummary) (int64, error)
}

const (
	fileColumnWidth = 32
	barWidth        = 30

	// A session reports sending until its finished event is delivered.
	finishRefreshDelay = 50 * time.Millisecond
)

type refreshMsg struct{}

func refreshAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return refreshMsg{} })
}

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	sendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	modalStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 2)
	errorModalStyle = modalStyle.Copy().BorderForeground(lipgloss.Color("#FF4D4F"))
)

type row struct {
	sent    int
	total   int
	lastRun string
	bar     progress.Model
}

// Model implements the Bubble Tea preset UI.
type Model struct {
	ctrl     Controller
	recorder Recorder
	logger   *log.Logger
	endpoint string

	rows     [model.NumPresets]row
	selected int

	width  int
	height int

	inputMode bool
	pathInput textinput.Model

	errs []string
}

// NewModel constructs the preset UI. recorder may be nil.
func NewModel(ctrl Controller, recorder Recorder, logger *log.Logger, endpoint string) *Model {
	if logger == nil {
		logger = log.Default()
	}
	m := &Model{
		ctrl:     ctrl,
		recorder: recorder,
		logger:   logger,
		endpoint: endpoint,
	}
	for i := range m.rows {
		m.rows[i].bar = progress.New(
			progress.WithSolidFill("#C89A3A"),
			progress.WithoutPercentage(),
			progress.WithWidth(barWidth),
		)
	}
	m.pathInput = textinput.New()
	m.pathInput.Prompt = "Path: "
	m.pathInput.Placeholder = "/path/to/log.txt"
	m.pathInput.CharLimit = 0
	m.pathInput.Cursor.SetMode(cursor.CursorBlink)
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.pathInput.Width = maxInt(10, modalInnerWidth(m.width)-lipgloss.Width(m.pathInput.Prompt))
		return m, nil
	case ProgressMsg:
		if msg.Preset >= 0 && msg.Preset < len(m.rows) {
			m.rows[msg.Preset].sent = msg.Sent
			m.rows[msg.Preset].total = msg.Total
		}
		return m, nil
	case FailedMsg:
		m.pushError(model.Failure(msg).Error())
		return m, nil
	case FinishedMsg:
		m.handleFinished(model.RunSummary(msg))
		return m, refreshAfter(finishRefreshDelay)
	case refreshMsg:
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.ctrl.StopAll()
			return m, tea.Quit
		}
		if len(m.errs) > 0 {
			m.errs = m.errs[1:]
			return m, nil
		}
		if m.inputMode {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	default:
		if m.inputMode {
			var cmd tea.Cmd
			m.pathInput, cmd = m.pathInput.Update(msg)
			return m, cmd
		}
		return m, nil
	}
}

func (m *Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.ctrl.StopAll()
		return m, tea.Quit
	case "up", "k":
		m.moveSelection(-1)
	case "down", "j":
		m.moveSelection(1)
	case "1", "2", "3", "4":
		m.selected = int(msg.Runes[0] - '1')
	case "o":
		return m, m.openInput()
	case "enter", "s":
		m.start(m.selected)
	case "x":
		if err := m.ctrl.Stop(m.selected); err != nil {
			m.pushError(err.Error())
		}
	case "l":
		m.toggleLoop(m.selected)
	}
	return m, nil
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeInput()
		return m, nil
	case tea.KeyEnter:
		path := normalizePath(m.pathInput.Value())
		m.closeInput()
		if path == "" {
			return m, nil
		}
		if err := checkFile(path); err != nil {
			m.pushError(fmt.Sprintf("Preset %d: %v", m.selected+1, err))
			return m, nil
		}
		if err := m.ctrl.SelectFile(m.selected, path); err != nil {
			m.pushError(err.Error())
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m *Model) openInput() tea.Cmd {
	m.inputMode = true
	current := ""
	if p, err := m.ctrl.Snapshot(m.selected); err == nil {
		current = p.FilePath
	}
	m.pathInput.SetValue(current)
	m.pathInput.CursorEnd()
	return m.pathInput.Focus()
}

func (m *Model) closeInput() {
	m.inputMode = false
	m.pathInput.Blur()
}

func (m *Model) moveSelection(delta int) {
	next := m.selected + delta
	if next < 0 {
		next = len(m.rows) - 1
	}
	if next >= len(m.rows) {
		next = 0
	}
	m.selected = next
}

func (m *Model) start(index int) {
	err := m.ctrl.Start(index)
	switch {
	case err == nil:
		m.rows[index].lastRun = ""
	case errors.Is(err, playback.ErrNoFile):
		m.pushError(fmt.Sprintf("No file selected for Preset %d", index+1))
	default:
		m.pushError(err.Error())
	}
}

func (m *Model) toggleLoop(index int) {
	p, err := m.ctrl.Snapshot(index)
	if err != nil {
		m.pushError(err.Error())
		return
	}
	if err := m.ctrl.SetLoop(index, !p.LoopEnabled); err != nil {
		m.pushError(err.Error())
	}
}

func (m *Model) handleFinished(run model.RunSummary) {
	if run.Preset < 0 || run.Preset >= len(m.rows) {
		return
	}
	r := &m.rows[run.Preset]
	r.sent = 0
	r.lastRun = describeRun(run)
	if m.recorder == nil {
		return
	}
	if _, err := m.recorder.InsertRun(context.Background(), run); err != nil {
		m.logger.Error("failed to record run", "preset", run.Preset+1, "err", err)
	}
}

func (m *Model) pushError(text string) {
	m.logger.Warn(text)
	m.errs = append(m.errs, text)
}

// View implements tea.Model.
func (m *Model) View() string {
	if len(m.errs) > 0 {
		return m.place(m.renderErrorModal())
	}
	if m.inputMode {
		return m.place(m.renderInputModal())
	}

	lines := []string{titleStyle.Render("OSC Log Replay") + "  " + mutedStyle.Render("→ "+m.endpoint), ""}
	for i := range m.rows {
		lines = append(lines, m.renderRow(i))
	}
	lines = append(lines, "", m.renderFooter())
	body := strings.Join(lines, "\n")
	if m.width == 0 || m.height == 0 {
		return body
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m *Model) renderRow(index int) string {
	p, err := m.ctrl.Snapshot(index)
	if err != nil {
		return errorStyle.Render(err.Error())
	}
	r := m.rows[index]

	labelStyle := normalStyle
	marker := "  "
	if index == m.selected {
		labelStyle = selectedStyle
		marker = "> "
	}
	label := labelStyle.Render(fmt.Sprintf("%sPreset %d", marker, index+1))

	name := "No file selected"
	nameStyle := mutedStyle
	if p.FilePath != "" {
		name = filepath.Base(p.FilePath)
		nameStyle = normalStyle
	}
	name = runewidth.FillRight(runewidth.Truncate(name, fileColumnWidth, "…"), fileColumnWidth)

	loop := mutedStyle.Render("[ ] loop")
	if p.LoopEnabled {
		loop = selectedStyle.Render("[x] loop")
	}

	status := mutedStyle.Render(runewidth.FillRight("idle", 8))
	if p.IsSending {
		status = sendingStyle.Render(runewidth.FillRight("sending", 8))
	}

	sent, total := r.sent, r.total
	if !p.IsSending {
		sent = 0
	}
	percent := 0.0
	if total > 0 {
		percent = float64(sent) / float64(total)
	}
	counter := fmt.Sprintf("%d/%d", sent, total)

	line := strings.Join([]string{
		label,
		nameStyle.Render(name),
		status,
		loop,
		r.bar.ViewAs(percent),
		mutedStyle.Render(counter),
	}, "  ")
	if r.lastRun != "" && !p.IsSending {
		line += "  " + mutedStyle.Render(r.lastRun)
	}
	return line
}

func (m *Model) renderFooter() string {
	return footerStyle.Render("↑/↓ select · o open file · enter start · x stop · l loop · q quit")
}

func (m *Model) renderInputModal() string {
	body := []string{
		titleStyle.Render(fmt.Sprintf("Select file for Preset %d", m.selected+1)),
		m.pathInput.View(),
		mutedStyle.Render("Enter to apply / Esc to cancel"),
	}
	return modalStyle.Width(modalWidth(m.width)).Render(strings.Join(body, "\n"))
}

func (m *Model) renderErrorModal() string {
	body := []string{
		errorStyle.Bold(true).Render("Error"),
		m.errs[0],
		mutedStyle.Render("Press any key to dismiss"),
	}
	return errorModalStyle.Width(modalWidth(m.width)).Render(strings.Join(body, "\n"))
}

func (m *Model) place(box string) string {
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func describeRun(run model.RunSummary) string {
	switch run.Outcome {
	case model.OutcomeFailed:
		return "failed"
	case model.OutcomeStopped:
		return fmt.Sprintf("stopped after %d sent", run.Messages)
	default:
		passes := "pass"
		if run.Passes != 1 {
			passes = "passes"
		}
		return fmt.Sprintf("done: %d %s, %d sent", run.Passes, passes, run.Messages)
	}
}

func normalizePath(raw string) string {
	path := strings.TrimSpace(raw)
	path = strings.Trim(path, `"'`)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

func modalWidth(width int) int {
	return maxInt(40, minInt(width-4, 80))
}

func modalInnerWidth(width int) int {
	w := modalWidth(width)
	w -= 6 // 2 border + 4 padding
	if w < 10 {
		return 10
	}
	return w
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
