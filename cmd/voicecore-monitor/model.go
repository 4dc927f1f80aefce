package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

type statusChangedMsg struct {
	status     string
	errMessage string
}

type (
	partialTranscriptMsg  string
	committedFragmentMsg  string
	utteranceFinalizedMsg string
)

type dispatchFailedMsg struct {
	err error
}

type sessionToggledMsg struct {
	running bool
	err     error
}

const maxUtteranceRows = 12

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	partialStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	finalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type utteranceRow struct {
	text   string
	failed error
}

type monitorModel struct {
	start func() error
	stop  func()

	spinner spinner.Model

	running    bool
	status     string
	errMessage string

	partial   string
	fragments []string

	utterances []utteranceRow

	width    int
	quitting bool
}

func newMonitorModel(start func() error, stop func()) monitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	return monitorModel{
		start:   start,
		stop:    stop,
		spinner: s,
		status:  "idle",
		width:   80,
	}
}

func (m monitorModel) toggleSession() tea.Cmd {
	if m.running {
		return func() tea.Msg {
			m.stop()
			return sessionToggledMsg{running: false}
		}
	}
	return func() tea.Msg {
		if err := m.start(); err != nil {
			return sessionToggledMsg{running: false, err: err}
		}
		return sessionToggledMsg{running: true}
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.toggleSession())
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			m.stop()
			return m, tea.Quit
		case " ":
			return m, m.toggleSession()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case sessionToggledMsg:
		m.running = msg.running
		if msg.err != nil {
			m.status = "error"
			m.errMessage = msg.err.Error()
		} else if !msg.running {
			m.status = "idle"
			m.errMessage = ""
			m.partial = ""
			m.fragments = nil
		}

	case statusChangedMsg:
		m.status = msg.status
		m.errMessage = msg.errMessage
		m.running = m.status != "idle" && m.status != "error"

	case partialTranscriptMsg:
		m.partial = string(msg)

	case committedFragmentMsg:
		m.fragments = append(m.fragments, string(msg))
		m.partial = ""

	case utteranceFinalizedMsg:
		m.utterances = append(m.utterances, utteranceRow{text: string(msg)})
		if len(m.utterances) > maxUtteranceRows {
			m.utterances = m.utterances[1:]
		}
		m.fragments = nil
		m.partial = ""

	case dispatchFailedMsg:
		// The failure belongs to the most recent finalized utterance; it is
		// shown inline and never retried.
		if len(m.utterances) > 0 {
			m.utterances[len(m.utterances)-1].failed = msg.err
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("voicecore monitor"))
	b.WriteString("  ")
	switch m.status {
	case "error":
		b.WriteString(errorStyle.Render(fmt.Sprintf("● error: %s", m.errMessage)))
	case "idle":
		b.WriteString(statusStyle.Render("○ idle"))
	default:
		b.WriteString(m.spinner.View())
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n\n")

	if len(m.fragments) > 0 {
		b.WriteString(pendingStyle.Render("pending: " + strings.Join(m.fragments, " ")))
		b.WriteString("\n")
	}
	if m.partial != "" {
		b.WriteString(wordwrap.String(partialStyle.Render(m.partial+"..."), m.width))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for _, row := range m.utterances {
		line := "» " + row.text
		if row.failed != nil {
			line += errorStyle.Render(fmt.Sprintf("  (dispatch failed: %v)", row.failed))
			b.WriteString(wordwrap.String(line, m.width))
		} else {
			b.WriteString(wordwrap.String(finalStyle.Render(line), m.width))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space to start/stop · q to quit"))
	b.WriteString("\n")

	return b.String()
}
