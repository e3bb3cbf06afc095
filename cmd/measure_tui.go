// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 DBTM Project

package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aryaw001/dbtm-station/pkg/bodyproto"
	"github.com/aryaw001/dbtm-station/pkg/session"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// measureModel is the Bubble Tea model for the measurement TUI. It is a
// thin consumer of the session manager: it renders snapshots and forwards
// operator intents, nothing more.
type measureModel struct {
	mgr     *session.Manager
	ch      *session.Channel
	address string

	snap          session.Snapshot
	eventLog      []logEntry
	maxLogEntries int

	ankleInput textinput.Model

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type connectResultMsg struct {
	err error
}

type copiedMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func newMeasureModel(mgr *session.Manager, ch *session.Channel, address string) measureModel {
	ti := textinput.New()
	ti.Placeholder = "18.5"
	ti.CharLimit = 6
	ti.Width = 10

	return measureModel{
		mgr:           mgr,
		ch:            ch,
		address:       address,
		snap:          mgr.Snapshot(),
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		ankleInput:    ti,
		width:         80,
		height:        24,
	}
}

func (m measureModel) Init() tea.Cmd {
	return m.connectCmd()
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m measureModel) connectCmd() tea.Cmd {
	mgr, ch, addr := m.mgr, m.ch, m.address
	return func() tea.Msg {
		mgr.MarkConnecting()
		return connectResultMsg{err: ch.Connect(addr)}
	}
}

func (m measureModel) startCmd() tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		if err := mgr.Start(); err != nil {
			return session.FaultEvent{Err: err}
		}
		return nil
	}
}

func (m measureModel) selectCmd(id bodyproto.StepID) tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		if err := mgr.SelectStep(id); err != nil {
			return session.FaultEvent{Err: err}
		}
		return nil
	}
}

func (m measureModel) submitManualCmd(value float64) tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		if err := mgr.SubmitManual(value); err != nil {
			return session.FaultEvent{Err: err}
		}
		return nil
	}
}

func (m measureModel) copyCmd() tea.Cmd {
	if len(m.snap.History) == 0 {
		return nil
	}
	rec := m.snap.History[0]
	return func() tea.Msg {
		raw, err := json.Marshal(rec)
		if err == nil {
			err = clipboard.WriteAll(string(raw))
		}
		return copiedMsg{err: err}
	}
}

//////////////////////////////////////////////////////////////
// Update
//////////////////////////////////////////////////////////////

func (m measureModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case connectResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("connect failed: %v", msg.err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("connected to %s", m.address), false)
		}

	case session.StateEvent:
		entering := msg.Snapshot.Phase == session.ManualEntryPending &&
			m.snap.Phase != session.ManualEntryPending
		m.snap = msg.Snapshot
		if entering {
			m.ankleInput.Reset()
			m.ankleInput.Focus()
			return m, textinput.Blink
		}
		if m.snap.Phase != session.ManualEntryPending {
			m.ankleInput.Blur()
		}

	case session.LiveEvent:
		live := msg.Data
		m.snap.Live = &live

	case session.RecordEvent:
		m.addLogEntry("recorded "+recordSummary(msg.Record), false)

	case session.FaultEvent:
		m.addLogEntry(msg.Err.Error(), true)

	case session.TimeoutEvent:
		m.addLogEntry("measuring window expired, sequence reset", true)

	case copiedMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("clipboard copy failed: %v", msg.err), true)
		} else {
			m.addLogEntry("newest record copied to clipboard", false)
		}
	}

	return m, nil
}

func (m measureModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	// Manual entry owns the keyboard while pending.
	if m.snap.Phase == session.ManualEntryPending {
		switch msg.String() {
		case "enter":
			value, err := strconv.ParseFloat(strings.TrimSpace(m.ankleInput.Value()), 64)
			if err != nil {
				m.addLogEntry("ankle height must be a number", true)
				return m, nil
			}
			return m, m.submitManualCmd(value)
		case "esc":
			m.mgr.CancelManual()
			return m, nil
		}
		var cmd tea.Cmd
		m.ankleInput, cmd = m.ankleInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "s":
		return m, m.startCmd()

	case "r":
		m.mgr.Reset()
		m.addLogEntry("reconnecting...", false)
		return m, m.connectCmd()

	case "y":
		return m, m.copyCmd()

	case "0", "1", "2", "3", "4", "5", "6", "7":
		id, _ := strconv.Atoi(msg.String())
		return m, m.selectCmd(bodyproto.StepID(id))
	}

	return m, nil
}

func (m *measureModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m measureModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	dimStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("DBTM - BODY MEASUREMENT"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf(
		"Rig: %s | Connection: %s | Phase: %s | 's' start, 0-7 select, 'r' reconnect, 'q' quit",
		m.address, m.snap.ConnState, m.snap.Phase)))
	s.WriteString("\n\n")

	// Step catalogue
	steps := strings.Builder{}
	for _, step := range bodyproto.Steps {
		marker := "  "
		if m.snap.ActiveStep != nil && *m.snap.ActiveStep == step.ID {
			marker = "> "
		}
		line := fmt.Sprintf("%s[%d] %s", marker, step.ID, step.Label)
		switch {
		case m.snap.ActiveStep != nil && *m.snap.ActiveStep == step.ID:
			steps.WriteString(valueStyle.Render(line))
		case m.snap.CanSelect:
			steps.WriteString(line)
		default:
			steps.WriteString(dimStyle.Render(line))
		}
		steps.WriteString("\n")
	}
	if m.snap.Measuring && !m.snap.CanSelect {
		steps.WriteString(headerStyle.Render("waiting for rig startup..."))
	} else if m.snap.CanSelect {
		steps.WriteString(headerStyle.Render("ready: select a measurement"))
	} else {
		steps.WriteString(headerStyle.Render("press 's' to start"))
	}
	s.WriteString(boxStyle.Render(steps.String()))
	s.WriteString("\n\n")

	// Manual entry prompt
	if m.snap.Phase == session.ManualEntryPending {
		prompt := labelStyle.Render("Ankle height (cm): ") + m.ankleInput.View() +
			"\n" + headerStyle.Render("enter to save, esc to cancel")
		s.WriteString(boxStyle.Render(prompt))
		s.WriteString("\n\n")
	}

	// Live telemetry
	if m.snap.Live != nil {
		s.WriteString(labelStyle.Render("Live:"))
		s.WriteString(" ")
		s.WriteString(valueStyle.Render(recordSummary(*m.snap.Live)))
		s.WriteString("\n\n")
	}

	// History, most recent first
	s.WriteString(labelStyle.Render(fmt.Sprintf("History (%d):", len(m.snap.History))))
	s.WriteString("\n")
	histContent := strings.Builder{}
	if len(m.snap.History) == 0 {
		histContent.WriteString(headerStyle.Render("(no measurements yet)"))
	} else {
		shown := m.snap.History
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, rec := range shown {
			histContent.WriteString(fmt.Sprintf("%s %s\n",
				headerStyle.Render(rec.Date+" "+rec.Time),
				recordSummary(rec)))
		}
	}
	s.WriteString(boxStyle.Render(histContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 24
	if logHeight < 4 {
		logHeight = 4
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	logContent := strings.Builder{}
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message)))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					entry.message))
			}
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

// recordSummary renders the populated fields of a measurement on one line.
func recordSummary(rec bodyproto.Measurement) string {
	parts := []string{}
	if rec.Name != "" {
		parts = append(parts, "name="+rec.Name)
	}
	if rec.Age != 0 {
		parts = append(parts, fmt.Sprintf("age=%d", rec.Age))
	}
	add := func(label string, v float64) {
		if v != 0 {
			parts = append(parts, fmt.Sprintf("%s=%.1f", label, v))
		}
	}
	add("weight", rec.Weight)
	add("crown", rec.CrownHeight)
	add("shoulder", rec.ShoulderHeight)
	add("elbow", rec.ElbowReach)
	add("hip", rec.HipHeight)
	add("hand", rec.HandReach)
	add("knee", rec.KneeHeight)
	add("ankle", rec.AnkleHeight)
	if len(parts) == 0 {
		return "(empty)"
	}
	return strings.Join(parts, "  ")
}
