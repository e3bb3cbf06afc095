// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 DBTM Project

// Package session drives one measurement session against the DBTM rig:
// the command channel that owns the WebSocket connection, and the session
// manager that sequences the measurement protocol, validates operator
// actions, and assembles finalized records.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aryaw001/dbtm-station/pkg/bodyproto"
)

// ErrChannelNotReady is surfaced when an operator intent needs the command
// channel and it is not connected. Recoverable: reconnect and retry.
var ErrChannelNotReady = errors.New("session: command channel not ready")

// ConnectionState tracks the command channel from the session's view.
type ConnectionState int

// Connection states
const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Errored
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Errored:
		return "errored"
	}
	return "unknown"
}

// Phase is the measurement lifecycle state.
type Phase int

// Lifecycle phases
const (
	Idle Phase = iota
	AwaitingStart
	Measuring
	AwaitingSelection
	ManualEntryPending
	Complete
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case AwaitingStart:
		return "awaiting start"
	case Measuring:
		return "measuring"
	case AwaitingSelection:
		return "awaiting selection"
	case ManualEntryPending:
		return "manual entry"
	case Complete:
		return "complete"
	}
	return "unknown"
}

// Commander is the outbound half of the command channel.
type Commander interface {
	Send(payload []byte) error
}

// Store is the persistence collaborator. Submit failures are logged and
// spooled, never propagated into session state: a finalized measurement is
// never lost from the local view because the backend was down.
type Store interface {
	Submit(rec bodyproto.Measurement) error
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(rec bodyproto.Measurement) error

// Submit calls f.
func (f StoreFunc) Submit(rec bodyproto.Measurement) error { return f(rec) }

// Events delivered to the presenter through the notifier. They double as
// Bubble Tea messages, so the notifier is typically tea.Program.Send.
type (
	// StateEvent carries a fresh snapshot after any state transition.
	StateEvent struct{ Snapshot Snapshot }
	// LiveEvent carries an in-progress telemetry value from the rig.
	LiveEvent struct{ Data bodyproto.Measurement }
	// RecordEvent announces a newly finalized measurement.
	RecordEvent struct{ Record bodyproto.Measurement }
	// FaultEvent surfaces a recoverable failure for operator feedback.
	FaultEvent struct{ Err error }
	// TimeoutEvent fires when the measuring window expired without a
	// completion from the rig.
	TimeoutEvent struct{}
)

// Config tunes a Manager. Zero values fall back to the rig defaults.
type Config struct {
	// MeasuringTimeout bounds a measurement run that the rig never
	// completes. Default 30s.
	MeasuringTimeout time.Duration
	// SelectionDelay models the rig's fixed startup latency before it
	// accepts step-selection commands. The firmware sends no explicit
	// ready message; this elapsed-time heuristic is the only ack there
	// is, so it must match real device behavior. Default 2s.
	SelectionDelay time.Duration
	// ClientID is announced to the rig on connect so it can tell
	// concurrent operator clients apart.
	ClientID string
	// Now is the record timestamp source. Defaults to time.Now.
	Now func() time.Time
}

const (
	defaultMeasuringTimeout = 30 * time.Second
	defaultSelectionDelay   = 2 * time.Second
)

// Manager is the protocol core: one manager per device address, one
// logical owner. Channel events, timer firings and operator intents are
// serialized onto a single timeline by the manager's mutex; none of the
// operations block their caller beyond that.
type Manager struct {
	mu     sync.Mutex
	cmd    Commander
	store  Store
	spool  *Spool
	notify func(msg any)
	log    zerolog.Logger
	cfg    Config

	connState ConnectionState
	phase     Phase
	canSelect bool
	active    *bodyproto.StepID
	lastSent  *bodyproto.StepID
	startedAt time.Time
	live      *bodyproto.Measurement
	history   []bodyproto.Measurement

	// gen guards against a stale timer or late channel callback mutating
	// a session that has since been reset.
	gen          int
	measureTimer *time.Timer
	selectTimer  *time.Timer
}

// NewManager creates a session manager. notify may be nil; store may be
// nil when no persistence backend is configured.
func NewManager(cmd Commander, store Store, notify func(msg any), cfg Config, log zerolog.Logger) *Manager {
	if cfg.MeasuringTimeout <= 0 {
		cfg.MeasuringTimeout = defaultMeasuringTimeout
	}
	if cfg.SelectionDelay <= 0 {
		cfg.SelectionDelay = defaultSelectionDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if notify == nil {
		notify = func(any) {}
	}
	return &Manager{
		cmd:    cmd,
		store:  store,
		notify: notify,
		log:    log,
		cfg:    cfg,
	}
}

// SetSpool attaches a local backlog for records whose submit failed.
func (m *Manager) SetSpool(sp *Spool) {
	m.mu.Lock()
	m.spool = sp
	m.mu.Unlock()
}

// Snapshot is the read-only state exposed to the presenter.
type Snapshot struct {
	ConnState  ConnectionState
	Phase      Phase
	CanSelect  bool
	Measuring  bool
	ActiveStep *bodyproto.StepID
	LastSent   *bodyproto.StepID
	StartedAt  time.Time
	Live       *bodyproto.Measurement
	History    []bodyproto.Measurement // most recent first
}

// Snapshot returns a copy of the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{
		ConnState: m.connState,
		Phase:     m.phase,
		CanSelect: m.canSelect,
		Measuring: m.measuringLocked(),
		StartedAt: m.startedAt,
		History:   append([]bodyproto.Measurement(nil), m.history...),
	}
	if m.active != nil {
		id := *m.active
		snap.ActiveStep = &id
	}
	if m.lastSent != nil {
		id := *m.lastSent
		snap.LastSent = &id
	}
	if m.live != nil {
		live := *m.live
		snap.Live = &live
	}
	return snap
}

func (m *Manager) measuringLocked() bool {
	switch m.phase {
	case AwaitingStart, Measuring, AwaitingSelection, ManualEntryPending:
		return true
	}
	return false
}

// Events returns the channel callback set wired to this manager.
func (m *Manager) Events() Events {
	return Events{
		OnOpen:    m.handleOpen,
		OnMessage: m.handleMessage,
		OnError:   m.handleError,
		OnClose:   m.handleClose,
	}
}

// MarkConnecting records that a connection attempt is in flight.
func (m *Manager) MarkConnecting() {
	m.mu.Lock()
	m.connState = Connecting
	m.mu.Unlock()
	m.publishState()
}

func (m *Manager) handleOpen() {
	m.mu.Lock()
	m.connState = Connected
	m.mu.Unlock()

	// Announce this client so the rig can distinguish operators.
	// Fire-and-forget: the firmware never acknowledges the hello.
	if err := m.cmd.Send(bodyproto.NewClientHello(m.cfg.ClientID)); err != nil {
		m.log.Warn().Err(err).Msg("client hello failed")
	}
	m.publishState()
}

func (m *Manager) handleError(err error) {
	m.mu.Lock()
	m.connState = Errored
	m.resetLocked()
	m.mu.Unlock()
	m.log.Error().Err(err).Msg("connection error")
	m.notify(FaultEvent{Err: fmt.Errorf("connection lost: %w", err)})
	m.publishState()
}

func (m *Manager) handleClose() {
	m.mu.Lock()
	if m.connState != Errored {
		m.connState = Disconnected
	}
	m.resetLocked()
	m.mu.Unlock()
	m.publishState()
}

// handleMessage decodes an inbound frame. Frames that are not structured
// envelopes are keepalive noise and are dropped without comment.
func (m *Manager) handleMessage(raw []byte) {
	env, ok := bodyproto.DecodeEnvelope(raw)
	if !ok {
		return
	}

	switch env.Type {
	case bodyproto.TypeLiveMeasurement:
		live := bodyproto.MeasurementFromData(env.Data)
		m.mu.Lock()
		if m.phase != Measuring && m.phase != AwaitingSelection {
			m.mu.Unlock()
			return
		}
		m.live = &live
		m.mu.Unlock()
		m.notify(LiveEvent{Data: live})

	case bodyproto.TypeDone:
		m.mu.Lock()
		if !m.measuringLocked() {
			m.mu.Unlock()
			m.log.Debug().Msg("completion event outside a measuring session dropped")
			return
		}
		rec := m.stampLocked(bodyproto.MeasurementFromData(env.Data))
		m.history = append([]bodyproto.Measurement{rec}, m.history...)
		// Completion is authoritative: it clears the live view it may
		// race with, and leaves the session ready for the next step
		// rather than re-arming the measuring flag.
		m.live = nil
		m.active = nil
		m.phase = Complete
		m.mu.Unlock()

		m.submitAsync(rec)
		m.notify(RecordEvent{Record: rec})
		m.publishState()
	}
}

// Start begins a measurement sequence by commanding the rig. Legal from
// Idle or Complete; a no-op while a sequence is already running. Surfaces
// ErrChannelNotReady, with the phase left untouched, when the channel is
// not connected.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.connState != Connected {
		m.mu.Unlock()
		return ErrChannelNotReady
	}
	if m.phase != Idle && m.phase != Complete {
		m.mu.Unlock()
		return nil
	}
	gen := m.gen
	m.mu.Unlock()

	if err := m.cmd.Send([]byte(bodyproto.CmdStartMeasurement)); err != nil {
		return fmt.Errorf("%w: %v", ErrChannelNotReady, err)
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return nil
	}
	m.phase = Measuring
	m.canSelect = false
	m.active = nil
	m.live = nil
	m.startedAt = m.cfg.Now()
	m.armTimersLocked()
	m.mu.Unlock()
	m.publishState()
	return nil
}

// SelectStep selects the next measurement step. While the selection window
// is closed the call is a silent no-op: the action is unavailable to the
// operator, not an error. The manual step never commands the rig; it moves
// the session to manual entry instead.
func (m *Manager) SelectStep(id bodyproto.StepID) error {
	step, ok := bodyproto.StepByID(id)
	if !ok {
		return fmt.Errorf("session: unknown step %d", id)
	}

	m.mu.Lock()
	if !m.canSelect || !m.selectableLocked() {
		m.mu.Unlock()
		return nil
	}

	if step.Manual {
		m.phase = ManualEntryPending
		m.active = &step.ID
		m.mu.Unlock()
		m.publishState()
		return nil
	}
	gen := m.gen
	m.mu.Unlock()

	payload, _ := bodyproto.StepCommand(id)
	if err := m.cmd.Send(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrChannelNotReady, err)
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return nil
	}
	m.phase = Measuring
	m.active = &step.ID
	m.lastSent = &step.ID
	m.mu.Unlock()
	m.publishState()
	return nil
}

func (m *Manager) selectableLocked() bool {
	switch m.phase {
	case Measuring, AwaitingSelection, Complete:
		return true
	}
	return false
}

// SubmitManual finalizes the manual-only ankle height step with an
// operator-entered value. No rig round trip occurs.
func (m *Manager) SubmitManual(value float64) error {
	m.mu.Lock()
	if m.phase != ManualEntryPending {
		m.mu.Unlock()
		return nil
	}
	rec := m.stampLocked(bodyproto.Measurement{AnkleHeight: value})
	m.history = append([]bodyproto.Measurement{rec}, m.history...)
	m.active = nil
	m.phase = Complete
	m.mu.Unlock()

	m.submitAsync(rec)
	m.notify(RecordEvent{Record: rec})
	m.publishState()
	return nil
}

// CancelManual abandons a pending manual entry and returns the session to
// the selection window. No-op in any other phase.
func (m *Manager) CancelManual() {
	m.mu.Lock()
	if m.phase != ManualEntryPending {
		m.mu.Unlock()
		return
	}
	m.phase = AwaitingSelection
	m.active = nil
	m.mu.Unlock()
	m.publishState()
}

// Reset returns the session to Idle, cancelling pending timers. The
// connection state is untouched; use it before tearing down the owning
// context or to abandon a sequence.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()
	m.publishState()
}

// resetLocked cancels timers, bumps the session generation and clears the
// per-sequence state. lastSent survives as a diagnostic.
func (m *Manager) resetLocked() {
	m.cancelTimersLocked()
	m.gen++
	m.phase = Idle
	m.canSelect = false
	m.active = nil
	m.live = nil
}

func (m *Manager) armTimersLocked() {
	m.cancelTimersLocked()
	gen := m.gen
	m.measureTimer = time.AfterFunc(m.cfg.MeasuringTimeout, func() { m.expireMeasuring(gen) })
	m.selectTimer = time.AfterFunc(m.cfg.SelectionDelay, func() { m.unlockSelection(gen) })
}

func (m *Manager) cancelTimersLocked() {
	if m.measureTimer != nil {
		m.measureTimer.Stop()
		m.measureTimer = nil
	}
	if m.selectTimer != nil {
		m.selectTimer.Stop()
		m.selectTimer = nil
	}
}

func (m *Manager) unlockSelection(gen int) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.canSelect = true
	if m.phase == Measuring && m.active == nil {
		m.phase = AwaitingSelection
	}
	m.mu.Unlock()
	m.publishState()
}

func (m *Manager) expireMeasuring(gen int) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.resetLocked()
	m.mu.Unlock()
	m.log.Warn().Msg("measuring window expired without completion")
	m.notify(TimeoutEvent{})
	m.publishState()
}

func (m *Manager) stampLocked(rec bodyproto.Measurement) bodyproto.Measurement {
	now := m.cfg.Now()
	rec.ID = uuid.NewString()
	rec.Date = now.Format("2006-01-02")
	rec.Time = now.Format("15:04:05")
	return rec
}

// submitAsync hands a finalized record to the persistence collaborator
// without blocking the session timeline. A failure is logged and spooled;
// it never rolls back local history or reopens the session.
func (m *Manager) submitAsync(rec bodyproto.Measurement) {
	m.mu.Lock()
	store, spool := m.store, m.spool
	m.mu.Unlock()
	if store == nil {
		return
	}
	go func() {
		err := store.Submit(rec)
		if err == nil {
			return
		}
		m.log.Error().Err(err).Str("record", rec.ID).Msg("measurement submit failed")
		if spool != nil {
			if serr := spool.Append(rec); serr != nil {
				m.log.Error().Err(serr).Str("record", rec.ID).Msg("spool append failed")
			}
		}
		m.notify(FaultEvent{Err: fmt.Errorf("persistence failed for %s: %w", rec.ID, err)})
	}()
}

func (m *Manager) publishState() {
	m.mu.Lock()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(StateEvent{Snapshot: snap})
}
