// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 DBTM Project

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aryaw001/dbtm-station/pkg/bodyproto"
	"github.com/aryaw001/dbtm-station/pkg/measureapi"
	"github.com/aryaw001/dbtm-station/pkg/session"
)

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Interactive TUI for driving the measurement rig",
	Long: `Run a measurement session against the DBTM rig via an interactive
terminal UI.

The TUI connects to the rig, sequences the eight-step measurement
protocol, shows live telemetry while a step runs, and persists finalized
records to the DBTM API when one is configured. Records that fail to
persist are kept locally and retried on the next run.

Keys:
  s      start a measurement sequence
  0-7    select a measurement step (7 prompts for manual ankle height)
  r      reconnect to the rig
  y      copy the newest record to the clipboard
  q      quit`,
	RunE: runMeasure,
}

func init() {
	rootCmd.AddCommand(measureCmd)
}

// uiRelay forwards session events into the Bubble Tea program once it
// exists. Events fired before the program starts are dropped; nothing
// fires before Connect, which runs from the model's Init.
type uiRelay struct {
	mu sync.Mutex
	p  *tea.Program
}

func (r *uiRelay) set(p *tea.Program) {
	r.mu.Lock()
	r.p = p
	r.mu.Unlock()
}

func (r *uiRelay) send(msg any) {
	r.mu.Lock()
	p := r.p
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func runMeasure(cmd *cobra.Command, args []string) error {
	if deviceAddress == "" {
		return fmt.Errorf("--address (or a config file address) is required")
	}

	clientID, err := session.ClientID()
	if err != nil {
		return err
	}

	// Persistence is optional: without --api the session keeps records
	// in memory only.
	var store session.Store
	if apiBase != "" {
		client := measureapi.New(apiBase, logger)
		uid, err := resolveUserID(cmd.Context(), client)
		if err != nil {
			return err
		}
		store = session.StoreFunc(func(rec bodyproto.Measurement) error {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return client.SubmitMeasurement(ctx, uid, rec)
		})
	}

	spool := session.NewSpool(spoolPath())

	relay := &uiRelay{}
	ch := session.NewChannel()
	mgr := session.NewManager(ch, store, relay.send, session.Config{ClientID: clientID}, logger)
	mgr.SetSpool(spool)
	ch.Bind(mgr.Events())

	if store != nil {
		go resubmitSpooled(spool, store)
	}

	m := newMeasureModel(mgr, ch, deviceAddress)
	p := tea.NewProgram(m, tea.WithAltScreen())
	relay.set(p)

	_, runErr := p.Run()

	// Teardown order matters: silence the channel first so no late event
	// reaches a dead program, then cancel the session's timers.
	ch.Close()
	mgr.Reset()

	if runErr != nil {
		return fmt.Errorf("TUI error: %v", runErr)
	}
	return nil
}

func spoolPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "dbtm-spool.cbor"
	}
	return filepath.Join(dir, "dbtm", "spool.cbor")
}

// resubmitSpooled retries records left behind by an earlier backend
// outage. Records that fail again go back on the spool.
func resubmitSpooled(spool *session.Spool, store session.Store) {
	recs, err := spool.Drain()
	if err != nil {
		logger.Error().Err(err).Msg("spool drain failed")
	}
	for _, rec := range recs {
		if err := store.Submit(rec); err != nil {
			logger.Warn().Err(err).Str("record", rec.ID).Msg("spooled record still not accepted")
			if serr := spool.Append(rec); serr != nil {
				logger.Error().Err(serr).Str("record", rec.ID).Msg("spool append failed")
			}
			continue
		}
		logger.Info().Str("record", rec.ID).Msg("spooled record persisted")
	}
}
