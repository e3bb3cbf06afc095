// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 DBTM Project

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	// Device connection flags
	deviceAddress string

	// Persistence API flags
	apiBase string
	userID  int
	email   string

	// Misc
	cfgPath string
	logPath string

	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dbtm",
	Short: "DBTM measurement station controller",
	Long: `dbtm drives the DBTM body-measurement rig over its WebSocket endpoint.

The measure command opens an interactive TUI that sequences the eight-step
measurement protocol, shows live telemetry, and persists finalized records
to the DBTM web API.

Connection:
  Device:  --address 192.168.0.50         (rig WebSocket, port 81)
  API:     --api http://192.168.0.140:5000

Identify yourself to the API with --user-id, or with --email plus a
password read from the DBTM_PASSWORD environment variable (prompted
interactively if not set). The --password flag is intentionally not
provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&deviceAddress, "address", "a", "", "Rig address (host or host:port)")
	rootCmd.PersistentFlags().StringVar(&apiBase, "api", "", "DBTM API base URL")
	rootCmd.PersistentFlags().IntVar(&userID, "user-id", 0, "API user id owning the measurements")
	rootCmd.PersistentFlags().StringVar(&email, "email", "", "API account email (alternative to --user-id)")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default <config dir>/dbtm/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-file", "", "Log file (default <config dir>/dbtm/station.log)")
}

// fileConfig mirrors the persistent flags; flags win over file values.
type fileConfig struct {
	Address string `yaml:"address"`
	API     string `yaml:"api"`
	UserID  int    `yaml:"user_id"`
	Email   string `yaml:"email"`
	LogFile string `yaml:"log_file"`
}

func setup(cmd *cobra.Command, args []string) error {
	if err := applyConfigFile(cmd); err != nil {
		return err
	}
	return openLogger()
}

func applyConfigFile(cmd *cobra.Command) error {
	path := cfgPath
	explicit := path != ""
	if !explicit {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(dir, "dbtm", "config.yaml")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if explicit {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	flags := cmd.Flags()
	if !flags.Changed("address") && fc.Address != "" {
		deviceAddress = fc.Address
	}
	if !flags.Changed("api") && fc.API != "" {
		apiBase = fc.API
	}
	if !flags.Changed("user-id") && fc.UserID != 0 {
		userID = fc.UserID
	}
	if !flags.Changed("email") && fc.Email != "" {
		email = fc.Email
	}
	if !flags.Changed("log-file") && fc.LogFile != "" {
		logPath = fc.LogFile
	}
	return nil
}

// openLogger routes structured logs to a file. The TUI owns the terminal,
// so nothing may write to stdout or stderr while it runs.
func openLogger() error {
	path := logPath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			logger = zerolog.Nop()
			return nil
		}
		path = filepath.Join(dir, "dbtm", "station.log")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logger = zerolog.New(f).With().Timestamp().Logger()
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
