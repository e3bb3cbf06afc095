// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 DBTM Project

package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ClientID returns the stable identity this installation announces to the
// rig so it can distinguish concurrent operator clients. Created lazily on
// first use, then reused for the lifetime of the installation.
func ClientID() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("session: no config dir for client id: %w", err)
	}
	return clientIDAt(filepath.Join(dir, "dbtm", "client_id"))
}

func clientIDAt(path string) (string, error) {
	if b, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			return id, nil
		}
	}

	id := "station_" + uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("session: create client id dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("session: persist client id: %w", err)
	}
	return id, nil
}
