// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 DBTM Project

package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClientIDStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbtm", "client_id")

	first, err := clientIDAt(path)
	if err != nil {
		t.Fatalf("clientIDAt() = %v", err)
	}
	if !strings.HasPrefix(first, "station_") {
		t.Errorf("id = %q, want station_ prefix", first)
	}

	second, err := clientIDAt(path)
	if err != nil {
		t.Fatalf("second clientIDAt() = %v", err)
	}
	if second != first {
		t.Errorf("identity regenerated: %q then %q", first, second)
	}
}

func TestClientIDCreatedLazily(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dbtm", "client_id")

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("identity file exists before first use")
	}
	if _, err := clientIDAt(path); err != nil {
		t.Fatalf("clientIDAt() = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("identity file not persisted: %v", err)
	}
}

func TestClientIDIgnoresEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_id")
	if err := os.WriteFile(path, []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	id, err := clientIDAt(path)
	if err != nil {
		t.Fatalf("clientIDAt() = %v", err)
	}
	if id == "" {
		t.Error("empty identity returned from a blank file")
	}
}
