// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 DBTM Project

package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/aryaw001/dbtm-station/pkg/bodyproto"
)

// Spool is an append-only local backlog of finalized measurements whose
// submit to the persistence API failed. Records are CBOR-encoded back to
// back in a single file and drained for re-submission on the next run, so
// a backend outage never loses a measurement.
type Spool struct {
	mu   sync.Mutex
	path string
}

// NewSpool creates a spool backed by the given file. The file is created
// on first append.
func NewSpool(path string) *Spool {
	return &Spool{path: path}
}

// Append writes one record to the end of the spool.
func (s *Spool) Append(rec bodyproto.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("spool: open: %w", err)
	}
	defer f.Close()

	if err := cbor.NewEncoder(f).Encode(rec); err != nil {
		return fmt.Errorf("spool: encode: %w", err)
	}
	return nil
}

// Drain returns all spooled records and removes the spool file. Records
// the caller fails to re-submit should be appended again.
func (s *Spool) Drain() ([]bodyproto.Measurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("spool: open: %w", err)
	}

	var recs []bodyproto.Measurement
	dec := cbor.NewDecoder(f)
	for {
		var rec bodyproto.Measurement
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			f.Close()
			return recs, fmt.Errorf("spool: decode: %w", err)
		}
		recs = append(recs, rec)
	}
	f.Close()

	if err := os.Remove(s.path); err != nil {
		return recs, fmt.Errorf("spool: remove: %w", err)
	}
	return recs, nil
}
