// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 DBTM Project

package bodyproto

import (
	"encoding/json"
	"strconv"
)

// Envelope is a structured JSON message exchanged with the rig.
type Envelope struct {
	Type     string         `json:"type"`
	ClientID string         `json:"clientId,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// DecodeEnvelope parses an inbound frame. It returns ok=false for anything
// that is not a known structured envelope; the rig also emits plain-text
// keepalive frames, so an unparseable payload is not a protocol error and
// callers should drop it silently.
func DecodeEnvelope(raw []byte) (*Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	switch env.Type {
	case TypeLiveMeasurement, TypeDone:
		return &env, true
	}
	return nil, false
}

// NewClientHello builds the UI_CLIENT_CONNECTED announcement sent once per
// successful connection. The rig never acknowledges it.
func NewClientHello(clientID string) []byte {
	b, _ := json.Marshal(Envelope{Type: TypeClientConnected, ClientID: clientID})
	return b
}

// StepCommand returns the wire payload selecting a sensor-measured step.
// Manual steps have no wire representation and return ok=false.
func StepCommand(id StepID) ([]byte, bool) {
	step, ok := StepByID(id)
	if !ok || step.Manual {
		return nil, false
	}
	return []byte(strconv.Itoa(int(id))), true
}
