// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 DBTM Project

package bodyproto

import (
	"encoding/json"
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantOK   bool
		wantType string
	}{
		{
			name:     "live measurement",
			raw:      `{"type":"live_measurement","data":{"shoulder_height":142}}`,
			wantOK:   true,
			wantType: TypeLiveMeasurement,
		},
		{
			name:     "done",
			raw:      `{"type":"done","data":{"shoulder_height":142}}`,
			wantOK:   true,
			wantType: TypeDone,
		},
		{
			name:   "plain text keepalive",
			raw:    "ping",
			wantOK: false,
		},
		{
			name:   "empty payload",
			raw:    "",
			wantOK: false,
		},
		{
			name:   "json without known type",
			raw:    `{"type":"firmware_status","data":{}}`,
			wantOK: false,
		},
		{
			name:   "truncated json",
			raw:    `{"type":"done","data":{`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, ok := DecodeEnvelope([]byte(tt.raw))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if env.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", env.Type, tt.wantType)
			}
		})
	}
}

func TestDecodeEnvelopeData(t *testing.T) {
	env, ok := DecodeEnvelope([]byte(`{"type":"live_measurement","data":{"shoulder_height":142}}`))
	if !ok {
		t.Fatal("DecodeEnvelope rejected a valid live envelope")
	}
	if got := env.Data["shoulder_height"]; got != 142.0 {
		t.Errorf("Data[shoulder_height] = %v, want 142", got)
	}
}

func TestNewClientHello(t *testing.T) {
	raw := NewClientHello("station_abc123")

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("hello is not valid JSON: %v", err)
	}
	if decoded["type"] != TypeClientConnected {
		t.Errorf("type = %v, want %q", decoded["type"], TypeClientConnected)
	}
	if decoded["clientId"] != "station_abc123" {
		t.Errorf("clientId = %v, want station_abc123", decoded["clientId"])
	}
	if _, ok := decoded["data"]; ok {
		t.Error("hello should not carry a data payload")
	}
}

func TestStepCommand(t *testing.T) {
	for id := StepNameAge; id <= StepKneeHeight; id++ {
		payload, ok := StepCommand(id)
		if !ok {
			t.Errorf("StepCommand(%d) not ok, want sensor step payload", id)
			continue
		}
		want := string(rune('0' + id))
		if string(payload) != want {
			t.Errorf("StepCommand(%d) = %q, want %q", id, payload, want)
		}
	}

	if _, ok := StepCommand(StepAnkleHeight); ok {
		t.Error("the manual step must have no wire command")
	}
	if _, ok := StepCommand(StepID(42)); ok {
		t.Error("out-of-range step must have no wire command")
	}
}

func TestStepCatalogue(t *testing.T) {
	if len(Steps) != 8 {
		t.Fatalf("catalogue has %d steps, want 8", len(Steps))
	}
	for i, step := range Steps {
		if int(step.ID) != i {
			t.Errorf("step %d has ID %d, catalogue must be ordered by wire code", i, step.ID)
		}
		if step.Manual != (step.ID == StepAnkleHeight) {
			t.Errorf("step %d Manual = %v, only ankle height is manual", step.ID, step.Manual)
		}
	}

	if _, ok := StepByID(StepID(-1)); ok {
		t.Error("StepByID(-1) should not resolve")
	}
	if _, ok := StepByID(StepID(8)); ok {
		t.Error("StepByID(8) should not resolve")
	}
}
