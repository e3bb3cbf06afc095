// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 DBTM Project

package bodyproto

import (
	"reflect"
	"testing"
)

func TestMapToInternal(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want map[string]any
	}{
		{
			name: "wire names renamed",
			in:   map[string]any{"shoulder_height": 142.0, "crown_height": 171.5},
			want: map[string]any{"shoulderHeight": 142.0, "crownHeight": 171.5},
		},
		{
			name: "identity fields kept",
			in:   map[string]any{"weight": 63.2, "name": "Mira", "age": 21.0},
			want: map[string]any{"weight": 63.2, "name": "Mira", "age": 21.0},
		},
		{
			name: "unknown keys pass through",
			in:   map[string]any{"firmware_rev": "2.3", "hip_height": 88.0},
			want: map[string]any{"firmware_rev": "2.3", "hipHeight": 88.0},
		},
		{
			name: "nil input",
			in:   nil,
			want: nil,
		},
		{
			name: "empty input",
			in:   map[string]any{},
			want: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapToInternal(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MapToInternal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapToInternalIdempotent(t *testing.T) {
	in := map[string]any{
		"crown_height":    171.5,
		"shoulder_height": 142.0,
		"elbow_reach":     101.0,
		"hip_height":      88.0,
		"hand_reach":      64.5,
		"knee_height":     47.0,
		"ankle_height":    9.5,
		"weight":          63.2,
		"name":            "Mira",
		"age":             21.0,
	}

	once := MapToInternal(in)
	twice := MapToInternal(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("mapping twice changed the record:\nonce:  %v\ntwice: %v", once, twice)
	}
}

func TestMapToInternalDoesNotMutateInput(t *testing.T) {
	in := map[string]any{"knee_height": 47.0}
	MapToInternal(in)
	if _, ok := in["kneeHeight"]; ok {
		t.Error("input map was mutated")
	}
}

func TestMeasurementFromData(t *testing.T) {
	data := map[string]any{
		"shoulder_height": 142.0,
		"weight":          63.2,
		"name":            "Mira",
		"age":             21.0,
	}

	got := MeasurementFromData(data)

	if got.ShoulderHeight != 142.0 {
		t.Errorf("ShoulderHeight = %v, want 142.0", got.ShoulderHeight)
	}
	if got.Weight != 63.2 {
		t.Errorf("Weight = %v, want 63.2", got.Weight)
	}
	if got.Name != "Mira" {
		t.Errorf("Name = %q, want %q", got.Name, "Mira")
	}
	if got.Age != 21 {
		t.Errorf("Age = %d, want 21", got.Age)
	}
	if got.CrownHeight != 0 {
		t.Errorf("CrownHeight = %v, want 0 (absent field)", got.CrownHeight)
	}
	if got.ID != "" || got.Date != "" || got.Time != "" {
		t.Error("telemetry payload should not be stamped")
	}
}
