// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 DBTM Project

package bodyproto

// Measurement is one measurement snapshot with internal field names.
// Fields the rig did not report stay at their zero value, per the device
// contract. The same shape serves live telemetry (partial, unstamped) and
// finalized records (stamped with ID, Date and Time on completion).
type Measurement struct {
	ID             string  `json:"id,omitempty"`
	Name           string  `json:"name,omitempty"`
	Age            int     `json:"age,omitempty"`
	Weight         float64 `json:"weight,omitempty"`
	CrownHeight    float64 `json:"crownHeight,omitempty"`
	ShoulderHeight float64 `json:"shoulderHeight,omitempty"`
	ElbowReach     float64 `json:"elbowReach,omitempty"`
	HipHeight      float64 `json:"hipHeight,omitempty"`
	HandReach      float64 `json:"handReach,omitempty"`
	KneeHeight     float64 `json:"kneeHeight,omitempty"`
	AnkleHeight    float64 `json:"ankleHeight,omitempty"`
	Date           string  `json:"date,omitempty"`
	Time           string  `json:"time,omitempty"`
}

// MeasurementFromData builds a Measurement from a decoded envelope payload,
// applying the wire-to-internal field mapping first. Already-internal keys
// are accepted unchanged, so the function tolerates payloads that were
// mapped upstream.
func MeasurementFromData(data map[string]any) Measurement {
	m := MapToInternal(data)
	return Measurement{
		Name:           asString(m["name"]),
		Age:            int(asFloat(m["age"])),
		Weight:         asFloat(m["weight"]),
		CrownHeight:    asFloat(m["crownHeight"]),
		ShoulderHeight: asFloat(m["shoulderHeight"]),
		ElbowReach:     asFloat(m["elbowReach"]),
		HipHeight:      asFloat(m["hipHeight"]),
		HandReach:      asFloat(m["handReach"]),
		KneeHeight:     asFloat(m["kneeHeight"]),
		AnkleHeight:    asFloat(m["ankleHeight"]),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
