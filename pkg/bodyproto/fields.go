// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 DBTM Project

package bodyproto

// fieldNames maps the rig's snake_case field names to the application's
// internal camelCase names. The table covers the rig firmware's documented
// field set; anything outside it passes through untouched so a firmware
// addition does not break decoding. No internal name appears as a key,
// which makes MapToInternal idempotent.
var fieldNames = map[string]string{
	"crown_height":    "crownHeight",
	"shoulder_height": "shoulderHeight",
	"elbow_reach":     "elbowReach",
	"hip_height":      "hipHeight",
	"hand_reach":      "handReach",
	"knee_height":     "kneeHeight",
	"ankle_height":    "ankleHeight",
	"weight":          "weight",
	"name":            "name",
	"age":             "age",
}

// MapToInternal renames the wire fields of data to their internal names.
// Unknown keys pass through unchanged. The input map is not modified.
func MapToInternal(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if internal, ok := fieldNames[k]; ok {
			out[internal] = v
		} else {
			out[k] = v
		}
	}
	return out
}
