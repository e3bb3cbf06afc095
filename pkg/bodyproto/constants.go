// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 DBTM Project

// Package bodyproto implements the wire protocol spoken by the DBTM
// body-measurement rig over its WebSocket endpoint.
//
// Outbound traffic is one of three shapes: the bare control string
// CmdStartMeasurement, a bare numeric step code ("0" through "6"), or a
// JSON hello envelope announcing the UI client. Inbound traffic is JSON
// envelopes carrying snake_case measurement fields, interleaved with
// plain-text keepalives that carry no protocol meaning and are dropped.
package bodyproto

// DevicePort is the WebSocket port the rig listens on.
const DevicePort = 81

// Outbound control strings
const (
	CmdStartMeasurement = "START_MEASUREMENT"
)

// Envelope types
const (
	TypeClientConnected = "UI_CLIENT_CONNECTED"
	TypeLiveMeasurement = "live_measurement"
	TypeDone            = "done"
)

// StepID identifies one entry of the fixed measurement catalogue.
// For sensor-measured steps the numeric value doubles as the wire command.
type StepID int

// Measurement step codes
const (
	StepNameAge StepID = iota
	StepCrownHeight
	StepShoulderHeight
	StepElbowReach
	StepHipHeight
	StepHandReach
	StepKneeHeight
	StepAnkleHeight
)

// Step describes one measurement sub-task.
type Step struct {
	ID     StepID
	Label  string
	Manual bool // operator enters the value directly, no device command
}

// Steps is the fixed catalogue, ordered by wire code. The ankle height
// sensor does not exist on the rig, so step 7 is always manual entry.
var Steps = [8]Step{
	{StepNameAge, "Name & Age", false},
	{StepCrownHeight, "Crown Height", false},
	{StepShoulderHeight, "Shoulder Height", false},
	{StepElbowReach, "Elbow Reach", false},
	{StepHipHeight, "Hip Height", false},
	{StepHandReach, "Hand Reach", false},
	{StepKneeHeight, "Knee Height", false},
	{StepAnkleHeight, "Ankle Height (manual)", true},
}

// StepByID looks up a catalogue entry by wire code.
func StepByID(id StepID) (Step, bool) {
	if id < 0 || int(id) >= len(Steps) {
		return Step{}, false
	}
	return Steps[id], true
}
