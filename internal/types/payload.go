package types

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// MULTIMODAL / SPATIAL FACT PAYLOADS
// =============================================================================
// These records travel inside AgentFact.Content. They are plain data; nothing in
// the core interprets them beyond encoding and decoding.

// Payload kinds, used as the "type" tag of the wire union.
const (
	PayloadMultimodal = "MultimodalFact"
	PayloadRobotics   = "RoboticsAction"
)

// Vector3D is a 3D coordinate, serialized as [x, y, z].
type Vector3D [3]float32

func NewVector3D(x, y, z float32) Vector3D { return Vector3D{x, y, z} }

func (v Vector3D) X() float32 { return v[0] }
func (v Vector3D) Y() float32 { return v[1] }
func (v Vector3D) Z() float32 { return v[2] }

// MultimodalFact is sensor-derived input. DataHash references an external blob.
type MultimodalFact struct {
	SensorID  string   `json:"sensor_id"`
	Timestamp int64    `json:"timestamp"`
	Location  Vector3D `json:"location"`
	DataHash  string   `json:"data_hash"`
}

// RoboticsActionFact is the outcome of a physical action executed by an embodied agent.
type RoboticsActionFact struct {
	Directive      string   `json:"directive"`
	TargetLocation Vector3D `json:"target_location"`
	Status         string   `json:"status"`
}

// FactPayload is a tagged union: exactly one of Multimodal or Robotics is set.
type FactPayload struct {
	Multimodal *MultimodalFact
	Robotics   *RoboticsActionFact
}

type payloadEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Kind returns the wire tag of the populated variant, or "" if none is set.
func (p FactPayload) Kind() string {
	switch {
	case p.Multimodal != nil:
		return PayloadMultimodal
	case p.Robotics != nil:
		return PayloadRobotics
	default:
		return ""
	}
}

// MarshalJSON encodes the payload as {"type": ..., "payload": {...}}.
func (p FactPayload) MarshalJSON() ([]byte, error) {
	var inner interface{}
	switch {
	case p.Multimodal != nil && p.Robotics != nil:
		return nil, fmt.Errorf("fact payload has more than one variant set")
	case p.Multimodal != nil:
		inner = p.Multimodal
	case p.Robotics != nil:
		inner = p.Robotics
	default:
		return nil, fmt.Errorf("fact payload has no variant set")
	}
	raw, err := json.Marshal(inner)
	if err != nil {
		return nil, err
	}
	return json.Marshal(payloadEnvelope{Type: p.Kind(), Payload: raw})
}

// UnmarshalJSON decodes the tagged form; unknown tags are an error.
func (p *FactPayload) UnmarshalJSON(data []byte) error {
	var env payloadEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*p = FactPayload{}
	switch env.Type {
	case PayloadMultimodal:
		var m MultimodalFact
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		p.Multimodal = &m
	case PayloadRobotics:
		var r RoboticsActionFact
		if err := json.Unmarshal(env.Payload, &r); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		p.Robotics = &r
	default:
		return fmt.Errorf("unknown fact payload type %q", env.Type)
	}
	return nil
}

// EncodePayload renders a payload as AgentFact content.
func EncodePayload(p FactPayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodePayload parses AgentFact content produced by EncodePayload.
func DecodePayload(content string) (FactPayload, error) {
	var p FactPayload
	err := json.Unmarshal([]byte(content), &p)
	return p, err
}
