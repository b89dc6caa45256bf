package lanyard

import (
	"bytes"

	jsoniter "github.com/json-iterator/go"
)

// Shape names where a presence record was found inside an event payload.
type Shape int

// Payload shapes, in the order they are tried.
const (
	ShapeUnrecognized Shape = iota
	ShapeTopLevel
	ShapeNested
)

func (s Shape) String() string {
	switch s {
	case ShapeTopLevel:
		return "top-level"
	case ShapeNested:
		return "nested"
	default:
		return "unrecognized"
	}
}

// Strategy attempts to find a presence record in an event payload.
type Strategy struct {
	Shape   Shape
	Extract func(d jsoniter.RawMessage) (*Presence, bool)
}

// Strategies is the ordered list consulted by Extract.
var Strategies = []Strategy{
	{Shape: ShapeTopLevel, Extract: ExtractTopLevel},
	{Shape: ShapeNested, Extract: ExtractNested},
}

// Extract runs Strategies in order and returns the first record found.
// Payloads no strategy recognizes yield (nil, ShapeUnrecognized).
func Extract(d jsoniter.RawMessage) (*Presence, Shape) {
	for _, s := range Strategies {
		if p, ok := s.Extract(d); ok {
			return p, s.Shape
		}
	}

	return nil, ShapeUnrecognized
}

// ExtractTopLevel treats d itself as the record. It requires a discord_user
// object.
func ExtractTopLevel(d jsoniter.RawMessage) (*Presence, bool) {
	if !isObject(d) {
		return nil, false
	}

	var probe struct {
		DiscordUser jsoniter.RawMessage `json:"discord_user"`
	}
	if err := json.Unmarshal(d, &probe); err != nil || !isObject(probe.DiscordUser) {
		return nil, false
	}

	var p Presence
	if err := json.Unmarshal(d, &p); err != nil {
		return nil, false
	}

	return &p, true
}

// ExtractNested looks one level down, under a "data" key.
func ExtractNested(d jsoniter.RawMessage) (*Presence, bool) {
	if !isObject(d) {
		return nil, false
	}

	var wrapper struct {
		Data jsoniter.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(d, &wrapper); err != nil {
		return nil, false
	}

	return ExtractTopLevel(wrapper.Data)
}

func isObject(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
