// Package lanyard implements the Lanyard presence protocol: gateway frames,
// presence records, payload extraction and the REST user lookup.
//
// Gateway exchange:
//   - server sends Hello (op 1) with the heartbeat interval in milliseconds
//   - client answers with Initialize (op 2) naming the user to subscribe to
//   - client sends Heartbeat (op 3) at that interval
//   - server pushes Event (op 0) frames of type INIT_STATE and PRESENCE_UPDATE
package lanyard

import (
	"fmt"
	"math"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultGatewayURL is the public Lanyard websocket endpoint.
	DefaultGatewayURL = "wss://api.lanyard.rest/socket?v=1&encoding=json"
	// DefaultAPIURL is the public Lanyard REST endpoint.
	DefaultAPIURL = "https://api.lanyard.rest"
	// DefaultHeartbeatInterval is used when hello carries no usable interval.
	DefaultHeartbeatInterval = 30 * time.Second
	// InviteURL is where a user joins to have their presence monitored.
	InviteURL = "https://discord.com/invite/lanyard"
)

// Op is a gateway operation code.
type Op int

// Gateway operation codes.
const (
	OpEvent      Op = 0
	OpHello      Op = 1
	OpInitialize Op = 2
	OpHeartbeat  Op = 3
)

func (o Op) String() string {
	switch o {
	case OpEvent:
		return "event"
	case OpHello:
		return "hello"
	case OpInitialize:
		return "initialize"
	case OpHeartbeat:
		return "heartbeat"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Event types carried by OpEvent frames.
const (
	EventInitState      = "INIT_STATE"
	EventPresenceUpdate = "PRESENCE_UPDATE"
)

// Frame is a single gateway message.
type Frame struct {
	Op   Op                  `json:"op"`
	Seq  *int                `json:"seq,omitempty"`
	Type string              `json:"t,omitempty"`
	Data jsoniter.RawMessage `json:"d,omitempty"`
}

// Hello is the payload of an OpHello frame.
type Hello struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// Interval returns the advertised heartbeat period, or fallback when the
// server sent none or one too large to represent.
func (h Hello) Interval(fallback time.Duration) time.Duration {
	if h.HeartbeatInterval <= 0 || h.HeartbeatInterval > math.MaxInt64/int64(time.Millisecond) {
		return fallback
	}

	return time.Duration(h.HeartbeatInterval) * time.Millisecond
}

// Initialize is the payload of an OpInitialize frame.
type Initialize struct {
	SubscribeToID string `json:"subscribe_to_id"`
}

// DecodeFrame parses a raw gateway message.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	return &f, nil
}

// DecodeHello parses the payload of a hello frame. A missing payload yields
// a zero Hello.
func (f *Frame) DecodeHello() (Hello, error) {
	var h Hello
	if len(f.Data) == 0 {
		return h, nil
	}

	if err := json.Unmarshal(f.Data, &h); err != nil {
		return Hello{}, fmt.Errorf("decode hello: %w", err)
	}

	return h, nil
}

// IsPresenceEvent reports whether the frame carries presence data.
func (f *Frame) IsPresenceEvent() bool {
	return f.Op == OpEvent && (f.Type == EventInitState || f.Type == EventPresenceUpdate)
}

// EncodeInitialize builds the subscribe frame for userID.
func EncodeInitialize(userID string) ([]byte, error) {
	d, err := json.Marshal(Initialize{SubscribeToID: userID})
	if err != nil {
		return nil, fmt.Errorf("encode initialize: %w", err)
	}

	return json.Marshal(Frame{Op: OpInitialize, Data: d})
}

// EncodeHeartbeat builds the keepalive frame.
func EncodeHeartbeat() []byte {
	return []byte(`{"op":3}`)
}
