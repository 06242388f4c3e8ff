package events

// Event type constants for kelindar/event.
const (
	TypeBusConnected uint32 = iota + 1
	TypeBusDisconnected
	TypeCaptureStarted
	TypeCaptureStopped
	TypePlayerStateChanged
	TypeDeliveryError
	TypeTraceSaved
	TypeTraceLoaded
	TypeFrame
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// BusConnectedEvent is published when a bus adapter is opened.
type BusConnectedEvent struct {
	Connection string `json:"connection" example:"Connection1" doc:"Connection display name"`
	Interface  string `json:"interface" example:"virtual" doc:"Adapter driver name"`
	Channel    string `json:"channel" example:"vcan0" doc:"Bus channel"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for BusConnectedEvent.
func (e BusConnectedEvent) Type() uint32 { return TypeBusConnected }

// BusDisconnectedEvent is published when a bus adapter is closed.
type BusDisconnectedEvent struct {
	Connection string `json:"connection" example:"Connection1" doc:"Connection display name"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for BusDisconnectedEvent.
func (e BusDisconnectedEvent) Type() uint32 { return TypeBusDisconnected }

// CaptureStartedEvent is published when live capture into the trace buffer begins.
type CaptureStartedEvent struct {
	Channel   string `json:"channel" example:"vcan0" doc:"Bus channel being captured"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureStartedEvent.
func (e CaptureStartedEvent) Type() uint32 { return TypeCaptureStarted }

// CaptureStoppedEvent is published when live capture ends.
type CaptureStoppedEvent struct {
	Channel   string `json:"channel" example:"vcan0" doc:"Bus channel"`
	Records   uint64 `json:"records" example:"4821" doc:"Total records captured this session"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureStoppedEvent.
func (e CaptureStoppedEvent) Type() uint32 { return TypeCaptureStopped }

// PlayerStateChangedEvent is published on every replay state transition.
type PlayerStateChangedEvent struct {
	State     string  `json:"state" example:"playing" doc:"New player state"`
	Position  float64 `json:"position" example:"12.345" doc:"Replay position in seconds"`
	Speed     float64 `json:"speed" example:"2" doc:"Speed multiplier, 0 for max"`
	Timestamp string  `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PlayerStateChangedEvent.
func (e PlayerStateChangedEvent) Type() uint32 { return TypePlayerStateChanged }

// DeliveryErrorEvent is published when a subscriber's handler faults.
type DeliveryErrorEvent struct {
	Subscription string `json:"subscription" example:"watch" doc:"Subscription name"`
	Error        string `json:"error" doc:"Fault description"`
	FrameID      string `json:"frame_id" example:"123" doc:"Arbitration ID of the frame being delivered"`
	Timestamp    string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeliveryErrorEvent.
func (e DeliveryErrorEvent) Type() uint32 { return TypeDeliveryError }

// TraceSavedEvent is published after a buffer snapshot is written to disk.
type TraceSavedEvent struct {
	Path      string `json:"path" example:"/var/lib/canscope/trace_001.trc" doc:"Trace file path"`
	Records   int    `json:"records" example:"4821" doc:"Records written"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TraceSavedEvent.
func (e TraceSavedEvent) Type() uint32 { return TypeTraceSaved }

// TraceLoadedEvent is published after a trace file is loaded into the player.
type TraceLoadedEvent struct {
	Path      string  `json:"path" example:"/var/lib/canscope/trace_001.trc" doc:"Trace file path"`
	Records   int     `json:"records" example:"4821" doc:"Records loaded"`
	Duration  float64 `json:"duration" example:"73.205" doc:"Trace duration in seconds"`
	Timestamp string  `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TraceLoadedEvent.
func (e TraceLoadedEvent) Type() uint32 { return TypeTraceLoaded }

// FrameEvent carries one live or replayed frame to SSE clients.
type FrameEvent struct {
	Seq       uint64 `json:"seq" example:"42" doc:"Trace sequence number, 0 when not recorded"`
	ID        string `json:"id" example:"123" doc:"Arbitration identifier, hex"`
	Dir       string `json:"dir" example:"Rx" doc:"Direction token"`
	Kind      string `json:"kind" example:"Data" doc:"Frame kind"`
	DLC       int    `json:"dlc" example:"8" doc:"Data length"`
	Data      string `json:"data" example:"01 02 03 04 05 06 07 08" doc:"Payload bytes, hex"`
	Channel   string `json:"channel" example:"vcan0" doc:"Bus channel"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00.123Z" doc:"Capture timestamp"`
}

// Type returns the event type identifier for FrameEvent.
func (e FrameEvent) Type() uint32 { return TypeFrame }

// LogEntryEvent carries one log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
