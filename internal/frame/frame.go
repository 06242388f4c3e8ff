// Package frame defines the immutable CAN bus event model shared by the
// capture, dispatch, trace and replay subsystems.
package frame

import (
	"fmt"
	"strings"
	"time"
)

// Direction indicates whether a frame was received from or transmitted to the bus.
type Direction uint8

const (
	// Rx marks a frame received from the bus.
	Rx Direction = iota
	// Tx marks a frame transmitted by this node.
	Tx
)

// String returns the trace-file token for the direction.
func (d Direction) String() string {
	if d == Tx {
		return "Tx"
	}
	return "Rx"
}

// Flags describe frame-level attributes.
type Flags uint8

const (
	// Extended marks a 29-bit arbitration identifier.
	Extended Flags = 1 << iota
	// FD marks a CAN FD frame (payload up to 64 bytes).
	FD
	// BitrateSwitch marks an FD frame sent with the data-phase bitrate.
	BitrateSwitch
	// Error marks an error frame.
	Error
	// Remote marks a remote transmission request.
	Remote
)

// ErrorKind tags the cause of an error frame.
type ErrorKind uint8

const (
	ErrNone ErrorKind = iota
	ErrBit
	ErrStuff
	ErrCRC
	ErrForm
	ErrAck
	ErrOther
)

// String returns the trace-file token for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrBit:
		return "BIT"
	case ErrStuff:
		return "STUFF"
	case ErrCRC:
		return "CRC"
	case ErrForm:
		return "FORM"
	case ErrAck:
		return "ACK"
	case ErrOther:
		return "OTHER"
	}
	return "NONE"
}

// ParseErrorKind converts a trace-file token back into an ErrorKind.
func ParseErrorKind(s string) (ErrorKind, bool) {
	switch s {
	case "BIT":
		return ErrBit, true
	case "STUFF":
		return ErrStuff, true
	case "CRC":
		return ErrCRC, true
	case "FORM":
		return ErrForm, true
	case "ACK":
		return ErrAck, true
	case "OTHER":
		return ErrOther, true
	case "NONE":
		return ErrNone, true
	}
	return ErrNone, false
}

const (
	// MaxStandardID is the largest 11-bit arbitration identifier.
	MaxStandardID = 0x7FF
	// MaxExtendedID is the largest 29-bit arbitration identifier.
	MaxExtendedID = 0x1FFFFFFF
	// MaxClassicPayload is the classic CAN payload limit.
	MaxClassicPayload = 8
	// MaxFDPayload is the CAN FD payload limit.
	MaxFDPayload = 64
)

// Frame is one captured or synthesized bus event. Frames are treated as
// immutable once constructed; Data must not be mutated after a frame is
// handed to the dispatcher or trace buffer.
type Frame struct {
	ID        uint32
	Dir       Direction
	Flags     Flags
	ErrKind   ErrorKind
	Data      []byte
	Timestamp time.Time
	Bus       uint8
	Channel   string
}

// IsExtended reports whether the frame carries a 29-bit identifier.
func (f Frame) IsExtended() bool { return f.Flags&Extended != 0 }

// IsFD reports whether the frame is a CAN FD frame.
func (f Frame) IsFD() bool { return f.Flags&FD != 0 }

// IsError reports whether the frame is an error frame.
func (f Frame) IsError() bool { return f.Flags&Error != 0 }

// IsRemote reports whether the frame is a remote transmission request.
func (f Frame) IsRemote() bool { return f.Flags&Remote != 0 }

// DLC returns the data length code, which for the formats handled here is
// the payload length.
func (f Frame) DLC() int { return len(f.Data) }

// IDString formats the arbitration identifier the way the trace tooling
// displays it: 3 hex digits for standard IDs, 8 for extended.
func (f Frame) IDString() string {
	if f.IsExtended() {
		return fmt.Sprintf("%08X", f.ID)
	}
	return fmt.Sprintf("%03X", f.ID)
}

// DataString renders the payload as space-separated uppercase hex bytes.
func (f Frame) DataString() string {
	if len(f.Data) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(f.Data) * 3)
	for i, b := range f.Data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// Type returns a short display name for the frame kind.
func (f Frame) Type() string {
	switch {
	case f.IsError():
		return "Error"
	case f.IsRemote():
		return "RTR"
	case f.IsFD():
		return "FD"
	}
	return "Data"
}

// Validate checks the frame invariants: identifier range against the
// Extended flag, payload length against the FD flag, and that error frames
// carry at most a diagnostic payload.
func (f Frame) Validate() error {
	maxID := uint32(MaxStandardID)
	if f.IsExtended() {
		maxID = MaxExtendedID
	}
	if f.ID > maxID {
		return fmt.Errorf("frame id 0x%X exceeds %d-bit range", f.ID, idBits(f))
	}
	maxLen := MaxClassicPayload
	if f.IsFD() {
		maxLen = MaxFDPayload
	}
	if len(f.Data) > maxLen {
		return fmt.Errorf("payload length %d exceeds %d-byte limit", len(f.Data), maxLen)
	}
	if f.IsError() {
		if f.ErrKind == ErrNone {
			return fmt.Errorf("error frame missing error kind")
		}
		if len(f.Data) > MaxClassicPayload {
			return fmt.Errorf("error frame payload length %d exceeds diagnostic limit", len(f.Data))
		}
	}
	return nil
}

func idBits(f Frame) int {
	if f.IsExtended() {
		return 29
	}
	return 11
}
