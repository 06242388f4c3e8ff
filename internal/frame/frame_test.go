package frame

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		wantErr bool
	}{
		{
			name:  "standard data frame",
			frame: Frame{ID: 0x123, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		},
		{
			name:  "empty payload",
			frame: Frame{ID: 0x7FF},
		},
		{
			name:    "standard id out of range",
			frame:   Frame{ID: 0x800},
			wantErr: true,
		},
		{
			name:  "extended id",
			frame: Frame{ID: 0x1FFFFFFF, Flags: Extended},
		},
		{
			name:    "extended id out of range",
			frame:   Frame{ID: 0x20000000, Flags: Extended},
			wantErr: true,
		},
		{
			name:    "classic payload too long",
			frame:   Frame{ID: 0x100, Data: make([]byte, 9)},
			wantErr: true,
		},
		{
			name:  "fd payload",
			frame: Frame{ID: 0x100, Flags: FD, Data: make([]byte, 64)},
		},
		{
			name:    "fd payload too long",
			frame:   Frame{ID: 0x100, Flags: FD, Data: make([]byte, 65)},
			wantErr: true,
		},
		{
			name:  "error frame with kind",
			frame: Frame{ID: 0, Flags: Error, ErrKind: ErrCRC},
		},
		{
			name:    "error frame without kind",
			frame:   Frame{ID: 0, Flags: Error},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIDString(t *testing.T) {
	tests := []struct {
		frame Frame
		want  string
	}{
		{Frame{ID: 0x123}, "123"},
		{Frame{ID: 0x1}, "001"},
		{Frame{ID: 0x18DAF110, Flags: Extended}, "18DAF110"},
		{Frame{ID: 0x1, Flags: Extended}, "00000001"},
	}
	for _, tt := range tests {
		if got := tt.frame.IDString(); got != tt.want {
			t.Errorf("IDString() = %q, want %q", got, tt.want)
		}
	}
}

func TestDataString(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{nil, ""},
		{[]byte{0x01}, "01"},
		{[]byte{0xAA, 0xBB, 0x00}, "AA BB 00"},
	}
	for _, tt := range tests {
		f := Frame{Data: tt.data}
		if got := f.DataString(); got != tt.want {
			t.Errorf("DataString() = %q, want %q", got, tt.want)
		}
	}
}

func TestErrorKindRoundTrip(t *testing.T) {
	kinds := []ErrorKind{ErrNone, ErrBit, ErrStuff, ErrCRC, ErrForm, ErrAck, ErrOther}
	for _, kind := range kinds {
		got, ok := ParseErrorKind(kind.String())
		if !ok || got != kind {
			t.Errorf("ParseErrorKind(%q) = %v, %v", kind.String(), got, ok)
		}
	}
	if _, ok := ParseErrorKind("BOGUS"); ok {
		t.Error("ParseErrorKind accepted unknown token")
	}
}

func TestType(t *testing.T) {
	tests := []struct {
		frame Frame
		want  string
	}{
		{Frame{}, "Data"},
		{Frame{Flags: FD}, "FD"},
		{Frame{Flags: Remote}, "RTR"},
		{Frame{Flags: Error, ErrKind: ErrBit}, "Error"},
		{Frame{Flags: Error | FD, ErrKind: ErrBit}, "Error"},
	}
	for _, tt := range tests {
		if got := tt.frame.Type(); got != tt.want {
			t.Errorf("Type() = %q, want %q", got, tt.want)
		}
	}
}

func TestDirectionString(t *testing.T) {
	if Rx.String() != "Rx" || Tx.String() != "Tx" {
		t.Errorf("direction tokens = %q, %q", Rx.String(), Tx.String())
	}
}

func TestTimestampPreserved(t *testing.T) {
	ts := time.Date(2026, 1, 27, 10, 30, 0, 0, time.UTC)
	f := Frame{ID: 0x123, Timestamp: ts}
	if !f.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", f.Timestamp, ts)
	}
}
