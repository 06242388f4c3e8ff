package logging

import (
	"testing"
	"time"
)

func entry(msg string) LogEntry {
	return LogEntry{Timestamp: time.Now(), Level: "info", Module: "test", Message: msg}
}

func TestRingBufferWrap(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		rb.Write(entry(msg))
	}

	entries := rb.ReadAll()
	if len(entries) != 3 {
		t.Fatalf("ReadAll len = %d, want 3", len(entries))
	}
	want := []string{"c", "d", "e"}
	for i, e := range entries {
		if e.Message != want[i] {
			t.Errorf("entry %d: Message = %q, want %q", i, e.Message, want[i])
		}
	}
	if rb.Count() != 3 {
		t.Errorf("Count = %d, want 3", rb.Count())
	}
}

func TestRingBufferSequence(t *testing.T) {
	rb := NewRingBuffer(10)
	first := rb.Write(entry("one"))
	second := rb.Write(entry("two"))
	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("Seq = %d, %d, want 1, 2", first.Seq, second.Seq)
	}
}

func TestRingBufferEmpty(t *testing.T) {
	rb := NewRingBuffer(4)
	if got := rb.ReadAll(); got != nil {
		t.Errorf("ReadAll on empty buffer = %v, want nil", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"WARN", "warn"},
		{"warning", "warn"},
		{"error", "error"},
		{"bogus", "info"},
	}
	for _, tt := range tests {
		if got := levelToString(parseLevel(tt.in)); got != tt.want {
			t.Errorf("parseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
