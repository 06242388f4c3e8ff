package seckey

import (
	"bytes"
	"testing"
)

func TestXORStrategy(t *testing.T) {
	s, err := Get("xor")
	if err != nil {
		t.Fatalf("Get(xor) failed: %v", err)
	}
	if s.Name() != "xor" {
		t.Errorf("Name = %q, want xor", s.Name())
	}

	tests := []struct {
		name  string
		seed  []byte
		level int
		want  []byte
	}{
		{
			name:  "level 1",
			seed:  []byte{0x11, 0x22, 0x33, 0x44},
			level: 1,
			want:  []byte{0x11 ^ 0xA4, 0x22 ^ 0xA4, 0x33 ^ 0xA4, 0x44 ^ 0xA4},
		},
		{
			name:  "level 3",
			seed:  []byte{0x00},
			level: 3,
			want:  []byte{0xA5 ^ 0x03},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := s.ComputeKey(tt.seed, tt.level)
			if err != nil {
				t.Fatalf("ComputeKey failed: %v", err)
			}
			if !bytes.Equal(key, tt.want) {
				t.Errorf("ComputeKey = % X, want % X", key, tt.want)
			}
		})
	}

	if _, err := s.ComputeKey(nil, 1); err == nil {
		t.Error("ComputeKey accepted empty seed")
	}
}

func TestComputeKeyDoesNotMutateSeed(t *testing.T) {
	s, err := Get("xor")
	if err != nil {
		t.Fatalf("Get(xor) failed: %v", err)
	}
	seed := []byte{0x10, 0x20}
	orig := append([]byte(nil), seed...)
	if _, err := s.ComputeKey(seed, 1); err != nil {
		t.Fatalf("ComputeKey failed: %v", err)
	}
	if !bytes.Equal(seed, orig) {
		t.Errorf("seed mutated: % X", seed)
	}
}

func TestGetUnknown(t *testing.T) {
	if _, err := Get("no-such-strategy"); err == nil {
		t.Error("Get accepted unknown strategy")
	}
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	if len(names) == 0 {
		t.Fatal("Names() empty")
	}
	for i := 1; i < len(names); i++ {
		if names[i] < names[i-1] {
			t.Errorf("Names() not sorted: %v", names)
		}
	}
	found := false
	for _, n := range names {
		if n == "xor" {
			found = true
		}
	}
	if !found {
		t.Errorf("Names() = %v, missing xor", names)
	}
}
