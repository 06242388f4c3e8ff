package seckey

import "fmt"

func init() {
	Register(xorStrategy{})
}

// xorStrategy is the classic bench-testing algorithm: each seed byte XORed
// with a level-dependent mask. Matches the default used by most ECU
// simulators, which makes it useful against test targets.
type xorStrategy struct{}

func (xorStrategy) Name() string { return "xor" }

func (xorStrategy) ComputeKey(seed []byte, level int) ([]byte, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("seckey: empty seed")
	}
	mask := byte(0xA5) ^ byte(level)
	key := make([]byte, len(seed))
	for i, b := range seed {
		key[i] = b ^ mask
	}
	return key, nil
}
