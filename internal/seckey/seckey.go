// Package seckey computes diagnostic security-access keys from ECU seeds.
// Algorithms are compiled-in Strategy implementations selected by name; no
// code is ever loaded at runtime.
package seckey

import (
	"fmt"
	"sort"
	"sync"
)

// Strategy derives the key for a security-access seed challenge.
type Strategy interface {
	// Name identifies the strategy in configuration and the API.
	Name() string
	// ComputeKey derives the key for the given seed at the given security
	// level. The seed is never mutated.
	ComputeKey(seed []byte, level int) ([]byte, error)
}

var (
	mu         sync.RWMutex
	strategies = make(map[string]Strategy)
)

// Register makes a strategy selectable by name. Strategies register
// themselves from init; a duplicate name panics at startup.
func Register(s Strategy) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := strategies[s.Name()]; dup {
		panic(fmt.Sprintf("seckey: duplicate strategy %q", s.Name()))
	}
	strategies[s.Name()] = s
}

// Get returns the strategy registered under name.
func Get(name string) (Strategy, error) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("seckey: unknown strategy %q", name)
	}
	return s, nil
}

// Names returns the registered strategy names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
