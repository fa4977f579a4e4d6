package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// GearMemory is the durable projection of both directions' last fired gear.
// A nil field means no memory: the next crossing on that side may fire at once.
type GearMemory struct {
	Upper *float64 `json:"upper"`
	Lower *float64 `json:"lower"`
}

// Get returns the last fired gear for d.
func (m GearMemory) Get(d Direction) *float64 {
	if d == Upper {
		return m.Upper
	}
	return m.Lower
}

// Set replaces the last fired gear for d. The value is copied.
func (m *GearMemory) Set(d Direction, gear *float64) {
	if gear != nil {
		g := *gear
		gear = &g
	}
	if d == Upper {
		m.Upper = gear
	} else {
		m.Lower = gear
	}
}

// Equal reports whether both sides hold the same memory.
func (m GearMemory) Equal(o GearMemory) bool {
	return sameGear(m.Upper, o.Upper) && sameGear(m.Lower, o.Lower)
}

// IsEmpty is true when neither side remembers a firing.
func (m GearMemory) IsEmpty() bool {
	return m.Upper == nil && m.Lower == nil
}

// Gear returns a pointer to a copy of g, for building GearMemory literals.
func Gear(g float64) *float64 {
	return &g
}

func sameGear(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// EncodeGearMemory is the on-disk/on-wire form shared by the key/value backends.
func EncodeGearMemory(m GearMemory) ([]byte, error) {
	return json.Marshal(m)
}

// DecodeGearMemory parses EncodeGearMemory output. Empty input is an absent
// record; anything unparsable wraps ErrCorruptMemory.
func DecodeGearMemory(data []byte) (GearMemory, error) {
	var m GearMemory
	if len(bytes.TrimSpace(data)) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return GearMemory{}, fmt.Errorf("%w: %v", ErrCorruptMemory, err)
	}
	return m, nil
}
