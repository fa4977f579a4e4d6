package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// AlertEvent records one confirmed gear firing.
type AlertEvent struct {
	ID                string    `json:"id"`
	Direction         Direction `json:"-"`
	Gear              float64   `json:"gear"`
	DirectionalSpread float64   `json:"directional_spread"`
	MarkSpread        float64   `json:"mark_spread"`
	FiredAt           time.Time `json:"fired_at"`
}

// MarshalJSON writes the direction by name.
func (e AlertEvent) MarshalJSON() ([]byte, error) {
	type plain AlertEvent
	return json.Marshal(struct {
		plain
		Direction string `json:"direction"`
	}{plain(e), e.Direction.String()})
}

// JSON returns the JSON-encoded event.
func (e AlertEvent) JSON() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal alert %s: %w", e.ID, err)
	}
	return b, nil
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (e *AlertEvent) UnmarshalJSON(data []byte) error {
	type plain AlertEvent
	var aux struct {
		plain
		Direction string `json:"direction"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d, err := ParseDirection(aux.Direction)
	if err != nil {
		return err
	}
	*e = AlertEvent(aux.plain)
	e.Direction = d
	return nil
}
