package model

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirection_Opposite(t *testing.T) {
	assert.Equal(t, Lower, Upper.Opposite())
	assert.Equal(t, Upper, Lower.Opposite())
	assert.Equal(t, "upper", Upper.String())
	assert.Equal(t, "lower", Lower.String())
}

func TestNewSpreadSnapshot(t *testing.T) {
	a := Quote{Ticker: "PAXG", Mark: decimal.RequireFromString("2650.4"),
		Bid: decimal.RequireFromString("2650.1"), Ask: decimal.RequireFromString("2650.9")}
	b := Quote{Ticker: "XAUT", Mark: decimal.RequireFromString("2634.2"),
		Bid: decimal.RequireFromString("2633.8"), Ask: decimal.RequireFromString("2634.5")}

	s := NewSpreadSnapshot(a, b, time.Unix(0, 0))

	assert.Equal(t, 16.2, s.MarkSpread)
	assert.Equal(t, 15.6, s.DirectionalFor(Upper))
	assert.Equal(t, 17.1, s.DirectionalFor(Lower))
}

func TestGearMemory_SetCopies(t *testing.T) {
	var m GearMemory
	g := 16.0
	m.Set(Upper, &g)
	g = 99

	require.NotNil(t, m.Get(Upper))
	assert.Equal(t, 16.0, *m.Get(Upper))
	assert.Nil(t, m.Get(Lower))

	m.Set(Upper, nil)
	assert.True(t, m.IsEmpty())
}

func TestGearMemory_JSONNulls(t *testing.T) {
	m := GearMemory{Upper: Gear(16.5)}
	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"upper":16.5,"lower":null}`, string(b))

	var back GearMemory
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Equal(m))
}

func TestAlertEvent_JSONDirection(t *testing.T) {
	ev := AlertEvent{ID: "x", Direction: Lower, Gear: 10.5}
	b, err := ev.JSON()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "lower", out["direction"])
	assert.Equal(t, 10.5, out["gear"])
}

func TestDecodeGearMemory(t *testing.T) {
	m, err := DecodeGearMemory(nil)
	require.NoError(t, err)
	assert.True(t, m.IsEmpty())

	m, err = DecodeGearMemory([]byte(`{"upper":null,"lower":9.5}`))
	require.NoError(t, err)
	assert.True(t, m.Equal(GearMemory{Lower: Gear(9.5)}))

	m, err = DecodeGearMemory([]byte(`{"upper":`))
	assert.ErrorIs(t, err, ErrCorruptMemory)
	assert.True(t, m.IsEmpty())

	b, err := EncodeGearMemory(GearMemory{Upper: Gear(16)})
	require.NoError(t, err)
	back, err := DecodeGearMemory(b)
	require.NoError(t, err)
	assert.True(t, back.Equal(GearMemory{Upper: Gear(16)}))
}

func TestAlertEvent_JSONRoundTrip(t *testing.T) {
	ev := AlertEvent{ID: "id-1", Direction: Lower, Gear: 9.5, DirectionalSpread: 10.4,
		MarkSpread: 9.8, FiredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}

	b, err := ev.JSON()
	require.NoError(t, err)
	var back AlertEvent
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, ev, back)

	assert.Error(t, json.Unmarshal([]byte(`{"direction":"sideways"}`), &back))
}

func TestAlertEvent_JSONReportsUnencodable(t *testing.T) {
	ev := AlertEvent{ID: "nan", Direction: Upper, Gear: math.NaN()}
	b, err := ev.JSON()
	require.Error(t, err)
	assert.Nil(t, b)
	assert.Contains(t, err.Error(), "nan")
}
