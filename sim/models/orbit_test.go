package models

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MDEGroup/satellite-interoperability/sim"
	"github.com/MDEGroup/satellite-interoperability/sim/config"
	"github.com/MDEGroup/satellite-interoperability/sim/numeric"
)

const (
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

func orbitSettings(line1, line2 string) string {
	return `
		SAT.TLE = [
		` + line1 + `
		` + line2 + `
		]
		SAT.EPOCH = [ 2008 9 20 12 25 40.5 ]
	`
}

func TestOrbit_PropagatesFromSettings(t *testing.T) {
	// GIVEN an orbit initialized at the element set epoch
	w, buf := newWorld(t)
	m, inst, err := NewOrbit(w, "SAT")
	require.NoError(t, err)

	// WHEN the settings are applied
	require.NoError(t, w.InitializeWith(settings(t, orbitSettings(issLine1, issLine2))))

	// THEN the epoch is parsed and the first state is a low Earth orbit
	assert.Equal(t, time.Date(2008, 9, 20, 12, 25, 40, 500_000_000, time.UTC), m.Epoch())
	assert.Equal(t, sim.StaticBeforePropagation, inst.Mode())
	r := numeric.Norm(inst.Y()[YPosition : YPosition+3])
	v := numeric.Norm(inst.Y()[YVelocity : YVelocity+3])
	assert.InDelta(t, 6.72e6, r, 0.05e6)
	assert.InDelta(t, 7.7e3, v, 0.2e3)
	assert.Contains(t, buf.String(), "SAT : SGP4 epoch 2008-09-20T12:25:40.5Z")
	assert.Equal(t, "SAT NORAD 25544 epoch 2008-09-20T12:25:40Z", m.String())
}

func TestOrbit_MovesWithSimulatedTime(t *testing.T) {
	w, _ := newWorld(t)
	m, inst, err := NewOrbit(w, "SAT")
	require.NoError(t, err)
	require.NoError(t, w.InitializeWith(settings(t, orbitSettings(issLine1, issLine2))))
	start := append([]float64(nil), inst.Y()...)

	// WHEN one minute elapses
	require.NoError(t, m.Update(60, true))

	// THEN the satellite has travelled about v * 60 s
	moved := make([]float64, 3)
	for i := range moved {
		moved[i] = inst.ValueY(YPosition+i) - start[YPosition+i]
	}
	assert.InDelta(t, 7.7e3*60, numeric.Norm(moved), 0.03*7.7e3*60)
}

func TestOrbit_SettingsErrors(t *testing.T) {
	badChecksum := issLine1[:68] + "0"
	tests := []struct {
		name string
		text string
		want error
	}{
		{"bad checksum", orbitSettings(badChecksum, issLine2), ErrInvalidTLE},
		{"lines swapped", orbitSettings(issLine2, issLine1), ErrInvalidTLE},
		{"missing TLE", "SAT.EPOCH = [ 2008 9 20 12 25 40 ]", config.ErrSymbolNotFound},
		{"missing epoch", strings.Replace(orbitSettings(issLine1, issLine2), "SAT.EPOCH", "SAT.START", 1), config.ErrSymbolNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newWorld(t)
			m, _, err := NewOrbit(w, "SAT")
			require.NoError(t, err)

			err = w.InitializeWith(settings(t, tt.text))

			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, "SAT (not initialized)", m.String())
		})
	}
}

func TestCheckTLE(t *testing.T) {
	tests := []struct {
		name         string
		line1, line2 string
		ok           bool
	}{
		{"valid", issLine1, issLine2, true},
		{"short line", issLine1[:60], issLine2, false},
		{"wrong line number", "3" + issLine1[1:], issLine2, false},
		{"different satellites", issLine1, "2 25545" + issLine2[7:], false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkTLE(tt.line1, tt.line2)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidTLE), "got %v", err)
		})
	}
}

func TestTLEChecksum(t *testing.T) {
	assert.Equal(t, 7, tleChecksum(issLine1))
	assert.Equal(t, 7, tleChecksum(issLine2))
}
