package numparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtof(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"3.5", 3.5},
		{"  -2e3", -2000},
		{"1.25xyz", 1.25},
		{"1e", 1},
		{"abc", 0},
		{"", 0},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Atof(tc.in))
		})
	}
}

func TestAtoi(t *testing.T) {
	assert.Equal(t, 12, Atoi("12"))
	assert.Equal(t, -4, Atoi(" -4x"))
	assert.Equal(t, 3, Atoi("3.9"))
	assert.Equal(t, 0, Atoi("-"))
	assert.Equal(t, 0, Atoi("x1"))
}

func TestWord(t *testing.T) {
	assert.Equal(t, uint16(0xCACA), Word("#CACA"))
	assert.Equal(t, uint16(0x1f), Word("#1fz"))
	assert.Equal(t, uint16(42), Word("42"))
	assert.Equal(t, uint16(0), Word("#"))
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("1.5E-3"))
	assert.False(t, IsNumeric("1.5f"))
	assert.False(t, IsNumeric(""))
}
