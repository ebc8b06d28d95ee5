// Package testutil provides shared test infrastructure for the simulation
// kernel. It consolidates settings fixtures and assertion helpers used across
// sim/ and its sub-packages; it never imports sim itself.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteSettings writes content as a settings file in a per-test directory and
// returns its path. Leading tabs are stripped from every line so fixtures can
// be indented in the test source.
func WriteSettings(t *testing.T, content string) string {
	t.Helper()
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimLeft(l, "\t")
	}
	path := filepath.Join(t.TempDir(), "dss.set")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatalf("Failed to write settings file: %v", err)
	}
	return path
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertSliceEqual compares two float64 slices element-wise with absolute
// tolerance.
func AssertSliceEqual(t *testing.T, name string, want, got []float64, absTol float64) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("%s: got %d elements, want %d", name, len(got), len(want))
	}
	for i := range want {
		if math.Abs(want[i]-got[i]) > absTol {
			t.Errorf("%s[%d]: got %v, want %v", name, i, got[i], want[i])
		}
	}
}
