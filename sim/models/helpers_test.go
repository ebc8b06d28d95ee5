package models

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MDEGroup/satellite-interoperability/sim"
	"github.com/MDEGroup/satellite-interoperability/sim/config"
)

func newWorld(t *testing.T) (*sim.World, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	w := sim.NewWorld(sim.Options{LogWriter: &buf, LogDir: t.TempDir(), Seed: 7})
	t.Cleanup(w.DestroyAll)
	return w, &buf
}

// settings parses text as a settings file. Leading tabs are stripped so the
// fixtures can be indented.
func settings(t *testing.T, text string) *config.Store {
	t.Helper()
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimLeft(l, "\t")
	}
	s, err := config.Parse("dss.set", strings.NewReader(strings.Join(lines, "\n")), nil)
	require.NoError(t, err)
	return s
}
