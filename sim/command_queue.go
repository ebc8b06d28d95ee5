package sim

import (
	"math"
	"sort"
	"strings"

	"github.com/MDEGroup/satellite-interoperability/sim/config"
	"github.com/MDEGroup/satellite-interoperability/sim/internal/numparse"
	"github.com/MDEGroup/satellite-interoperability/sim/runlog"
)

// CommandStackSymbol is the settings entry holding the time-tagged commands,
// one "elapsedTime, command" row per line.
const CommandStackSymbol = "MODEL_COMMAND_STACK"

const rowSeparators = " ,\t"

type queuedCommand struct {
	at   float64
	text string
}

// commandQueue holds the time-tagged commands sorted by time. next only
// moves forward.
type commandQueue struct {
	entries []queuedCommand
	next    int
}

func loadCommandQueue(cfg *config.Store, log *runlog.Log) (*commandQueue, error) {
	q := &commandQueue{}
	cfg.DisableTokenizer()
	defer cfg.EnableTokenizer()

	n := cfg.RowsNumber(CommandStackSymbol, 1)
	if n <= 0 {
		return q, nil
	}
	rows := make([]string, n)
	if _, err := cfg.LoadStrings(CommandStackSymbol, rows, true); err != nil {
		return nil, err
	}
	for _, row := range rows {
		c, ok := parseQueueRow(row)
		if !ok {
			log.Warning("%s : row \"%s\" has no command and is ignored", CommandStackSymbol, row)
			continue
		}
		q.entries = append(q.entries, c)
	}
	sort.SliceStable(q.entries, func(i, j int) bool { return q.entries[i].at < q.entries[j].at })
	return q, nil
}

func parseQueueRow(row string) (queuedCommand, bool) {
	row = strings.TrimLeft(row, rowSeparators)
	i := strings.IndexAny(row, rowSeparators)
	if i < 0 {
		return queuedCommand{}, false
	}
	text := strings.TrimSpace(strings.TrimLeft(row[i+1:], rowSeparators))
	if text == "" {
		return queuedCommand{}, false
	}
	return queuedCommand{at: numparse.Atof(row[:i]), text: text}, true
}

// due returns the commands scheduled at or before t and advances past them.
func (q *commandQueue) due(t float64) []string {
	if q == nil {
		return nil
	}
	var out []string
	for q.next < len(q.entries) && q.entries[q.next].at <= t {
		out = append(out, q.entries[q.next].text)
		q.next++
	}
	return out
}

// NextCommandTime returns the time of the next queued command, +Inf when
// the queue is exhausted.
func (w *World) NextCommandTime() float64 {
	q := w.queue
	if q == nil || q.next >= len(q.entries) {
		return math.Inf(1)
	}
	return q.entries[q.next].at
}

// Enqueue adds a time-tagged command after initialization. It is placed
// after the queued commands with the same time.
func (w *World) Enqueue(at float64, command string) {
	if w.queue == nil {
		w.queue = &commandQueue{}
	}
	q := w.queue
	i := sort.Search(len(q.entries), func(k int) bool { return q.entries[k].at > at })
	if i < q.next {
		i = q.next
	}
	q.entries = append(q.entries, queuedCommand{})
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = queuedCommand{at: at, text: command}
}

func (w *World) dispatchDue(t float64) {
	for _, text := range w.queue.due(t) {
		_ = w.Execute(text)
	}
}
