// Package runlog writes the simulation run log, the per-instance debug logs and
// the bus dump log.
//
// Every line carries the simulation epoch supplied by the caller rather than a
// wall-clock timestamp. Lines come in four shapes:
//
//	raw text, written as is
//	"     12.500            : message"
//	"     12.500 >> WARNING : message"
//	"     12.500 >> ERROR :   message"
//
// Warnings and errors are counted by a logrus hook; the totals are written
// when the log is closed.
package runlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Kind classifies a run-log line for listeners.
type Kind string

const (
	KindWrite   Kind = "Write"
	KindMessage Kind = "Message"
	KindWarning Kind = "Warning"
	KindError   Kind = "Error"
	KindDebug   Kind = "Debug"
)

// Listener receives a copy of every line written to a Log.
type Listener func(kind Kind, msg string)

// EpochFunc returns the simulation time stamped on each line.
type EpochFunc func() float64

// File name prefixes.
const (
	PrefixRun   = "dss_log"
	PrefixBus   = "1553_dump"
	PrefixDebug = "_debug_"
)

const (
	fileTimeLayout = "20060102_150405"
	rawField       = "raw"
)

// FileName returns "<prefix>_YYYYMMDD_HHMMSS.txt" for the given instant.
// The debug prefix already ends with an underscore and is followed by the
// owner name, so callers build debug names with DebugFileName.
func FileName(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s.txt", prefix, now.Format(fileTimeLayout))
}

// DebugFileName returns "_debug_<owner>_YYYYMMDD_HHMMSS.txt".
func DebugFileName(owner string, now time.Time) string {
	return fmt.Sprintf("%s%s_%s.txt", PrefixDebug, owner, now.Format(fileTimeLayout))
}

// Log is a single log file (or writer) shared by the whole run.
type Log struct {
	logger   *logrus.Logger
	counter  *countingHook
	closer   io.Closer
	path     string
	kind     Kind
	summary  bool
	mu       sync.Mutex
	listener Listener
}

// New wraps an arbitrary writer. The totals banner is written on Close.
func New(w io.Writer, epoch EpochFunc) *Log {
	if epoch == nil {
		epoch = func() float64 { return 0 }
	}
	hook := &countingHook{}
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&epochFormatter{epoch: epoch})
	logger.SetLevel(logrus.InfoLevel)
	logger.AddHook(hook)
	return &Log{logger: logger, counter: hook, kind: KindMessage, summary: true}
}

// Open creates dir/<prefix>_YYYYMMDD_HHMMSS.txt and returns a Log writing to it.
func Open(dir, prefix string, now time.Time, epoch EpochFunc) (*Log, error) {
	return openFile(filepath.Join(dirOrDot(dir), FileName(prefix, now)), epoch)
}

// OpenDebug creates the debug file of one instance. Its message lines are
// reported to listeners as KindDebug and no totals are written on Close.
func OpenDebug(dir, owner string, now time.Time, epoch EpochFunc) (*Log, error) {
	l, err := openFile(filepath.Join(dirOrDot(dir), DebugFileName(owner, now)), epoch)
	if err != nil {
		return nil, err
	}
	l.kind = KindDebug
	l.summary = false
	return l, nil
}

// OpenBusDump creates the bus traffic dump file. It only receives raw writes.
func OpenBusDump(dir string, now time.Time) (*Log, error) {
	l, err := openFile(filepath.Join(dirOrDot(dir), FileName(PrefixBus, now)), nil)
	if err != nil {
		return nil, err
	}
	l.summary = false
	return l, nil
}

func openFile(path string, epoch EpochFunc) (*Log, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open log file %s", path)
	}
	l := New(f, epoch)
	l.closer = f
	l.path = path
	return l, nil
}

func dirOrDot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

// Path returns the file backing the log, or "" for writer-backed logs.
func (l *Log) Path() string { return l.path }

// SetListener installs fn as the line listener; nil removes it.
func (l *Log) SetListener(fn Listener) {
	l.mu.Lock()
	l.listener = fn
	l.mu.Unlock()
}

func (l *Log) notify(kind Kind, msg string) {
	l.mu.Lock()
	fn := l.listener
	l.mu.Unlock()
	if fn != nil {
		fn(kind, msg)
	}
}

// Write emits raw text without any prefix or newline.
func (l *Log) Write(format string, args ...any) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.WithField(rawField, true).Info(msg)
	l.notify(KindWrite, msg)
}

// Message emits an epoch-stamped informational line.
func (l *Log) Message(format string, args ...any) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Info(msg)
	l.notify(l.kind, msg)
}

// Warning emits an epoch-stamped warning line and bumps the warning total.
func (l *Log) Warning(format string, args ...any) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Warn(msg)
	l.notify(KindWarning, msg)
}

// Error emits an epoch-stamped error line and bumps the error total.
func (l *Log) Error(format string, args ...any) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Error(msg)
	l.notify(KindError, msg)
}

// Warnings returns the number of warnings logged so far.
func (l *Log) Warnings() int {
	if l == nil {
		return 0
	}
	return l.counter.warnings()
}

// Errors returns the number of errors logged so far.
func (l *Log) Errors() int {
	if l == nil {
		return 0
	}
	return l.counter.errors()
}

// Close writes the totals banner (run logs only), resets the counters and
// closes the underlying file if the log owns one.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	if l.summary {
		l.Write("\n\n   Number of Warnings : %d\n\n   Number of ERRORS   : %d\n\n   ---      E N D     O F     P R O G R A M      ---\n\n",
			l.Warnings(), l.Errors())
	}
	l.counter.reset()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return errors.Wrap(err, "close log")
}

type epochFormatter struct {
	epoch EpochFunc
}

func (f *epochFormatter) Format(e *logrus.Entry) ([]byte, error) {
	if _, raw := e.Data[rawField]; raw {
		return []byte(e.Message), nil
	}
	t := f.epoch()
	switch e.Level {
	case logrus.WarnLevel:
		return []byte(fmt.Sprintf("% 12.3f >> WARNING : %s\n", t, e.Message)), nil
	case logrus.ErrorLevel:
		return []byte(fmt.Sprintf("% 12.3f >> ERROR :   %s\n", t, e.Message)), nil
	default:
		return []byte(fmt.Sprintf("% 12.3f            : %s\n", t, e.Message)), nil
	}
}

type countingHook struct {
	mu   sync.Mutex
	warn int
	err  int
}

func (h *countingHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.WarnLevel, logrus.ErrorLevel}
}

func (h *countingHook) Fire(e *logrus.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch e.Level {
	case logrus.WarnLevel:
		h.warn++
	case logrus.ErrorLevel:
		h.err++
	}
	return nil
}

func (h *countingHook) warnings() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.warn
}

func (h *countingHook) errors() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *countingHook) reset() {
	h.mu.Lock()
	h.warn, h.err = 0, 0
	h.mu.Unlock()
}
