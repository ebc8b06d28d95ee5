// Package config reads the simulation settings file.
//
// The settings file is a line-oriented list of assignments:
//
//	GYRO.BIAS = [ 0.1 0.2 0.3 ]      // comment
//	SUM.GAINS = [ 1 -1
//	              0.5 ]
//	STEP = 0.1
//
// Tokens are separated by blanks, commas, semicolons and tabs. Symbols are case
// sensitive and the first matching line wins. When the tokenizer is disabled
// each non-empty line between "[" and "]" is a single entry, which is how
// free-text rows such as scheduled commands are stored.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/MDEGroup/satellite-interoperability/sim/internal/numparse"
)

// DefaultFile is the settings file used when no path is given.
const DefaultFile = "dss.set"

// TokenSize bounds a single entry; longer entries are truncated.
const TokenSize = 256

const separators = " ,;\t\r\n"

var (
	// ErrNotOpen is returned by lookups on a store without a source.
	ErrNotOpen = errors.New("settings source not open")
	// ErrSymbolNotFound is returned when a mandatory symbol is missing.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrSyntax is returned for malformed assignments.
	ErrSyntax = errors.New("settings syntax error")
	// ErrNotNumeric is returned when a numeric entry holds illegal characters.
	ErrNotNumeric = errors.New("illegal character in numeric field")
)

// Logger receives the settings echo and the parse diagnostics.
type Logger interface {
	Write(format string, args ...any)
	Error(format string, args ...any)
}

type discard struct{}

func (discard) Write(string, ...any) {}
func (discard) Error(string, ...any) {}

type line struct {
	num  int
	text string
}

// Store is an open settings source.
type Store struct {
	name     string
	lines    []line
	open     bool
	tokenize bool
	errs     int
	log      Logger
}

// Scoped returns "model.symbol".
func Scoped(model, symbol string) string {
	return model + "." + symbol
}

// Open reads path (DefaultFile when empty) and returns a store over it. A
// missing file is logged and returned as an error.
func Open(path string, log Logger) (*Store, error) {
	if path == "" {
		path = DefaultFile
	}
	if log == nil {
		log = discard{}
	}
	banner(log, fmt.Sprintf("Opening file \"%s\" for model initialization reading", path))
	f, err := os.Open(path)
	if err != nil {
		log.Error("Unable to open for reading the input file \"%s\"\n\n", path)
		return &Store{name: path, log: log, tokenize: true, errs: 1}, errors.Wrapf(err, "open settings %s", path)
	}
	defer f.Close()
	s, err := read(path, f, log)
	if err != nil {
		return s, err
	}
	log.Write("Input file \"%s\" succesfully open\n\n", path)
	return s, nil
}

// Parse builds a store from r. It is the in-memory counterpart of Open.
func Parse(name string, r io.Reader, log Logger) (*Store, error) {
	if log == nil {
		log = discard{}
	}
	return read(name, r, log)
}

func read(name string, r io.Reader, log Logger) (*Store, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return &Store{name: name, log: log, tokenize: true, errs: 1}, errors.Wrapf(err, "read settings %s", name)
	}
	s := &Store{name: name, log: log, open: true, tokenize: true}
	num := 0
	for _, text := range strings.SplitAfter(string(data), "\n") {
		num++
		text = strings.TrimRight(text, "\r\n")
		if l := prepare(text); l != "" {
			s.lines = append(s.lines, line{num: num, text: l})
		}
	}
	return s, nil
}

// prepare trims separators, drops comments and isolates the first "=", "["
// and "]" of the line so they tokenize on their own.
func prepare(text string) string {
	if i := strings.Index(text, "//"); i >= 0 {
		text = text[:i]
	}
	text = strings.Trim(text, separators)
	for _, op := range []string{"=", "[", "]"} {
		if i := strings.Index(text, op); i >= 0 {
			text = text[:i] + " " + op + " " + text[i+1:]
		}
	}
	return strings.Trim(text, separators)
}

func banner(log Logger, msg string) {
	log.Write("\n================================================================================\n")
	log.Write("%s\n", msg)
	log.Write("================================================================================\n\n")
}

// Close releases the source. Lookups after Close return ErrNotOpen.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.log.Write("\n================================================================================\n")
	if s.open {
		s.log.Write("Input file \"%s\" succesfully closed\n", s.name)
	} else {
		s.log.Write("The input file has been closed\n")
	}
	s.log.Write("================================================================================\n\n")
	s.open = false
	s.lines = nil
	s.tokenize = true
	return nil
}

// Name returns the path or name the store was built from.
func (s *Store) Name() string { return s.name }

// Errors returns the number of parse errors found so far.
func (s *Store) Errors() int { return s.errs }

// EnableTokenizer restores the default splitting of array entries on separators.
func (s *Store) EnableTokenizer() { s.tokenize = true }

// DisableTokenizer makes every non-empty line inside "[ ]" a single entry.
func (s *Store) DisableTokenizer() { s.tokenize = false }

func fields(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool { return strings.ContainsRune(separators, r) })
}

func clip(tok string) string {
	if len(tok) > TokenSize-1 {
		return tok[:TokenSize-1]
	}
	return tok
}

func (s *Store) fail(format string, args ...any) {
	s.errs++
	s.log.Error(format, args...)
}

// cursor walks the lines following a matched symbol.
type cursor struct {
	s    *Store
	next int
	num  int
	toks []string
}

func (c *cursor) token(outside bool) (string, bool) {
	if c.s.tokenize || outside {
		if len(c.toks) > 0 {
			t := c.toks[0]
			c.toks = c.toks[1:]
			return t, true
		}
	}
	for c.next < len(c.s.lines) {
		l := c.s.lines[c.next]
		c.next++
		c.num = l.num
		if c.s.tokenize || outside {
			c.toks = fields(l.text)
			if len(c.toks) > 0 {
				t := c.toks[0]
				c.toks = c.toks[1:]
				return t, true
			}
			continue
		}
		c.toks = nil
		if t := strings.Trim(l.text, separators); t != "" {
			return t, true
		}
	}
	c.s.fail("at line % 5d : reached unexpected END of FILE\n", c.num)
	return "", false
}

// equals consumes the "=" that must follow the symbol on its own line.
func (c *cursor) equals() bool {
	if len(c.toks) == 0 || !strings.HasPrefix(c.toks[0], "=") {
		return false
	}
	c.toks = c.toks[1:]
	return true
}

// find returns the cursor positioned after the symbol token of the first
// matching line.
func (s *Store) find(symbol string) (*cursor, line, bool) {
	for i, l := range s.lines {
		toks := fields(l.text)
		if len(toks) > 0 && toks[0] == symbol {
			return &cursor{s: s, next: i + 1, num: l.num, toks: toks[1:]}, l, true
		}
	}
	return nil, line{}, false
}

func (s *Store) echo(l line) {
	if strings.Contains(l.text, "[") && !strings.Contains(l.text, "]") {
		s.log.Write("%s ...\n", l.text)
		return
	}
	s.log.Write("%s\n", l.text)
}

// readSymbol returns the n raw entries of symbol. found is false when the
// symbol is absent; err reports a missing mandatory symbol or bad syntax.
func (s *Store) readSymbol(symbol string, n int, mustExist bool) ([]string, bool, error) {
	if s == nil || !s.open {
		return nil, false, ErrNotOpen
	}
	c, l, found := s.find(symbol)
	if !found {
		if mustExist {
			s.fail("Symbol \"%s\" not found", symbol)
			return nil, false, errors.Wrapf(ErrSymbolNotFound, "%s", symbol)
		}
		s.log.Write("%s (Optional) not found and set to default := ", symbol)
		return nil, false, nil
	}
	defer s.echo(l)

	vals, err := s.values(c, symbol, n)
	return vals, true, err
}

func (s *Store) values(c *cursor, symbol string, n int) ([]string, error) {
	if !c.equals() {
		s.fail("at line % 5d : \"=\" was expected after symbol \"%s\"", c.num, symbol)
		return nil, errors.Wrapf(ErrSyntax, "%s: missing \"=\"", symbol)
	}
	vals := make([]string, n)

	if n == 1 && s.tokenize {
		if len(c.toks) == 0 {
			s.fail("at line % 5d : at least one value was expected for symbol \"%s\"", c.num, symbol)
			return nil, errors.Wrapf(ErrSyntax, "%s: missing value", symbol)
		}
		v := c.toks[0]
		if v == "[" {
			if len(c.toks) < 2 {
				s.fail("at line % 5d : one value was expected for symbol \"%s\"", c.num, symbol)
				return nil, errors.Wrapf(ErrSyntax, "%s: missing value", symbol)
			}
			v = c.toks[1]
		}
		vals[0] = clip(v)
		return vals, nil
	}

	open, ok := c.token(true)
	if !ok {
		return nil, errors.Wrapf(ErrSyntax, "%s: unexpected end of file", symbol)
	}
	if open != "[" {
		s.fail("at line % 5d : \"[\" was expected to open \"%s\" array", c.num, symbol)
		return nil, errors.Wrapf(ErrSyntax, "%s: missing \"[\"", symbol)
	}
	if !s.tokenize && len(c.toks) > 0 {
		rest := strings.Join(c.toks, " ")
		s.fail("at line % 5d : Symbol \"%s\" is a Multi-Line array, each entry shall be on a NEW LINE (\"%s\" not allowed after \"[\" on the same line)", c.num, symbol, rest)
		return nil, errors.Wrapf(ErrSyntax, "%s: entry after \"[\"", symbol)
	}
	for i := 0; i < n; i++ {
		tok, ok := c.token(false)
		if !ok {
			return nil, errors.Wrapf(ErrSyntax, "%s: unexpected end of file", symbol)
		}
		if tok == "]" {
			s.fail("at line % 5d : reached unexpected array terminator \"]\" on symbol \"%s\"", c.num, symbol)
			return nil, errors.Wrapf(ErrSyntax, "%s: %d entries expected, %d found", symbol, n, i)
		}
		vals[i] = clip(tok)
	}
	closing, ok := c.token(false)
	if !ok {
		return nil, errors.Wrapf(ErrSyntax, "%s: unexpected end of file", symbol)
	}
	if closing != "]" {
		s.fail("at line % 5d : \"]\" was expected to close \"%s\" array", c.num, symbol)
		return nil, errors.Wrapf(ErrSyntax, "%s: missing \"]\"", symbol)
	}
	return vals, nil
}

func (s *Store) numeric(symbol string, vals []string) error {
	var bad error
	for _, v := range vals {
		if !numparse.IsNumeric(v) {
			s.fail("Symbol \"%s\" : illegal character in NUMERIC field \"%s\"", symbol, v)
			bad = errors.Wrapf(ErrNotNumeric, "%s: %q", symbol, v)
		}
	}
	return bad
}

func (s *Store) defaults(items []string) {
	s.log.Write("[ %s ] \n", strings.Join(items, " "))
}

// LoadFloats fills dst from symbol. When an optional symbol is missing dst
// keeps its values, which are echoed to the log as the defaults in use.
func (s *Store) LoadFloats(symbol string, dst []float64, mustExist bool) (bool, error) {
	vals, found, err := s.readSymbol(symbol, len(dst), mustExist)
	if !found {
		if err == nil {
			items := make([]string, len(dst))
			for i, v := range dst {
				items[i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
			s.defaults(items)
		}
		return false, err
	}
	if err != nil {
		return true, err
	}
	bad := s.numeric(symbol, vals)
	for i, v := range vals {
		if numparse.IsNumeric(v) {
			dst[i] = numparse.Atof(v)
		}
	}
	return true, bad
}

// LoadInts fills dst from symbol; see LoadFloats.
func (s *Store) LoadInts(symbol string, dst []int, mustExist bool) (bool, error) {
	vals, found, err := s.readSymbol(symbol, len(dst), mustExist)
	if !found {
		if err == nil {
			items := make([]string, len(dst))
			for i, v := range dst {
				items[i] = strconv.Itoa(v)
			}
			s.defaults(items)
		}
		return false, err
	}
	if err != nil {
		return true, err
	}
	bad := s.numeric(symbol, vals)
	for i, v := range vals {
		if numparse.IsNumeric(v) {
			dst[i] = numparse.Atoi(v)
		}
	}
	return true, bad
}

// LoadBools fills dst from 0/1 integers; any non-zero value is true.
func (s *Store) LoadBools(symbol string, dst []bool, mustExist bool) (bool, error) {
	ints := make([]int, len(dst))
	for i, b := range dst {
		if b {
			ints[i] = 1
		}
	}
	found, err := s.LoadInts(symbol, ints, mustExist)
	if found && err == nil {
		for i, v := range ints {
			dst[i] = v != 0
		}
	}
	return found, err
}

// LoadStrings fills dst with the raw entries of symbol.
func (s *Store) LoadStrings(symbol string, dst []string, mustExist bool) (bool, error) {
	vals, found, err := s.readSymbol(symbol, len(dst), mustExist)
	if !found {
		if err == nil {
			s.defaults(dst)
		}
		return false, err
	}
	if err != nil {
		return true, err
	}
	copy(dst, vals)
	return true, nil
}

// RowsNumber returns how many rows of cols entries symbol holds. It returns 0
// when the symbol is absent, empty or its entry count is not a positive
// multiple of cols.
func (s *Store) RowsNumber(symbol string, cols int) int {
	if s == nil || !s.open || cols <= 0 {
		return 0
	}
	c, l, found := s.find(symbol)
	if !found {
		s.log.Write("%s (Optional) not found and set to default\n", symbol)
		return 0
	}
	defer s.echo(l)

	if !c.equals() {
		s.fail("at line % 5d : \"=\" was expected after symbol \"%s\"", c.num, symbol)
		return 0
	}
	open, ok := c.token(true)
	if !ok {
		return 0
	}
	if !strings.HasPrefix(open, "[") {
		s.fail("at line % 5d : \"[\" was expected to open \"%s\" array", c.num, symbol)
		return 0
	}
	if !s.tokenize && len(c.toks) > 0 {
		s.fail("at line % 5d : Symbol \"%s\" is a Multi-Line array, each entry shall be a SINGLE NEW LINE (\"%s\" not allowed after \"[\" on the same line)", c.num, symbol, strings.Join(c.toks, " "))
		return 0
	}

	count := 0
	for {
		tok, ok := c.token(false)
		if !ok {
			return 0
		}
		if strings.Contains(tok, "]") {
			if !s.tokenize && tok != "]" {
				s.fail("at line % 5d : Symbol \"%s\" is a Multi-Line array, each entry shall be a SINGLE NEW LINE (\"%s\" not allowed before \"]\" on the same line)", c.num, symbol, tok)
				return 0
			}
			break
		}
		count++
	}
	if count == 0 {
		return 0
	}
	if count < cols || count%cols != 0 {
		s.fail("at line % 5d : Symbol \"%s\" shall contain an integer multiple of \"%d\" data", c.num, symbol, cols)
		return 0
	}
	return count / cols
}
