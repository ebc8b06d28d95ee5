package sim

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/MDEGroup/satellite-interoperability/sim/internal/numparse"
	"github.com/MDEGroup/satellite-interoperability/sim/runlog"
	"github.com/MDEGroup/satellite-interoperability/sim/trace"
)

// MaxCommandParams bounds the parameters of one command; extra fields are
// dropped.
const MaxCommandParams = 512

// Command is a parsed command string "Model.KEYWORD,p1,p2,...". Model is
// empty for static commands.
type Command struct {
	Model   string
	Keyword string
	Params  []string
	Static  bool
}

// ParseCommand splits text into the model name, the keyword and the
// parameters. Fields are separated by commas; empty fields are skipped and
// blanks around every field are trimmed. The model prefix is the text before
// the first dot, when that dot comes before the first comma.
func ParseCommand(text string) Command {
	var c Command
	rest := text
	dot, comma := strings.IndexByte(text, '.'), strings.IndexByte(text, ',')
	if dot >= 0 && (comma < 0 || dot < comma) {
		c.Model = strings.TrimSpace(text[:dot])
		rest = text[dot+1:]
	} else {
		c.Static = true
	}
	fields := splitFields(rest)
	if len(fields) > 0 {
		c.Keyword = fields[0]
	}
	if len(fields) > 1 {
		c.Params = fields[1:]
	}
	if len(c.Params) > MaxCommandParams {
		c.Params = c.Params[:MaxCommandParams]
	}
	return c
}

func splitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Execute parses and runs one command string. Static commands (no model
// prefix) act on the world; model commands go through the generic table
// first and then to the model CommandParser.
func (w *World) Execute(text string) error {
	w.openLog()
	if strings.TrimSpace(text) == "" {
		w.log.Error("Execute_Command : Received empty command string")
		return ErrEmptyCommand
	}
	w.log.Message("Execute_Command : Received the following command string : \"%s\"", text)

	c := ParseCommand(text)
	err := w.execute(c)
	w.recordCommand(c, err)
	return err
}

func (w *World) execute(c Command) error {
	switch {
	case c.Static:
		err := w.parseStatic(c.Keyword, c.Params)
		if err == nil {
			w.log.Message("Static_Local_Parser : successfully processed command \"%s\" with \"%d\" parameter-tokens", c.Keyword, len(c.Params))
		} else {
			w.log.Warning("Static_Local_Parser : FAILED processing command \"%s\" with \"%d\" parameter-tokens", c.Keyword, len(c.Params))
		}
		return err
	case c.Model == "":
		w.log.Warning("Execute_Command : the Model Name is empty")
		return ErrEmptyCommand
	case c.Keyword == "":
		w.log.Warning("Execute_Command : the Model Command is empty (i.e. Model Command not provided)")
		return ErrEmptyCommand
	}

	inst := w.FindByName(c.Model)
	if inst == nil {
		w.log.Warning("Execute_Command : There is no registered Object-Model matching the Name \"%s\"", c.Model)
		return errors.Wrap(ErrUnknownModel, c.Model)
	}
	err := inst.parseCommand(c.Keyword, c.Params)
	if err == nil {
		w.log.Message("%s.Model_Local_Parser : successfully processed command \"%s\" with \"%d\" parameter-tokens", inst.name, c.Keyword, len(c.Params))
	} else {
		w.log.Warning("%s.Model_Local_Parser : FAILED processing command \"%s\" with \"%d\" parameter-tokens", inst.name, c.Keyword, len(c.Params))
	}
	return err
}

func (w *World) recordCommand(c Command, err error) {
	if err == nil {
		w.metrics.CommandsOK++
	} else {
		w.metrics.CommandsFailed++
	}
	w.collector.ObserveCommand(c.Model, err == nil)
	if !w.opts.Trace.CapturesCommands() {
		return
	}
	rec := trace.CommandRecord{
		Clock:   w.epoch,
		Target:  c.Model,
		Command: c.Keyword,
		Params:  append([]string(nil), c.Params...),
		OK:      err == nil,
	}
	if err != nil {
		rec.Reason = err.Error()
	}
	w.opts.Trace.RecordCommand(rec)
}

func (w *World) parseStatic(keyword string, params []string) error {
	switch keyword {
	case "ENABLE_1553_LOG":
		if len(params) != 0 {
			w.log.Warning("Static command string \"%s\" does not require any parameter, \"%d\" have been found instead", keyword, len(params))
			return errors.Wrap(ErrCommandRejected, keyword)
		}
		if w.busLog != nil {
			w.log.Warning("Static command string \"%s\" 1553 bus logging is already enabled", keyword)
			return errors.Wrap(ErrCommandRejected, keyword)
		}
		l, err := runlog.OpenBusDump(w.opts.LogDir, w.opts.Now())
		if err != nil {
			w.log.Warning("Static command string \"%s\" unable to open for writing the 1553 log file: %v", keyword, err)
			return err
		}
		w.busLog = l
		return nil
	case "DISABLE_1553_LOG":
		if len(params) != 0 {
			w.log.Warning("Static command string \"%s\" does not require any parameter, \"%d\" have been found instead", keyword, len(params))
			return errors.Wrap(ErrCommandRejected, keyword)
		}
		if w.busLog == nil {
			w.log.Warning("Static command string \"%s\" 1553 bus logging is not enabled", keyword)
			return errors.Wrap(ErrCommandRejected, keyword)
		}
		err := w.busLog.Close()
		w.busLog = nil
		return err
	}
	w.log.Warning("Static_Local_Parser : FAILED processing static command \"%s\" with \"%d\" parameter-tokens", keyword, len(params))
	return errors.Wrap(ErrUnknownCommand, keyword)
}

// parseCommand runs the generic command table and falls back to the model
// CommandParser for keywords the table does not claim.
func (inst *Instance) parseCommand(keyword string, params []string) error {
	if handled, err := inst.parseGeneric(keyword, params); handled {
		return err
	}
	if p, ok := inst.model.(CommandParser); ok {
		return p.ParseCommand(keyword, params)
	}
	return errors.Wrapf(ErrUnknownCommand, "%s.%s", inst.name, keyword)
}

func rejected(format string, args ...any) error {
	return errors.Wrapf(ErrCommandRejected, format, args...)
}

// parseGeneric handles the keywords every instance understands. handled is
// false when keyword (with its arity) is not one of them.
func (inst *Instance) parseGeneric(keyword string, params []string) (handled bool, err error) {
	n := len(params)
	switch keyword {
	case "ENABLE_DEBUG", "DISABLE_DEBUG":
		if n != 0 {
			inst.Warning("Command string \"%s\". Model \"%s.%s\" does not require any parameter, \"%d\" have been found instead", keyword, inst.name, keyword, n)
			return true, rejected("%s takes no parameters", keyword)
		}
		inst.closeDebug()
		if keyword == "DISABLE_DEBUG" {
			return true, nil
		}
		return true, inst.openDebug()

	case "FORCE_INPUT":
		return true, forceSlots(inst.forcedU, params)
	case "FORCE_OUTPUT":
		return true, forceSlots(inst.forcedY, params)
	case "FREEZE_INPUT":
		freeze(inst.forcedU, inst.u)
		return true, nil
	case "FREEZE_OUTPUT":
		freeze(inst.forcedY, inst.y)
		return true, nil
	case "UNFORCE_INPUT":
		unforce(inst.forcedU)
		return true, nil
	case "UNFORCE_OUTPUT":
		unforce(inst.forcedY)
		return true, nil

	case "SWITCH_ON":
		return true, inst.SwitchOn()
	case "SWITCH_OFF":
		return true, inst.SwitchOff()
	case "SET_POWER_LOAD":
		if n != 1 {
			return false, nil
		}
		inst.powerLoad = numparse.Atof(params[0])
		return true, nil
	case "SET_VALUE":
		if n != 2 {
			return false, nil
		}
		return true, inst.SetValue(params[0], 0, numparse.Atof(params[1]))
	case "SET_COMPONENTS":
		if n <= 2 {
			return false, nil
		}
		start := numparse.Atoi(params[1])
		for i := 0; i < n-2; i++ {
			if err := inst.SetValue(params[0], start+i-1, numparse.Atof(params[2+i])); err != nil {
				return true, err
			}
		}
		return true, nil
	}

	if inst.rt.address != 0 && strings.HasPrefix(keyword, "RT_") {
		return inst.parseRT(keyword, params)
	}
	return false, nil
}

func (inst *Instance) openDebug() error {
	w := inst.world
	l, err := runlog.OpenDebug(w.opts.LogDir, inst.name, w.opts.Now(), w.Epoch)
	if err != nil {
		inst.Warning("Model \"%s.ENABLE_DEBUG\" unable to open for writing the debug file: %v", inst.name, err)
		return err
	}
	l.SetListener(w.onLogLine)
	inst.debug = l
	return nil
}

// forceSlots applies "start,v1,v2,..." to slots: start is 1-based, "*"
// clears the flag, "=" leaves the slot untouched, anything else forces
// the parsed value.
func forceSlots(slots []forcing, params []string) error {
	if len(params) < 2 {
		return rejected("at least the first index and one value are required")
	}
	start := numparse.Atoi(params[0])
	if start < 1 || start+len(params)-2 > len(slots) {
		return rejected("indexes [%d..%d] exceed the array size %d", start, start+len(params)-2, len(slots))
	}
	for i, p := range params[1:] {
		f := &slots[start-1+i]
		switch p[0] {
		case '*':
			f.flag = false
		case '=':
		default:
			f.flag = true
			f.forced = numparse.Atof(p)
		}
	}
	return nil
}

func freeze(slots []forcing, values []float64) {
	for i := range slots {
		slots[i].flag = true
		slots[i].forced = values[i]
	}
}

func unforce(slots []forcing) {
	for i := range slots {
		slots[i].flag = false
	}
}

func enableFlag(s string) (bool, bool) {
	switch numparse.Atoi(s) {
	case 0:
		return false, true
	case 1:
		return true, true
	}
	return false, false
}

// parseRT handles the RT_* keywords of an instance attached to the bus.
func (inst *Instance) parseRT(keyword string, params []string) (bool, error) {
	n := len(params)
	switch {
	case keyword == "RT_SET_STATUS" && n == 1:
		on, ok := enableFlag(params[0])
		if !ok {
			return true, rejected("RT status %q shall be 0 or 1", params[0])
		}
		return true, inst.setRTStatus(on)

	case keyword == "RT_SET_SA_STATUS" && n == 3:
		sa := numparse.Atoi(params[0])
		on, ok := enableFlag(params[2])
		if sa < 1 || sa > maxSubAddress || !ok || (params[1][0] != 'T' && params[1][0] != 'R') {
			return true, rejected("RT_SET_SA_STATUS,%s,%s,%s", params[0], params[1], params[2])
		}
		dir := RX
		if params[1][0] == 'T' {
			dir = TX
		}
		return true, inst.SetSAStatus(sa, dir, on)

	case keyword == "RT_SET_MC_STATUS" && n == 2:
		mc := numparse.Atoi(params[0])
		on, ok := enableFlag(params[1])
		if mc < 0 || mc >= busWords || !ok {
			return true, rejected("RT_SET_MC_STATUS,%s,%s", params[0], params[1])
		}
		return true, inst.SetMCStatus(mc, on)

	case keyword == "RT_FORCE_SA_TX_BUFFER":
		return true, forceBuffer(&inst.rt.tx, params)
	case keyword == "RT_FORCE_SA_RX_BUFFER":
		return true, forceBuffer(&inst.rt.rx, params)

	case keyword == "RT_FORCE_MC_BUFFER":
		if n < 1 || n > 2 {
			return true, rejected("RT_FORCE_MC_BUFFER takes a mode code and at most one word")
		}
		mc := numparse.Atoi(params[0])
		if mc < 0 || mc >= busWords {
			return true, rejected("mode code %d out of range [0..31]", mc)
		}
		b := &inst.rt.mc[mc]
		if n == 1 {
			b.Forced[0] = false
			return true, nil
		}
		switch params[1][0] {
		case '=':
			b.Forced[0] = false
		case '*':
		default:
			b.Forced[0] = true
			b.Word[0] = numparse.Word(params[1])
		}
		return true, nil
	}
	return false, nil
}

// forceBuffer applies "sa[,w1..w32]" to the overlay of subaddress sa. With
// no words every flag is cleared.
func forceBuffer(buffers *[busWords]rtWord, params []string) error {
	n := len(params)
	if n < 1 || n > busWords+1 {
		return rejected("a subaddress and at most %d words are required", busWords)
	}
	sa := numparse.Atoi(params[0])
	if sa < 1 || sa > maxSubAddress {
		return rejected("subaddress %d out of range [1..%d]", sa, maxSubAddress)
	}
	b := &buffers[sa]
	if n == 1 {
		b.Forced = [busWords]bool{}
		return nil
	}
	for i, p := range params[1:] {
		switch p[0] {
		case '*':
			b.Forced[i] = false
		case '=':
		default:
			b.Forced[i] = true
			b.Word[i] = numparse.Word(p)
		}
	}
	return nil
}
