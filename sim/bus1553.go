package sim

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/MDEGroup/satellite-interoperability/sim/trace"
)

// TxRx is the transfer direction seen from the remote terminal.
type TxRx uint8

const (
	// RX is a bus controller to terminal transfer.
	RX TxRx = 0
	// TX is a terminal to bus controller transfer.
	TX TxRx = 1
)

func (d TxRx) String() string {
	if d == TX {
		return "T"
	}
	return "R"
}

// ModeCode is a standard MIL-STD-1553 mode code.
type ModeCode uint8

const (
	Synchronise                         ModeCode = 1
	TransmitStatusWord                  ModeCode = 2
	InitiateSelftest                    ModeCode = 3
	TransmitterShutdown                 ModeCode = 4
	OverrideTransmitterShutdown         ModeCode = 5
	InhibitTerminalFlagBit              ModeCode = 6
	OverrideInhibitTerminalFlagBit      ModeCode = 7
	ResetRemoteTerminal                 ModeCode = 8
	TransmitVectorWord                  ModeCode = 16
	SynchroniseWithDataWord             ModeCode = 17
	TransmitLastCommandWord             ModeCode = 18
	TransmitBuiltInTestWord             ModeCode = 19
	SelectedTransmitterShutdown         ModeCode = 20
	OverrideSelectedTransmitterShutdown ModeCode = 21
)

const (
	// BroadcastAddress addresses every terminal.
	BroadcastAddress = 31
	// ModeField0 and ModeField in the subaddress field mark a mode command.
	ModeField0 = 0
	ModeField  = 31

	maxSubAddress = 30
	busWords      = 32
)

// CommandWord is the decoded bus controller command word.
type CommandWord struct {
	Address    uint8 // 5 bits
	Dir        TxRx
	SubAddress uint8 // subaddress or mode field, 5 bits
	Count      uint8 // word count or mode code, 5 bits; 0 means 32 words
}

// Encode packs the command word: address in bits 15-11, T/R in bit 10,
// subaddress in bits 9-5, count in bits 4-0.
func (c CommandWord) Encode() uint16 {
	return uint16(c.Address&0x1F)<<11 | uint16(c.Dir&1)<<10 | uint16(c.SubAddress&0x1F)<<5 | uint16(c.Count&0x1F)
}

// DecodeCommandWord unpacks a raw command word.
func DecodeCommandWord(w uint16) CommandWord {
	return CommandWord{
		Address:    uint8(w >> 11 & 0x1F),
		Dir:        TxRx(w >> 10 & 1),
		SubAddress: uint8(w >> 5 & 0x1F),
		Count:      uint8(w & 0x1F),
	}
}

// IsModeCommand reports whether the subaddress field is a mode field.
func (c CommandWord) IsModeCommand() bool {
	return c.SubAddress == ModeField0 || c.SubAddress == ModeField
}

// WordCount returns the number of data words of a data transfer.
func (c CommandWord) WordCount() int {
	if c.Count == 0 {
		return busWords
	}
	return int(c.Count)
}

// StatusWord is the decoded remote terminal status word.
type StatusWord struct {
	Address          uint8
	MessageError     bool
	ServiceRequest   bool
	BroadcastCommand bool
	Busy             bool
	SubsystemFlag    bool
	TerminalFlag     bool
}

const (
	statusMessageError  = 1 << 10
	statusServiceReq    = 1 << 8
	statusBroadcastRecv = 1 << 4
	statusBusy          = 1 << 3
	statusSubsystemFlag = 1 << 2
	statusTerminalFlag  = 1 << 0
)

// Encode packs the status word; reserved bits are zero.
func (s StatusWord) Encode() uint16 {
	w := uint16(s.Address&0x1F) << 11
	for _, b := range []struct {
		on   bool
		mask uint16
	}{
		{s.MessageError, statusMessageError},
		{s.ServiceRequest, statusServiceReq},
		{s.BroadcastCommand, statusBroadcastRecv},
		{s.Busy, statusBusy},
		{s.SubsystemFlag, statusSubsystemFlag},
		{s.TerminalFlag, statusTerminalFlag},
	} {
		if b.on {
			w |= b.mask
		}
	}
	return w
}

// DecodeStatusWord unpacks a raw status word.
func DecodeStatusWord(w uint16) StatusWord {
	return StatusWord{
		Address:          uint8(w >> 11 & 0x1F),
		MessageError:     w&statusMessageError != 0,
		ServiceRequest:   w&statusServiceReq != 0,
		BroadcastCommand: w&statusBroadcastRecv != 0,
		Busy:             w&statusBusy != 0,
		SubsystemFlag:    w&statusSubsystemFlag != 0,
		TerminalFlag:     w&statusTerminalFlag != 0,
	}
}

// rtWord is the forcing overlay of one 32-word buffer.
type rtWord struct {
	Word   [busWords]uint16
	Forced [busWords]bool
}

func (b *rtWord) apply(words *[busWords]uint16) {
	for i := range b.Forced {
		if b.Forced[i] {
			words[i] = b.Word[i]
		}
	}
}

func (b *rtWord) reset() { *b = rtWord{} }

type rtState struct {
	address   uint8
	enabled   bool
	saEnabled [2][busWords]bool // [TxRx][subaddress]
	mcEnabled [busWords]bool
	tx, rx    [busWords]rtWord // by subaddress
	mc        [busWords]rtWord // by mode code, only word 0 is used
}

// SetRTAddress attaches the instance to the bus as remote terminal addr
// (1..31). An address already used by another instance is accepted with a
// warning when allowShared is set and refused otherwise. Every buffer
// overlay is cleared.
func (inst *Instance) SetRTAddress(addr int, allowShared bool) error {
	if addr < 1 || addr > BroadcastAddress {
		inst.Error("%s.Set_Rt1553_Address : Invalid Bus 1553 Remote Terminal Address \"%d\"", inst.name, addr)
		return errors.Wrapf(ErrInvalidAddress, "%d", addr)
	}
	for _, other := range inst.world.order {
		if other == inst || int(other.rt.address) != addr {
			continue
		}
		if !allowShared {
			inst.Error("%s.Set_Rt1553_Address : The Bus 1553 Remote Terminal Address \"%d\" has been already reserved by \"%s\"", inst.name, addr, other.name)
			return errors.Wrapf(ErrAddressInUse, "%d reserved by %s", addr, other.name)
		}
		inst.Warning("%s.Set_Rt1553_Address : The Bus 1553 Remote Terminal Address \"%d\" has been already assigned to \"%s\"", inst.name, addr, other.name)
	}
	inst.rt.address = uint8(addr)
	for i := range inst.rt.tx {
		inst.rt.tx[i].reset()
		inst.rt.rx[i].reset()
		inst.rt.mc[i].reset()
	}
	return nil
}

// RTAddress returns the remote terminal address, 0 when not on the bus.
func (inst *Instance) RTAddress() int { return int(inst.rt.address) }

// RTEnabled returns the last remote terminal status applied.
func (inst *Instance) RTEnabled() bool { return inst.rt.enabled }

func (inst *Instance) setRTStatus(enabled bool) error {
	inst.rt.enabled = enabled
	if s, ok := inst.model.(RTStatusSetter); ok {
		return s.SetRTStatus(enabled)
	}
	return nil
}

// SetSAStatus enables or disables subaddress sa (1..30) in direction dir.
func (inst *Instance) SetSAStatus(sa int, dir TxRx, enabled bool) error {
	if sa < 1 || sa > maxSubAddress {
		return errors.Wrapf(ErrCommandRejected, "subaddress %d out of range [1..%d]", sa, maxSubAddress)
	}
	inst.rt.saEnabled[dir&1][sa] = enabled
	return nil
}

// SetMCStatus enables or disables mode code mc (0..31).
func (inst *Instance) SetMCStatus(mc int, enabled bool) error {
	if mc < 0 || mc >= busWords {
		return errors.Wrapf(ErrCommandRejected, "mode code %d out of range [0..31]", mc)
	}
	inst.rt.mcEnabled[mc] = enabled
	return nil
}

// SubAddressEnabled reports the flag set by SetSAStatus.
func (inst *Instance) SubAddressEnabled(sa int, dir TxRx) bool {
	if sa < 0 || sa >= busWords {
		return false
	}
	return inst.rt.saEnabled[dir&1][sa]
}

// ModeCodeEnabled reports the flag set by SetMCStatus.
func (inst *Instance) ModeCodeEnabled(mc int) bool {
	if mc < 0 || mc >= busWords {
		return false
	}
	return inst.rt.mcEnabled[mc]
}

// modifyBuffer replaces the forced words; only terminals on the bus have
// overlays.
func (inst *Instance) modifyBuffer(b *rtWord, words *[busWords]uint16) {
	if inst.rt.address != 0 {
		b.apply(words)
	}
}

// BusLogEnabled reports whether bus transactions are dumped.
func (w *World) BusLogEnabled() bool { return w.busLog != nil }

// BCReceiveData delivers count words from the bus controller to subaddress
// sa of the first terminal, in execution order, answering at addr. The
// receive overlay of that terminal replaces the forced words before
// delivery. A transaction nobody answers is not an error.
func (w *World) BCReceiveData(addr int, sa, count uint8, words *[busWords]uint16) error {
	return w.dataTransfer(RX, addr, sa, count, words)
}

// BCTransmitData asks the first terminal answering at addr for count words
// from subaddress sa. The transmit overlay of that terminal replaces the
// forced words it produced.
func (w *World) BCTransmitData(addr int, sa, count uint8, words *[busWords]uint16) error {
	return w.dataTransfer(TX, addr, sa, count, words)
}

func (w *World) dataTransfer(dir TxRx, addr int, sa, count uint8, words *[busWords]uint16) error {
	kind, op := "receive", "ReceiveData"
	if dir == TX {
		kind, op = "transmit", "TransmitData"
	}
	n := int(count)
	if n > busWords {
		n = busWords
	}
	w.metrics.BusTransactions++
	w.collector.ObserveBus(kind)

	var err error
	target := ""
	for _, inst := range w.order {
		if int(inst.rt.address) != addr {
			continue
		}
		target = inst.name
		idx := int(sa) & 0x1F
		rt, _ := inst.model.(RemoteTerminal)
		if dir == RX {
			inst.modifyBuffer(&inst.rt.rx[idx], words)
			if rt != nil {
				err = rt.ReceiveData(sa, count, words)
			}
		} else {
			if rt != nil {
				err = rt.TransmitData(sa, count, words)
			}
			inst.modifyBuffer(&inst.rt.tx[idx], words)
		}
		w.dumpBus(inst.name, op, addr, int(sa), words[:n])
		break
	}
	w.traceBus(kind, addr, int(sa), target, words[:n])
	return errors.Wrapf(err, "%s %d,%d", op, addr, sa)
}

// BCModeCommand sends mode code code to every terminal answering at addr.
// The mode command overlay of each terminal forces data word 0.
func (w *World) BCModeCommand(addr int, dir TxRx, code ModeCode, words *[busWords]uint16) error {
	w.metrics.BusTransactions++
	w.collector.ObserveBus("mode")

	var first error
	var served []string
	for _, inst := range w.order {
		if int(inst.rt.address) != addr {
			continue
		}
		served = append(served, inst.name)
		if rt, ok := inst.model.(RemoteTerminal); ok {
			if err := rt.ReceiveModeCommand(dir, code, words); err != nil && first == nil {
				first = errors.Wrapf(err, "%s.ReceiveModeCommand %d,%d", inst.name, addr, code)
			}
		}
		inst.modifyBuffer(&inst.rt.mc[int(code)&0x1F], words)
	}
	w.traceBus("mode", addr, int(code), strings.Join(served, ","), words[:1])
	return first
}

// BCDispatch routes a raw command word to BCReceiveData, BCTransmitData or
// BCModeCommand.
func (w *World) BCDispatch(command uint16, words *[busWords]uint16) error {
	c := DecodeCommandWord(command)
	switch {
	case c.IsModeCommand():
		return w.BCModeCommand(int(c.Address), c.Dir, ModeCode(c.Count), words)
	case c.Dir == TX:
		return w.BCTransmitData(int(c.Address), c.SubAddress, uint8(c.WordCount()), words)
	default:
		return w.BCReceiveData(int(c.Address), c.SubAddress, uint8(c.WordCount()), words)
	}
}

// SynchronizeAllRTStatus re-applies the remote terminal status of every
// instance on the bus from its power switch. It stops at the first failure.
func (w *World) SynchronizeAllRTStatus() error {
	for _, inst := range w.order {
		if inst.rt.address == 0 {
			continue
		}
		if err := inst.setRTStatus(inst.switchOn); err != nil {
			return err
		}
	}
	return nil
}

func (w *World) dumpBus(name, op string, addr, sa int, words []uint16) {
	if w.busLog == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s.%s %d,%d\t\t", name, op, addr, sa)
	for _, word := range words {
		fmt.Fprintf(&b, "%04X\t", word)
	}
	b.WriteString("\n")
	w.busLog.Write("%s", b.String())
}

func (w *World) traceBus(kind string, addr, sa int, target string, words []uint16) {
	if !w.opts.Trace.CapturesBus() {
		return
	}
	w.opts.Trace.RecordBus(trace.BusRecord{
		Clock:      w.epoch,
		Kind:       kind,
		Address:    addr,
		SubAddress: sa,
		Target:     target,
		Words:      append([]uint16(nil), words...),
	})
}
