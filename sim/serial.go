package sim

import "github.com/pkg/errors"

type serialChannel struct {
	peer   *Instance
	peerCh int
}

// CreateSerialLinks gives the instance n serial channels. It can be called
// once per instance.
func (inst *Instance) CreateSerialLinks(n int) error {
	if inst.serial != nil {
		inst.Error("Serial_CreateLinks : serial links array multiple declaration; \"%s.serial_link[%d]\" already exists, it cannot be created twice", inst.name, len(inst.serial))
		return ErrSerialLinksExist
	}
	if n < 1 {
		inst.Error("Serial_CreateLinks : the serial links array size shall be >= 1 \"%s.serial_link[%d]\"", inst.name, n)
		return ErrSerialLinkCount
	}
	inst.serial = make([]serialChannel, n)
	return nil
}

// SerialLinks returns the number of serial channels.
func (inst *Instance) SerialLinks() int { return len(inst.serial) }

// ConnectSerial wires channel chA of a and channel chB of b together.
func (w *World) ConnectSerial(a *Instance, chA int, b *Instance, chB int) error {
	if err := w.checkSerialEnd(a, chA, "A"); err != nil {
		return err
	}
	if err := w.checkSerialEnd(b, chB, "B"); err != nil {
		return err
	}
	a.serial[chA] = serialChannel{peer: b, peerCh: chB}
	b.serial[chB] = serialChannel{peer: a, peerCh: chA}
	w.log.Message("Registry_Serial_Link_Connection : Digital Serial Link connection \"%s.serial_link[%d] <---> %s.serial_link[%d]\" successfully established",
		a.name, chA, b.name, chB)
	return nil
}

func (w *World) checkSerialEnd(inst *Instance, ch int, side string) error {
	if !w.owns(inst) {
		w.log.Error("Registry_Serial_Link_Connection : the model \"%s\" does not point to any valid registered model", side)
		return errors.Wrapf(ErrNotRegistered, "serial end %s", side)
	}
	if ch < 0 || ch >= len(inst.serial) {
		w.log.Error("Registry_Serial_Link_Connection : link channel out-of-range; \"%s.serial_link[%d]\", shall be in the range [ 0 .. %d ]", inst.name, ch, len(inst.serial)-1)
		return errors.Wrapf(ErrChannelRange, "%s.serial_link[%d]", inst.name, ch)
	}
	if c := inst.serial[ch]; c.peer != nil {
		w.log.Error("Registry_Serial_Link_Connection : link channel multiple connection; \"%s.serial_link[%d]\" is already connected to \"%s.serial_link[%d]\"", inst.name, ch, c.peer.name, c.peerCh)
		return errors.Wrapf(ErrChannelBusy, "%s.serial_link[%d]", inst.name, ch)
	}
	return nil
}

// SerialPeer returns the partner wired to channel ch.
func (inst *Instance) SerialPeer(ch int) (*Instance, int, bool) {
	if ch < 0 || ch >= len(inst.serial) || inst.serial[ch].peer == nil {
		return nil, 0, false
	}
	c := inst.serial[ch]
	return c.peer, c.peerCh, true
}

func (inst *Instance) serialPeer(op string, ch int) (serialChannel, error) {
	if ch < 0 || ch >= len(inst.serial) {
		inst.Error("%s : link channel out-of-range; \"%s.serial_link[%d]\", shall be in the range [ 0 .. %d ]", op, inst.name, ch, len(inst.serial)-1)
		return serialChannel{}, errors.Wrapf(ErrChannelRange, "%s.serial_link[%d]", inst.name, ch)
	}
	c := inst.serial[ch]
	if c.peer == nil {
		inst.Error("%s : unconnected link channel; \"%s.serial_link[%d]\" has never been connected to any Partner-Object", op, inst.name, ch)
		return serialChannel{}, errors.Wrapf(ErrChannelUnconnected, "%s.serial_link[%d]", inst.name, ch)
	}
	return c, nil
}

// SerialTransmitWords sends unsolicited 16-bit words to the partner of
// channel ch, which processes them on its own channel.
func (inst *Instance) SerialTransmitWords(ch int, words []uint16) error {
	c, err := inst.serialPeer("Serial_TransmitData", ch)
	if err != nil {
		return err
	}
	if e, ok := c.peer.model.(SerialWordEndpoint); ok {
		return e.ProcessWords(c.peerCh, words)
	}
	return nil
}

// SerialTransmitBytes is SerialTransmitWords for 8-bit links.
func (inst *Instance) SerialTransmitBytes(ch int, data []byte) error {
	c, err := inst.serialPeer("Serial_TransmitData", ch)
	if err != nil {
		return err
	}
	if e, ok := c.peer.model.(SerialByteEndpoint); ok {
		return e.ProcessBytes(c.peerCh, data)
	}
	return nil
}

// SerialReceiveWords asks the partner of channel ch to fill words.
func (inst *Instance) SerialReceiveWords(ch int, words []uint16) error {
	c, err := inst.serialPeer("Serial_ReceiveData", ch)
	if err != nil {
		return err
	}
	if e, ok := c.peer.model.(SerialWordEndpoint); ok {
		return e.ProduceWords(c.peerCh, words)
	}
	return nil
}

// SerialReceiveBytes is SerialReceiveWords for 8-bit links.
func (inst *Instance) SerialReceiveBytes(ch int, data []byte) error {
	c, err := inst.serialPeer("Serial_ReceiveData", ch)
	if err != nil {
		return err
	}
	if e, ok := c.peer.model.(SerialByteEndpoint); ok {
		return e.ProduceBytes(c.peerCh, data)
	}
	return nil
}
