package sim

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	maxDataNameLen = 32
	maxDataUnitLen = 14
)

// Value is the set of element types that can be published.
type Value interface {
	bool | int8 | uint8 | int16 | uint16 | int32 | uint32 | int | float32 | float64
}

// cellSet is the type-erased view over the elements of one published datum.
type cellSet interface {
	len() int
	get(i int) float64
	set(i int, v float64)
	index(p any) (int, bool)
	kind() string
}

type cells[T Value] struct {
	ptrs []*T
}

func (c cells[T]) len() int { return len(c.ptrs) }

func (c cells[T]) get(i int) float64 { return toFloat(*c.ptrs[i]) }

func (c cells[T]) set(i int, v float64) { *c.ptrs[i] = fromFloat[T](v) }

func (c cells[T]) index(p any) (int, bool) {
	tp, ok := p.(*T)
	if !ok || tp == nil {
		return 0, false
	}
	for i, q := range c.ptrs {
		if q == tp {
			return i, true
		}
	}
	return 0, false
}

func (c cells[T]) kind() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}

func toFloat[T Value](v T) float64 {
	switch x := any(v).(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case int8:
		return float64(x)
	case uint8:
		return float64(x)
	case int16:
		return float64(x)
	case uint16:
		return float64(x)
	case int32:
		return float64(x)
	case uint32:
		return float64(x)
	case int:
		return float64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	}
	return 0
}

func fromFloat[T Value](f float64) T {
	var out T
	switch p := any(&out).(type) {
	case *bool:
		*p = f != 0
	case *int8:
		*p = int8(f)
	case *uint8:
		*p = uint8(f)
	case *int16:
		*p = int16(f)
	case *uint16:
		*p = uint16(f)
	case *int32:
		*p = int32(f)
	case *uint32:
		*p = uint32(f)
	case *int:
		*p = int(f)
	case *float32:
		*p = float32(f)
	case *float64:
		*p = f
	}
	return out
}

// Descriptor is one published datum of an instance.
type Descriptor struct {
	Owner *Instance
	Name  string
	Unit  string
	cells cellSet
}

// Len returns the number of elements.
func (d *Descriptor) Len() int { return d.cells.len() }

// Kind returns the Go element type name.
func (d *Descriptor) Kind() string { return d.cells.kind() }

// Publish registers the elements of data under name. data keeps aliasing the
// caller storage, so published values always reflect the live model state.
func Publish[T Value](inst *Instance, data []T, name, unit string) error {
	ptrs := make([]*T, len(data))
	for i := range data {
		ptrs[i] = &data[i]
	}
	return publish(inst, ptrs, name, unit)
}

// PublishScalar registers a single value under name.
func PublishScalar[T Value](inst *Instance, p *T, name, unit string) error {
	return publish(inst, []*T{p}, name, unit)
}

func publish[T Value](inst *Instance, ptrs []*T, name, unit string) error {
	switch {
	case name == "":
		inst.Error("\"%s\".Publish : the DataName string is empty", inst.name)
		return ErrInvalidDataName
	case len(name) > maxDataNameLen:
		inst.Error("\"%s\".Publish : the DataName string exceeds %d characters (\"%s\")", inst.name, maxDataNameLen, name)
		return ErrInvalidDataName
	case inst.descriptor(name) != nil:
		inst.Error("\"%s\".Publish : attempt to register the already registered DataName (\"%s\"), it shall be unique", inst.name, name)
		return errors.Wrapf(ErrInvalidDataName, "%s already published", name)
	case len(ptrs) == 0:
		inst.Warning("\"%s\".Publish : \"%s\" data array is empty, not published", inst.name, name)
		return nil
	case len(unit) > maxDataUnitLen:
		inst.Error("\"%s\".Publish : \"%s\" the DataUnit string exceeds %d characters (\"%s\")", inst.name, name, maxDataUnitLen, unit)
		return ErrInvalidUnit
	}
	d := &Descriptor{Owner: inst, Name: name, Unit: unit, cells: cells[T]{ptrs: ptrs}}
	inst.published = append(inst.published, d)
	inst.Message("\"%s\".Publish : data \"%s[%d]\" has been registered for publishing purposes [type: %s]", inst.name, name, len(ptrs), d.Kind())
	return nil
}

func (inst *Instance) descriptor(name string) *Descriptor {
	for _, d := range inst.published {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Published returns the descriptors of the instance in publishing order.
func (inst *Instance) Published() []*Descriptor {
	return append([]*Descriptor(nil), inst.published...)
}

// GetValue returns element offset of the published datum name, converted to
// float64, and its unit. Unknown names and bad offsets log a warning and
// yield 0.
func (inst *Instance) GetValue(name string, offset int) (float64, string, error) {
	d := inst.descriptor(name)
	if d == nil {
		inst.Warning("\"%s\".GetValue : DataName (\"%s\") has not been registered for publishing", inst.name, name)
		return 0, "", errors.Wrapf(ErrUnknownData, "%s.%s", inst.name, name)
	}
	if offset < 0 || offset >= d.Len() {
		inst.Warning("\"%s\".GetValue : (\"%s\") offset \"%d\" exceeds the array limits [0..%d]", inst.name, name, offset, d.Len())
		return 0, "", errors.Wrapf(ErrOffsetOutOfRange, "%s.%s[%d]", inst.name, name, offset)
	}
	return d.cells.get(offset), d.Unit, nil
}

// SetValue converts value to the element type of the published datum name
// and stores it at offset.
func (inst *Instance) SetValue(name string, offset int, value float64) error {
	d := inst.descriptor(name)
	if d == nil {
		inst.Warning("\"%s\".SetValue : DataName (\"%s\") has not been registered for publishing", inst.name, name)
		return errors.Wrapf(ErrUnknownData, "%s.%s", inst.name, name)
	}
	if offset < 0 || offset >= d.Len() {
		inst.Warning("\"%s\".SetValue : (\"%s\") offset \"%d\" exceeds the array limits [0..%d]", inst.name, name, offset, d.Len())
		return errors.Wrapf(ErrOffsetOutOfRange, "%s.%s[%d]", inst.name, name, offset)
	}
	d.cells.set(offset, value)
	return nil
}

// FindPublished returns the descriptor, across every instance, that holds the
// element p points to, and the element index.
func (w *World) FindPublished(p any) (*Descriptor, int, bool) {
	for _, inst := range w.order {
		for _, d := range inst.published {
			if i, ok := d.cells.index(p); ok {
				return d, i, true
			}
		}
	}
	return nil, 0, false
}

// PublishedName formats the element p points to as "Owner.name(k) [unit]",
// k being 1-based and present for arrays only.
func (w *World) PublishedName(p any) (string, error) {
	d, i, ok := w.FindPublished(p)
	if !ok {
		w.log.Warning("PublishedName : pointer %p does not match any published data", p)
		return "", ErrUnknownData
	}
	return d.elementName(i), nil
}

func (d *Descriptor) elementName(i int) string {
	s := d.Owner.name + "." + d.Name
	if d.Len() > 1 {
		s += fmt.Sprintf("(%d)", i+1)
	}
	if d.Unit != "" {
		s += " [" + d.Unit + "]"
	}
	return s
}

// publishGeneric publishes the kernel-maintained fields of inst.
func (inst *Instance) publishGeneric() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	w := inst.world
	if inst.id == 1 {
		add(PublishScalar(inst, &w.epoch, "GO.current_epoch", "s"))
	}
	add(PublishScalar(inst, &inst.TimeAtLastUpdate, "GO.time_at_last_update", "s"))
	add(PublishScalar(inst, &inst.DeltaTimeAtLastUpdate, "GO.delta_time_at_last_update", "s"))
	publishForcing(inst, "pU", inst.forcedU, add)
	publishForcing(inst, "pY", inst.forcedY, add)

	add(PublishScalar(inst, &inst.switchOn, "GO.OFF_ON_Switch_Status", ""))
	add(PublishScalar(inst, &inst.powerSupplied, "GO.Power_Supplied_Flag", ""))
	add(PublishScalar(inst, &inst.powerLoad, "GO.PowerLoad", "W"))
	add(PublishScalar(inst, &inst.powerLoadAtSwitchOn, "GO.PowerLoad_at_Switch_ON", "W"))

	rt := &inst.rt
	add(PublishScalar(inst, &rt.address, "GO.Rt1553_RemoteTerminalAddress", ""))
	sa := make([]*bool, 0, 64)
	for dir := range rt.saEnabled {
		for k := range rt.saEnabled[dir] {
			sa = append(sa, &rt.saEnabled[dir][k])
		}
	}
	add(publish(inst, sa, "GO.Enable_SubAddress_flag", ""))
	add(Publish(inst, rt.mcEnabled[:], "GO.Enable_ModeCode_flag", ""))
	for i := 0; i < 32; i++ {
		add(Publish(inst, rt.tx[i].Word[:], fmt.Sprintf("GO.TxModifier_%d_word_value", i), ""))
		add(Publish(inst, rt.tx[i].Forced[:], fmt.Sprintf("GO.TxModifier_%d_forced_flag", i), ""))
		add(Publish(inst, rt.rx[i].Word[:], fmt.Sprintf("GO.RxModifier_%d_word_value", i), ""))
		add(Publish(inst, rt.rx[i].Forced[:], fmt.Sprintf("GO.RxModifier_%d_forced_flag", i), ""))
		add(Publish(inst, rt.mc[i].Word[:], fmt.Sprintf("GO.McModifier_%d_word_value", i), ""))
		add(Publish(inst, rt.mc[i].Forced[:], fmt.Sprintf("GO.McModifier_%d_forced_flag", i), ""))
	}

	add(PublishScalar(inst, &inst.lastUpdateExec, "GO.LastUpdateExecTime", "s"))
	add(PublishScalar(inst, &inst.updateStepTime, "GO.UpdateStepTime", "s"))

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func publishForcing(inst *Instance, prefix string, slots []forcing, add func(error)) {
	for i := range slots {
		add(PublishScalar(inst, &slots[i].actual, fmt.Sprintf("GO.%s_Forced_%d_actual_value", prefix, i), ""))
		add(PublishScalar(inst, &slots[i].forced, fmt.Sprintf("GO.%s_Forced_%d_forced_value", prefix, i), ""))
		add(PublishScalar(inst, &slots[i].flag, fmt.Sprintf("GO.%s_Forced_%d_forced_flag", prefix, i), ""))
	}
}
