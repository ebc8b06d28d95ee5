package cmd

import (
	"bytes"
	"os"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/MDEGroup/satellite-interoperability/sim"
	"github.com/MDEGroup/satellite-interoperability/sim/models"
)

// Scenario lists the model instances of a run and how they are wired.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Scenario struct {
	Version   string         `yaml:"version"`
	Seed      *int64         `yaml:"seed,omitempty"` // overridden by --seed when set on the command line
	Instances []InstanceSpec `yaml:"instances"`
	Links     []LinkSpec     `yaml:"links"`
	Serial    []SerialSpec   `yaml:"serial"`
	Commands  []TimedCommand `yaml:"commands"`
}

// InstanceSpec creates one model instance through the model factory table.
type InstanceSpec struct {
	Name          string  `yaml:"name"`
	Type          string  `yaml:"type"`
	Inputs        int     `yaml:"inputs"`
	RTAddress     int     `yaml:"rt_address"`
	SharedAddress bool    `yaml:"shared_address"`
	SerialLinks   int     `yaml:"serial_links"`
	PowerLoad     float64 `yaml:"power_load"`
	SwitchOn      bool    `yaml:"switch_on"` // applied after initialization
	AlwaysUpdated bool    `yaml:"always_updated"`
}

// LinkSpec connects Count consecutive outputs to inputs, e.g. from "A.Y[0]" to "B.U[1]".
type LinkSpec struct {
	From       string `yaml:"from"`
	To         string `yaml:"to"`
	Count      int    `yaml:"count"`
	AllowDelay bool   `yaml:"allow_delay"`
}

// SerialSpec joins two serial channels, written "NAME[ch]".
type SerialSpec struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

// TimedCommand is queued for the first final update at or after At.
type TimedCommand struct {
	At      float64 `yaml:"at"`
	Command string  `yaml:"command"`
}

var (
	// ErrInvalidScenario is returned for scenario files that cannot be built.
	ErrInvalidScenario = errors.New("invalid scenario")

	arrayRefPattern  = regexp.MustCompile(`^\s*([^.\s\[\]]+)\.([UY])\[(\d+)\]\s*$`)
	serialRefPattern = regexp.MustCompile(`^\s*([^.\s\[\]]+)\[(\d+)\]\s*$`)
)

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scenario %s", path)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a scenario with strict field checking: typos must cause errors.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, errors.Wrap(err, "parse scenario")
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if sc.Version != "" && sc.Version != "1" {
		return errors.Wrapf(ErrInvalidScenario, "unsupported version %q", sc.Version)
	}
	seen := make(map[string]bool, len(sc.Instances))
	for i, in := range sc.Instances {
		if in.Name == "" || in.Type == "" {
			return errors.Wrapf(ErrInvalidScenario, "instance %d needs a name and a type", i)
		}
		if seen[in.Name] {
			return errors.Wrapf(ErrInvalidScenario, "instance %s declared twice", in.Name)
		}
		seen[in.Name] = true
	}
	for _, l := range sc.Links {
		if _, _, err := parseArrayRef(l.From, "Y"); err != nil {
			return err
		}
		if _, _, err := parseArrayRef(l.To, "U"); err != nil {
			return err
		}
	}
	for _, s := range sc.Serial {
		for _, end := range []string{s.A, s.B} {
			if _, _, err := parseSerialRef(end); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseArrayRef splits "NAME.Y[i]" and checks the array letter.
func parseArrayRef(ref, array string) (string, int, error) {
	m := arrayRefPattern.FindStringSubmatch(ref)
	if m == nil || m[2] != array {
		return "", 0, errors.Wrapf(ErrInvalidScenario, "%q is not a NAME.%s[index] reference", ref, array)
	}
	i, err := strconv.Atoi(m[3])
	if err != nil {
		return "", 0, errors.Wrapf(ErrInvalidScenario, "%q: %v", ref, err)
	}
	return m[1], i, nil
}

func parseSerialRef(ref string) (string, int, error) {
	m := serialRefPattern.FindStringSubmatch(ref)
	if m == nil {
		return "", 0, errors.Wrapf(ErrInvalidScenario, "%q is not a NAME[channel] reference", ref)
	}
	ch, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, errors.Wrapf(ErrInvalidScenario, "%q: %v", ref, err)
	}
	return m[1], ch, nil
}

// Build registers the instances on w, connects the links and serial channels
// and analyses the topology.
func (sc *Scenario) Build(w *sim.World) error {
	for _, in := range sc.Instances {
		inst, err := models.New(w, in.Type, in.Name, models.Params{Inputs: in.Inputs, RTAddress: in.RTAddress})
		if err != nil {
			return errors.Wrapf(err, "instance %s", in.Name)
		}
		if in.RTAddress != 0 && inst.RTAddress() != in.RTAddress {
			if err := inst.SetRTAddress(in.RTAddress, in.SharedAddress); err != nil {
				return errors.Wrapf(err, "instance %s", in.Name)
			}
		}
		if in.SerialLinks > 0 {
			if err := inst.CreateSerialLinks(in.SerialLinks); err != nil {
				return errors.Wrapf(err, "instance %s", in.Name)
			}
		}
		if in.PowerLoad != 0 {
			inst.SetPowerLoadAtSwitchOn(in.PowerLoad)
		}
		if in.AlwaysUpdated {
			inst.SetAlwaysUpdated(true)
		}
	}

	for _, l := range sc.Links {
		src, iy, err := sc.lookupArray(w, l.From, "Y")
		if err != nil {
			return err
		}
		dst, iu, err := sc.lookupArray(w, l.To, "U")
		if err != nil {
			return err
		}
		count := l.Count
		if count == 0 {
			count = 1
		}
		if err := w.Connect(src.Output(iy), dst.Input(iu), count, l.AllowDelay); err != nil {
			return errors.Wrapf(err, "link %s -> %s", l.From, l.To)
		}
	}

	for _, s := range sc.Serial {
		a, chA, err := sc.lookupSerial(w, s.A)
		if err != nil {
			return err
		}
		b, chB, err := sc.lookupSerial(w, s.B)
		if err != nil {
			return err
		}
		if err := w.ConnectSerial(a, chA, b, chB); err != nil {
			return errors.Wrapf(err, "serial %s <-> %s", s.A, s.B)
		}
	}

	return w.AnalyzeTopology()
}

// Start switches on the instances flagged switch_on and queues the timed
// commands. Models may switch themselves off while initializing and the
// settings file replaces the queue, so it runs after InitializeAll.
func (sc *Scenario) Start(w *sim.World) error {
	for _, in := range sc.Instances {
		if !in.SwitchOn {
			continue
		}
		inst := w.FindByName(in.Name)
		if inst == nil {
			return errors.Wrapf(ErrInvalidScenario, "unknown instance %s", in.Name)
		}
		if err := inst.SwitchOn(); err != nil {
			return errors.Wrapf(err, "switch on %s", in.Name)
		}
	}
	for _, c := range sc.Commands {
		w.Enqueue(c.At, c.Command)
	}
	return nil
}

func (sc *Scenario) lookupArray(w *sim.World, ref, array string) (*sim.Instance, int, error) {
	name, i, err := parseArrayRef(ref, array)
	if err != nil {
		return nil, 0, err
	}
	inst := w.FindByName(name)
	if inst == nil {
		return nil, 0, errors.Wrapf(ErrInvalidScenario, "%s: unknown instance %s", ref, name)
	}
	return inst, i, nil
}

func (sc *Scenario) lookupSerial(w *sim.World, ref string) (*sim.Instance, int, error) {
	name, ch, err := parseSerialRef(ref)
	if err != nil {
		return nil, 0, err
	}
	inst := w.FindByName(name)
	if inst == nil {
		return nil, 0, errors.Wrapf(ErrInvalidScenario, "%s: unknown instance %s", ref, name)
	}
	return inst, ch, nil
}
