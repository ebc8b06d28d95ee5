package sim

import (
	"hash/fnv"
	"math/rand/v2"
)

// SimulationKey identifies a reproducible run. Two runs with the same key,
// scenario and settings produce bit-for-bit identical outputs.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// SubsystemInstance names the random stream of the instance called name.
// Streams are keyed by name, not id, so registering another instance leaves
// the existing sequences untouched.
func SubsystemInstance(name string) string {
	return "instance_" + name
}

// PartitionedRNG hands out one independent random stream per subsystem.
// A stream is a PCG source seeded with (key XOR fnv1a64(name), key); it is
// created on first use and cached.
//
// Not safe for concurrent use; the scheduler is single threaded.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{key: key, streams: make(map[string]*rand.Rand)}
}

// ForSubsystem returns the stream of the named subsystem. Never nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	r, ok := p.streams[name]
	if !ok {
		seed := uint64(int64(p.key) ^ fnv1a64(name))
		r = rand.New(rand.NewPCG(seed, uint64(p.key)))
		p.streams[name] = r
	}
	return r
}

// Key returns the SimulationKey the streams derive from.
func (p *PartitionedRNG) Key() SimulationKey { return p.key }

// Rand returns the random stream reserved for this instance.
func (inst *Instance) Rand() *rand.Rand {
	return inst.world.rng.ForSubsystem(SubsystemInstance(inst.name))
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
