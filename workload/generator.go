// Package workload provides the simulated user processes. Each process runs
// as a goroutine that issues memory requests until it decides to terminate.
package workload

import (
	"math/rand"

	"github.com/sarchlab/ossim/mem/vm"
)

// A Generator decides the memory accesses of one process.
type Generator interface {
	// Next returns the next address to access and whether it is a write.
	Next() (address uint32, isWrite bool)

	// ShouldTerminate is asked before every access with the number of
	// accesses completed so far.
	ShouldTerminate(refs int) bool
}

// A GeneratorFactory creates the generator of a newly admitted process.
type GeneratorFactory func(slot int, pid vm.PID) Generator

// Parameters of the random workload.
const (
	WritePercent         = 30
	TerminatePercent     = 30
	MinTerminationPeriod = 900
	TerminationJitter    = 200
)

// RandomGenerator accesses uniformly random addresses. Every 900 to 1099
// accesses, it terminates with a probability of 30%.
type RandomGenerator struct {
	rng       *rand.Rand
	numPages  int
	pageSize  uint32
	nextCheck int
}

// NewRandomGenerator creates a RandomGenerator that draws from the rng.
func NewRandomGenerator(
	rng *rand.Rand,
	numPages int,
	pageSize uint32,
) *RandomGenerator {
	if numPages <= 0 || pageSize == 0 {
		panic("random generator requires pages")
	}

	g := &RandomGenerator{
		rng:      rng,
		numPages: numPages,
		pageSize: pageSize,
	}
	g.nextCheck = g.drawPeriod()

	return g
}

// RandomGeneratorFactory returns a factory that seeds each process's
// generator with the seed and the PID, so that runs are reproducible.
func RandomGeneratorFactory(
	seed int64,
	numPages int,
	pageSize uint32,
) GeneratorFactory {
	return func(_ int, pid vm.PID) Generator {
		rng := rand.New(rand.NewSource(seed + int64(pid)))
		return NewRandomGenerator(rng, numPages, pageSize)
	}
}

func (g *RandomGenerator) drawPeriod() int {
	return MinTerminationPeriod + g.rng.Intn(TerminationJitter)
}

// Next returns a random address within the pages of the process.
func (g *RandomGenerator) Next() (uint32, bool) {
	page := uint32(g.rng.Intn(g.numPages))
	offset := uint32(g.rng.Intn(int(g.pageSize)))
	isWrite := g.rng.Intn(100) < WritePercent

	return page*g.pageSize + offset, isWrite
}

// ShouldTerminate flips a coin each time a termination period has passed.
func (g *RandomGenerator) ShouldTerminate(refs int) bool {
	if refs < g.nextCheck {
		return false
	}

	if g.rng.Intn(100) < TerminatePercent {
		return true
	}

	g.nextCheck = refs + g.drawPeriod()

	return false
}

// An Access is one scripted memory access.
type Access struct {
	Address uint32
	IsWrite bool
}

// ScriptedGenerator replays a fixed list of accesses and then terminates.
type ScriptedGenerator struct {
	accesses []Access
	next     int
}

// NewScriptedGenerator creates a generator that replays the accesses.
func NewScriptedGenerator(accesses ...Access) *ScriptedGenerator {
	return &ScriptedGenerator{accesses: accesses}
}

// ScriptedGeneratorFactory gives every process the same script.
func ScriptedGeneratorFactory(accesses ...Access) GeneratorFactory {
	return func(int, vm.PID) Generator {
		return NewScriptedGenerator(accesses...)
	}
}

// Next returns the next scripted access.
func (g *ScriptedGenerator) Next() (uint32, bool) {
	a := g.accesses[g.next]
	g.next++

	return a.Address, a.IsWrite
}

// ShouldTerminate returns true once the script is exhausted, whether or not
// the kernel accepted every access.
func (g *ScriptedGenerator) ShouldTerminate(int) bool {
	return g.next >= len(g.accesses)
}
