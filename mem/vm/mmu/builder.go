package mmu

import (
	"log"

	"github.com/sarchlab/ossim/mem/vm"
	"github.com/sarchlab/ossim/sim"
)

// Default costs, in simulated nanoseconds.
const (
	DefaultPageSize         = 1024
	DefaultHitLatency       = 100
	DefaultFaultLatency     = 14_000_000
	DefaultWritebackLatency = 10_000_000
)

// A Builder can build MMU component
type Builder struct {
	clock            Clock
	frameTable       *vm.FrameTable
	processTable     *vm.ProcessTable
	pageSize         uint32
	hitLatency       uint64
	faultLatency     uint64
	writebackLatency uint64
}

// MakeBuilder creates a new builder
func MakeBuilder() Builder {
	return Builder{
		pageSize:         DefaultPageSize,
		hitLatency:       DefaultHitLatency,
		faultLatency:     DefaultFaultLatency,
		writebackLatency: DefaultWritebackLatency,
	}
}

// WithClock sets the clock that the MMU charges the access costs to.
func (b Builder) WithClock(clock Clock) Builder {
	b.clock = clock
	return b
}

// WithFrameTable sets the physical frames that the MMU manages.
func (b Builder) WithFrameTable(t *vm.FrameTable) Builder {
	b.frameTable = t
	return b
}

// WithProcessTable sets the process table that owns the page tables.
func (b Builder) WithProcessTable(t *vm.ProcessTable) Builder {
	b.processTable = t
	return b
}

// WithPageSize sets the number of bytes in a page.
func (b Builder) WithPageSize(pageSize uint32) Builder {
	b.pageSize = pageSize
	return b
}

// WithHitLatency sets the nanoseconds charged when the page is resident.
func (b Builder) WithHitLatency(ns uint64) Builder {
	b.hitLatency = ns
	return b
}

// WithFaultLatency sets the nanoseconds charged to swap in a page.
func (b Builder) WithFaultLatency(ns uint64) Builder {
	b.faultLatency = ns
	return b
}

// WithWritebackLatency sets the nanoseconds charged to write back a dirty
// victim before its frame is reused.
func (b Builder) WithWritebackLatency(ns uint64) Builder {
	b.writebackLatency = ns
	return b
}

// Build returns a newly created MMU component
func (b Builder) Build(name string) *MMU {
	sim.NameMustBeValid(name)
	b.mustBeComplete()

	return &MMU{
		HookableBase:     sim.NewHookableBase(),
		name:             name,
		clock:            b.clock,
		frames:           b.frameTable,
		procs:            b.processTable,
		pageSize:         b.pageSize,
		hitLatency:       b.hitLatency,
		faultLatency:     b.faultLatency,
		writebackLatency: b.writebackLatency,
	}
}

func (b Builder) mustBeComplete() {
	if b.clock == nil {
		log.Panic("mmu requires a clock")
	}

	if b.frameTable == nil {
		log.Panic("mmu requires a frame table")
	}

	if b.processTable == nil {
		log.Panic("mmu requires a process table")
	}

	if b.pageSize == 0 {
		log.Panic("page size must be positive")
	}
}
