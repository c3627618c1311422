package kernel

import (
	"log"
	"log/slog"

	"github.com/sarchlab/ossim/comm"
	"github.com/sarchlab/ossim/mem/vm"
	"github.com/sarchlab/ossim/mem/vm/mmu"
	"github.com/sarchlab/ossim/sim"
)

// A Builder can build kernels.
type Builder struct {
	config       Config
	spawner      Spawner
	channel      *comm.Channel
	logger       *slog.Logger
	victimFinder vm.VictimFinder
}

// MakeBuilder creates a builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		config: DefaultConfig(),
	}
}

// WithConfig sets the configuration of the kernel.
func (b Builder) WithConfig(config Config) Builder {
	b.config = config
	return b
}

// WithSpawner sets the spawner that starts the workers.
func (b Builder) WithSpawner(spawner Spawner) Builder {
	b.spawner = spawner
	return b
}

// WithChannel sets the channel that the workers talk through.
func (b Builder) WithChannel(channel *comm.Channel) Builder {
	b.channel = channel
	return b
}

// WithLogger sets the logger for the kernel's own diagnostics.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// WithVictimFinder replaces the least recently used eviction policy.
func (b Builder) WithVictimFinder(f vm.VictimFinder) Builder {
	b.victimFinder = f
	return b
}

// Build creates the kernel. It panics if the configuration is invalid or no
// spawner is given. A missing channel is reported when the kernel runs.
func (b Builder) Build(name string) *Kernel {
	sim.NameMustBeValid(name)

	if err := b.config.Validate(); err != nil {
		log.Panic(err)
	}

	if b.spawner == nil {
		log.Panic("kernel requires a spawner")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	k := &Kernel{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		config:       b.config,
		clock:        sim.NewClock(),
		channel:      b.channel,
		spawner:      b.spawner,
		logger:       logger.With("component", name),
		nextPID:      1,
	}

	k.frames = vm.NewFrameTable(b.config.NumFrames, b.victimFinder)
	k.procs = vm.NewProcessTable(
		b.config.MaxProcesses,
		b.config.PagesPerProcess,
		b.config.RecycleSlots,
	)
	k.mmu = mmu.MakeBuilder().
		WithClock(k.clock).
		WithFrameTable(k.frames).
		WithProcessTable(k.procs).
		WithPageSize(b.config.PageSize).
		WithHitLatency(b.config.HitLatency).
		WithFaultLatency(b.config.FaultLatency).
		WithWritebackLatency(b.config.WritebackLatency).
		Build(name + ".MMU")

	return k
}
