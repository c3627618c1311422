package kernel

import (
	"errors"
	"fmt"
	"time"

	"github.com/sarchlab/ossim/mem/vm/mmu"
)

// ErrInvalidConfig is returned when a Config cannot drive a simulation.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the parameters of a simulation. Times are in simulated
// nanoseconds unless stated otherwise.
type Config struct {
	// TotalProcesses is the number of processes to launch over the run.
	TotalProcesses int

	// MaxConcurrent limits the number of processes running at once. It must
	// not exceed MaxProcesses.
	MaxConcurrent int

	// LaunchInterval is the simulated time between two admissions.
	LaunchInterval uint64

	// MaxProcesses is the number of slots of the process table.
	MaxProcesses    int
	NumFrames       int
	PagesPerProcess int
	PageSize        uint32

	HitLatency       uint64
	FaultLatency     uint64
	WritebackLatency uint64
	TickQuantum      uint64

	// WallClockLimit stops the run after the given real time. Zero means no
	// limit.
	WallClockLimit time.Duration

	// RecycleSlots lets a terminated process's slot be given to a new
	// process. Without it, the process table fills up after MaxProcesses
	// admissions.
	RecycleSlots bool

	// ChannelCapacity is the number of requests the channel can queue.
	ChannelCapacity int
}

// DefaultConfig returns the configuration of the classic simulation: 100
// processes, at most 18 at once, one launch per simulated second, 128 frames
// of 1 KiB and 32 pages per process.
func DefaultConfig() Config {
	return Config{
		TotalProcesses:   100,
		MaxConcurrent:    18,
		LaunchInterval:   1000 * uint64(time.Millisecond),
		MaxProcesses:     18,
		NumFrames:        128,
		PagesPerProcess:  32,
		PageSize:         mmu.DefaultPageSize,
		HitLatency:       mmu.DefaultHitLatency,
		FaultLatency:     mmu.DefaultFaultLatency,
		WritebackLatency: mmu.DefaultWritebackLatency,
		TickQuantum:      1000,
		WallClockLimit:   5 * time.Second,
		ChannelCapacity:  64,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	switch {
	case c.TotalProcesses <= 0:
		return fmt.Errorf("%w: total processes must be positive, got %d",
			ErrInvalidConfig, c.TotalProcesses)
	case c.MaxProcesses <= 0:
		return fmt.Errorf("%w: process table must have slots, got %d",
			ErrInvalidConfig, c.MaxProcesses)
	case c.MaxConcurrent <= 0 || c.MaxConcurrent > c.MaxProcesses:
		return fmt.Errorf("%w: concurrent processes must be in [1, %d], got %d",
			ErrInvalidConfig, c.MaxProcesses, c.MaxConcurrent)
	case c.LaunchInterval == 0:
		return fmt.Errorf("%w: launch interval must be positive",
			ErrInvalidConfig)
	case c.NumFrames <= 0:
		return fmt.Errorf("%w: frames must be positive, got %d",
			ErrInvalidConfig, c.NumFrames)
	case c.PagesPerProcess <= 0:
		return fmt.Errorf("%w: pages per process must be positive, got %d",
			ErrInvalidConfig, c.PagesPerProcess)
	case c.PageSize == 0:
		return fmt.Errorf("%w: page size must be positive", ErrInvalidConfig)
	case c.TickQuantum == 0:
		return fmt.Errorf("%w: tick quantum must be positive", ErrInvalidConfig)
	case c.WallClockLimit < 0:
		return fmt.Errorf("%w: wall clock limit must not be negative",
			ErrInvalidConfig)
	case c.ChannelCapacity <= 0:
		return fmt.Errorf("%w: channel capacity must be positive, got %d",
			ErrInvalidConfig, c.ChannelCapacity)
	}

	if uint64(c.PagesPerProcess)*uint64(c.PageSize) > 1<<32 {
		return fmt.Errorf("%w: address space of %d pages of %d bytes "+
			"does not fit 32-bit addresses",
			ErrInvalidConfig, c.PagesPerProcess, c.PageSize)
	}

	return nil
}
