package workload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sarchlab/ossim/comm"
	"github.com/sarchlab/ossim/mem/vm"
)

// GoroutineSpawner runs every admitted process as a Worker goroutine.
type GoroutineSpawner struct {
	factory GeneratorFactory
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewGoroutineSpawner creates a spawner that builds the generators of the
// workers with the factory.
func NewGoroutineSpawner(
	factory GeneratorFactory,
	logger *slog.Logger,
) *GoroutineSpawner {
	if factory == nil {
		panic("spawner requires a generator factory")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &GoroutineSpawner{
		factory: factory,
		logger:  logger,
	}
}

// Spawn starts the worker of the process.
func (s *GoroutineSpawner) Spawn(
	ctx context.Context,
	slot int,
	pid vm.PID,
	ep *comm.Endpoint,
) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("spawn p%d: %w", pid, err)
	}

	worker := NewWorker(ep, s.factory(slot, pid), s.logger)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := worker.Run(ctx); err != nil {
			s.logger.Error("worker failed", "pid", pid, "error", err)
		}
	}()

	return nil
}

// Wait blocks until all the spawned workers have returned.
func (s *GoroutineSpawner) Wait() {
	s.wg.Wait()
}
