// Package simulation assembles the kernel, the workers and the optional
// recording and monitoring services into a runnable simulation.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sarchlab/ossim/comm"
	"github.com/sarchlab/ossim/datarecording"
	"github.com/sarchlab/ossim/kernel"
	"github.com/sarchlab/ossim/mem/vm/mmu"
	"github.com/sarchlab/ossim/monitoring"
	"github.com/sarchlab/ossim/tracing"
	"github.com/sarchlab/ossim/workload"
)

// A Simulation owns all the parts of one run.
type Simulation struct {
	id         string
	logger     *slog.Logger
	outputPath string

	kernel  *kernel.Kernel
	channel *comm.Channel
	spawner *workload.GoroutineSpawner

	serviceTime *tracing.TotalTimeTracer
	busyTime    *tracing.BusyTimeTracer
	steps       *tracing.StepCountTracer

	dataRecorder datarecording.DataRecorder
	execRecorder *datarecording.ExecRecorder
	tracer       *tracing.DBTracer
	monitor      *monitoring.Monitor
	progressBar  *monitoring.ProgressBar
}

// ID returns the unique ID of the run.
func (s *Simulation) ID() string {
	return s.id
}

// Kernel returns the kernel of the simulation.
func (s *Simulation) Kernel() *kernel.Kernel {
	return s.kernel
}

// GetDataRecorder returns the data recorder used in the simulation. It is nil
// if recording is disabled.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// OutputPath returns the database file, or an empty string if recording is
// disabled.
func (s *Simulation) OutputPath() string {
	return s.outputPath
}

// GetMonitor returns the monitor used in the simulation. It is nil if
// monitoring is disabled.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// StartMonitor starts the monitoring server and returns its URL. It returns
// an empty URL if monitoring is disabled.
func (s *Simulation) StartMonitor() (string, error) {
	if s.monitor == nil {
		return "", nil
	}

	return s.monitor.StartServer()
}

// Run runs the kernel until it stops and waits for all the workers to return.
func (s *Simulation) Run(ctx context.Context) (kernel.Stats, error) {
	if s.execRecorder != nil {
		s.execRecorder.Start(datarecording.ExecInfo{
			Property: "Run ID",
			Value:    s.id,
		})
		defer s.execRecorder.End()
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stats, err := s.kernel.Run(workerCtx)

	cancel()
	s.spawner.Wait()

	if err != nil {
		return stats, fmt.Errorf("simulation %s: %w", s.id, err)
	}

	s.logServiceTime(stats)

	if s.progressBar != nil {
		s.monitor.CompleteProgressBar(s.progressBar)
	}

	return stats, nil
}

// TranslationCount returns the number of translations that the MMU has
// completed.
func (s *Simulation) TranslationCount() uint64 {
	return s.serviceTime.TaskCount()
}

// MemoryBusyTime returns the simulated nanoseconds that the MMU has spent on
// translations, including the page fault and writeback latencies.
func (s *Simulation) MemoryBusyTime() uint64 {
	return s.busyTime.BusyTime()
}

// Evictions returns the number of page faults that replaced a resident page.
func (s *Simulation) Evictions() uint64 {
	return s.steps.GetStepCount(mmu.StepEviction)
}

// Writebacks returns the number of evicted pages that were written back.
func (s *Simulation) Writebacks() uint64 {
	return s.steps.GetStepCount(mmu.StepWriteback)
}

func (s *Simulation) logServiceTime(stats kernel.Stats) {
	utilization := 0.0
	if simTime := stats.SimTime.InNanos(); simTime > 0 {
		utilization = float64(s.busyTime.BusyTime()) / float64(simTime)
	}

	s.logger.Info("memory service time",
		"translations", s.serviceTime.TaskCount(),
		"average_ns", s.serviceTime.AverageTime(),
		"busy_ns", s.busyTime.BusyTime(),
		"evictions", s.Evictions(),
		"writebacks", s.Writebacks(),
		"utilization", utilization)
}

// Terminate stops the services and closes the database.
func (s *Simulation) Terminate() error {
	var errs []error

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		errs = append(errs, s.monitor.StopServer(ctx))
	}

	if s.tracer != nil {
		s.tracer.Terminate()
	}

	if s.dataRecorder != nil {
		errs = append(errs, s.dataRecorder.Close())
	}

	return errors.Join(errs...)
}
