// Package kernel implements the simulated operating system. The kernel admits
// processes, services their memory requests through the MMU, and reports
// what happens through hooks.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sarchlab/ossim/comm"
	"github.com/sarchlab/ossim/mem/vm"
	"github.com/sarchlab/ossim/mem/vm/mmu"
	"github.com/sarchlab/ossim/sim"
)

// A Kernel owns the simulated clock, the process table, and the frame table.
// Only the goroutine that calls Run changes them. Other goroutines observe
// the kernel through CurrentTime and Snapshot, and can pause it.
type Kernel struct {
	*sim.HookableBase

	name    string
	config  Config
	clock   *sim.Clock
	frames  *vm.FrameTable
	procs   *vm.ProcessTable
	mmu     *mmu.MMU
	channel *comm.Channel
	spawner Spawner
	logger  *slog.Logger

	started atomic.Bool

	// stateLock is held by the loop for each iteration.
	stateLock sync.RWMutex

	pauseLock sync.Mutex
	paused    bool
	resume    chan struct{}

	nextPID            vm.PID
	launched           int
	active             int
	hasAdmitted        bool
	lastAdmission      sim.Time
	lastSnapshotSecond uint32
	dropped            uint64
	finishedAccesses   uint64
	finishedFaults     uint64
}

// Name returns the name of the kernel.
func (k *Kernel) Name() string {
	return k.name
}

// Config returns the configuration of the kernel.
func (k *Kernel) Config() Config {
	return k.config
}

// MMU returns the MMU that translates the addresses.
func (k *Kernel) MMU() *mmu.MMU {
	return k.mmu
}

// CurrentTime returns the simulated time.
func (k *Kernel) CurrentTime() sim.Time {
	return k.clock.CurrentTime()
}

// Run drives the simulation until all the processes have finished, the wall
// clock limit is reached, or ctx is cancelled. A kernel can only run once.
func (k *Kernel) Run(ctx context.Context) (Stats, error) {
	if k.channel == nil {
		return Stats{}, fmt.Errorf("run %s: no channel", k.name)
	}

	if k.channel.IsClosed() {
		return Stats{}, fmt.Errorf("run %s: %w", k.name, comm.ErrClosed)
	}

	if !k.started.CompareAndSwap(false, true) {
		return Stats{}, fmt.Errorf("run %s: kernel already ran", k.name)
	}

	k.logger.Info("starting simulation",
		"total", k.config.TotalProcesses,
		"concurrent", k.config.MaxConcurrent)

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	startTime := time.Now()

	expired := make(chan struct{})
	if k.config.WallClockLimit > 0 {
		timer := time.AfterFunc(k.config.WallClockLimit, func() {
			close(expired)
		})
		defer timer.Stop()
	}

	reason := k.loop(ctx, workerCtx, expired)

	return k.teardown(reason, cancelWorkers, time.Since(startTime)), nil
}

func (k *Kernel) loop(
	ctx, workerCtx context.Context,
	expired <-chan struct{},
) StopReason {
	for {
		if reason, stop := k.shouldStop(ctx, expired); stop {
			return reason
		}

		if k.waitIfPaused(ctx, expired) {
			continue
		}

		k.stateLock.Lock()
		k.admit(workerCtx)
		k.snapshotIfNewSecond()
		k.drain()
		k.clock.Advance(k.config.TickQuantum)
		k.stateLock.Unlock()
	}
}

func (k *Kernel) shouldStop(
	ctx context.Context,
	expired <-chan struct{},
) (StopReason, bool) {
	select {
	case <-ctx.Done():
		return StopInterrupted, true
	case <-expired:
		return StopTimeout, true
	default:
	}

	if k.launched >= k.config.TotalProcesses && k.active == 0 {
		return StopCompleted, true
	}

	return 0, false
}

func (k *Kernel) admit(ctx context.Context) {
	if k.launched >= k.config.TotalProcesses ||
		k.active >= k.config.MaxConcurrent {
		return
	}

	now := k.clock.CurrentTime()
	if k.hasAdmitted && now.Sub(k.lastAdmission) < k.config.LaunchInterval {
		return
	}

	pid := k.nextPID

	slot, err := k.procs.Allocate(pid, now)
	if errors.Is(err, vm.ErrNoCapacity) {
		return
	}

	ep, err := k.channel.Attach(pid)
	if err != nil {
		k.procs.Revert(slot)
		k.logger.Warn("cannot attach process", "pid", pid, "error", err)

		return
	}

	err = k.spawner.Spawn(ctx, slot, pid, ep)
	if err != nil {
		k.channel.Detach(pid)
		k.procs.Revert(slot)
		k.logger.Warn("cannot spawn process", "pid", pid, "error", err)

		return
	}

	k.nextPID++
	k.launched++
	k.active++
	k.hasAdmitted = true
	k.lastAdmission = now

	k.InvokeHook(sim.HookCtx{
		Domain: k,
		Pos:    HookPosProcessAdmitted,
		Item:   AdmissionEvent{Slot: slot, PID: pid, Time: now},
	})
}

func (k *Kernel) snapshotIfNewSecond() {
	now := k.clock.CurrentTime()
	if now.Seconds <= k.lastSnapshotSecond {
		return
	}

	k.lastSnapshotSecond = now.Seconds

	if k.NumHooks() == 0 {
		return
	}

	k.InvokeHook(sim.HookCtx{
		Domain: k,
		Pos:    HookPosSnapshot,
		Item:   k.snapshot(),
	})
}

func (k *Kernel) drain() {
	req, ok := k.channel.TryRecv()
	if !ok {
		return
	}

	slot, found := k.procs.FindRunning(req.PID)
	if !found {
		k.dropped++
		k.InvokeHook(sim.HookCtx{
			Domain: k,
			Pos:    HookPosMessageDropped,
			Item:   req,
		})

		return
	}

	if req.Terminated {
		k.terminate(slot)
		return
	}

	k.access(slot, req)
}

func (k *Kernel) access(slot int, req comm.Request) {
	now := k.clock.CurrentTime()

	tr, err := k.mmu.Translate(slot, req.Address, req.IsWrite)

	k.InvokeHook(sim.HookCtx{
		Domain: k,
		Pos:    HookPosMemoryAccess,
		Item: AccessEvent{
			Slot:        slot,
			PID:         req.PID,
			Address:     req.Address,
			IsWrite:     req.IsWrite,
			Time:        now,
			Translation: tr,
			Err:         err,
		},
	})

	replyErr := k.channel.Reply(comm.Response{
		PID:     req.PID,
		Address: req.Address,
		IsWrite: req.IsWrite,
		Frame:   tr.Frame,
		Hit:     tr.Hit,
		Err:     err,
	})
	if replyErr != nil {
		k.logger.Warn("cannot reply", "pid", req.PID, "error", replyErr)
	}
}

// terminate finalizes the process in the slot and frees its frames.
func (k *Kernel) terminate(slot int) {
	stats, err := k.procs.Finalize(slot, k.clock.CurrentTime())
	if err != nil {
		log.Panic(err)
	}

	k.frames.Release(stats.PID)
	k.channel.Detach(stats.PID)
	k.active--
	k.finishedAccesses += stats.Accesses
	k.finishedFaults += stats.Faults

	k.InvokeHook(sim.HookCtx{
		Domain: k,
		Pos:    HookPosProcessTerminated,
		Item:   stats,
	})
}

func (k *Kernel) teardown(
	reason StopReason,
	cancelWorkers context.CancelFunc,
	wallTime time.Duration,
) Stats {
	cancelWorkers()
	k.channel.Close()

	k.stateLock.RLock()
	stats := k.stats(reason, wallTime)
	k.stateLock.RUnlock()

	k.InvokeHook(sim.HookCtx{
		Domain: k,
		Pos:    HookPosKernelStop,
		Item:   stats,
	})

	return stats
}

func (k *Kernel) stats(reason StopReason, wallTime time.Duration) Stats {
	accesses := k.finishedAccesses
	faults := k.finishedFaults

	for _, p := range k.procs.Processes() {
		if p.State == vm.ProcessRunning {
			accesses += p.Accesses
			faults += p.Faults
		}
	}

	now := k.clock.CurrentTime()

	s := Stats{
		Launched:        k.launched,
		Active:          k.active,
		Accesses:        accesses,
		Faults:          faults,
		FaultsPerAccess: vm.FaultRate(faults, accesses),
		SimTime:         now,
		WallTime:        wallTime,
		StopReason:      reason,
		Dropped:         k.dropped,
	}

	if !now.IsZero() {
		s.AccessesPerSimSecond = float64(accesses) / now.InSec()
	}

	return s
}

// Snapshot returns a copy of the kernel state. If the kernel is running, the
// copy is taken between two iterations.
func (k *Kernel) Snapshot() Snapshot {
	k.stateLock.RLock()
	defer k.stateLock.RUnlock()

	return k.snapshot()
}

func (k *Kernel) snapshot() Snapshot {
	return Snapshot{
		Time:      k.clock.CurrentTime(),
		Frames:    k.frames.Frames(),
		Processes: k.procs.Processes(),
		Launched:  k.launched,
		Active:    k.active,
		Total:     k.config.TotalProcesses,
		Paused:    k.IsPaused(),
	}
}

// WithStateLocked runs f between two iterations, while the kernel can be
// neither paused nor resumed. f must not call other methods of the kernel.
func (k *Kernel) WithStateLocked(f func()) {
	k.stateLock.RLock()
	defer k.stateLock.RUnlock()

	k.pauseLock.Lock()
	defer k.pauseLock.Unlock()

	f()
}

// Pause stops the kernel before its next iteration. The wall clock limit
// and cancellation still apply while paused.
func (k *Kernel) Pause() {
	k.pauseLock.Lock()
	defer k.pauseLock.Unlock()

	if k.paused {
		return
	}

	k.paused = true
	k.resume = make(chan struct{})
}

// Continue resumes a paused kernel.
func (k *Kernel) Continue() {
	k.pauseLock.Lock()
	defer k.pauseLock.Unlock()

	if !k.paused {
		return
	}

	k.paused = false
	close(k.resume)
}

// IsPaused tells if the kernel is paused.
func (k *Kernel) IsPaused() bool {
	k.pauseLock.Lock()
	defer k.pauseLock.Unlock()

	return k.paused
}

// waitIfPaused blocks while the kernel is paused. It returns true if it had
// to wait.
func (k *Kernel) waitIfPaused(
	ctx context.Context,
	expired <-chan struct{},
) bool {
	k.pauseLock.Lock()
	if !k.paused {
		k.pauseLock.Unlock()
		return false
	}
	resume := k.resume
	k.pauseLock.Unlock()

	select {
	case <-resume:
	case <-ctx.Done():
	case <-expired:
	}

	return true
}
