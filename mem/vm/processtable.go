package vm

import (
	"fmt"
	"log"

	"github.com/sarchlab/ossim/sim"
)

// ProcessState is the lifecycle state of a process table slot.
type ProcessState int

// All the process states.
const (
	ProcessUnused ProcessState = iota
	ProcessRunning
	ProcessTerminated
)

func (s ProcessState) String() string {
	switch s {
	case ProcessUnused:
		return "Unused"
	case ProcessRunning:
		return "Running"
	case ProcessTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("ProcessState(%d)", int(s))
	}
}

// A Process is the kernel's bookkeeping entry of one simulated process.
type Process struct {
	Slot      int
	PID       PID
	State     ProcessState
	PageTable *PageTable
	Accesses  uint64
	Faults    uint64
	Start     sim.Time
	End       sim.Time
}

// ProcessStats summarizes a process when it terminates.
type ProcessStats struct {
	Slot      int
	PID       PID
	Accesses  uint64
	Faults    uint64
	FaultRate float64
	Start     sim.Time
	End       sim.Time
}

// FaultRate returns faults divided by accesses, or 0 if there is no access.
func FaultRate(faults, accesses uint64) float64 {
	if accesses == 0 {
		return 0
	}

	return float64(faults) / float64(accesses)
}

// A ProcessTable is a fixed-size table of processes.
//
// A slot becomes Terminated when its process finishes and, unless recycling
// is enabled, is never handed out again. The table size therefore limits the
// number of processes admitted over a whole run.
type ProcessTable struct {
	procs           []Process
	pagesPerProcess int
	recycle         bool
}

// NewProcessTable creates a process table with all slots unused.
func NewProcessTable(
	capacity int,
	pagesPerProcess int,
	recycle bool,
) *ProcessTable {
	if capacity <= 0 {
		log.Panic("process table must have at least one slot")
	}

	t := &ProcessTable{
		procs:           make([]Process, capacity),
		pagesPerProcess: pagesPerProcess,
		recycle:         recycle,
	}

	for i := range t.procs {
		t.procs[i] = Process{
			Slot:      i,
			State:     ProcessUnused,
			PageTable: NewPageTable(pagesPerProcess),
		}
	}

	return t
}

// Len returns the number of slots.
func (t *ProcessTable) Len() int {
	return len(t.procs)
}

// PagesPerProcess returns the number of entries of each page table.
func (t *ProcessTable) PagesPerProcess() int {
	return t.pagesPerProcess
}

// Allocate finds the first free slot and marks it running for the process.
func (t *ProcessTable) Allocate(pid PID, now sim.Time) (int, error) {
	if pid == NoPID {
		log.Panic("cannot allocate a slot for NoPID")
	}

	for i := range t.procs {
		if !t.canUse(&t.procs[i]) {
			continue
		}

		p := &t.procs[i]
		p.PID = pid
		p.State = ProcessRunning
		p.Accesses = 0
		p.Faults = 0
		p.Start = now
		p.End = sim.Time{}
		p.PageTable.Clear()

		return i, nil
	}

	return -1, ErrNoCapacity
}

func (t *ProcessTable) canUse(p *Process) bool {
	if p.State == ProcessUnused {
		return true
	}

	return t.recycle && p.State == ProcessTerminated
}

// Revert undoes an allocation whose process never started.
func (t *ProcessTable) Revert(slot int) {
	p := &t.procs[slot]
	if p.State != ProcessRunning {
		log.Panicf("reverting slot %d in state %s", slot, p.State)
	}

	t.procs[slot] = Process{
		Slot:      slot,
		State:     ProcessUnused,
		PageTable: p.PageTable,
	}
	p.PageTable.Clear()
}

// FindRunning returns the slot of the running process with the PID.
func (t *ProcessTable) FindRunning(pid PID) (int, bool) {
	for i := range t.procs {
		if t.procs[i].State == ProcessRunning && t.procs[i].PID == pid {
			return i, true
		}
	}

	return -1, false
}

// Process returns the process in the slot. The returned value shares the
// page table with the table.
func (t *ProcessTable) Process(slot int) Process {
	return t.procs[slot]
}

// PageTable returns the page table of the slot.
func (t *ProcessTable) PageTable(slot int) *PageTable {
	return t.procs[slot].PageTable
}

// IsRunning tells if the slot holds a running process.
func (t *ProcessTable) IsRunning(slot int) bool {
	return slot >= 0 && slot < len(t.procs) &&
		t.procs[slot].State == ProcessRunning
}

// RecordAccess counts one memory access of the process.
func (t *ProcessTable) RecordAccess(slot int, isFault bool) {
	p := &t.procs[slot]
	if p.State != ProcessRunning {
		log.Panicf("recording access of slot %d in state %s", slot, p.State)
	}

	p.Accesses++
	if isFault {
		p.Faults++
	}
}

// Finalize marks the process terminated and returns its statistics. The page
// table of the process is cleared, as the frames it points to are released
// together with the process.
func (t *ProcessTable) Finalize(slot int, now sim.Time) (ProcessStats, error) {
	if !t.IsRunning(slot) {
		return ProcessStats{}, fmt.Errorf("finalize slot %d: %w", slot, ErrNotRunning)
	}

	p := &t.procs[slot]
	p.State = ProcessTerminated
	p.End = now
	p.PageTable.Clear()

	return ProcessStats{
		Slot:      p.Slot,
		PID:       p.PID,
		Accesses:  p.Accesses,
		Faults:    p.Faults,
		FaultRate: FaultRate(p.Faults, p.Accesses),
		Start:     p.Start,
		End:       p.End,
	}, nil
}

// NumRunning returns the number of running processes.
func (t *ProcessTable) NumRunning() int {
	n := 0
	for i := range t.procs {
		if t.procs[i].State == ProcessRunning {
			n++
		}
	}

	return n
}

// Processes returns a deep copy of all the slots.
func (t *ProcessTable) Processes() []Process {
	procs := make([]Process, len(t.procs))
	for i, p := range t.procs {
		p.PageTable = p.PageTable.Clone()
		procs[i] = p
	}

	return procs
}
