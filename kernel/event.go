package kernel

import (
	"fmt"
	"time"

	"github.com/sarchlab/ossim/mem/vm"
	"github.com/sarchlab/ossim/mem/vm/mmu"
	"github.com/sarchlab/ossim/sim"
)

// Hook positions of the kernel.
var (
	// HookPosProcessAdmitted is triggered with an AdmissionEvent.
	HookPosProcessAdmitted = &sim.HookPos{Name: "ProcessAdmitted"}

	// HookPosMemoryAccess is triggered with an AccessEvent.
	HookPosMemoryAccess = &sim.HookPos{Name: "MemoryAccess"}

	// HookPosProcessTerminated is triggered with a vm.ProcessStats.
	HookPosProcessTerminated = &sim.HookPos{Name: "ProcessTerminated"}

	// HookPosSnapshot is triggered with a Snapshot once per simulated second.
	HookPosSnapshot = &sim.HookPos{Name: "Snapshot"}

	// HookPosKernelStop is triggered with the final Stats.
	HookPosKernelStop = &sim.HookPos{Name: "KernelStop"}

	// HookPosMessageDropped is triggered with the comm.Request that no
	// running process has sent.
	HookPosMessageDropped = &sim.HookPos{Name: "MessageDropped"}
)

// AdmissionEvent describes a newly admitted process.
type AdmissionEvent struct {
	Slot int
	PID  vm.PID
	Time sim.Time
}

// AccessEvent describes one serviced memory request. Time is the time at
// which the request was picked up.
type AccessEvent struct {
	Slot        int
	PID         vm.PID
	Address     uint32
	IsWrite     bool
	Time        sim.Time
	Translation mmu.Translation
	Err         error
}

// A Snapshot is a copy of the kernel state.
type Snapshot struct {
	Time      sim.Time     `json:"time"`
	Frames    []vm.Frame   `json:"frames"`
	Processes []vm.Process `json:"processes"`
	Launched  int          `json:"launched"`
	Active    int          `json:"active"`
	Total     int          `json:"total"`
	Paused    bool         `json:"paused"`
}

// StopReason tells why a run ended.
type StopReason int

// All the stop reasons.
const (
	StopCompleted StopReason = iota
	StopTimeout
	StopInterrupted
)

func (r StopReason) String() string {
	switch r {
	case StopCompleted:
		return "completed"
	case StopTimeout:
		return "timeout"
	case StopInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// Stats summarizes a run.
type Stats struct {
	Launched             int
	Active               int
	Accesses             uint64
	Faults               uint64
	FaultsPerAccess      float64
	AccessesPerSimSecond float64
	SimTime              sim.Time
	WallTime             time.Duration
	StopReason           StopReason
	Dropped              uint64
}
