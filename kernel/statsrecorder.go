package kernel

import (
	"github.com/sarchlab/ossim/datarecording"
	"github.com/sarchlab/ossim/mem/vm"
	"github.com/sarchlab/ossim/sim"
)

// Tables written by the StatsRecorder.
const (
	ProcessStatsTable = "process_stats"
	RunSummaryTable   = "run_summary"
)

// ProcessStatsEntry is a row of the process statistics table. Times are in
// simulated seconds.
type ProcessStatsEntry struct {
	RunID     string
	Slot      int
	PID       uint32
	Accesses  uint64
	Faults    uint64
	FaultRate float64
	StartTime float64
	EndTime   float64
}

// RunSummaryEntry is a row of the run summary table.
type RunSummaryEntry struct {
	RunID                string
	StopReason           string
	Launched             int
	Active               int
	Accesses             uint64
	Faults               uint64
	FaultsPerAccess      float64
	AccessesPerSimSecond float64
	SimTime              float64
	WallTime             float64
	Dropped              uint64
}

// StatsRecorder is a hook that stores the statistics of every terminated
// process and the summary of the run.
type StatsRecorder struct {
	runID    string
	recorder datarecording.DataRecorder
}

// NewStatsRecorder creates the tables and returns the hook.
func NewStatsRecorder(
	recorder datarecording.DataRecorder,
	runID string,
) *StatsRecorder {
	recorder.CreateTable(ProcessStatsTable, ProcessStatsEntry{})
	recorder.CreateTable(RunSummaryTable, RunSummaryEntry{})

	return &StatsRecorder{
		runID:    runID,
		recorder: recorder,
	}
}

// Func records the statistics.
func (r *StatsRecorder) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case HookPosProcessTerminated:
		r.recordProcess(ctx.Item.(vm.ProcessStats))
	case HookPosKernelStop:
		r.recordRun(ctx.Item.(Stats))
	}
}

func (r *StatsRecorder) recordProcess(s vm.ProcessStats) {
	r.recorder.InsertData(ProcessStatsTable, ProcessStatsEntry{
		RunID:     r.runID,
		Slot:      s.Slot,
		PID:       uint32(s.PID),
		Accesses:  s.Accesses,
		Faults:    s.Faults,
		FaultRate: s.FaultRate,
		StartTime: s.Start.InSec(),
		EndTime:   s.End.InSec(),
	})
}

func (r *StatsRecorder) recordRun(s Stats) {
	r.recorder.InsertData(RunSummaryTable, RunSummaryEntry{
		RunID:                r.runID,
		StopReason:           s.StopReason.String(),
		Launched:             s.Launched,
		Active:               s.Active,
		Accesses:             s.Accesses,
		Faults:               s.Faults,
		FaultsPerAccess:      s.FaultsPerAccess,
		AccessesPerSimSecond: s.AccessesPerSimSecond,
		SimTime:              s.SimTime.InSec(),
		WallTime:             s.WallTime.Seconds(),
		Dropped:              s.Dropped,
	})
	r.recorder.Flush()
}
