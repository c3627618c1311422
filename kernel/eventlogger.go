package kernel

import (
	"context"
	"log/slog"

	"github.com/sarchlab/ossim/comm"
	"github.com/sarchlab/ossim/mem/vm"
	"github.com/sarchlab/ossim/sim"
)

// EventLogger is a hook that logs what the kernel does. Admissions,
// terminations and the end of the run are logged at the info level. Every
// memory access is logged at the debug level.
type EventLogger struct {
	sim.LogHookBase
}

// NewEventLogger creates a new EventLogger.
func NewEventLogger(logger *slog.Logger) *EventLogger {
	return &EventLogger{LogHookBase: sim.NewLogHookBase(logger)}
}

// Func logs the event.
func (l *EventLogger) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case HookPosProcessAdmitted:
		e := ctx.Item.(AdmissionEvent)
		l.Info("process created",
			"slot", e.Slot, "pid", e.PID, "time", e.Time)
	case HookPosMemoryAccess:
		l.logAccess(ctx.Item.(AccessEvent))
	case HookPosProcessTerminated:
		l.logTermination(ctx.Item.(vm.ProcessStats))
	case HookPosMessageDropped:
		req := ctx.Item.(comm.Request)
		l.Warn("dropping message from unknown process",
			"pid", req.PID, "request", req.String())
	case HookPosKernelStop:
		l.logStats(ctx.Item.(Stats))
	}
}

func (l *EventLogger) logAccess(e AccessEvent) {
	if !l.Enabled(context.Background(), slog.LevelDebug) && e.Err == nil {
		return
	}

	op := "read"
	if e.IsWrite {
		op = "write"
	}

	l.Debug("requesting "+op,
		"slot", e.Slot, "pid", e.PID, "address", e.Address, "time", e.Time)

	if e.Err != nil {
		l.Warn("memory request rejected",
			"slot", e.Slot, "address", e.Address, "error", e.Err)

		return
	}

	tr := e.Translation
	if tr.Hit {
		what := "giving data to process"
		if e.IsWrite {
			what = "writing data to frame"
		}

		l.Debug("address in frame, "+what,
			"address", e.Address, "frame", tr.Frame)

		return
	}

	l.Debug("address is not in a frame, pagefault", "address", e.Address)

	if tr.Evicted != nil {
		l.Debug("clearing frame and swapping in",
			"frame", tr.Frame, "slot", e.Slot, "page", tr.Page,
			"victim_pid", tr.Evicted.Owner, "victim_page", tr.Evicted.Page)

		if tr.Evicted.Dirty {
			l.Debug("dirty bit of frame set, adding additional time "+
				"to the clock", "frame", tr.Frame)
		}
	}
}

func (l *EventLogger) logTermination(s vm.ProcessStats) {
	l.Info("process terminating",
		"slot", s.Slot,
		"pid", s.PID,
		"time", s.End,
		"accesses", s.Accesses,
		"faults", s.Faults,
		"fault_rate", s.FaultRate)
}

func (l *EventLogger) logStats(s Stats) {
	l.Info("simulation stopped",
		"reason", s.StopReason.String(),
		"processes", s.Launched,
		"accesses", s.Accesses,
		"faults", s.Faults,
		"accesses_per_second", s.AccessesPerSimSecond,
		"faults_per_access", s.FaultsPerAccess,
		"sim_time", s.SimTime,
		"wall_time", s.WallTime,
		"dropped", s.Dropped)
}
