package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/ossim/kernel"
	"github.com/sarchlab/ossim/sim"
)

// A ProgressBar is a tracker of the progress
type ProgressBar struct {
	sync.Mutex
	ID         string
	Name       string
	StartTime  time.Time
	Total      uint64
	Finished   uint64
	InProgress uint64
}

type progressBarRsp struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

func (b *ProgressBar) status() progressBarRsp {
	b.Lock()
	defer b.Unlock()

	return progressBarRsp{
		ID:         b.ID,
		Name:       b.Name,
		StartTime:  b.StartTime,
		Total:      b.Total,
		Finished:   b.Finished,
		InProgress: b.InProgress,
	}
}

// IncrementInProgress adds the number of in-progress element.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress += amount
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// MoveInProgressToFinished reduces the number of in progress item by a certain
// amount and increase the finished item by the same amount.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress -= amount
	b.Finished += amount
}

// ProcessProgress is a kernel hook that moves a progress bar as processes
// are admitted and terminated.
type ProcessProgress struct {
	bar *ProgressBar
}

// NewProcessProgress creates a hook that drives the given bar.
func NewProcessProgress(bar *ProgressBar) *ProcessProgress {
	return &ProcessProgress{bar: bar}
}

// Func updates the bar.
func (p *ProcessProgress) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case kernel.HookPosProcessAdmitted:
		p.bar.IncrementInProgress(1)
	case kernel.HookPosProcessTerminated:
		p.bar.MoveInProgressToFinished(1)
	}
}
