package tracing

import (
	"container/list"
	"sync"

	"github.com/sarchlab/ossim/sim"
)

type taskTimeStartEnd struct {
	start, end uint64
	completed  bool
}

// BusyTimeTracer traces the time that a domain is processing a kind of task.
// If the task processing time overlaps, this tracer only consider one
// instance of the overlapped time. Times are in nanoseconds.
type BusyTimeTracer struct {
	lock          sync.Mutex
	timeTeller    sim.TimeTeller
	filter        TaskFilter
	inflightTasks map[string]*list.Element
	taskTimes     *list.List
	busyTime      uint64
}

// NewBusyTimeTracer creates a new BusyTimeTracer
func NewBusyTimeTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *BusyTimeTracer {
	if filter == nil {
		filter = AllTasks
	}

	t := &BusyTimeTracer{
		timeTeller:    timeTeller,
		filter:        filter,
		inflightTasks: make(map[string]*list.Element),
		taskTimes:     list.New(),
	}

	return t
}

// BusyTime returns the nanoseconds that have been spent on the tasks.
func (t *BusyTimeTracer) BusyTime() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.busyTime
}

// TerminateAllTasks will mark all the tasks as completed at now.
func (t *BusyTimeTracer) TerminateAllTasks(now sim.Time) {
	t.lock.Lock()
	defer t.lock.Unlock()

	end := now.InNanos()

	for e := t.taskTimes.Front(); e != nil; e = e.Next() {
		task := e.Value.(*taskTimeStartEnd)
		if !task.completed {
			task.completed = true
			task.end = end
		}
	}

	t.inflightTasks = make(map[string]*list.Element)
	t.collapse(end)
}

// StartTask records the task start time
func (t *BusyTimeTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.CurrentTime()

	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	elem := t.taskTimes.PushBack(
		&taskTimeStartEnd{start: task.StartTime.InNanos()})
	t.inflightTasks[task.ID] = elem
}

// StepTask does nothing
func (t *BusyTimeTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask records the end of the task
func (t *BusyTimeTracer) EndTask(task Task) {
	end := t.timeTeller.CurrentTime().InNanos()

	t.lock.Lock()
	defer t.lock.Unlock()

	elem, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	taskTime := elem.Value.(*taskTimeStartEnd)
	taskTime.end = end
	taskTime.completed = true
	delete(t.inflightTasks, task.ID)

	t.collapse(end)
}

// collapse accounts the completed tasks once no incomplete task can overlap
// with them.
func (t *BusyTimeTracer) collapse(now uint64) {
	for e := t.taskTimes.Front(); e != nil; e = e.Next() {
		task := e.Value.(*taskTimeStartEnd)
		if !task.completed && task.start < now {
			return
		}
	}

	finished := make([]*taskTimeStartEnd, 0)

	var next *list.Element
	for e := t.taskTimes.Front(); e != nil; e = next {
		next = e.Next()

		task := e.Value.(*taskTimeStartEnd)
		if !task.completed {
			break
		}

		if task.end <= now {
			finished = append(finished, task)
			t.taskTimes.Remove(e)
		}
	}

	t.busyTime += mergedDuration(finished)
}

// mergedDuration sums the durations of the tasks, counting overlapped time
// once. Tasks are ordered by start time.
func mergedDuration(tasks []*taskTimeStartEnd) uint64 {
	var (
		busy       uint64
		start, end uint64
		open       bool
	)

	for _, task := range tasks {
		if open && task.start <= end {
			end = max(end, task.end)
			continue
		}

		if open {
			busy += end - start
		}

		start, end, open = task.start, task.end, true
	}

	if open {
		busy += end - start
	}

	return busy
}
