package tracing

import (
	"strings"
	"sync"

	"github.com/sarchlab/ossim/datarecording"
	"github.com/sarchlab/ossim/sim"
)

// TraceTableName is the table that the DBTracer writes into.
const TraceTableName = "trace"

// TaskEntry is one row of the trace table. Times are in simulated seconds.
type TaskEntry struct {
	ID        string
	ParentID  string
	Kind      string
	What      string
	Location  string
	StartTime float64
	EndTime   float64
	Steps     string
}

// DBTracer is a tracer that stores completed tasks through a DataRecorder.
type DBTracer struct {
	lock       sync.Mutex
	timeTeller sim.TimeTeller
	filter     TaskFilter
	backend    datarecording.DataRecorder

	tracingTasks map[string]Task
}

// NewDBTracer creates a new DBTracer and the table it writes into.
func NewDBTracer(
	timeTeller sim.TimeTeller,
	dataRecorder datarecording.DataRecorder,
	filter TaskFilter,
) *DBTracer {
	if filter == nil {
		filter = AllTasks
	}

	dataRecorder.CreateTable(TraceTableName, TaskEntry{})

	t := &DBTracer{
		timeTeller:   timeTeller,
		filter:       filter,
		backend:      dataRecorder,
		tracingTasks: make(map[string]Task),
	}

	return t
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	startingTaskMustBeValid(task)

	if !t.filter(task) {
		return
	}

	task.StartTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	t.tracingTasks[task.ID] = task
	t.lock.Unlock()
}

func startingTaskMustBeValid(task Task) {
	if task.ID == "" {
		panic("task ID must be set")
	}

	if task.Kind == "" {
		panic("task kind must be set")
	}

	if task.What == "" {
		panic("task what must be set")
	}

	if task.Where == "" {
		panic("task location must be set")
	}
}

// StepTask records a step of a task.
func (t *DBTracer) StepTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	for _, step := range task.Steps {
		step.Time = t.timeTeller.CurrentTime()
		originalTask.Steps = append(originalTask.Steps, step)
	}

	t.tracingTasks[task.ID] = originalTask
}

// EndTask marks the end of a task and writes it.
func (t *DBTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	originalTask.EndTime = t.timeTeller.CurrentTime()
	delete(t.tracingTasks, task.ID)

	t.backend.InsertData(TraceTableName, TaskEntry{
		ID:        originalTask.ID,
		ParentID:  originalTask.ParentID,
		Kind:      originalTask.Kind,
		What:      originalTask.What,
		Location:  originalTask.Where,
		StartTime: originalTask.StartTime.InSec(),
		EndTime:   originalTask.EndTime.InSec(),
		Steps:     joinSteps(originalTask.Steps),
	})
}

func joinSteps(steps []TaskStep) string {
	names := make([]string, len(steps))
	for i, step := range steps {
		names[i] = step.What
	}

	return strings.Join(names, ",")
}

// Terminate drops the unfinished tasks and flushes the backend.
func (t *DBTracer) Terminate() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.tracingTasks = make(map[string]Task)
	t.backend.Flush()
}
