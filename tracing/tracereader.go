package tracing

import (
	"context"
	"fmt"
	"strings"

	"github.com/sarchlab/ossim/datarecording"
)

// TaskQuery selects the tasks stored by a DBTracer. Empty fields are not
// used as criteria.
type TaskQuery struct {
	// Use ID to select a single task by its ID.
	ID string

	// Use ParentID to select all the tasks that are children of a task.
	ParentID string

	// Use Kind to select all the tasks that are of a kind.
	Kind string

	// Use What to select all the tasks that do the same thing.
	What string

	// Use Location to select all the tasks that are executed at a location.
	Location string

	// Enable time range selection. Tasks that overlap with [StartTime,
	// EndTime] are selected. Times are in seconds.
	EnableTimeRange    bool
	StartTime, EndTime float64

	// Limit is the maximum number of tasks to return, 0 for all.
	Limit int
}

// Params converts the query into the parameters of a DataReader query.
func (q TaskQuery) Params() datarecording.QueryParams {
	var (
		conds []string
		args  []any
	)

	add := func(column, value string) {
		if value == "" {
			return
		}

		conds = append(conds, column+" = ?")
		args = append(args, value)
	}

	add("ID", q.ID)
	add("ParentID", q.ParentID)
	add("Kind", q.Kind)
	add("What", q.What)
	add("Location", q.Location)

	if q.EnableTimeRange {
		conds = append(conds, "EndTime >= ?", "StartTime <= ?")
		args = append(args, q.StartTime, q.EndTime)
	}

	return datarecording.QueryParams{
		Where:   strings.Join(conds, " AND "),
		Args:    args,
		OrderBy: "StartTime",
		Limit:   q.Limit,
	}
}

// ListTasks returns the tasks that satisfy the query and the number of tasks
// before the limit is applied.
func ListTasks(
	ctx context.Context,
	reader datarecording.DataReader,
	query TaskQuery,
) ([]TaskEntry, int, error) {
	reader.MapTable(TraceTableName, TaskEntry{})

	rows, total, err := reader.Query(ctx, TraceTableName, query.Params())
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]TaskEntry, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, *r.(*TaskEntry))
	}

	return tasks, total, nil
}
