package tracing

import (
	"context"

	"github.com/sarchlab/powerlock/datarecording"
	"github.com/sarchlab/powerlock/timing"
)

// DBTraceReader reads back the tasks and milestones that a DBTracer recorded.
type DBTraceReader struct {
	reader datarecording.DataReader
}

// NewDBTraceReader creates a DBTraceReader on top of a DataReader.
func NewDBTraceReader(reader datarecording.DataReader) *DBTraceReader {
	reader.MapTable("trace", taskTableEntry{})
	reader.MapTable("trace_milestones", milestoneTableEntry{})

	return &DBTraceReader{reader: reader}
}

// Tasks returns the tasks recorded at a location, ordered by start time. An
// empty location returns the tasks of every location.
func (r *DBTraceReader) Tasks(ctx context.Context, where string) (
	[]Task, error,
) {
	results, _, err := r.reader.Query(ctx, "trace",
		atLocation(where, "StartTime, ID"))
	if err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(results))
	for _, result := range results {
		entry := result.(*taskTableEntry)
		tasks = append(tasks, Task{
			ID:        entry.ID,
			ParentID:  entry.ParentID,
			Kind:      entry.Kind,
			What:      entry.What,
			Where:     entry.Location,
			Detail:    entry.Detail,
			StartTime: timing.VTime(entry.StartTime),
			EndTime:   timing.VTime(entry.EndTime),
		})
	}

	return tasks, nil
}

// Milestones returns the milestones recorded at a location, in time order.
func (r *DBTraceReader) Milestones(ctx context.Context, where string) (
	[]Milestone, error,
) {
	results, _, err := r.reader.Query(ctx, "trace_milestones",
		atLocation(where, "Time, ID"))
	if err != nil {
		return nil, err
	}

	milestones := make([]Milestone, 0, len(results))
	for _, result := range results {
		entry := result.(*milestoneTableEntry)
		milestones = append(milestones, Milestone{
			ID:    entry.ID,
			Kind:  entry.Kind,
			Where: entry.Location,
			Time:  timing.VTime(entry.Time),
			Count: entry.Count,
		})
	}

	return milestones, nil
}

// Close closes the underlying reader.
func (r *DBTraceReader) Close() error {
	return r.reader.Close()
}

func atLocation(where, orderBy string) datarecording.QueryParams {
	params := datarecording.QueryParams{OrderBy: orderBy}
	if where != "" {
		params.Where = "Location = ?"
		params.Args = []any{where}
	}

	return params
}
