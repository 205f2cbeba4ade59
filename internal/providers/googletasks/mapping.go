package googletasks

import (
	"time"

	"google.golang.org/api/tasks/v1"

	"github.com/ducphamhoang/momentum-sync/internal/core"
	"github.com/ducphamhoang/momentum-sync/internal/provider"
)

// Google Tasks status values
const (
	statusCompleted   = "completed"
	statusNeedsAction = "needsAction"
)

// taskFromNative maps a Google Tasks record to the normalized shape.
// Google Tasks has no importance concept, so inbound tasks get the
// medium default.
func taskFromNative(t *tasks.Task, userID string) core.Task {
	task := core.Task{
		UserID:       userID,
		Title:        t.Title,
		Description:  t.Notes,
		IsCompleted:  t.Status == statusCompleted,
		Importance:   core.ImportanceMedium,
		ExternalID:   t.Id,
		ExternalEtag: t.Etag,
		Source:       ProviderName,
	}

	if t.Due != "" {
		if due, err := time.Parse(time.RFC3339, t.Due); err == nil {
			task.DueDate = &due
		}
	}
	if t.Updated != "" {
		if updated, err := time.Parse(time.RFC3339, t.Updated); err == nil {
			task.UpdatedAt = updated
		}
	}

	return task
}

// nativeFromTask maps a local task to the Google Tasks schema for an
// update call. Importance is omitted; the platform has no field for it.
func nativeFromTask(t core.Task) *tasks.Task {
	native := &tasks.Task{
		Id:     t.ExternalID,
		Title:  t.Title,
		Notes:  t.Description,
		Status: statusNeedsAction,
	}
	if t.IsCompleted {
		native.Status = statusCompleted
	}
	if t.DueDate != nil {
		native.Due = t.DueDate.UTC().Format(time.RFC3339)
	}
	return native
}

// nativeFromInput maps a create request to the Google Tasks schema.
func nativeFromInput(input provider.TaskInput) *tasks.Task {
	native := &tasks.Task{
		Title:  input.Title,
		Notes:  input.Description,
		Status: statusNeedsAction,
	}
	if input.IsCompleted {
		native.Status = statusCompleted
	}
	if input.DueDate != nil {
		native.Due = input.DueDate.UTC().Format(time.RFC3339)
	}
	return native
}
