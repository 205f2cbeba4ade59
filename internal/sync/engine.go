// Package sync drives the two-phase reconciliation between local tasks
// and an external task platform.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/ducphamhoang/momentum-sync/internal/core"
	"github.com/ducphamhoang/momentum-sync/internal/logging"
	"github.com/ducphamhoang/momentum-sync/internal/provider"
	"github.com/ducphamhoang/momentum-sync/internal/storage"
)

// LocalStore is the local task persistence the engine depends on.
// It is assumed to persist exactly what it is given and to generate
// id/createdAt on create.
type LocalStore interface {
	GetTasks(ctx context.Context, userID string) ([]core.Task, error)
	CreateTask(ctx context.Context, userID string, input storage.TaskInput) (*core.Task, error)
	UpdateTask(ctx context.Context, userID string, id core.TaskID, patch storage.TaskPatch) (*core.Task, error)
	DeleteTask(ctx context.Context, userID string, id core.TaskID) error
}

// Engine reconciles a user's local tasks with an external platform.
// Each SyncUserTasks invocation is a self-contained sequence of awaited
// calls with no shared mutable state, so independent (user, provider)
// pairs may be synced concurrently.
type Engine struct {
	store    LocalStore
	registry *provider.Registry
}

// New creates a sync engine over the given store and provider registry.
func New(store LocalStore, registry *provider.Registry) *Engine {
	return &Engine{store: store, registry: registry}
}

// SyncUserTasks runs one pull-then-push reconciliation for a
// (user, provider) pair. Authentication and connection failures abort
// with a single descriptive error and zero counts; everything else is
// recorded per task without stopping the run.
func (e *Engine) SyncUserTasks(ctx context.Context, userID, providerName string) (*core.SyncResult, error) {
	p, err := e.registry.Get(providerName)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", providerName, err)
	}

	start := time.Now()
	result := &core.SyncResult{Provider: providerName}
	log := logging.WithFields(map[string]interface{}{
		"user":     userID,
		"provider": providerName,
	})

	pullOK := true
	remote, err := p.GetTasks(ctx, userID)
	if err != nil {
		switch {
		case core.IsAuthError(err):
			result.Errors = []string{fmt.Sprintf("authentication failed; reconnect your %s account: %v", providerName, err)}
			result.Duration = time.Since(start)
			return result, nil
		case core.IsConnectionError(err):
			result.Errors = []string{fmt.Sprintf("could not reach %s: %v", providerName, err)}
			result.Duration = time.Since(start)
			return result, nil
		default:
			// Rate limiting or an unclassified failure: the pull is
			// skipped, the push may still make progress.
			result.Errors = append(result.Errors, fmt.Sprintf("fetch remote tasks: %v", err))
			pullOK = false
		}
	}

	if pullOK {
		if err := e.pull(ctx, userID, p, remote, result); err != nil {
			result.Errors = []string{err.Error()}
			result.Duration = time.Since(start)
			return result, nil
		}
	}

	e.push(ctx, userID, p, result)

	result.Duration = time.Since(start)
	log.Info("sync finished: pulled=%d pushed=%d conflicts=%d errors=%d",
		result.Pulled, result.Pushed, result.Conflicts, len(result.Errors))

	return result, nil
}

// pull imports remote state: creates tasks unseen locally, reconciles
// etag mismatches, and propagates provider-initiated deletions by
// set-difference. A non-nil return aborts the sync (local store is
// unusable).
func (e *Engine) pull(ctx context.Context, userID string, p provider.TaskProvider, remote []core.Task, result *core.SyncResult) error {
	locals, err := e.localsForProvider(ctx, userID, p.Name())
	if err != nil {
		return err
	}

	// Index linked local tasks by external id. Entries still present
	// after the loop have no remote counterpart anymore.
	index := make(map[string]core.Task, len(locals))
	for _, task := range locals {
		index[task.ExternalID] = task
	}

	now := time.Now().UTC()
	for _, rt := range remote {
		if rt.ExternalID == "" {
			continue
		}

		local, seen := index[rt.ExternalID]
		if !seen {
			if err := e.materialize(ctx, userID, rt, now); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("import task %q: %v", rt.Title, err))
				continue
			}
			result.Pulled++
			continue
		}
		delete(index, rt.ExternalID)

		// Equal etags mean nothing changed remotely.
		if local.ExternalEtag == rt.ExternalEtag {
			continue
		}

		if err := e.resolveConflict(ctx, userID, local, rt, now, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("reconcile task %s: %v", local.ID, err))
		}
	}

	// Whatever remains locally was deleted at the provider.
	for _, leftover := range index {
		if err := e.store.DeleteTask(ctx, userID, leftover.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("delete task %s: %v", leftover.ID, err))
		}
	}

	return nil
}

// materialize creates a local copy of a remote task. The remote edit
// timestamp is preserved so the new row does not read as a local edit.
func (e *Engine) materialize(ctx context.Context, userID string, rt core.Task, now time.Time) error {
	updatedAt := rt.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err := e.store.CreateTask(ctx, userID, storage.TaskInput{
		Title:        rt.Title,
		Description:  rt.Description,
		IsCompleted:  rt.IsCompleted,
		Importance:   rt.Importance,
		DueDate:      rt.DueDate,
		ExternalID:   rt.ExternalID,
		ExternalEtag: rt.ExternalEtag,
		Source:       rt.Source,
		LastSyncedAt: &now,
		UpdatedAt:    &updatedAt,
	})
	return err
}

// resolveConflict reconciles a local and a remote version of the same
// task by comparing edit timestamps. Ties go to the remote copy, which
// is treated as the source of truth.
func (e *Engine) resolveConflict(ctx context.Context, userID string, local, rt core.Task, now time.Time, result *core.SyncResult) error {
	if !rt.UpdatedAt.Before(local.UpdatedAt) {
		// Remote wins: overwrite content, keep local identity.
		// Importance is local-only and left alone. A remote copy
		// without a due date clears the local one.
		patch := storage.TaskPatch{
			Title:        &rt.Title,
			Description:  &rt.Description,
			IsCompleted:  &rt.IsCompleted,
			DueDate:      rt.DueDate,
			ClearDueDate: rt.DueDate == nil,
			ExternalEtag: &rt.ExternalEtag,
			LastSyncedAt: &now,
			UpdatedAt:    &rt.UpdatedAt,
		}
		if _, err := e.store.UpdateTask(ctx, userID, local.ID, patch); err != nil {
			return err
		}
		result.Pulled++
		result.Conflicts++
		return nil
	}

	// Local wins: content untouched, only sync bookkeeping advances.
	patch := storage.TaskPatch{
		ExternalEtag: &rt.ExternalEtag,
		LastSyncedAt: &now,
	}
	_, err := e.store.UpdateTask(ctx, userID, local.ID, patch)
	return err
}

// push exports local edits: linked tasks never synced or edited since
// their last reconciliation. One task's failure does not stop the
// rest, but auth/connection failures end the phase.
func (e *Engine) push(ctx context.Context, userID string, p provider.TaskProvider, result *core.SyncResult) {
	locals, err := e.localsForProvider(ctx, userID, p.Name())
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return
	}

	for _, task := range locals {
		if !task.NeedsPush() {
			continue
		}

		updated, err := p.UpdateTask(ctx, userID, task)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("push task %s: %v", task.ID, err))
			if core.IsAuthError(err) || core.IsConnectionError(err) {
				return
			}
			continue
		}

		now := time.Now().UTC()
		patch := storage.TaskPatch{
			ExternalEtag: &updated.ExternalEtag,
			LastSyncedAt: &now,
		}
		if _, err := e.store.UpdateTask(ctx, userID, task.ID, patch); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("record push of task %s: %v", task.ID, err))
			continue
		}
		result.Pushed++
	}
}

// localsForProvider returns the user's linked tasks owned by the given
// provider. Tasks from other providers, and local-only tasks without
// an external id, are invisible to the engine.
func (e *Engine) localsForProvider(ctx context.Context, userID, providerName string) ([]core.Task, error) {
	all, err := e.store.GetTasks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load local tasks: %w", err)
	}

	var matched []core.Task
	for _, task := range all {
		if task.Source == providerName && task.IsLinked() {
			matched = append(matched, task)
		}
	}
	return matched, nil
}
