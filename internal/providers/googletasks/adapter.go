// Package googletasks implements the TaskProvider contract for the
// Google Tasks platform.
package googletasks

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"

	"github.com/ducphamhoang/momentum-sync/internal/core"
	"github.com/ducphamhoang/momentum-sync/internal/provider"
)

// ProviderName is the tag recorded in Task.Source for this platform.
const ProviderName = "google_tasks"

// defaultTaskList is Google Tasks' alias for the user's primary list.
const defaultTaskList = "@default"

// maxRetries bounds rate-limit retries per call.
const maxRetries = 3

// TokenProvider supplies valid bearer tokens. The credential manager
// satisfies this.
type TokenProvider interface {
	ValidAccessToken(ctx context.Context, userID, provider string) (string, error)
}

// Adapter talks to the Google Tasks API and maps its native task
// schema to the normalized core.Task shape. Transport and auth
// failures surface as core.ProviderError, never as googleapi errors.
type Adapter struct {
	creds     TokenProvider
	taskList  string
	retryBase time.Duration
	opts      []option.ClientOption
}

// Option customizes the adapter.
type Option func(*Adapter)

// WithTaskList syncs against a specific task list instead of @default.
func WithTaskList(id string) Option {
	return func(a *Adapter) { a.taskList = id }
}

// WithClientOptions appends Google API client options (test endpoints).
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(a *Adapter) { a.opts = append(a.opts, opts...) }
}

// New creates a Google Tasks adapter.
func New(creds TokenProvider, opts ...Option) *Adapter {
	a := &Adapter{
		creds:     creds,
		taskList:  defaultTaskList,
		retryBase: time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the provider tag.
func (a *Adapter) Name() string {
	return ProviderName
}

// service builds an API client authenticated for the user.
func (a *Adapter) service(ctx context.Context, userID string) (*tasks.Service, error) {
	accessToken, err := a.creds.ValidAccessToken(ctx, userID, ProviderName)
	if err != nil {
		return nil, err
	}

	opts := append([]option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: accessToken,
			TokenType:   "Bearer",
		})),
	}, a.opts...)

	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, core.NewConnectionError(ProviderName, fmt.Errorf("create tasks client: %w", err))
	}
	return svc, nil
}

// GetTasks returns the full remote listing, following pagination.
func (a *Adapter) GetTasks(ctx context.Context, userID string) ([]core.Task, error) {
	svc, err := a.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	var result []core.Task
	pageToken := ""
	for {
		var page *tasks.Tasks
		err := a.withRetry(ctx, func() error {
			var callErr error
			call := svc.Tasks.List(a.taskList).
				ShowCompleted(true).
				ShowHidden(true).
				MaxResults(100).
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			page, callErr = call.Do()
			return callErr
		})
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Deleted {
				continue
			}
			result = append(result, taskFromNative(item, userID))
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return result, nil
}

// CreateTask creates a remote task and returns it with its fresh
// external identity.
func (a *Adapter) CreateTask(ctx context.Context, userID string, input provider.TaskInput) (*core.Task, error) {
	svc, err := a.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	native := nativeFromInput(input)
	var created *tasks.Task
	err = a.withRetry(ctx, func() error {
		var callErr error
		created, callErr = svc.Tasks.Insert(a.taskList, native).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	task := taskFromNative(created, userID)
	return &task, nil
}

// UpdateTask replaces the remote task's content. The returned task
// carries the rotated etag.
func (a *Adapter) UpdateTask(ctx context.Context, userID string, task core.Task) (*core.Task, error) {
	svc, err := a.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	native := nativeFromTask(task)
	var updated *tasks.Task
	err = a.withRetry(ctx, func() error {
		var callErr error
		updated, callErr = svc.Tasks.Update(a.taskList, native.Id, native).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	mapped := taskFromNative(updated, userID)
	return &mapped, nil
}

// DeleteTask removes a remote task. An already-absent task is success.
func (a *Adapter) DeleteTask(ctx context.Context, userID, externalID string) error {
	svc, err := a.service(ctx, userID)
	if err != nil {
		return err
	}

	err = a.withRetry(ctx, func() error {
		return svc.Tasks.Delete(a.taskList, externalID).Context(ctx).Do()
	})
	if core.IsNotFoundError(err) {
		return nil
	}
	return err
}

// CompleteTask marks the remote task completed.
func (a *Adapter) CompleteTask(ctx context.Context, userID, externalID string) (*core.Task, error) {
	svc, err := a.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	patch := &tasks.Task{Status: statusCompleted}
	var updated *tasks.Task
	err = a.withRetry(ctx, func() error {
		var callErr error
		updated, callErr = svc.Tasks.Patch(a.taskList, externalID, patch).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	mapped := taskFromNative(updated, userID)
	return &mapped, nil
}
