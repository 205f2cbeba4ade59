// Package provider defines the contract external task platforms must satisfy.
package provider

import (
	"context"
	"time"

	"github.com/ducphamhoang/momentum-sync/internal/core"
)

// TaskInput carries the content fields for creating a remote task.
// It has no id and no external identity; the provider assigns those.
type TaskInput struct {
	Title       string
	Description string
	IsCompleted bool
	DueDate     *time.Time
}

// TaskProvider is the contract every platform adapter must satisfy.
// All operations are scoped to a user and return or accept the
// normalized core.Task representation. Failures surface as
// core.ProviderError, never as the platform's native error type.
type TaskProvider interface {
	// Name returns the provider tag recorded in Task.Source.
	Name() string

	// GetTasks returns the full remote listing for the user.
	GetTasks(ctx context.Context, userID string) ([]core.Task, error)

	// CreateTask creates a remote task. The result carries a fresh
	// ExternalID and ExternalEtag.
	CreateTask(ctx context.Context, userID string, input TaskInput) (*core.Task, error)

	// UpdateTask replaces the remote task's content. The result carries
	// a new ExternalEtag distinct from the pre-update value.
	UpdateTask(ctx context.Context, userID string, task core.Task) (*core.Task, error)

	// DeleteTask removes a remote task. Deleting an already-absent
	// task is not an error.
	DeleteTask(ctx context.Context, userID, externalID string) error

	// CompleteTask marks a remote task completed.
	CompleteTask(ctx context.Context, userID, externalID string) (*core.Task, error)
}

// Registry maps provider names to adapters. It is built once at
// construction and passed by reference; it carries no mutable state
// after that, so concurrent lookups need no locking.
type Registry struct {
	providers map[string]TaskProvider
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(providers ...TaskProvider) *Registry {
	m := make(map[string]TaskProvider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the adapter for a provider name.
func (r *Registry) Get(name string) (TaskProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, core.ErrUnknownProvider
	}
	return p, nil
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
