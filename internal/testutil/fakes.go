// Package testutil provides shared fakes for tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/ducphamhoang/momentum-sync/internal/core"
	"github.com/ducphamhoang/momentum-sync/internal/provider"
)

// FakeProvider implements provider.TaskProvider with function fields.
// Unset functions return zero values.
type FakeProvider struct {
	ProviderName     string
	GetTasksFunc     func(ctx context.Context, userID string) ([]core.Task, error)
	CreateTaskFunc   func(ctx context.Context, userID string, input provider.TaskInput) (*core.Task, error)
	UpdateTaskFunc   func(ctx context.Context, userID string, task core.Task) (*core.Task, error)
	DeleteTaskFunc   func(ctx context.Context, userID, externalID string) error
	CompleteTaskFunc func(ctx context.Context, userID, externalID string) (*core.Task, error)

	mu      sync.Mutex
	updates []core.Task
	deletes []string
}

// Name returns the provider tag.
func (f *FakeProvider) Name() string {
	if f.ProviderName == "" {
		return "fake"
	}
	return f.ProviderName
}

// GetTasks calls the fake function if set.
func (f *FakeProvider) GetTasks(ctx context.Context, userID string) ([]core.Task, error) {
	if f.GetTasksFunc != nil {
		return f.GetTasksFunc(ctx, userID)
	}
	return nil, nil
}

// CreateTask calls the fake function if set.
func (f *FakeProvider) CreateTask(ctx context.Context, userID string, input provider.TaskInput) (*core.Task, error) {
	if f.CreateTaskFunc != nil {
		return f.CreateTaskFunc(ctx, userID, input)
	}
	return nil, nil
}

// UpdateTask records the call, then delegates to the fake function if
// set; otherwise it echoes the task back with a rotated etag.
func (f *FakeProvider) UpdateTask(ctx context.Context, userID string, task core.Task) (*core.Task, error) {
	f.mu.Lock()
	f.updates = append(f.updates, task)
	n := len(f.updates)
	f.mu.Unlock()

	if f.UpdateTaskFunc != nil {
		return f.UpdateTaskFunc(ctx, userID, task)
	}

	updated := task
	updated.ExternalEtag = fmt.Sprintf("%s-r%d", task.ExternalEtag, n)
	return &updated, nil
}

// DeleteTask records the call, then delegates to the fake function if set.
func (f *FakeProvider) DeleteTask(ctx context.Context, userID, externalID string) error {
	f.mu.Lock()
	f.deletes = append(f.deletes, externalID)
	f.mu.Unlock()

	if f.DeleteTaskFunc != nil {
		return f.DeleteTaskFunc(ctx, userID, externalID)
	}
	return nil
}

// CompleteTask calls the fake function if set.
func (f *FakeProvider) CompleteTask(ctx context.Context, userID, externalID string) (*core.Task, error) {
	if f.CompleteTaskFunc != nil {
		return f.CompleteTaskFunc(ctx, userID, externalID)
	}
	return nil, nil
}

// Updates returns the tasks passed to UpdateTask so far.
func (f *FakeProvider) Updates() []core.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Task(nil), f.updates...)
}

// Deletes returns the external ids passed to DeleteTask so far.
func (f *FakeProvider) Deletes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

// MemoryTokenStore is an in-memory auth.TokenStore.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*core.OAuthToken

	PutErr error // returned by Put when set
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]*core.OAuthToken)}
}

func (s *MemoryTokenStore) key(userID, provider string) string {
	return userID + "_" + provider
}

// Get returns the stored token or core.ErrTokenNotFound.
func (s *MemoryTokenStore) Get(ctx context.Context, userID, provider string) (*core.OAuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[s.key(userID, provider)]
	if !ok {
		return nil, core.ErrTokenNotFound
	}
	copied := *tok
	return &copied, nil
}

// Put stores a copy of the token.
func (s *MemoryTokenStore) Put(ctx context.Context, token *core.OAuthToken) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *token
	s.tokens[s.key(token.UserID, token.Provider)] = &copied
	return nil
}

// Delete removes the token if present.
func (s *MemoryTokenStore) Delete(ctx context.Context, userID, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, s.key(userID, provider))
	return nil
}
