// Package core defines the fundamental types and errors for Momentum Sync.
package core

import (
	"time"
)

// -----------------------------------------------------------------------------
// TASK - The unit of synchronization
// -----------------------------------------------------------------------------

// TaskID is a type-safe identifier for local tasks
type TaskID string

// Importance represents the local-only priority of a task.
// Remote platforms may not support it; it is defaulted on inbound
// mapping and omitted on outbound mapping.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// Valid reports whether i is one of the known importance levels.
func (i Importance) Valid() bool {
	switch i {
	case ImportanceLow, ImportanceMedium, ImportanceHigh:
		return true
	}
	return false
}

// SourceLocal tags tasks that have never been synced with a provider.
const SourceLocal = "local"

// Task is the unit of synchronization.
// A task with a non-empty ExternalID belongs to exactly one provider
// (Source must match). A task with an empty ExternalID has never been
// pushed and is invisible to the sync engine's pull/push matching.
type Task struct {
	ID     TaskID `json:"id"`
	UserID string `json:"user_id"`

	// Content
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	IsCompleted bool       `json:"is_completed"`
	Importance  Importance `json:"importance"`
	DueDate     *time.Time `json:"due_date,omitempty"`

	// Remote identity
	ExternalID   string `json:"external_id,omitempty"`
	ExternalEtag string `json:"external_etag,omitempty"`

	// Sync metadata
	Source       string     `json:"source"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsLinked reports whether the task has been synced with a provider
// at least once.
func (t *Task) IsLinked() bool {
	return t.ExternalID != ""
}

// NeedsPush reports whether the task has local edits that have not been
// exported: never synced, or edited since the last reconciliation.
func (t *Task) NeedsPush() bool {
	if !t.IsLinked() {
		return false
	}
	if t.LastSyncedAt == nil {
		return true
	}
	return t.UpdatedAt.After(*t.LastSyncedAt)
}

// -----------------------------------------------------------------------------
// OAUTH TOKEN - Credential for one (user, provider) pair
// -----------------------------------------------------------------------------

// OAuthToken holds the OAuth credential for one (user, provider) pair.
// At most one token exists per pair; it is the sole source of truth for
// adapter authentication.
type OAuthToken struct {
	UserID       string    `json:"user_id"`
	Provider     string    `json:"provider"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scopes       []string  `json:"scopes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ExpiresWithin reports whether the token expires within the given
// duration. Used for the refresh skew buffer.
func (t *OAuthToken) ExpiresWithin(d time.Duration) bool {
	return time.Until(t.ExpiresAt) < d
}

// -----------------------------------------------------------------------------
// SYNC RESULT - One per sync invocation
// -----------------------------------------------------------------------------

// SyncResult summarizes one reconciliation run for a (user, provider) pair.
type SyncResult struct {
	Provider  string        `json:"provider"`
	Pulled    int           `json:"pulled"`
	Pushed    int           `json:"pushed"`
	Conflicts int           `json:"conflicts"`
	Errors    []string      `json:"errors,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Success is true iff the error list is empty.
func (r *SyncResult) Success() bool {
	return len(r.Errors) == 0
}
