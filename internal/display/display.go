// Package display models the rendered, independently mutable artifact that
// mirrors a roster for humans (a chat message, a web card). The roster store
// stays the source of truth; the display is a cache kept consistent with it.
package display

import (
	"context"
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
)

// ErrArtifactMissing is returned when the artifact for an event does not exist.
var ErrArtifactMissing = errors.New("event message no longer exists")

// ErrArtifactInvalidated is returned when updating an artifact that already
// carries a "no longer exists" notice.
var ErrArtifactInvalidated = errors.New("event message was invalidated")

// State of a published artifact.
type State string

const (
	StateActive      State = "active"
	StateInvalidated State = "invalidated"
)

// Artifact is the display surface's copy of a roster view.
type Artifact struct {
	EventID   string      `json:"event_id"`
	GuildID   string      `json:"guild_id"`
	State     State       `json:"state"`
	Version   int64       `json:"version"`
	View      *model.View `json:"view,omitempty"`
	Notice    string      `json:"notice,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// EventKind classifies a change broadcast by the surface.
type EventKind string

const (
	EventPublished   EventKind = "published"
	EventUpdated     EventKind = "updated"
	EventInvalidated EventKind = "invalidated"
	EventDeleted     EventKind = "deleted"
)

// Event is broadcast to watchers whenever an artifact changes.
type Event struct {
	Kind    EventKind   `json:"kind"`
	EventID string      `json:"event_id"`
	View    *model.View `json:"view,omitempty"`
	Notice  string      `json:"notice,omitempty"`
}

// Surface is the display contract the roster engine drives.
type Surface interface {
	// Publish creates the artifact for a new roster.
	Publish(ctx context.Context, view *model.View) error
	// Fetch returns the artifact or ErrArtifactMissing.
	Fetch(ctx context.Context, eventID string) (*Artifact, error)
	// Update replaces the rendered view. Views older than the one already
	// shown are ignored. ErrArtifactMissing if the artifact is gone.
	Update(ctx context.Context, view *model.View) error
	// Invalidate replaces the content with notice and strips affordances.
	Invalidate(ctx context.Context, eventID, notice string) error
	// Delete removes the artifact. Deleting a missing artifact is not an error.
	Delete(ctx context.Context, eventID string) error
}

// Watcher streams artifact changes for one event.
type Watcher interface {
	Watch(ctx context.Context, eventID string) (<-chan Event, error)
}
