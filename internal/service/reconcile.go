package service

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/guild-roster/internal/display"
	"github.com/Shivanand-hulikatti/guild-roster/internal/logging"
	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
	"github.com/Shivanand-hulikatti/guild-roster/internal/render"
	"github.com/Shivanand-hulikatti/guild-roster/internal/repository"
)

// SyncState is the relation between a persisted roster and its display artifact.
type SyncState int

const (
	// SyncConsistent means both the roster and a live artifact exist.
	SyncConsistent SyncState = iota
	// SyncOrphanedRecord means the roster exists but its artifact is gone.
	SyncOrphanedRecord
	// SyncGhostDisplay means an artifact exists without a roster.
	SyncGhostDisplay
	// SyncAbsent means neither exists.
	SyncAbsent
)

func (st SyncState) String() string {
	switch st {
	case SyncConsistent:
		return "consistent"
	case SyncOrphanedRecord:
		return "orphaned_record"
	case SyncGhostDisplay:
		return "ghost_display"
	default:
		return "absent"
	}
}

// classify derives the sync state. An invalidated artifact no longer mirrors
// anything, so a roster behind it counts as orphaned. Artifacts published
// for another guild are ignored.
func classify(r *model.Roster, a *display.Artifact, guildID string) SyncState {
	if a != nil && a.GuildID != "" && a.GuildID != guildID {
		a = nil
	}
	switch {
	case r != nil && a != nil && a.State == display.StateActive:
		return SyncConsistent
	case r != nil:
		return SyncOrphanedRecord
	case a != nil:
		return SyncGhostDisplay
	default:
		return SyncAbsent
	}
}

// reconcile loads the roster for an operation and heals any divergence from
// the display surface. It returns the roster only in the consistent state;
// every other state yields a not-found error.
func (s *RosterService) reconcile(ctx context.Context, eventID, guildID string) (*model.Roster, error) {
	log := logging.FromContext(ctx)

	r, err := s.rosters.Load(ctx, eventID, guildID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Error("failed to load roster", "error", err)
			return nil, internal(err)
		}
		r = nil
	}
	a, err := s.display.Fetch(ctx, eventID)
	if err != nil {
		if !errors.Is(err, display.ErrArtifactMissing) {
			log.Error("failed to fetch event message", "error", err)
			return nil, internal(err)
		}
		a = nil
	}

	state := classify(r, a, guildID)
	switch state {
	case SyncConsistent:
		return r, nil

	case SyncOrphanedRecord:
		log.Warn("event message missing, deleting orphaned roster")
		if err := s.rosters.Delete(ctx, eventID, guildID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			log.Error("failed to delete orphaned roster", "error", err)
		}
		return nil, &Error{Kind: KindNotFound, Message: "Event message no longer exists", Err: display.ErrArtifactMissing}

	case SyncGhostDisplay:
		if a.State != display.StateInvalidated {
			log.Warn("roster missing, invalidating event message")
			if err := s.display.Invalidate(ctx, eventID, render.NoLongerExists); err != nil {
				log.Error("failed to invalidate event message", "error", err)
			}
		}
		return nil, notFoundf("Event doesn't exist")

	default:
		return nil, notFoundf("Event doesn't exist")
	}
}
