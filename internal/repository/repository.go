// Package repository defines the persistence contracts for rosters and
// composition templates. Implementations live in the postgres and sqlite
// subpackages.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
)

// ErrNotFound is returned when a requested roster or template does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when a roster or template key is taken.
var ErrAlreadyExists = errors.New("already exists")

// ErrVersionConflict is returned when a roster changed between read and write.
var ErrVersionConflict = errors.New("roster was modified concurrently")

// MutateFunc changes a roster in place. Returning an error aborts the update
// and leaves the stored roster untouched.
type MutateFunc func(r *model.Roster) error

// RosterStore persists one roster document per event.
//
// Update must serialise concurrent calls for the same event: two callers can
// never both observe the same version and both commit.
type RosterStore interface {
	Create(ctx context.Context, r *model.Roster) error
	Load(ctx context.Context, eventID, guildID string) (*model.Roster, error)
	// Update loads the roster, applies fn and saves the result atomically,
	// returning the committed roster with its new version.
	Update(ctx context.Context, eventID, guildID string, fn MutateFunc) (*model.Roster, error)
	Delete(ctx context.Context, eventID, guildID string) error
	// ListByOccupant returns every roster in the guild where participant holds a slot.
	ListByOccupant(ctx context.Context, guildID, participant string) ([]*model.Roster, error)
	// DeleteStartedBefore removes rosters starting before cutoff and returns their event ids.
	DeleteStartedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	Close()
}

// TemplateProvider supplies composition templates by name within a guild.
type TemplateProvider interface {
	GetTemplate(ctx context.Context, name, guildID string) (*model.Template, error)
	// PutTemplate stores a new template; ErrAlreadyExists if the name is taken.
	PutTemplate(ctx context.Context, t *model.Template) error
}

// Apply runs fn on a copy of current and checks the result still has the
// same slots and unique occupants. The returned roster carries the next
// version and updated timestamp; current is never modified.
func Apply(current *model.Roster, fn MutateFunc, now time.Time) (*model.Roster, error) {
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if next.EventID != current.EventID || next.GuildID != current.GuildID {
		return nil, fmt.Errorf("roster %s: identity cannot change", current.EventID)
	}
	if !next.SameSlots(current) {
		return nil, fmt.Errorf("roster %s: slot composition cannot change", current.EventID)
	}
	if err := next.CheckInvariants(); err != nil {
		return nil, err
	}
	next.Version = current.Version + 1
	next.UpdatedAt = now.UTC()
	return next, nil
}
