// Package service implements the roster assignment engine: roster creation,
// slot claims and releases, bulk operations, the lock window and the
// reconciliation between the roster store and the display surface.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/guild-roster/internal/display"
	"github.com/Shivanand-hulikatti/guild-roster/internal/logging"
	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
	"github.com/Shivanand-hulikatti/guild-roster/internal/render"
	"github.com/Shivanand-hulikatti/guild-roster/internal/repository"
)

// Outcome tells the caller what an operation did.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeAssigned  Outcome = "assigned"
	OutcomeSwitched  Outcome = "switched"
	OutcomeReleased  Outcome = "released"
	OutcomeCleared   Outcome = "cleared"
	OutcomePruned    Outcome = "pruned"
	OutcomeAbsent    Outcome = "absent"
	OutcomeAlerted   Outcome = "alerted"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeEdited    Outcome = "edited"
	OutcomeViewed    Outcome = "viewed"
	// OutcomeUnchanged reports a bulk operation that had nothing to do.
	OutcomeUnchanged Outcome = "unchanged"
)

// Result is the success value of every engine operation. Affected lists the
// participants touched by destructive or bulk operations so the caller can
// notify them.
type Result struct {
	Outcome  Outcome       `json:"outcome"`
	Message  string        `json:"message"`
	Roster   *model.Roster `json:"roster,omitempty"`
	View     *model.View   `json:"view,omitempty"`
	Affected []string      `json:"affected,omitempty"`
}

// RosterService is the roster assignment engine.
type RosterService struct {
	rosters   repository.RosterStore
	templates repository.TemplateProvider
	display   display.Surface
	now       func() time.Time

	blockClaimsWhenLocked bool
}

// Option configures a RosterService.
type Option func(*RosterService)

// WithClock overrides the time source used for lock checks and expiry.
func WithClock(now func() time.Time) Option {
	return func(s *RosterService) { s.now = now }
}

// WithClaimBlocking makes an engaged lock refuse fresh claims too.
func WithClaimBlocking(block bool) Option {
	return func(s *RosterService) { s.blockClaimsWhenLocked = block }
}

// NewRosterService constructs the engine with its collaborators.
func NewRosterService(
	rosters repository.RosterStore,
	templates repository.TemplateProvider,
	surface display.Surface,
	opts ...Option,
) *RosterService {
	s := &RosterService{
		rosters:   rosters,
		templates: templates,
		display:   surface,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// errNoChange aborts an update that would not change anything, so the
// version is not bumped and the display is left alone.
var errNoChange = errors.New("no change")

// update runs fn as a transactional read-modify-write and maps store
// failures to engine errors.
func (s *RosterService) update(ctx context.Context, eventID, guildID string, fn repository.MutateFunc) (*model.Roster, error) {
	r, err := s.rosters.Update(ctx, eventID, guildID, fn)
	if err == nil {
		return r, nil
	}
	var engineErr *Error
	switch {
	case errors.As(err, &engineErr), errors.Is(err, errNoChange):
		return nil, err
	case errors.Is(err, repository.ErrNotFound):
		return nil, notFoundf("Event doesn't exist")
	case errors.Is(err, repository.ErrVersionConflict):
		return nil, &Error{Kind: KindConflict, Message: "The roster changed while you were editing it, please try again", Err: err}
	default:
		logging.FromContext(ctx).Error("roster update failed", "error", err)
		return nil, internal(err)
	}
}

// push renders r and sends it to the display surface. It runs only after the
// store committed r.
func (s *RosterService) push(ctx context.Context, r *model.Roster) (*model.View, error) {
	view := render.Roster(r)
	err := s.display.Update(ctx, view)
	if err == nil {
		return view, nil
	}
	log := logging.FromContext(ctx)
	if errors.Is(err, display.ErrArtifactMissing) || errors.Is(err, display.ErrArtifactInvalidated) {
		// the next reconciliation removes the orphaned roster
		log.Warn("event message vanished after roster commit", "version", r.Version, "error", err)
		return nil, &Error{Kind: KindNotFound, Message: "Event message no longer exists", Err: err}
	}
	log.Error("roster committed but display update failed", "version", r.Version, "error", err)
	return nil, &Error{Kind: KindInternal, Message: "Roster saved but the event message could not be refreshed. Please try again later.", Err: err}
}

// locked reports whether r's lock window has engaged at now.
func locked(r *model.Roster, now time.Time) (bool, error) {
	at, ok, err := r.LockAt()
	if err != nil || !ok {
		return false, err
	}
	return now.After(at), nil
}

// checkLock refuses with a conflict once r's lock window has engaged.
func (s *RosterService) checkLock(r *model.Roster) error {
	isLocked, err := locked(r, s.now())
	if err != nil {
		return internal(err)
	}
	if isLocked {
		return conflictf("Roster is locked: changes are not allowed %d minutes before the event starts", *r.LockOffsetMinutes)
	}
	return nil
}

func canManage(r *model.Roster, requester string, privileged bool) bool {
	return privileged || (requester != "" && requester == r.Organizer)
}

func scoped(ctx context.Context, eventID, guildID string) context.Context {
	return logging.With(ctx, "event_id", eventID, "guild_id", guildID)
}
