package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Shivanand-hulikatti/guild-roster/internal/display"
	"github.com/Shivanand-hulikatti/guild-roster/internal/logging"
	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
	"github.com/Shivanand-hulikatti/guild-roster/internal/render"
	"github.com/Shivanand-hulikatti/guild-roster/internal/repository"
)

const maxRoleNameLength = 24

// CreateRoster validates req, snapshots the composition into a new roster and
// publishes its view. Nothing is left behind when any step fails.
func (s *RosterService) CreateRoster(ctx context.Context, req model.CreateRosterRequest) (*Result, error) {
	if err := validateCreate(&req); err != nil {
		return nil, err
	}
	ctx = logging.With(scoped(ctx, req.EventID, req.GuildID), "organizer", req.Organizer)
	log := logging.FromContext(ctx)

	tmpl, err := s.templates.GetTemplate(ctx, req.Composition, req.GuildID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundf("Composition %s doesn't exist", req.Composition)
	}
	if err != nil {
		log.Error("failed to load composition", "composition", req.Composition, "error", err)
		return nil, internal(err)
	}
	if len(tmpl.Roles) == 0 {
		return nil, validationf("Composition %s has no roles", req.Composition)
	}

	now := s.now().UTC()
	r := &model.Roster{
		EventID:           req.EventID,
		GuildID:           req.GuildID,
		Organizer:         req.Organizer,
		Title:             req.Title,
		Date:              req.Date,
		Time:              req.Time,
		Composition:       tmpl.Name,
		LockOffsetMinutes: req.LockOffsetMinutes,
		Slots:             make([]model.RoleSlot, 0, len(tmpl.Roles)),
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for _, role := range tmpl.Roles {
		r.Slots = append(r.Slots, model.RoleSlot{RoleID: role.RoleID, RoleName: role.RoleName, Party: role.Party})
	}
	if err := r.CheckInvariants(); err != nil {
		log.Error("composition produced an invalid roster", "error", err)
		return nil, internal(err)
	}

	if err := s.rosters.Create(ctx, r); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, conflictf("Event %s already exists", req.EventID)
		}
		log.Error("failed to persist roster", "error", err)
		return nil, internal(err)
	}

	view := render.Roster(r)
	if err := s.display.Publish(ctx, view); err != nil {
		log.Error("failed to publish event message, removing roster", "error", err)
		if delErr := s.rosters.Delete(ctx, r.EventID, r.GuildID); delErr != nil {
			log.Error("failed to remove unpublished roster", "error", delErr)
		}
		return nil, internal(err)
	}

	log.Info("roster created", "composition", tmpl.Name, "slots", len(r.Slots))
	return &Result{
		Outcome: OutcomeCreated,
		Message: fmt.Sprintf("Event %s has been created", r.Title),
		Roster:  r,
		View:    view,
	}, nil
}

// GetRoster returns the current roster and its rendered view.
func (s *RosterService) GetRoster(ctx context.Context, guildID, eventID string) (*Result, error) {
	ctx = scoped(ctx, eventID, guildID)
	r, err := s.reconcile(ctx, eventID, guildID)
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: OutcomeViewed, Message: r.Title, Roster: r, View: render.Roster(r)}, nil
}

// CancelRoster deletes a roster and its display artifact. Only the organizer
// or a privileged member may cancel. The former occupants are returned so
// they can be told.
func (s *RosterService) CancelRoster(ctx context.Context, guildID, eventID, requester string, privileged bool) (*Result, error) {
	ctx = logging.With(scoped(ctx, eventID, guildID), "requester", requester)
	log := logging.FromContext(ctx)

	r, err := s.rosters.Load(ctx, eventID, guildID)
	if errors.Is(err, repository.ErrNotFound) {
		s.dropGhost(ctx, eventID, guildID)
		return nil, notFoundf("Event doesn't exist")
	}
	if err != nil {
		log.Error("failed to load roster", "error", err)
		return nil, internal(err)
	}
	if !canManage(r, requester, privileged) {
		return nil, unauthorizedf("Cancelling events is allowed only to the organizer of the event or an admin")
	}

	if err := s.rosters.Delete(ctx, eventID, guildID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf("Event doesn't exist")
		}
		log.Error("failed to delete roster", "error", err)
		return nil, internal(err)
	}
	if err := s.display.Delete(ctx, eventID); err != nil {
		// a leftover artifact is invalidated by the next reconciliation
		log.Error("failed to delete event message", "error", err)
	}

	log.Info("roster cancelled")
	return &Result{
		Outcome:  OutcomeCancelled,
		Message:  fmt.Sprintf("Event %s has been cancelled", r.Title),
		Roster:   r,
		Affected: r.Occupants(),
	}, nil
}

// dropGhost deletes an artifact left behind by a roster that no longer exists.
func (s *RosterService) dropGhost(ctx context.Context, eventID, guildID string) {
	a, err := s.display.Fetch(ctx, eventID)
	if err != nil || (a.GuildID != "" && a.GuildID != guildID) {
		return
	}
	if err := s.display.Delete(ctx, eventID); err != nil {
		logging.FromContext(ctx).Error("failed to delete orphaned event message", "error", err)
	}
}

// EditRosterMetadata changes the title, schedule or lock window of a roster.
// Slots are never touched.
func (s *RosterService) EditRosterMetadata(ctx context.Context, guildID, eventID, requester string, privileged bool, fields model.MetadataFields) (*Result, error) {
	if err := validateFields(&fields); err != nil {
		return nil, err
	}
	ctx = logging.With(scoped(ctx, eventID, guildID), "requester", requester)

	current, err := s.reconcile(ctx, eventID, guildID)
	if err != nil {
		return nil, err
	}
	if !canManage(current, requester, privileged) {
		return nil, unauthorizedf("Editing events is allowed only to the organizer of the event or an admin")
	}

	r, err := s.update(ctx, eventID, guildID, func(r *model.Roster) error {
		if fields.Title != nil {
			r.Title = *fields.Title
		}
		if fields.Date != nil {
			r.Date = *fields.Date
		}
		if fields.Time != nil {
			r.Time = *fields.Time
		}
		switch {
		case fields.ClearLock:
			r.LockOffsetMinutes = nil
		case fields.LockOffsetMinutes != nil:
			offset := *fields.LockOffsetMinutes
			r.LockOffsetMinutes = &offset
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	view, err := s.push(ctx, r)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("roster edited", "version", r.Version)
	return &Result{
		Outcome:  OutcomeEdited,
		Message:  fmt.Sprintf("Event %s has been updated", r.Title),
		Roster:   r,
		View:     view,
		Affected: r.Occupants(),
	}, nil
}

// ListParticipantRosters returns the upcoming rosters in which participant
// holds a slot, soonest first.
func (s *RosterService) ListParticipantRosters(ctx context.Context, guildID, participant string) ([]model.ParticipantEntry, error) {
	participant = strings.TrimSpace(participant)
	if participant == "" {
		return nil, validationf("Invalid input: participant is required")
	}
	ctx = logging.With(ctx, "guild_id", guildID, "participant", participant)

	rosters, err := s.rosters.ListByOccupant(ctx, guildID, participant)
	if err != nil {
		logging.FromContext(ctx).Error("failed to list rosters", "error", err)
		return nil, internal(err)
	}

	now := s.now()
	entries := make([]model.ParticipantEntry, 0, len(rosters))
	for _, r := range rosters {
		start, err := r.StartsAt()
		if err != nil || start.Before(now) {
			continue
		}
		slot, ok := r.SlotOf(participant)
		if !ok {
			continue
		}
		entries = append(entries, model.ParticipantEntry{
			EventID:  r.EventID,
			Title:    r.Title,
			Date:     r.Date,
			Time:     r.Time,
			RoleID:   slot.RoleID,
			RoleName: slot.RoleName,
			StartsAt: start,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartsAt.Before(entries[j].StartsAt)
	})
	return entries, nil
}

// SweepExpired deletes rosters that started more than retention ago along
// with their display artifacts, returning the removed event ids.
func (s *RosterService) SweepExpired(ctx context.Context, retention time.Duration) ([]string, error) {
	if retention <= 0 {
		return nil, validationf("Invalid retention: must be positive")
	}
	log := logging.FromContext(ctx)
	cutoff := s.now().Add(-retention)

	ids, err := s.rosters.DeleteStartedBefore(ctx, cutoff)
	if err != nil {
		log.Error("failed to delete expired rosters", "cutoff", cutoff, "error", err)
		return nil, internal(err)
	}
	for _, id := range ids {
		if err := s.display.Delete(ctx, id); err != nil && !errors.Is(err, display.ErrArtifactMissing) {
			log.Warn("failed to delete expired event message", "event_id", id, "error", err)
		}
	}
	if len(ids) > 0 {
		log.Info("expired rosters swept", "count", len(ids), "cutoff", cutoff)
	}
	return ids, nil
}

// ImportTemplate stores a new composition. Roles are numbered from 1 in the
// given order and grouped into parties. A stored composition never changes,
// so existing rosters keep their snapshot.
func (s *RosterService) ImportTemplate(ctx context.Context, guildID, name, owner string, roleNames []string) (*model.Template, error) {
	name = strings.TrimSpace(name)
	if guildID == "" || name == "" {
		return nil, validationf("Invalid input: guild and composition name are required")
	}
	if len(roleNames) == 0 {
		return nil, validationf("Composition %s needs at least one role", name)
	}
	cleaned := make([]string, len(roleNames))
	for i, n := range roleNames {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, validationf("Composition %s: role %d has no name", name, i+1)
		}
		if utf8.RuneCountInString(n) > maxRoleNameLength {
			return nil, validationf("Composition %s: role name %q is longer than %d symbols", name, n, maxRoleNameLength)
		}
		cleaned[i] = n
	}

	t := model.NewTemplate(guildID, name, owner, cleaned)
	if err := s.templates.PutTemplate(ctx, t); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, conflictf("Composition %s already exists", name)
		}
		logging.FromContext(ctx).Error("failed to store composition", "composition", name, "error", err)
		return nil, internal(err)
	}
	return t, nil
}
