package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/guild-roster/internal/logging"
	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
	"github.com/Shivanand-hulikatti/guild-roster/internal/render"
)

// ClearSlots empties the listed slots in a single update. Empty slots are
// skipped; unknown role ids are rejected before anything changes.
func (s *RosterService) ClearSlots(ctx context.Context, guildID, eventID string, roleIDs []int) (*Result, error) {
	if len(roleIDs) == 0 {
		return nil, validationf("Invalid input: at least one role id is required")
	}
	ctx = scoped(ctx, eventID, guildID)

	if _, err := s.reconcile(ctx, eventID, guildID); err != nil {
		return nil, err
	}

	var removed []string
	var cleared []int
	r, err := s.update(ctx, eventID, guildID, func(r *model.Roster) error {
		removed, cleared = nil, nil
		targets := make([]*model.RoleSlot, 0, len(roleIDs))
		for _, id := range roleIDs {
			slot, ok := r.Slot(id)
			if !ok {
				return validationf("Role %d doesn't exist in this event", id)
			}
			if !slot.Available() {
				targets = append(targets, slot)
			}
		}
		if len(targets) == 0 {
			return errNoChange
		}
		if err := s.checkLock(r); err != nil {
			return err
		}
		for _, slot := range targets {
			if slot.Available() {
				// role id listed twice
				continue
			}
			removed = append(removed, slot.Occupant)
			cleared = append(cleared, slot.RoleID)
			slot.Occupant = ""
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return &Result{Outcome: OutcomeUnchanged, Message: "Nothing to clear"}, nil
	}
	if err != nil {
		return nil, err
	}

	view, err := s.push(ctx, r)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("slots cleared", "roles", cleared, "version", r.Version)
	return &Result{
		Outcome:  OutcomeCleared,
		Message:  fmt.Sprintf("Roles %s have been cleared", joinInts(cleared)),
		Roster:   r,
		View:     view,
		Affected: removed,
	}, nil
}

// PruneAbsent releases every occupant missing from present.
func (s *RosterService) PruneAbsent(ctx context.Context, guildID, eventID string, present []string) (*Result, error) {
	ctx = scoped(ctx, eventID, guildID)

	if _, err := s.reconcile(ctx, eventID, guildID); err != nil {
		return nil, err
	}

	set := presentSet(present)
	var removed []string
	r, err := s.update(ctx, eventID, guildID, func(r *model.Roster) error {
		removed = nil
		var targets []*model.RoleSlot
		for i := range r.Slots {
			slot := &r.Slots[i]
			if !slot.Available() && !set[slot.Occupant] {
				targets = append(targets, slot)
			}
		}
		if len(targets) == 0 {
			return errNoChange
		}
		if err := s.checkLock(r); err != nil {
			return err
		}
		for _, slot := range targets {
			removed = append(removed, slot.Occupant)
			slot.Occupant = ""
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return &Result{Outcome: OutcomeUnchanged, Message: "Everyone is present"}, nil
	}
	if err != nil {
		return nil, err
	}

	view, err := s.push(ctx, r)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("absent participants pruned", "count", len(removed), "version", r.Version)
	return &Result{
		Outcome:  OutcomePruned,
		Message:  fmt.Sprintf("Users %s have been cleared", render.Mentions(removed)),
		Roster:   r,
		View:     view,
		Affected: removed,
	}, nil
}

// ListAbsent reports the occupants missing from present without removing them.
func (s *RosterService) ListAbsent(ctx context.Context, guildID, eventID string, present []string) (*Result, error) {
	ctx = scoped(ctx, eventID, guildID)

	r, err := s.reconcile(ctx, eventID, guildID)
	if err != nil {
		return nil, err
	}

	set := presentSet(present)
	var absent []string
	for _, occupant := range r.Occupants() {
		if !set[occupant] {
			absent = append(absent, occupant)
		}
	}
	if len(absent) == 0 {
		return &Result{Outcome: OutcomeUnchanged, Message: "Everyone is present", Roster: r}, nil
	}
	return &Result{
		Outcome:  OutcomeAbsent,
		Message:  fmt.Sprintf("%s, you are missing from %s", render.Mentions(absent), r.Title),
		Roster:   r,
		Affected: absent,
	}, nil
}

// AlertParticipants returns every occupant so the caller can ping them.
// Only the organizer or a privileged member may alert.
func (s *RosterService) AlertParticipants(ctx context.Context, guildID, eventID, requester string, privileged bool) (*Result, error) {
	ctx = logging.With(scoped(ctx, eventID, guildID), "requester", requester)

	r, err := s.reconcile(ctx, eventID, guildID)
	if err != nil {
		return nil, err
	}
	if !canManage(r, requester, privileged) {
		return nil, unauthorizedf("Pinging participants is allowed only to the organizer of the event or an admin")
	}

	occupants := r.Occupants()
	if len(occupants) == 0 {
		return &Result{Outcome: OutcomeUnchanged, Message: "No one signed up, there is no one to ping", Roster: r}, nil
	}
	return &Result{
		Outcome:  OutcomeAlerted,
		Message:  fmt.Sprintf("%s, %s is starting soon", render.Mentions(occupants), r.Title),
		Roster:   r,
		Affected: occupants,
	}, nil
}

func presentSet(present []string) map[string]bool {
	set := make(map[string]bool, len(present))
	for _, p := range present {
		if p = strings.TrimSpace(p); p != "" {
			set[p] = true
		}
	}
	return set
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}
