package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/guild-roster/internal/logging"
	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
	"github.com/Shivanand-hulikatti/guild-roster/internal/render"
)

// ClaimSlot puts participant into the slot roleID. A participant already
// holding another slot is moved, never added twice.
func (s *RosterService) ClaimSlot(ctx context.Context, guildID, eventID, participant string, roleID int) (*Result, error) {
	participant = strings.TrimSpace(participant)
	if participant == "" {
		return nil, validationf("Invalid input: participant is required")
	}
	ctx = logging.With(scoped(ctx, eventID, guildID), "participant", participant, "role_id", roleID)

	if _, err := s.reconcile(ctx, eventID, guildID); err != nil {
		return nil, err
	}

	var previous model.RoleSlot
	switched := false
	r, err := s.update(ctx, eventID, guildID, func(r *model.Roster) error {
		target, ok := r.Slot(roleID)
		if !ok {
			return validationf("Role %d doesn't exist in this event", roleID)
		}
		if target.Occupant == participant {
			return conflictf("You already have %d. %s assigned", target.RoleID, target.RoleName)
		}
		if !target.Available() {
			return conflictf("This role is already assigned to %s", render.Mention(target.Occupant))
		}

		held, holds := r.SlotOf(participant)
		if s.blockClaimsWhenLocked || holds {
			// switching removes the participant from their old slot
			if err := s.checkLock(r); err != nil {
				return err
			}
		}
		if holds {
			previous = *held
			switched = true
			held.Occupant = ""
		}
		target.Occupant = participant
		return nil
	})
	if err != nil {
		return nil, err
	}

	view, err := s.push(ctx, r)
	if err != nil {
		return nil, err
	}

	slot, _ := r.Slot(roleID)
	res := &Result{Outcome: OutcomeAssigned, Roster: r, View: view}
	if switched {
		res.Outcome = OutcomeSwitched
		res.Message = fmt.Sprintf("You switched from %d. %s to %d. %s",
			previous.RoleID, previous.RoleName, slot.RoleID, slot.RoleName)
	} else {
		res.Message = fmt.Sprintf("Your role is: %d. %s", slot.RoleID, slot.RoleName)
	}
	logging.FromContext(ctx).Info("slot claimed", "outcome", res.Outcome, "version", r.Version)
	return res, nil
}

// ReleaseSlot frees whatever slot participant holds.
func (s *RosterService) ReleaseSlot(ctx context.Context, guildID, eventID, participant string) (*Result, error) {
	participant = strings.TrimSpace(participant)
	if participant == "" {
		return nil, validationf("Invalid input: participant is required")
	}
	ctx = logging.With(scoped(ctx, eventID, guildID), "participant", participant)

	if _, err := s.reconcile(ctx, eventID, guildID); err != nil {
		return nil, err
	}

	var released model.RoleSlot
	r, err := s.update(ctx, eventID, guildID, func(r *model.Roster) error {
		if err := s.checkLock(r); err != nil {
			return err
		}
		held, ok := r.SlotOf(participant)
		if !ok {
			return conflictf("You are not signed up for this event")
		}
		released = *held
		held.Occupant = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	view, err := s.push(ctx, r)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("slot released", "role_id", released.RoleID, "version", r.Version)
	return &Result{
		Outcome:  OutcomeReleased,
		Message:  fmt.Sprintf("You have left %d. %s", released.RoleID, released.RoleName),
		Roster:   r,
		View:     view,
		Affected: []string{participant},
	}, nil
}
