// Package model defines the core domain types for guild event rosters.
package model

import (
	"fmt"
	"time"
)

// Date and time layouts accepted for event scheduling (DD.MM.YYYY, 24h HH:MM).
const (
	DateLayout = "02.01.2006"
	TimeLayout = "15:04"
)

// MaxPartySize is the number of roles grouped into one party.
const MaxPartySize = 20

// RoleSlot is one bookable position in a roster.
type RoleSlot struct {
	RoleID   int    `json:"role_id"`
	RoleName string `json:"role_name"`
	Party    string `json:"party"`
	Occupant string `json:"occupant,omitempty"`
}

// Available reports whether nobody holds the slot.
func (s RoleSlot) Available() bool {
	return s.Occupant == ""
}

// Roster is the persisted slot list of one scheduled event.
type Roster struct {
	EventID           string     `json:"event_id"`
	GuildID           string     `json:"guild_id"`
	Organizer         string     `json:"organizer"`
	Title             string     `json:"title"`
	Date              string     `json:"date"`
	Time              string     `json:"time"`
	Composition       string     `json:"composition"`
	LockOffsetMinutes *int       `json:"lock_offset_minutes,omitempty"`
	Slots             []RoleSlot `json:"slots"`
	Version           int64      `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// StartsAt combines Date and Time into an absolute UTC instant.
func (r *Roster) StartsAt() (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, r.Date+" "+r.Time, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse start of event %s: %w", r.EventID, err)
	}
	return t, nil
}

// LockAt returns the instant after which occupants can no longer be removed.
// ok is false when the roster has no lock configured.
func (r *Roster) LockAt() (at time.Time, ok bool, err error) {
	if r.LockOffsetMinutes == nil {
		return time.Time{}, false, nil
	}
	start, err := r.StartsAt()
	if err != nil {
		return time.Time{}, false, err
	}
	return start.Add(-time.Duration(*r.LockOffsetMinutes) * time.Minute), true, nil
}

// Slot returns the slot with the given role id.
func (r *Roster) Slot(roleID int) (*RoleSlot, bool) {
	for i := range r.Slots {
		if r.Slots[i].RoleID == roleID {
			return &r.Slots[i], true
		}
	}
	return nil, false
}

// SlotOf returns the slot currently held by participant.
func (r *Roster) SlotOf(participant string) (*RoleSlot, bool) {
	if participant == "" {
		return nil, false
	}
	for i := range r.Slots {
		if r.Slots[i].Occupant == participant {
			return &r.Slots[i], true
		}
	}
	return nil, false
}

// Occupants lists every participant holding a slot, in slot order.
func (r *Roster) Occupants() []string {
	var out []string
	for _, s := range r.Slots {
		if !s.Available() {
			out = append(out, s.Occupant)
		}
	}
	return out
}

// Clone returns a deep copy, so callers can mutate without touching the original.
func (r *Roster) Clone() *Roster {
	c := *r
	c.Slots = append([]RoleSlot(nil), r.Slots...)
	if r.LockOffsetMinutes != nil {
		v := *r.LockOffsetMinutes
		c.LockOffsetMinutes = &v
	}
	return &c
}

// RoleDefinition is one role of a composition template.
type RoleDefinition struct {
	RoleID   int    `json:"role_id" yaml:"role_id"`
	RoleName string `json:"role_name" yaml:"role_name"`
	Party    string `json:"party" yaml:"party"`
}

// Template is a named, ordered list of roles owned by a guild.
type Template struct {
	GuildID string           `json:"guild_id"`
	Name    string           `json:"name"`
	Owner   string           `json:"owner"`
	Roles   []RoleDefinition `json:"roles"`
}

// NewTemplate numbers role names from 1 and groups them into parties of MaxPartySize.
func NewTemplate(guildID, name, owner string, roleNames []string) *Template {
	t := &Template{GuildID: guildID, Name: name, Owner: owner}
	for i, n := range roleNames {
		t.Roles = append(t.Roles, RoleDefinition{
			RoleID:   i + 1,
			RoleName: n,
			Party:    fmt.Sprintf("Party %d", i/MaxPartySize+1),
		})
	}
	return t
}

// CreateRosterRequest is the payload for creating a roster.
type CreateRosterRequest struct {
	EventID           string `json:"event_id"`
	GuildID           string `json:"guild_id"`
	Organizer         string `json:"organizer"`
	Title             string `json:"title"`
	Date              string `json:"date"`
	Time              string `json:"time"`
	Composition       string `json:"composition"`
	LockOffsetMinutes *int   `json:"lock_offset_minutes,omitempty"`
}

// MetadataFields carries the optional fields of an edit; nil means unchanged.
type MetadataFields struct {
	Title             *string `json:"title,omitempty"`
	Date              *string `json:"date,omitempty"`
	Time              *string `json:"time,omitempty"`
	LockOffsetMinutes *int    `json:"lock_offset_minutes,omitempty"`
	ClearLock         bool    `json:"clear_lock,omitempty"`
}

// Empty reports whether no field would change.
func (f MetadataFields) Empty() bool {
	return f.Title == nil && f.Date == nil && f.Time == nil && f.LockOffsetMinutes == nil && !f.ClearLock
}

// ParticipantEntry is one upcoming roster a participant holds a slot in.
type ParticipantEntry struct {
	EventID  string    `json:"event_id"`
	Title    string    `json:"title"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	RoleID   int       `json:"role_id"`
	RoleName string    `json:"role_name"`
	StartsAt time.Time `json:"starts_at"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CheckInvariants verifies that role ids are unique and that no participant
// holds more than one slot.
func (r *Roster) CheckInvariants() error {
	roles := make(map[int]struct{}, len(r.Slots))
	occupants := make(map[string]int, len(r.Slots))
	for _, s := range r.Slots {
		if _, dup := roles[s.RoleID]; dup {
			return fmt.Errorf("roster %s: duplicate role id %d", r.EventID, s.RoleID)
		}
		roles[s.RoleID] = struct{}{}
		if s.Available() {
			continue
		}
		if prev, dup := occupants[s.Occupant]; dup {
			return fmt.Errorf("roster %s: participant %s holds roles %d and %d", r.EventID, s.Occupant, prev, s.RoleID)
		}
		occupants[s.Occupant] = s.RoleID
	}
	return nil
}

// SameSlots reports whether other has the same slot composition (ids, names,
// parties and order), ignoring occupancy.
func (r *Roster) SameSlots(other *Roster) bool {
	if len(r.Slots) != len(other.Slots) {
		return false
	}
	for i := range r.Slots {
		a, b := r.Slots[i], other.Slots[i]
		if a.RoleID != b.RoleID || a.RoleName != b.RoleName || a.Party != b.Party {
			return false
		}
	}
	return true
}
