package model

// View is the render-ready payload mirrored by the display surface.
type View struct {
	EventID     string       `json:"event_id"`
	GuildID     string       `json:"guild_id"`
	Version     int64        `json:"version"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Parties     []PartyView  `json:"parties"`
	LockNotice  string       `json:"lock_notice,omitempty"`
	Footer      string       `json:"footer"`
	Affordances []Affordance `json:"affordances,omitempty"`
}

// PartyView is the rendered slot list of one party.
type PartyView struct {
	Name  string     `json:"name"`
	Lines []SlotLine `json:"lines"`
}

// SlotLine is one rendered slot.
type SlotLine struct {
	RoleID   int    `json:"role_id"`
	Text     string `json:"text"`
	Occupant string `json:"occupant,omitempty"`
}

// AffordanceKind names an interactive control attached to the display.
type AffordanceKind string

const (
	AffordanceJoin  AffordanceKind = "join"
	AffordanceLeave AffordanceKind = "leave"
	AffordanceAlert AffordanceKind = "alert"
)

// Affordance describes a button the display surface should offer.
type Affordance struct {
	Kind     AffordanceKind `json:"kind"`
	Label    string         `json:"label"`
	CustomID string         `json:"custom_id"`
	Style    string         `json:"style"`
}
