// Package render turns a roster into the view mirrored by the display surface.
// Rendering is pure: the same roster always yields the same view.
package render

import (
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
)

// NoLongerExists is the notice shown on a display whose roster is gone.
const NoLongerExists = "This event no longer exists."

// Roster renders r grouped by party, parties in order of first appearance
// and slots in creation order.
func Roster(r *model.Roster) *model.View {
	v := &model.View{
		EventID:     r.EventID,
		GuildID:     r.GuildID,
		Version:     r.Version,
		Title:       r.Title,
		Description: fmt.Sprintf("Date: **%s**\nTime (UTC): **%s**", r.Date, r.Time),
		LockNotice:  lockNotice(r),
		Footer:      "Event ID: " + r.EventID,
		Affordances: Affordances(r),
	}

	index := make(map[string]int)
	for _, s := range r.Slots {
		i, ok := index[s.Party]
		if !ok {
			i = len(v.Parties)
			index[s.Party] = i
			v.Parties = append(v.Parties, model.PartyView{Name: "⚔️ " + s.Party})
		}
		v.Parties[i].Lines = append(v.Parties[i].Lines, slotLine(s))
	}
	return v
}

func slotLine(s model.RoleSlot) model.SlotLine {
	if s.Available() {
		return model.SlotLine{
			RoleID: s.RoleID,
			Text:   fmt.Sprintf("`🟩` %d. %s", s.RoleID, s.RoleName),
		}
	}
	return model.SlotLine{
		RoleID:   s.RoleID,
		Text:     fmt.Sprintf("`✔️` %d. %s - %s", s.RoleID, s.RoleName, Mention(s.Occupant)),
		Occupant: s.Occupant,
	}
}

// lockNotice uses a relative timestamp marker so clients show a live
// countdown while the rendered text stays the same.
func lockNotice(r *model.Roster) string {
	at, ok, err := r.LockAt()
	if err != nil || !ok {
		return ""
	}
	return fmt.Sprintf("🔒 Roster locks <t:%d:R> (%d minutes before start)", at.Unix(), *r.LockOffsetMinutes)
}

// Affordances returns the join, leave and alert controls for a roster.
func Affordances(r *model.Roster) []model.Affordance {
	return []model.Affordance{
		{Kind: model.AffordanceJoin, Label: "Join", CustomID: "join|" + r.EventID, Style: "primary"},
		{Kind: model.AffordanceLeave, Label: "Leave", CustomID: "leave|" + r.EventID, Style: "danger"},
		{Kind: model.AffordanceAlert, Label: "Ping", CustomID: "alert|" + r.EventID, Style: "danger"},
	}
}

// Mention formats a participant id as a chat mention.
func Mention(participant string) string {
	return "<@" + participant + ">"
}

// Mentions joins participant mentions with ", ".
func Mentions(participants []string) string {
	out := make([]string, len(participants))
	for i, p := range participants {
		out[i] = Mention(p)
	}
	return strings.Join(out, ", ")
}

// Text flattens a view into plain text, one party block after another.
func Text(v *model.View) string {
	var b strings.Builder
	b.WriteString(v.Title)
	b.WriteString("\n")
	b.WriteString(v.Description)
	b.WriteString("\n")
	if v.LockNotice != "" {
		b.WriteString(v.LockNotice)
		b.WriteString("\n")
	}
	for _, p := range v.Parties {
		b.WriteString("\n")
		b.WriteString(p.Name)
		b.WriteString("\n")
		for _, l := range p.Lines {
			b.WriteString(l.Text)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(v.Footer)
	return b.String()
}
