package collab

import "time"

// Palette holds the display colors assigned to members by join order. The
// assignment cycles, so a seventh member shares the first member's color.
var Palette = []string{"#3B82F6", "#EF4444", "#10B981", "#F59E0B", "#8B5CF6", "#EC4899"}

// ColorFor returns the palette color for a 0-based join index.
func ColorFor(index int) string {
	return Palette[index%len(Palette)]
}

// member is a connected participant tracked by a hub.
type member struct {
	userID   string
	color    string
	joinedAt time.Time
	sender   Sender
}

// presence maintains the insertion-ordered member list for a hub. Colors are
// a pure function of the current ordering and are recomputed on every
// membership change; reassignment after a leave is expected.
type presence struct {
	members []*member
}

func (p *presence) get(userID string) (*member, bool) {
	for _, m := range p.members {
		if m.userID == userID {
			return m, true
		}
	}
	return nil, false
}

func (p *presence) add(m *member) {
	p.members = append(p.members, m)
	p.recolor()
}

func (p *presence) remove(userID string) bool {
	for i, m := range p.members {
		if m.userID == userID {
			p.members = append(p.members[:i], p.members[i+1:]...)
			p.recolor()
			return true
		}
	}
	return false
}

func (p *presence) recolor() {
	for i, m := range p.members {
		m.color = ColorFor(i)
	}
}

func (p *presence) users() []string {
	users := make([]string, len(p.members))
	for i, m := range p.members {
		users[i] = m.userID
	}
	return users
}

func (p *presence) count() int {
	return len(p.members)
}
