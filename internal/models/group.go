package models

// Group is a chat group joined through an invite code.
type Group struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	InviteCode string   `json:"inviteCode"`
	Members    []string `json:"members"`
	CreatedBy  string   `json:"createdBy"`
	CreatedAt  int64    `json:"createdAt"`
	Type       string   `json:"type"`
}

// Group types are informational tags only.
const (
	GroupTypeClass   = "CLASS"
	GroupTypeProject = "PROJECT"
	GroupTypeSocial  = "SOCIAL"
)

// HasMember reports whether userID belongs to the group.
func (g Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// AddMember appends userID if not already present.
func (g *Group) AddMember(userID string) bool {
	if g.HasMember(userID) {
		return false
	}
	g.Members = append(g.Members, userID)
	return true
}

// RemoveMember drops userID from the member list.
func (g *Group) RemoveMember(userID string) {
	members := g.Members[:0]
	for _, m := range g.Members {
		if m != userID {
			members = append(members, m)
		}
	}
	g.Members = members
}
