package core

// IsGroupAdmin reports whether the principal administers the group.
// A disabled group has no effective group admins.
func IsGroupAdmin(p *Principal, g *Group) bool {
	if p == nil || g == nil {
		return false
	}
	return g.Enabled && g.HasAdmin(p.ID)
}

// CanManageGroup is the authorization predicate for every group endpoint
// that reads a single group or mutates its membership: global admins always
// pass, everyone else must be a group admin of the enabled group.
func CanManageGroup(p *Principal, g *Group) bool {
	return p.IsAdmin() || IsGroupAdmin(p, g)
}
