package guard

import "github.com/frahmantamala/payment-portal/internal/user"

// Page is one guarded portal page. An empty Roles admits any signed-in role.
type Page struct {
	Path  string
	Title string
	Roles []user.Role
	// InMenu controls whether the page shows in navigation.
	InMenu bool
	// MenuRoles narrows the navigation entry below Roles. Empty means Roles.
	MenuRoles []user.Role
}

var (
	Submitters = []user.Role{user.RoleEmployee, user.RoleManager}
	Approvers  = []user.Role{user.RoleManager, user.RoleHR, user.RoleAdmin}
	HRAdmin    = []user.Role{user.RoleHR, user.RoleAdmin}
)

var pages = []Page{
	{Path: "/dashboard", Title: "Dashboard", InMenu: true},
	{Path: "/requests", Title: "My Requests", InMenu: true},
	{Path: "/requests/new", Title: "New Request", Roles: Submitters, InMenu: true},
	{Path: "/requests/{id}", Title: "Request Details"},
	{Path: "/approvals", Title: "Approvals", Roles: Approvers, InMenu: true},
	{Path: "/analytics", Title: "Analytics", InMenu: true, MenuRoles: Approvers},
	{Path: "/analytics/summary", Title: "Summary Report", Roles: Approvers},
	{Path: "/admin/requests", Title: "All Requests", Roles: HRAdmin, InMenu: true},
	{Path: "/admin/users", Title: "Users", Roles: HRAdmin, InMenu: true},
	{Path: "/settings", Title: "Settings", InMenu: true},
}

// Pages returns the page table.
func Pages() []Page {
	out := make([]Page, len(pages))
	copy(out, pages)
	return out
}

// RolesFor returns the allowed roles of path, and false when path is not a guarded page.
func RolesFor(path string) ([]user.Role, bool) {
	for _, p := range pages {
		if p.Path == path {
			return p.Roles, true
		}
	}
	return nil, false
}

// Menu lists the navigation entries role may open.
func Menu(role user.Role) []Page {
	var out []Page
	for _, p := range pages {
		if !p.InMenu {
			continue
		}
		shown := p.MenuRoles
		if len(shown) == 0 {
			shown = p.Roles
		}
		if len(shown) == 0 || role.In(shown...) {
			out = append(out, p)
		}
	}
	return out
}
