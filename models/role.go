package models

// AdminRole is the privileged role. It can never be removed from its holder by that holder.
const AdminRole = "admin"

// Role is a read view of a role and its grants: resource pattern -> permission names.
type Role struct {
	Name   string              `json:"name"`
	Grants map[string][]string `json:"grants"`
}

// Allow is one grant entry: every permission applies to every resource.
type Allow struct {
	Resources   StringList `json:"resources"`
	Permissions StringList `json:"permissions"`
}

// RoleAllows attaches grants to one or more roles.
type RoleAllows struct {
	Roles  StringList `json:"roles"`
	Allows []Allow    `json:"allows"`
}
