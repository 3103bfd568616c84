package constants

const (
	Admin        = "admin"
	ProjectOwner = "project_owner"
	Buyer        = "buyer"
)

// ValidRoles is the set of allowed values for a user's role.
var ValidRoles = []string{Admin, ProjectOwner, Buyer}

// IsValidRole returns true if role is one of the allowed values.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
