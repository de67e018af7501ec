package entity

// Role identifies a user's position in the company hierarchy
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// IsValid returns true if the role is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// User represents a directory entry. Users are read-only from the
// approval engine's perspective; the directory owns them.
type User struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Role              Role   `json:"role"`
	ManagerID         string `json:"manager_id,omitempty"`
	IsManagerApprover bool   `json:"is_manager_approver"`
}
