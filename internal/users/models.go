package users

import "time"

// Role is the marketplace role a user registered with. It does not change after signup.
type Role string

const (
	RoleNGO     Role = "NGO"
	RoleBuyer   Role = "buyer"
	RoleAuditor Role = "auditor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleNGO, RoleBuyer, RoleAuditor:
		return true
	}
	return false
}

// User is a marketplace account
type User struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"not null" json:"-"` // bcrypt hash
	Role      Role      `gorm:"index;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
