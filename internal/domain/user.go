package domain

import "time"

// Role is the access level attached to an account.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents one registered account. Rows are never physically removed;
// a soft-deleted account has Status=false and no file references.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	MobileNumber string
	PasswordHash string
	ProfileImage *string
	Document     *string
	Status       bool
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName joins first and last name.
func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// StatusLabel renders Status the way exports show it.
func (u User) StatusLabel() string {
	if u.Status {
		return "Active"
	}
	return "Inactive"
}
