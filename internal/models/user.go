package models

import "time"

// Role identifies which portal a user signs in to.
type Role string

const (
	RoleFaculty Role = "faculty"
	RoleStudent Role = "student"
)

// Valid reports whether the role is supported.
func (r Role) Valid() bool {
	return r == RoleFaculty || r == RoleStudent
}

// DefaultStudentLevel is assigned to newly registered students.
const DefaultStudentLevel = "1"

// User is an account in either role. Email is unique within a role.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;not null;uniqueIndex:idx_users_email_role" json:"email"`
	FullName     string    `gorm:"size:255;not null;index" json:"full_name"`
	Role         Role      `gorm:"size:16;not null;uniqueIndex:idx_users_email_role" json:"role"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Level        string    `gorm:"size:16" json:"level,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
