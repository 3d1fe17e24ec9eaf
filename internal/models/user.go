package models

import (
	"io"
	"time"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// Valid reports whether the role is one the system understands.
func (r UserRole) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         UserRole   `db:"role" json:"role"`
	ProfilePic   *string    `db:"profile_pic" json:"-"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserProfile is the outward view of a user, with a signed link to the picture.
type UserProfile struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Email         string   `json:"email"`
	Role          UserRole `json:"role"`
	ProfilePicURL *string  `json:"profile_pic_url,omitempty"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// RegisterRequest is the self-service sign-up payload.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6"`
}

// UpdateProfileRequest carries the editable profile fields.
// Picture is optional; when nil the stored picture is kept.
type UpdateProfileRequest struct {
	Username string         `form:"username" json:"username" validate:"required,min=3,max=64"`
	Email    string         `form:"email" json:"email" validate:"required,email,max=255"`
	Picture  *PictureUpload `form:"-" json:"-" validate:"-"`
}

// PictureUpload describes an uploaded profile picture stream.
type PictureUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// SetRoleRequest assigns a role to a user.
type SetRoleRequest struct {
	Role UserRole `json:"role" validate:"required,oneof=user admin"`
}
