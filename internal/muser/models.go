package muser

import (
	"time"

	"kyri56xcaesar/taskhub/internal/access"
	"kyri56xcaesar/taskhub/internal/models"
)

type RegisterRequest struct {
	Name     string `json:"name" form:"name" binding:"max=120"`
	Email    string `json:"email" form:"email" binding:"max=254"`
	Password string `json:"password" form:"password" binding:"max=128"`
	Title    string `json:"title" form:"title" binding:"max=120"`
	Role     string `json:"role" form:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// ExternalLoginRequest carries identity provider credentials; Username may be an email.
type ExternalLoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// UpdateProfileRequest: admins may set ID to edit someone else, and only admins
// may change Role or IsActive.
type UpdateProfileRequest struct {
	ID       string  `json:"_id"`
	Name     *string `json:"name" binding:"omitempty,max=120"`
	Title    *string `json:"title" binding:"omitempty,max=120"`
	Email    *string `json:"email" binding:"omitempty,max=254"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"isActive"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"max=128"`
}

type AdminUpdateRequest struct {
	Name        *string             `json:"name" binding:"omitempty,max=120"`
	Title       *string             `json:"title" binding:"omitempty,max=120"`
	Email       *string             `json:"email" binding:"omitempty,max=254"`
	Role        *string             `json:"role"`
	IsAdmin     *bool               `json:"isAdmin"`
	IsActive    *bool               `json:"isActive"`
	Permissions *access.Permissions `json:"permissions"`
}

// Session is what a successful login hands back to the client.
type Session struct {
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type TeamMember struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Title    string      `json:"title"`
	Role     access.Role `json:"role"`
	Email    string      `json:"email"`
	IsActive bool        `json:"isActive"`
}

// UserStatus is a user together with counts over the non-trashed tasks they belong to.
type UserStatus struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Title     string             `json:"title"`
	Role      access.Role        `json:"role"`
	Email     string             `json:"email"`
	IsActive  bool               `json:"isActive"`
	IsAdmin   bool               `json:"isAdmin"`
	TaskStats models.StageCounts `json:"taskStats"`
}
