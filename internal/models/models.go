// Package models holds the entities shared by the managers and the store.
package models

import (
	"slices"
	"time"

	"kyri56xcaesar/taskhub/internal/access"
)

type User struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Email        string             `json:"email"`
	Title        string             `json:"title"`
	PasswordHash string             `json:"-"`
	ExternalID   string             `json:"-"`
	Role         access.Role        `json:"role"`
	IsAdmin      bool               `json:"isAdmin"`
	IsActive     bool               `json:"isActive"`
	Permissions  access.Permissions `json:"permissions"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

func (u User) Identity() access.Identity {
	return access.NewIdentity(u.ID, u.Role, u.IsAdmin, u.Permissions)
}

func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, Email: u.Email, Title: u.Title, Role: u.Role}
}

// UserRef is the display form of a user embedded in other entities.
type UserRef struct {
	ID    string      `json:"id"`
	Name  string      `json:"name,omitempty"`
	Email string      `json:"email,omitempty"`
	Title string      `json:"title,omitempty"`
	Role  access.Role `json:"role,omitempty"`
}

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Team        []string  `json:"team"`
	Tasks       []string  `json:"tasks"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ProjectPatch struct {
	Name        *string
	Description *string
	Team        *[]string
}

func (p ProjectPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Team == nil
}

// Notice is a notification addressed to Team; IsRead lists who has read it.
type Notice struct {
	ID        string    `json:"id"`
	Team      []string  `json:"team"`
	Text      string    `json:"text"`
	TaskID    string    `json:"task,omitempty"`
	TaskTitle string    `json:"taskTitle,omitempty"`
	IsRead    []string  `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

func (n Notice) AddressedTo(userID string) bool {
	return slices.Contains(n.Team, userID)
}

func (n Notice) ReadBy(userID string) bool {
	return slices.Contains(n.IsRead, userID)
}
