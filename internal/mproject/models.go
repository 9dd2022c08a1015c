package mproject

import "kyri56xcaesar/taskhub/internal/models"

type CreateProjectRequest struct {
	Name        string `json:"name" form:"name" binding:"max=120"`
	Description string `json:"description" form:"description" binding:"max=2000"`
}

// UpdateProjectRequest: a nil Team leaves membership untouched, a present one replaces it.
type UpdateProjectRequest struct {
	Name        *string    `json:"name" binding:"omitempty,max=120"`
	Description *string    `json:"description" binding:"omitempty,max=2000"`
	Team        *[]*string `json:"team"`
}

// ProjectView is a project with its members and tasks expanded for display.
type ProjectView struct {
	models.Project
	Team  []models.UserRef `json:"team"`
	Tasks []models.TaskRef `json:"tasks"`
}
