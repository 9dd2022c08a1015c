package mtask

import (
	"strings"
	"time"

	"kyri56xcaesar/taskhub/internal/apperr"
	"kyri56xcaesar/taskhub/internal/models"
)

const (
	ActionDelete     = "delete"
	ActionDeleteAll  = "deleteAll"
	ActionRestore    = "restore"
	ActionRestoreAll = "restoreAll"

	TeamAdd    = "add"
	TeamRemove = "remove"
)

type CreateTaskRequest struct {
	Title       string   `json:"title" form:"title" binding:"max=200"`
	StartDate   string   `json:"startDate" form:"startDate"`
	DueDate     string   `json:"dueDate" form:"dueDate"`
	Description string   `json:"description" form:"description" binding:"max=5000"`
	Priority    string   `json:"priority" form:"priority"`
	Stage       string   `json:"stage" form:"stage"`
	Team        []string `json:"team" form:"team"`
	Assets      []string `json:"assets" form:"assets"`
	Tags        []string `json:"tags" form:"tags"`
}

type UpdateTaskRequest struct {
	Title       *string   `json:"title" binding:"omitempty,max=200"`
	StartDate   *string   `json:"startDate"`
	DueDate     *string   `json:"dueDate"`
	Description *string   `json:"description" binding:"omitempty,max=5000"`
	Priority    *string   `json:"priority"`
	Stage       *string   `json:"stage"`
	Team        *[]string `json:"team"`
	Assets      *[]string `json:"assets"`
	Tags        *[]string `json:"tags"`
}

type ActivityRequest struct {
	Type     string `json:"type" form:"type"`
	Activity string `json:"activity" form:"activity" binding:"max=2000"`
}

type StageRequest struct {
	Stage string `json:"stage" form:"stage"`
}

type TeamRequest struct {
	Action string `json:"action" form:"action"`
	UserID string `json:"userId" form:"userId"`
}

type SubTaskRequest struct {
	Title string `json:"title" form:"title" binding:"max=200"`
	Date  string `json:"date" form:"date"`
	Tag   string `json:"tag" form:"tag" binding:"max=64"`
}

type SubTaskDoneRequest struct {
	IsCompleted bool `json:"isCompleted" form:"isCompleted"`
}

// ListQuery narrows List; Trashed nil means both trashed and live tasks.
type ListQuery struct {
	Trashed *bool
	Stage   string
	Search  string
}

type DashboardQuery struct {
	Page   int
	Limit  int
	Search string
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

// parseDate accepts a plain calendar date or a full RFC 3339 timestamp.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, apperr.Validation("invalid %s %q", field, s)
}

func parsePriority(s string) (models.Priority, error) {
	if strings.TrimSpace(s) == "" {
		return models.PriorityMedium, nil
	}
	p, ok := models.ParsePriority(s)
	if !ok {
		return "", apperr.Validation("invalid priority %q", s)
	}

	return p, nil
}

func parseStage(s string) (models.Stage, error) {
	if strings.TrimSpace(s) == "" {
		return models.StageTodo, nil
	}
	st, ok := models.ParseStage(s)
	if !ok {
		return "", apperr.Validation("invalid stage %q", s)
	}

	return st, nil
}
