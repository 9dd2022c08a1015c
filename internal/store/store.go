// Package store persists users, tasks, projects and notices.
//
// Every mutation is a single statement or a single transaction so a failed call
// leaves nothing half-written. Team membership and read-state changes use guarded
// updates (add-if-absent, remove-if-present) so concurrent callers cannot both win.
package store

import (
	"context"
	"fmt"
	"strings"

	"kyri56xcaesar/taskhub/internal/models"
)

type Store interface {
	Ping(ctx context.Context) error
	Close()

	InsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByExternalID(ctx context.Context, subject string) (models.User, error)
	UpdateUser(ctx context.Context, u models.User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, limit int) ([]models.User, error)
	CountUsers(ctx context.Context, ids []string) (int, error)
	LookupUsers(ctx context.Context, ids []string) (map[string]models.UserRef, error)

	InsertTask(ctx context.Context, t *models.Task, n *models.Notice) error
	GetTask(ctx context.Context, id string) (models.Task, error)
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
	SetTaskTrashed(ctx context.Context, id string, trashed bool) error
	DeleteTask(ctx context.Context, id string) error
	DeleteTrashedTasks(ctx context.Context) (int64, error)
	RestoreTrashedTasks(ctx context.Context) (int64, error)
	AppendActivity(ctx context.Context, id string, a models.Activity) (models.Task, error)
	AddTeamMember(ctx context.Context, id, userID string, a models.Activity, n *models.Notice) (models.Task, error)
	RemoveTeamMember(ctx context.Context, id, userID string, a models.Activity, n *models.Notice) (models.Task, error)
	AddSubTask(ctx context.Context, id string, st models.SubTask) (models.Task, error)
	SetSubTaskDone(ctx context.Context, id, subTaskID string, done bool) (models.Task, error)
	ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error)
	SummarizeTasks(ctx context.Context, f models.TaskFilter) (models.TaskSummary, error)
	MemberTaskCounts(ctx context.Context, userIDs []string) (map[string]models.StageCounts, error)
	LookupTasks(ctx context.Context, ids []string) (map[string]models.TaskRef, error)

	InsertProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (models.Project, error)
	UpdateProject(ctx context.Context, id string, patch models.ProjectPatch) (models.Project, error)
	DeleteProject(ctx context.Context, id string) error
	ListProjects(ctx context.Context) ([]models.Project, error)
	AttachTask(ctx context.Context, projectID, taskID string) (models.Project, error)
	DetachTask(ctx context.Context, projectID, taskID string) (models.Project, error)

	InsertNotice(ctx context.Context, n *models.Notice) error
	ListNotices(ctx context.Context, userID string) ([]models.Notice, error)
	MarkAllNoticesRead(ctx context.Context, userID string) (int64, error)
	MarkNoticeRead(ctx context.Context, userID, id string) (models.Notice, error)
	DeleteAllNotices(ctx context.Context, userID string) (int64, error)
	DeleteNotice(ctx context.Context, userID, id string) error
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*Memory)(nil)
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open returns the backend named by driver. dsn is ignored for the memory driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case DriverPostgres, "":
		return NewPostgres(ctx, dsn)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
