// Package mproject manages projects: admin-owned containers of a team and a set of tasks.
package mproject

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"kyri56xcaesar/taskhub/internal/access"
	"kyri56xcaesar/taskhub/internal/apperr"
	"kyri56xcaesar/taskhub/internal/models"
	"kyri56xcaesar/taskhub/internal/utils"
)

type Store interface {
	CountUsers(ctx context.Context, ids []string) (int, error)
	LookupUsers(ctx context.Context, ids []string) (map[string]models.UserRef, error)
	GetTask(ctx context.Context, id string) (models.Task, error)
	LookupTasks(ctx context.Context, ids []string) (map[string]models.TaskRef, error)

	InsertProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (models.Project, error)
	UpdateProject(ctx context.Context, id string, patch models.ProjectPatch) (models.Project, error)
	DeleteProject(ctx context.Context, id string) error
	ListProjects(ctx context.Context) ([]models.Project, error)
	AttachTask(ctx context.Context, projectID, taskID string) (models.Project, error)
	DetachTask(ctx context.Context, projectID, taskID string) (models.Project, error)
}

type Manager struct {
	store Store
}

func NewManager(s Store) *Manager {
	return &Manager{store: s}
}

func (m *Manager) Create(ctx context.Context, id access.Identity, req CreateProjectRequest) (ProjectView, error) {
	if !access.CanManageProjects(id) {
		return ProjectView{}, apperr.Forbidden("only admin users can create projects")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return ProjectView{}, apperr.Validation("project name is required")
	}

	p := models.Project{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Team:        []string{id.UserID},
		Tasks:       []string{},
		CreatedBy:   id.UserID,
	}
	if err := m.store.InsertProject(ctx, &p); err != nil {
		return ProjectView{}, err
	}

	slog.InfoContext(ctx, "project created", "project_id", p.ID, "by", id.UserID)

	return m.view(ctx, p)
}

// Update merges name and description. A team in the request replaces the current
// team wholesale once every member resolves; the caller is always kept on it.
func (m *Manager) Update(ctx context.Context, id access.Identity, projectID string, req UpdateProjectRequest) (ProjectView, error) {
	if !access.CanUpdateProject(id) {
		return ProjectView{}, apperr.Forbidden("only admin or manager users with permission can edit projects")
	}
	if _, err := m.store.GetProject(ctx, projectID); err != nil {
		return ProjectView{}, err
	}

	var patch models.ProjectPatch
	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != "" {
			patch.Name = &name
		}
	}
	if req.Description != nil && *req.Description != "" {
		patch.Description = req.Description
	}
	if req.Team != nil {
		team := make([]string, 0, len(*req.Team)+1)
		for _, member := range *req.Team {
			if member != nil {
				team = append(team, *member)
			}
		}
		team = utils.Uniq(team)
		if !slices.Contains(team, id.UserID) {
			team = append(team, id.UserID)
		}

		n, err := m.store.CountUsers(ctx, team)
		if err != nil {
			return ProjectView{}, err
		}
		if n != len(team) {
			return ProjectView{}, apperr.Validation("one or more team members are invalid")
		}
		patch.Team = &team
	}

	p, err := m.store.UpdateProject(ctx, projectID, patch)
	if err != nil {
		return ProjectView{}, err
	}

	return m.view(ctx, p)
}

func (m *Manager) Delete(ctx context.Context, id access.Identity, projectID string) error {
	if !access.CanManageProjects(id) {
		return apperr.Forbidden("only admin users can delete projects")
	}

	return m.store.DeleteProject(ctx, projectID)
}

func (m *Manager) ListAll(ctx context.Context) ([]ProjectView, error) {
	projects, err := m.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	return m.views(ctx, projects)
}

// AttachTask links an existing task to the project; linking twice is a no-op.
func (m *Manager) AttachTask(ctx context.Context, id access.Identity, projectID, taskID string) (ProjectView, error) {
	if !access.CanUpdateProject(id) {
		return ProjectView{}, apperr.Forbidden("only admin or manager users with permission can edit projects")
	}
	if _, err := m.store.GetTask(ctx, taskID); err != nil {
		return ProjectView{}, err
	}

	p, err := m.store.AttachTask(ctx, projectID, taskID)
	if err != nil {
		return ProjectView{}, err
	}

	return m.view(ctx, p)
}

func (m *Manager) DetachTask(ctx context.Context, id access.Identity, projectID, taskID string) (ProjectView, error) {
	if !access.CanUpdateProject(id) {
		return ProjectView{}, apperr.Forbidden("only admin or manager users with permission can edit projects")
	}

	p, err := m.store.DetachTask(ctx, projectID, taskID)
	if err != nil {
		return ProjectView{}, err
	}

	return m.view(ctx, p)
}

func (m *Manager) view(ctx context.Context, p models.Project) (ProjectView, error) {
	v, err := m.views(ctx, []models.Project{p})
	if err != nil {
		return ProjectView{}, err
	}

	return v[0], nil
}

// views drops references to tasks that no longer exist and keeps bare ids for missing users.
func (m *Manager) views(ctx context.Context, projects []models.Project) ([]ProjectView, error) {
	var userIDs, taskIDs []string
	for _, p := range projects {
		userIDs = append(userIDs, p.Team...)
		taskIDs = append(taskIDs, p.Tasks...)
	}

	users, err := m.store.LookupUsers(ctx, utils.Uniq(userIDs))
	if err != nil {
		return nil, err
	}
	tasks, err := m.store.LookupTasks(ctx, utils.Uniq(taskIDs))
	if err != nil {
		return nil, err
	}

	out := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		v := ProjectView{
			Project: p,
			Team:    make([]models.UserRef, 0, len(p.Team)),
			Tasks:   make([]models.TaskRef, 0, len(p.Tasks)),
		}
		for _, uid := range p.Team {
			if r, ok := users[uid]; ok {
				v.Team = append(v.Team, r)
			} else {
				v.Team = append(v.Team, models.UserRef{ID: uid})
			}
		}
		for _, tid := range p.Tasks {
			if r, ok := tasks[tid]; ok {
				v.Tasks = append(v.Tasks, r)
			}
		}
		out = append(out, v)
	}

	return out, nil
}
