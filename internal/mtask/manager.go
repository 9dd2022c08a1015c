// Package mtask owns the task lifecycle: creation, duplication, activity log,
// partial updates, team membership, trash/restore, sub-tasks and the dashboard.
package mtask

import (
	"context"
	"slices"
	"strings"
	"time"

	"kyri56xcaesar/taskhub/internal/access"
	"kyri56xcaesar/taskhub/internal/apperr"
	"kyri56xcaesar/taskhub/internal/mnotice"
	"kyri56xcaesar/taskhub/internal/models"
	"kyri56xcaesar/taskhub/internal/utils"
)

type Store interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	ListUsers(ctx context.Context, limit int) ([]models.User, error)
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
}

type Manager struct {
	store    Store
	now      func() time.Time
	pageSize int
}

func NewManager(s Store, pageSize int) *Manager {
	return &Manager{
		store:    s,
		now:      func() time.Time { return time.Now().UTC() },
		pageSize: utils.NormalizeLimit(pageSize, defaultPageSize, maxPageSize),
	}
}

// loadFor fetches a task and checks action against it.
func (m *Manager) loadFor(ctx context.Context, id access.Identity, taskID string, action access.Action) (models.Task, error) {
	t, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	if !access.Can(id, action, access.TaskScope{Team: t.Team}) {
		return models.Task{}, apperr.Forbidden("you don't have permission to %s this task", action)
	}

	return t, nil
}

// withCreator normalizes a team list and guarantees the creator is on it.
func withCreator(team []string, creator string) []string {
	team = utils.Uniq(team)
	if !slices.Contains(team, creator) {
		team = append(team, creator)
	}

	return team
}

func (m *Manager) Create(ctx context.Context, id access.Identity, req CreateTaskRequest) (TaskView, error) {
	if !access.Can(id, access.ActionCreate, access.TaskScope{}) {
		return TaskView{}, apperr.Forbidden("you don't have permission to create tasks")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" || strings.TrimSpace(req.StartDate) == "" || strings.TrimSpace(req.DueDate) == "" {
		return TaskView{}, apperr.Validation("please provide all required fields: title, startDate, and dueDate")
	}
	start, err := parseDate("startDate", req.StartDate)
	if err != nil {
		return TaskView{}, err
	}
	due, err := parseDate("dueDate", req.DueDate)
	if err != nil {
		return TaskView{}, err
	}
	priority, err := parsePriority(req.Priority)
	if err != nil {
		return TaskView{}, err
	}
	stage, err := parseStage(req.Stage)
	if err != nil {
		return TaskView{}, err
	}

	t := models.Task{
		Title:       title,
		StartDate:   start,
		DueDate:     due,
		Description: strings.TrimSpace(req.Description),
		Priority:    priority,
		Stage:       stage,
		Tags:        utils.Uniq(req.Tags),
		Assets:      utils.Uniq(req.Assets),
		Team:        withCreator(req.Team, id.UserID),
		CreatedBy:   id.UserID,
	}

	n, err := mnotice.Prepare(mnotice.TaskAssigned(t.Team, t.Priority, t.DueDate, ""))
	if err != nil {
		return TaskView{}, err
	}
	if err := m.store.InsertTask(ctx, &t, &n); err != nil {
		return TaskView{}, err
	}

	return m.view(ctx, t)
}

// Duplicate copies everything but the activity log. The caller owns the copy and
// joins its team.
func (m *Manager) Duplicate(ctx context.Context, id access.Identity, taskID string) (TaskView, error) {
	if !access.Can(id, access.ActionCreate, access.TaskScope{}) {
		return TaskView{}, apperr.Forbidden("you don't have permission to create tasks")
	}

	src, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return TaskView{}, err
	}

	dup := models.Task{
		Title:       src.Title + " - Duplicate",
		StartDate:   src.StartDate,
		DueDate:     src.DueDate,
		Description: src.Description,
		Priority:    src.Priority,
		Stage:       src.Stage,
		Tags:        slices.Clone(src.Tags),
		Assets:      slices.Clone(src.Assets),
		Team:        withCreator(slices.Clone(src.Team), id.UserID),
		CreatedBy:   id.UserID,
	}
	for _, st := range src.SubTasks {
		st.ID = ""
		dup.SubTasks = append(dup.SubTasks, st)
	}

	n, err := mnotice.Prepare(mnotice.TaskAssigned(dup.Team, dup.Priority, dup.DueDate, ""))
	if err != nil {
		return TaskView{}, err
	}
	if err := m.store.InsertTask(ctx, &dup, &n); err != nil {
		return TaskView{}, err
	}

	return m.view(ctx, dup)
}

func (m *Manager) PostActivity(ctx context.Context, id access.Identity, taskID string, req ActivityRequest) (TaskView, error) {
	text := strings.TrimSpace(req.Activity)
	if strings.TrimSpace(req.Type) == "" || text == "" {
		return TaskView{}, apperr.Validation("type and activity are required")
	}
	typ, ok := models.ParseActivityType(req.Type)
	if !ok {
		return TaskView{}, apperr.Validation("invalid activity type %q", req.Type)
	}

	if _, err := m.loadFor(ctx, id, taskID, access.ActionView); err != nil {
		return TaskView{}, err
	}

	t, err := m.store.AppendActivity(ctx, taskID, models.Activity{
		Type:     typ,
		Activity: text,
		By:       id.UserID,
		Date:     m.now(),
	})
	if err != nil {
		return TaskView{}, err
	}

	return m.view(ctx, t)
}

// Update applies only the supplied fields. Changing the team also needs the assign capability,
// the creator always stays on it, and every added or removed member is notified.
func (m *Manager) Update(ctx context.Context, id access.Identity, taskID string, req UpdateTaskRequest) (TaskView, error) {
	cur, err := m.loadFor(ctx, id, taskID, access.ActionEdit)
	if err != nil {
		return TaskView{}, err
	}

	var patch models.TaskPatch
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return TaskView{}, apperr.Validation("title must not be empty")
		}
		patch.Title = &title
	}
	if req.Description != nil {
		d := strings.TrimSpace(*req.Description)
		patch.Description = &d
	}
	if req.Priority != nil {
		p, ok := models.ParsePriority(*req.Priority)
		if !ok {
			return TaskView{}, apperr.Validation("invalid priority %q", *req.Priority)
		}
		patch.Priority = &p
	}
	if req.Stage != nil {
		st, ok := models.ParseStage(*req.Stage)
		if !ok {
			return TaskView{}, apperr.Validation("invalid stage %q", *req.Stage)
		}
		patch.Stage = &st
	}
	if req.StartDate != nil {
		d, err := parseDate("startDate", *req.StartDate)
		if err != nil {
			return TaskView{}, err
		}
		patch.StartDate = &d
	}
	if req.DueDate != nil {
		d, err := parseDate("dueDate", *req.DueDate)
		if err != nil {
			return TaskView{}, err
		}
		patch.DueDate = &d
	}
	if req.Tags != nil {
		tags := utils.Uniq(*req.Tags)
		patch.Tags = &tags
	}
	if req.Assets != nil {
		assets := utils.Uniq(*req.Assets)
		patch.Assets = &assets
	}
	if req.Team != nil {
		if !access.Can(id, access.ActionAssign, access.TaskScope{Team: cur.Team}) {
			return TaskView{}, apperr.Forbidden("you don't have permission to assign this task")
		}
		team := withCreator(*req.Team, cur.CreatedBy)
		patch.Team = &team
		if err := m.teamDiff(ctx, id, cur, team, &patch); err != nil {
			return TaskView{}, err
		}
	}

	if patch.Empty() {
		return TaskView{}, apperr.Validation("provide fields to update")
	}

	t, err := m.store.UpdateTask(ctx, taskID, patch)
	if err != nil {
		return TaskView{}, err
	}

	return m.view(ctx, t)
}

// teamDiff records an activity and a notice for every member added or removed by a
// wholesale team replacement. Added members must exist.
func (m *Manager) teamDiff(ctx context.Context, id access.Identity, cur models.Task, team []string, patch *models.TaskPatch) error {
	added := utils.Filter(team, func(u string) bool { return !cur.HasMember(u) })
	removed := utils.Filter(cur.Team, func(u string) bool { return !slices.Contains(team, u) })
	if len(added) == 0 && len(removed) == 0 {
		return nil
	}

	refs, err := m.store.LookupUsers(ctx, append(slices.Clone(added), removed...))
	if err != nil {
		return err
	}
	for _, u := range added {
		if _, ok := refs[u]; !ok {
			return apperr.Validation("one or more team members are invalid")
		}
	}
	name := func(u string) string {
		if r, ok := refs[u]; ok && r.Name != "" {
			return r.Name
		}
		return u
	}

	now := m.now()
	for _, u := range added {
		n, err := mnotice.Prepare(mnotice.AddedToTask(u, cur.Title, cur.ID))
		if err != nil {
			return err
		}
		patch.Notices = append(patch.Notices, &n)
		patch.Activities = append(patch.Activities, models.Activity{
			Type:     models.ActivityAssigned,
			Activity: name(u) + " has been added to the team",
			By:       id.UserID,
			Date:     now,
		})
	}
	for _, u := range removed {
		n, err := mnotice.Prepare(mnotice.RemovedFromTask(u, cur.Title, cur.ID))
		if err != nil {
			return err
		}
		patch.Notices = append(patch.Notices, &n)
		patch.Activities = append(patch.Activities, models.Activity{
			Type:     models.ActivityUpdated,
			Activity: name(u) + " has been removed from the team",
			By:       id.UserID,
			Date:     now,
		})
	}

	return nil
}

func (m *Manager) ChangeStage(ctx context.Context, id access.Identity, taskID, stage string) (TaskView, error) {
	st, ok := models.ParseStage(stage)
	if !ok {
		return TaskView{}, apperr.Validation("invalid stage %q", stage)
	}
	if _, err := m.loadFor(ctx, id, taskID, access.ActionEdit); err != nil {
		return TaskView{}, err
	}

	t, err := m.store.UpdateTask(ctx, taskID, models.TaskPatch{Stage: &st})
	if err != nil {
		return TaskView{}, err
	}

	return m.view(ctx, t)
}

func (m *Manager) Trash(ctx context.Context, id access.Identity, taskID string) error {
	if _, err := m.loadFor(ctx, id, taskID, access.ActionEdit); err != nil {
		return err
	}

	return m.store.SetTaskTrashed(ctx, taskID, true)
}

// DeleteRestore dispatches on action. Bulk actions are admin-only and ignore taskID.
// It returns the human readable outcome.
func (m *Manager) DeleteRestore(ctx context.Context, id access.Identity, taskID, action string) (string, error) {
	switch action {
	case ActionDelete:
		if _, err := m.loadFor(ctx, id, taskID, access.ActionDelete); err != nil {
			return "", err
		}
		if err := m.store.DeleteTask(ctx, taskID); err != nil {
			return "", err
		}
		return "Task deleted successfully.", nil

	case ActionDeleteAll:
		if !id.IsAdmin {
			return "", apperr.Forbidden("only administrators can delete all tasks")
		}
		if _, err := m.store.DeleteTrashedTasks(ctx); err != nil {
			return "", err
		}
		return "All trashed tasks deleted successfully.", nil

	case ActionRestore:
		if _, err := m.loadFor(ctx, id, taskID, access.ActionEdit); err != nil {
			return "", err
		}
		if err := m.store.SetTaskTrashed(ctx, taskID, false); err != nil {
			return "", err
		}
		return "Task restored successfully.", nil

	case ActionRestoreAll:
		if !id.IsAdmin {
			return "", apperr.Forbidden("only administrators can restore all tasks")
		}
		if _, err := m.store.RestoreTrashedTasks(ctx); err != nil {
			return "", err
		}
		return "All trashed tasks restored successfully.", nil

	default:
		return "", apperr.Validation("invalid action type")
	}
}

// UpdateTeam adds or removes a single member. The membership check and the write
// happen in one guarded store call, so a concurrent duplicate add fails cleanly.
func (m *Manager) UpdateTeam(ctx context.Context, id access.Identity, taskID string, req TeamRequest) (TaskView, error) {
	if !id.IsAdmin {
		return TaskView{}, apperr.Forbidden("only administrators can modify team members")
	}
	if req.Action != TeamAdd && req.Action != TeamRemove {
		return TaskView{}, apperr.Validation("invalid action, use 'add' or 'remove'")
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return TaskView{}, apperr.Validation("userId is required")
	}

	t, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return TaskView{}, err
	}
	member, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return TaskView{}, err
	}

	var updated models.Task
	if req.Action == TeamAdd {
		if t.HasMember(userID) {
			return TaskView{}, apperr.Validation("user is already in the team")
		}
		n, err := mnotice.Prepare(mnotice.AddedToTask(userID, t.Title, t.ID))
		if err != nil {
			return TaskView{}, err
		}
		updated, err = m.store.AddTeamMember(ctx, taskID, userID, models.Activity{
			Type:     models.ActivityAssigned,
			Activity: member.Name + " has been added to the team",
			By:       id.UserID,
			Date:     m.now(),
		}, &n)
		if err != nil {
			return TaskView{}, err
		}
	} else {
		if !t.HasMember(userID) {
			return TaskView{}, apperr.Validation("user is not in the team")
		}
		if t.CreatedBy == userID {
			return TaskView{}, apperr.Validation("the task creator cannot be removed from the team")
		}
		n, err := mnotice.Prepare(mnotice.RemovedFromTask(userID, t.Title, t.ID))
		if err != nil {
			return TaskView{}, err
		}
		updated, err = m.store.RemoveTeamMember(ctx, taskID, userID, models.Activity{
			Type:     models.ActivityUpdated,
			Activity: member.Name + " has been removed from the team",
			By:       id.UserID,
			Date:     m.now(),
		}, &n)
		if err != nil {
			return TaskView{}, err
		}
	}

	return m.view(ctx, updated)
}

func (m *Manager) Get(ctx context.Context, id access.Identity, taskID string) (TaskView, error) {
	t, err := m.loadFor(ctx, id, taskID, access.ActionView)
	if err != nil {
		return TaskView{}, err
	}

	return m.view(ctx, t)
}

// List returns matching tasks newest first, limited to the caller's teams unless
// they may view every task.
func (m *Manager) List(ctx context.Context, id access.Identity, q ListQuery) ([]TaskView, error) {
	f := models.TaskFilter{Trashed: q.Trashed, Search: q.Search}
	if q.Stage != "" {
		st, ok := models.ParseStage(q.Stage)
		if !ok {
			return nil, apperr.Validation("invalid stage %q", q.Stage)
		}
		f.Stage = st
	}
	if !access.CanViewAllTasks(id) {
		f.Member = id.UserID
	}

	tasks, err := m.store.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}

	return m.views(ctx, tasks)
}

func (m *Manager) AddSubTask(ctx context.Context, id access.Identity, taskID string, req SubTaskRequest) (TaskView, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return TaskView{}, apperr.Validation("sub-task title is required")
	}
	st := models.SubTask{Title: title, Tag: strings.TrimSpace(req.Tag)}
	if strings.TrimSpace(req.Date) != "" {
		d, err := parseDate("date", req.Date)
		if err != nil {
			return TaskView{}, err
		}
		st.Date = &d
	}

	if _, err := m.loadFor(ctx, id, taskID, access.ActionEdit); err != nil {
		return TaskView{}, err
	}

	t, err := m.store.AddSubTask(ctx, taskID, st)
	if err != nil {
		return TaskView{}, err
	}

	return m.view(ctx, t)
}

func (m *Manager) SetSubTaskDone(ctx context.Context, id access.Identity, taskID, subTaskID string, done bool) (TaskView, error) {
	if _, err := m.loadFor(ctx, id, taskID, access.ActionEdit); err != nil {
		return TaskView{}, err
	}

	t, err := m.store.SetSubTaskDone(ctx, taskID, subTaskID, done)
	if err != nil {
		return TaskView{}, err
	}

	return m.view(ctx, t)
}
