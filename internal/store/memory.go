package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"kyri56xcaesar/taskhub/internal/apperr"
	"kyri56xcaesar/taskhub/internal/models"
	"kyri56xcaesar/taskhub/internal/utils"
)

// Memory is a process-local Store used for development and tests.
// It mirrors the Postgres backend's semantics, including guarded updates.
type Memory struct {
	mu       sync.RWMutex
	seq      int64
	users    map[string]memUser
	tasks    map[string]memTask
	projects map[string]memProject
	notices  map[string]memNotice
	now      func() time.Time
}

type (
	memUser struct {
		models.User
		seq int64
	}
	memTask struct {
		models.Task
		seq int64
	}
	memProject struct {
		models.Project
		seq int64
	}
	memNotice struct {
		models.Notice
		seq int64
	}
)

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]memUser),
		tasks:    make(map[string]memTask),
		projects: make(map[string]memProject),
		notices:  make(map[string]memNotice),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {}

func (m *Memory) next() int64 {
	m.seq++
	return m.seq
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

func cloneTask(t models.Task) models.Task {
	t.Tags = cloneStrings(t.Tags)
	t.Assets = cloneStrings(t.Assets)
	t.Team = cloneStrings(t.Team)
	t.Activities = slices.Clone(t.Activities)
	if t.Activities == nil {
		t.Activities = []models.Activity{}
	}
	t.SubTasks = slices.Clone(t.SubTasks)
	if t.SubTasks == nil {
		t.SubTasks = []models.SubTask{}
	}
	return t
}

func cloneProject(p models.Project) models.Project {
	p.Team = cloneStrings(p.Team)
	p.Tasks = cloneStrings(p.Tasks)
	return p
}

func cloneNotice(n models.Notice) models.Notice {
	n.Team = cloneStrings(n.Team)
	n.IsRead = cloneStrings(n.IsRead)
	return n
}

// newestFirst sorts by insertion order, most recent first.
func newestFirst[T any](items []T, seq func(T) int64) {
	slices.SortFunc(items, func(a, b T) int { return cmp.Compare(seq(b), seq(a)) })
}

// --- users ---

func (m *Memory) emailTaken(email, exceptID string) bool {
	for _, u := range m.users {
		if u.ID != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (m *Memory) InsertUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.ID == "" {
		u.ID = newID()
	}
	if _, ok := m.users[u.ID]; ok {
		return apperr.Validation("duplicate value violates a unique constraint")
	}
	if m.emailTaken(u.Email, "") {
		return apperr.Validation("user with this email already exists")
	}
	now := m.now()
	u.CreatedAt, u.UpdatedAt = now, now
	m.users[u.ID] = memUser{User: *u, seq: m.next()}

	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return models.User{}, apperr.NotFound("user not found")
	}
	return u.User, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	email = strings.TrimSpace(email)
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u.User, nil
		}
	}
	return models.User{}, apperr.NotFound("user not found")
}

func (m *Memory) GetUserByExternalID(_ context.Context, subject string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if subject != "" && u.ExternalID == subject {
			return u.User, nil
		}
	}
	return models.User{}, apperr.NotFound("user not found")
}

func (m *Memory) UpdateUser(_ context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.users[u.ID]
	if !ok {
		return apperr.NotFound("user not found")
	}
	if m.emailTaken(u.Email, u.ID) {
		return apperr.Validation("user with this email already exists")
	}
	u.CreatedAt = cur.CreatedAt
	u.UpdatedAt = m.now()
	m.users[u.ID] = memUser{User: u, seq: cur.seq}

	return nil
}

func (m *Memory) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return apperr.NotFound("user not found")
	}
	delete(m.users, id)

	return nil
}

func (m *Memory) ListUsers(_ context.Context, limit int) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]memUser, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, u)
	}
	newestFirst(all, func(u memUser) int64 { return u.seq })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	out := make([]models.User, 0, len(all))
	for _, u := range all {
		out = append(out, u.User)
	}
	return out, nil
}

func (m *Memory) CountUsers(_ context.Context, ids []string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, id := range ids {
		if _, ok := m.users[id]; ok {
			n++
		}
	}
	return n, nil
}

func (m *Memory) LookupUsers(_ context.Context, ids []string) (map[string]models.UserRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]models.UserRef, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u.Ref()
		}
	}
	return out, nil
}

// --- tasks ---

func (m *Memory) insertNoticeLocked(n *models.Notice) {
	if n.ID == "" {
		n.ID = newID()
	}
	n.CreatedAt = m.now()
	n.Team = cloneStrings(n.Team)
	n.IsRead = cloneStrings(n.IsRead)
	m.notices[n.ID] = memNotice{Notice: cloneNotice(*n), seq: m.next()}
}

func (m *Memory) InsertTask(_ context.Context, t *models.Task, n *models.Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.ID == "" {
		t.ID = newID()
	}
	if _, ok := m.tasks[t.ID]; ok {
		return apperr.Validation("duplicate value violates a unique constraint")
	}
	for i := range t.SubTasks {
		if t.SubTasks[i].ID == "" {
			t.SubTasks[i].ID = newID()
		}
	}
	now := m.now()
	t.CreatedAt, t.UpdatedAt = now, now
	*t = cloneTask(*t)
	m.tasks[t.ID] = memTask{Task: cloneTask(*t), seq: m.next()}

	if n != nil {
		if n.TaskID == "" {
			n.TaskID = t.ID
		}
		m.insertNoticeLocked(n)
	}

	return nil
}

func (m *Memory) GetTask(_ context.Context, id string) (models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return models.Task{}, apperr.NotFound("task not found")
	}
	return cloneTask(t.Task), nil
}

// mutateTask applies fn to a copy of the task and stores the result only if fn succeeds.
func (m *Memory) mutateTask(id string, fn func(t *models.Task) error) (models.Task, error) {
	cur, ok := m.tasks[id]
	if !ok {
		return models.Task{}, apperr.NotFound("task not found")
	}

	t := cloneTask(cur.Task)
	if err := fn(&t); err != nil {
		return models.Task{}, err
	}
	t.UpdatedAt = m.now()
	m.tasks[id] = memTask{Task: t, seq: cur.seq}

	return cloneTask(t), nil
}

func (m *Memory) UpdateTask(_ context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	if patch.Empty() {
		return models.Task{}, apperr.Validation("no fields to update")
	}

	activities := slices.Clone(patch.Activities)
	for i := range activities {
		if activities[i].ID == "" {
			activities[i].ID = newID()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.mutateTask(id, func(t *models.Task) error {
		if patch.Title != nil {
			t.Title = *patch.Title
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.Priority != nil {
			t.Priority = *patch.Priority
		}
		if patch.Stage != nil {
			t.Stage = *patch.Stage
		}
		if patch.StartDate != nil {
			t.StartDate = *patch.StartDate
		}
		if patch.DueDate != nil {
			t.DueDate = *patch.DueDate
		}
		if patch.Tags != nil {
			t.Tags = cloneStrings(*patch.Tags)
		}
		if patch.Assets != nil {
			t.Assets = cloneStrings(*patch.Assets)
		}
		if patch.Team != nil {
			t.Team = cloneStrings(*patch.Team)
		}
		t.Activities = append(t.Activities, activities...)
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	for _, n := range patch.Notices {
		if n.TaskID == "" {
			n.TaskID = id
		}
		m.insertNoticeLocked(n)
	}

	return t, nil
}

func (m *Memory) SetTaskTrashed(_ context.Context, id string, trashed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.mutateTask(id, func(t *models.Task) error {
		t.IsTrashed = trashed
		return nil
	})
	return err
}

// deleteTaskLocked drops the task and clears notice references to it.
func (m *Memory) deleteTaskLocked(id string) {
	delete(m.tasks, id)
	for nid, n := range m.notices {
		if n.TaskID == id {
			n.TaskID = ""
			m.notices[nid] = n
		}
	}
}

func (m *Memory) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return apperr.NotFound("task not found")
	}
	m.deleteTaskLocked(id)

	return nil
}

func (m *Memory) DeleteTrashedTasks(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, t := range m.tasks {
		if t.IsTrashed {
			m.deleteTaskLocked(id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) RestoreTrashedTasks(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	now := m.now()
	for id, t := range m.tasks {
		if t.IsTrashed {
			t.IsTrashed = false
			t.UpdatedAt = now
			m.tasks[id] = t
			n++
		}
	}
	return n, nil
}

func (m *Memory) AppendActivity(_ context.Context, id string, a models.Activity) (models.Task, error) {
	if a.ID == "" {
		a.ID = newID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mutateTask(id, func(t *models.Task) error {
		t.Activities = append(t.Activities, a)
		return nil
	})
}

func (m *Memory) AddTeamMember(_ context.Context, id, userID string, a models.Activity, n *models.Notice) (models.Task, error) {
	if a.ID == "" {
		a.ID = newID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.mutateTask(id, func(t *models.Task) error {
		if t.HasMember(userID) {
			return apperr.Validation("user is already in the team")
		}
		t.Team = append(t.Team, userID)
		t.Activities = append(t.Activities, a)
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	if n != nil {
		m.insertNoticeLocked(n)
	}

	return t, nil
}

func (m *Memory) RemoveTeamMember(_ context.Context, id, userID string, a models.Activity, n *models.Notice) (models.Task, error) {
	if a.ID == "" {
		a.ID = newID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.mutateTask(id, func(t *models.Task) error {
		if !t.HasMember(userID) || t.CreatedBy == userID {
			return apperr.Validation("user is not in the team or is the task creator")
		}
		t.Team = utils.Without(t.Team, userID)
		t.Activities = append(t.Activities, a)
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	if n != nil {
		m.insertNoticeLocked(n)
	}

	return t, nil
}

func (m *Memory) AddSubTask(_ context.Context, id string, st models.SubTask) (models.Task, error) {
	if st.ID == "" {
		st.ID = newID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mutateTask(id, func(t *models.Task) error {
		t.SubTasks = append(t.SubTasks, st)
		return nil
	})
}

func (m *Memory) SetSubTaskDone(_ context.Context, id, subTaskID string, done bool) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mutateTask(id, func(t *models.Task) error {
		idx := slices.IndexFunc(t.SubTasks, func(st models.SubTask) bool { return st.ID == subTaskID })
		if idx < 0 {
			return apperr.NotFound("sub-task not found")
		}
		t.SubTasks[idx].IsCompleted = done
		return nil
	})
}

func matchTask(t models.Task, f models.TaskFilter) bool {
	if f.Member != "" && !t.HasMember(f.Member) {
		return false
	}
	if f.Trashed != nil && t.IsTrashed != *f.Trashed {
		return false
	}
	if f.Stage != "" && t.Stage != f.Stage {
		return false
	}
	if s := strings.TrimSpace(f.Search); s != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(s)) {
		return false
	}
	return true
}

func (m *Memory) filterTasks(f models.TaskFilter) []memTask {
	out := make([]memTask, 0)
	for _, t := range m.tasks {
		if matchTask(t.Task, f) {
			out = append(out, t)
		}
	}
	newestFirst(out, func(t memTask) int64 { return t.seq })
	return out
}

func (m *Memory) ListTasks(_ context.Context, f models.TaskFilter) ([]models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := m.filterTasks(f)
	if f.Limit > 0 {
		start := min(max(f.Offset, 0), len(matched))
		end := min(start+f.Limit, len(matched))
		matched = matched[start:end]
	}

	out := make([]models.Task, 0, len(matched))
	for _, t := range matched {
		out = append(out, cloneTask(t.Task))
	}
	return out, nil
}

func (m *Memory) SummarizeTasks(_ context.Context, f models.TaskFilter) (models.TaskSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := models.TaskSummary{
		ByStage:    make(map[models.Stage]int, len(models.Stages)),
		ByPriority: make(map[models.Priority]int, len(models.Priorities)),
	}
	for _, t := range m.tasks {
		if !matchTask(t.Task, f) {
			continue
		}
		sum.Total++
		sum.ByStage[t.Stage]++
		sum.ByPriority[t.Priority]++
	}
	return sum, nil
}

func (m *Memory) MemberTaskCounts(_ context.Context, userIDs []string) (map[string]models.StageCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]models.StageCounts, len(userIDs))
	for _, t := range m.tasks {
		if t.IsTrashed {
			continue
		}
		for _, uid := range userIDs {
			if t.HasMember(uid) {
				c := out[uid]
				c.Add(t.Stage)
				out[uid] = c
			}
		}
	}
	return out, nil
}

func (m *Memory) LookupTasks(_ context.Context, ids []string) (map[string]models.TaskRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]models.TaskRef, len(ids))
	for _, id := range ids {
		if t, ok := m.tasks[id]; ok {
			out[id] = models.TaskRef{ID: t.ID, Title: t.Title}
		}
	}
	return out, nil
}

// --- projects ---

func (m *Memory) InsertProject(_ context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = newID()
	}
	if _, ok := m.projects[p.ID]; ok {
		return apperr.Validation("duplicate value violates a unique constraint")
	}
	p.CreatedAt = m.now()
	*p = cloneProject(*p)
	m.projects[p.ID] = memProject{Project: cloneProject(*p), seq: m.next()}

	return nil
}

func (m *Memory) GetProject(_ context.Context, id string) (models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return models.Project{}, apperr.NotFound("project not found")
	}
	return cloneProject(p.Project), nil
}

func (m *Memory) mutateProject(id string, fn func(p *models.Project)) (models.Project, error) {
	cur, ok := m.projects[id]
	if !ok {
		return models.Project{}, apperr.NotFound("project not found")
	}
	p := cloneProject(cur.Project)
	fn(&p)
	m.projects[id] = memProject{Project: p, seq: cur.seq}

	return cloneProject(p), nil
}

func (m *Memory) UpdateProject(_ context.Context, id string, patch models.ProjectPatch) (models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mutateProject(id, func(p *models.Project) {
		if patch.Name != nil {
			p.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.Team != nil {
			p.Team = cloneStrings(*patch.Team)
		}
	})
}

func (m *Memory) DeleteProject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[id]; !ok {
		return apperr.NotFound("project not found")
	}
	delete(m.projects, id)

	return nil
}

func (m *Memory) ListProjects(context.Context) ([]models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]memProject, 0, len(m.projects))
	for _, p := range m.projects {
		all = append(all, p)
	}
	newestFirst(all, func(p memProject) int64 { return p.seq })

	out := make([]models.Project, 0, len(all))
	for _, p := range all {
		out = append(out, cloneProject(p.Project))
	}
	return out, nil
}

func (m *Memory) AttachTask(_ context.Context, projectID, taskID string) (models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mutateProject(projectID, func(p *models.Project) {
		if !slices.Contains(p.Tasks, taskID) {
			p.Tasks = append(p.Tasks, taskID)
		}
	})
}

func (m *Memory) DetachTask(_ context.Context, projectID, taskID string) (models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mutateProject(projectID, func(p *models.Project) {
		p.Tasks = utils.Without(p.Tasks, taskID)
	})
}

// --- notices ---

func (m *Memory) InsertNotice(_ context.Context, n *models.Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n.TaskID != "" {
		if _, ok := m.tasks[n.TaskID]; !ok {
			return apperr.Validation("referenced record not found")
		}
	}
	m.insertNoticeLocked(n)

	return nil
}

func (m *Memory) ListNotices(_ context.Context, userID string) ([]models.Notice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]memNotice, 0)
	for _, n := range m.notices {
		if n.AddressedTo(userID) {
			all = append(all, n)
		}
	}
	newestFirst(all, func(n memNotice) int64 { return n.seq })

	out := make([]models.Notice, 0, len(all))
	for _, n := range all {
		c := cloneNotice(n.Notice)
		if t, ok := m.tasks[c.TaskID]; ok {
			c.TaskTitle = t.Title
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *Memory) MarkAllNoticesRead(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for id, n := range m.notices {
		if n.AddressedTo(userID) && !n.ReadBy(userID) {
			n.IsRead = append(cloneStrings(n.IsRead), userID)
			m.notices[id] = n
			count++
		}
	}
	return count, nil
}

func (m *Memory) MarkNoticeRead(_ context.Context, userID, id string) (models.Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notices[id]
	if !ok || !n.AddressedTo(userID) || n.ReadBy(userID) {
		return models.Notice{}, apperr.NotFound("notification not found or already read")
	}
	n.IsRead = append(cloneStrings(n.IsRead), userID)
	m.notices[id] = n

	return cloneNotice(n.Notice), nil
}

func (m *Memory) DeleteAllNotices(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for id, n := range m.notices {
		if n.AddressedTo(userID) {
			delete(m.notices, id)
			count++
		}
	}
	return count, nil
}

func (m *Memory) DeleteNotice(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notices[id]
	if !ok || !n.AddressedTo(userID) {
		return apperr.NotFound("notification not found")
	}
	delete(m.notices, id)

	return nil
}
