package mtask

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"kyri56xcaesar/taskhub/internal/access"
	"kyri56xcaesar/taskhub/internal/apperr"
	"kyri56xcaesar/taskhub/internal/models"
	"kyri56xcaesar/taskhub/internal/store"
)

type fixture struct {
	store *store.Memory
	mgr   *Manager
	users map[string]models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: store.NewMemory(), users: map[string]models.User{}}
	f.mgr = NewManager(f.store, 20)

	add := func(id, name string, role access.Role, admin bool) {
		r, perms := access.Derive(role, admin)
		u := models.User{ID: id, Name: name, Email: id + "@example.com", Role: r, IsAdmin: admin, IsActive: true, Permissions: perms}
		if err := f.store.InsertUser(context.Background(), &u); err != nil {
			t.Fatalf("InsertUser(%s): %v", id, err)
		}
		f.users[id] = u
	}
	add("u1", "Ada", access.RoleUser, false)
	add("u2", "Grace", access.RoleUser, false)
	add("u3", "Linus", access.RoleUser, false)
	add("mgr", "Margaret", access.RoleManager, false)
	add("root", "Root", access.RoleAdmin, true)

	return f
}

func (f *fixture) id(userID string) access.Identity {
	return f.users[userID].Identity()
}

func (f *fixture) create(t *testing.T, by string, req CreateTaskRequest) TaskView {
	t.Helper()
	v, err := f.mgr.Create(context.Background(), f.id(by), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return v
}

func teamIDs(v TaskView) []string {
	out := make([]string, 0, len(v.Team))
	for _, r := range v.Team {
		out = append(out, r.ID)
	}
	return out
}

func TestCreateShipV1(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v := f.create(t, "u1", CreateTaskRequest{
		Title:     "Ship v1",
		StartDate: "2024-01-01",
		DueDate:   "2024-02-01",
		Priority:  "high",
		Team:      []string{"u1", "u2"},
	})

	if got := teamIDs(v); !slices.Equal(got, []string{"u1", "u2"}) {
		t.Fatalf("team = %v", got)
	}
	if v.CreatedBy.Name != "Ada" || v.Team[1].Email != "u2@example.com" {
		t.Fatalf("refs not expanded: %+v / %+v", v.CreatedBy, v.Team)
	}
	if v.Stage != models.StageTodo {
		t.Fatalf("stage = %q", v.Stage)
	}

	for _, uid := range []string{"u1", "u2"} {
		notices, _ := f.store.ListNotices(ctx, uid)
		if len(notices) != 1 {
			t.Fatalf("%s has %d notices", uid, len(notices))
		}
		n := notices[0]
		if !slices.Equal(n.Team, []string{"u1", "u2"}) || n.TaskID != v.ID {
			t.Fatalf("notice = %+v", n)
		}
		if !strings.Contains(n.Text, "and 1 others") || !strings.Contains(n.Text, "high priority") {
			t.Fatalf("text = %q", n.Text)
		}
	}
}

func TestCreateAddsCreatorAndDefaults(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, "u1", CreateTaskRequest{Title: "Solo", StartDate: "2024-01-01", DueDate: "2024-01-02", Team: []string{"u2", " u2 ", ""}})

	if got := teamIDs(v); !slices.Equal(got, []string{"u2", "u1"}) {
		t.Fatalf("team = %v", got)
	}
	if v.Priority != models.PriorityMedium {
		t.Fatalf("priority = %q", v.Priority)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateTaskRequest
	}{
		{"missing title", CreateTaskRequest{StartDate: "2024-01-01", DueDate: "2024-01-02"}},
		{"missing due", CreateTaskRequest{Title: "x", StartDate: "2024-01-01"}},
		{"bad date", CreateTaskRequest{Title: "x", StartDate: "yesterday", DueDate: "2024-01-02"}},
		{"bad priority", CreateTaskRequest{Title: "x", StartDate: "2024-01-01", DueDate: "2024-01-02", Priority: "urgent"}},
		{"bad stage", CreateTaskRequest{Title: "x", StartDate: "2024-01-01", DueDate: "2024-01-02", Stage: "blocked"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.mgr.Create(ctx, f.id("u1"), tt.req); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("err = %v", err)
			}
		})
	}

	all, _ := f.store.ListTasks(ctx, models.TaskFilter{})
	if len(all) != 0 {
		t.Fatalf("%d tasks persisted after failed creates", len(all))
	}
}

func TestCreateRequiresCapability(t *testing.T) {
	f := newFixture(t)
	noCreate := access.NewIdentity("u1", access.RoleUser, false, access.Permissions{})
	_, err := f.mgr.Create(context.Background(), noCreate, CreateTaskRequest{Title: "x", StartDate: "2024-01-01", DueDate: "2024-01-02"})
	if !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("err = %v", err)
	}
}

func TestDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.create(t, "u1", CreateTaskRequest{
		Title: "Ship v1", StartDate: "2024-01-01", DueDate: "2024-02-01",
		Priority: "low", Stage: "in progress", Team: []string{"u2"}, Assets: []string{"https://cdn/x.png"},
	})
	if _, err := f.mgr.AddSubTask(ctx, f.id("u1"), src.ID, SubTaskRequest{Title: "write notes", Tag: "docs"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.mgr.PostActivity(ctx, f.id("u2"), src.ID, ActivityRequest{Type: "commented", Activity: "lgtm"}); err != nil {
		t.Fatal(err)
	}

	dup, err := f.mgr.Duplicate(ctx, f.id("u1"), src.ID)
	if err != nil {
		t.Fatal(err)
	}
	if dup.ID == src.ID || dup.Title != "Ship v1 - Duplicate" {
		t.Fatalf("dup = %+v", dup.Task)
	}
	if len(dup.Activities) != 0 {
		t.Fatalf("activities copied: %+v", dup.Activities)
	}
	if !slices.Equal(dup.Task.Team, []string{"u2", "u1"}) || dup.Priority != models.PriorityLow ||
		dup.Stage != models.StageInProgress || len(dup.SubTasks) != 1 || len(dup.Assets) != 1 {
		t.Fatalf("dup fields = %+v", dup.Task)
	}

	notices, _ := f.store.ListNotices(ctx, "u2")
	if len(notices) != 2 || notices[0].TaskID != dup.ID || !strings.Contains(notices[0].Text, "and 1 others") {
		t.Fatalf("notices = %+v", notices)
	}

	byMgr, err := f.mgr.Duplicate(ctx, f.id("mgr"), src.ID)
	if err != nil {
		t.Fatal(err)
	}
	if byMgr.Task.CreatedBy != "mgr" || !slices.Equal(byMgr.Task.Team, []string{"u2", "u1", "mgr"}) {
		t.Fatalf("copy by another user: createdBy=%q team=%v", byMgr.Task.CreatedBy, byMgr.Task.Team)
	}
	if mine, _ := f.store.ListNotices(ctx, "mgr"); len(mine) != 1 || !strings.Contains(mine[0].Text, "and 2 others") {
		t.Fatalf("mgr notices = %+v", mine)
	}

	if _, err := f.mgr.Duplicate(ctx, f.id("u1"), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}
}

func TestPostActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.create(t, "u1", CreateTaskRequest{Title: "a", StartDate: "2024-01-01", DueDate: "2024-01-02"})

	if _, err := f.mgr.PostActivity(ctx, f.id("u3"), v.ID, ActivityRequest{Type: "bug"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("missing text: %v", err)
	}
	if _, err := f.mgr.PostActivity(ctx, f.id("u3"), "nope", ActivityRequest{Type: "bug", Activity: "x"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing task: %v", err)
	}

	got, err := f.mgr.PostActivity(ctx, f.id("u3"), v.ID, ActivityRequest{Type: "bug", Activity: "crashes on save"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Activities) != 1 || got.Activities[0].By.Name != "Linus" || got.Activities[0].Type != models.ActivityBug {
		t.Fatalf("activities = %+v", got.Activities)
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.create(t, "u1", CreateTaskRequest{Title: "a", StartDate: "2024-01-01", DueDate: "2024-01-02", Team: []string{"u2"}})

	title := "renamed"
	if _, err := f.mgr.Update(ctx, f.id("u3"), v.ID, UpdateTaskRequest{Title: &title}); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("non-member edit: %v", err)
	}

	got, err := f.mgr.Update(ctx, f.id("u2"), v.ID, UpdateTaskRequest{Title: &title})
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "renamed" || got.Description != v.Description || !slices.Equal(got.Task.Team, v.Task.Team) {
		t.Fatalf("partial update touched other fields: %+v", got.Task)
	}

	team := []string{"u3"}
	if _, err := f.mgr.Update(ctx, f.id("u2"), v.ID, UpdateTaskRequest{Team: &team}); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("team patch without assign: %v", err)
	}
	got, err = f.mgr.Update(ctx, f.id("mgr"), v.ID, UpdateTaskRequest{Team: &team})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got.Task.Team, []string{"u3", "u1"}) {
		t.Fatalf("team = %v", got.Task.Team)
	}

	if _, err := f.mgr.Update(ctx, f.id("root"), v.ID, UpdateTaskRequest{}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("empty patch: %v", err)
	}
	if _, err := f.mgr.Update(ctx, f.id("root"), "missing", UpdateTaskRequest{Title: &title}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}
}

func TestUpdateTeamPatchNotifiesChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.create(t, "u1", CreateTaskRequest{Title: "Ship v1", StartDate: "2024-01-01", DueDate: "2024-01-02", Team: []string{"u2"}})

	bad := []string{"u3", "ghost"}
	if _, err := f.mgr.Update(ctx, f.id("mgr"), v.ID, UpdateTaskRequest{Team: &bad}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("unknown member: %v", err)
	}
	task, _ := f.store.GetTask(ctx, v.ID)
	if !slices.Equal(task.Team, []string{"u2", "u1"}) || len(task.Activities) != 0 {
		t.Fatalf("rejected patch changed the task: team=%v activities=%d", task.Team, len(task.Activities))
	}

	team := []string{"u3"}
	got, err := f.mgr.Update(ctx, f.id("mgr"), v.ID, UpdateTaskRequest{Team: &team})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got.Task.Team, []string{"u3", "u1"}) || len(got.Activities) != 2 {
		t.Fatalf("after patch: team=%v activities=%+v", got.Task.Team, got.Activities)
	}
	if got.Activities[0].Activity.Activity != "Linus has been added to the team" ||
		got.Activities[1].Activity.Activity != "Grace has been removed from the team" ||
		got.Activities[0].By.Name != "Margaret" {
		t.Fatalf("activities = %+v", got.Activities)
	}

	added, _ := f.store.ListNotices(ctx, "u3")
	if len(added) != 1 || added[0].Text != "You have been added to the task: Ship v1" || added[0].TaskID != v.ID {
		t.Fatalf("u3 notices = %+v", added)
	}
	removed, _ := f.store.ListNotices(ctx, "u2")
	if len(removed) != 2 || removed[0].Text != "You have been removed from the task: Ship v1" {
		t.Fatalf("u2 notices = %+v", removed)
	}

	same := []string{"u1", "u3"}
	got, err = f.mgr.Update(ctx, f.id("mgr"), v.ID, UpdateTaskRequest{Team: &same})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Activities) != 2 {
		t.Fatalf("unchanged team logged activity: %+v", got.Activities)
	}
}

func TestChangeStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.create(t, "u1", CreateTaskRequest{Title: "a", StartDate: "2024-01-01", DueDate: "2024-01-02"})

	if _, err := f.mgr.ChangeStage(ctx, f.id("u1"), v.ID, "done"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad stage: %v", err)
	}
	got, err := f.mgr.ChangeStage(ctx, f.id("u1"), v.ID, "In Progress")
	if err != nil {
		t.Fatal(err)
	}
	if got.Stage != models.StageInProgress {
		t.Fatalf("stage = %q", got.Stage)
	}
}

func TestUpdateTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.create(t, "u1", CreateTaskRequest{Title: "Ship v1", StartDate: "2024-01-01", DueDate: "2024-01-02", Team: []string{"u2"}})
	admin := f.id("root")

	if _, err := f.mgr.UpdateTeam(ctx, f.id("mgr"), v.ID, TeamRequest{Action: "add", UserID: "u3"}); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("non-admin: %v", err)
	}
	if _, err := f.mgr.UpdateTeam(ctx, admin, v.ID, TeamRequest{Action: "swap", UserID: "u3"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad action: %v", err)
	}
	if _, err := f.mgr.UpdateTeam(ctx, admin, v.ID, TeamRequest{Action: "add", UserID: "ghost"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown user: %v", err)
	}

	before, _ := f.store.ListNotices(ctx, "u2")
	if _, err := f.mgr.UpdateTeam(ctx, admin, v.ID, TeamRequest{Action: "add", UserID: "u2"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("duplicate add: %v", err)
	}
	after, _ := f.store.ListNotices(ctx, "u2")
	task, _ := f.store.GetTask(ctx, v.ID)
	if len(after) != len(before) || len(task.Activities) != 0 || len(task.Team) != 2 {
		t.Fatalf("duplicate add changed state: team=%v activities=%d notices=%d", task.Team, len(task.Activities), len(after))
	}

	got, err := f.mgr.UpdateTeam(ctx, admin, v.ID, TeamRequest{Action: "add", UserID: "u3"})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(got.Task.Team, "u3") || len(got.Activities) != 1 ||
		got.Activities[0].Type != models.ActivityAssigned || got.Activities[0].Activity.Activity != "Linus has been added to the team" {
		t.Fatalf("after add: %+v", got)
	}
	notices, _ := f.store.ListNotices(ctx, "u3")
	if len(notices) != 1 || notices[0].Text != "You have been added to the task: Ship v1" || len(notices[0].Team) != 1 {
		t.Fatalf("u3 notices = %+v", notices)
	}

	if _, err := f.mgr.UpdateTeam(ctx, admin, v.ID, TeamRequest{Action: "remove", UserID: "mgr"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("remove non-member: %v", err)
	}
	if _, err := f.mgr.UpdateTeam(ctx, admin, v.ID, TeamRequest{Action: "remove", UserID: "u1"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("remove creator: %v", err)
	}
	got, err = f.mgr.UpdateTeam(ctx, admin, v.ID, TeamRequest{Action: "remove", UserID: "u3"})
	if err != nil {
		t.Fatal(err)
	}
	if slices.Contains(got.Task.Team, "u3") || got.Activities[1].Type != models.ActivityUpdated {
		t.Fatalf("after remove: %+v", got)
	}
}

func TestUpdateTeamConcurrentAdds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.create(t, "u1", CreateTaskRequest{Title: "race", StartDate: "2024-01-01", DueDate: "2024-01-02"})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.mgr.UpdateTeam(ctx, f.id("root"), v.ID, TeamRequest{Action: "add", UserID: "u2"}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	task, _ := f.store.GetTask(ctx, v.ID)
	if wins != 1 || len(task.Team) != 2 || len(task.Activities) != 1 {
		t.Fatalf("wins=%d team=%v activities=%d", wins, task.Team, len(task.Activities))
	}
	notices, _ := f.store.ListNotices(ctx, "u2")
	if len(notices) != 1 {
		t.Fatalf("u2 got %d notices", len(notices))
	}
}

func TestDeleteRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "u1", CreateTaskRequest{Title: "a", StartDate: "2024-01-01", DueDate: "2024-01-02"})
	b := f.create(t, "u1", CreateTaskRequest{Title: "b", StartDate: "2024-01-01", DueDate: "2024-01-02"})

	for _, id := range []string{a.ID, b.ID} {
		if err := f.mgr.Trash(ctx, f.id("u1"), id); err != nil {
			t.Fatal(err)
		}
	}
	trashed := true
	countTrashed := func() int {
		items, _ := f.store.ListTasks(ctx, models.TaskFilter{Trashed: &trashed})
		return len(items)
	}

	if _, err := f.mgr.DeleteRestore(ctx, f.id("u1"), "", ActionRestoreAll); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("non-admin restoreAll: %v", err)
	}
	if _, err := f.mgr.DeleteRestore(ctx, f.id("mgr"), "", ActionDeleteAll); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("non-admin deleteAll: %v", err)
	}
	if _, err := f.mgr.DeleteRestore(ctx, f.id("root"), a.ID, "purge"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad action: %v", err)
	}
	if n := countTrashed(); n != 2 {
		t.Fatalf("trashed = %d after rejected calls", n)
	}

	if _, err := f.mgr.DeleteRestore(ctx, f.id("u1"), a.ID, ActionDelete); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("delete without capability: %v", err)
	}
	if _, err := f.mgr.DeleteRestore(ctx, f.id("u1"), a.ID, ActionRestore); err != nil {
		t.Fatalf("member restore: %v", err)
	}
	if _, err := f.mgr.DeleteRestore(ctx, f.id("root"), b.ID, ActionDelete); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.GetTask(ctx, b.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("deleted task still present: %v", err)
	}

	if err := f.mgr.Trash(ctx, f.id("u1"), a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.mgr.DeleteRestore(ctx, f.id("root"), "", ActionRestoreAll); err != nil {
		t.Fatal(err)
	}
	if n := countTrashed(); n != 0 {
		t.Fatalf("trashed = %d after restoreAll", n)
	}
}

func TestListScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "u1", CreateTaskRequest{Title: "mine", StartDate: "2024-01-01", DueDate: "2024-01-02"})
	f.create(t, "u2", CreateTaskRequest{Title: "theirs", StartDate: "2024-01-01", DueDate: "2024-01-02"})

	mine, err := f.mgr.List(ctx, f.id("u1"), ListQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].Title != "mine" {
		t.Fatalf("user list = %+v", mine)
	}

	all, _ := f.mgr.List(ctx, f.id("mgr"), ListQuery{})
	if len(all) != 2 || all[0].Title != "theirs" {
		t.Fatalf("manager list = %d", len(all))
	}
}

func TestSubTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.create(t, "u1", CreateTaskRequest{Title: "a", StartDate: "2024-01-01", DueDate: "2024-01-02"})

	if _, err := f.mgr.AddSubTask(ctx, f.id("u3"), v.ID, SubTaskRequest{Title: "x"}); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("non-member: %v", err)
	}
	got, err := f.mgr.AddSubTask(ctx, f.id("u1"), v.ID, SubTaskRequest{Title: "draft", Date: "2024-01-01", Tag: "docs"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.SubTasks) != 1 || got.SubTasks[0].Date == nil {
		t.Fatalf("subtasks = %+v", got.SubTasks)
	}

	got, err = f.mgr.SetSubTaskDone(ctx, f.id("u1"), v.ID, got.SubTasks[0].ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if !got.SubTasks[0].IsCompleted {
		t.Fatal("sub-task not completed")
	}
	if _, err := f.mgr.SetSubTaskDone(ctx, f.id("u1"), v.ID, "nope", true); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing sub-task: %v", err)
	}
}
