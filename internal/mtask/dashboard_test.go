package mtask

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"kyri56xcaesar/taskhub/internal/apperr"
)

func TestDashboardScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := range 5 {
		f.create(t, "u1", CreateTaskRequest{
			Title: fmt.Sprintf("alpha %d", i), StartDate: "2024-01-01", DueDate: "2024-01-02", Priority: "high",
		})
	}
	shared := f.create(t, "u2", CreateTaskRequest{Title: "beta", StartDate: "2024-01-01", DueDate: "2024-01-02", Team: []string{"u1"}, Priority: "low"})
	gone := f.create(t, "u2", CreateTaskRequest{Title: "gamma", StartDate: "2024-01-01", DueDate: "2024-01-02"})
	if err := f.mgr.Trash(ctx, f.id("u2"), gone.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.mgr.ChangeStage(ctx, f.id("u2"), shared.ID, "completed"); err != nil {
		t.Fatal(err)
	}

	d, err := f.mgr.Dashboard(ctx, f.id("u1"), DashboardQuery{Page: 2, Limit: 4})
	if err != nil {
		t.Fatal(err)
	}
	if d.TotalTasks != 6 || len(d.Tasks) != 2 || d.CurrentPage != 2 || d.TotalPages != 2 {
		t.Fatalf("paging: total=%d page=%d/%d tasks=%d", d.TotalTasks, d.CurrentPage, d.TotalPages, len(d.Tasks))
	}
	if d.TasksByStage.Todo != 5 || d.TasksByStage.Completed != 1 {
		t.Fatalf("stages = %+v", d.TasksByStage)
	}
	if len(d.GraphData) != 2 || d.GraphData[0] != (GraphPoint{Name: "high", Total: 5}) || d.GraphData[1] != (GraphPoint{Name: "low", Total: 1}) {
		t.Fatalf("graph = %+v", d.GraphData)
	}
	if len(d.Users) != 0 {
		t.Fatalf("non-admin sees users: %d", len(d.Users))
	}

	d, _ = f.mgr.Dashboard(ctx, f.id("u2"), DashboardQuery{})
	if d.TotalTasks != 1 || d.CurrentPage != 1 {
		t.Fatalf("u2 total = %d", d.TotalTasks)
	}

	d, _ = f.mgr.Dashboard(ctx, f.id("root"), DashboardQuery{Search: "ALPHA"})
	if d.TotalTasks != 5 || len(d.Users) != 5 {
		t.Fatalf("admin search: total=%d users=%d", d.TotalTasks, len(d.Users))
	}
	if d.Users[0].ID != "root" {
		t.Fatalf("users not newest first: %s", d.Users[0].ID)
	}
}

func TestAnalytics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.create(t, "u1", CreateTaskRequest{Title: "a", StartDate: "2024-01-01", DueDate: "2024-01-02", Team: []string{"u2"}})
	f.create(t, "u1", CreateTaskRequest{Title: "b", StartDate: "2024-01-01", DueDate: "2024-01-02"})
	if _, err := f.mgr.ChangeStage(ctx, f.id("u1"), v.ID, "completed"); err != nil {
		t.Fatal(err)
	}

	if _, err := f.mgr.TaskStats(ctx, f.id("mgr")); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("non-admin stats: %v", err)
	}

	stats, err := f.mgr.TaskStats(ctx, f.id("root"))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.Completed != 1 || stats.Todo != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	act, err := f.mgr.UserActivity(ctx, f.id("root"))
	if err != nil {
		t.Fatal(err)
	}
	byUser := map[string]UserActivity{}
	for _, a := range act {
		byUser[a.User.ID] = a
	}
	if len(byUser) != 2 || byUser["u1"].CompletionRate != 50 || byUser["u2"].CompletionRate != 100 {
		t.Fatalf("activity = %+v", act)
	}
}
