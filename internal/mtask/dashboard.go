package mtask

import (
	"context"
	"strings"

	"kyri56xcaesar/taskhub/internal/access"
	"kyri56xcaesar/taskhub/internal/models"
	"kyri56xcaesar/taskhub/internal/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	recentUsers     = 10
)

type StageTotals struct {
	Todo       int `json:"todo"`
	InProgress int `json:"in progress"`
	Completed  int `json:"completed"`
}

type GraphPoint struct {
	Name  string `json:"name"`
	Total int    `json:"total"`
}

// Dashboard is computed over the whole filtered scope; only Tasks is paged.
type Dashboard struct {
	TotalTasks   int           `json:"totalTask"`
	Tasks        []TaskView    `json:"tasks"`
	Users        []models.User `json:"users"`
	TasksByStage StageTotals   `json:"tasksByStage"`
	GraphData    []GraphPoint  `json:"graphData"`
	CurrentPage  int           `json:"currentPage"`
	TotalPages   int           `json:"totalPages"`
}

// Dashboard covers every live task for admins and only the caller's teams otherwise.
func (m *Manager) Dashboard(ctx context.Context, id access.Identity, q DashboardQuery) (Dashboard, error) {
	page := max(q.Page, 1)
	limit := utils.NormalizeLimit(q.Limit, m.pageSize, maxPageSize)

	trashed := false
	f := models.TaskFilter{Trashed: &trashed, Search: strings.TrimSpace(q.Search)}
	if !id.IsAdmin {
		f.Member = id.UserID
	}

	sum, err := m.store.SummarizeTasks(ctx, f)
	if err != nil {
		return Dashboard{}, err
	}

	f.Offset, f.Limit = (page-1)*limit, limit
	tasks, err := m.store.ListTasks(ctx, f)
	if err != nil {
		return Dashboard{}, err
	}
	views, err := m.views(ctx, tasks)
	if err != nil {
		return Dashboard{}, err
	}

	users := []models.User{}
	if id.IsAdmin {
		if users, err = m.store.ListUsers(ctx, recentUsers); err != nil {
			return Dashboard{}, err
		}
	}

	graph := make([]GraphPoint, 0, len(models.Priorities))
	for _, p := range models.Priorities {
		if n := sum.ByPriority[p]; n > 0 {
			graph = append(graph, GraphPoint{Name: string(p), Total: n})
		}
	}

	return Dashboard{
		TotalTasks: sum.Total,
		Tasks:      views,
		Users:      users,
		TasksByStage: StageTotals{
			Todo:       sum.ByStage[models.StageTodo],
			InProgress: sum.ByStage[models.StageInProgress],
			Completed:  sum.ByStage[models.StageCompleted],
		},
		GraphData:   graph,
		CurrentPage: page,
		TotalPages:  utils.Pages(sum.Total, limit),
	}, nil
}
