package mtask

import (
	"context"
	"math"

	"kyri56xcaesar/taskhub/internal/access"
	"kyri56xcaesar/taskhub/internal/apperr"
	"kyri56xcaesar/taskhub/internal/models"
)

type UserActivity struct {
	User           models.UserRef `json:"user"`
	TaskCount      int            `json:"taskCount"`
	CompletedCount int            `json:"completedCount"`
	CompletionRate float64        `json:"completionRate"`
}

// TaskStats counts live tasks per stage across the whole system.
func (m *Manager) TaskStats(ctx context.Context, id access.Identity) (models.StageCounts, error) {
	if !id.IsAdmin {
		return models.StageCounts{}, apperr.Forbidden("not authorized as admin")
	}

	trashed := false
	sum, err := m.store.SummarizeTasks(ctx, models.TaskFilter{Trashed: &trashed})
	if err != nil {
		return models.StageCounts{}, err
	}

	return models.StageCounts{
		Total:      sum.Total,
		Todo:       sum.ByStage[models.StageTodo],
		InProgress: sum.ByStage[models.StageInProgress],
		Completed:  sum.ByStage[models.StageCompleted],
	}, nil
}

// UserActivity reports, for every user on at least one live task, how many of
// their tasks are completed. CompletionRate is a percentage rounded to two places.
func (m *Manager) UserActivity(ctx context.Context, id access.Identity) ([]UserActivity, error) {
	if !id.IsAdmin {
		return nil, apperr.Forbidden("not authorized as admin")
	}

	users, err := m.store.ListUsers(ctx, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	counts, err := m.store.MemberTaskCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]UserActivity, 0, len(counts))
	for _, u := range users {
		c, ok := counts[u.ID]
		if !ok || c.Total == 0 {
			continue
		}
		rate := float64(c.Completed) / float64(c.Total) * 100
		out = append(out, UserActivity{
			User:           u.Ref(),
			TaskCount:      c.Total,
			CompletedCount: c.Completed,
			CompletionRate: math.Round(rate*100) / 100,
		})
	}

	return out, nil
}
