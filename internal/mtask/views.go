package mtask

import (
	"context"

	"kyri56xcaesar/taskhub/internal/models"
	"kyri56xcaesar/taskhub/internal/utils"
)

type ActivityView struct {
	models.Activity
	By models.UserRef `json:"by"`
}

// TaskView is a task with user references expanded to display fields.
type TaskView struct {
	models.Task
	Team       []models.UserRef `json:"team"`
	CreatedBy  models.UserRef   `json:"createdBy"`
	Activities []ActivityView   `json:"activities"`
}

func (m *Manager) view(ctx context.Context, t models.Task) (TaskView, error) {
	v, err := m.views(ctx, []models.Task{t})
	if err != nil {
		return TaskView{}, err
	}

	return v[0], nil
}

// views resolves every referenced user with a single lookup. Users that no longer
// exist keep their bare id.
func (m *Manager) views(ctx context.Context, tasks []models.Task) ([]TaskView, error) {
	ids := make([]string, 0, len(tasks)*4)
	for _, t := range tasks {
		ids = append(ids, t.CreatedBy)
		ids = append(ids, t.Team...)
		for _, a := range t.Activities {
			ids = append(ids, a.By)
		}
	}

	refs, err := m.store.LookupUsers(ctx, utils.Uniq(ids))
	if err != nil {
		return nil, err
	}
	ref := func(id string) models.UserRef {
		if r, ok := refs[id]; ok {
			return r
		}
		return models.UserRef{ID: id}
	}

	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		v := TaskView{
			Task:       t,
			Team:       utils.Map(t.Team, ref),
			CreatedBy:  ref(t.CreatedBy),
			Activities: make([]ActivityView, 0, len(t.Activities)),
		}
		for _, a := range t.Activities {
			v.Activities = append(v.Activities, ActivityView{Activity: a, By: ref(a.By)})
		}
		out = append(out, v)
	}

	return out, nil
}
