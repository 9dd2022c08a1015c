package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kyri56xcaesar/taskhub/internal/access"
	"kyri56xcaesar/taskhub/internal/apperr"
	"kyri56xcaesar/taskhub/internal/models"
)

//go:embed schema.sql
var schemaSQL string

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("could not connect to the database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping the db: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() { p.pool.Close() }

// --- helpers ---

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func jsonArray[T any](v []T) ([]byte, error) {
	if v == nil {
		v = []T{}
	}
	return json.Marshal(v)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func newID() string { return uuid.NewString() }

// --- users ---

const userColumns = `id, name, email, title, password_hash, external_id, role, is_admin, is_active, permissions, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var (
		u        models.User
		hash     *string
		external *string
		role     string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Title, &hash, &external, &role,
		&u.IsAdmin, &u.IsActive, &u.Permissions, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return models.User{}, err
	}
	if hash != nil {
		u.PasswordHash = *hash
	}
	if external != nil {
		u.ExternalID = *external
	}
	u.Role = access.Role(role)

	return u, nil
}

func (p *Postgres) InsertUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = newID()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := p.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, u.ID, u.Name, u.Email, u.Title, nullIfEmpty(u.PasswordHash), nullIfEmpty(u.ExternalID),
		string(u.Role), u.IsAdmin, u.IsActive, u.Permissions, u.CreatedAt, u.UpdatedAt)

	return mapErr(err, "user")
}

func (p *Postgres) GetUser(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return u, mapErr(err, "user")
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	u, err := scanUser(p.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
	return u, mapErr(err, "user")
}

func (p *Postgres) GetUserByExternalID(ctx context.Context, subject string) (models.User, error) {
	u, err := scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, subject))
	return u, mapErr(err, "user")
}

func (p *Postgres) UpdateUser(ctx context.Context, u models.User) error {
	ct, err := p.pool.Exec(ctx, `
		UPDATE users
		SET name = $2, email = $3, title = $4, password_hash = $5, external_id = $6,
		    role = $7, is_admin = $8, is_active = $9, permissions = $10, updated_at = now()
		WHERE id = $1
	`, u.ID, u.Name, u.Email, u.Title, nullIfEmpty(u.PasswordHash), nullIfEmpty(u.ExternalID),
		string(u.Role), u.IsAdmin, u.IsActive, u.Permissions)
	if err != nil {
		return mapErr(err, "user")
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}

	return nil
}

func (p *Postgres) DeleteUser(ctx context.Context, id string) error {
	ct, err := p.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "user")
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}

	return nil
}

func (p *Postgres) ListUsers(ctx context.Context, limit int) ([]models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err, "user")
	}
	defer rows.Close()

	out := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapErr(err, "user")
		}
		out = append(out, u)
	}

	return out, mapErr(rows.Err(), "user")
}

func (p *Postgres) CountUsers(ctx context.Context, ids []string) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM users WHERE id = ANY($1)`, nonNil(ids)).Scan(&n)
	return n, mapErr(err, "user")
}

func (p *Postgres) LookupUsers(ctx context.Context, ids []string) (map[string]models.UserRef, error) {
	out := make(map[string]models.UserRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := p.pool.Query(ctx, `SELECT id, name, email, title, role FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, mapErr(err, "user")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ref  models.UserRef
			role string
		)
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.Email, &ref.Title, &role); err != nil {
			return nil, mapErr(err, "user")
		}
		ref.Role = access.Role(role)
		out[ref.ID] = ref
	}

	return out, mapErr(rows.Err(), "user")
}

// --- tasks ---

const taskColumns = `id, title, start_date, due_date, description, priority, stage, tags, activities,
	sub_tasks, assets, team, created_by, is_trashed, created_at, updated_at`

func scanTask(row pgx.Row) (models.Task, error) {
	var (
		t        models.Task
		priority string
		stage    string
	)
	err := row.Scan(&t.ID, &t.Title, &t.StartDate, &t.DueDate, &t.Description, &priority, &stage,
		&t.Tags, &t.Activities, &t.SubTasks, &t.Assets, &t.Team, &t.CreatedBy, &t.IsTrashed,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return models.Task{}, err
	}
	t.Priority = models.Priority(priority)
	t.Stage = models.Stage(stage)

	return t, nil
}

func (p *Postgres) InsertTask(ctx context.Context, t *models.Task, n *models.Notice) error {
	if t.ID == "" {
		t.ID = newID()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	for i := range t.SubTasks {
		if t.SubTasks[i].ID == "" {
			t.SubTasks[i].ID = newID()
		}
	}

	activities, err := jsonArray(t.Activities)
	if err != nil {
		return err
	}
	subTasks, err := jsonArray(t.SubTasks)
	if err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return mapErr(err, "task")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, t.ID, t.Title, t.StartDate, t.DueDate, t.Description, string(t.Priority), string(t.Stage),
		nonNil(t.Tags), activities, subTasks, nonNil(t.Assets), nonNil(t.Team), t.CreatedBy,
		t.IsTrashed, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return mapErr(err, "task")
	}

	if n != nil {
		if n.TaskID == "" {
			n.TaskID = t.ID
		}
		if err := insertNotice(ctx, tx, n); err != nil {
			return err
		}
	}

	return mapErr(tx.Commit(ctx), "task")
}

func (p *Postgres) GetTask(ctx context.Context, id string) (models.Task, error) {
	t, err := scanTask(p.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	return t, mapErr(err, "task")
}

func (p *Postgres) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	sets := make([]string, 0, 9)
	args := make([]any, 0, 10)
	i := 1

	add := func(column string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, i))
		args = append(args, v)
		i++
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Priority != nil {
		add("priority", string(*patch.Priority))
	}
	if patch.Stage != nil {
		add("stage", string(*patch.Stage))
	}
	if patch.StartDate != nil {
		add("start_date", *patch.StartDate)
	}
	if patch.DueDate != nil {
		add("due_date", *patch.DueDate)
	}
	if patch.Tags != nil {
		add("tags", nonNil(*patch.Tags))
	}
	if patch.Assets != nil {
		add("assets", nonNil(*patch.Assets))
	}
	if patch.Team != nil {
		add("team", nonNil(*patch.Team))
	}

	if len(sets) == 0 {
		return models.Task{}, apperr.Validation("no fields to update")
	}

	if len(patch.Activities) > 0 {
		activities := slices.Clone(patch.Activities)
		for k := range activities {
			if activities[k].ID == "" {
				activities[k].ID = newID()
			}
		}
		entries, err := jsonArray(activities)
		if err != nil {
			return models.Task{}, err
		}
		sets = append(sets, fmt.Sprintf("activities = activities || $%d::jsonb", i))
		args = append(args, entries)
		i++
	}

	args = append(args, id)
	q := fmt.Sprintf("UPDATE tasks SET %s, updated_at = now() WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), i, taskColumns)

	if len(patch.Notices) == 0 {
		t, err := scanTask(p.pool.QueryRow(ctx, q, args...))
		return t, mapErr(err, "task")
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return models.Task{}, mapErr(err, "task")
	}
	defer tx.Rollback(ctx)

	t, err := scanTask(tx.QueryRow(ctx, q, args...))
	if err != nil {
		return models.Task{}, mapErr(err, "task")
	}
	for _, n := range patch.Notices {
		if n.TaskID == "" {
			n.TaskID = id
		}
		if err := insertNotice(ctx, tx, n); err != nil {
			return models.Task{}, err
		}
	}

	return t, mapErr(tx.Commit(ctx), "task")
}

func (p *Postgres) SetTaskTrashed(ctx context.Context, id string, trashed bool) error {
	ct, err := p.pool.Exec(ctx, `UPDATE tasks SET is_trashed = $2, updated_at = now() WHERE id = $1`, id, trashed)
	if err != nil {
		return mapErr(err, "task")
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("task not found")
	}

	return nil
}

func (p *Postgres) DeleteTask(ctx context.Context, id string) error {
	ct, err := p.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "task")
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("task not found")
	}

	return nil
}

func (p *Postgres) DeleteTrashedTasks(ctx context.Context) (int64, error) {
	ct, err := p.pool.Exec(ctx, `DELETE FROM tasks WHERE is_trashed`)
	if err != nil {
		return 0, mapErr(err, "task")
	}

	return ct.RowsAffected(), nil
}

func (p *Postgres) RestoreTrashedTasks(ctx context.Context) (int64, error) {
	ct, err := p.pool.Exec(ctx, `UPDATE tasks SET is_trashed = false, updated_at = now() WHERE is_trashed`)
	if err != nil {
		return 0, mapErr(err, "task")
	}

	return ct.RowsAffected(), nil
}

func (p *Postgres) AppendActivity(ctx context.Context, id string, a models.Activity) (models.Task, error) {
	if a.ID == "" {
		a.ID = newID()
	}
	entry, err := jsonArray([]models.Activity{a})
	if err != nil {
		return models.Task{}, err
	}

	t, err := scanTask(p.pool.QueryRow(ctx, `
		UPDATE tasks SET activities = activities || $2::jsonb, updated_at = now()
		WHERE id = $1
		RETURNING `+taskColumns, id, entry))

	return t, mapErr(err, "task")
}

// taskExists tells a missing task apart from a guarded update that matched nothing.
func taskExists(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, id string) (bool, error) {
	var ok bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (p *Postgres) AddTeamMember(ctx context.Context, id, userID string, a models.Activity, n *models.Notice) (models.Task, error) {
	return p.changeTeam(ctx, id, userID, a, n, true)
}

func (p *Postgres) RemoveTeamMember(ctx context.Context, id, userID string, a models.Activity, n *models.Notice) (models.Task, error) {
	return p.changeTeam(ctx, id, userID, a, n, false)
}

func (p *Postgres) changeTeam(ctx context.Context, id, userID string, a models.Activity, n *models.Notice, add bool) (models.Task, error) {
	if a.ID == "" {
		a.ID = newID()
	}
	entry, err := jsonArray([]models.Activity{a})
	if err != nil {
		return models.Task{}, err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return models.Task{}, mapErr(err, "task")
	}
	defer tx.Rollback(ctx)

	q := `
		UPDATE tasks SET team = array_append(team, $2), activities = activities || $3::jsonb, updated_at = now()
		WHERE id = $1 AND NOT ($2 = ANY(team))
		RETURNING ` + taskColumns
	if !add {
		q = `
		UPDATE tasks SET team = array_remove(team, $2), activities = activities || $3::jsonb, updated_at = now()
		WHERE id = $1 AND $2 = ANY(team) AND created_by <> $2
		RETURNING ` + taskColumns
	}

	t, err := scanTask(tx.QueryRow(ctx, q, id, userID, entry))
	if errors.Is(err, pgx.ErrNoRows) {
		exists, xerr := taskExists(ctx, tx, id)
		if xerr != nil {
			return models.Task{}, mapErr(xerr, "task")
		}
		switch {
		case !exists:
			return models.Task{}, apperr.NotFound("task not found")
		case add:
			return models.Task{}, apperr.Validation("user is already in the team")
		default:
			return models.Task{}, apperr.Validation("user is not in the team or is the task creator")
		}
	}
	if err != nil {
		return models.Task{}, mapErr(err, "task")
	}

	if n != nil {
		if err := insertNotice(ctx, tx, n); err != nil {
			return models.Task{}, err
		}
	}

	return t, mapErr(tx.Commit(ctx), "task")
}

func (p *Postgres) AddSubTask(ctx context.Context, id string, st models.SubTask) (models.Task, error) {
	if st.ID == "" {
		st.ID = newID()
	}
	entry, err := jsonArray([]models.SubTask{st})
	if err != nil {
		return models.Task{}, err
	}

	t, err := scanTask(p.pool.QueryRow(ctx, `
		UPDATE tasks SET sub_tasks = sub_tasks || $2::jsonb, updated_at = now()
		WHERE id = $1
		RETURNING `+taskColumns, id, entry))

	return t, mapErr(err, "task")
}

func (p *Postgres) SetSubTaskDone(ctx context.Context, id, subTaskID string, done bool) (models.Task, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return models.Task{}, mapErr(err, "task")
	}
	defer tx.Rollback(ctx)

	var subTasks []models.SubTask
	err = tx.QueryRow(ctx, `SELECT sub_tasks FROM tasks WHERE id = $1 FOR UPDATE`, id).Scan(&subTasks)
	if err != nil {
		return models.Task{}, mapErr(err, "task")
	}

	idx := slices.IndexFunc(subTasks, func(st models.SubTask) bool { return st.ID == subTaskID })
	if idx < 0 {
		return models.Task{}, apperr.NotFound("sub-task not found")
	}
	subTasks[idx].IsCompleted = done

	encoded, err := jsonArray(subTasks)
	if err != nil {
		return models.Task{}, err
	}
	t, err := scanTask(tx.QueryRow(ctx, `
		UPDATE tasks SET sub_tasks = $2::jsonb, updated_at = now()
		WHERE id = $1
		RETURNING `+taskColumns, id, encoded))
	if err != nil {
		return models.Task{}, mapErr(err, "task")
	}

	return t, mapErr(tx.Commit(ctx), "task")
}

func taskWhere(f models.TaskFilter) (string, []any) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 6)
	i := 1

	if f.Member != "" {
		where = append(where, fmt.Sprintf("$%d = ANY(team)", i))
		args = append(args, f.Member)
		i++
	}
	if f.Trashed != nil {
		where = append(where, fmt.Sprintf("is_trashed = $%d", i))
		args = append(args, *f.Trashed)
		i++
	}
	if f.Stage != "" {
		where = append(where, fmt.Sprintf("stage = $%d", i))
		args = append(args, string(f.Stage))
		i++
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, fmt.Sprintf("title ILIKE $%d", i))
		args = append(args, "%"+escapeLike(s)+"%")
	}

	if len(where) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(where, " AND "), args
}

func (p *Postgres) ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error) {
	where, args := taskWhere(f)
	q := fmt.Sprintf(`SELECT %s FROM tasks %s ORDER BY created_at DESC, id DESC`, taskColumns, where)
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, f.Limit, max(f.Offset, 0))
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err, "task")
	}
	defer rows.Close()

	out := make([]models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, mapErr(err, "task")
		}
		out = append(out, t)
	}

	return out, mapErr(rows.Err(), "task")
}

func (p *Postgres) SummarizeTasks(ctx context.Context, f models.TaskFilter) (models.TaskSummary, error) {
	where, args := taskWhere(f)
	rows, err := p.pool.Query(ctx,
		fmt.Sprintf(`SELECT stage, priority, count(*) FROM tasks %s GROUP BY stage, priority`, where), args...)
	if err != nil {
		return models.TaskSummary{}, mapErr(err, "task")
	}
	defer rows.Close()

	sum := models.TaskSummary{
		ByStage:    make(map[models.Stage]int, len(models.Stages)),
		ByPriority: make(map[models.Priority]int, len(models.Priorities)),
	}
	for rows.Next() {
		var (
			stage, priority string
			n               int
		)
		if err := rows.Scan(&stage, &priority, &n); err != nil {
			return models.TaskSummary{}, mapErr(err, "task")
		}
		sum.Total += n
		sum.ByStage[models.Stage(stage)] += n
		sum.ByPriority[models.Priority(priority)] += n
	}

	return sum, mapErr(rows.Err(), "task")
}

func (p *Postgres) MemberTaskCounts(ctx context.Context, userIDs []string) (map[string]models.StageCounts, error) {
	out := make(map[string]models.StageCounts, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT m.uid, t.stage, count(*)
		FROM tasks t
		CROSS JOIN LATERAL unnest(t.team) AS m(uid)
		WHERE NOT t.is_trashed AND m.uid = ANY($1)
		GROUP BY m.uid, t.stage
	`, userIDs)
	if err != nil {
		return nil, mapErr(err, "task")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			uid, stage string
			n          int
		)
		if err := rows.Scan(&uid, &stage, &n); err != nil {
			return nil, mapErr(err, "task")
		}
		c := out[uid]
		for range n {
			c.Add(models.Stage(stage))
		}
		out[uid] = c
	}

	return out, mapErr(rows.Err(), "task")
}

func (p *Postgres) LookupTasks(ctx context.Context, ids []string) (map[string]models.TaskRef, error) {
	out := make(map[string]models.TaskRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := p.pool.Query(ctx, `SELECT id, title FROM tasks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, mapErr(err, "task")
	}
	defer rows.Close()

	for rows.Next() {
		var ref models.TaskRef
		if err := rows.Scan(&ref.ID, &ref.Title); err != nil {
			return nil, mapErr(err, "task")
		}
		out[ref.ID] = ref
	}

	return out, mapErr(rows.Err(), "task")
}

// --- projects ---

const projectColumns = `id, name, description, team, tasks, created_by, created_at`

func scanProject(row pgx.Row) (models.Project, error) {
	var pr models.Project
	err := row.Scan(&pr.ID, &pr.Name, &pr.Description, &pr.Team, &pr.Tasks, &pr.CreatedBy, &pr.CreatedAt)
	return pr, err
}

func (p *Postgres) InsertProject(ctx context.Context, pr *models.Project) error {
	if pr.ID == "" {
		pr.ID = newID()
	}
	pr.CreatedAt = time.Now().UTC()

	_, err := p.pool.Exec(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, pr.ID, pr.Name, pr.Description, nonNil(pr.Team), nonNil(pr.Tasks), pr.CreatedBy, pr.CreatedAt)

	return mapErr(err, "project")
}

func (p *Postgres) GetProject(ctx context.Context, id string) (models.Project, error) {
	pr, err := scanProject(p.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	return pr, mapErr(err, "project")
}

func (p *Postgres) UpdateProject(ctx context.Context, id string, patch models.ProjectPatch) (models.Project, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	i := 1

	if patch.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", i))
		args = append(args, strings.TrimSpace(*patch.Name))
		i++
	}
	if patch.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", i))
		args = append(args, *patch.Description)
		i++
	}
	if patch.Team != nil {
		sets = append(sets, fmt.Sprintf("team = $%d", i))
		args = append(args, nonNil(*patch.Team))
		i++
	}

	if len(sets) == 0 {
		return p.GetProject(ctx, id)
	}

	args = append(args, id)
	q := fmt.Sprintf("UPDATE projects SET %s WHERE id = $%d RETURNING %s", strings.Join(sets, ", "), i, projectColumns)

	pr, err := scanProject(p.pool.QueryRow(ctx, q, args...))
	return pr, mapErr(err, "project")
}

func (p *Postgres) DeleteProject(ctx context.Context, id string) error {
	ct, err := p.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "project")
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("project not found")
	}

	return nil
}

func (p *Postgres) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, mapErr(err, "project")
	}
	defer rows.Close()

	out := make([]models.Project, 0)
	for rows.Next() {
		pr, err := scanProject(rows)
		if err != nil {
			return nil, mapErr(err, "project")
		}
		out = append(out, pr)
	}

	return out, mapErr(rows.Err(), "project")
}

func (p *Postgres) AttachTask(ctx context.Context, projectID, taskID string) (models.Project, error) {
	pr, err := scanProject(p.pool.QueryRow(ctx, `
		UPDATE projects SET tasks = array_append(tasks, $2)
		WHERE id = $1 AND NOT ($2 = ANY(tasks))
		RETURNING `+projectColumns, projectID, taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		// already attached, or the project is gone
		return p.GetProject(ctx, projectID)
	}

	return pr, mapErr(err, "project")
}

func (p *Postgres) DetachTask(ctx context.Context, projectID, taskID string) (models.Project, error) {
	pr, err := scanProject(p.pool.QueryRow(ctx, `
		UPDATE projects SET tasks = array_remove(tasks, $2)
		WHERE id = $1
		RETURNING `+projectColumns, projectID, taskID))

	return pr, mapErr(err, "project")
}

// --- notices ---

func insertNotice(ctx context.Context, tx pgx.Tx, n *models.Notice) error {
	if n.ID == "" {
		n.ID = newID()
	}
	n.CreatedAt = time.Now().UTC()
	n.IsRead = nonNil(n.IsRead)

	_, err := tx.Exec(ctx, `
		INSERT INTO notices (id, team, text, task_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.ID, nonNil(n.Team), n.Text, nullIfEmpty(n.TaskID), n.IsRead, n.CreatedAt)

	return mapErr(err, "notification")
}

func (p *Postgres) InsertNotice(ctx context.Context, n *models.Notice) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return mapErr(err, "notification")
	}
	defer tx.Rollback(ctx)

	if err := insertNotice(ctx, tx, n); err != nil {
		return err
	}

	return mapErr(tx.Commit(ctx), "notification")
}

const noticeColumns = `id, team, text, COALESCE(task_id, ''), is_read, created_at`

func scanNotice(row pgx.Row) (models.Notice, error) {
	var n models.Notice
	err := row.Scan(&n.ID, &n.Team, &n.Text, &n.TaskID, &n.IsRead, &n.CreatedAt)
	return n, err
}

func (p *Postgres) ListNotices(ctx context.Context, userID string) ([]models.Notice, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT n.id, n.team, n.text, COALESCE(n.task_id, ''), COALESCE(t.title, ''), n.is_read, n.created_at
		FROM notices n
		LEFT JOIN tasks t ON t.id = n.task_id
		WHERE $1 = ANY(n.team)
		ORDER BY n.created_at DESC, n.id DESC
	`, userID)
	if err != nil {
		return nil, mapErr(err, "notification")
	}
	defer rows.Close()

	out := make([]models.Notice, 0)
	for rows.Next() {
		var n models.Notice
		if err := rows.Scan(&n.ID, &n.Team, &n.Text, &n.TaskID, &n.TaskTitle, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, mapErr(err, "notification")
		}
		out = append(out, n)
	}

	return out, mapErr(rows.Err(), "notification")
}

func (p *Postgres) MarkAllNoticesRead(ctx context.Context, userID string) (int64, error) {
	ct, err := p.pool.Exec(ctx, `
		UPDATE notices SET is_read = array_append(is_read, $1)
		WHERE $1 = ANY(team) AND NOT ($1 = ANY(is_read))
	`, userID)
	if err != nil {
		return 0, mapErr(err, "notification")
	}

	return ct.RowsAffected(), nil
}

func (p *Postgres) MarkNoticeRead(ctx context.Context, userID, id string) (models.Notice, error) {
	n, err := scanNotice(p.pool.QueryRow(ctx, `
		UPDATE notices SET is_read = array_append(is_read, $1)
		WHERE id = $2 AND $1 = ANY(team) AND NOT ($1 = ANY(is_read))
		RETURNING `+noticeColumns, userID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Notice{}, apperr.NotFound("notification not found or already read")
	}

	return n, mapErr(err, "notification")
}

func (p *Postgres) DeleteAllNotices(ctx context.Context, userID string) (int64, error) {
	ct, err := p.pool.Exec(ctx, `DELETE FROM notices WHERE $1 = ANY(team)`, userID)
	if err != nil {
		return 0, mapErr(err, "notification")
	}

	return ct.RowsAffected(), nil
}

func (p *Postgres) DeleteNotice(ctx context.Context, userID, id string) error {
	ct, err := p.pool.Exec(ctx, `DELETE FROM notices WHERE id = $2 AND $1 = ANY(team)`, userID, id)
	if err != nil {
		return mapErr(err, "notification")
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("notification not found")
	}

	return nil
}
