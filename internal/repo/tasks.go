package repo

import (
	"context"
	"database/sql"
	"strings"

	"payline/internal/domain"
)

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,description,owner,reviewer,deadline,priority,status,created_by,created_at,last_edited,archived,archived_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Description, t.Owner, nullableStringPtr(t.Reviewer), t.Deadline, t.Priority, t.Status,
		t.CreatedBy, t.CreatedAt, t.LastEdited, boolToInt(t.Archived), nullableStringPtr(t.ArchivedAt))
	return err
}

func (r Repo) UpdateTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET description=?, owner=?, reviewer=?, deadline=?, priority=?, status=?, last_edited=?, archived=?, archived_at=? WHERE id=?`,
		t.Description, t.Owner, nullableStringPtr(t.Reviewer), t.Deadline, t.Priority, t.Status,
		t.LastEdited, boolToInt(t.Archived), nullableStringPtr(t.ArchivedAt), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const taskColumns = `id,description,owner,reviewer,deadline,priority,status,created_by,created_at,last_edited,archived,archived_at`

func scanTask(scan func(...any) error) (domain.Task, error) {
	var t domain.Task
	var reviewer, archivedAt sql.NullString
	var archived int
	err := scan(&t.ID, &t.Description, &t.Owner, &reviewer, &t.Deadline, &t.Priority, &t.Status,
		&t.CreatedBy, &t.CreatedAt, &t.LastEdited, &archived, &archivedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if reviewer.Valid {
		t.Reviewer = &reviewer.String
	}
	if archivedAt.Valid {
		t.ArchivedAt = &archivedAt.String
	}
	t.Archived = archived != 0
	return t, nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	t, err := scanTask(row.Scan)
	if err != nil {
		return t, err
	}
	t.Feedback, err = r.ListTaskFeedback(ctx, t.ID)
	return t, err
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

type TaskFilters struct {
	Owner    string
	Reviewer string
	Status   string
	Archived *bool
	Limit    int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.Owner != "" {
		clauses = append(clauses, "owner=?")
		args = append(args, f.Owner)
	}
	if f.Reviewer != "" {
		clauses = append(clauses, "reviewer=?")
		args = append(args, f.Reviewer)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Archived != nil {
		clauses = append(clauses, "archived=?")
		args = append(args, boolToInt(*f.Archived))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) InsertFeedbackTx(ctx context.Context, tx *sql.Tx, taskID string, fb domain.Feedback) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO task_feedback(task_id,user,timestamp,message) VALUES (?,?,?,?)`,
		taskID, fb.User, fb.Timestamp, fb.Message)
	return err
}

func (r Repo) ListTaskFeedback(ctx context.Context, taskID string) ([]domain.Feedback, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user,timestamp,message FROM task_feedback WHERE task_id=? ORDER BY id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Feedback
	for rows.Next() {
		var fb domain.Feedback
		if err := rows.Scan(&fb.User, &fb.Timestamp, &fb.Message); err != nil {
			return nil, err
		}
		res = append(res, fb)
	}
	return res, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
