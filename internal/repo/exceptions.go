package repo

import (
	"context"
	"database/sql"
	"strings"

	"payline/internal/domain"
)

func (r Repo) InsertExceptionTx(ctx context.Context, tx *sql.Tx, e domain.ExceptionRecord) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO exceptions(id,reference,type,description,status,resolution,timestamp) VALUES (?,?,?,?,?,?,?)`,
		e.ID, e.Reference, e.Type, e.Description, e.Status, e.Resolution, e.Timestamp)
	return err
}

// ResolveOpenExceptionsTx marks every Open record for the reference as
// Resolved and returns how many rows changed. Already-resolved records
// are untouched.
func (r Repo) ResolveOpenExceptionsTx(ctx context.Context, tx *sql.Tx, reference, resolution string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE exceptions SET status=?, resolution=? WHERE reference=? AND status=?`,
		domain.ExceptionResolved, resolution, reference, domain.ExceptionOpen)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type ExceptionFilters struct {
	Reference string
	Status    string
	Limit     int
}

func (r Repo) ListExceptions(ctx context.Context, f ExceptionFilters) ([]domain.ExceptionRecord, error) {
	var clauses []string
	var args []any
	if f.Reference != "" {
		clauses = append(clauses, "reference=?")
		args = append(args, f.Reference)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT id,reference,type,description,status,resolution,timestamp FROM exceptions ` + where + ` ORDER BY timestamp ASC, id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ExceptionRecord
	for rows.Next() {
		var e domain.ExceptionRecord
		if err := rows.Scan(&e.ID, &e.Reference, &e.Type, &e.Description, &e.Status, &e.Resolution, &e.Timestamp); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) GetException(ctx context.Context, id string) (domain.ExceptionRecord, error) {
	var e domain.ExceptionRecord
	err := r.DB.QueryRowContext(ctx, `SELECT id,reference,type,description,status,resolution,timestamp FROM exceptions WHERE id=?`, id).
		Scan(&e.ID, &e.Reference, &e.Type, &e.Description, &e.Status, &e.Resolution, &e.Timestamp)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}
