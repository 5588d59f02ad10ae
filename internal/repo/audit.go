package repo

import (
	"context"
	"database/sql"
	"strings"

	"payline/internal/domain"
)

type AuditFilters struct {
	Reference string
	Action    string
	Limit     int
}

func (r Repo) ListAuditEntries(ctx context.Context, f AuditFilters) ([]domain.AuditEntry, error) {
	var clauses []string
	var args []any
	if f.Reference != "" {
		clauses = append(clauses, "reference=?")
		args = append(args, f.Reference)
	}
	if f.Action != "" {
		clauses = append(clauses, "action=?")
		args = append(args, f.Action)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT id,timestamp,action,reference,details,user,status FROM audit_log ` + where + ` ORDER BY id DESC`
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var reference, details, user, status sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Action, &reference, &details, &user, &status); err != nil {
			return nil, err
		}
		e.Reference = reference.String
		e.Details = details.String
		e.User = user.String
		e.Status = status.String
		res = append(res, e)
	}
	return res, rows.Err()
}
