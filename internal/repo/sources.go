package repo

import (
	"context"
	"database/sql"
	"strings"

	"payline/internal/domain"
)

func (r Repo) InsertSourceRecordTx(ctx context.Context, tx *sql.Tx, rec domain.SourceRecord) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO source_records(kind,company,reference,amount,date,status,timestamp) VALUES (?,?,?,?,?,?,?)`,
		rec.Kind, rec.Company, rec.Reference, rec.Amount, rec.Date, nullable(rec.Status), nullable(rec.Timestamp))
	return err
}

// ReplaceSourceRecords swaps the rows for one (kind, company) export in a
// single transaction, so a re-import never leaves a partial file behind.
func (r Repo) ReplaceSourceRecords(ctx context.Context, kind, company string, records []domain.SourceRecord) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM source_records WHERE kind=? AND company=?`, kind, company); err != nil {
		return err
	}
	for _, rec := range records {
		if err := r.InsertSourceRecordTx(ctx, tx, rec); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SourceRecordsByReference returns export rows for one company whose
// reference equals the given value after trimming.
func (r Repo) SourceRecordsByReference(ctx context.Context, kind, company, reference string) ([]domain.SourceRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT kind,company,reference,amount,date,status,timestamp FROM source_records WHERE kind=? AND company=?`, kind, company)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	want := strings.TrimSpace(reference)
	var res []domain.SourceRecord
	for rows.Next() {
		rec, err := scanSourceRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(rec.Reference) == want {
			res = append(res, rec)
		}
	}
	return res, rows.Err()
}

type SourceFilters struct {
	Kind    string
	Company string
	Limit   int
}

func (r Repo) ListSourceRecords(ctx context.Context, f SourceFilters) ([]domain.SourceRecord, error) {
	var clauses []string
	var args []any
	if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, f.Kind)
	}
	if f.Company != "" {
		clauses = append(clauses, "company=?")
		args = append(args, f.Company)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT kind,company,reference,amount,date,status,timestamp FROM source_records ` + where + ` ORDER BY id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.SourceRecord
	for rows.Next() {
		rec, err := scanSourceRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func scanSourceRecord(scan func(...any) error) (domain.SourceRecord, error) {
	var rec domain.SourceRecord
	var status, timestamp sql.NullString
	err := scan(&rec.Kind, &rec.Company, &rec.Reference, &rec.Amount, &rec.Date, &status, &timestamp)
	if err != nil {
		return rec, err
	}
	if status.Valid {
		rec.Status = status.String
	}
	if timestamp.Valid {
		rec.Timestamp = timestamp.String
	}
	return rec, nil
}
