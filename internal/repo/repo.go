package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"payline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertPaymentTx(ctx context.Context, tx *sql.Tx, p domain.Payment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO payments(reference,company,beneficiary_name,beneficiary_account,beneficiary_bank,amount,date,status,timestamp)
VALUES (?,?,?,?,?,?,?,?,?)`,
		p.Reference, p.Company, p.Beneficiary.Name, p.Beneficiary.Account, p.Beneficiary.Bank,
		p.Amount, p.Date, p.Status, p.Timestamp)
	return err
}

func scanPayment(scan func(...any) error) (domain.Payment, error) {
	var p domain.Payment
	err := scan(&p.Reference, &p.Company, &p.Beneficiary.Name, &p.Beneficiary.Account, &p.Beneficiary.Bank,
		&p.Amount, &p.Date, &p.Status, &p.Timestamp)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

const paymentColumns = `reference,company,beneficiary_name,beneficiary_account,beneficiary_bank,amount,date,status,timestamp`

func (r Repo) GetPayment(ctx context.Context, reference string) (domain.Payment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE reference=?`, reference)
	return scanPayment(row.Scan)
}

func (r Repo) GetPaymentTx(ctx context.Context, tx *sql.Tx, reference string) (domain.Payment, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE reference=?`, reference)
	return scanPayment(row.Scan)
}

type PaymentFilters struct {
	Company string
	Status  string
	Limit   int
}

func (r Repo) ListPayments(ctx context.Context, f PaymentFilters) ([]domain.Payment, error) {
	var clauses []string
	var args []any
	if f.Company != "" {
		clauses = append(clauses, "company=?")
		args = append(args, f.Company)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + paymentColumns + ` FROM payments ` + where + ` ORDER BY timestamp DESC, reference DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdatePaymentStatusTx(ctx context.Context, tx *sql.Tx, reference, status, timestamp string) error {
	res, err := tx.ExecContext(ctx, `UPDATE payments SET status=?, timestamp=? WHERE reference=?`, status, timestamp, reference)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PaymentsMissingStatus returns references of payments with no history row.
func (r Repo) PaymentsMissingStatus(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT p.reference FROM payments p
WHERE NOT EXISTS (SELECT 1 FROM status_entries s WHERE s.reference = p.reference)
ORDER BY p.reference ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r Repo) InsertStatusEntryTx(ctx context.Context, tx *sql.Tx, e domain.StatusEntry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO status_entries(reference,status,previous_status,timestamp,reason,user) VALUES (?,?,?,?,?,?)`,
		e.Reference, e.Status, nullableStringPtr(e.PreviousStatus), e.Timestamp, nullable(e.Reason), nullable(e.User))
	return err
}

func scanStatusEntry(scan func(...any) error) (domain.StatusEntry, error) {
	var e domain.StatusEntry
	var previous, reason, user sql.NullString
	err := scan(&e.ID, &e.Reference, &e.Status, &previous, &e.Timestamp, &reason, &user)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	if previous.Valid {
		e.PreviousStatus = &previous.String
	}
	if reason.Valid {
		e.Reason = reason.String
	}
	if user.Valid {
		e.User = user.String
	}
	return e, nil
}

const statusEntryColumns = `id,reference,status,previous_status,timestamp,reason,user`

func (r Repo) LatestStatusEntry(ctx context.Context, reference string) (domain.StatusEntry, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+statusEntryColumns+` FROM status_entries WHERE reference=? ORDER BY id DESC LIMIT 1`, reference)
	return scanStatusEntry(row.Scan)
}

func (r Repo) LatestStatusEntryTx(ctx context.Context, tx *sql.Tx, reference string) (domain.StatusEntry, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+statusEntryColumns+` FROM status_entries WHERE reference=? ORDER BY id DESC LIMIT 1`, reference)
	return scanStatusEntry(row.Scan)
}

// ListStatusEntries returns the full history for a reference in
// chronological order.
func (r Repo) ListStatusEntries(ctx context.Context, reference string) ([]domain.StatusEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+statusEntryColumns+` FROM status_entries WHERE reference=? ORDER BY id ASC`, reference)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StatusEntry
	for rows.Next() {
		e, err := scanStatusEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) CountPaymentsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM payments GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
