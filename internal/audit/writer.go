package audit

import (
	"context"
	"database/sql"
	"time"
)

// Writer appends to the audit log inside the caller's transaction, so an
// action and its trail commit or roll back together.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

// Entry actions written by the engine.
const (
	ActionPaymentCreated    = "Payment_Created"
	ActionStatusUpdated     = "Status_Updated"
	ActionOverrideApproved  = "Override_Approved"
	ActionExceptionLogged   = "Exception_Logged"
	ActionExceptionResolved = "Exception_Resolved"
	ActionTaskCreated       = "Task_Created"
	ActionTaskUpdated       = "Task_Updated"
	ActionTaskArchived      = "Task_Archived"
)

func (w Writer) Append(ctx context.Context, tx *sql.Tx, action, reference, details, user string) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT INTO audit_log(timestamp,action,reference,details,user,status) VALUES (?,?,?,?,?,?)`,
		ts, action, nullable(reference), nullable(details), nullable(user), "Completed")
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
