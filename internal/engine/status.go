package engine

import (
	"context"
	"fmt"
	"time"

	"payline/internal/audit"
	"payline/internal/domain"
)

// statusTransitions is the authoritative lifecycle. REJECTED and
// COMPLETED are terminal; FAILED may be retried back to PENDING.
var statusTransitions = map[string][]string{
	domain.StatusPending:    {domain.StatusValidated, domain.StatusRejected},
	domain.StatusValidated:  {domain.StatusApproved, domain.StatusRejected},
	domain.StatusApproved:   {domain.StatusProcessing, domain.StatusRejected},
	domain.StatusProcessing: {domain.StatusCompleted, domain.StatusFailed},
	domain.StatusFailed:     {domain.StatusPending},
	domain.StatusRejected:   {},
	domain.StatusCompleted:  {},
}

func validStatus(status string) bool {
	_, ok := statusTransitions[status]
	return ok
}

// CanTransition reports whether the lifecycle permits from -> to.
func CanTransition(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateStatus moves a payment to a new status, appending a history
// entry and audit record in the same transaction. Updating to the
// current status is a no-op success. force bypasses the transition
// table for admin corrections; the audit record says so.
func (e Engine) UpdateStatus(ctx context.Context, reference, status, reason, user string, force bool) error {
	if !validStatus(status) {
		return validationErrorf("invalid status: %s", status)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetPaymentTx(ctx, tx, reference)
	if err != nil {
		return err
	}
	if p.Status == status {
		return tx.Commit()
	}
	if !force && !CanTransition(p.Status, status) {
		return TransitionError{From: p.Status, To: status}
	}
	ts := e.now().UTC().Format(time.RFC3339)
	previous := p.Status
	entry := domain.StatusEntry{
		Reference:      reference,
		Status:         status,
		PreviousStatus: &previous,
		Timestamp:      ts,
		Reason:         reason,
		User:           user,
	}
	if err := e.Repo.InsertStatusEntryTx(ctx, tx, entry); err != nil {
		return err
	}
	if err := e.Repo.UpdatePaymentStatusTx(ctx, tx, reference, status, ts); err != nil {
		return err
	}
	details := fmt.Sprintf("%s -> %s", previous, status)
	if force {
		details += " (forced)"
	}
	if err := e.auditor().Append(ctx, tx, audit.ActionStatusUpdated, reference, details, user); err != nil {
		return err
	}
	return tx.Commit()
}

// GetStatus returns the most recent history entry for a reference.
func (e Engine) GetStatus(ctx context.Context, reference string) (domain.StatusEntry, error) {
	return e.Repo.LatestStatusEntry(ctx, reference)
}

// StatusHistory returns the full trail in chronological order.
func (e Engine) StatusHistory(ctx context.Context, reference string) ([]domain.StatusEntry, error) {
	return e.Repo.ListStatusEntries(ctx, reference)
}

// PaymentsByStatus counts payments per current status.
func (e Engine) PaymentsByStatus(ctx context.Context) (map[string]int, error) {
	return e.Repo.CountPaymentsByStatus(ctx)
}

// RefreshStatuses initializes every payment that has no history entry to
// PENDING. Individual failures are recorded and do not stop the sweep.
func (e Engine) RefreshStatuses(ctx context.Context, user string) (domain.RefreshSummary, error) {
	refs, err := e.Repo.PaymentsMissingStatus(ctx)
	if err != nil {
		return domain.RefreshSummary{}, err
	}
	var summary domain.RefreshSummary
	for _, ref := range refs {
		if err := e.initStatus(ctx, ref, user); err != nil {
			summary.Errors++
			summary.Details = append(summary.Details, fmt.Sprintf("%s: %v", ref, err))
			continue
		}
		summary.Updated++
		summary.Details = append(summary.Details, fmt.Sprintf("%s: initialized to %s", ref, domain.StatusPending))
	}
	return summary, nil
}

func (e Engine) initStatus(ctx context.Context, reference, user string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	ts := e.now().UTC().Format(time.RFC3339)
	entry := domain.StatusEntry{
		Reference: reference,
		Status:    domain.StatusPending,
		Timestamp: ts,
		Reason:    "status refresh",
		User:      user,
	}
	if err := e.Repo.InsertStatusEntryTx(ctx, tx, entry); err != nil {
		return err
	}
	if err := e.Repo.UpdatePaymentStatusTx(ctx, tx, reference, domain.StatusPending, ts); err != nil {
		return err
	}
	if err := e.auditor().Append(ctx, tx, audit.ActionStatusUpdated, reference, "initialized to "+domain.StatusPending, user); err != nil {
		return err
	}
	return tx.Commit()
}
