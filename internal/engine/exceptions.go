package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"payline/internal/audit"
	"payline/internal/domain"
	"payline/internal/repo"
)

// LogException appends an Open record to the exception ledger.
func (e Engine) LogException(ctx context.Context, reference, typ, description string) (domain.ExceptionRecord, error) {
	rec := domain.ExceptionRecord{
		ID:          uuid.NewString(),
		Reference:   reference,
		Type:        typ,
		Description: description,
		Status:      domain.ExceptionOpen,
		Timestamp:   e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ExceptionRecord{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertExceptionTx(ctx, tx, rec); err != nil {
		return domain.ExceptionRecord{}, err
	}
	if err := e.auditor().Append(ctx, tx, audit.ActionExceptionLogged, reference, typ+": "+description, ""); err != nil {
		return domain.ExceptionRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ExceptionRecord{}, err
	}
	return rec, nil
}

// ResolveException closes every Open record for the reference. Returns
// false when nothing was open; resolving twice is harmless.
func (e Engine) ResolveException(ctx context.Context, reference, resolution, user string) (bool, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	n, err := e.Repo.ResolveOpenExceptionsTx(ctx, tx, reference, resolution)
	if err != nil {
		return false, err
	}
	if n > 0 {
		if err := e.auditor().Append(ctx, tx, audit.ActionExceptionResolved, reference, resolution, user); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return n > 0, nil
}

// OpenExceptions lists unresolved ledger records, oldest first.
func (e Engine) OpenExceptions(ctx context.Context, reference string) ([]domain.ExceptionRecord, error) {
	return e.Repo.ListExceptions(ctx, repo.ExceptionFilters{Reference: reference, Status: domain.ExceptionOpen})
}
