package engine

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"payline/internal/audit"
	"payline/internal/config"
	"payline/internal/domain"
	"payline/internal/repo"
	"payline/internal/validate"
)

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Audit     audit.Writer
	Config    *config.Config
	Validator validate.Validator
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config) (Engine, error) {
	validator, err := validate.New(cfg)
	if err != nil {
		return Engine{}, err
	}
	return Engine{
		DB:        db,
		Repo:      repo.Repo{DB: db},
		Audit:     audit.Writer{DB: db},
		Config:    cfg,
		Validator: validator,
		Now:       time.Now,
	}, nil
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// validator returns the rule checker bound to the engine clock.
func (e Engine) validator() validate.Validator {
	v := e.Validator
	v.Now = e.Now
	return v
}

// auditor returns the audit writer bound to the engine clock, so audit
// rows carry the same timestamps as the entities they describe.
func (e Engine) auditor() audit.Writer {
	w := e.Audit
	w.Now = e.Now
	return w
}

// Validate runs the business rules against a payment without persisting
// anything.
func (e Engine) Validate(p domain.Payment) validate.Result {
	return e.validator().Check(p)
}

// PaymentCreateOptions are parameters for recording a payment.
type PaymentCreateOptions struct {
	Payment domain.Payment
	Actor   string
	// CNPApproved together with a non-empty OverrideReason authorizes an
	// old payment that would otherwise be blocked.
	CNPApproved    bool
	OverrideReason string
}

// CreatePayment validates and records a payment. The duplicate-reference
// check and the insert are a single transaction backed by the UNIQUE
// constraint on reference, so two concurrent submissions can never both
// pass the check and double-write.
func (e Engine) CreatePayment(ctx context.Context, opts PaymentCreateOptions) (domain.Payment, error) {
	p := opts.Payment
	res := e.validator().Check(p)
	if !res.OK {
		return domain.Payment{}, ValidationError{Msg: res.Err}
	}
	overridden := false
	if res.CNPRequired {
		if !opts.CNPApproved || strings.TrimSpace(opts.OverrideReason) == "" {
			return domain.Payment{}, ValidationError{Msg: "CNP approval with a reason is required for this payment"}
		}
		overridden = true
	}
	p.Company = strings.ToUpper(strings.TrimSpace(p.Company))
	p.Reference = strings.TrimSpace(p.Reference)
	p.Status = domain.StatusPending
	p.Timestamp = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Payment{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertPaymentTx(ctx, tx, p); err != nil {
		if isUniqueViolation(err) {
			return domain.Payment{}, validationErrorf("reference %s already exists in the system", p.Reference)
		}
		return domain.Payment{}, err
	}
	entry := domain.StatusEntry{
		Reference: p.Reference,
		Status:    domain.StatusPending,
		Timestamp: p.Timestamp,
		User:      opts.Actor,
	}
	if err := e.Repo.InsertStatusEntryTx(ctx, tx, entry); err != nil {
		return domain.Payment{}, err
	}
	if overridden {
		if err := e.auditor().Append(ctx, tx, audit.ActionOverrideApproved, p.Reference, opts.OverrideReason, opts.Actor); err != nil {
			return domain.Payment{}, err
		}
	}
	if err := e.auditor().Append(ctx, tx, audit.ActionPaymentCreated, p.Reference, "amount "+p.Amount, opts.Actor); err != nil {
		return domain.Payment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
