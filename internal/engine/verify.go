package engine

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"payline/internal/domain"
)

// ExceptionOldPayment is logged when an old payment cannot be confirmed
// against the clearing sources.
const ExceptionOldPayment = "Old_Payment_Verification"

// Verify cross-references a payment against the imported bank statement
// and, for old payments, the CNP clearing export. A missed source on an
// old payment produces a warning and an Open exception in the ledger.
func (e Engine) Verify(ctx context.Context, reference string) (domain.Verification, error) {
	p, err := e.Repo.GetPayment(ctx, reference)
	if err != nil {
		return domain.Verification{}, err
	}
	v := domain.Verification{Reference: p.Reference}

	bank, err := e.matchSource(ctx, p, domain.SourceBankStatement)
	if err != nil {
		return domain.Verification{}, err
	}
	v.Matches = append(v.Matches, bank...)

	if e.validator().IsOldPayment(p.Date) {
		cnp, err := e.matchSource(ctx, p, domain.SourceCNP)
		if err != nil {
			return domain.Verification{}, err
		}
		v.Matches = append(v.Matches, cnp...)
		if len(cnp) == 0 {
			v.Warnings = append(v.Warnings, "Payment not found in CNP file")
		}
		if len(bank) == 0 {
			v.Warnings = append(v.Warnings, "Payment not found in Bank Statement")
		}
		v.RequiresApproval = len(v.Warnings) > 0
	}
	v.Matched = len(v.Matches) > 0

	if v.RequiresApproval {
		desc := strings.Join(v.Warnings, "; ")
		if _, err := e.LogException(ctx, p.Reference, ExceptionOldPayment, desc); err != nil {
			return domain.Verification{}, err
		}
	}
	return v, nil
}

// matchSource returns the export rows for the payment's reference whose
// amount agrees with the payment under the tolerance rule.
func (e Engine) matchSource(ctx context.Context, p domain.Payment, kind string) ([]domain.SourceMatch, error) {
	records, err := e.Repo.SourceRecordsByReference(ctx, kind, p.Company, p.Reference)
	if err != nil {
		return nil, err
	}
	var matches []domain.SourceMatch
	for _, rec := range records {
		if e.amountsAgree(rec.Amount, p.Amount) {
			matches = append(matches, domain.SourceMatch{Source: kind, Record: rec})
		}
	}
	return matches, nil
}

// amountsAgree compares a source amount against the payment amount.
// Large source amounts (above the configured threshold) allow a relative
// difference up to the tolerance ratio; everything else must be exact.
func (e Engine) amountsAgree(sourceAmount, paymentAmount string) bool {
	a, err := decimal.NewFromString(strings.TrimSpace(sourceAmount))
	if err != nil {
		return false
	}
	b, err := decimal.NewFromString(strings.TrimSpace(paymentAmount))
	if err != nil {
		return false
	}
	threshold, err := decimal.NewFromString(e.Config.Matching.ToleranceThreshold)
	if err != nil || a.LessThanOrEqual(threshold) {
		return a.Equal(b)
	}
	ratio := decimal.NewFromFloat(e.Config.Matching.ToleranceRatio)
	diff := a.Sub(b).Abs()
	return diff.Div(a).LessThanOrEqual(ratio)
}
