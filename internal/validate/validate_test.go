package validate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payline/internal/config"
	"payline/internal/domain"
	"payline/internal/validate"
)

func newValidator(t *testing.T) validate.Validator {
	t.Helper()
	v, err := validate.New(config.Default())
	require.NoError(t, err)
	v.Now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	return v
}

func payment() domain.Payment {
	return domain.Payment{
		Reference: "ABC-2024-0001",
		Company:   "SALAM",
		Beneficiary: domain.Beneficiary{
			Name:    "Gulf Services Co",
			Account: "SA0380000000608010167519",
			Bank:    "SNB",
		},
		Amount: "12500.50",
		Date:   "2024-03-10",
	}
}

func TestCheckAcceptsValidPayment(t *testing.T) {
	v := newValidator(t)
	res := v.Check(payment())
	require.True(t, res.OK, res.Err)
	assert.False(t, res.CNPRequired)
}

func TestCheckFirstFailureWins(t *testing.T) {
	v := newValidator(t)
	p := payment()
	p.Company = "NOPE"
	p.Amount = "-1"
	res := v.Check(p)
	require.False(t, res.OK)
	// Company is checked before amount.
	assert.Contains(t, res.Err, "company")
}

func TestCheckRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.Payment)
		want   string
	}{
		{"empty company", func(p *domain.Payment) { p.Company = "  " }, "company must be a non-empty string"},
		{"unknown company", func(p *domain.Payment) { p.Company = "ACME" }, "company must be one of"},
		{"missing beneficiary", func(p *domain.Payment) { p.Beneficiary.Bank = "" }, "missing required beneficiary fields"},
		{"short name", func(p *domain.Payment) { p.Beneficiary.Name = "A" }, "name too short"},
		{"blocked characters", func(p *domain.Payment) { p.Beneficiary.Name = "Acme <script>" }, "invalid characters"},
		{"sql keyword", func(p *domain.Payment) { p.Beneficiary.Name = "Robert drop Tables" }, "invalid characters"},
		{"short bank", func(p *domain.Payment) { p.Beneficiary.Bank = "X" }, "bank name too short"},
		{"bad iban country", func(p *domain.Payment) { p.Beneficiary.Account = "GB0380000000608010167519" }, "invalid IBAN format"},
		{"short iban", func(p *domain.Payment) { p.Beneficiary.Account = "SA1234" }, "invalid IBAN format"},
		{"empty reference", func(p *domain.Payment) { p.Reference = "" }, "reference must be a non-empty string"},
		{"malformed reference", func(p *domain.Payment) { p.Reference = "AB-2024-001" }, "format XXX-YYYY-NNNN"},
		{"stale reference year", func(p *domain.Payment) { p.Reference = "ABC-2021-0001" }, "within 1 year"},
		{"non-numeric amount", func(p *domain.Payment) { p.Amount = "12,500" }, "invalid amount format"},
		{"zero amount", func(p *domain.Payment) { p.Amount = "0" }, "greater than 0"},
		{"excessive amount", func(p *domain.Payment) { p.Amount = "1000000.01" }, "exceeds maximum limit"},
		{"bad date format", func(p *domain.Payment) { p.Date = "10/03/2024" }, "format YYYY-MM-DD"},
		{"ancient date", func(p *domain.Payment) { p.Date = "2022-01-01" }, "date too old"},
		{"future date", func(p *domain.Payment) { p.Date = "2024-03-16" }, "future date not allowed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := newValidator(t)
			p := payment()
			tc.mutate(&p)
			res := v.Check(p)
			require.False(t, res.OK)
			assert.Contains(t, res.Err, tc.want)
		})
	}
}

func TestCompanyIsCaseInsensitive(t *testing.T) {
	v := newValidator(t)
	p := payment()
	p.Company = "salam"
	assert.True(t, v.Check(p).OK)
}

func TestAmountBoundaries(t *testing.T) {
	v := newValidator(t)
	p := payment()
	p.Amount = "1000000"
	assert.True(t, v.Check(p).OK, "max amount itself is allowed")
	p.Amount = "0.01"
	assert.True(t, v.Check(p).OK)
}

func TestCNPRequiredForPriorMonth(t *testing.T) {
	v := newValidator(t)
	cases := []struct {
		date string
		want bool
	}{
		{"2024-03-01", false}, // same month
		{"2024-03-15", false}, // today
		{"2024-02-29", true},  // previous month
		{"2023-12-31", true},  // previous year
	}
	for _, tc := range cases {
		p := payment()
		p.Date = tc.date
		res := v.Check(p)
		require.True(t, res.OK, res.Err)
		assert.Equal(t, tc.want, res.CNPRequired, tc.date)
		assert.Equal(t, tc.want, v.IsOldPayment(tc.date), tc.date)
	}
}

func TestReferenceYearWindow(t *testing.T) {
	v := newValidator(t)
	for ref, ok := range map[string]bool{
		"ABC-2023-0001": true,
		"ABC-2024-9999": true,
		"ABC-2025-0001": true,
		"ABC-2022-0001": false,
		"ABC-2026-0001": false,
	} {
		p := payment()
		p.Reference = ref
		assert.Equal(t, ok, v.Check(p).OK, ref)
	}
}
