package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"payline/internal/config"
	"payline/internal/domain"
)

const DateLayout = "2006-01-02"

var (
	referencePattern = regexp.MustCompile(`^[A-Z]{3}-\d{4}-\d{4}$`)
	ibanPattern      = regexp.MustCompile(`^SA\d{22}$`)
	nameBlocklist    = regexp.MustCompile("[<>{}\\\\\\[\\]~`!@#$%^&*()+=]")

	sqlKeywords = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "DROP", "UNION", "EXEC", "SCRIPT"}
)

// Result is the outcome of checking one payment. CNPRequired flags an
// "old payment" (calendar month before the current one) that needs
// secondary clearing verification before it may be processed.
type Result struct {
	OK          bool   `json:"ok"`
	Err         string `json:"error,omitempty"`
	CNPRequired bool   `json:"cnp_required"`
}

// Validator applies the treasury business rules to a single payment.
// The zero value is not usable; construct with New.
type Validator struct {
	Companies    []string
	MaxAmount    decimal.Decimal
	LookbackDays int
	Now          func() time.Time
}

func New(cfg *config.Config) (Validator, error) {
	maxAmount, err := decimal.NewFromString(cfg.Ledger.MaxAmount)
	if err != nil {
		return Validator{}, fmt.Errorf("config max_amount: %w", err)
	}
	return Validator{
		Companies:    cfg.Ledger.Companies,
		MaxAmount:    maxAmount,
		LookbackDays: cfg.Ledger.LookbackDays,
		Now:          time.Now,
	}, nil
}

func (v Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Check applies the rules in fixed order; the first failure wins.
func (v Validator) Check(p domain.Payment) Result {
	checks := []func(domain.Payment) error{
		v.checkCompany,
		v.checkBeneficiary,
		v.checkReference,
		v.checkAmount,
		v.checkDate,
	}
	for _, check := range checks {
		if err := check(p); err != nil {
			return Result{OK: false, Err: err.Error()}
		}
	}
	return Result{OK: true, CNPRequired: v.cnpRequired(p.Date)}
}

func (v Validator) checkCompany(p domain.Payment) error {
	company := strings.ToUpper(strings.TrimSpace(p.Company))
	if company == "" {
		return fmt.Errorf("company must be a non-empty string")
	}
	for _, allowed := range v.Companies {
		if strings.ToUpper(allowed) == company {
			return nil
		}
	}
	return fmt.Errorf("company must be one of %v", v.Companies)
}

func (v Validator) checkBeneficiary(p domain.Payment) error {
	b := p.Beneficiary
	if b.Name == "" || b.Account == "" || b.Bank == "" {
		return fmt.Errorf("missing required beneficiary fields")
	}
	name := strings.TrimSpace(b.Name)
	if len(name) < 2 {
		return fmt.Errorf("beneficiary name too short")
	}
	if len(name) > 100 {
		return fmt.Errorf("beneficiary name too long")
	}
	if nameBlocklist.MatchString(b.Name) {
		return fmt.Errorf("beneficiary name contains invalid characters")
	}
	upper := strings.ToUpper(name)
	for _, kw := range sqlKeywords {
		if strings.Contains(upper, kw) {
			return fmt.Errorf("beneficiary name contains invalid characters")
		}
	}
	if !ibanPattern.MatchString(b.Account) {
		return fmt.Errorf("invalid IBAN format")
	}
	if len(strings.TrimSpace(b.Bank)) < 2 {
		return fmt.Errorf("bank name too short")
	}
	return nil
}

func (v Validator) checkReference(p domain.Payment) error {
	if p.Reference == "" {
		return fmt.Errorf("reference must be a non-empty string")
	}
	if !referencePattern.MatchString(p.Reference) {
		return fmt.Errorf("reference must be in format XXX-YYYY-NNNN")
	}
	year, err := strconv.Atoi(strings.Split(p.Reference, "-")[1])
	if err != nil {
		return fmt.Errorf("invalid reference year format")
	}
	currentYear := v.now().Year()
	if year < currentYear-1 || year > currentYear+1 {
		return fmt.Errorf("reference year must be within 1 year of current year")
	}
	return nil
}

func (v Validator) checkAmount(p domain.Payment) error {
	amount, err := decimal.NewFromString(strings.TrimSpace(p.Amount))
	if err != nil {
		return fmt.Errorf("invalid amount format")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("amount must be greater than 0")
	}
	if amount.GreaterThan(v.MaxAmount) {
		return fmt.Errorf("amount exceeds maximum limit")
	}
	return nil
}

func (v Validator) checkDate(p domain.Payment) error {
	date, err := time.Parse(DateLayout, p.Date)
	if err != nil {
		return fmt.Errorf("date must be in format YYYY-MM-DD")
	}
	now := v.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	oldest := today.AddDate(0, 0, -v.LookbackDays)
	if date.Before(oldest) {
		return fmt.Errorf("date too old")
	}
	if date.After(today) {
		return fmt.Errorf("future date not allowed")
	}
	return nil
}

// cnpRequired reports whether the payment month strictly precedes the
// current calendar month.
func (v Validator) cnpRequired(dateStr string) bool {
	date, err := time.Parse(DateLayout, dateStr)
	if err != nil {
		return false
	}
	now := v.now()
	return date.Year() < now.Year() || (date.Year() == now.Year() && date.Month() < now.Month())
}

// IsOldPayment is the same prior-month test used by the verification
// path; exported so the matching engine shares one definition.
func (v Validator) IsOldPayment(dateStr string) bool {
	return v.cnpRequired(dateStr)
}
