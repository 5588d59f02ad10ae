package engine

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"payline/internal/domain"
)

// ImportSourceCSV loads a verification export (bank statement or CNP
// clearing file) for one company, replacing any previous import of the
// same kind. The CSV must carry a header with at least reference, amount
// and date columns; status and timestamp are optional.
func (e Engine) ImportSourceCSV(ctx context.Context, kind, company string, r io.Reader) (int, error) {
	if kind != domain.SourceBankStatement && kind != domain.SourceCNP {
		return 0, validationErrorf("invalid source kind: %s", kind)
	}
	company = strings.ToUpper(strings.TrimSpace(company))
	if !e.Config.AllowedCompany(company) {
		return 0, validationErrorf("company must be one of %v", e.Config.Ledger.Companies)
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return 0, validationErrorf("empty or unreadable csv: %v", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"reference", "amount", "date"} {
		if _, ok := cols[required]; !ok {
			return 0, validationErrorf("csv missing required column: %s", required)
		}
	}
	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []domain.SourceRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, validationErrorf("csv line %d: %v", line, err)
		}
		rec := domain.SourceRecord{
			Kind:      kind,
			Company:   company,
			Reference: field(row, "reference"),
			Amount:    field(row, "amount"),
			Date:      field(row, "date"),
			Status:    field(row, "status"),
			Timestamp: field(row, "timestamp"),
		}
		if rec.Reference == "" {
			return 0, validationErrorf("csv line %d: reference is empty", line)
		}
		records = append(records, rec)
	}
	if err := e.Repo.ReplaceSourceRecords(ctx, kind, company, records); err != nil {
		return 0, fmt.Errorf("import %s for %s: %w", kind, company, err)
	}
	return len(records), nil
}
