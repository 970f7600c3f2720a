// Package importer turns raw tabular rows into candidate transactions. It
// covers the pure stages of the reconciliation pipeline: column mapping,
// field extraction, amount and date normalization, and duplicate collapsing
// both inside a batch and against already-persisted external ids.
package importer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"finledger/internal/core"
)

// ColumnMapping maps raw column indexes to transaction fields. ExternalID is
// optional; NoColumn marks it absent.
type ColumnMapping struct {
	Date        int `json:"date"`
	Description int `json:"description"`
	Amount      int `json:"amount"`
	ExternalID  int `json:"externalId"`
}

// NoColumn marks an unmapped optional column.
const NoColumn = -1

// UnmarshalJSON resolves an omitted externalId to NoColumn instead of the
// zero value, which would silently alias column 0.
func (m *ColumnMapping) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date        int  `json:"date"`
		Description int  `json:"description"`
		Amount      int  `json:"amount"`
		ExternalID  *int `json:"externalId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Date = raw.Date
	m.Description = raw.Description
	m.Amount = raw.Amount
	if raw.ExternalID == nil {
		m.ExternalID = NoColumn
	} else {
		m.ExternalID = *raw.ExternalID
	}
	return nil
}

// Validate checks the mapping against a row width.
func (m ColumnMapping) Validate(width int) error {
	for _, c := range []struct {
		name string
		idx  int
	}{
		{"date", m.Date},
		{"description", m.Description},
		{"amount", m.Amount},
	} {
		if c.idx < 0 || c.idx >= width {
			return core.Validationf("%s column %d out of range for %d columns", c.name, c.idx, width)
		}
	}
	if m.ExternalID != NoColumn && (m.ExternalID < 0 || m.ExternalID >= width) {
		return core.Validationf("external id column %d out of range for %d columns", m.ExternalID, width)
	}
	return nil
}

// Candidate is one parsed row awaiting categorization and commit. Amount is
// stored non-negative; the sign of the raw value picked the type.
type Candidate struct {
	Line        int // 1-based position in the input, for error reporting
	Date        core.Date
	Description string
	Amount      core.Money
	Type        core.TxType
	ExternalID  string
	CategoryID  string // empty until categorization
}

// RowError is a per-row validation failure. The row is excluded and the
// batch continues.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Line, e.Err)
}

// Extract maps raw rows onto candidates. Rows that fail amount or date
// parsing are reported as RowErrors and excluded; the remaining rows keep
// their original order.
func Extract(rows [][]string, mapping ColumnMapping) ([]Candidate, []RowError) {
	var candidates []Candidate
	var rowErrs []RowError

	for i, row := range rows {
		line := i + 1
		if err := mapping.Validate(len(row)); err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: err})
			continue
		}

		date, err := ParseRowDate(row[mapping.Date])
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: err})
			continue
		}
		cents, err := ParseAmount(row[mapping.Amount])
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: err})
			continue
		}

		c := Candidate{
			Line:        line,
			Date:        date,
			Description: strings.TrimSpace(row[mapping.Description]),
		}
		if c.Description == "" {
			rowErrs = append(rowErrs, RowError{Line: line, Err: core.Validationf("empty description")})
			continue
		}
		if mapping.ExternalID != NoColumn {
			c.ExternalID = strings.TrimSpace(row[mapping.ExternalID])
		}
		// Sign determines the kind; the magnitude is stored.
		if cents < 0 {
			c.Type = core.Expense
			c.Amount = core.Money{Cents: -cents}
		} else {
			c.Type = core.Income
			c.Amount = core.Money{Cents: cents}
		}
		candidates = append(candidates, c)
	}

	return candidates, rowErrs
}

// ParseAmount normalizes a raw amount string to signed cents.
//
// All characters except digits, '.', ',' and '-' are stripped. When both '.'
// and ',' appear, '.' is a thousands separator and ',' the decimal mark;
// when only ',' appears it is the decimal mark; otherwise the value parses
// as a standard decimal.
func ParseAmount(raw string) (int64, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" || s == "-" {
		return 0, core.Validationf("unparseable amount %q", raw)
	}

	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")
	switch {
	case hasDot && hasComma:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case hasComma:
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, core.Validationf("unparseable amount %q", raw)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

// ParseRowDate accepts DD/MM/YYYY or ISO YYYY-MM-DD and normalizes to a
// calendar date.
func ParseRowDate(raw string) (core.Date, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return core.Date{}, core.Validationf("empty date")
	}
	if d, err := core.ParseDate(s); err == nil {
		return d, nil
	}
	parts := strings.Split(s, "/")
	if len(parts) == 3 {
		iso := fmt.Sprintf("%s-%s-%s", parts[2], pad2(parts[1]), pad2(parts[0]))
		if d, err := core.ParseDate(iso); err == nil {
			return d, nil
		}
	}
	return core.Date{}, core.Validationf("unparseable date %q", raw)
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// DedupBatch collapses candidates sharing a non-empty external id, keeping
// only the first occurrence. It returns the survivors in order and the
// number of rows dropped.
func DedupBatch(candidates []Candidate) ([]Candidate, int) {
	seen := make(map[string]struct{})
	survivors := make([]Candidate, 0, len(candidates))
	dropped := 0
	for _, c := range candidates {
		if c.ExternalID != "" {
			if _, dup := seen[c.ExternalID]; dup {
				dropped++
				continue
			}
			seen[c.ExternalID] = struct{}{}
		}
		survivors = append(survivors, c)
	}
	return survivors, dropped
}

// DedupPersisted drops candidates whose external id already exists in
// storage. existing is the complete persisted set for the acting user,
// fetched once per batch.
func DedupPersisted(candidates []Candidate, existing map[string]struct{}) ([]Candidate, int) {
	survivors := make([]Candidate, 0, len(candidates))
	dropped := 0
	for _, c := range candidates {
		if c.ExternalID != "" {
			if _, dup := existing[c.ExternalID]; dup {
				dropped++
				continue
			}
		}
		survivors = append(survivors, c)
	}
	return survivors, dropped
}

// HasExternalIDs reports whether any candidate carries a non-empty external
// id, which decides whether the persisted-id lookup is needed at all.
func HasExternalIDs(candidates []Candidate) bool {
	for _, c := range candidates {
		if c.ExternalID != "" {
			return true
		}
	}
	return false
}
