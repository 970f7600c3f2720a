package importer

import (
	"encoding/json"
	"testing"

	"finledger/internal/core"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"1.234,56", 123456, true}, // dot thousands, comma decimal
		{"-45.00", -4500, true},
		{"€ 99,90", 9990, true},
		{"1000", 100000, true},
		{"-0,50", -50, true},
		{"", 0, false},
		{"abc", 0, false},
		{"-", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if tt.ok {
			if err != nil {
				t.Errorf("ParseAmount(%q) error: %v", tt.in, err)
				continue
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %d, want %d", tt.in, got, tt.want)
			}
		} else if err == nil {
			t.Errorf("ParseAmount(%q) = %d, want error", tt.in, got)
		}
	}
}

func TestParseRowDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-03-04", "2024-03-04", true},
		{"04/03/2024", "2024-03-04", true},
		{"4/3/2024", "2024-03-04", true},
		{"03-04-2024", "", false},
		{"yesterday", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := ParseRowDate(tt.in)
		if tt.ok {
			if err != nil {
				t.Errorf("ParseRowDate(%q) error: %v", tt.in, err)
				continue
			}
			if got.String() != tt.want {
				t.Errorf("ParseRowDate(%q) = %s, want %s", tt.in, got, tt.want)
			}
		} else if err == nil {
			t.Errorf("ParseRowDate(%q) = %s, want error", tt.in, got)
		}
	}
}

func TestExtract(t *testing.T) {
	mapping := ColumnMapping{Date: 0, Description: 1, Amount: 2, ExternalID: 3}
	rows := [][]string{
		{"2024-03-01", "Salary", "2500.00", "X1"},
		{"02/03/2024", "Groceries", "-45,90", "X2"},
		{"bad-date", "Broken", "10.00", "X3"},
		{"2024-03-03", "No amount", "n/a", "X4"},
		{"2024-03-04", "  ", "5.00", "X5"},
	}

	candidates, rowErrs := Extract(rows, mapping)
	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(candidates))
	}
	if len(rowErrs) != 3 {
		t.Fatalf("row errors = %d, want 3: %v", len(rowErrs), rowErrs)
	}

	salary := candidates[0]
	if salary.Type != core.Income || salary.Amount.Cents != 250000 || salary.ExternalID != "X1" {
		t.Errorf("salary = %+v", salary)
	}
	groceries := candidates[1]
	if groceries.Type != core.Expense || groceries.Amount.Cents != 4590 {
		t.Errorf("groceries = %+v", groceries)
	}
	if groceries.Date.String() != "2024-03-02" {
		t.Errorf("groceries date = %s", groceries.Date)
	}
	for _, re := range rowErrs {
		if !core.IsValidation(re.Err) {
			t.Errorf("row %d error %v is not a ValidationError", re.Line, re.Err)
		}
	}
}

func TestExtractWithoutExternalColumn(t *testing.T) {
	mapping := ColumnMapping{Date: 0, Description: 1, Amount: 2, ExternalID: NoColumn}
	candidates, rowErrs := Extract([][]string{{"2024-01-01", "Coffee", "-3.50"}}, mapping)
	if len(rowErrs) != 0 {
		t.Fatalf("row errors: %v", rowErrs)
	}
	if candidates[0].ExternalID != "" {
		t.Errorf("external id = %q, want empty", candidates[0].ExternalID)
	}
}

func TestDedupBatch(t *testing.T) {
	candidates := []Candidate{
		{Line: 1, ExternalID: "X1"},
		{Line: 2, ExternalID: "X2"},
		{Line: 3, ExternalID: "X1"},
		{Line: 4}, // rows without external ids never collapse
		{Line: 5},
	}
	survivors, dropped := DedupBatch(candidates)
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if len(survivors) != 4 {
		t.Fatalf("survivors = %d, want 4", len(survivors))
	}
	if survivors[0].Line != 1 || survivors[1].Line != 2 {
		t.Errorf("first occurrence not kept: %+v", survivors)
	}
}

func TestDedupPersisted(t *testing.T) {
	existing := map[string]struct{}{"X1": {}}
	survivors, dropped := DedupPersisted([]Candidate{
		{Line: 1, ExternalID: "X1"},
		{Line: 2, ExternalID: "X9"},
		{Line: 3},
	}, existing)
	if dropped != 1 || len(survivors) != 2 {
		t.Errorf("dropped=%d survivors=%d, want 1/2", dropped, len(survivors))
	}
}

func TestColumnMappingUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantExt int
	}{
		{"omitted external id", `{"date":0,"description":1,"amount":2}`, NoColumn},
		{"explicit external id", `{"date":0,"description":1,"amount":2,"externalId":3}`, 3},
		{"external id in column zero", `{"date":1,"description":2,"amount":3,"externalId":0}`, 0},
		{"explicit no column", `{"date":0,"description":1,"amount":2,"externalId":-1}`, NoColumn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m ColumnMapping
			if err := json.Unmarshal([]byte(tt.in), &m); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if m.ExternalID != tt.wantExt {
				t.Errorf("ExternalID = %d, want %d", m.ExternalID, tt.wantExt)
			}
		})
	}
}

func TestDecodedMappingKeepsSameDateRows(t *testing.T) {
	var mapping ColumnMapping
	if err := json.Unmarshal([]byte(`{"date":0,"description":1,"amount":2}`), &mapping); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	rows := [][]string{
		{"2024-03-01", "Groceries", "-45.90"},
		{"2024-03-01", "Pharmacy", "-12.00"},
	}
	candidates, rowErrs := Extract(rows, mapping)
	if len(rowErrs) != 0 {
		t.Fatalf("row errors: %v", rowErrs)
	}
	survivors, dropped := DedupBatch(candidates)
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}
	if len(survivors) != 2 {
		t.Fatalf("survivors = %d, want 2", len(survivors))
	}
}
