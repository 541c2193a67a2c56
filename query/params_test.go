package query

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseValues(t *testing.T) {
	values := url.Values{
		"item":               {" report "},
		"join":               {"drug, adverseReaction", "drug"},
		"fields":             {"id,drug.drugName,,id"},
		"page":               {"2"},
		"pageSize":           {"10"},
		"format":             {"CSV"},
		"patientAge":         {"30", "40"},
		"patientAge__op":     {"gte"},
		"occurCountry":       {"  "},
		"drug.companyName":   {" Acme "},
		"adverseReaction.id": {""},
	}

	req := ParseValues(values)

	want := Request{
		Item:      "report",
		Joins:     []string{"drug", "adverseReaction"},
		Fields:    []string{"id", "drug.drugName"},
		Filters:   map[string]string{"patientAge": "30", "drug.companyName": "Acme"},
		Operators: map[string]string{"patientAge": "gte"},
		Page:      "2",
		PageSize:  "10",
		Format:    "csv",
	}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Errorf("ParseValues mismatch (-want +got):\n%s", diff)
	}
}

func TestParseValuesNormalizesUnicode(t *testing.T) {
	// "e" followed by a combining acute accent
	req := ParseValues(url.Values{"drugName": {"cafe\u0301"}})
	if got := req.Filters["drugName"]; got != "caf\u00e9" {
		t.Errorf("Expected NFC composed value, got %q", got)
	}
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		in      string
		want    Operator
		wantErr bool
	}{
		{"equals", Equals, false},
		{"startsWith", StartsWith, false},
		{"lte", Lte, false},
		{"LIKE", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			op, err := ParseOperator(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOperator(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if op != tt.want {
				t.Errorf("ParseOperator(%q) = %q, want %q", tt.in, op, tt.want)
			}
		})
	}
}

func TestOperatorIsPattern(t *testing.T) {
	for _, op := range []Operator{Contains, StartsWith, EndsWith} {
		if !op.IsPattern() {
			t.Errorf("Expected %s to be a pattern operator", op)
		}
	}
	for _, op := range []Operator{Equals, Gt, Gte, Lt, Lte} {
		if op.IsPattern() {
			t.Errorf("Expected %s not to be a pattern operator", op)
		}
	}
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key, join, field string
	}{
		{"id", "", "id"},
		{"Drug.drugName", "Drug", "drugName"},
		{"a.b.c", "a", "b.c"},
	}
	for _, tt := range tests {
		j, f := splitKey(tt.key)
		if j != tt.join || f != tt.field {
			t.Errorf("splitKey(%q) = (%q, %q), want (%q, %q)", tt.key, j, f, tt.join, tt.field)
		}
	}
}

func TestParamKey(t *testing.T) {
	if got := (Param{Kind: DirectKey, Field: "id"}).Key(); got != "id" {
		t.Errorf("Expected id, got %s", got)
	}
	if got := (Param{Kind: JoinScopedKey, Join: "drug", Field: "id"}).Key(); got != "drug.id" {
		t.Errorf("Expected drug.id, got %s", got)
	}
}
