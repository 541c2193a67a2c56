package query

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/giygas/openfda-api/registry"
)

func newTestCompiler(strict bool) *Compiler {
	return NewCompiler(registry.Default(), Options{DefaultPageSize: 50, MaxPageSize: 500, Strict: strict})
}

func compileValues(t *testing.T, c *Compiler, values url.Values) *Compiled {
	t.Helper()
	out, err := c.Compile(ParseValues(values))
	if err != nil {
		t.Fatalf("Unexpected compile error: %v", err)
	}
	return out
}

func TestCompileEmptyRequest(t *testing.T) {
	c := newTestCompiler(false)
	out := compileValues(t, c, url.Values{"item": {"shortages"}})

	if diff := cmp.Diff(map[string]any{}, out.Where.Map()); diff != "" {
		t.Errorf("Where mismatch (-want +got):\n%s", diff)
	}

	wantSel := map[string]any{
		"id": true, "drugId": true, "dosageForm": true,
		"description": true, "initialPostingDate": true, "presentation": true,
	}
	if diff := cmp.Diff(wantSel, out.Select.Map()); diff != "" {
		t.Errorf("Select mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(
		[]string{"id", "drugId", "dosageForm", "description", "initialPostingDate", "presentation"},
		out.Select.Keys(),
	); diff != "" {
		t.Errorf("Base fields should keep registry order (-want +got):\n%s", diff)
	}

	if out.Limit != 50 || out.Offset != 0 {
		t.Errorf("Expected default paging 50/0, got %d/%d", out.Limit, out.Offset)
	}
}

func TestCompileEmptyRequestEveryItem(t *testing.T) {
	c := newTestCompiler(false)
	reg := registry.Default()

	for _, name := range reg.Names() {
		t.Run(name, func(t *testing.T) {
			out := compileValues(t, c, url.Values{"item": {name}})
			if diff := cmp.Diff(map[string]any{}, out.Where.Map()); diff != "" {
				t.Errorf("Where mismatch (-want +got):\n%s", diff)
			}

			e, _ := reg.Entity(name)
			if diff := cmp.Diff(e.FieldNames(), out.Select.Keys()); diff != "" {
				t.Errorf("Select mismatch (-want +got):\n%s", diff)
			}
			for _, k := range out.Select.Keys() {
				if v := out.Select.Child(k); v == nil || !v.IsLeaf() || v.Value() != true {
					t.Errorf("Expected %s to be selected with true, got %v", k, out.Select.Map())
				}
			}
		})
	}
}

func TestClassifyResolvesJoinsThroughRegistry(t *testing.T) {
	c := newTestCompiler(false)
	drug, _ := c.Registry().Entity(registry.Drug)

	_, err := c.classify(drug, "color.name")
	if !errors.Is(err, registry.ErrUnknownJoin) {
		t.Errorf("Expected ErrUnknownJoin, got %v", err)
	}

	cl, err := c.classify(drug, "report.patientAge")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cl.join.Relation != "reports" || !cl.param.Ternary {
		t.Errorf("Unexpected classification %+v", cl)
	}
}

func TestCompileRejectsUnknownItem(t *testing.T) {
	c := newTestCompiler(false)

	for _, item := range []string{"", "medicament"} {
		_, err := c.Compile(ParseValues(url.Values{"item": {item}}))
		if !errors.Is(err, ErrBadRequest) {
			t.Fatalf("Expected bad request for item %q, got %v", item, err)
		}
		var bre *BadRequestError
		if !errors.As(err, &bre) {
			t.Fatalf("Expected *BadRequestError, got %T", err)
		}
		if bre.Reason != ReasonItem {
			t.Errorf("Expected reason %q, got %q", ReasonItem, bre.Reason)
		}
		if len(bre.Allowed) != 10 {
			t.Errorf("Expected all 10 items to be listed, got %v", bre.Allowed)
		}
	}
}

func TestCompileEnumeratesInvalidJoins(t *testing.T) {
	c := newTestCompiler(false)
	_, err := c.Compile(ParseValues(url.Values{
		"item": {"shortages"},
		"join": {"Drug,report,company"},
	}))

	var bre *BadRequestError
	if !errors.As(err, &bre) {
		t.Fatalf("Expected *BadRequestError, got %v", err)
	}
	if bre.Reason != ReasonJoin {
		t.Errorf("Expected reason %q, got %q", ReasonJoin, bre.Reason)
	}
	if diff := cmp.Diff([]string{"report", "company"}, bre.Invalid); diff != "" {
		t.Errorf("Invalid joins mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Drug"}, bre.Allowed); diff != "" {
		t.Errorf("Allowed joins mismatch (-want +got):\n%s", diff)
	}
	for _, want := range []string{"report", "company", "Drug"} {
		if !strings.Contains(bre.Error(), want) {
			t.Errorf("Expected message to mention %q, got %q", want, bre.Error())
		}
	}
}

func TestCompileTernaryFilter(t *testing.T) {
	c := newTestCompiler(false)
	out := compileValues(t, c, url.Values{
		"item":              {"adverseReaction"},
		"report.patientAge": {"30"},
	})

	want := map[string]any{
		"reports": map[string]any{
			Every: map[string]any{
				"Report": map[string]any{
					"patientAge": map[string]any{"equals": int64(30)},
				},
			},
		},
	}
	if diff := cmp.Diff(want, out.Where.Map()); diff != "" {
		t.Errorf("Where mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileDirectJoinFilterDefaultsToInsensitiveContains(t *testing.T) {
	c := newTestCompiler(false)
	out := compileValues(t, c, url.Values{
		"item":             {"shortages"},
		"Drug.companyName": {"Acme"},
	})

	want := map[string]any{
		"Drug": map[string]any{
			"companyName": map[string]any{"contains": "Acme", "mode": "insensitive"},
		},
	}
	if diff := cmp.Diff(want, out.Where.Map()); diff != "" {
		t.Errorf("Where mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileMergesFiltersOnSameJoin(t *testing.T) {
	c := newTestCompiler(false)
	out := compileValues(t, c, url.Values{
		"item":                    {"drug"},
		"report.patientAge":       {"30"},
		"report.patientAge__op":   {"gte"},
		"report.occurCountry":     {"US"},
		"report.occurCountry__op": {"equals"},
	})

	want := map[string]any{
		"reports": map[string]any{
			Every: map[string]any{
				"Report": map[string]any{
					"occurCountry": map[string]any{"equals": "US"},
					"patientAge":   map[string]any{"gte": int64(30)},
				},
			},
		},
	}
	if diff := cmp.Diff(want, out.Where.Map()); diff != "" {
		t.Errorf("Where mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileValueCoercion(t *testing.T) {
	c := newTestCompiler(false)

	tests := []struct {
		name   string
		values url.Values
		key    string
		want   map[string]any
	}{
		{
			name:   "integer",
			values: url.Values{"item": {"report"}, "patientAge": {"42"}},
			key:    "patientAge",
			want:   map[string]any{"equals": int64(42)},
		},
		{
			name:   "float",
			values: url.Values{"item": {"report"}, "patientWeight": {"71.5"}, "patientWeight__op": {"lt"}},
			key:    "patientWeight",
			want:   map[string]any{"lt": 71.5},
		},
		{
			name:   "ISO date",
			values: url.Values{"item": {"shortages"}, "initialPostingDate": {"2023-04-01"}, "initialPostingDate__op": {"gte"}},
			key:    "initialPostingDate",
			want:   map[string]any{"gte": "2023-04-01"},
		},
		{
			name:   "day first date",
			values: url.Values{"item": {"shortages"}, "initialPostingDate": {"01/04/2023"}},
			key:    "initialPostingDate",
			want:   map[string]any{"equals": "2023-04-01"},
		},
		{
			name:   "pattern on a number stays textual",
			values: url.Values{"item": {"report"}, "patientAge": {"3"}, "patientAge__op": {"startsWith"}},
			key:    "patientAge",
			want:   map[string]any{"startsWith": "3", "mode": "insensitive"},
		},
		{
			name:   "explicit equals on text is exact",
			values: url.Values{"item": {"company"}, "name": {"Acme"}, "name__op": {"equals"}},
			key:    "name",
			want:   map[string]any{"equals": "Acme"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := compileValues(t, c, tt.values)
			got := out.Where.Child(tt.key).Map()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Condition mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompileRejectsBadValuesAndOperators(t *testing.T) {
	c := newTestCompiler(false)

	tests := []struct {
		name       string
		values     url.Values
		wantReason string
	}{
		{"non numeric", url.Values{"item": {"report"}, "patientAge": {"thirty"}}, ReasonValue},
		{"infinite", url.Values{"item": {"report"}, "patientAge": {"Inf"}}, ReasonValue},
		{"bad date", url.Values{"item": {"shortages"}, "initialPostingDate": {"April 1st"}}, ReasonValue},
		{"unknown operator", url.Values{"item": {"report"}, "patientAge": {"3"}, "patientAge__op": {"between"}}, ReasonOperator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile(ParseValues(tt.values))
			var bre *BadRequestError
			if !errors.As(err, &bre) {
				t.Fatalf("Expected *BadRequestError, got %v", err)
			}
			if bre.Reason != tt.wantReason {
				t.Errorf("Expected reason %q, got %q", tt.wantReason, bre.Reason)
			}
		})
	}
}

func TestCompileUnknownFields(t *testing.T) {
	values := url.Values{
		"item":       {"company"},
		"color":      {"red"},
		"drug.color": {"red"},
		"fields":     {"name,logo"},
	}

	t.Run("lenient ignores with warnings", func(t *testing.T) {
		out := compileValues(t, newTestCompiler(false), values)
		if out.Where.Len() != 0 {
			t.Errorf("Expected unknown filters to be dropped, got %v", out.Where.Map())
		}
		if diff := cmp.Diff(map[string]any{"name": true}, out.Select.Map()); diff != "" {
			t.Errorf("Select mismatch (-want +got):\n%s", diff)
		}
		if len(out.Warnings) != 3 {
			t.Errorf("Expected 3 warnings, got %v", out.Warnings)
		}
	})

	t.Run("strict rejects", func(t *testing.T) {
		_, err := newTestCompiler(true).Compile(ParseValues(values))
		var bre *BadRequestError
		if !errors.As(err, &bre) {
			t.Fatalf("Expected *BadRequestError, got %v", err)
		}
		if bre.Reason != ReasonField {
			t.Errorf("Expected reason %q, got %q", ReasonField, bre.Reason)
		}
		if diff := cmp.Diff([]string{"color", "drug.color", "logo"}, bre.Invalid); diff != "" {
			t.Errorf("Invalid mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestCompileProjection(t *testing.T) {
	c := newTestCompiler(false)

	tests := []struct {
		name   string
		values url.Values
		want   map[string]any
	}{
		{
			name:   "fields on the same join merge",
			values: url.Values{"item": {"shortages"}, "fields": {"id,Drug.id,Drug.drugName"}},
			want: map[string]any{
				"id":   true,
				"Drug": map[string]any{SelectKey: map[string]any{"id": true, "drugName": true}},
			},
		},
		{
			name:   "requested direct join without fields",
			values: url.Values{"item": {"company"}, "fields": {"name"}, "join": {"drug"}},
			want:   map[string]any{"name": true, "drug": true},
		},
		{
			name:   "requested ternary join without fields",
			values: url.Values{"item": {"report"}, "fields": {"id"}, "join": {"adverseReaction"}},
			want: map[string]any{
				"id": true,
				"adverseReactions": map[string]any{
					SelectKey: map[string]any{"AdverseReaction": true},
				},
			},
		},
		{
			name: "ternary join fields win over the full join",
			values: url.Values{
				"item":   {"report"},
				"fields": {"id,drug.drugName"},
				"join":   {"drug"},
			},
			want: map[string]any{
				"id": true,
				"drugs": map[string]any{
					SelectKey: map[string]any{
						"Drug": map[string]any{SelectKey: map[string]any{"drugName": true}},
					},
				},
			},
		},
		{
			name:   "join fields only keep base fields",
			values: url.Values{"item": {"company"}, "fields": {"drug.drugName"}},
			want: map[string]any{
				"name":      true,
				"drugCount": true,
				"drug":      map[string]any{SelectKey: map[string]any{"drugName": true}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := compileValues(t, c, tt.values)
			if diff := cmp.Diff(tt.want, out.Select.Map()); diff != "" {
				t.Errorf("Select mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompilePaging(t *testing.T) {
	c := newTestCompiler(false)

	tests := []struct {
		name       string
		page, size string
		wantLimit  int
		wantOffset int
	}{
		{"explicit", "3", "20", 20, 40},
		{"defaults", "", "", 50, 0},
		{"page below one", "0", "10", 10, 0},
		{"negative page", "-4", "10", 10, 0},
		{"garbage", "abc", "xyz", 50, 0},
		{"size clamped", "2", "100000", 500, 500},
		{"zero size", "1", "0", 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := compileValues(t, c, url.Values{"item": {"drug"}, "page": {tt.page}, "pageSize": {tt.size}})
			if out.Limit != tt.wantLimit || out.Offset != tt.wantOffset {
				t.Errorf("Expected %d/%d, got %d/%d", tt.wantLimit, tt.wantOffset, out.Limit, out.Offset)
			}
		})
	}
}

func TestNewCompilerDefaults(t *testing.T) {
	c := NewCompiler(registry.Default(), Options{DefaultPageSize: 900, MaxPageSize: 100})
	if c.opts.DefaultPageSize != 100 {
		t.Errorf("Expected default page size clamped to 100, got %d", c.opts.DefaultPageSize)
	}

	c = NewCompiler(registry.Default(), Options{})
	if c.opts.DefaultPageSize != DefaultPageSize || c.opts.MaxPageSize != MaxPageSize {
		t.Errorf("Unexpected defaults: %+v", c.opts)
	}
}
