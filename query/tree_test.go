package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPath(t *testing.T) {
	n := Path(Leaf(true), "a", "b", "c")
	want := map[string]any{"a": map[string]any{"b": map[string]any{"c": true}}}
	if diff := cmp.Diff(want, n.Map()); diff != "" {
		t.Errorf("Path mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		dst  *Node
		src  *Node
		want any
	}{
		{
			name: "groups merge recursively",
			dst:  Path(Leaf(true), "Drug", SelectKey, "id"),
			src:  Path(Leaf(true), "Drug", SelectKey, "drugName"),
			want: map[string]any{"Drug": map[string]any{SelectKey: map[string]any{"id": true, "drugName": true}}},
		},
		{
			name: "leaf does not replace group",
			dst:  Path(Path(Leaf(true), SelectKey, "id"), "Drug"),
			src:  Path(Leaf(true), "Drug"),
			want: map[string]any{"Drug": map[string]any{SelectKey: map[string]any{"id": true}}},
		},
		{
			name: "group replaces leaf",
			dst:  Path(Leaf(true), "Drug"),
			src:  Path(Path(Leaf(true), SelectKey, "id"), "Drug"),
			want: map[string]any{"Drug": map[string]any{SelectKey: map[string]any{"id": true}}},
		},
		{
			name: "later leaf wins",
			dst:  Leaf(1),
			src:  Leaf(2),
			want: 2,
		},
		{
			name: "nil destination",
			dst:  nil,
			src:  Leaf("x"),
			want: "x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.dst, tt.src)
			if diff := cmp.Diff(tt.want, got.Map()); diff != "" {
				t.Errorf("Merge mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNodeKeepsInsertionOrder(t *testing.T) {
	g := Group()
	g.Set("z", Leaf(true))
	g.Set("a", Leaf(true))
	g.Set("z", Leaf(false))

	if diff := cmp.Diff([]string{"z", "a"}, g.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
	if g.Len() != 2 {
		t.Errorf("Expected 2 children, got %d", g.Len())
	}
	if v := g.Child("z").Value(); v != false {
		t.Errorf("Expected later leaf to win, got %v", v)
	}
	if g.Child("missing") != nil {
		t.Error("Expected nil for missing child")
	}
}

func TestSetOnLeafPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected Set on a leaf to panic")
		}
	}()
	Leaf(true).Set("a", Leaf(true))
}

func TestConditionMap(t *testing.T) {
	c := Condition{Op: Contains, Value: "acme", Insensitive: true}
	want := map[string]any{"contains": "acme", "mode": "insensitive"}
	if diff := cmp.Diff(want, c.Map()); diff != "" {
		t.Errorf("Condition.Map mismatch (-want +got):\n%s", diff)
	}

	c = Condition{Op: Equals, Value: int64(3)}
	want = map[string]any{"equals": int64(3)}
	if diff := cmp.Diff(want, c.Map()); diff != "" {
		t.Errorf("Condition.Map mismatch (-want +got):\n%s", diff)
	}
}
