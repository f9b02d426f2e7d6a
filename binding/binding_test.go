package binding

import (
	"reflect"
	"testing"

	"github.com/ByLCY/scribe/dsl"
)

func TestInterpolate(t *testing.T) {
	data := map[string]any{
		"name": "Ada",
		"letter": map[string]any{
			"lines": []any{"first", "second"},
		},
		"count": 3,
	}
	cases := []struct {
		in, want string
	}{
		{"Dear ${name},", "Dear Ada,"},
		{"${ letter.lines[1] }", "second"},
		{"n=${count}", "n=3"},
		{"${missing} stays", "${missing} stays"},
		{"${letter.lines[9]}", "${letter.lines[9]}"},
		{"${}", "${}"},
	}
	for _, tc := range cases {
		if got := Interpolate(tc.in, data); got != tc.want {
			t.Fatalf("Interpolate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := Interpolate("${name}", nil); got != "${name}" {
		t.Fatalf("nil data should keep placeholder, got %q", got)
	}
}

func TestApplyRewritesTextNodesOnly(t *testing.T) {
	doc, err := dsl.ParseString("[style:title]${title}[/style]\nTo ${to.name}, ${to.name}.")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	data := map[string]any{
		"title": "Invitation",
		"to":    map[string]string{"name": "Grace"},
	}

	bound := Apply(doc, data)
	var texts []string
	for _, n := range bound.Nodes {
		if n.Kind == dsl.KindText {
			texts = append(texts, n.Text)
		}
	}
	want := []string{"Invitation", "\nTo Grace, Grace."}
	if !reflect.DeepEqual(texts, want) {
		t.Fatalf("bound texts = %q, want %q", texts, want)
	}

	// 原文档不受影响
	if got := Placeholders(doc); !reflect.DeepEqual(got, []string{"title", "to.name"}) {
		t.Fatalf("Placeholders = %q", got)
	}
	if len(bound.Nodes) != len(doc.Nodes) {
		t.Fatalf("node count changed: %d -> %d", len(doc.Nodes), len(bound.Nodes))
	}
}

func TestInterpolateDefaults(t *testing.T) {
	data := map[string]any{"name": "Ada"}
	cases := []struct {
		in, want string
	}{
		{"Dear ${name|Friend},", "Dear Ada,"},
		{"Dear ${nickname|Friend},", "Dear Friend,"},
		{"${nickname|}!", "!"},
	}
	for _, tc := range cases {
		if got := Interpolate(tc.in, data); got != tc.want {
			t.Fatalf("Interpolate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := Interpolate("${name|Friend}", nil); got != "Friend" {
		t.Fatalf("nil data should fall back to the default, got %q", got)
	}
}

func TestLookupStructsAndPointers(t *testing.T) {
	type recipient struct {
		Name    string `json:"name"`
		Title   string
		private string
	}
	data := map[string]any{
		"to":    &recipient{Name: "Grace", Title: "Rear Admiral", private: "x"},
		"grid":  [][]int{{1, 2}, {3, 4}},
		"empty": (*recipient)(nil),
	}
	cases := []struct {
		path string
		want any
		ok   bool
	}{
		{"to.name", "Grace", true},
		{"to.title", "Rear Admiral", true},
		{"to.private", nil, false},
		{"grid[1][0]", 3, true},
		{"grid[2]", nil, false},
		{"empty.name", nil, false},
		{"grid[x]", nil, false},
		{"to..name", nil, false},
	}
	for _, tc := range cases {
		got, ok := Lookup(data, tc.path)
		if ok != tc.ok {
			t.Fatalf("Lookup(%q) ok = %v, want %v", tc.path, ok, tc.ok)
		}
		if ok && !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Lookup(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
