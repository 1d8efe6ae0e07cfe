package catalog

import (
	"context"
	"fmt"
	"testing"
)

// fakeSource serves fixed lists keyed by name.
type fakeSource struct {
	lists map[string][]string
}

func (f *fakeSource) Items(_ context.Context, key string, start, stop int64) ([]string, error) {
	list := f.lists[key]
	if start >= int64(len(list)) {
		return nil, nil
	}
	if stop >= int64(len(list)) {
		stop = int64(len(list)) - 1
	}
	return list[start : stop+1], nil
}

func (f *fakeSource) Size(_ context.Context, key string) (int64, error) {
	return int64(len(f.lists[key])), nil
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("make%02d", i)
	}
	return out
}

func TestPageSinglePageNoNavigation(t *testing.T) {
	r := NewResolver(&fakeSource{lists: map[string][]string{"makes": names(9)}})

	choices, err := r.Page(context.Background(), "makes", 1, "")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(choices) != 9 {
		t.Fatalf("got %d choices, want 9", len(choices))
	}
	for _, c := range choices {
		if _, _, ok := ParseNavChoice(c.ID); ok {
			t.Errorf("unexpected navigation row %q on a single page", c.ID)
		}
	}
	if choices[0].ID != "make00-id" || choices[0].Title != "Make00" {
		t.Errorf("first choice = %+v", choices[0])
	}
}

func TestPageNextNavigation(t *testing.T) {
	r := NewResolver(&fakeSource{lists: map[string][]string{"makes": names(10)}})

	choices, err := r.Page(context.Background(), "makes", 1, "")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(choices) != 10 {
		t.Fatalf("got %d choices, want 9 items plus next", len(choices))
	}
	last := choices[len(choices)-1]
	if last.ID != "page-2" || last.Title != "Pagina Siguiente" {
		t.Errorf("last choice = %+v, want next navigation", last)
	}
}

func TestPageLastPagePrevOnly(t *testing.T) {
	r := NewResolver(&fakeSource{lists: map[string][]string{"makes": names(18)}})

	choices, err := r.Page(context.Background(), "makes", 2, "")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	// 9 remaining items plus the previous row, no next.
	if len(choices) != 10 {
		t.Fatalf("got %d choices, want 10", len(choices))
	}
	if choices[0].ID != "page-1" || choices[0].Title != "Pagina Anterior" {
		t.Errorf("first choice = %+v, want previous navigation", choices[0])
	}
	if choices[1].ID != "make09-id" {
		t.Errorf("first item = %+v, want make09", choices[1])
	}
	if last := choices[len(choices)-1]; last.ID == "page-3" {
		t.Error("unexpected next navigation on the last page")
	}
}

func TestPageParameterizedKey(t *testing.T) {
	r := NewResolver(&fakeSource{lists: map[string][]string{
		"models-toyota": {"corolla", "yaris"},
	}})

	choices, err := r.Page(context.Background(), "models", 1, "toyota")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(choices) != 2 {
		t.Fatalf("got %d choices, want 2", len(choices))
	}
	if choices[0].ID != "corolla-id" || choices[0].Title != "Corolla" {
		t.Errorf("first choice = %+v", choices[0])
	}
}

func TestPageNavigationCarriesParam(t *testing.T) {
	r := NewResolver(&fakeSource{lists: map[string][]string{
		"models-toyota": names(12),
	}})

	choices, err := r.Page(context.Background(), "models", 1, "toyota")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	last := choices[len(choices)-1]
	if last.ID != "page-2-toyota" {
		t.Errorf("next navigation id = %q, want page-2-toyota", last.ID)
	}

	page, param, ok := ParseNavChoice(last.ID)
	if !ok || page != 2 || param != "toyota" {
		t.Errorf("ParseNavChoice(%q) = %d, %q, %v", last.ID, page, param, ok)
	}
}

func TestParseNavChoice(t *testing.T) {
	cases := []struct {
		id    string
		page  int
		param string
		ok    bool
	}{
		{"page-2", 2, "", true},
		{"page-3-toyota", 3, "toyota", true},
		{"page-0", 0, "", false},
		{"page-x", 0, "", false},
		{"toyota-id", 0, "", false},
		{"", 0, "", false},
	}
	for _, tc := range cases {
		page, param, ok := ParseNavChoice(tc.id)
		if page != tc.page || param != tc.param || ok != tc.ok {
			t.Errorf("ParseNavChoice(%q) = %d, %q, %v; want %d, %q, %v",
				tc.id, page, param, ok, tc.page, tc.param, tc.ok)
		}
	}
}

func TestPageInvalidNumber(t *testing.T) {
	r := NewResolver(&fakeSource{lists: map[string][]string{}})
	if _, err := r.Page(context.Background(), "makes", 0, ""); err == nil {
		t.Error("expected error for page 0")
	}
}
