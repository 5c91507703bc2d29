package verify

import (
	"reflect"
	"testing"

	"github.com/ppiankov/deckcheck/internal/model"
)

func TestNormalizeSources(t *testing.T) {
	raw := []any{
		map[string]any{"title": "Census", "url": "https://census.gov/data#table"},
		"https://example.com/report",
		map[string]any{"name": "Statista", "link": "statista.com/markets"},
		map[string]any{"title": "Dup", "url": "https://CENSUS.gov/data"},
		"mailto:founder@example.com",
		map[string]any{"title": "Title only"},
		42,
		map[string]any{},
	}

	want := []model.Source{
		{Title: "Census", URL: "https://census.gov/data"},
		{URL: "https://example.com/report"},
		{Title: "Statista", URL: "https://statista.com/markets"},
		{Title: "Title only"},
	}

	got := NormalizeSources(raw)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeSources =\n%+v\nwant\n%+v", got, want)
	}
}

func TestNormalizeSources_Nil(t *testing.T) {
	got := NormalizeSources(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", got)
	}
}
