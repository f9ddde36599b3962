package scrape

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/veloform/activity-enhancer-go/internal/dom"
	"github.com/veloform/activity-enhancer-go/internal/domain"
	"github.com/veloform/activity-enhancer-go/internal/site"
)

type fakeAdapter struct {
	title       string
	description string
	stats       site.Stats
}

func (f *fakeAdapter) ID() string   { return "fake" }
func (f *fakeAdapter) Name() string { return "Fake" }

func (f *fakeAdapter) Match(dom.Location) bool { return true }

func (f *fakeAdapter) DetectPageType(dom.Location) site.PageType { return site.PageDetails }

func (f *fakeAdapter) ActivityID(dom.Location) string { return "1" }

func (f *fakeAdapter) LocateTitleRoot(*dom.Page) *goquery.Selection { return nil }

func (f *fakeAdapter) GetTitle(*dom.Page) (string, bool) { return f.title, true }

func (f *fakeAdapter) SetTitle(*dom.Page, string) {}

func (f *fakeAdapter) GetDescription(*dom.Page) (string, bool) { return f.description, true }

func (f *fakeAdapter) SetDescription(*dom.Page, string) {}

type fakeStatsAdapter struct {
	fakeAdapter
}

func (f *fakeStatsAdapter) GetStats(*dom.Page) site.Stats { return f.stats }

func TestSanitize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"a   b\n\tc", "a b c"},
		{"  leading and trailing  ", "leading and trailing"},
		{"", ""},
		{"already clean", "already clean"},
	}

	for _, tc := range cases {
		got := Sanitize(tc.in)
		if got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if again := Sanitize(got); again != got {
			t.Errorf("Sanitize not idempotent: %q -> %q", got, again)
		}
	}
}

func TestTruncateAtWordBoundary(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"short title", 60, "short title"},
		{"one two three four", 12, "one two"},
		{"nospaceatallinthisstring", 10, "nospaceata"},
		{"", 10, ""},
	}

	for _, tc := range cases {
		got := TruncateAtWordBoundary(tc.in, tc.max)
		if got != tc.want {
			t.Errorf("TruncateAtWordBoundary(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
		if len([]rune(got)) > tc.max {
			t.Errorf("result %q exceeds limit %d", got, tc.max)
		}
		if again := TruncateAtWordBoundary(got, tc.max); again != got {
			t.Errorf("truncation not idempotent: %q -> %q", got, again)
		}
	}
}

func TestIsValid(t *testing.T) {
	cases := []struct {
		data domain.ActivityData
		want bool
	}{
		{domain.ActivityData{Title: "Morning Run"}, true},
		{domain.ActivityData{Description: "felt good"}, true},
		{domain.ActivityData{Title: "a", Description: "b"}, true},
		{domain.ActivityData{Distance: "10 km"}, false},
		{domain.ActivityData{}, false},
	}

	for _, tc := range cases {
		if got := IsValid(tc.data); got != tc.want {
			t.Errorf("IsValid(%+v) = %v, want %v", tc.data, got, tc.want)
		}
	}
}

func TestCollectWithoutStatsCapability(t *testing.T) {
	adapter := &fakeAdapter{title: "  Morning   Run ", description: "easy\n\npace"}

	data := Collect(adapter, nil)

	if data.Title != "Morning Run" {
		t.Errorf("Title = %q", data.Title)
	}
	if data.Description != "easy pace" {
		t.Errorf("Description = %q", data.Description)
	}
	if data.Distance != "" || data.Sport != "" {
		t.Errorf("stats should stay empty without the capability, got %+v", data)
	}
}

func TestCollectMergesPartialStats(t *testing.T) {
	adapter := &fakeStatsAdapter{
		fakeAdapter: fakeAdapter{title: "Run"},
	}
	adapter.stats = site.Stats{Distance: "10 km", Sport: "Run"}

	data := Collect(adapter, nil)

	if data.Distance != "10 km" {
		t.Errorf("Distance = %q", data.Distance)
	}
	if data.Sport != "Run" {
		t.Errorf("Sport = %q", data.Sport)
	}
	if data.Time != "" || data.ElevationGain != "" || data.Date != "" {
		t.Errorf("absent stat keys must not be merged, got %+v", data)
	}
}

func TestCollectDetailsFallsBackToBasicGetters(t *testing.T) {
	// The fake has no DetailsExtractor capability, so CollectDetails must
	// degrade to the basic extraction.
	adapter := &fakeAdapter{title: "Ride", description: "around the lake"}

	data := CollectDetails(adapter, nil)

	if data.Title != "Ride" {
		t.Errorf("Title = %q", data.Title)
	}
	if data.Description != "around the lake" {
		t.Errorf("Description = %q", data.Description)
	}
}
