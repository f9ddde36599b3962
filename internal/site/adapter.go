package site

import (
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/veloform/activity-enhancer-go/internal/dom"
	"github.com/veloform/activity-enhancer-go/internal/domain"
)

// PageType classifies a matched location as a read-only details view or an
// editable form view of an activity.
type PageType string

const (
	PageDetails PageType = "details"
	PageEdit    PageType = "edit"
	PageUnknown PageType = "unknown"
)

// Adapter translates between the uniform activity-data contract and one
// platform's DOM structure. These are the mandatory operations; everything
// else is an optional capability that callers must feature-test with a type
// assertion, never assume.
type Adapter interface {
	ID() string
	Name() string

	// Match is a pure predicate over host + path.
	Match(loc dom.Location) bool

	// DetectPageType classifies a matched location. Unmatched locations
	// classify as PageUnknown.
	DetectPageType(loc dom.Location) PageType

	// ActivityID extracts the activity identifier from the location path.
	// Empty when the path carries none.
	ActivityID(loc dom.Location) string

	// LocateTitleRoot finds the element the enhance button anchors to.
	LocateTitleRoot(p *dom.Page) *goquery.Selection

	// GetTitle and GetDescription are best-effort, null-safe reads; ok is
	// false when the page exposes no such field.
	GetTitle(p *dom.Page) (string, bool)
	SetTitle(p *dom.Page, value string)
	GetDescription(p *dom.Page) (string, bool)
	SetDescription(p *dom.Page, value string)
}

// Stats is a partial stats read. Empty fields were not present on the page and
// must not be merged into the activity record.
type Stats struct {
	Sport         string
	Distance      string
	Time          string
	ElevationGain string
	Date          string
}

// StatsExtractor is the optional basic stats capability.
type StatsExtractor interface {
	GetStats(p *dom.Page) Stats
}

// DetailsExtractor is the optional rich details-page extraction capability.
// Every field lookup is independently fault-tolerant; a missing node yields an
// empty string, never an error.
type DetailsExtractor interface {
	ExtractDetailsPageData(p *dom.Page) domain.ExtendedActivityData
}

// EditNavigator exposes the site's native edit control so the details flow can
// hand off into the edit page.
type EditNavigator interface {
	LocateEditButton(p *dom.Page) (selector string, ok bool)
}

// FieldLocator exposes the edit-page form field selectors the per-field
// previews are positioned against.
type FieldLocator interface {
	TitleFieldSelector() string
	DescriptionFieldSelector() string
}

// MutationFilterer cheaply rejects irrelevant subtree insertions before the
// engine re-runs initialization.
type MutationFilterer interface {
	RelevantMutation(nodeHTML string) bool
}

// ReadinessHinter delays the first injection attempt on sites whose SPA
// renders after document-complete.
type ReadinessHinter interface {
	ReadinessDelay() time.Duration
}
