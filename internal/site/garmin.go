package site

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/veloform/activity-enhancer-go/internal/dom"
)

// GarminAdapter covers connect.garmin.com modern activity pages. Garmin's
// build pipeline hashes class names, so selectors match on class substrings
// with fallback chains rather than exact classes.
type GarminAdapter struct{}

func NewGarminAdapter() *GarminAdapter {
	return &GarminAdapter{}
}

var garminActivityPath = regexp.MustCompile(`^/modern/activity/(\d+)(/edit)?$`)

const (
	garminTitleInput = `input[class*="activityName"], input[class*="activity-name"], input[class*="title"]`
	garminDescInput  = `textarea[class*="description"], textarea[class*="notes"], [class*="activityDescription"] textarea`
	garminEditButton = `button[class*="edit"], a[class*="edit-activity"]`
)

func (a *GarminAdapter) ID() string {
	return "garmin"
}

func (a *GarminAdapter) Name() string {
	return "Garmin Connect"
}

func (a *GarminAdapter) Match(loc dom.Location) bool {
	return loc.Host == "connect.garmin.com" && garminActivityPath.MatchString(loc.Path)
}

func (a *GarminAdapter) DetectPageType(loc dom.Location) PageType {
	m := garminActivityPath.FindStringSubmatch(loc.Path)
	if m == nil || loc.Host != "connect.garmin.com" {
		return PageUnknown
	}
	if m[2] == "/edit" {
		return PageEdit
	}
	return PageDetails
}

func (a *GarminAdapter) ActivityID(loc dom.Location) string {
	m := garminActivityPath.FindStringSubmatch(loc.Path)
	if m == nil {
		return ""
	}
	return m[1]
}

func (a *GarminAdapter) LocateTitleRoot(p *dom.Page) *goquery.Selection {
	if details := p.Find(`[class*="activity-details"], [class*="activityDetails"]`).First(); details.Length() > 0 {
		return details
	}
	if input := p.Find(garminTitleInput).First(); input.Length() > 0 {
		if parent := input.Parent(); parent.Length() > 0 {
			return parent
		}
	}
	if main := p.Find(`main, [role="main"], .main-content, #main`).First(); main.Length() > 0 {
		return main
	}
	return nil
}

func (a *GarminAdapter) GetTitle(p *dom.Page) (string, bool) {
	if v, ok := p.InputValue(garminTitleInput); ok {
		return strings.TrimSpace(v), true
	}
	return p.Text(`h1[class*="activity"], h2[class*="activity"], .activity-name`)
}

func (a *GarminAdapter) SetTitle(p *dom.Page, value string) {
	p.SetInputValue(garminTitleInput, value, dom.EventInput, dom.EventChange, dom.EventBlur)
}

func (a *GarminAdapter) GetDescription(p *dom.Page) (string, bool) {
	v, ok := p.InputValue(garminDescInput)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (a *GarminAdapter) SetDescription(p *dom.Page, value string) {
	p.SetInputValue(garminDescInput, value, dom.EventInput, dom.EventChange, dom.EventBlur)
}

func (a *GarminAdapter) LocateEditButton(p *dom.Page) (string, bool) {
	if p.Find(garminEditButton).Length() > 0 {
		return garminEditButton, true
	}
	return "", false
}

func (a *GarminAdapter) TitleFieldSelector() string {
	return garminTitleInput
}

func (a *GarminAdapter) DescriptionFieldSelector() string {
	return garminDescInput
}

func (a *GarminAdapter) RelevantMutation(nodeHTML string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(nodeHTML))
	if err != nil {
		return false
	}
	root := doc.Find("body").Children().First()
	if root.Length() == 0 {
		return false
	}

	if goquery.NodeName(root) == "main" {
		return true
	}
	if class, ok := root.Attr("class"); ok {
		if strings.Contains(class, "activity") || strings.Contains(class, "details") {
			return true
		}
	}
	return root.Find(garminTitleInput).Length() > 0 || root.Find(garminDescInput).Length() > 0
}

func (a *GarminAdapter) ReadinessDelay() time.Duration {
	// Garmin's app renders noticeably slower than Strava's.
	return 200 * time.Millisecond
}
