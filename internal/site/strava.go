package site

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/veloform/activity-enhancer-go/internal/dom"
	"github.com/veloform/activity-enhancer-go/internal/domain"
)

// StravaAdapter covers www.strava.com activity details and edit pages.
//
// Selectors track the production Strava DOM and need re-verification when the
// site ships a redesign.
type StravaAdapter struct{}

func NewStravaAdapter() *StravaAdapter {
	return &StravaAdapter{}
}

var stravaActivityPath = regexp.MustCompile(`^/activities/(\d+)(/edit)?$`)

const (
	stravaTitleInput    = `#activity_name, input[name="activity[name]"]`
	stravaDescContainer = `div.description[data-react-class="ActivityDescriptionEdit"]`
	stravaDescTextarea  = stravaDescContainer + ` textarea`
	stravaDescEditable  = stravaDescContainer + ` [contenteditable="true"]`
	stravaDescFallback  = `textarea[name="activity[description]"], #activity_description`
	stravaEditButton    = `a[href$="/edit"]`
)

func (a *StravaAdapter) ID() string {
	return "strava"
}

func (a *StravaAdapter) Name() string {
	return "Strava"
}

func (a *StravaAdapter) Match(loc dom.Location) bool {
	return loc.Host == "www.strava.com" && stravaActivityPath.MatchString(loc.Path)
}

func (a *StravaAdapter) DetectPageType(loc dom.Location) PageType {
	m := stravaActivityPath.FindStringSubmatch(loc.Path)
	if m == nil || loc.Host != "www.strava.com" {
		return PageUnknown
	}
	if m[2] == "/edit" {
		return PageEdit
	}
	return PageDetails
}

func (a *StravaAdapter) ActivityID(loc dom.Location) string {
	m := stravaActivityPath.FindStringSubmatch(loc.Path)
	if m == nil {
		return ""
	}
	return m[1]
}

func (a *StravaAdapter) LocateTitleRoot(p *dom.Page) *goquery.Selection {
	// The "Edit Activity" header row holds the h1 on the left and the native
	// save control on the right; the enhance button goes between them.
	if header := p.Find("div.header div.media.media-middle").First(); header.Length() > 0 {
		return header
	}
	if form := p.Find("form#edit-activity, form.edit_activity").First(); form.Length() > 0 {
		return form
	}
	return nil
}

func (a *StravaAdapter) GetTitle(p *dom.Page) (string, bool) {
	v, ok := p.InputValue(stravaTitleInput)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (a *StravaAdapter) SetTitle(p *dom.Page, value string) {
	p.SetInputValue(stravaTitleInput, value, dom.EventInput, dom.EventChange)
}

func (a *StravaAdapter) GetDescription(p *dom.Page) (string, bool) {
	// Strava renders the description through a React component that mounts
	// either a textarea or a contenteditable div.
	if container := p.Find(stravaDescContainer).First(); container.Length() > 0 {
		if ta := container.Find("textarea").First(); ta.Length() > 0 {
			return strings.TrimSpace(ta.Text()), true
		}
		if ce := container.Find(`[contenteditable="true"]`).First(); ce.Length() > 0 {
			return strings.TrimSpace(ce.Text()), true
		}
	}
	return p.Text(stravaDescFallback)
}

func (a *StravaAdapter) SetDescription(p *dom.Page, value string) {
	if container := p.Find(stravaDescContainer).First(); container.Length() > 0 {
		if container.Find("textarea").Length() > 0 {
			p.SetInputValue(stravaDescTextarea, value, dom.EventInput, dom.EventChange)
			return
		}
		if container.Find(`[contenteditable="true"]`).Length() > 0 {
			p.SetEditableText(stravaDescEditable, value, dom.EventInput, dom.EventChange)
			return
		}
	}
	p.SetInputValue(stravaDescFallback, value, dom.EventInput, dom.EventChange)
}

// GetStats reads the edit-page stats table. Rows are keyed by their first cell
// label; only labels actually present end up in the result.
func (a *StravaAdapter) GetStats(p *dom.Page) Stats {
	var stats Stats

	p.Find("table.table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		label := strings.ToLower(strings.TrimSpace(cells.Eq(0).Text()))
		value := strings.TrimSpace(cells.Eq(1).Text())
		if label == "" || value == "" {
			return
		}

		switch label {
		case "distance":
			stats.Distance = value
		case "time":
			stats.Time = value
		case "elevation gain":
			stats.ElevationGain = value
		case "date":
			stats.Date = value
		}
	})

	// Document title is "Morning Run | Run | Strava"; the middle part is the
	// sport type.
	if parts := strings.Split(p.DocumentTitle(), "|"); len(parts) >= 2 {
		stats.Sport = strings.TrimSpace(parts[1])
	}

	return stats
}

// ExtractDetailsPageData pulls the rich field set from the read-only details
// view. Each lookup stands alone; a missing node leaves its field empty.
func (a *StravaAdapter) ExtractDetailsPageData(p *dom.Page) domain.ExtendedActivityData {
	var data domain.ExtendedActivityData

	data.Title = firstText(p, "h1.activity-name", ".activity-summary h1")
	data.Description = firstText(p, ".activity-description", ".activity-summary .description")
	data.AthleteName = firstText(p, ".activity-summary .athlete-name", "a.minimal[href^='/athletes/']")
	data.ActivityType = firstText(p, ".activity-summary .title .type", "span.title")
	data.WorkoutType = firstText(p, ".workout-type")
	data.Location = firstText(p, ".activity-summary .location")
	data.TimeDisplay = firstText(p, ".activity-summary time")
	if sel := p.Find(".activity-summary time").First(); sel.Length() > 0 {
		if iso, ok := sel.Attr("datetime"); ok {
			data.TimeISO = strings.TrimSpace(iso)
		}
	}

	// Primary stats strip: <li><strong>value</strong><div class="label">Distance</div></li>
	p.Find("ul.inline-stats li").Each(func(_ int, li *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(li.Find(".label").Text()))
		value := strings.TrimSpace(li.Find("strong").Text())
		if label == "" || value == "" {
			return
		}
		applyStatLabel(&data, label, value)
	})

	// Secondary stats table on the details page.
	p.Find("div.section.more-stats div.row").Each(func(_ int, row *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(row.Find(".spans3").First().Text()))
		value := strings.TrimSpace(row.Find(".spans5, strong").First().Text())
		if label == "" || value == "" {
			return
		}
		applyStatLabel(&data, label, value)
	})

	if data.Sport == "" {
		if parts := strings.Split(p.DocumentTitle(), "|"); len(parts) >= 2 {
			data.Sport = strings.TrimSpace(parts[1])
		}
	}

	return data
}

func applyStatLabel(data *domain.ExtendedActivityData, label, value string) {
	switch {
	case strings.Contains(label, "distance"):
		data.Distance = value
	case strings.Contains(label, "moving time"):
		data.MovingTime = value
	case strings.Contains(label, "elapsed time"):
		data.ElapsedTime = value
	case label == "time" || strings.Contains(label, "duration"):
		data.Time = value
	case strings.Contains(label, "pace"):
		data.AveragePace = value
	case strings.Contains(label, "elevation"):
		data.ElevationGain = value
	case strings.Contains(label, "calories"):
		data.Calories = value
	case strings.Contains(label, "heart rate"):
		data.AverageHeartRate = value
	case strings.Contains(label, "cadence"):
		data.AverageCadence = value
	case strings.Contains(label, "temperature"):
		data.Temperature = value
	case strings.Contains(label, "humidity"):
		data.Humidity = value
	case strings.Contains(label, "wind"):
		data.Wind = value
	}
}

func (a *StravaAdapter) LocateEditButton(p *dom.Page) (string, bool) {
	if p.Find(stravaEditButton).Length() > 0 {
		return stravaEditButton, true
	}
	return "", false
}

func (a *StravaAdapter) TitleFieldSelector() string {
	return stravaTitleInput
}

func (a *StravaAdapter) DescriptionFieldSelector() string {
	return stravaDescContainer
}

func (a *StravaAdapter) RelevantMutation(nodeHTML string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(nodeHTML))
	if err != nil {
		return false
	}
	root := doc.Find("body").Children().First()
	if root.Length() == 0 {
		return false
	}

	switch goquery.NodeName(root) {
	case "form", "main":
		return true
	}
	if class, ok := root.Attr("class"); ok {
		if strings.Contains(class, "activity") || strings.Contains(class, "edit") {
			return true
		}
	}
	return root.Find(stravaTitleInput).Length() > 0
}

func (a *StravaAdapter) ReadinessDelay() time.Duration {
	// Strava is a SPA; give React a beat to render after document-complete.
	return 100 * time.Millisecond
}

func firstText(p *dom.Page, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := p.Text(sel); ok && v != "" {
			return v
		}
	}
	return ""
}
