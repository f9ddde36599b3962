// Package scrape holds the pure extraction and sanitization helpers sitting
// between site adapters and the prompt builder.
package scrape

import (
	"regexp"
	"strings"

	"github.com/veloform/activity-enhancer-go/internal/dom"
	"github.com/veloform/activity-enhancer-go/internal/domain"
	"github.com/veloform/activity-enhancer-go/internal/site"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Sanitize collapses internal whitespace runs to single spaces and trims the
// ends. Idempotent.
func Sanitize(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// TruncateAtWordBoundary cuts text to at most maxLength characters, backing up
// to the last space when one exists inside the limit. Already-short strings
// come back unchanged.
func TruncateAtWordBoundary(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}

	truncated := runes[:maxLength]
	if lastSpace := lastIndexRune(truncated, ' '); lastSpace > 0 {
		truncated = truncated[:lastSpace]
	}
	return strings.TrimSpace(string(truncated))
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

// IsValid reports whether the record has anything to enhance. Fully-empty data
// must fail fast before any model call.
func IsValid(data domain.ActivityData) bool {
	return data.Title != "" || data.Description != ""
}

// Collect reads the activity record from the page through the adapter. Stats
// are merged only when the adapter has the capability and only for the keys it
// actually returned.
func Collect(adapter site.Adapter, page *dom.Page) domain.ActivityData {
	rawTitle, _ := adapter.GetTitle(page)
	rawDescription, _ := adapter.GetDescription(page)

	data := domain.ActivityData{
		Title:       Sanitize(rawTitle),
		Description: Sanitize(rawDescription),
	}

	if extractor, ok := adapter.(site.StatsExtractor); ok {
		stats := extractor.GetStats(page)
		if stats.Distance != "" {
			data.Distance = Sanitize(stats.Distance)
		}
		if stats.Time != "" {
			data.Time = Sanitize(stats.Time)
		}
		if stats.Sport != "" {
			data.Sport = Sanitize(stats.Sport)
		}
		if stats.ElevationGain != "" {
			data.ElevationGain = Sanitize(stats.ElevationGain)
		}
		if stats.Date != "" {
			data.Date = Sanitize(stats.Date)
		}
	}

	return data
}

// CollectDetails reads the rich details-page record. Adapters without the
// details capability degrade to the basic extraction embedded in the extended
// shape; title and description always fall back to the basic getters when the
// rich extraction left them empty.
func CollectDetails(adapter site.Adapter, page *dom.Page) domain.ExtendedActivityData {
	var data domain.ExtendedActivityData

	if extractor, ok := adapter.(site.DetailsExtractor); ok {
		data = extractor.ExtractDetailsPageData(page)
		sanitizeExtended(&data)
	}

	if data.Title == "" || data.Description == "" {
		basic := Collect(adapter, page)
		if data.Title == "" {
			data.Title = basic.Title
		}
		if data.Description == "" {
			data.Description = basic.Description
		}
		if data.Sport == "" {
			data.Sport = basic.Sport
		}
		if data.Distance == "" {
			data.Distance = basic.Distance
		}
		if data.Time == "" {
			data.Time = basic.Time
		}
		if data.ElevationGain == "" {
			data.ElevationGain = basic.ElevationGain
		}
		if data.Date == "" {
			data.Date = basic.Date
		}
	}

	return data
}

func sanitizeExtended(data *domain.ExtendedActivityData) {
	fields := []*string{
		&data.Title, &data.Description, &data.Sport, &data.Distance,
		&data.Time, &data.ElevationGain, &data.Date,
		&data.AthleteName, &data.ActivityType, &data.WorkoutType,
		&data.TimeDisplay, &data.TimeISO, &data.Location,
		&data.MovingTime, &data.ElapsedTime, &data.Calories,
		&data.AveragePace, &data.AverageHeartRate, &data.AverageCadence,
		&data.Temperature, &data.Humidity, &data.Wind,
	}
	for _, f := range fields {
		*f = Sanitize(*f)
	}
}
