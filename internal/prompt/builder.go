// Package prompt builds model instructions for activity enhancement and
// parses the model's JSON replies.
package prompt

import (
	"fmt"
	"strings"

	"github.com/veloform/activity-enhancer-go/internal/constants"
	"github.com/veloform/activity-enhancer-go/internal/domain"
)

// Build renders the enhancement prompt from the basic activity record. Pure
// and deterministic; the content-limit numbers are part of the contract and
// appear literally in the instruction text.
func Build(activity domain.ActivityData, settings domain.Settings) string {
	var sb strings.Builder

	sb.WriteString(systemInstructions(settings))
	sb.WriteString("\n\n")
	sb.WriteString(activityContext(activity, settings))
	sb.WriteString("\n\nPlease enhance this activity following the constraints above.")

	return sb.String()
}

// BuildDetailed renders the richer details-page prompt. Every non-empty
// optional field becomes a labeled line; absent fields are skipped outright,
// never padded with placeholders.
func BuildDetailed(extended domain.ExtendedActivityData, settings domain.Settings) string {
	var sb strings.Builder

	sb.WriteString(systemInstructions(settings))
	sb.WriteString("\n\nUser Activity Input:\n")
	fmt.Fprintf(&sb, "Title: %q\n", orNone(extended.Title))
	fmt.Fprintf(&sb, "Description: %q", orNone(extended.Description))

	for _, field := range extended.OptionalFields() {
		if field.Value == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n%s: %s", field.Label, field.Value)
	}

	fmt.Fprintf(&sb, "\nTone: %s", settings.Tone)
	sb.WriteString("\n\nPlease enhance this activity following the constraints above.")

	return sb.String()
}

func systemInstructions(settings domain.Settings) string {
	var sb strings.Builder

	sb.WriteString("You are an assistant that rewrites endurance activity titles & descriptions.\n\nConstraints:\n")
	fmt.Fprintf(&sb, "- Title <= %d characters; motivational, concise; no emojis unless original had them.\n",
		constants.ContentLimits.TitleMax)
	fmt.Fprintf(&sb, "- Description <= %d characters; positive tone; never fabricate stats.\n",
		constants.ContentLimits.DescriptionMax)
	sb.WriteString("- Maintain factual data present in original text only.\n")

	if settings.GenerateHashtags {
		fmt.Fprintf(&sb, "- Append %d-%d lowercase hashtags at end of description (no duplicates).\n",
			constants.ContentLimits.HashtagsMin, constants.ContentLimits.HashtagsMax)
	}
	if settings.IncludeWeather {
		sb.WriteString("- Incorporate brief weather note if given.\n")
	}

	sb.WriteString(`
Return ONLY valid JSON in this exact format:
{
  "title": "enhanced title here",
  "description": "enhanced description here"
}`)

	return sb.String()
}

func activityContext(activity domain.ActivityData, settings domain.Settings) string {
	var sb strings.Builder

	sb.WriteString("User Activity Input:\n")
	fmt.Fprintf(&sb, "Title: %q\n", orNone(activity.Title))
	fmt.Fprintf(&sb, "Description: %q", orNone(activity.Description))

	if activity.Sport != "" {
		fmt.Fprintf(&sb, "\nActivity Type: %s", activity.Sport)
	}
	if activity.Distance != "" {
		fmt.Fprintf(&sb, "\nDistance: %s", activity.Distance)
	}
	if activity.Time != "" {
		fmt.Fprintf(&sb, "\nTime: %s", activity.Time)
	}
	if activity.ElevationGain != "" {
		fmt.Fprintf(&sb, "\nElevation Gain: %s", activity.ElevationGain)
	}
	if activity.Date != "" {
		fmt.Fprintf(&sb, "\nDate: %s", activity.Date)
	}

	fmt.Fprintf(&sb, "\nTone: %s", settings.Tone)

	return sb.String()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
