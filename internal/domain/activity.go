package domain

// ActivityData is the uniform activity record produced by adapter extraction.
// Title and description are always present (possibly empty); stats fields are
// best effort and stay empty when the page does not expose them.
type ActivityData struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Sport         string `json:"sport,omitempty"`
	Distance      string `json:"distance,omitempty"`
	Time          string `json:"time,omitempty"`
	ElevationGain string `json:"elevationGain,omitempty"`
	Date          string `json:"date,omitempty"`
}

// ExtendedActivityData carries the richer details-page extraction. Every field
// is optional; a missing page node yields an empty string, never an error.
type ExtendedActivityData struct {
	ActivityData

	AthleteName      string `json:"athleteName,omitempty"`
	ActivityType     string `json:"activityType,omitempty"`
	WorkoutType      string `json:"workoutType,omitempty"`
	TimeDisplay      string `json:"timeDisplay,omitempty"`
	TimeISO          string `json:"timeISO,omitempty"`
	Location         string `json:"location,omitempty"`
	MovingTime       string `json:"movingTime,omitempty"`
	ElapsedTime      string `json:"elapsedTime,omitempty"`
	Calories         string `json:"calories,omitempty"`
	AveragePace      string `json:"averagePace,omitempty"`
	AverageHeartRate string `json:"averageHeartRate,omitempty"`
	AverageCadence   string `json:"averageCadence,omitempty"`
	Temperature      string `json:"temperature,omitempty"`
	Humidity         string `json:"humidity,omitempty"`
	Wind             string `json:"wind,omitempty"`
}

// OptionalFields returns the non-required fields as ordered label/value pairs,
// in the order they are rendered into the detailed prompt. Empty values are
// included; the prompt builder skips them.
func (e *ExtendedActivityData) OptionalFields() []LabeledField {
	return []LabeledField{
		{"Athlete", e.AthleteName},
		{"Activity Type", e.ActivityType},
		{"Workout Type", e.WorkoutType},
		{"Sport", e.Sport},
		{"Date", e.Date},
		{"Time", e.TimeDisplay},
		{"Location", e.Location},
		{"Distance", e.Distance},
		{"Moving Time", e.MovingTime},
		{"Elapsed Time", e.ElapsedTime},
		{"Elevation Gain", e.ElevationGain},
		{"Calories", e.Calories},
		{"Average Pace", e.AveragePace},
		{"Average Heart Rate", e.AverageHeartRate},
		{"Average Cadence", e.AverageCadence},
		{"Temperature", e.Temperature},
		{"Humidity", e.Humidity},
		{"Wind", e.Wind},
	}
}

type LabeledField struct {
	Label string
	Value string
}
