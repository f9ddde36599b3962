package domain

import "time"

// EnhancementState tracks the enhance flow within one page instance.
type EnhancementState string

const (
	StateIdle       EnhancementState = "idle"
	StateCollecting EnhancementState = "collecting"
	StateRequesting EnhancementState = "requesting"
	StatePreview    EnhancementState = "preview"
	StateApplying   EnhancementState = "applying"
	StateError      EnhancementState = "error"
	StateDone       EnhancementState = "done"
)

func (s EnhancementState) String() string {
	return string(s)
}

// FieldState is the per-field preview sub-state on the edit page. Title and
// description transition independently.
type FieldState string

const (
	FieldPending   FieldState = "pending"
	FieldApplied   FieldState = "applied"
	FieldDiscarded FieldState = "discarded"
)

// PreviewField names the two independently previewable form fields.
type PreviewField string

const (
	FieldTitle       PreviewField = "title"
	FieldDescription PreviewField = "description"
)

// EnhancementResult is the outcome of one model call. On parse trouble the
// caller falls back to the original text, so Success stays true for degraded
// results; Success is false only for provider/network failures.
type EnhancementResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

// PendingEnhancement bridges the details-page extraction and the edit-page
// preview across a navigation the service does not control. The record carries
// its own timestamp: the two page instances share no clock, so expiry is
// decided from the persisted stamp alone.
type PendingEnhancement struct {
	ActivityID          string               `json:"activityId"`
	ExtractedData       ExtendedActivityData `json:"extractedData"`
	OriginalTitle       string               `json:"originalTitle"`
	OriginalDescription string               `json:"originalDescription"`
	EnhancedTitle       string               `json:"enhancedTitle,omitempty"`
	EnhancedDescription string               `json:"enhancedDescription,omitempty"`
	Timestamp           time.Time            `json:"timestamp"`
}

// HasEnhancedData reports whether the background model call has populated both
// preview fields.
func (p *PendingEnhancement) HasEnhancedData() bool {
	return p != nil && p.EnhancedTitle != "" && p.EnhancedDescription != ""
}

// PendingUpdate is a partial merge onto an existing pending record. Nil fields
// are left untouched.
type PendingUpdate struct {
	EnhancedTitle       *string
	EnhancedDescription *string
}
