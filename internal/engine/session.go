package engine

import (
	"sync"
	"time"

	"github.com/veloform/activity-enhancer-go/internal/dom"
	"github.com/veloform/activity-enhancer-go/internal/domain"
	"github.com/veloform/activity-enhancer-go/internal/site"
)

// Notifier carries user-facing frames back to the page client. The bridge
// implements it per connection; tests substitute a recorder.
type Notifier interface {
	NotifyState(state domain.EnhancementState)

	// NotifyPreview surfaces one enhanced field next to its form field.
	// selector is empty when the adapter exposes no field locator.
	NotifyPreview(field domain.PreviewField, selector, original, enhanced string)

	// NotifyError surfaces a failure. Retryable errors offer the retry
	// control; context-invalidated ones tell the user to reload.
	NotifyError(message string, retryable bool)
}

// PageSession owns all mutable state for one connected page. Nothing here is
// shared between pages; the cross-page handoff goes through the pending store
// only.
type PageSession struct {
	mu sync.Mutex

	page     *dom.Page
	loc      dom.Location
	notifier Notifier

	adapter    site.Adapter
	pageType   site.PageType
	activityID string

	state       domain.EnhancementState
	inProgress  bool
	lastTrigger time.Time
	fieldStates map[domain.PreviewField]domain.FieldState

	// awaiting marks a live pending-store poll so redundant initialization
	// never stacks a second one.
	awaiting bool

	// handedOff marks that the native edit control was activated; the result
	// then belongs to the edit page, not this page instance.
	handedOff bool

	// pending is the record driving the current preview, kept so Reset can
	// restore originals without another store read.
	pending *domain.PendingEnhancement
}

func NewPageSession(loc dom.Location, page *dom.Page, notifier Notifier) *PageSession {
	return &PageSession{
		page:        page,
		loc:         loc,
		notifier:    notifier,
		state:       domain.StateIdle,
		fieldStates: make(map[domain.PreviewField]domain.FieldState),
	}
}

func (ps *PageSession) Location() dom.Location {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.loc
}

func (ps *PageSession) State() domain.EnhancementState {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.state
}

func (ps *PageSession) FieldState(field domain.PreviewField) (domain.FieldState, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	state, ok := ps.fieldStates[field]
	return state, ok
}

// Reload swaps in a fresh snapshot after a navigation or relevant mutation.
// Preview bookkeeping survives only when the activity stays the same.
func (ps *PageSession) Reload(loc dom.Location, page *dom.Page) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	sameActivity := ps.adapter != nil && ps.activityID != "" &&
		ps.adapter.ActivityID(loc) == ps.activityID

	ps.loc = loc
	ps.page = page
	ps.adapter = nil
	ps.pageType = site.PageUnknown
	ps.handedOff = false

	if !sameActivity {
		ps.state = domain.StateIdle
		ps.inProgress = false
		ps.fieldStates = make(map[domain.PreviewField]domain.FieldState)
		ps.pending = nil
		ps.activityID = ""
	}
}

func (ps *PageSession) setState(state domain.EnhancementState) {
	ps.state = state
	if ps.notifier != nil {
		ps.notifier.NotifyState(state)
	}
}

func (ps *PageSession) notifyError(message string, retryable bool) {
	if ps.notifier != nil {
		ps.notifier.NotifyError(message, retryable)
	}
}

func (ps *PageSession) notifyPreview(field domain.PreviewField, selector, original, enhanced string) {
	if ps.notifier != nil {
		ps.notifier.NotifyPreview(field, selector, original, enhanced)
	}
}
