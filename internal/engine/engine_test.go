package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/veloform/activity-enhancer-go/internal/dom"
	"github.com/veloform/activity-enhancer-go/internal/domain"
	"github.com/veloform/activity-enhancer-go/internal/service/llm"
	"github.com/veloform/activity-enhancer-go/internal/service/session"
	"github.com/veloform/activity-enhancer-go/internal/site"
	"github.com/veloform/activity-enhancer-go/internal/storage"
	"go.uber.org/zap"
)

type previewFrame struct {
	field    domain.PreviewField
	selector string
	original string
	enhanced string
}

type errorFrame struct {
	message   string
	retryable bool
}

type fakeNotifier struct {
	mu       sync.Mutex
	states   []domain.EnhancementState
	previews []previewFrame
	errors   []errorFrame
}

func (f *fakeNotifier) NotifyState(state domain.EnhancementState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
}

func (f *fakeNotifier) NotifyPreview(field domain.PreviewField, selector, original, enhanced string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previews = append(f.previews, previewFrame{field, selector, original, enhanced})
}

func (f *fakeNotifier) NotifyError(message string, retryable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errorFrame{message, retryable})
}

func (f *fakeNotifier) previewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.previews)
}

func (f *fakeNotifier) stateCount(state domain.EnhancementState) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.states {
		if s == state {
			n++
		}
	}
	return n
}

type testRig struct {
	engine   *Engine
	store    *session.MemoryStore
	settings *storage.SettingsStore
	notifier *fakeNotifier
	sink     *dom.RecordingSink
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	logger := zap.NewNop()
	store := session.NewMemoryStore()
	settings := storage.NewSettingsStore(storage.NewMemoryKV(), logger)

	// No API keys configured, so the deterministic stub backs every call.
	enhancer, err := llm.NewEnhancer(context.Background(), llm.EnhancerConfig{}, logger)
	if err != nil {
		t.Fatalf("NewEnhancer: %v", err)
	}

	return &testRig{
		engine:   NewEngine(site.NewRegistry(), store, settings, enhancer, logger),
		store:    store,
		settings: settings,
		notifier: &fakeNotifier{},
		sink:     &dom.RecordingSink{},
	}
}

func (r *testRig) newSession(t *testing.T, rawURL, html string) *PageSession {
	t.Helper()

	loc, err := dom.ParseLocation(rawURL)
	if err != nil {
		t.Fatalf("ParseLocation: %v", err)
	}
	page, err := dom.NewPage(loc, html, r.sink)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	return NewPageSession(loc, page, r.notifier)
}

func (r *testRig) commandsOfType(cmdType string) []dom.Command {
	var out []dom.Command
	for _, cmd := range r.sink.Commands {
		if cmd.Type == cmdType {
			out = append(out, cmd)
		}
	}
	return out
}

const stravaDetailsHTML = `<html><head><title>Morning Run | Run | Strava</title></head><body>
	<div class="header"><div class="media media-middle"><h1 class="activity-name">Morning Run</h1></div></div>
	<div class="activity-summary">
		<div class="activity-description">lake loop before work</div>
	</div>
	<ul class="inline-stats">
		<li><strong>10.2 km</strong><div class="label">Distance</div></li>
	</ul>
</body></html>`

const stravaDetailsWithEditHTML = `<html><head><title>Morning Run | Run | Strava</title></head><body>
	<div class="header"><div class="media media-middle"><h1 class="activity-name">Morning Run</h1></div></div>
	<div class="activity-summary"><div class="activity-description">lake loop</div></div>
	<a href="/activities/123/edit">Edit</a>
</body></html>`

const stravaEditHTML = `<html><head><title>Edit | Strava</title></head><body>
	<div class="header"><div class="media media-middle"><h1>Edit Activity</h1></div></div>
	<input id="activity_name" name="activity[name]" value="Morning Run">
	<div class="description" data-react-class="ActivityDescriptionEdit"><textarea>lake loop before work</textarea></div>
</body></html>`

func TestInitializeUnsupportedHostIsSilent(t *testing.T) {
	rig := newTestRig(t)
	ps := rig.newSession(t, "https://example.com/activities/123", stravaDetailsHTML)

	rig.engine.Initialize(context.Background(), ps)

	if len(rig.sink.Commands) != 0 {
		t.Fatalf("expected no commands, got %v", rig.sink.Commands)
	}
	if ps.State() != domain.StateIdle {
		t.Fatalf("state = %v", ps.State())
	}
}

func TestInitializeDisabledDomainIsSilent(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	if err := rig.settings.SaveDomainPrefs(ctx, domain.DomainPrefs{"www.strava.com": false}); err != nil {
		t.Fatalf("SaveDomainPrefs: %v", err)
	}

	ps := rig.newSession(t, "https://www.strava.com/activities/123", stravaDetailsHTML)
	rig.engine.Initialize(ctx, ps)

	if len(rig.sink.Commands) != 0 {
		t.Fatalf("expected no commands for a disabled domain, got %v", rig.sink.Commands)
	}
}

func TestDetailsInjectionIsIdempotent(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	ps := rig.newSession(t, "https://www.strava.com/activities/123", stravaDetailsHTML)

	rig.engine.Initialize(ctx, ps)
	rig.engine.Initialize(ctx, ps)
	rig.engine.Initialize(ctx, ps)

	injects := rig.commandsOfType(dom.CommandInjectButton)
	if len(injects) != 1 {
		t.Fatalf("expected exactly one injected button, got %d", len(injects))
	}
}

func TestEnhanceFlowInPlacePreview(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	ps := rig.newSession(t, "https://www.strava.com/activities/123", stravaDetailsHTML)

	rig.engine.Initialize(ctx, ps)
	rig.engine.TriggerEnhance(ctx, ps)
	rig.engine.Wait()

	if ps.State() != domain.StatePreview {
		t.Fatalf("state = %v, want preview", ps.State())
	}

	if rig.notifier.previewCount() != 2 {
		t.Fatalf("expected 2 preview frames, got %d", rig.notifier.previewCount())
	}

	pending, err := rig.store.Get(ctx, "123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if pending == nil {
		t.Fatal("pending record missing")
	}
	if pending.EnhancedTitle != "✨ Morning Run - Epic Journey" {
		t.Errorf("EnhancedTitle = %q", pending.EnhancedTitle)
	}
	if !strings.Contains(pending.EnhancedDescription, "#fitness") {
		t.Errorf("EnhancedDescription = %q", pending.EnhancedDescription)
	}
	if pending.OriginalTitle != "Morning Run" {
		t.Errorf("OriginalTitle = %q", pending.OriginalTitle)
	}

	// Nothing has been accepted yet, so the usage counter stays untouched.
	metrics := rig.settings.GetMetrics(ctx)
	if metrics.MonthlyEnhancementCount != 0 {
		t.Errorf("usage counter = %d, want 0 before any accept", metrics.MonthlyEnhancementCount)
	}
}

func TestUsageCounterMetersAcceptedEnhancementsOnly(t *testing.T) {
	ctx := context.Background()

	// Discarding both fields must not meter the enhancement.
	rig := newTestRig(t)
	seedPending(t, rig, true)
	ps := rig.newSession(t, "https://www.strava.com/activities/123/edit", stravaEditHTML)
	rig.engine.Initialize(ctx, ps)
	rig.engine.DiscardField(ctx, ps, domain.FieldTitle)
	rig.engine.DiscardField(ctx, ps, domain.FieldDescription)

	if got := rig.settings.GetMetrics(ctx).MonthlyEnhancementCount; got != 0 {
		t.Fatalf("usage counter = %d after discarding everything, want 0", got)
	}

	// One accepted field meters exactly once.
	rig = newTestRig(t)
	seedPending(t, rig, true)
	ps = rig.newSession(t, "https://www.strava.com/activities/123/edit", stravaEditHTML)
	rig.engine.Initialize(ctx, ps)
	rig.engine.ApplyField(ctx, ps, domain.FieldTitle)
	rig.engine.DiscardField(ctx, ps, domain.FieldDescription)

	if got := rig.settings.GetMetrics(ctx).MonthlyEnhancementCount; got != 1 {
		t.Fatalf("usage counter = %d after one accept, want 1", got)
	}

	// Accepting the second field of the same enhancement does not double count.
	rig = newTestRig(t)
	seedPending(t, rig, true)
	ps = rig.newSession(t, "https://www.strava.com/activities/123/edit", stravaEditHTML)
	rig.engine.Initialize(ctx, ps)
	rig.engine.ApplyField(ctx, ps, domain.FieldTitle)
	rig.engine.ApplyField(ctx, ps, domain.FieldDescription)

	if got := rig.settings.GetMetrics(ctx).MonthlyEnhancementCount; got != 1 {
		t.Fatalf("usage counter = %d after accepting both fields, want 1", got)
	}
}

func TestEnhanceDebounceDropsRapidRetrigger(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	ps := rig.newSession(t, "https://www.strava.com/activities/123", stravaDetailsHTML)

	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	rig.engine.SetClock(func() time.Time { return base })

	rig.engine.Initialize(ctx, ps)
	rig.engine.TriggerEnhance(ctx, ps)
	rig.engine.TriggerEnhance(ctx, ps)
	rig.engine.Wait()

	if got := rig.notifier.stateCount(domain.StateCollecting); got != 1 {
		t.Fatalf("expected one collecting transition, got %d", got)
	}
}

func TestEnhanceInvalidDataFailsFast(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	empty := `<html><body><div class="header"><div class="media media-middle"><h1></h1></div></div></body></html>`
	ps := rig.newSession(t, "https://www.strava.com/activities/123", empty)

	rig.engine.Initialize(ctx, ps)
	rig.engine.TriggerEnhance(ctx, ps)
	rig.engine.Wait()

	if ps.State() != domain.StateError {
		t.Fatalf("state = %v, want error", ps.State())
	}

	rig.notifier.mu.Lock()
	defer rig.notifier.mu.Unlock()
	if len(rig.notifier.errors) != 1 {
		t.Fatalf("expected one error frame, got %d", len(rig.notifier.errors))
	}
	if !rig.notifier.errors[0].retryable {
		t.Error("extraction failure must be retryable")
	}

	if pending, _ := rig.store.Get(ctx, "123"); pending != nil {
		t.Fatal("no pending record may be written before validation passes")
	}
}

func TestEnhanceActivatesNativeEditControl(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	ps := rig.newSession(t, "https://www.strava.com/activities/123", stravaDetailsWithEditHTML)

	rig.engine.Initialize(ctx, ps)
	rig.engine.TriggerEnhance(ctx, ps)
	rig.engine.Wait()

	clicks := rig.commandsOfType(dom.CommandClick)
	if len(clicks) != 1 {
		t.Fatalf("expected one native click, got %d", len(clicks))
	}
	if !strings.Contains(clicks[0].Selector, "/edit") {
		t.Errorf("click selector = %q", clicks[0].Selector)
	}

	// The handoff target picks the result up from the store.
	pending, _ := rig.store.Get(ctx, "123")
	if pending == nil || !pending.HasEnhancedData() {
		t.Fatalf("background enhancement must still complete, got %+v", pending)
	}
}

func seedPending(t *testing.T, rig *testRig, withEnhanced bool) {
	t.Helper()
	ctx := context.Background()

	if err := rig.store.Save(ctx, &domain.PendingEnhancement{
		ActivityID:          "123",
		OriginalTitle:       "Morning Run",
		OriginalDescription: "lake loop before work",
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if withEnhanced {
		title := "✨ Morning Run - Epic Journey"
		desc := "Crushed the lake loop today! #fitness #running #goals"
		if err := rig.store.Update(ctx, "123", domain.PendingUpdate{
			EnhancedTitle:       &title,
			EnhancedDescription: &desc,
		}); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
}

func TestEditFlowApplyAndDiscard(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	seedPending(t, rig, true)

	ps := rig.newSession(t, "https://www.strava.com/activities/123/edit", stravaEditHTML)
	rig.engine.Initialize(ctx, ps)

	if ps.State() != domain.StatePreview {
		t.Fatalf("state = %v, want preview", ps.State())
	}
	if rig.notifier.previewCount() != 2 {
		t.Fatalf("expected 2 per-field previews, got %d", rig.notifier.previewCount())
	}

	rig.notifier.mu.Lock()
	for _, p := range rig.notifier.previews {
		if p.selector == "" {
			t.Errorf("preview for %s carries no field selector", p.field)
		}
		if p.original == "" || p.enhanced == "" {
			t.Errorf("preview for %s missing content: %+v", p.field, p)
		}
	}
	rig.notifier.mu.Unlock()

	rig.engine.ApplyField(ctx, ps, domain.FieldTitle)

	writes := rig.commandsOfType(dom.CommandSetField)
	if len(writes) != 1 {
		t.Fatalf("expected one field write after apply, got %d", len(writes))
	}
	if writes[0].Value != "✨ Morning Run - Epic Journey" {
		t.Errorf("applied value = %q", writes[0].Value)
	}
	if len(writes[0].Events) == 0 || writes[0].Events[0] != dom.EventInput {
		t.Errorf("apply must dispatch notification events, got %v", writes[0].Events)
	}

	if state, _ := ps.FieldState(domain.FieldTitle); state != domain.FieldApplied {
		t.Errorf("title field state = %v", state)
	}

	// Record survives while a field is still pending.
	if pending, _ := rig.store.Get(ctx, "123"); pending == nil {
		t.Fatal("pending record cleared too early")
	}

	rig.engine.DiscardField(ctx, ps, domain.FieldDescription)

	if state, _ := ps.FieldState(domain.FieldDescription); state != domain.FieldDiscarded {
		t.Errorf("description field state = %v", state)
	}
	if ps.State() != domain.StateDone {
		t.Errorf("state = %v, want done", ps.State())
	}
	if pending, _ := rig.store.Get(ctx, "123"); pending != nil {
		t.Fatal("pending record must be cleared once both fields resolve")
	}

	// Discard never writes to the page.
	if got := rig.commandsOfType(dom.CommandSetField); len(got) != 1 {
		t.Fatalf("discard must not write fields, got %d writes", len(got))
	}
}

func TestEditFlowResetRestoresOriginals(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	seedPending(t, rig, true)

	ps := rig.newSession(t, "https://www.strava.com/activities/123/edit", stravaEditHTML)
	rig.engine.Initialize(ctx, ps)
	rig.engine.ApplyField(ctx, ps, domain.FieldTitle)

	rig.engine.Reset(ctx, ps)

	writes := rig.commandsOfType(dom.CommandSetField)
	// apply + two restores
	if len(writes) != 3 {
		t.Fatalf("expected 3 field writes, got %d", len(writes))
	}
	if writes[1].Value != "Morning Run" {
		t.Errorf("restored title = %q", writes[1].Value)
	}
	if writes[2].Value != "lake loop before work" {
		t.Errorf("restored description = %q", writes[2].Value)
	}

	if ps.State() != domain.StateIdle {
		t.Errorf("state after reset = %v", ps.State())
	}
	if pending, _ := rig.store.Get(ctx, "123"); pending != nil {
		t.Fatal("reset must clear the pending record")
	}
}

func TestEditFlowResetRequiresAnApply(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	seedPending(t, rig, true)

	ps := rig.newSession(t, "https://www.strava.com/activities/123/edit", stravaEditHTML)
	rig.engine.Initialize(ctx, ps)

	rig.engine.Reset(ctx, ps)

	if got := rig.commandsOfType(dom.CommandSetField); len(got) != 0 {
		t.Fatalf("reset before any apply must be a no-op, got %d writes", len(got))
	}
	if pending, _ := rig.store.Get(ctx, "123"); pending == nil {
		t.Fatal("reset before any apply must not clear the record")
	}
}

func TestEditFlowRedundantInitPresentsOnePreview(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	seedPending(t, rig, false)

	ps := rig.newSession(t, "https://www.strava.com/activities/123/edit", stravaEditHTML)

	// Mutation-driven re-initialization may fire any number of times while
	// the background enhancement is still outstanding.
	rig.engine.Initialize(ctx, ps)
	rig.engine.Initialize(ctx, ps)

	title := "✨ Morning Run - Epic Journey"
	desc := "Crushed the lake loop today! #fitness #running #goals"
	if err := rig.store.Update(ctx, "123", domain.PendingUpdate{
		EnhancedTitle:       &title,
		EnhancedDescription: &desc,
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	rig.engine.Wait()

	if got := rig.notifier.previewCount(); got != 2 {
		t.Fatalf("preview frames = %d, want exactly 2 (one per field)", got)
	}

	// Re-initializing an already-previewing page stays silent too.
	rig.engine.Initialize(ctx, ps)
	if got := rig.notifier.previewCount(); got != 2 {
		t.Fatalf("preview frames after re-init = %d, want 2", got)
	}
}

func TestEnhanceHandoffDefersPreviewToEditPage(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	ps := rig.newSession(t, "https://www.strava.com/activities/123", stravaDetailsWithEditHTML)
	rig.engine.Initialize(ctx, ps)
	rig.engine.TriggerEnhance(ctx, ps)
	rig.engine.Wait()

	// The model finished before the navigation landed; the details page must
	// not steal the preview.
	if got := rig.notifier.previewCount(); got != 0 {
		t.Fatalf("previews on the details page mid-handoff = %d, want 0", got)
	}

	// The navigation arrives and the edit page picks the result up.
	editLoc, err := dom.ParseLocation("https://www.strava.com/activities/123/edit")
	if err != nil {
		t.Fatalf("ParseLocation: %v", err)
	}
	editPage, err := dom.NewPage(editLoc, stravaEditHTML, rig.sink)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	ps.Reload(editLoc, editPage)
	rig.engine.Initialize(ctx, ps)

	if ps.State() != domain.StatePreview {
		t.Fatalf("state = %v, want preview on the edit page", ps.State())
	}
	if got := rig.notifier.previewCount(); got != 2 {
		t.Fatalf("edit page previews = %d, want 2", got)
	}
}

func TestEditFlowTimesOutSilently(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	seedPending(t, rig, false)

	// First call stamps the wait deadline; later calls are past it, so the
	// poll gives up on its first tick.
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	calls := 0
	rig.engine.SetClock(func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(time.Minute)
	})

	ps := rig.newSession(t, "https://www.strava.com/activities/123/edit", stravaEditHTML)
	rig.engine.Initialize(ctx, ps)
	rig.engine.Wait()

	if rig.notifier.previewCount() != 0 {
		t.Fatal("timeout must not surface a preview")
	}
	rig.notifier.mu.Lock()
	defer rig.notifier.mu.Unlock()
	if len(rig.notifier.errors) != 0 {
		t.Fatal("timeout degrades silently, no error frame")
	}
}

func TestEditFlowNoPendingIsSilent(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	ps := rig.newSession(t, "https://www.strava.com/activities/123/edit", stravaEditHTML)
	rig.engine.Initialize(ctx, ps)
	rig.engine.Wait()

	if rig.notifier.previewCount() != 0 || len(rig.sink.Commands) != 0 {
		t.Fatal("edit page without a pending record must stay untouched")
	}
}

func TestHandleMutationRespectsFilter(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	ps := rig.newSession(t, "https://www.strava.com/activities/123", stravaDetailsHTML)

	rig.engine.Initialize(ctx, ps)
	before := len(rig.commandsOfType(dom.CommandInjectButton))

	rig.engine.HandleMutation(ctx, ps, `<div class="toast-notification">Saved</div>`)
	rig.engine.HandleMutation(ctx, ps, `<form id="edit-activity"></form>`)

	after := len(rig.commandsOfType(dom.CommandInjectButton))
	if before != 1 || after != 1 {
		t.Fatalf("injection count before=%d after=%d, want 1/1", before, after)
	}
}

func TestNavigationWatcherFunnelsPopstate(t *testing.T) {
	logger := zap.NewNop()

	locA, _ := dom.ParseLocation("https://www.strava.com/activities/123")
	locB, _ := dom.ParseLocation("https://www.strava.com/activities/123/edit")

	var mu sync.Mutex
	current := locA
	changed := make(chan dom.Location, 1)

	watcher := NewNavigationWatcher(
		func() dom.Location {
			mu.Lock()
			defer mu.Unlock()
			return current
		},
		func(loc dom.Location) { changed <- loc },
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	mu.Lock()
	current = locB
	mu.Unlock()
	watcher.NotifyPopstate(locB)

	select {
	case loc := <-changed:
		if loc.Raw != locB.Raw {
			t.Fatalf("changed to %q, want %q", loc.Raw, locB.Raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("navigation change never reported")
	}

	// Same location again must not re-fire.
	watcher.NotifyPopstate(locB)
	select {
	case loc := <-changed:
		t.Fatalf("unexpected duplicate change to %q", loc.Raw)
	case <-time.After(100 * time.Millisecond):
	}
}
