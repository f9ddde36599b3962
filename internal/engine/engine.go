package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/veloform/activity-enhancer-go/internal/constants"
	"github.com/veloform/activity-enhancer-go/internal/domain"
	"github.com/veloform/activity-enhancer-go/internal/scrape"
	"github.com/veloform/activity-enhancer-go/internal/service/llm"
	"github.com/veloform/activity-enhancer-go/internal/service/session"
	"github.com/veloform/activity-enhancer-go/internal/site"
	"github.com/veloform/activity-enhancer-go/internal/storage"
	"github.com/veloform/activity-enhancer-go/pkg/errors"
	"go.uber.org/zap"
)

const (
	enhanceButtonLabel = "✨ Enhance"
	msgNoActivityData  = "Could not read activity data from this page"
	msgReloadRequired  = "The page connection was lost. Reload the page and try again"
	msgEnhanceFailed   = "Enhancement failed. You can retry"
)

// Engine drives the enhancement flow for every connected page: injection on
// details pages, pending pickup and per-field previews on edit pages, and the
// state machine in between. All per-page state lives in the PageSession.
type Engine struct {
	registry *site.Registry
	store    session.Store
	settings *storage.SettingsStore
	enhancer *llm.Enhancer
	logger   *zap.Logger
	tasks    conc.WaitGroup
	now      func() time.Time
}

func NewEngine(registry *site.Registry, store session.Store, settings *storage.SettingsStore, enhancer *llm.Enhancer, logger *zap.Logger) *Engine {
	return &Engine{
		registry: registry,
		store:    store,
		settings: settings,
		enhancer: enhancer,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Wait drains in-flight background tasks. Shutdown and test helper.
func (e *Engine) Wait() {
	e.tasks.Wait()
}

// Initialize inspects the session's current page and sets up whatever the page
// type calls for. Unsupported locations and disabled domains are silent
// no-ops. Safe to call redundantly; injection is idempotent.
func (e *Engine) Initialize(ctx context.Context, ps *PageSession) {
	ps.mu.Lock()
	loc := ps.loc
	ps.mu.Unlock()

	adapter := e.registry.Resolve(loc)
	if adapter == nil {
		return
	}

	if !e.settings.IsDomainEnabled(ctx, loc.Host) {
		e.logger.Debug("Domain disabled, skipping", zap.String("host", loc.Host))
		return
	}

	if hinter, ok := adapter.(site.ReadinessHinter); ok {
		time.Sleep(hinter.ReadinessDelay())
	}

	pageType := site.ClassifyPage(adapter, loc)

	ps.mu.Lock()
	ps.adapter = adapter
	ps.pageType = pageType
	ps.activityID = adapter.ActivityID(loc)
	ps.mu.Unlock()

	switch pageType {
	case site.PageDetails:
		e.initDetails(ps)
	case site.PageEdit:
		e.initEdit(ctx, ps)
	}
}

// initDetails injects the enhance button once. The marker attribute makes the
// second and every later call a no-op.
func (e *Engine) initDetails(ps *PageSession) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.page.Has(constants.DOMAttributes.EnhanceButton) {
		return
	}

	anchor := ps.adapter.LocateTitleRoot(ps.page)
	if anchor == nil || anchor.Length() == 0 {
		e.logger.Debug("No title root found, skipping injection",
			zap.String("site", ps.adapter.ID()),
			zap.String("path", ps.loc.Path),
		)
		return
	}

	if ps.page.InjectButton(anchor, constants.DOMAttributes.EnhanceButton, constants.CSSClasses.EnhanceButton, enhanceButtonLabel) {
		e.logger.Info("Enhance button injected",
			zap.String("site", ps.adapter.ID()),
			zap.String("activity_id", ps.activityID),
		)
	}
}

// TriggerEnhance handles the enhance button press on a details page: debounce,
// mutual exclusion, extraction, pending save, then a background model call.
func (e *Engine) TriggerEnhance(ctx context.Context, ps *PageSession) {
	ps.mu.Lock()

	if ps.adapter == nil || ps.pageType != site.PageDetails {
		ps.mu.Unlock()
		return
	}

	now := e.now()
	if ps.inProgress || now.Sub(ps.lastTrigger) < constants.EngineConfig.EnhanceDebounce {
		ps.mu.Unlock()
		e.logger.Debug("Enhance trigger dropped",
			zap.Bool("in_progress", ps.inProgress),
		)
		return
	}
	ps.lastTrigger = now
	ps.inProgress = true
	ps.setState(domain.StateCollecting)

	adapter := ps.adapter
	activityID := ps.activityID
	extracted := scrape.CollectDetails(adapter, ps.page)

	if !scrape.IsValid(extracted.ActivityData) {
		ps.inProgress = false
		ps.setState(domain.StateError)
		ps.mu.Unlock()
		ps.notifyError(msgNoActivityData, true)
		return
	}

	pending := &domain.PendingEnhancement{
		ActivityID:          activityID,
		ExtractedData:       extracted,
		OriginalTitle:       extracted.Title,
		OriginalDescription: extracted.Description,
	}
	ps.pending = pending
	ps.setState(domain.StateRequesting)
	ps.mu.Unlock()

	if err := e.store.Save(ctx, pending); err != nil {
		e.logger.Error("Failed to save pending enhancement",
			zap.String("activity_id", activityID),
			zap.Error(err),
		)
		// Not fatal: the in-place path still works, only the cross-page
		// handoff is lost.
	}

	settings := e.settings.GetSettings(ctx)
	advanced := e.settings.GetAdvancedSettings(ctx)

	e.tasks.Go(func() {
		e.runEnhancement(context.WithoutCancel(ctx), ps, pending, settings, advanced)
	})

	// Hand off to the native edit page when the site has one; the edit flow
	// picks the result up from the store. Otherwise preview in place.
	if nav, ok := adapter.(site.EditNavigator); ok {
		if selector, found := nav.LocateEditButton(ps.page); found {
			ps.mu.Lock()
			ps.handedOff = true
			ps.mu.Unlock()
			ps.page.ClickNative(selector)
			return
		}
	}
}

// runEnhancement is the background model call. It always completes and writes
// its result back to the store: a user who discarded and revisits within the
// TTL reuses the cached result instead of paying for a second call.
func (e *Engine) runEnhancement(ctx context.Context, ps *PageSession, pending *domain.PendingEnhancement, settings domain.Settings, advanced domain.AdvancedSettings) {
	result := e.enhancer.EnhanceDetailed(ctx, pending.ExtractedData, settings, advanced)

	ps.mu.Lock()
	ps.inProgress = false
	ps.mu.Unlock()

	if !result.Success {
		e.failEnhancement(ps, result.Error)
		return
	}

	update := domain.PendingUpdate{
		EnhancedTitle:       &result.Title,
		EnhancedDescription: &result.Description,
	}
	if err := e.store.Update(ctx, pending.ActivityID, update); err != nil {
		e.logger.Error("Failed to store enhancement result",
			zap.String("activity_id", pending.ActivityID),
			zap.Error(err),
		)
	}

	ps.mu.Lock()
	pending.EnhancedTitle = result.Title
	pending.EnhancedDescription = result.Description

	// In-place preview path: the page never navigated and no native edit
	// control was activated, so show the result here. After a handoff the
	// result belongs to the edit page, which picks it up from the store even
	// when the model finishes before the navigation lands.
	inPlace := ps.pageType == site.PageDetails && ps.state == domain.StateRequesting && !ps.handedOff
	if inPlace {
		ps.fieldStates[domain.FieldTitle] = domain.FieldPending
		ps.fieldStates[domain.FieldDescription] = domain.FieldPending
		ps.setState(domain.StatePreview)
	}
	ps.mu.Unlock()

	if inPlace {
		e.presentPreview(ps, pending)
	}
}

func (e *Engine) failEnhancement(ps *PageSession, message string) {
	ps.mu.Lock()
	ps.setState(domain.StateError)
	ps.mu.Unlock()

	if errors.IsContextInvalidated(fmt.Errorf("%s", message)) {
		ps.notifyError(msgReloadRequired, false)
		return
	}
	ps.notifyError(msgEnhanceFailed, true)
}

// Retry re-arms the flow after a retryable error.
func (e *Engine) Retry(ctx context.Context, ps *PageSession) {
	ps.mu.Lock()
	if ps.state != domain.StateError {
		ps.mu.Unlock()
		return
	}
	ps.setState(domain.StateIdle)
	ps.lastTrigger = time.Time{}
	pageType := ps.pageType
	ps.mu.Unlock()

	if pageType == site.PageDetails {
		e.TriggerEnhance(ctx, ps)
	} else {
		e.initEdit(ctx, ps)
	}
}

// Dismiss tears the preview down without applying anything. The pending
// record stays in the store; the TTL bounds its lifetime.
func (e *Engine) Dismiss(ps *PageSession) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.fieldStates = make(map[domain.PreviewField]domain.FieldState)
	ps.setState(domain.StateIdle)
}

func (e *Engine) presentPreview(ps *PageSession, pending *domain.PendingEnhancement) {
	titleSel, descSel := "", ""
	if locator, ok := ps.adapter.(site.FieldLocator); ok {
		titleSel = locator.TitleFieldSelector()
		descSel = locator.DescriptionFieldSelector()
	}

	ps.notifyPreview(domain.FieldTitle, titleSel, pending.OriginalTitle, pending.EnhancedTitle)
	ps.notifyPreview(domain.FieldDescription, descSel, pending.OriginalDescription, pending.EnhancedDescription)
}
