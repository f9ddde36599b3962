package engine

import (
	"context"
	"time"

	"github.com/veloform/activity-enhancer-go/internal/constants"
	"github.com/veloform/activity-enhancer-go/internal/domain"
	"go.uber.org/zap"
)

// initEdit checks for a pending handoff from the details page. No record
// means the user navigated here on their own; that is not an error, the edit
// page just stays untouched.
func (e *Engine) initEdit(ctx context.Context, ps *PageSession) {
	ps.mu.Lock()
	activityID := ps.activityID
	alreadyPreviewing := ps.state == domain.StatePreview
	ps.mu.Unlock()

	if activityID == "" || alreadyPreviewing {
		return
	}

	pending, err := e.store.Get(ctx, activityID)
	if err != nil {
		e.logger.Error("Pending lookup failed", zap.String("activity_id", activityID), zap.Error(err))
		return
	}
	if pending == nil {
		return
	}

	if pending.HasEnhancedData() {
		e.startPreview(ps, pending)
		return
	}

	// The background model call is still running on the details page's
	// goroutine; poll until it writes the result back or the wait budget
	// runs out. One poll per session, however often initialization re-runs.
	ps.mu.Lock()
	if ps.awaiting {
		ps.mu.Unlock()
		return
	}
	ps.awaiting = true
	ps.mu.Unlock()

	e.tasks.Go(func() {
		defer func() {
			ps.mu.Lock()
			ps.awaiting = false
			ps.mu.Unlock()
		}()
		e.awaitEnhancedData(context.WithoutCancel(ctx), ps, activityID)
	})
}

func (e *Engine) awaitEnhancedData(ctx context.Context, ps *PageSession, activityID string) {
	deadline := e.now().Add(constants.EngineConfig.MaxWaitForEnhancedData)

	ticker := time.NewTicker(constants.EngineConfig.PendingPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.now().After(deadline) {
				e.logger.Info("Timed out waiting for enhanced data",
					zap.String("activity_id", activityID),
					zap.Duration("waited", constants.EngineConfig.MaxWaitForEnhancedData),
				)
				return
			}

			ps.mu.Lock()
			current := ps.activityID
			ps.mu.Unlock()
			if current != activityID {
				// The session moved on to another activity.
				return
			}

			pending, err := e.store.Get(ctx, activityID)
			if err != nil {
				e.logger.Error("Pending poll failed", zap.String("activity_id", activityID), zap.Error(err))
				return
			}
			if pending == nil {
				// Expired or cleared while waiting.
				return
			}
			if pending.HasEnhancedData() {
				e.startPreview(ps, pending)
				return
			}
		}
	}
}

func (e *Engine) startPreview(ps *PageSession, pending *domain.PendingEnhancement) {
	ps.mu.Lock()
	if ps.state == domain.StatePreview || ps.activityID != pending.ActivityID {
		ps.mu.Unlock()
		return
	}
	ps.pending = pending
	ps.fieldStates = map[domain.PreviewField]domain.FieldState{
		domain.FieldTitle:       domain.FieldPending,
		domain.FieldDescription: domain.FieldPending,
	}
	ps.setState(domain.StatePreview)
	ps.mu.Unlock()

	e.presentPreview(ps, pending)

	e.logger.Info("Preview presented",
		zap.String("activity_id", pending.ActivityID),
	)
}

// ApplyField writes one enhanced field into the form through the adapter,
// which dispatches the notification events the host page needs to register
// the change. The first accepted field meters the enhancement; a user who
// discards everything is never counted.
func (e *Engine) ApplyField(ctx context.Context, ps *PageSession, field domain.PreviewField) {
	ps.mu.Lock()

	if ps.state != domain.StatePreview || ps.pending == nil {
		ps.mu.Unlock()
		return
	}
	if state, ok := ps.fieldStates[field]; !ok || state != domain.FieldPending {
		ps.mu.Unlock()
		return
	}

	firstAccept := true
	for _, state := range ps.fieldStates {
		if state == domain.FieldApplied {
			firstAccept = false
			break
		}
	}

	ps.setState(domain.StateApplying)

	switch field {
	case domain.FieldTitle:
		ps.adapter.SetTitle(ps.page, ps.pending.EnhancedTitle)
	case domain.FieldDescription:
		ps.adapter.SetDescription(ps.page, ps.pending.EnhancedDescription)
	}

	ps.fieldStates[field] = domain.FieldApplied
	ps.setState(domain.StatePreview)
	ps.mu.Unlock()

	if firstAccept {
		if _, err := e.settings.IncrementEnhancementCount(ctx); err != nil {
			e.logger.Warn("Failed to increment usage counter", zap.Error(err))
		}
	}

	e.maybeFinish(ctx, ps)
}

// DiscardField resolves one field without touching the form.
func (e *Engine) DiscardField(ctx context.Context, ps *PageSession, field domain.PreviewField) {
	ps.mu.Lock()

	if ps.state != domain.StatePreview || ps.pending == nil {
		ps.mu.Unlock()
		return
	}
	if state, ok := ps.fieldStates[field]; !ok || state != domain.FieldPending {
		ps.mu.Unlock()
		return
	}

	ps.fieldStates[field] = domain.FieldDiscarded
	ps.mu.Unlock()

	e.maybeFinish(ctx, ps)
}

// maybeFinish clears the pending record once both fields are resolved, however
// they were resolved.
func (e *Engine) maybeFinish(ctx context.Context, ps *PageSession) {
	ps.mu.Lock()

	titleState, titleOK := ps.fieldStates[domain.FieldTitle]
	descState, descOK := ps.fieldStates[domain.FieldDescription]
	resolved := titleOK && descOK &&
		titleState != domain.FieldPending && descState != domain.FieldPending

	var activityID string
	if resolved {
		activityID = ps.pending.ActivityID
		ps.setState(domain.StateDone)
	}
	ps.mu.Unlock()

	if !resolved {
		return
	}

	if err := e.store.Clear(ctx, activityID); err != nil {
		e.logger.Warn("Failed to clear pending record",
			zap.String("activity_id", activityID),
			zap.Error(err),
		)
	}
}

// Reset undoes every applied field by restoring the originals, then clears the
// handoff. Offered once at least one field was applied.
func (e *Engine) Reset(ctx context.Context, ps *PageSession) {
	ps.mu.Lock()

	if ps.pending == nil {
		ps.mu.Unlock()
		return
	}

	anyApplied := false
	for _, state := range ps.fieldStates {
		if state == domain.FieldApplied {
			anyApplied = true
			break
		}
	}
	if !anyApplied {
		ps.mu.Unlock()
		return
	}

	// Both fields go back to their originals regardless of which were
	// applied; a reset means "as it was before".
	ps.adapter.SetTitle(ps.page, ps.pending.OriginalTitle)
	ps.adapter.SetDescription(ps.page, ps.pending.OriginalDescription)

	activityID := ps.pending.ActivityID
	ps.pending = nil
	ps.fieldStates = make(map[domain.PreviewField]domain.FieldState)
	ps.setState(domain.StateIdle)
	ps.mu.Unlock()

	if err := e.store.Clear(ctx, activityID); err != nil {
		e.logger.Warn("Failed to clear pending record on reset",
			zap.String("activity_id", activityID),
			zap.Error(err),
		)
	}

	e.logger.Info("Enhancement reset", zap.String("activity_id", activityID))
}
