package engine

import (
	"context"
	"time"

	"github.com/veloform/activity-enhancer-go/internal/constants"
	"github.com/veloform/activity-enhancer-go/internal/dom"
	"github.com/veloform/activity-enhancer-go/internal/site"
	"go.uber.org/zap"
)

// NavigationWatcher detects soft navigations. SPA sites rewrite the URL
// without a page load, so the watcher polls the client-reported location on an
// interval and additionally accepts popstate pushes; both paths funnel into
// the same change callback.
type NavigationWatcher struct {
	current  func() dom.Location
	onChange func(loc dom.Location)
	popstate chan dom.Location
	logger   *zap.Logger

	lastSeen dom.Location
}

func NewNavigationWatcher(current func() dom.Location, onChange func(loc dom.Location), logger *zap.Logger) *NavigationWatcher {
	return &NavigationWatcher{
		current:  current,
		onChange: onChange,
		popstate: make(chan dom.Location, 8),
		logger:   logger,
		lastSeen: current(),
	}
}

// NotifyPopstate feeds an explicit history event from the page client.
func (w *NavigationWatcher) NotifyPopstate(loc dom.Location) {
	select {
	case w.popstate <- loc:
	default:
		// A full channel means polling will catch the change anyway.
	}
}

// Run blocks until the context is cancelled.
func (w *NavigationWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(constants.EngineConfig.NavigationCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case loc := <-w.popstate:
			w.handle(loc)
		case <-ticker.C:
			w.handle(w.current())
		}
	}
}

func (w *NavigationWatcher) handle(loc dom.Location) {
	if loc.Raw == w.lastSeen.Raw {
		return
	}

	w.logger.Debug("Navigation detected",
		zap.String("from", w.lastSeen.Raw),
		zap.String("to", loc.Raw),
	)
	w.lastSeen = loc
	w.onChange(loc)
}

// HandleMutation re-runs initialization when a subtree insertion looks
// relevant. Adapters without a mutation filter get every mutation; filtering
// is an optimization, not a correctness gate.
func (e *Engine) HandleMutation(ctx context.Context, ps *PageSession, nodeHTML string) {
	ps.mu.Lock()
	adapter := ps.adapter
	ps.mu.Unlock()

	if adapter == nil {
		// Never matched; a mutation cannot make an unsupported page
		// supported, but initialization is cheap and idempotent.
		e.Initialize(ctx, ps)
		return
	}

	if filter, ok := adapter.(site.MutationFilterer); ok && !filter.RelevantMutation(nodeHTML) {
		return
	}

	e.Initialize(ctx, ps)
}
