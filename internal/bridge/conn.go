package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/veloform/activity-enhancer-go/internal/constants"
	"github.com/veloform/activity-enhancer-go/internal/dom"
	"github.com/veloform/activity-enhancer-go/internal/domain"
	"github.com/veloform/activity-enhancer-go/internal/engine"
	"go.uber.org/zap"
)

// PageConn is the server side of one page's socket. It is both the command
// sink for DOM writes and the notifier for user-facing frames, so the engine
// never touches the wire directly.
type PageConn struct {
	conn   *websocket.Conn
	eng    *engine.Engine
	logger *zap.Logger

	writeMu sync.Mutex

	mu            sync.Mutex
	loc           dom.Location
	lastHTML      string
	session       *engine.PageSession
	watcher       *engine.NavigationWatcher
	watcherCancel context.CancelFunc
	cancel        context.CancelFunc

	closeOnce sync.Once
	doneCh    chan struct{}
}

func newPageConn(conn *websocket.Conn, eng *engine.Engine, logger *zap.Logger) *PageConn {
	return &PageConn{
		conn:   conn,
		eng:    eng,
		logger: logger,
		doneCh: make(chan struct{}),
	}
}

// run is the read pump. It returns when the socket closes or the context is
// cancelled.
func (pc *PageConn) run(ctx context.Context) {
	defer close(pc.doneCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pc.mu.Lock()
	pc.cancel = cancel
	pc.mu.Unlock()

	pc.conn.SetReadLimit(constants.BridgeConfig.MaxMessageBytes)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, msgBytes, err := pc.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				pc.logger.Debug("Socket read ended", zap.Error(err))
			}
			return
		}

		pc.handleMessage(ctx, msgBytes)
	}
}

func (pc *PageConn) handleMessage(ctx context.Context, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		pc.logger.Error("Failed to parse message",
			zap.Error(err),
			zap.String("data", preview),
		)
		return
	}

	switch msg.Type {
	case MsgInit:
		pc.handleInit(ctx, msg)
	case MsgNavigate:
		pc.handleNavigate(msg)
	case MsgMutation:
		pc.handleMutation(ctx, msg)
	case MsgAction:
		pc.handleAction(ctx, msg)
	default:
		pc.logger.Warn("Unknown message type", zap.String("type", msg.Type))
	}
}

func (pc *PageConn) handleInit(ctx context.Context, msg ClientMessage) {
	loc, err := dom.ParseLocation(msg.URL)
	if err != nil {
		pc.logger.Warn("Init with unparseable URL", zap.String("url", msg.URL), zap.Error(err))
		return
	}

	page, err := dom.NewPage(loc, msg.HTML, pc)
	if err != nil {
		pc.logger.Error("Failed to parse page snapshot", zap.Error(err))
		return
	}

	pc.mu.Lock()
	// A repeat init replaces the session; stop the previous watcher so only
	// one funnels navigation changes.
	if pc.watcherCancel != nil {
		pc.watcherCancel()
	}
	watcherCtx, watcherCancel := context.WithCancel(ctx)
	pc.watcherCancel = watcherCancel

	pc.loc = loc
	pc.lastHTML = msg.HTML
	pc.session = engine.NewPageSession(loc, page, pc)
	pc.watcher = engine.NewNavigationWatcher(pc.currentLocation, func(next dom.Location) {
		pc.reinitialize(ctx, next)
	}, pc.logger)
	watcher := pc.watcher
	session := pc.session
	pc.mu.Unlock()

	go watcher.Run(watcherCtx)

	pc.eng.Initialize(ctx, session)
}

// handleNavigate records the new location and snapshot, then lets the
// navigation watcher funnel the change into reinitialization.
func (pc *PageConn) handleNavigate(msg ClientMessage) {
	loc, err := dom.ParseLocation(msg.URL)
	if err != nil {
		pc.logger.Warn("Navigate with unparseable URL", zap.String("url", msg.URL), zap.Error(err))
		return
	}

	pc.mu.Lock()
	pc.loc = loc
	if msg.HTML != "" {
		pc.lastHTML = msg.HTML
	}
	watcher := pc.watcher
	pc.mu.Unlock()

	if watcher != nil {
		watcher.NotifyPopstate(loc)
	}
}

func (pc *PageConn) reinitialize(ctx context.Context, loc dom.Location) {
	pc.mu.Lock()
	html := pc.lastHTML
	session := pc.session
	pc.mu.Unlock()

	if session == nil {
		return
	}

	page, err := dom.NewPage(loc, html, pc)
	if err != nil {
		pc.logger.Error("Failed to parse page snapshot after navigation", zap.Error(err))
		return
	}

	session.Reload(loc, page)
	pc.eng.Initialize(ctx, session)
}

func (pc *PageConn) handleMutation(ctx context.Context, msg ClientMessage) {
	pc.mu.Lock()
	session := pc.session
	pc.mu.Unlock()

	if session == nil {
		return
	}

	pc.eng.HandleMutation(ctx, session, msg.NodeHTML)
}

func (pc *PageConn) handleAction(ctx context.Context, msg ClientMessage) {
	pc.mu.Lock()
	session := pc.session
	pc.mu.Unlock()

	if session == nil {
		pc.logger.Warn("Action before init", zap.String("action", msg.Action))
		return
	}

	switch msg.Action {
	case ActionEnhance:
		pc.eng.TriggerEnhance(ctx, session)
	case ActionApply:
		pc.eng.ApplyField(ctx, session, domain.PreviewField(msg.Field))
	case ActionDiscard:
		pc.eng.DiscardField(ctx, session, domain.PreviewField(msg.Field))
	case ActionReset:
		pc.eng.Reset(ctx, session)
	case ActionRetry:
		pc.eng.Retry(ctx, session)
	case ActionDismiss:
		pc.eng.Dismiss(session)
	default:
		pc.logger.Warn("Unknown action", zap.String("action", msg.Action))
	}
}

func (pc *PageConn) currentLocation() dom.Location {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.loc
}

// Emit implements dom.CommandSink: DOM writes become command frames.
func (pc *PageConn) Emit(cmd dom.Command) {
	pc.send(ServerFrame{Type: FrameCommand, Command: &cmd})
}

// NotifyState implements engine.Notifier.
func (pc *PageConn) NotifyState(state domain.EnhancementState) {
	pc.send(ServerFrame{Type: FrameState, State: state.String()})
}

// NotifyPreview implements engine.Notifier.
func (pc *PageConn) NotifyPreview(field domain.PreviewField, selector, original, enhanced string) {
	pc.send(ServerFrame{
		Type:     FramePreview,
		Field:    string(field),
		Selector: selector,
		Original: original,
		Enhanced: enhanced,
	})
}

// NotifyError implements engine.Notifier.
func (pc *PageConn) NotifyError(message string, retryable bool) {
	pc.send(ServerFrame{Type: FrameError, Message: message, Retryable: retryable})
}

func (pc *PageConn) send(frame ServerFrame) {
	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()

	deadline := time.Now().Add(constants.BridgeConfig.WriteTimeout)
	if err := pc.conn.SetWriteDeadline(deadline); err != nil {
		pc.logger.Debug("Failed to set write deadline", zap.Error(err))
	}

	if err := pc.conn.WriteJSON(frame); err != nil {
		pc.logger.Debug("Frame write failed",
			zap.String("type", frame.Type),
			zap.Error(err),
		)
	}
}

func (pc *PageConn) close() {
	pc.closeOnce.Do(func() {
		pc.mu.Lock()
		if pc.cancel != nil {
			pc.cancel()
		}
		pc.mu.Unlock()

		_ = pc.conn.Close()
	})
}

func (pc *PageConn) wait() {
	select {
	case <-pc.doneCh:
	case <-time.After(constants.BridgeConfig.ShutdownDrain):
	}
}
