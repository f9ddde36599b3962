package bridge

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/veloform/activity-enhancer-go/internal/dom"
	"github.com/veloform/activity-enhancer-go/internal/domain"
	"github.com/veloform/activity-enhancer-go/internal/engine"
	"github.com/veloform/activity-enhancer-go/internal/service/llm"
	"github.com/veloform/activity-enhancer-go/internal/service/session"
	"github.com/veloform/activity-enhancer-go/internal/site"
	"github.com/veloform/activity-enhancer-go/internal/storage"
	"go.uber.org/zap"
)

const bridgeDetailsHTML = `<html><head><title>Morning Run | Run | Strava</title></head><body>
	<div class="header"><div class="media media-middle"><h1 class="activity-name">Morning Run</h1></div></div>
	<div class="activity-summary"><div class="activity-description">lake loop</div></div>
</body></html>`

const bridgeEditHTML = `<html><head><title>Edit | Strava</title></head><body>
	<div class="header"><div class="media media-middle"><h1>Edit Activity</h1></div></div>
	<input id="activity_name" name="activity[name]" value="Morning Run">
	<div class="description" data-react-class="ActivityDescriptionEdit"><textarea>lake loop</textarea></div>
</body></html>`

type bridgeRig struct {
	store  *session.MemoryStore
	server *httptest.Server
	conn   *websocket.Conn
}

func newBridgeRig(t *testing.T) *bridgeRig {
	t.Helper()

	logger := zap.NewNop()
	store := session.NewMemoryStore()
	settings := storage.NewSettingsStore(storage.NewMemoryKV(), logger)
	enhancer, err := llm.NewEnhancer(context.Background(), llm.EnhancerConfig{}, logger)
	if err != nil {
		t.Fatalf("NewEnhancer: %v", err)
	}
	eng := engine.NewEngine(site.NewRegistry(), store, settings, enhancer, logger)

	server := httptest.NewServer(NewServer(eng, logger))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &bridgeRig{store: store, server: server, conn: conn}
}

// readFrames drains frames until the deadline passes.
func (r *bridgeRig) readFrames(d time.Duration) []ServerFrame {
	var frames []ServerFrame
	_ = r.conn.SetReadDeadline(time.Now().Add(d))
	for {
		var frame ServerFrame
		if err := r.conn.ReadJSON(&frame); err != nil {
			return frames
		}
		frames = append(frames, frame)
	}
}

func countInjects(frames []ServerFrame) int {
	n := 0
	for _, f := range frames {
		if f.Type == FrameCommand && f.Command != nil && f.Command.Type == dom.CommandInjectButton {
			n++
		}
	}
	return n
}

func TestRepeatInitReplacesNavigationWatcher(t *testing.T) {
	rig := newBridgeRig(t)

	init := ClientMessage{
		Type: MsgInit,
		URL:  "https://www.strava.com/activities/123",
		HTML: bridgeDetailsHTML,
	}
	if err := rig.conn.WriteJSON(init); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if err := rig.conn.WriteJSON(init); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	// A soft navigation after the repeat init. Only the live watcher may
	// funnel it into reinitialization; a stale watcher from the first init
	// would notice the URL change on its next poll and reinitialize again.
	nav := ClientMessage{Type: MsgNavigate, URL: "https://www.strava.com/activities/456"}
	if err := rig.conn.WriteJSON(nav); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	frames := rig.readFrames(2 * time.Second)

	// One injection per init (each parses a fresh snapshot) plus one for the
	// reinitialized page after the navigation.
	if got := countInjects(frames); got != 3 {
		t.Fatalf("inject commands = %d, want 3", got)
	}
}

func TestEditActionsTravelTheSocket(t *testing.T) {
	rig := newBridgeRig(t)
	ctx := context.Background()

	if err := rig.store.Save(ctx, &domain.PendingEnhancement{
		ActivityID:          "123",
		OriginalTitle:       "Morning Run",
		OriginalDescription: "lake loop",
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	title := "✨ Morning Run - Epic Journey"
	desc := "Crushed the lake loop! #fitness #running #goals"
	if err := rig.store.Update(ctx, "123", domain.PendingUpdate{
		EnhancedTitle:       &title,
		EnhancedDescription: &desc,
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	init := ClientMessage{
		Type: MsgInit,
		URL:  "https://www.strava.com/activities/123/edit",
		HTML: bridgeEditHTML,
	}
	if err := rig.conn.WriteJSON(init); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if err := rig.conn.WriteJSON(ClientMessage{Type: MsgAction, Action: ActionApply, Field: "title"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	frames := rig.readFrames(2 * time.Second)

	previews := 0
	var applied *dom.Command
	for i, f := range frames {
		switch {
		case f.Type == FramePreview:
			previews++
		case f.Type == FrameCommand && f.Command != nil && f.Command.Type == dom.CommandSetField:
			applied = frames[i].Command
		}
	}

	if previews != 2 {
		t.Fatalf("preview frames = %d, want 2", previews)
	}
	if applied == nil {
		t.Fatal("no set_field command after apply action")
	}
	if applied.Value != title {
		t.Errorf("applied value = %q", applied.Value)
	}
	if len(applied.Events) == 0 || applied.Events[0] != dom.EventInput {
		t.Errorf("applied events = %v", applied.Events)
	}
}
