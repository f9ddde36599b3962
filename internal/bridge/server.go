package bridge

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/veloform/activity-enhancer-go/internal/engine"
	"go.uber.org/zap"
)

// Server accepts one WebSocket per open page and routes its messages into the
// engine. Each connection owns a PageConn; nothing is shared between pages
// except the engine's pending store.
type Server struct {
	engine   *engine.Engine
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*PageConn]struct{}
}

func NewServer(eng *engine.Engine, logger *zap.Logger) *Server {
	return &Server{
		engine: eng,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The page client connects from the host site's origin, so
			// the usual same-origin check cannot apply here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*PageConn]struct{}),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	pc := newPageConn(conn, s.engine, s.logger)

	s.mu.Lock()
	s.conns[pc] = struct{}{}
	s.mu.Unlock()

	s.logger.Info("Page connected", zap.String("remote", conn.RemoteAddr().String()))

	go func() {
		pc.run(r.Context())

		s.mu.Lock()
		delete(s.conns, pc)
		s.mu.Unlock()

		s.logger.Info("Page disconnected", zap.String("remote", conn.RemoteAddr().String()))
	}()
}

// Shutdown closes every live connection and waits for their pumps to stop.
func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	conns := make([]*PageConn, 0, len(s.conns))
	for pc := range s.conns {
		conns = append(conns, pc)
	}
	s.mu.Unlock()

	for _, pc := range conns {
		pc.close()
	}

	done := make(chan struct{})
	go func() {
		for _, pc := range conns {
			pc.wait()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Timeout draining page connections")
	}
}

// ConnCount reports live connections; used by diagnostics and tests.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
