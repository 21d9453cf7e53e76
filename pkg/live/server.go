package live

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/kiln/pkg/protocol"
)

// Paths served by the Handler.
const (
	ClientPath  = "/kiln/client.js"
	SocketPath  = "/kiln/ws"
	MetricsPath = "/metrics"
	HealthPath  = "/healthz"
)

//go:embed client.js
var clientJS []byte

// Server serves server-rendered kiln pages and keeps each one live over a
// WebSocket.
type Server struct {
	config   Config
	mount    MountFunc
	upgrader websocket.Upgrader
	router   chi.Router

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewServer creates a server that calls mount for every new page.
func NewServer(cfg Config, mount MountFunc) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		config:   cfg,
		mount:    mount,
		sessions: make(map[string]*Session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(ClientPath, s.handleClient)
	r.Get(SocketPath, s.handleSocket)
	r.Get(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Gatherer != nil {
		r.Handle(MetricsPath, promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/*", s.handlePage)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Session returns the live session with the given id.
func (s *Server) Session(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) add() (*Session, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.config.MaxSessions > 0 && len(s.sessions) >= s.config.MaxSessions {
		s.mu.Unlock()
		return nil, ErrTooManySessions
	}
	s.mu.Unlock()

	sess := newSession(s)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	if m := s.config.Metrics; m != nil {
		m.SessionOpened()
	}
	return sess, nil
}

func (s *Server) remove(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sess.id] == sess {
		delete(s.sessions, sess.id)
	}
}

func (s *Server) handleClient(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(clientJS)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess, err := s.add()
	if err != nil {
		s.config.Logger.Warn("session rejected", "error", err)
		http.Error(w, "server busy", http.StatusServiceUnavailable)
		return
	}

	var page string
	var mountErr error
	err = sess.app.Call(r.Context(), func() {
		if s.mount != nil {
			mountErr = s.mount(r.Context(), sess.app, r)
		}
		page = sess.app.HTML()
	})
	if err == nil {
		err = mountErr
	}
	if err != nil {
		sess.logger.Error("mount failed", "error", err)
		s.remove(sess)
		sess.Close()
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	sess.mu.Lock()
	sess.expire()
	sess.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte("<!DOCTYPE html>" + injectClient(page, sess.id)))
}

// injectClient adds the client script before </body>.
func injectClient(page, session string) string {
	tag := fmt.Sprintf(`<script src="%s" data-session="%s" defer></script>`, ClientPath, session)
	if i := strings.LastIndex(page, "</body>"); i >= 0 {
		return page[:i] + tag + page[i:]
	}
	return page + tag
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	sess, ok := s.Session(id)
	if !ok {
		// Upgrade anyway so the client learns why it cannot resume.
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		em := &protocol.ErrorMessage{
			Code:    protocol.CodeSessionNotFound,
			Message: "session expired",
			Fatal:   true,
		}
		frame := protocol.NewFrame(protocol.FrameError, protocol.EncodeErrorMessage(em))
		_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		_ = conn.WriteMessage(websocket.BinaryMessage, frame.Encode())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sess.logger.Warn("upgrade failed", "error", err)
		return
	}
	if err := sess.attach(conn); err != nil {
		sess.logger.Warn("attach failed", "error", err)
		_ = conn.Close()
		return
	}
	sess.logger.Debug("client attached")
	sess.serve(conn)
	_ = conn.Close()
}

// Close closes every session.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.config.Logger.Info("server starting", "address", addr)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.config.Logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.Close()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		s.config.Logger.Error("shutdown error", "error", err)
		return err
	}
	s.config.Logger.Info("server shutdown complete")
	return nil
}
