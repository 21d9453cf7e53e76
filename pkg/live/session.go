package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/vango-dev/kiln"
	"github.com/vango-dev/kiln/pkg/dom"
	"github.com/vango-dev/kiln/pkg/protocol"
	"github.com/vango-dev/kiln/pkg/report"
)

var (
	ErrSessionClosed   = errors.New("live: session closed")
	ErrTooManySessions = errors.New("live: too many sessions")
)

// Session is one browser page: an App with its own document and loop,
// and at most one connected client.
type Session struct {
	id     string
	app    *kiln.App
	srv    *Server
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	loopWG sync.WaitGroup

	// Loop-owned: mutations observed since the last send.
	pending []protocol.Mutation
	stop    func()

	// mu guards the connection and the outgoing sequence.
	mu       sync.Mutex
	conn     *websocket.Conn
	seq      uint64
	expiry   *time.Timer
	closed   bool
	attaches int
}

func newSession(srv *Server) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:     xid.New().String(),
		srv:    srv,
		ctx:    ctx,
		cancel: cancel,
	}
	s.logger = srv.config.Logger.With("session", s.id)

	cfg := srv.config.App
	cfg.Document = dom.NewDocument()
	if cfg.Logger == nil {
		cfg.Logger = s.logger
	}
	cfg.Observer = report.Observers{cfg.Observer, flushObserver{s}}
	s.app = kiln.New(cfg)

	doc := cfg.Document
	title := doc.CreateElement("title")
	doc.AppendChild(title, doc.CreateText(srv.config.Title))
	doc.AppendChild(doc.Head(), title)
	s.app.Do(s.observe)

	s.loopWG.Add(1)
	go func() {
		defer s.loopWG.Done()
		_ = s.app.Run(ctx)
	}()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// App returns the session's App.
func (s *Session) App() *kiln.App { return s.app }

// Connected reports whether a client is attached.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// flushObserver sends collected mutations after every scheduler flush.
type flushObserver struct{ s *Session }

func (o flushObserver) ObserveFlush(report.FlushStats)   { o.s.sendPending() }
func (o flushObserver) ObserveRender(report.RenderStats) {}

// observe starts collecting mutations. Runs on the loop.
func (s *Session) observe() {
	doc := s.app.Document()
	s.stop = doc.Observe(func(m dom.Mutation) {
		s.pending = append(s.pending, protocol.MutationFromDOM(doc, m))
	})
}

// attach makes conn the session's client and sends it a snapshot. A
// previous client is disconnected.
func (s *Session) attach(conn *websocket.Conn) error {
	var snap *protocol.Snapshot
	err := s.app.Call(s.ctx, func() {
		doc := s.app.Document()
		s.pending = nil
		s.mu.Lock()
		defer s.mu.Unlock()
		snap = &protocol.Snapshot{
			Seq:     s.seq,
			Session: s.id,
			Root:    protocol.NodeFromDOM(doc, doc.Body().Parent),
		}
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = conn
	s.attaches++

	frame := protocol.NewFrame(protocol.FrameSnapshot, protocol.EncodeSnapshot(snap))
	if s.attaches > 1 {
		frame.Flags |= protocol.FlagResumed
	}
	return s.writeLocked(frame)
}

// detach forgets conn if it is still the session's client and starts the
// resume window.
func (s *Session) detach(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn || s.closed {
		return
	}
	s.conn = nil
	s.expire()
}

// expire starts the resume window. Callers hold mu.
func (s *Session) expire() {
	if s.expiry != nil {
		s.expiry.Stop()
	}
	s.expiry = time.AfterFunc(s.srv.config.ResumeWindow, func() {
		s.logger.Info("session expired")
		s.srv.remove(s)
		s.Close()
	})
}

// sendPending ships the mutations collected on the loop. Runs on the loop.
func (s *Session) sendPending() {
	if len(s.pending) == 0 {
		return
	}
	batch := protocol.MutationBatch{Mutations: s.pending}
	s.pending = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		// The client resyncs from a snapshot when it reattaches.
		return
	}
	s.seq++
	batch.Seq = s.seq
	if err := s.writeLocked(protocol.NewFrame(protocol.FrameMutations, protocol.EncodeMutations(&batch))); err != nil {
		s.logger.Warn("write failed", "error", err)
	}
}

// send writes one frame to the connected client, if any.
func (s *Session) send(f *protocol.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.writeLocked(f)
}

func (s *Session) writeLocked(f *protocol.Frame) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.srv.config.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, f.Encode()); err != nil {
		return err
	}
	if m := s.srv.config.Metrics; m != nil {
		m.FrameSent(f.Type.String())
	}
	return nil
}

func (s *Session) sendError(code, msg string, fatal bool) {
	em := &protocol.ErrorMessage{Code: code, Message: msg, Fatal: fatal}
	if err := s.send(protocol.NewFrame(protocol.FrameError, protocol.EncodeErrorMessage(em))); err != nil {
		s.logger.Warn("write failed", "error", err)
	}
}

// serve reads frames from conn until it fails or the session closes.
func (s *Session) serve(conn *websocket.Conn) {
	defer s.detach(conn)

	cfg := s.srv.config
	for {
		_ = conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			s.logger.Warn("frame decode error", "error", err)
			s.sendError(protocol.CodeInvalidFrame, err.Error(), false)
			continue
		}

		switch frame.Type {
		case protocol.FrameEvent:
			s.handleEvent(frame.Payload)
		case protocol.FramePing:
			if err := s.send(protocol.NewFrame(protocol.FramePong, nil)); err != nil {
				s.logger.Warn("write failed", "error", err)
			}
		case protocol.FramePong:
		default:
			s.logger.Warn("unexpected frame type", "type", frame.Type)
		}
	}
}

func (s *Session) handleEvent(payload []byte) {
	ev, err := protocol.DecodeEvent(payload)
	if err != nil {
		s.logger.Warn("event decode error", "error", err)
		s.sendError(protocol.CodeInvalidEvent, err.Error(), false)
		return
	}
	if m := s.srv.config.Metrics; m != nil {
		m.EventReceived()
	}

	var found bool
	err = s.app.Call(s.ctx, func() {
		doc := s.app.Document()
		target := doc.NodeByID(ev.Target)
		if target == nil {
			return
		}
		found = true
		de := dom.NewEvent(ev.Type)
		de.Value = ev.Value
		de.Detail = ev.Detail.Any()
		doc.Dispatch(target, de)
	})
	if err != nil {
		s.logger.Warn("event dropped", "error", err)
		return
	}
	if !found {
		s.sendError(protocol.CodeUnknownTarget, "no node with that id", false)
		return
	}
	// Handlers that change the document without writing a signal produce
	// no flush; ship their mutations too.
	_ = s.app.Call(s.ctx, s.sendPending)
}

// Close unmounts the session's components, stops its loop and closes its
// connection. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.expiry != nil {
		s.expiry.Stop()
	}
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	_ = s.app.Call(s.ctx, func() {
		if s.stop != nil {
			s.stop()
		}
	})
	s.app.Close()
	s.cancel()
	s.loopWG.Wait()
	if m := s.srv.config.Metrics; m != nil {
		m.SessionClosed()
	}
}
