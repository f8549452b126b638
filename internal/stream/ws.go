package stream

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/litescript/ls-orrery/internal/state"
)

// ControlMessage acknowledges a control request received over /ws.
type ControlMessage struct {
	Type  string          `json:"type"`
	State ControlResponse `json:"state"`
}

// ErrorMessage reports a failed request over /ws.
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleWS pushes a frame every FrameInterval and applies ControlRequest
// messages sent by the client. Frames are skipped until the manager is
// ready. One goroutine owns all writes to the connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	axes := r.URL.Query().Get("axes")
	cursor := s.mgr.NewCursor()
	replies := make(chan any, 8)
	readerDone := make(chan struct{})
	quit := make(chan struct{})
	defer close(quit)

	go s.readControl(conn, replies, readerDone, quit)

	s.logger.Info("renderer connected", "remote", r.RemoteAddr, "axes", normalizeAxes(axes))
	defer s.logger.Info("renderer disconnected", "remote", r.RemoteAddr)

	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-readerDone:
			return
		case msg := <-replies:
			if err := s.write(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			f, err := s.mgr.FrameNowFor(cursor)
			if errors.Is(err, state.ErrClockNotReady) {
				continue
			}
			var msg any = EncodeFrame(f, axes)
			if err != nil {
				msg = ErrorMessage{Type: "error", Error: err.Error()}
			}
			if err := s.write(conn, msg); err != nil {
				s.logger.Debug("websocket write failed", "remote", r.RemoteAddr, "err", err)
				return
			}
		}
	}
}

func (s *Server) readControl(conn *websocket.Conn, replies chan<- any, done chan<- struct{}, quit <-chan struct{}) {
	defer close(done)
	for {
		var req ControlRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket closed unexpectedly", "err", err)
			}
			return
		}

		var reply any
		if err := s.apply(req); err != nil {
			reply = ErrorMessage{Type: "error", Error: err.Error()}
		} else {
			s.logger.Info("control", "action", req.Action, "speed", s.mgr.SpeedLabel(), "paused", s.mgr.Paused())
			reply = ControlMessage{Type: "control", State: s.controlState()}
		}

		select {
		case replies <- reply:
		case <-quit:
			return
		}
	}
}

func (s *Server) write(conn *websocket.Conn, msg any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
