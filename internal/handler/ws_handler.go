package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/solvex/internal/attempt"
	"github.com/stemsi/solvex/internal/identity"
	"github.com/stemsi/solvex/internal/middleware"
	"github.com/stemsi/solvex/internal/response"
	"github.com/stemsi/solvex/internal/service"
	"github.com/stemsi/solvex/internal/validator"
	ws "github.com/stemsi/solvex/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// replaceWait bounds how long a new mount waits for the stream it replaces
// to wind down.
const replaceWait = 10 * time.Second

// WSHandler hosts exam attempts over WebSocket. One connection is one page
// mount: the manager is created on connect and suspended on disconnect.
type WSHandler struct {
	attempts     *service.AttemptService
	tickInterval time.Duration
	pingInterval time.Duration
	readWait     time.Duration
	log          zerolog.Logger
	upgrader     websocket.Upgrader

	mu       sync.Mutex
	conns    map[*ws.Conn]struct{}
	live     map[string]*liveStream
	draining bool
	streams  sync.WaitGroup
}

// liveStream is a mounted stream keyed by user, exam and session identity.
type liveStream struct {
	conn     *ws.Conn
	done     chan struct{}
	replaced bool
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attempts *service.AttemptService, tickInterval time.Duration, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attempts:     attempts,
		tickInterval: tickInterval,
		pingInterval: ws.DefaultPingInterval,
		readWait:     ws.DefaultReadWait,
		log:          log.With().Str("component", "ws_handler").Logger(),
		upgrader:     buildUpgrader(allowedOrigins),
		conns:        make(map[*ws.Conn]struct{}),
		live:         make(map[string]*liveStream),
	}
}

// SetKeepAlive sets how often the server pings and how long it waits for any
// frame before giving up on a connection. Zero values keep the defaults.
func (h *WSHandler) SetKeepAlive(pingInterval, readWait time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if pingInterval > 0 {
		h.pingInterval = pingInterval
	}
	if readWait > 0 {
		h.readWait = readWait
	}
}

// Shutdown closes every live stream without suspending its attempt: a host
// restart is not the page going away, so clients reconnect and resume.
func (h *WSHandler) Shutdown() int {
	h.mu.Lock()
	h.draining = true
	conns := make([]*ws.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close(websocket.CloseServiceRestart, "server restarting")
	}
	return len(conns)
}

// Wait blocks until every stream goroutine has returned, including one still
// waiting on a submission. It reports false if ctx ends first.
func (h *WSHandler) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		h.streams.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func (h *WSHandler) track(conn *ws.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.conns[conn] = struct{}{}
	h.streams.Add(1)
	return true
}

func (h *WSHandler) untrack(conn *ws.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
	h.streams.Done()
}

func (h *WSHandler) isDraining() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.draining
}

func liveKey(userID, examID, sessionID string) string {
	return userID + "\x00" + examID + "\x00" + sessionID
}

// claim registers conn as the only stream for key. A stream already holding
// the same session is closed without suspending and awaited, so its late
// writes cannot land on top of the new mount.
func (h *WSHandler) claim(key string, conn *ws.Conn) *liveStream {
	s := &liveStream{conn: conn, done: make(chan struct{})}

	h.mu.Lock()
	old := h.live[key]
	if old != nil {
		old.replaced = true
	}
	h.live[key] = s
	h.mu.Unlock()

	if old != nil {
		_ = old.conn.WriteError(response.ErrSessionReplaced)
		_ = old.conn.Close(websocket.ClosePolicyViolation, string(response.ErrSessionReplaced))
		select {
		case <-old.done:
		case <-time.After(replaceWait):
			h.log.Warn().Msg("Replaced stream still winding down")
		}
	}
	return s
}

func (h *WSHandler) release(key string, s *liveStream) {
	h.mu.Lock()
	if h.live[key] == s {
		delete(h.live, key)
	}
	h.mu.Unlock()
	close(s.done)
}

func (h *WSHandler) isReplaced(s *liveStream) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return s.replaced
}

// ExamWebSocketStream godoc
// WS /ws/v1/student/exams/:exam_id/stream?session_id=...
// Mounts the attempt, streams the countdown and applies answer/finish actions.
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID := c.Param("exam_id")
	if examID == "" || len(examID) > 128 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	h.mu.Lock()
	pingInterval, readWait := h.pingInterval, h.readWait
	h.mu.Unlock()

	conn := ws.NewConn(raw, readWait)
	if !h.track(conn) {
		_ = conn.Close(websocket.CloseServiceRestart, "server restarting")
		return
	}
	defer h.untrack(conn)

	sessionID := identity.Resolve(c.Query("session_id"))
	wsLog := h.log.With().Str("user_id", user.ID).Str("exam_id", examID).Str("session_id", sessionID).Logger()

	key := liveKey(user.ID, examID, sessionID)
	live := h.claim(key, conn)
	defer h.release(key, live)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, err := h.attempts.Mount(ctx, examID, user, sessionID)
	if err != nil {
		_, code := mountError(err)
		wsLog.Warn().Err(err).Str("code", string(code)).Msg("Exam could not be loaded")
		_ = conn.WriteTyped(ws.StateResponse{Event: ws.EventState, View: attempt.View{
			State:  attempt.StateError,
			ExamID: examID,
			Error:  response.GetMessage(code),
		}})
		_ = conn.WriteError(code)
		_ = conn.Close(websocket.CloseTryAgainLater, string(code))
		return
	}

	view := m.View()
	_ = conn.WriteTyped(ws.StateResponse{Event: ws.EventState, View: view})

	if view.State.Terminal() {
		code := deniedCode(view.State)
		wsLog.Info().Str("state", string(view.State)).Msg("Attempt not opened")
		_ = conn.WriteError(code)
		_ = conn.Close(websocket.ClosePolicyViolation, string(code))
		return
	}

	wsLog.Info().Int("time_left", view.TimeLeft).Bool("resumed", view.Resumed).Msg("Student connected")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		attempt.RunTimer(ctx, m, h.tickInterval, h.timerNotifier(conn, view.State))
	}()
	go func() {
		defer wg.Done()
		h.keepAlive(ctx, conn, pingInterval)
	}()

	readErr := h.readLoop(ctx, conn, m, wsLog)

	cancel()
	wg.Wait()

	// Disconnect is the page going away. A read timeout, a host restart or a
	// newer stream on the same session is not.
	switch {
	case readErr != nil && ws.IsTimeout(readErr):
		wsLog.Info().Msg("Stream timed out, attempt left resumable")
	case h.isDraining():
	case h.isReplaced(live):
		wsLog.Info().Msg("Stream replaced by a newer connection")
	default:
		m.Suspend(context.Background())
	}
	_ = conn.Close(websocket.CloseNormalClosure, "")
	wsLog.Info().Str("state", string(m.State())).Msg("Student disconnected")
}

// keepAlive pings the client so the read deadline keeps moving while the
// student is connected but idle.
func (h *WSHandler) keepAlive(ctx context.Context, conn *ws.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				return
			}
		}
	}
}

// timerNotifier turns countdown steps into events. It only runs on the timer
// goroutine, so last needs no lock.
func (h *WSHandler) timerNotifier(conn *ws.Conn, last attempt.State) attempt.TickFunc {
	return func(v attempt.View, err error) {
		if err != nil {
			_ = conn.WriteError(attemptError(err))
		}
		if v.State == attempt.StateSubmitted {
			_ = conn.WriteTyped(ws.SubmittedResponse{Event: ws.EventSubmitted, Result: v.Result})
			_ = conn.WriteTyped(ws.StateResponse{Event: ws.EventState, View: v})
			_ = conn.Close(websocket.CloseNormalClosure, "submitted")
			return
		}
		if v.State != last {
			last = v.State
			_ = conn.WriteTyped(ws.StateResponse{Event: ws.EventState, View: v})
			return
		}
		_ = conn.WriteTyped(ws.TickResponse{Event: ws.EventTick, TimeLeft: v.TimeLeft})
	}
}

// readLoop returns the read error that ended the stream, or nil once the
// attempt was submitted.
func (h *WSHandler) readLoop(ctx context.Context, conn *ws.Conn, m *attempt.Manager, wsLog zerolog.Logger) error {
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return err
		}

		var env ws.RequestEnvelope
		if fields := validator.Decode(msg, &env); fields != nil {
			_ = conn.WriteError(response.ErrInvalidPayload)
			continue
		}

		switch env.Action {
		case ws.ActionAnswer:
			h.handleAnswer(ctx, conn, m, msg)
		case ws.ActionFinish:
			if h.handleFinish(ctx, conn, m, msg, wsLog) {
				return nil
			}
		case ws.ActionSuspend:
			m.Suspend(ctx)
			_ = conn.WriteTyped(ws.StateResponse{Event: ws.EventState, View: m.View()})
		case ws.ActionPing:
			_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		}
	}
}

func (h *WSHandler) handleAnswer(ctx context.Context, conn *ws.Conn, m *attempt.Manager, msg []byte) {
	var req ws.AnswerRequest
	if fields := validator.Decode(msg, &req); fields != nil {
		_ = conn.WriteError(response.ErrInvalidPayload)
		return
	}
	if err := m.SetAnswer(ctx, req.QID, req.Answer); err != nil {
		_ = conn.WriteError(attemptError(err))
		return
	}
	_ = conn.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, QID: req.QID})
}

// handleFinish reports whether the stream should end.
func (h *WSHandler) handleFinish(ctx context.Context, conn *ws.Conn, m *attempt.Manager, msg []byte, wsLog zerolog.Logger) bool {
	var req ws.FinishRequest
	if fields := validator.Decode(msg, &req); fields != nil {
		_ = conn.WriteError(response.ErrInvalidPayload)
		return false
	}

	result, err := m.Finish(attempt.WithConfirmation(ctx, req.Confirmed), false)
	if err != nil {
		wsLog.Debug().Err(err).Msg("Finish rejected")
		_ = conn.WriteError(attemptError(err))
		_ = conn.WriteTyped(ws.StateResponse{Event: ws.EventState, View: m.View()})
		return false
	}

	_ = conn.WriteTyped(ws.SubmittedResponse{Event: ws.EventSubmitted, Result: result})
	_ = conn.WriteTyped(ws.StateResponse{Event: ws.EventState, View: m.View()})
	return true
}
