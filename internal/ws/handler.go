package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openminiapp/miniapp/internal/bridge"
	"github.com/openminiapp/miniapp/internal/infrastructure/logging"
	"github.com/openminiapp/miniapp/internal/infrastructure/monitoring"
	"github.com/openminiapp/miniapp/internal/shared/paths"
	"github.com/openminiapp/miniapp/internal/shared/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // host apps connect from embedded webviews
	},
}

// Session is one live bridge session bound to a connection.
type Session struct {
	Engine *bridge.Engine
	Close  func()
}

// SessionFactory opens a bridge session for one connecting mini app. The
// factory owns session wiring: secure storage load, capability registry,
// permission store.
type SessionFactory interface {
	Open(appCtx types.Context, callback bridge.Callback) (*Session, error)
}

// Handler upgrades bridge connections and pumps envelopes to the session
// engine in arrival order.
type Handler struct {
	sessions SessionFactory
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// NewHandler creates a websocket bridge handler.
func NewHandler(sessions SessionFactory, logger *logging.Logger) *Handler {
	return &Handler{sessions: sessions, logger: logger}
}

// WithMetrics adds metrics tracking to the handler.
func (h *Handler) WithMetrics(metrics *monitoring.Metrics) *Handler {
	h.metrics = metrics
	return h
}

// HandleConnection handles websocket upgrade and the message pump for one
// mini-app session.
func (h *Handler) HandleConnection(c *gin.Context) {
	appID := c.Query("app_id")
	versionID := c.Query("version_id")
	if err := paths.ValidateID(appID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid app_id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	appCtx := types.Context{AppID: appID, VersionID: versionID}
	if userID := c.Query("user_id"); userID != "" {
		appCtx.UserID = &userID
	}

	sink := &connSink{conn: conn}
	session, err := h.sessions.Open(appCtx, sink)
	if err != nil {
		h.logger.Error("session open failed",
			zap.String("app_id", appID),
			zap.Error(err),
		)
		sink.write(frame{Type: "error", Error: "session_unavailable"})
		return
	}
	defer session.Close()

	sink.write(frame{Type: "connected", Timestamp: time.Now().Unix()})

	reqCtx := c.Request.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read error",
					zap.String("app_id", appID),
					zap.Error(err),
				)
			}
			return
		}
		if h.metrics != nil {
			h.metrics.WSMessages.WithLabelValues("inbound", "bridge").Inc()
		}
		session.Engine.HandleMessage(reqCtx, raw)
	}
}

// frame is one outbound websocket message.
type frame struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Payload   string `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// connSink delivers terminal bridge callbacks as websocket frames. Handlers
// complete concurrently, so writes are serialized.
type connSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

var _ bridge.Callback = (*connSink)(nil)

func (s *connSink) DidReceiveResponse(id, payload string) {
	s.write(frame{Type: "response", ID: id, Payload: payload, Timestamp: time.Now().Unix()})
}

func (s *connSink) DidReceiveError(id, kind string) {
	s.write(frame{Type: "error", ID: id, Error: kind, Timestamp: time.Now().Unix()})
}

func (s *connSink) write(f frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteJSON(f)
}
