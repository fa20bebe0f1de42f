// Package livefeed streams exchange record snapshots to browsers over WebSocket.
package livefeed

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/askstuart/internal/exchange"
	"github.com/wolfman30/askstuart/internal/observability/metrics"
	"github.com/wolfman30/askstuart/pkg/logging"
)

// Frame types.
const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

// Error codes carried by error frames.
const (
	CodePermissionDenied = "permission_denied"
	CodeUnavailable      = "unavailable"
)

// Frame is one message on the socket. Snapshot frames always carry the full
// ordered record set.
type Frame struct {
	Type     string            `json:"type"`
	Messages []exchange.Record `json:"messages"`
	Code     string            `json:"code,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Subscriber is the live query a feed is served from.
type Subscriber interface {
	Subscribe(ctx context.Context, since time.Time) (<-chan exchange.Snapshot, error)
}

// Handler upgrades GET requests and forwards every snapshot as a frame.
type Handler struct {
	store        Subscriber
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeWait    time.Duration
	metrics      *metrics.RelayMetrics
	logger       *logging.Logger
}

// NewHandler creates the live feed handler. Origins are not checked; the
// widget is embedded on third-party sites.
func NewHandler(store Subscriber, m *metrics.RelayMetrics, logger *logging.Logger) *Handler {
	if store == nil {
		panic("livefeed: subscriber cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store: store,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pingInterval: 30 * time.Second,
		writeWait:    10 * time.Second,
		metrics:      m,
		logger:       logger,
	}
}

// ParseSince reads the optional since parameter (unix milliseconds).
func ParseSince(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, errors.New("since must be unix milliseconds")
	}
	return time.UnixMilli(ms).UTC(), nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	since, err := ParseSince(r.URL.Query().Get("since"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("live feed upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	h.metrics.SubscriberOpened()
	defer h.metrics.SubscriberClosed()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reads only detect the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snaps, err := h.store.Subscribe(ctx, since)
	if err != nil {
		h.logger.Error("live feed subscribe failed", "error", err)
		h.writeFrame(conn, errorFrame(err))
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeWait)); err != nil {
				return
			}
		case snap, ok := <-snaps:
			if !ok {
				h.closeNormally(conn)
				return
			}
			if snap.Err != nil {
				h.logger.Warn("live feed subscription failed", "error", snap.Err)
				h.writeFrame(conn, errorFrame(snap.Err))
				return
			}
			msgs := snap.Records
			if msgs == nil {
				msgs = []exchange.Record{}
			}
			if err := h.writeFrame(conn, Frame{Type: FrameSnapshot, Messages: msgs}); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeFrame(conn *websocket.Conn, f Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
	return conn.WriteJSON(f)
}

func (h *Handler) closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.writeWait))
}

func errorFrame(err error) Frame {
	code := CodeUnavailable
	if errors.Is(err, exchange.ErrPermissionDenied) {
		code = CodePermissionDenied
	}
	return Frame{Type: FrameError, Code: code, Error: err.Error()}
}
