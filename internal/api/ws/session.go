// Package ws owns the live-channel session: the websocket upgrade,
// registration of the connection as the caller's delivery channel, the
// inbound read loop and teardown.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ciphergram/ciphergram-server/internal/logger"
	"github.com/ciphergram/ciphergram-server/internal/metrics"
	"github.com/ciphergram/ciphergram-server/internal/model"
	"github.com/ciphergram/ciphergram-server/internal/ratelimit"
	"github.com/ciphergram/ciphergram-server/internal/registry"
	"github.com/ciphergram/ciphergram-server/internal/service"
)

const pingInterval = 30 * time.Second

// Options tunes the session read loop.
type Options struct {
	ReadLimitBytes int64
	PongWait       time.Duration
}

// errorFrame is sent to the connected client when their own payload is
// rejected. The session stays open afterwards.
type errorFrame struct {
	Error string `json:"error"`
}

// Handler upgrades authenticated requests into live delivery sessions.
type Handler struct {
	registry       *registry.Registry
	dispatch       *service.Dispatch
	contextManager model.ContextManager
	limiter        *ratelimit.PerIdentity
	metrics        *metrics.Metrics
	logger         *logger.Logger
	opts           Options
	upgrader       websocket.Upgrader
}

// NewHandler creates a new session handler instance.
func NewHandler(
	reg *registry.Registry,
	dispatch *service.Dispatch,
	contextManager model.ContextManager,
	limiter *ratelimit.PerIdentity,
	m *metrics.Metrics,
	logger *logger.Logger,
	opts Options,
) *Handler {
	if opts.ReadLimitBytes <= 0 {
		opts.ReadLimitBytes = 1 << 20
	}
	if opts.PongWait <= 0 {
		opts.PongWait = 60 * time.Second
	}
	return &Handler{
		registry:       reg,
		dispatch:       dispatch,
		contextManager: contextManager,
		limiter:        limiter,
		metrics:        m,
		logger:         logger,
		opts:           opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handle runs one live session. The caller must already be
// authenticated; their identity comes from the request context.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.contextManager.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing authorization", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Info("WS session: upgrade failed",
			"identity", identity,
			"error", err.Error())
		return
	}

	ch := registry.NewWSChannel(identity, conn)

	// A reconnect replaces the previous session for the same identity.
	// The displaced channel is closed here so its socket does not
	// linger half-dead with no registry entry pointing at it.
	if displaced := h.registry.Register(identity, ch); displaced != nil {
		_ = displaced.Close("replaced by newer session")
	}

	h.metrics.SessionsOpened.Inc()
	h.logger.Info("WS session: opened", "identity", identity)

	defer func() {
		// Unregister only removes this session's own handle; a
		// replacement registered meanwhile stays untouched.
		h.registry.Unregister(identity, ch)
		_ = conn.Close()
		h.metrics.SessionsClosed.Inc()
		h.logger.Info("WS session: closed", "identity", identity)
	}()

	conn.SetReadLimit(h.opts.ReadLimitBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	pingCtx, cancelPing := context.WithCancel(r.Context())
	defer cancelPing()
	go h.pingLoop(pingCtx, ch)

	h.readLoop(r.Context(), identity, ch, conn)
}

func (h *Handler) readLoop(ctx context.Context, identity string, ch *registry.WSChannel, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				h.logger.Info("WS session: abnormal close",
					"identity", identity,
					"error", err.Error())
			}
			return
		}

		if !h.limiter.Allow(identity, time.Now()) {
			h.sendError(ch, "rate limit exceeded")
			continue
		}

		in, err := model.ParseInbound(raw)
		if err != nil {
			// A malformed payload is reported back to the sender and
			// the session stays open.
			h.sendError(ch, err.Error())
			continue
		}

		if _, err := h.dispatch.Deliver(ctx, identity, in); err != nil {
			if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrMalformedPayload) {
				h.sendError(ch, err.Error())
				continue
			}
			h.logger.Error("WS session: dispatch failed",
				"identity", identity,
				"error", err.Error())
			h.sendError(ch, "failed to deliver message")
		}
	}
}

func (h *Handler) pingLoop(ctx context.Context, ch *registry.WSChannel) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ch.WriteControl(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) sendError(ch *registry.WSChannel, message string) {
	if err := ch.WriteJSON(errorFrame{Error: message}); err != nil {
		h.logger.Debug("WS session: error frame not delivered", "error", err.Error())
	}
}
