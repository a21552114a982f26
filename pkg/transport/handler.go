package transport

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Handler upgrades requests to WebSocket and runs a Router per connection.
// The acting user comes from the "user" query parameter.
type Handler struct {
	Sessions      Sessions
	Logger        *zap.Logger
	AcceptOptions *websocket.AcceptOptions
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	user := r.URL.Query().Get("user")
	if user == "" {
		http.Error(w, "user is required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, h.AcceptOptions)
	if err != nil {
		logger.Warn("websocket accept", zap.Error(err))
		return
	}
	tr := NewWebSocketTransport(r.Context(), conn)
	logger.Info("client connected", zap.String("user_id", user), zap.String("remote", r.RemoteAddr))

	err = NewRouter(tr, h.Sessions, user, logger).Run(r.Context())
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("connection ended", zap.String("user_id", user), zap.Error(err))
	}
}
