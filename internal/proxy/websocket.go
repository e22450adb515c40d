package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	fiberws "github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"fw-gateway/pkg/logging"
)

// WebSocketProxy relays WebSocket connections to an upstream for the few
// endpoints that opt in via configuration.
type WebSocketProxy struct {
	logger *logging.Logger
	dialer *websocket.Dialer
}

// NewWebSocketProxy creates a new WebSocket proxy
func NewWebSocketProxy(logger *logging.Logger) *WebSocketProxy {
	return &WebSocketProxy{
		logger: logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout:  10 * time.Second,
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
			EnableCompression: true,
		},
	}
}

// Proxy dials the upstream's WebSocket endpoint and relays frames in both
// directions until either side closes or errors.
func (p *WebSocketProxy) Proxy(client *fiberws.Conn, target, path string, header http.Header) error {
	targetURL, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("failed to parse target URL: %w", err)
	}

	scheme := "ws"
	if targetURL.Scheme == "https" {
		scheme = "wss"
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	wsURL := fmt.Sprintf("%s://%s%s", scheme, targetURL.Host, path)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	upstream, resp, err := p.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		p.logger.Error("WebSocket dial failed",
			zap.String("target", wsURL),
			zap.Int("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to dial upstream websocket: %w", err)
	}
	defer upstream.Close()

	p.logger.Debug("WebSocket connection established", zap.String("target", wsURL))

	errc := make(chan error, 2)
	go pump(upstream, client.Conn, errc)
	go pump(client.Conn, upstream, errc)

	// First error from either direction tears the pair down.
	err = <-errc
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return fmt.Errorf("websocket relay ended: %w", err)
	}
	return nil
}

// pump copies frames from src to dst until src fails or closes
func pump(dst, src *websocket.Conn, errc chan<- error) {
	for {
		messageType, payload, err := src.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		if err := dst.WriteMessage(messageType, payload); err != nil {
			errc <- err
			return
		}
	}
}
