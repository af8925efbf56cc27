package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mcpkit/mcpkit/dispatch"
	"github.com/mcpkit/mcpkit/middleware"
	"github.com/mcpkit/mcpkit/protocol"
)

// HTTP implements transport over HTTP POST with an SSE side channel for
// server-to-client messages.
type HTTP struct {
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration

	shutdownTimeout time.Duration
	drainDelay      time.Duration

	mu         sync.RWMutex
	listenAddr string
	server     *http.Server
	drainer    *Drainer

	sseClients   map[string]chan []byte
	sseClientsMu sync.RWMutex
}

// HTTPOption configures the HTTP transport.
type HTTPOption func(*HTTP)

// WithReadTimeout sets the read timeout for HTTP requests.
func WithReadTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.readTimeout = d
	}
}

// WithWriteTimeout sets the write timeout for HTTP responses.
func WithWriteTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.writeTimeout = d
	}
}

// NewHTTP creates an HTTP transport.
func NewHTTP(addr string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		addr:            addr,
		readTimeout:     30 * time.Second,
		writeTimeout:    30 * time.Second,
		shutdownTimeout: 5 * time.Second,
		sseClients:      make(map[string]chan []byte),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.drainer = NewDrainer(
		WithDrainTimeout(h.shutdownTimeout),
		WithDrainDelay(h.drainDelay),
	)
	return h
}

// Addr returns the configured address.
func (h *HTTP) Addr() string {
	return h.addr
}

// ListenAddr returns the actual address the server is listening on.
func (h *HTTP) ListenAddr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.listenAddr
}

// Serve starts the HTTP server and handles requests until ctx is canceled.
func (h *HTTP) Serve(ctx context.Context, d dispatch.Func) error {
	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	h.mu.Lock()
	h.listenAddr = listener.Addr().String()
	h.server = &http.Server{
		Handler:      h.createHandler(d),
		ReadTimeout:  h.readTimeout,
		WriteTimeout: h.writeTimeout,
	}
	h.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		_ = h.drainer.Drain(shutdownCtx)
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (h *HTTP) createHandler(d dispatch.Func) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/rpc/sse", func(w http.ResponseWriter, r *http.Request) {
		h.handleSSE(w, r)
	})

	mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		h.handleRPC(w, r, d)
	})

	return mux
}

// handleRPC feeds one JSON-RPC message through the dispatch pipeline.
func (h *HTTP) handleRPC(w http.ResponseWriter, r *http.Request, d dispatch.Func) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !h.drainer.Track() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	defer h.drainer.Complete()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		resp := protocol.NewErrorResponse(nil, protocol.NewParseError("unreadable request body"))
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	// Expose selected headers to auth middleware downstream.
	meta := protocol.RequestMeta{}
	for _, header := range []string{"Authorization", "X-API-Key"} {
		if v := r.Header.Get(header); v != "" {
			meta[header] = v
		}
	}
	ctx := protocol.ContextWithRequestMeta(r.Context(), meta)

	respond := func(resp *protocol.Response) {
		_ = json.NewEncoder(w).Encode(resp)
	}

	d(ctx, body, respond, &dispatch.Meta{
		Peer: &middleware.PeerInfo{Address: r.RemoteAddr},
	})
}

// handleSSE handles Server-Sent Events connections.
func (h *HTTP) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientID := fmt.Sprintf("%d", time.Now().UnixNano())
	messageCh := make(chan []byte, 10)

	h.sseClientsMu.Lock()
	h.sseClients[clientID] = messageCh
	h.sseClientsMu.Unlock()

	defer func() {
		h.sseClientsMu.Lock()
		delete(h.sseClients, clientID)
		close(messageCh)
		h.sseClientsMu.Unlock()
	}()

	fmt.Fprintf(w, "event: connected\ndata: {\"clientId\":%q}\n\n", clientID)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-messageCh:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// Broadcast sends a message to all connected SSE clients.
func (h *HTTP) Broadcast(data []byte) {
	h.sseClientsMu.RLock()
	defer h.sseClientsMu.RUnlock()

	for _, ch := range h.sseClients {
		select {
		case ch <- data:
		default:
			// Skip if channel is full
		}
	}
}
