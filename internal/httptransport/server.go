// Package httptransport serves JSON-RPC over HTTP and WebSocket, the outer
// surface the rest of this daemon's internal packages are assembled behind.
// Grounded on clydemeng-bsc's own node/rpc HTTP/WS listener: a single
// rpcdispatch.Dispatcher is shared across both transports, CORS is enforced
// with rs/cors rather than hand-rolled header checks, and WebSocket framing
// uses gorilla/websocket rather than a raw net.Conn upgrade.
package httptransport

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/erigontech/rpcdaemon/internal/rpcdispatch"
	"github.com/erigontech/rpcdaemon/internal/rpclog"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

// Server wraps a rpcdispatch.Dispatcher with HTTP POST and WebSocket
// handlers.
type Server struct {
	dispatcher *rpcdispatch.Dispatcher
	log        rpclog.Logger
	upgrader   websocket.Upgrader
}

// New builds a Server.
func New(dispatcher *rpcdispatch.Dispatcher) *Server {
	return &Server{
		dispatcher: dispatcher,
		log:        rpclog.New("component", "httptransport"),
		upgrader:   websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
	}
}

// Handler returns the CORS-wrapped HTTP handler serving JSON-RPC POST
// requests and WebSocket upgrades on the same path. allowedOrigins is
// forwarded to rs/cors verbatim; an empty slice disables cross-origin
// requests entirely (rs/cors itself would treat an empty list as "allow
// all", so an origin check that always fails is installed instead).
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveHTTP)

	opts := cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"content-type"},
	}
	if len(allowedOrigins) == 0 {
		opts.AllowOriginFunc = func(string) bool { return false }
	}
	c := cors.New(opts)
	return c.Handler(mux)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.serveWS(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpcdispatch.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp := s.dispatcher.Serve(r.Context(), req)
	w.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// A single connection serializes writes: responses to concurrently
	// dispatched requests can complete out of order and gorilla/websocket
	// forbids concurrent writers on the same connection.
	var writeMu sync.Mutex
	var wg sync.WaitGroup

	for {
		var req rpcdispatch.Request
		if err := conn.ReadJSON(&req); err != nil {
			break
		}
		wg.Add(1)
		go func(req rpcdispatch.Request) {
			defer wg.Done()
			resp := s.dispatcher.Serve(r.Context(), req)
			writeMu.Lock()
			defer writeMu.Unlock()
			_ = conn.WriteJSON(resp)
		}(req)
	}
	wg.Wait()
}
