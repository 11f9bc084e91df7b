package admin

import (
	"encoding/json"
	"errors"
	"github.com/ValentinKolb/dSock/rpc/engine"
	"github.com/ValentinKolb/dSock/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"net/http"
	"time"
)

var Logger = logger.GetLogger("admin")

// EndpointInfo is the json representation of a live endpoint
type EndpointInfo struct {
	ID       string  `json:"id"`
	Addr     string  `json:"addr"`
	State    string  `json:"state"`
	PingMS   float64 `json:"ping_ms"`
	Received int64   `json:"received"`
	Sent     int64   `json:"sent"`
}

// Server exposes the engine metrics and the endpoints of a listener over http
type Server struct {
	engine   *engine.Engine
	listener *base.Listener
	debug    bool
	server   *http.Server
}

// NewServer creates an admin server. listener may be nil, then /endpoints is empty.
// With debug set every request is logged.
func NewServer(eng *engine.Engine, listener *base.Listener, debug bool) *Server {
	return &Server{
		engine:   eng,
		listener: listener,
		debug:    debug,
	}
}

// Handler returns the routes of the admin server:
//
//	GET /metrics   engine metrics in the prometheus text format
//	GET /health    200 while the listener is alive, 503 after it was killed
//	GET /endpoints the live endpoints of the listener as json
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	routes := map[string]http.HandlerFunc{
		"GET /metrics":   s.handleMetrics,
		"GET /health":    s.handleHealth,
		"GET /endpoints": s.handleEndpoints,
	}
	for pattern, handler := range routes {
		if s.debug {
			handler = loggerMiddleware(handler)
		}
		mux.HandleFunc(pattern, handler)
	}
	return mux
}

// Serve listens on addr and serves until Close is called
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	Logger.Infof("Starting admin server on %s", ln.Addr())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the http server
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.engine.WritePrometheus(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.listener != nil {
		select {
		case <-s.listener.Done():
			http.Error(w, "killed", http.StatusServiceUnavailable)
			return
		default:
		}
	}
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleEndpoints(w http.ResponseWriter, _ *http.Request) {
	infos := []EndpointInfo{}
	if s.listener != nil {
		for _, ep := range s.listener.Endpoints() {
			stats := ep.Stats()
			infos = append(infos, EndpointInfo{
				ID:       ep.ID(),
				Addr:     ep.Addr(),
				State:    ep.State().String(),
				PingMS:   float64(ep.Ping()) / float64(time.Millisecond),
				Received: stats.Received,
				Sent:     stats.Sent,
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		http.Error(w, "Failed to write response", http.StatusInternalServerError)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	}
}
