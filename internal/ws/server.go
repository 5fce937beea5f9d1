package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/wavesoft/marblebar/internal/codec"
	"github.com/wavesoft/marblebar/internal/config"
	"github.com/wavesoft/marblebar/internal/kernel"
	"github.com/wavesoft/marblebar/internal/session"
)

type Server struct {
	config          *config.Config
	kernel          *kernel.Kernel
	registry        *session.Registry
	version         string
	frontendDir     string
	dev             bool
	embeddedHandler http.Handler
	allowedOrigins  map[string]bool
	allowedHosts    map[string]bool
}

func NewServer(cfg *config.Config, k *kernel.Kernel, registry *session.Registry, version, frontendDir string, dev bool, embeddedHandler http.Handler) *Server {
	s := &Server{
		config:          cfg,
		kernel:          k,
		registry:        registry,
		version:         version,
		frontendDir:     frontendDir,
		dev:             dev,
		embeddedHandler: embeddedHandler,
		allowedOrigins:  make(map[string]bool),
		allowedHosts:    make(map[string]bool),
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/info", s.handleInfo)
	mux.HandleFunc("/api/views", s.handleViews)

	if s.dev {
		log.Printf("Serving frontend from filesystem: %s", s.frontendDir)
		mux.Handle("/", securityHeaders(http.FileServer(http.Dir(s.frontendDir))))
	} else if s.embeddedHandler != nil {
		log.Println("Serving embedded frontend")
		mux.Handle("/", securityHeaders(s.embeddedHandler))
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	sess, err := s.registry.Open(domainFromOrigin(r.Header.Get("Origin")), r.URL.Path)
	if errors.Is(err, session.ErrTooManyConnections) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		s.registry.Remove(sess)
		return
	}

	log.Printf("WebSocket client connected: %s (session %s, domain %q)", r.RemoteAddr, sess.ID(), sess.Domain())
	c := &client{
		conn:         conn,
		sess:         sess,
		writeTimeout: s.config.Sync.WriteTimeout,
		pingInterval: s.config.Sync.PingInterval,
		readLimit:    s.config.Sync.ReadLimit,
	}
	go func() {
		c.run()
		log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
	}()
}

// handleInfo lets any page probe for a running instance, so it allows
// every origin.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(InfoPayload{
		Status:  "ok",
		Request: r.URL.Path,
		Domain:  domainFromOrigin(r.Header.Get("Origin")),
		Version: s.version,
	})
}

func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	specs := s.kernel.Specs()
	if strings.Contains(r.Header.Get("Accept"), codec.ContentType) {
		w.Header().Set("Content-Type", codec.ContentType)
		if err := codec.NewEncoder(w).Encode(specs); err != nil {
			log.Printf("Encode views: %v", err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(specs)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// domainFromOrigin reduces an Origin header to its host name, dropping the
// scheme and any port.
func domainFromOrigin(origin string) string {
	domain := origin
	if i := strings.Index(domain, "//"); i >= 0 {
		domain = domain[i+2:]
	}
	if i := strings.Index(domain, ":"); i >= 0 {
		domain = domain[:i]
	}
	return domain
}

func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
