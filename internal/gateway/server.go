package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"shopassist/internal/chat"
	"shopassist/internal/domain"
	"shopassist/internal/health"
)

// ErrInvalidPort is returned when gateway port is not in 0..65535.
var ErrInvalidPort = errors.New("gateway port must be 0-65535")

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// ChatService is what the HTTP handlers call. *chat.Service implements it.
type ChatService interface {
	Chat(ctx context.Context, req chat.Request) (chat.Response, error)
	Products(ctx context.Context, limit int) (chat.ProductList, error)
	Recommend(ctx context.Context, q chat.ProductQuery) (chat.Recommendation, error)
}

// HealthChecker reports dependency health. *health.Checker implements it.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithVersion sets the version reported by GET /.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// Server is the HTTP API: /, /health, /products, /recommend, /chat and /ws.
type Server struct {
	cfg         domain.GatewayConfig
	svc         ChatService
	checker     HealthChecker
	logger      *slog.Logger
	version     string
	server      *http.Server
	addr        string
	addrMu      sync.RWMutex
	listenErr   error
	listenErrMu sync.Mutex
}

// NewServer builds the API from config. Port 0 means pick a random port.
// Panics if svc or checker is nil; returns ErrInvalidPort for a bad port.
func NewServer(cfg domain.GatewayConfig, svc ChatService, checker HealthChecker, opts ...Option) (*Server, error) {
	if svc == nil {
		panic("gateway: chat service must not be nil")
	}
	if checker == nil {
		panic("gateway: health checker must not be nil")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, ErrInvalidPort
	}
	s := &Server{cfg: cfg, svc: svc, checker: checker, logger: slog.Default(), version: "dev"}
	for _, o := range opts {
		o(s)
	}
	s.server = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(s.cfg.AuthToken))
		r.Get("/products", s.handleProducts)
		r.Post("/recommend", s.handleRecommend)
		r.Post("/chat", s.handleChat)
		r.HandleFunc("/ws", s.handleWS)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(r.Context(), w, newAPIError("not_found", "no route for "+r.URL.Path, http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(r.Context(), w, newAPIError("method_not_allowed", r.Method+" not allowed on "+r.URL.Path, http.StatusMethodNotAllowed))
	})
	return r
}

// Handler returns the HTTP handler, for tests that do not bind a port.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the bound address after Run has started. Empty before Run.
func (s *Server) Addr() string {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.addr
}

// ListenErr returns the error from the initial Listen in Run, if any.
func (s *Server) ListenErr() error {
	s.listenErrMu.Lock()
	defer s.listenErrMu.Unlock()
	return s.listenErr
}

// netListen is the function used to listen; tests may replace it.
var netListen = func(network, address string) (net.Listener, error) {
	return net.Listen(network, address)
}

// Run listens on host:port and serves until shutdown is closed, then drains
// in-flight requests. Returns nil after a clean shutdown.
func (s *Server) Run(shutdown <-chan struct{}) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := netListen("tcp", addr)
	if err != nil {
		s.listenErrMu.Lock()
		s.listenErr = err
		s.listenErrMu.Unlock()
		return err
	}
	s.addrMu.Lock()
	s.addr = ln.Addr().String()
	s.addrMu.Unlock()
	s.logger.Info("gateway listening", "addr", s.Addr())

	done := make(chan error, 1)
	go func() {
		done <- s.server.Serve(ln)
	}()

	select {
	case err := <-done:
		return err
	case <-shutdown:
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := serverShutdown(s.server, ctx); err != nil {
		return err
	}
	<-done
	s.logger.Info("gateway stopped")
	return nil
}

// serverShutdown is the function used to shut down the server; tests may replace it.
var serverShutdown = func(srv *http.Server, ctx context.Context) error {
	return srv.Shutdown(ctx)
}

// requestContext bounds a request by the configured timeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), time.Duration(s.cfg.RequestTimeout)*time.Second)
}
