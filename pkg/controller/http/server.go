package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/pagecraft/pkg/domain/interfaces"
	"github.com/m-mizutani/pagecraft/pkg/utils/async"
)

// config holds internal HTTP server configuration
type config struct {
	addr       string
	secret     string
	dispatcher *async.Dispatcher
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithSecret sets the shared secret every task request must carry
func WithSecret(secret string) Option {
	return func(c *config) {
		c.secret = secret
	}
}

// WithAsync makes /handle_task answer 202 right after validation and run
// the round in the background through dispatcher
func WithAsync(dispatcher *async.Dispatcher) Option {
	return func(c *config) {
		c.dispatcher = dispatcher
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates a new HTTP server
func NewServer(
	ctx context.Context,
	taskUC interfaces.TaskUseCase,
	opts ...Option,
) (*Server, error) {
	cfg := &config{
		addr: "localhost:8080",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.secret == "" {
		return nil, goerr.New("shared secret is required")
	}

	schema, err := loadTaskSchema(ctx)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	router.Get("/health", handleHealth)

	taskHandler := NewTaskHandler(taskUC, cfg.secret, schema, cfg.dispatcher)
	router.Post("/handle_task", taskHandler.Handle)

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}

	return server, nil
}
