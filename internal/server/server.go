package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmorgan81/genserve/internal/config"
	"github.com/dmorgan81/genserve/internal/log"
	"github.com/gin-gonic/gin"
)

type Server struct {
	*gin.Engine

	Config config.Server
	logger *slog.Logger
	server *http.Server
}

// New builds the engine with the middleware every route shares.
func New(cfg config.Server, logger *slog.Logger) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(Recovery(), WithLogger(logger), AccessLog())
	if len(cfg.CORS) > 0 {
		engine.Use(CORS(cfg.CORS))
	}

	return &Server{
		Engine: engine,
		Config: cfg,
		logger: logger,
		server: &http.Server{
			Addr:        cfg.Addr(),
			Handler:     engine,
			ReadTimeout: cfg.ReadTimeout,
		},
	}
}

// Run serves until Shutdown. There is no write timeout: a generation may
// legitimately run for minutes.
func (srv *Server) Run() error {
	srv.logger.Info("run server", "addr", srv.server.Addr)
	err := srv.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (srv *Server) Shutdown(ctx context.Context) error {
	log.FromContextOrDiscard(ctx).Info("shutting down server")
	return srv.server.Shutdown(ctx)
}
