// Package server exposes the HTTP surface: the streaming ask endpoint,
// health, and metrics.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coinwire/coinwire/internal/rag"
	"github.com/coinwire/coinwire/internal/store"
	"github.com/coinwire/coinwire/internal/stream"
)

// Asker is the slice of the RAG engine the server needs.
type Asker interface {
	Ask(ctx context.Context, req rag.Request) <-chan stream.Event
}

// Server wires the HTTP routes to the engine and store.
type Server struct {
	echo   *echo.Echo
	engine Asker
	store  store.ArticleStore
	stats  StatsFunc
	logger *log.Logger
}

// New builds the HTTP server. stats may be nil when ingestion is
// disabled.
func New(engine Asker, st store.ArticleStore, stats StatsFunc, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]any{"error": msg})
		}
	}

	s := &Server{echo: e, engine: engine, store: st, stats: stats, logger: logger}

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/api/v1/ask", s.ask)

	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Printf("listening on %s", addr)
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
