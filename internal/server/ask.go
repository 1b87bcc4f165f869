package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/coinwire/coinwire/internal/rag"
	"github.com/coinwire/coinwire/internal/stream"
)

// ask handles POST /api/v1/ask: it runs the question through the engine
// and bridges the resulting event channel onto the response as an
// event stream. Closing the connection cancels the request context and
// with it the engine's pipeline.
func (s *Server) ask(c echo.Context) error {
	var req rag.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	enc := stream.NewEncoder(resp)
	for ev := range s.engine.Ask(ctx, req) {
		if err := enc.Encode(ev); err != nil {
			// Client went away mid-write; the context cancellation
			// stops the engine.
			s.logger.Printf("ask stream write failed: %v", err)
			return nil
		}
	}
	return nil
}
