package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/coinwire/coinwire/internal/ingest"
)

// StatsFunc reports ingestion progress for the health endpoint.
type StatsFunc func() ingest.Stats

type healthResponse struct {
	Status    string        `json:"status"`
	Articles  int           `json:"articles"`
	Ingestion *ingest.Stats `json:"ingestion,omitempty"`
}

// health reports index reachability, corpus size and ingestion stats.
func (s *Server) health(c echo.Context) error {
	count, err := s.store.Count(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "degraded"})
	}
	resp := healthResponse{Status: "ok", Articles: count}
	if s.stats != nil {
		st := s.stats()
		resp.Ingestion = &st
	}
	return c.JSON(http.StatusOK, resp)
}
