package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vitos/live_price_chart/internal/domain"
	"github.com/vitos/live_price_chart/internal/usecase"
	"go.uber.org/zap"
)

// ChartController is the part of the poll driver the HTTP layer drives.
type ChartController interface {
	Snapshot() usecase.DriverSnapshot
	SetRange(ctx context.Context, key domain.RangeKey) error
	SetSeries(ctx context.Context, series string) error
}

// ImageSource serves the most recently rendered chart image.
type ImageSource interface {
	Latest() ([]byte, time.Time, bool)
}

type Server struct {
	router     *http.ServeMux
	server     *http.Server
	chart      ChartController
	images     ImageSource
	statusRepo domain.StatusRepository
	ranges     *domain.RangeCatalog
	hub        *Hub
	logger     *zap.Logger
}

func NewServer(
	port int,
	chart ChartController,
	images ImageSource,
	statusRepo domain.StatusRepository,
	ranges *domain.RangeCatalog,
	hub *Hub,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:     http.NewServeMux(),
		chart:      chart,
		images:     images,
		statusRepo: statusRepo,
		ranges:     ranges,
		hub:        hub,
		logger:     logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	// Chart state
	s.router.HandleFunc("GET /api/series", s.handleGetSeries)
	s.router.HandleFunc("POST /api/series", s.handleSetSeries)

	// Ranges
	s.router.HandleFunc("GET /api/ranges", s.handleListRanges)
	s.router.HandleFunc("POST /api/range", s.handleSetRange)

	// Status journal
	s.router.HandleFunc("GET /api/status", s.handleListStatus)

	// Rendered output
	s.router.HandleFunc("GET /chart.png", s.handleChartPNG)
	s.router.HandleFunc("GET /ws", s.handleWebSocket)

	s.router.HandleFunc("GET /healthz", s.handleHealth)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.CloseAll()
	}
	return s.server.Shutdown(ctx)
}
