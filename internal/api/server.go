// Package api exposes the scanner over HTTP: scan control, setups,
// strategies, journal, backtests and a websocket event stream. Handlers
// are thin; all domain logic lives in the packages they call.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"blueprint-scanner/internal/backtest"
	"blueprint-scanner/internal/database"
	"blueprint-scanner/internal/events"
	"blueprint-scanner/internal/scanner"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	AllowOrigins   []string
	ProductionMode bool
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	repo       *database.Repository
	engine     *scanner.Engine
	backtester *backtest.Runner
	hub        *WSHub
	config     ServerConfig
	logger     zerolog.Logger
}

// NewServer wires the router. eventBus feeds the websocket stream and
// may be nil.
func NewServer(
	config ServerConfig,
	repo *database.Repository,
	engine *scanner.Engine,
	backtester *backtest.Runner,
	eventBus *events.EventBus,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:     router,
		repo:       repo,
		engine:     engine,
		backtester: backtester,
		hub:        NewWSHub(),
		config:     config,
		logger:     log.With().Str("component", "api").Logger(),
	}

	if eventBus != nil {
		eventBus.SubscribeAll(server.hub.RelayEvent)
	}
	go server.hub.Run()

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.POST("/scan/trigger", s.handleTriggerScan)
		api.GET("/scan/status", s.handleScanStatus)
		api.POST("/scan/:id/cancel", s.handleCancelScan)
		api.GET("/scan/logs", s.handleScanLogs)

		api.GET("/setups", s.handleListSetups)
		api.GET("/setups/:id", s.handleGetSetup)

		api.GET("/assets", s.handleListAssets)
		api.POST("/assets/watchlist", s.handleAddWatchlistAsset)
		api.DELETE("/assets/watchlist/:symbol", s.handleRemoveWatchlistAsset)

		api.GET("/strategies", s.handleListStrategies)
		api.POST("/strategies", s.handleCreateStrategy)
		api.GET("/strategies/:id", s.handleGetStrategy)
		api.PUT("/strategies/:id", s.handleUpdateStrategy)
		api.POST("/strategies/:id/toggle", s.handleToggleStrategy)
		api.DELETE("/strategies/:id", s.handleDeleteStrategy)
		api.GET("/conditions", s.handleListConditionTypes)

		api.POST("/backtest", s.handleRunBacktest)

		api.GET("/journal", s.handleListJournal)
		api.POST("/journal", s.handleCreateJournalEntry)
		api.PUT("/journal/:id", s.handleUpdateJournalEntry)
		api.DELETE("/journal/:id", s.handleDeleteJournalEntry)
	}

	s.router.GET("/ws/events", s.handleWebSocket)
}

// Start runs the HTTP server until Shutdown
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("HTTP server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.repo.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
