package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"blueprint-scanner/internal/database"
	"blueprint-scanner/internal/market"
	"blueprint-scanner/internal/scanner"
)

// ============================================================================
// SCAN CONTROL
// ============================================================================

func (s *Server) handleTriggerScan(c *gin.Context) {
	scanID, err := s.engine.Trigger(c.Request.Context(), database.ScanTriggerManual)
	if err != nil {
		if errors.Is(err, scanner.ErrScanAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": "a scan is already running"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to trigger scan")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"scan_id": scanID})
}

func (s *Server) handleScanStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handleCancelScan(c *gin.Context) {
	scanID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scan id"})
		return
	}
	if err := s.engine.RequestCancel(scanID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"scan_id": scanID, "cancelling": true})
}

func (s *Server) handleScanLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	logs, err := s.repo.GetRecentScanLogs(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list scan logs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scan_logs": logs})
}

// ============================================================================
// SETUPS
// ============================================================================

func (s *Server) handleListSetups(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	setups, err := s.repo.ListSetups(c.Request.Context(), c.Query("status"), c.Query("symbol"), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list setups")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"setups": setups})
}

func (s *Server) handleGetSetup(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid setup id"})
		return
	}
	setup, err := s.repo.GetSetupByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrSetupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "setup not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, setup)
}

// ============================================================================
// ASSETS
// ============================================================================

func (s *Server) handleListAssets(c *gin.Context) {
	assets, err := s.repo.GetActiveAssets(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assets": assets})
}

type watchlistRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

func (s *Server) handleAddWatchlistAsset(c *gin.Context) {
	var req watchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	base, quote := market.SplitSymbol(req.Symbol)
	if base == "" || quote == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol must look like BTC/USDT"})
		return
	}
	asset := &database.Asset{
		Symbol:     req.Symbol,
		BaseAsset:  base,
		QuoteAsset: quote,
		Source:     database.AssetSourceWatchlist,
	}
	if err := s.repo.UpsertAsset(c.Request.Context(), asset); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, asset)
}

func (s *Server) handleRemoveWatchlistAsset(c *gin.Context) {
	symbol := c.Param("symbol")
	if err := s.repo.SetAssetActive(c.Request.Context(), symbol, false); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "is_active": false})
}
