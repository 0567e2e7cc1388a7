package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"blueprint-scanner/internal/backtest"
)

func (s *Server) handleRunBacktest(c *gin.Context) {
	var req backtest.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.StrategyID == 0 || req.Timeframe == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "strategy_id and timeframe are required"})
		return
	}

	result, err := s.backtester.Run(c.Request.Context(), req)
	if err != nil {
		s.logger.Error().Err(err).Int64("strategy_id", req.StrategyID).Msg("Backtest failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
