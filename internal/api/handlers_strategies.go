package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"blueprint-scanner/internal/condition"
	"blueprint-scanner/internal/database"
	"blueprint-scanner/internal/market"
	"blueprint-scanner/internal/regime"
)

type strategyRequest struct {
	Name         string             `json:"name" binding:"required"`
	Description  *string            `json:"description"`
	Direction    string             `json:"direction" binding:"required"`
	ValidRegimes []string           `json:"valid_regimes"`
	IsActive     *bool              `json:"is_active"`
	Conditions   []conditionRequest `json:"conditions" binding:"required"`
}

type conditionRequest struct {
	ConditionType string         `json:"condition_type" binding:"required"`
	Timeframe     string         `json:"timeframe" binding:"required"`
	Params        map[string]any `json:"params"`
	Required      *bool          `json:"required"`
}

// validate rejects bad strategies at save time so scans never have to
// cope with malformed configuration
func (req *strategyRequest) validate() error {
	switch req.Direction {
	case database.DirectionLong, database.DirectionShort, database.DirectionBoth:
	default:
		return fmt.Errorf("direction must be long, short or both")
	}
	for _, r := range req.ValidRegimes {
		if !regime.IsValid(regime.Regime(r)) {
			return fmt.Errorf("unknown regime %q", r)
		}
	}
	if len(req.Conditions) == 0 {
		return fmt.Errorf("at least one condition is required")
	}
	for i, c := range req.Conditions {
		if !condition.IsKnown(condition.Type(c.ConditionType)) {
			return fmt.Errorf("condition %d: unknown type %q", i, c.ConditionType)
		}
		if !market.IsValidTimeframe(c.Timeframe) {
			return fmt.Errorf("condition %d: invalid timeframe %q", i, c.Timeframe)
		}
		if _, err := condition.ParseParams(condition.Type(c.ConditionType), c.Params); err != nil {
			return fmt.Errorf("condition %d (%s): %w", i, c.ConditionType, err)
		}
	}
	return nil
}

func (req *strategyRequest) toModel() *database.Strategy {
	strat := &database.Strategy{
		Name:         req.Name,
		Description:  req.Description,
		Direction:    req.Direction,
		ValidRegimes: req.ValidRegimes,
		IsActive:     true,
	}
	if req.ValidRegimes == nil {
		strat.ValidRegimes = []string{}
	}
	if req.IsActive != nil {
		strat.IsActive = *req.IsActive
	}
	for i, c := range req.Conditions {
		required := true
		if c.Required != nil {
			required = *c.Required
		}
		params := c.Params
		if params == nil {
			params = map[string]any{}
		}
		strat.Conditions = append(strat.Conditions, database.StrategyCondition{
			ConditionType: c.ConditionType,
			Timeframe:     c.Timeframe,
			Params:        params,
			Required:      required,
			SortOrder:     i,
		})
	}
	return strat
}

func (s *Server) handleListStrategies(c *gin.Context) {
	strategies, err := s.repo.GetAllStrategies(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategies": strategies})
}

func (s *Server) handleGetStrategy(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid strategy id"})
		return
	}
	strat, err := s.repo.GetStrategyByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, strat)
}

func (s *Server) handleCreateStrategy(c *gin.Context) {
	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	strat := req.toModel()
	if err := s.repo.CreateStrategy(c.Request.Context(), strat); err != nil {
		s.logger.Error().Err(err).Str("name", req.Name).Msg("Failed to create strategy")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, strat)
}

func (s *Server) handleUpdateStrategy(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid strategy id"})
		return
	}
	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	strat := req.toModel()
	strat.ID = id
	if err := s.repo.UpdateStrategy(c.Request.Context(), strat); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, strat)
}

func (s *Server) handleToggleStrategy(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid strategy id"})
		return
	}
	strat, err := s.repo.GetStrategyByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err := s.repo.SetStrategyActive(c.Request.Context(), id, !strat.IsActive); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_active": !strat.IsActive})
}

func (s *Server) handleDeleteStrategy(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid strategy id"})
		return
	}
	// Setups reference strategies by name snapshot, so history survives
	if err := s.repo.DeleteStrategy(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (s *Server) handleListConditionTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"conditions": condition.Metadata()})
}
