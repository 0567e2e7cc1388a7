package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"blueprint-scanner/internal/database"
)

type journalRequest struct {
	SetupID    *uuid.UUID `json:"setup_id"`
	Symbol     string     `json:"symbol" binding:"required"`
	Direction  *string    `json:"direction"`
	EntryPrice *float64   `json:"entry_price"`
	ExitPrice  *float64   `json:"exit_price"`
	RMultiple  *float64   `json:"r_multiple"`
	Notes      string     `json:"notes"`
	Tags       []string   `json:"tags"`
}

func (s *Server) handleListJournal(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := s.repo.ListJournalEntries(c.Request.Context(), c.Query("symbol"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) handleCreateJournalEntry(c *gin.Context) {
	var req journalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry := &database.JournalEntry{
		SetupID:    req.SetupID,
		Symbol:     req.Symbol,
		Direction:  req.Direction,
		EntryPrice: req.EntryPrice,
		ExitPrice:  req.ExitPrice,
		RMultiple:  req.RMultiple,
		Notes:      req.Notes,
		Tags:       req.Tags,
	}
	if err := s.repo.CreateJournalEntry(c.Request.Context(), entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) handleUpdateJournalEntry(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}
	var req journalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry := &database.JournalEntry{
		ID:         id,
		Direction:  req.Direction,
		EntryPrice: req.EntryPrice,
		ExitPrice:  req.ExitPrice,
		RMultiple:  req.RMultiple,
		Notes:      req.Notes,
		Tags:       req.Tags,
	}
	if err := s.repo.UpdateJournalEntry(c.Request.Context(), entry); err != nil {
		if errors.Is(err, database.ErrJournalEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) handleDeleteJournalEntry(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}
	if err := s.repo.DeleteJournalEntry(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrJournalEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
