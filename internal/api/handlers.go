package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/leadbot/internal/leads"
	"github.com/xaenox/leadbot/internal/scoring"
	"github.com/xaenox/leadbot/internal/storage"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

type leadsResponse struct {
	Leads []leads.Lead `json:"leads"`
	Count int          `json:"count"`
}

type leadResponse struct {
	leads.Lead
	Outreach leads.Blurb `json:"outreach"`
}

func (s *Server) listLeads(c *gin.Context) {
	var f leads.Filter

	if raw := c.Query("category"); raw != "" {
		category, ok := scoring.ParseCategory(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown category " + strconv.Quote(raw)})
			return
		}
		f.Category = category
	}
	if raw := c.Query("min_score"); raw != "" {
		minScore, err := strconv.ParseFloat(raw, 64)
		if err != nil || minScore < 0 || minScore > 1 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "min_score must be a number between 0 and 1"})
			return
		}
		f.MinScore = minScore
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		f.Limit = limit
	}

	ranked, err := s.leads.Rank(c.Request.Context(), f)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if ranked == nil {
		ranked = []leads.Lead{}
	}
	c.JSON(http.StatusOK, leadsResponse{Leads: ranked, Count: len(ranked)})
}

func (s *Server) getLead(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid contact id"})
		return
	}

	lead, err := s.leads.Get(c.Request.Context(), userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "contact not found"})
		return
	case errors.Is(err, leads.ErrInvalidAggregate):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	case err != nil:
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, leadResponse{Lead: lead, Outreach: leads.Outreach(lead)})
}

func (s *Server) summary(c *gin.Context) {
	sum, err := s.leads.Summary(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}
