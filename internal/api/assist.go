package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/session"
)

func (s *Server) handleSuggestCriteria(c *gin.Context) {
	var req session.SuggestOptions
	if !s.bindOptionalJSON(c, &req) {
		return
	}
	items, err := s.manager.SuggestCriteria(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	if items == nil {
		items = []matrix.Criterion{}
	}
	c.JSON(http.StatusOK, SuggestionsResponse[matrix.Criterion]{Items: items, Applied: req.Apply})
}

func (s *Server) handleSuggestAlternatives(c *gin.Context) {
	var req session.SuggestOptions
	if !s.bindOptionalJSON(c, &req) {
		return
	}
	items, err := s.manager.SuggestAlternatives(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	if items == nil {
		items = []matrix.Alternative{}
	}
	c.JSON(http.StatusOK, SuggestionsResponse[matrix.Alternative]{Items: items, Applied: req.Apply})
}

func (s *Server) handleSuggestProducts(c *gin.Context) {
	var req session.SuggestOptions
	if !s.bindOptionalJSON(c, &req) {
		return
	}
	matches, err := s.manager.SuggestProducts(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SuggestionsResponse[ProductMatchDTO]{Items: productMatchesToDTO(matches), Applied: req.Apply})
}

func (s *Server) handleEvaluateCell(c *gin.Context) {
	var req CellRequest
	if !s.bindJSON(c, &req) {
		return
	}
	score, err := s.manager.EvaluateCell(c.Request.Context(), req.AlternativeID, req.CriterionID, req.Provider)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, score)
}

func (s *Server) handleInsights(c *gin.Context) {
	var req ProviderRequest
	if !s.bindOptionalJSON(c, &req) {
		return
	}
	insights, err := s.manager.GenerateInsights(c.Request.Context(), req.Provider)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, insights)
}

func (s *Server) handlePublish(c *gin.Context) {
	var req PublishRequest
	if !s.bindOptionalJSON(c, &req) {
		return
	}
	url, err := s.manager.Publish(c.Request.Context(), s.publisher, req.Narrative)
	if err != nil {
		s.fail(c, err)
		return
	}
	logrus.WithField("url", url).Info("decision published")
	c.JSON(http.StatusOK, gin.H{"url": url})
}
