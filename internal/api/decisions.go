package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/session"
	"decision-matrix/backend/internal/store"
)

func (s *Server) handleTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, matrix.Templates())
}

func (s *Server) handleListDecisions(c *gin.Context) {
	ctx := c.Request.Context()
	var items []session.Summary
	if query := strings.TrimSpace(c.Query("q")); query != "" {
		found, err := s.repo.Search(ctx, query)
		if err != nil {
			s.fail(c, err)
			return
		}
		items = make([]session.Summary, 0, len(found))
		for _, d := range found {
			items = append(items, session.Summarize(d))
		}
	} else {
		summaries, err := s.manager.RefreshSummaries(ctx)
		if err != nil {
			s.fail(c, err)
			return
		}
		items = summaries
	}
	c.JSON(http.StatusOK, DecisionsResponse{Items: items, Total: len(items)})
}

func (s *Server) handleCreateDecision(c *gin.Context) {
	var req CreateDecisionRequest
	if !s.bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	var (
		d   matrix.Decision
		err error
	)
	if tmpl := strings.TrimSpace(req.Template); tmpl != "" {
		d, err = s.manager.NewFromTemplate(ctx, tmpl, req.Title)
	} else {
		d, err = s.manager.NewDecision(ctx, matrix.Decision{
			Title:        req.Title,
			Description:  req.Description,
			Category:     req.Category,
			Criteria:     req.Criteria,
			Alternatives: req.Alternatives,
		})
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"decision": d.ID, "template": req.Template}).Info("decision created")
	s.renderSession(c, http.StatusCreated)
}

func (s *Server) handleGetDecision(c *gin.Context) {
	d, err := s.repo.Get(c.Request.Context(), trimmedParam(c, "id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleOpenDecision(c *gin.Context) {
	if _, err := s.manager.Open(c.Request.Context(), trimmedParam(c, "id")); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusOK)
}

func (s *Server) handleDeleteDecision(c *gin.Context) {
	id := trimmedParam(c, "id")
	if err := s.manager.DeleteDecision(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	logrus.WithField("decision", id).Info("decision deleted")
	c.Status(http.StatusNoContent)
}

func (s *Server) handleExportJSON(c *gin.Context) {
	decisions, err := s.repo.ExportAll(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if decisions == nil {
		decisions = []matrix.Decision{}
	}
	c.Header("Content-Disposition", "attachment; filename=decisions-export.json")
	c.JSON(http.StatusOK, decisions)
}

func (s *Server) handleImport(c *gin.Context) {
	mode, err := store.ParseImportMode(c.Query("mode"))
	if err != nil {
		s.fail(c, err)
		return
	}
	var decisions []matrix.Decision
	if !s.bindJSON(c, &decisions) {
		return
	}
	for i, d := range decisions {
		if err := matrix.ValidateDecision(d); err != nil {
			var verr *matrix.ValidationError
			if errors.As(err, &verr) {
				verr.Message = "decision " + strconv.Itoa(i) + ": " + verr.Message
			}
			s.fail(c, err)
			return
		}
	}

	ctx := c.Request.Context()
	if err := s.repo.ImportAll(ctx, decisions, mode); err != nil {
		s.fail(c, err)
		return
	}
	if current, ok := s.manager.Current(); ok {
		if _, err := s.manager.Open(ctx, current.ID); err != nil {
			s.manager.Close()
		}
	}
	if _, err := s.manager.RefreshSummaries(ctx); err != nil {
		logrus.WithError(err).Warn("refresh summaries after import")
	}
	logrus.WithFields(logrus.Fields{"count": len(decisions), "mode": mode}).Info("decisions imported")
	c.JSON(http.StatusOK, ImportResponse{Imported: len(decisions), Mode: string(mode)})
}
