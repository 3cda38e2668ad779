package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/publish"
	"decision-matrix/backend/internal/scoring"
	"decision-matrix/backend/internal/session"
)

var allSteps = []session.Step{
	session.StepCriteria,
	session.StepAlternatives,
	session.StepEvaluation,
	session.StepResults,
}

func (s *Server) sessionResponse() (SessionResponse, error) {
	d, ok := s.manager.Current()
	if !ok {
		return SessionResponse{}, session.ErrNoDecision
	}
	resp := SessionResponse{
		Decision:   d,
		Step:       s.manager.Step(),
		CanProceed: make(map[session.Step]bool, len(allSteps)),
		Results:    scoring.ComputeResults(d),
	}
	for _, step := range allSteps {
		resp.CanProceed[step] = s.manager.CanProceed(step)
	}
	if leader, ok := scoring.Leader(resp.Results); ok {
		resp.Leader = &leader
	}
	return resp, nil
}

// renderSession answers a mutation with the updated session.
func (s *Server) renderSession(c *gin.Context, status int) {
	resp, err := s.sessionResponse()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(status, resp)
}

func (s *Server) handleGetSession(c *gin.Context) {
	s.renderSession(c, http.StatusOK)
}

func (s *Server) handleCloseSession(c *gin.Context) {
	s.manager.Close()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUpdateDetails(c *gin.Context) {
	var req session.Details
	if !s.bindJSON(c, &req) {
		return
	}
	if _, err := s.manager.UpdateDetails(c.Request.Context(), req); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusOK)
}

func (s *Server) handleGoTo(c *gin.Context) {
	var req StepRequest
	if !s.bindJSON(c, &req) {
		return
	}
	step, err := session.ParseStep(req.Step)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.manager.GoTo(step); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusOK)
}

func (s *Server) handleAddCriteria(c *gin.Context) {
	var req CriteriaRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if _, err := s.manager.AddCriteria(c.Request.Context(), req.Criteria); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusCreated)
}

func (s *Server) handleUpdateCriterion(c *gin.Context) {
	var patch session.CriterionPatch
	if !s.bindJSON(c, &patch) {
		return
	}
	if _, err := s.manager.UpdateCriterion(c.Request.Context(), trimmedParam(c, "cid"), patch); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusOK)
}

func (s *Server) handleRemoveCriterion(c *gin.Context) {
	if err := s.manager.RemoveCriterion(c.Request.Context(), trimmedParam(c, "cid")); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusOK)
}

func (s *Server) handleReorderCriteria(c *gin.Context) {
	var req OrderRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.manager.ReorderCriteria(c.Request.Context(), req.IDs); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusOK)
}

func (s *Server) handleMoveCriterion(c *gin.Context) {
	var req MoveRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.manager.MoveCriterion(c.Request.Context(), trimmedParam(c, "cid"), *req.Index); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusOK)
}

func (s *Server) handleAddAlternatives(c *gin.Context) {
	var req AlternativesRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if _, err := s.manager.AddAlternatives(c.Request.Context(), req.Alternatives); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusCreated)
}

func (s *Server) handleAddProducts(c *gin.Context) {
	var req ProductsRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if _, err := s.manager.AddProducts(c.Request.Context(), req.ProductIDs); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusCreated)
}

func (s *Server) handleUpdateAlternative(c *gin.Context) {
	var patch session.AlternativePatch
	if !s.bindJSON(c, &patch) {
		return
	}
	if _, err := s.manager.UpdateAlternative(c.Request.Context(), trimmedParam(c, "aid"), patch); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusOK)
}

func (s *Server) handleRemoveAlternative(c *gin.Context) {
	if err := s.manager.RemoveAlternative(c.Request.Context(), trimmedParam(c, "aid")); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusOK)
}

func (s *Server) handleReorderAlternatives(c *gin.Context) {
	var req OrderRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.manager.ReorderAlternatives(c.Request.Context(), req.IDs); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusOK)
}

func (s *Server) handleMoveAlternative(c *gin.Context) {
	var req MoveRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.manager.MoveAlternative(c.Request.Context(), trimmedParam(c, "aid"), *req.Index); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusOK)
}

func (s *Server) handleSetScore(c *gin.Context) {
	var score matrix.Score
	if !s.bindJSON(c, &score) {
		return
	}
	if err := s.manager.SetScore(c.Request.Context(), trimmedParam(c, "aid"), trimmedParam(c, "cid"), score); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusOK)
}

func (s *Server) handleClearScore(c *gin.Context) {
	if err := s.manager.ClearScore(c.Request.Context(), trimmedParam(c, "aid"), trimmedParam(c, "cid")); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusOK)
}

func (s *Server) handleSetScores(c *gin.Context) {
	var req ScoresRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.manager.SetAllScores(c.Request.Context(), req.Scores); err != nil {
		s.fail(c, err)
		return
	}
	s.renderSession(c, http.StatusOK)
}

func (s *Server) handleResults(c *gin.Context) {
	results, err := s.manager.CalculateResults()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) handleResultsCSV(c *gin.Context) {
	d, ok := s.manager.Current()
	if !ok {
		s.fail(c, session.ErrNoDecision)
		return
	}
	results := scoring.ComputeResults(d)

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s-results.csv", publish.Slug(d.Title, d.ID)))
	c.Header("Content-Type", "text/csv")

	writer := csv.NewWriter(c.Writer)
	headers := []string{"rank", "alternative", "total_score", "max_possible", "percentage", "strengths", "weaknesses"}
	for _, crit := range d.Criteria {
		headers = append(headers, crit.Name)
	}
	if err := writer.Write(headers); err != nil {
		return
	}
	for _, r := range results {
		line := []string{
			strconv.Itoa(r.Rank),
			r.Name,
			fmt.Sprintf("%.2f", r.TotalScore),
			fmt.Sprintf("%.2f", r.MaxPossible),
			strconv.Itoa(r.Percentage),
			strings.Join(r.Strengths, "|"),
			strings.Join(r.Weaknesses, "|"),
		}
		for _, b := range r.Breakdown {
			if b.Scored {
				line = append(line, strconv.Itoa(b.Value))
			} else {
				line = append(line, "")
			}
		}
		if err := writer.Write(line); err != nil {
			return
		}
	}
	writer.Flush()
}
