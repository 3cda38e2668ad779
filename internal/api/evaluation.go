package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/session"
	"decision-matrix/backend/internal/store"
)

var errJobRunning = errors.New("evaluation already running")

// evaluationJob tracks the running batch evaluation.
type evaluationJob struct {
	id         string
	decisionID string
	cancel     context.CancelFunc
	startedAt  time.Time
	total      int
	done       chan struct{}
}

// startEvaluation launches EvaluateAll in the background. The caller must hold
// s.jobMu.
func (s *Server) startEvaluation(req EvaluateRequest, d matrix.Decision) (*evaluationJob, error) {
	if s.activeJob != nil {
		return nil, errJobRunning
	}

	total := len(session.EvaluationTargets(d, req.OnlyMissing))

	ctx, cancel := context.WithCancel(context.Background())
	job := &evaluationJob{
		id:         uuid.NewString(),
		decisionID: d.ID,
		cancel:     cancel,
		startedAt:  time.Now().UTC(),
		total:      total,
		done:       make(chan struct{}),
	}
	run := store.EvaluationRun{
		ID:         job.id,
		DecisionID: d.ID,
		Status:     store.RunRunning,
		Total:      total,
		StartedAt:  job.startedAt,
	}
	if err := s.saveRun(context.Background(), run); err != nil {
		cancel()
		return nil, fmt.Errorf("record evaluation run: %w", err)
	}

	s.activeJob = job
	go s.runEvaluation(ctx, job, req, run)
	return job, nil
}

func (s *Server) runEvaluation(ctx context.Context, job *evaluationJob, req EvaluateRequest, run store.EvaluationRun) {
	defer func() {
		job.cancel()
		s.jobMu.Lock()
		if s.activeJob == job {
			s.activeJob = nil
		}
		s.jobMu.Unlock()
		close(job.done)
	}()

	logrus.WithFields(logrus.Fields{
		"job":          job.id,
		"decision":     job.decisionID,
		"alternatives": job.total,
		"only_missing": req.OnlyMissing,
	}).Info("evaluation job started")
	s.evalNotifier.Broadcast(EvaluationEvent{
		Type:       EventStarted,
		JobID:      job.id,
		DecisionID: job.decisionID,
		Total:      job.total,
	})

	outcomes, err := s.manager.EvaluateAll(ctx, session.EvaluateOptions{
		Provider:    req.Provider,
		OnlyMissing: req.OnlyMissing,
		Progress: func(p session.Progress) {
			event := EvaluationEvent{
				Type:          EventEvaluation,
				JobID:         job.id,
				DecisionID:    job.decisionID,
				Total:         p.Total,
				Processed:     p.Processed,
				Failed:        p.Failed,
				AlternativeID: p.AlternativeID,
				Alternative:   p.Name,
			}
			if p.Err != nil {
				event.Type = EventProgress
				event.Message = p.Err.Error()
			}
			s.evalNotifier.Broadcast(event)
		},
	})

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Processed = len(outcomes)
	for altID, o := range outcomes {
		if o.Err == nil {
			continue
		}
		run.Failed++
		if run.Errors == nil {
			run.Errors = make(map[string]string)
		}
		run.Errors[altID] = o.Err.Error()
	}

	switch {
	case err != nil:
		run.Status = store.RunFailed
		if run.Errors == nil {
			run.Errors = make(map[string]string)
		}
		run.Errors["_"] = err.Error()
		logrus.WithError(err).WithField("job", job.id).Error("evaluation job failed")
		s.evalNotifier.Broadcast(EvaluationEvent{
			Type:       EventError,
			JobID:      job.id,
			DecisionID: job.decisionID,
			Total:      run.Total,
			Processed:  run.Processed,
			Failed:     run.Failed,
			Message:    err.Error(),
		})
	default:
		run.Status = store.RunCompleted
		message := fmt.Sprintf("scored %d of %d alternatives", run.Processed-run.Failed, run.Total)
		if ctx.Err() != nil {
			message = "cancelled: " + message
		}
		logrus.WithFields(logrus.Fields{
			"job":       job.id,
			"processed": run.Processed,
			"failed":    run.Failed,
			"duration":  finished.Sub(job.startedAt),
		}).Info("evaluation job finished")
		s.evalNotifier.Broadcast(EvaluationEvent{
			Type:       EventComplete,
			JobID:      job.id,
			DecisionID: job.decisionID,
			Total:      run.Total,
			Processed:  run.Processed,
			Failed:     run.Failed,
			Message:    message,
		})
	}

	if err := s.saveRun(context.Background(), run); err != nil {
		logrus.WithError(err).WithField("job", job.id).Warn("update evaluation run")
	}
}

func (s *Server) saveRun(ctx context.Context, run store.EvaluationRun) error {
	if s.runs == nil {
		return nil
	}
	return s.runs.SaveRun(ctx, run)
}

func (s *Server) handleEvaluate(c *gin.Context) {
	var req EvaluateRequest
	if !s.bindOptionalJSON(c, &req) {
		return
	}
	if !s.assistant.Enabled() {
		s.renderError(c, http.StatusServiceUnavailable, errors.New("ai evaluation is not configured"))
		return
	}
	d, ok := s.manager.Current()
	if !ok {
		s.fail(c, session.ErrNoDecision)
		return
	}
	if len(d.Criteria) == 0 || len(d.Alternatives) == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("decision needs criteria and alternatives to evaluate"))
		return
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob != nil {
		s.renderError(c, http.StatusConflict, errJobRunning)
		return
	}
	job, err := s.startEvaluation(req, d)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusAccepted, StartEvaluationResponse{
		JobID:      job.id,
		DecisionID: job.decisionID,
		Total:      job.total,
		StartedAt:  job.startedAt,
	})
}

func (s *Server) handleCancelEvaluate(c *gin.Context) {
	jobID := trimmedParam(c, "jobID")
	if jobID == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("job id required"))
		return
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob == nil {
		s.renderError(c, http.StatusNotFound, errors.New("no evaluation running"))
		return
	}
	if s.activeJob.id != jobID {
		s.renderError(c, http.StatusNotFound, errors.New("job not found"))
		return
	}

	s.activeJob.cancel()
	logrus.WithField("job", jobID).Info("evaluation cancellation requested")
	s.evalNotifier.Broadcast(EvaluationEvent{
		Type:       EventProgress,
		JobID:      s.activeJob.id,
		DecisionID: s.activeJob.decisionID,
		Total:      s.activeJob.total,
		Message:    "cancellation requested",
	})
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

func (s *Server) handleEvaluateStatus(c *gin.Context) {
	s.jobMu.Lock()
	job := s.activeJob
	s.jobMu.Unlock()

	resp := EvaluateStatusResponse{Running: job != nil}
	if job != nil {
		resp.JobID = job.id
		resp.DecisionID = job.decisionID
		resp.Total = job.total
	}
	if status := s.evalNotifier.LastStatus(); status != nil {
		if job == nil || status.JobID == job.id {
			resp.JobID = status.JobID
			resp.DecisionID = status.DecisionID
			resp.State = status.Type
			resp.Message = status.Message
			resp.Processed = status.Processed
			resp.Failed = status.Failed
			if status.Total != 0 {
				resp.Total = status.Total
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.runs == nil {
		s.renderError(c, http.StatusServiceUnavailable, errors.New("evaluation runs are not recorded"))
		return
	}
	run, err := s.runs.GetRun(c.Request.Context(), trimmedParam(c, "id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleEvaluateStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.evalNotifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("evaluation websocket connected")
	defer s.evalNotifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).Warn("evaluation websocket unexpected close")
			} else {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("evaluation websocket closed")
			}
			return
		}
	}
}

// waitForJob blocks until the active job, if any, finishes or ctx ends.
func (s *Server) waitForJob(ctx context.Context) error {
	s.jobMu.Lock()
	job := s.activeJob
	s.jobMu.Unlock()
	if job == nil {
		return nil
	}
	select {
	case <-job.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels a running evaluation and waits for it to record its run.
func (s *Server) Shutdown(ctx context.Context) error {
	s.jobMu.Lock()
	if s.activeJob != nil {
		s.activeJob.cancel()
	}
	s.jobMu.Unlock()
	return s.waitForJob(ctx)
}
