package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coverdesk/approvalflow/internal/application/engine"
	"github.com/coverdesk/approvalflow/internal/application/port"
	"github.com/coverdesk/approvalflow/internal/application/service"
	"github.com/coverdesk/approvalflow/internal/application/tracker"
	"github.com/coverdesk/approvalflow/internal/domain/approval"
	"github.com/coverdesk/approvalflow/internal/export"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine   engine.Engine
	tracker  *tracker.Tracker
	subjects service.SubjectService
	repo     port.SubjectRepository
	exporter *export.Exporter
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	eng engine.Engine,
	trk *tracker.Tracker,
	subjects service.SubjectService,
	repo port.SubjectRepository,
	exporter *export.Exporter,
	logger Logger,
) *Handlers {
	return &Handlers{
		engine:   eng,
		tracker:  trk,
		subjects: subjects,
		repo:     repo,
		exporter: exporter,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ActionRequest is the body of POST /subjects/:id/actions
type ActionRequest struct {
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
	Intent    string `json:"intent"`
	Note      string `json:"note,omitempty"`
}

// StageRequest is the body of POST /subjects/:id/stages
type StageRequest struct {
	ToStep    int    `json:"to_step"`
	Reason    string `json:"reason,omitempty"`
	Assignee  string `json:"assignee,omitempty"`
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
}

// StageResponse describes a subject's position in its pipeline
type StageResponse struct {
	SubjectID          int64  `json:"subject_id"`
	Status             string `json:"status"`
	Step               int    `json:"step"`
	StepName           string `json:"step_name"`
	ProgressPercent    int    `json:"progress_percent"`
	DaysInCurrentStage int    `json:"days_in_current_stage"`
	PendingReason      string `json:"pending_reason,omitempty"`
	Assignee           string `json:"assignee,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// SubmitSubject handles POST /api/v1/subjects
func (h *Handlers) SubmitSubject(c *gin.Context) {
	var sub approval.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	subject, err := h.engine.Submit(c.Request.Context(), sub)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: subject})
}

// ActOnSubject handles POST /api/v1/subjects/:id/actions
func (h *Handlers) ActOnSubject(c *gin.Context) {
	id, ok := h.subjectID(c)
	if !ok {
		return
	}

	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	subject, err := h.engine.Act(c.Request.Context(), approval.Action{
		SubjectID: id,
		ActorID:   req.ActorID,
		ActorRole: req.ActorRole,
		Intent:    approval.Intent(req.Intent),
		Note:      req.Note,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: subject})
}

// AdvanceStage handles POST /api/v1/subjects/:id/stages
func (h *Handlers) AdvanceStage(c *gin.Context) {
	id, ok := h.subjectID(c)
	if !ok {
		return
	}

	var req StageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	subject, err := h.tracker.Advance(c.Request.Context(), tracker.AdvanceRequest{
		SubjectID: id,
		ToStep:    req.ToStep,
		Reason:    req.Reason,
		Assignee:  req.Assignee,
		ActorID:   req.ActorID,
		ActorRole: req.ActorRole,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: subject})
}

// GetStage handles GET /api/v1/subjects/:id/stage
func (h *Handlers) GetStage(c *gin.Context) {
	id, ok := h.subjectID(c)
	if !ok {
		return
	}

	subject, err := h.engine.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: StageResponse{
			SubjectID:          subject.ID,
			Status:             subject.Status.String(),
			Step:               subject.CurrentLevel,
			StepName:           h.tracker.StepName(subject),
			ProgressPercent:    h.tracker.Progress(subject),
			DaysInCurrentStage: h.tracker.DaysInCurrentStage(subject, time.Now()),
			PendingReason:      subject.PendingReason,
			Assignee:           subject.Assignee,
		},
	})
}

// ListSubjects handles GET /api/v1/subjects
func (h *Handlers) ListSubjects(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	snapshots, err := h.subjects.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: snapshots})
}

// GetSubject handles GET /api/v1/subjects/:id
func (h *Handlers) GetSubject(c *gin.Context) {
	id, ok := h.subjectID(c)
	if !ok {
		return
	}

	subject, err := h.subjects.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: subject})
}

// ExportRegister handles GET /api/v1/export
func (h *Handlers) ExportRegister(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	// List includes each subject's audit trail, which feeds the approver chain
	subjects, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	stamp := time.Now().Format("20060102")
	switch c.DefaultQuery("format", "csv") {
	case "csv":
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="approval_register_%s.csv"`, stamp))
		if err := h.exporter.WriteCSV(c.Writer, subjects); err != nil {
			h.logger.Error("CSV export failed", "error", err)
		}
	case "xlsx":
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="approval_register_%s.xlsx"`, stamp))
		if err := h.exporter.WriteXLSX(c.Writer, subjects); err != nil {
			h.logger.Error("Excel export failed", "error", err)
		}
	default:
		h.badRequest(c, "format must be csv or xlsx")
	}
}

func (h *Handlers) parseFilter(c *gin.Context) (port.Filter, error) {
	filter := port.Filter{
		Status:       approval.Status(c.Query("status")),
		Assignee:     c.Query("assignee"),
		WorkflowType: c.Query("workflow_type"),
		Month:        c.Query("month"),
	}
	if raw := c.Query("level"); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil {
			return port.Filter{}, fmt.Errorf("level must be an integer")
		}
		filter.Level = &level
	}
	if filter.Month != "" {
		if _, err := time.Parse("2006-01", filter.Month); err != nil {
			return port.Filter{}, fmt.Errorf("month must be formatted YYYY-MM")
		}
	}
	return filter, nil
}

func (h *Handlers) subjectID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, "invalid subject id")
		return 0, false
	}
	return id, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// writeError maps domain errors onto HTTP status codes
func (h *Handlers) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, approval.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, approval.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, approval.ErrPolicyViolation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, approval.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, approval.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Unhandled error", "error", err)
	}

	c.JSON(status, Response{Success: false, Error: err.Error()})
}
