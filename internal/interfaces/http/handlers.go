package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/yacht-customization/internal/application/workflow"
	domainwf "github.com/garyjia/yacht-customization/internal/domain/workflow"
	"github.com/garyjia/yacht-customization/pkg/utils"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine workflow.WorkflowEngine
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(engine workflow.WorkflowEngine, logger Logger) *Handlers {
	return &Handlers{
		engine: engine,
		logger: logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// StageRequest is the body of advance and precheck
type StageRequest struct {
	Stage   string           `json:"stage" binding:"required"`
	Payload domainwf.Payload `json:"payload"`
}

// RejectRequest is the body of reject
type RejectRequest struct {
	Stage  string `json:"stage" binding:"required"`
	Reason string `json:"reason"`
}

// ResolveRequest is the body of a commercial approval decision
type ResolveRequest struct {
	Decision string `json:"decision" binding:"required"`
	Notes    string `json:"notes"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreateCustomization handles POST /api/customizations
func (h *Handlers) CreateCustomization(c *gin.Context) {
	var req workflow.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid create body", "error", err)
		badRequest(c, "invalid request body")
		return
	}
	req.Notes = utils.SanitizeText(req.Notes)

	created, err := h.engine.Create(c.Request.Context(), req, c.GetString(actorKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: created})
}

// GetCustomization handles GET /api/customizations/:id
func (h *Handlers) GetCustomization(c *gin.Context) {
	req, err := h.engine.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// Advance handles POST /api/customizations/:id/advance
func (h *Handlers) Advance(c *gin.Context) {
	stage, body, ok := h.bindStage(c)
	if !ok {
		return
	}

	updated, err := h.engine.Advance(c.Request.Context(), c.Param("id"), stage, body.Payload, c.GetString(actorKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: updated})
}

// Precheck handles POST /api/customizations/:id/precheck
func (h *Handlers) Precheck(c *gin.Context) {
	stage, body, ok := h.bindStage(c)
	if !ok {
		return
	}

	if err := h.engine.Precheck(c.Request.Context(), c.Param("id"), stage, body.Payload, c.GetString(actorKey)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"stage": stage.String(), "ready": true}})
}

// Reject handles POST /api/customizations/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	var body RejectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.Error("Invalid reject body", "error", err)
		badRequest(c, "invalid request body")
		return
	}
	stage, err := domainwf.ParseStage(body.Stage)
	if err != nil {
		writeError(c, err)
		return
	}

	updated, err := h.engine.Reject(c.Request.Context(), c.Param("id"), stage, utils.SanitizeText(body.Reason), c.GetString(actorKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: updated})
}

// GetTimeline handles GET /api/customizations/:id/timeline
func (h *Handlers) GetTimeline(c *gin.Context) {
	steps, err := h.engine.GetTimeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: steps})
}

// GetSuggestedPrice handles GET /api/customizations/:id/suggested-price
func (h *Handlers) GetSuggestedPrice(c *gin.Context) {
	quote, err := h.engine.SuggestedPrice(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: quote})
}

// GetCommercialApproval handles GET /api/customizations/:id/commercial-approval
func (h *Handlers) GetCommercialApproval(c *gin.Context) {
	approval, err := h.engine.GetCommercialApproval(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: approval})
}

// ResolveCommercialApproval handles POST /api/commercial-approvals/:id/resolve
func (h *Handlers) ResolveCommercialApproval(c *gin.Context) {
	var body ResolveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.Error("Invalid resolve body", "error", err)
		badRequest(c, "invalid request body")
		return
	}
	decision, err := workflow.ParseDecision(body.Decision)
	if err != nil {
		writeError(c, err)
		return
	}

	approval, err := h.engine.ResolveCommercialApproval(c.Request.Context(), c.Param("id"), decision, c.GetString(actorKey), utils.SanitizeText(body.Notes))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: approval})
}

// GetQuotationTotals handles GET /api/quotations/:id/customization-totals
func (h *Handlers) GetQuotationTotals(c *gin.Context) {
	totals, err := h.engine.GetQuotationTotals(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: totals})
}

func (h *Handlers) bindStage(c *gin.Context) (domainwf.Stage, StageRequest, bool) {
	var body StageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.Error("Invalid stage body", "error", err)
		badRequest(c, "invalid request body")
		return "", body, false
	}
	stage, err := domainwf.ParseStage(body.Stage)
	if err != nil {
		writeError(c, err)
		return "", body, false
	}
	body.Payload.Scope = utils.SanitizeText(body.Payload.Scope)
	body.Payload.SupplyNotes = utils.SanitizeText(body.Payload.SupplyNotes)
	body.Payload.PlanningNotes = utils.SanitizeText(body.Payload.PlanningNotes)
	body.Payload.FinalNotes = utils.SanitizeText(body.Payload.FinalNotes)
	return stage, body, true
}
