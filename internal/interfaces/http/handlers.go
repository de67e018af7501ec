package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/exescorp/expense-approval/internal/application/port"
	"github.com/exescorp/expense-approval/internal/application/service"
	"github.com/exescorp/expense-approval/internal/currency"
	"github.com/exescorp/expense-approval/internal/domain/entity"
	"github.com/exescorp/expense-approval/internal/report"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	expenses        service.ExpenseService
	directory       service.DirectoryService
	sequences       service.SequenceService
	converter       *currency.Converter
	exporter        *report.Exporter
	companyCurrency string
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	expenses service.ExpenseService,
	directory service.DirectoryService,
	sequences service.SequenceService,
	converter *currency.Converter,
	exporter *report.Exporter,
	companyCurrency string,
	logger Logger,
) *Handlers {
	return &Handlers{
		expenses:        expenses,
		directory:       directory,
		sequences:       sequences,
		converter:       converter,
		exporter:        exporter,
		companyCurrency: companyCurrency,
		logger:          logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateExpenseRequest is the submit-expense payload
type CreateExpenseRequest struct {
	EmployeeID  string  `json:"employee_id" binding:"required"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Currency    string  `json:"currency" binding:"required"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	ReceiptHash string  `json:"receipt_hash"`
}

// CreateExpense handles POST /api/v1/expenses
func (h *Handlers) CreateExpense(c *gin.Context) {
	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	submitter, err := h.directory.FindUserByID(c.Request.Context(), req.EmployeeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}
	if submitter == nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown employee"})
		return
	}

	// Conversion failure is not fatal: the original amount stands in, the
	// same degradation the rate API's other consumers use.
	converted, err := h.converter.Convert(c.Request.Context(), req.Amount, req.Currency, h.companyCurrency)
	if err != nil {
		h.logger.Error("Currency conversion failed, using original amount",
			"error", err, "currency", req.Currency)
		converted = req.Amount
	}

	expense := &entity.Expense{
		EmployeeID:      req.EmployeeID,
		EmployeeName:    submitter.Name,
		Amount:          req.Amount,
		Currency:        req.Currency,
		ConvertedAmount: converted,
		Category:        req.Category,
		Date:            req.Date,
		Description:     req.Description,
		ReceiptHash:     req.ReceiptHash,
	}

	if err := h.expenses.CreateExpense(c.Request.Context(), expense); err != nil {
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: expense})
}

// ListExpenses handles GET /api/v1/expenses
func (h *Handlers) ListExpenses(c *gin.Context) {
	filter := port.ExpenseFilter{
		Status:     entity.ExpenseStatus(c.Query("status")),
		EmployeeID: c.Query("employee_id"),
	}

	expenses, err := h.expenses.ListExpenses(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: expenses})
}

// GetExpense handles GET /api/v1/expenses/:id. The response embeds the
// full approval timeline in chain order.
func (h *Handlers) GetExpense(c *gin.Context) {
	expense, err := h.expenses.GetExpense(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}
	if expense == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "expense not found"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: expense})
}

// DecisionRequest is the approve/reject payload
type DecisionRequest struct {
	ApproverID string `json:"approver_id" binding:"required"`
	Decision   string `json:"decision" binding:"required,oneof=approved rejected"`
	Comment    string `json:"comment"`
}

// Decide handles POST /api/v1/expenses/:id/decision
func (h *Handlers) Decide(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	err := h.expenses.Decide(c.Request.Context(),
		c.Param("id"), req.ApproverID, entity.Decision(req.Decision), req.Comment)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ListPendingApprovals handles GET /api/v1/approvals/pending?approver_id=
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	approverID := c.Query("approver_id")
	if approverID == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "approver_id is required"})
		return
	}

	expenses, err := h.expenses.ListPendingFor(c.Request.Context(), approverID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: expenses})
}

// GetApprovalRule handles GET /api/v1/approval-rule
func (h *Handlers) GetApprovalRule(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: h.expenses.GetApprovalRule()})
}

// RuleRequest is the replace-rule payload. Strategy parameters are
// validated here at the configuration surface; the engine itself
// tolerates an incomplete rule.
type RuleRequest struct {
	Type               string `json:"type" binding:"required,oneof=sequential percentage specific hybrid"`
	Threshold          int    `json:"threshold"`
	SpecificApproverID string `json:"specific_approver_id"`
	SequenceID         string `json:"sequence_id"`
}

// SetApprovalRule handles PUT /api/v1/approval-rule. The replacement
// immediately sweeps every pending expense under the new rule.
func (h *Handlers) SetApprovalRule(c *gin.Context) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	rule := entity.ApprovalRule{
		Type:               entity.RuleType(req.Type),
		Threshold:          req.Threshold,
		SpecificApproverID: req.SpecificApproverID,
		SequenceID:         req.SequenceID,
	}
	if rule.UsesPercentage() && (rule.Threshold <= 0 || rule.Threshold > 100) {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "threshold must be between 1 and 100"})
		return
	}
	if rule.UsesSpecificApprover() && rule.SpecificApproverID == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "specific_approver_id is required"})
		return
	}
	if rule.Type == entity.RuleSequential && rule.SequenceID == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "sequence_id is required"})
		return
	}

	if err := h.expenses.SetApprovalRule(c.Request.Context(), rule); err != nil {
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rule})
}

// SequenceRequest is the create-sequence payload
type SequenceRequest struct {
	Name  string `json:"name" binding:"required"`
	Steps []struct {
		Step  int    `json:"step" binding:"required"`
		Kind  string `json:"kind" binding:"required,oneof=role user"`
		Value string `json:"value" binding:"required"`
	} `json:"steps" binding:"required,min=1"`
	IsActive bool `json:"is_active"`
}

// CreateSequence handles POST /api/v1/sequences
func (h *Handlers) CreateSequence(c *gin.Context) {
	var req SequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	seq := &entity.ApprovalSequence{
		Name:     req.Name,
		IsActive: req.IsActive,
	}
	for _, s := range req.Steps {
		seq.Steps = append(seq.Steps, entity.SequenceStep{
			Step:  s.Step,
			Kind:  entity.StepKind(s.Kind),
			Value: s.Value,
		})
	}

	if err := h.sequences.CreateSequence(c.Request.Context(), seq); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: seq})
}

// ToggleSequenceRequest is the activate/deactivate payload
type ToggleSequenceRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// ToggleSequence handles PUT /api/v1/sequences/:id/active. A rule
// referencing a deactivated sequence falls back to the legacy chain.
func (h *Handlers) ToggleSequence(c *gin.Context) {
	var req ToggleSequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	if err := h.sequences.SetActive(c.Request.Context(), c.Param("id"), *req.Active); err != nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ListSequences handles GET /api/v1/sequences
func (h *Handlers) ListSequences(c *gin.Context) {
	sequences, err := h.sequences.ListSequences(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: sequences})
}

// ListUsers handles GET /api/v1/users
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.directory.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: users})
}

// ExportExpenses handles GET /api/v1/reports/expenses.xlsx
func (h *Handlers) ExportExpenses(c *gin.Context) {
	filter := port.ExpenseFilter{
		Status: entity.ExpenseStatus(c.Query("status")),
	}

	expenses, err := h.expenses.ListExpenses(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}

	workbook, err := h.exporter.Export(expenses)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}
	defer workbook.Close()

	c.Header("Content-Disposition", `attachment; filename="expenses.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := workbook.Write(c.Writer); err != nil {
		h.logger.Error("Failed to stream report", "error", err)
	}
}
