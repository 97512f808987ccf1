// Package http 提供执行服务的管理 HTTP 接口
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/smartexecution/internal/execution/application"
	"github.com/wyfcoding/smartexecution/internal/execution/domain"
	"github.com/wyfcoding/smartexecution/pkg/logger"
)

// SubmitTargetsRequest 批量提交目标
type SubmitTargetsRequest struct {
	Targets []application.SubmitTargetCommand `json:"targets" binding:"required,min=1,dive"`
}

type ExecutionHandler struct {
	cmd   *application.ExecutionCommandService
	query *application.ExecutionQueryService
}

func NewExecutionHandler(cmd *application.ExecutionCommandService, query *application.ExecutionQueryService) *ExecutionHandler {
	return &ExecutionHandler{cmd: cmd, query: query}
}

func (h *ExecutionHandler) RegisterRoutes(r *gin.RouterGroup) {
	v1 := r.Group("/v1/execution")
	{
		v1.GET("/orders", h.ListOrders)
		v1.GET("/orders/:id", h.GetOrder)
		v1.GET("/stats", h.Stats)
		v1.GET("/targets", h.PendingTargets)
		v1.POST("/targets", h.SubmitTargets)
		v1.DELETE("/targets/:symbol", h.CancelTarget)
		v1.POST("/quotes", h.UpdateQuote)
	}
}

func (h *ExecutionHandler) ListOrders(c *gin.Context) {
	dtos, err := h.query.ListWorkingOrders(c.Request.Context(), c.Query("state"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": dtos, "total": len(dtos)})
}

func (h *ExecutionHandler) GetOrder(c *gin.Context) {
	dto, err := h.query.GetWorkingOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (h *ExecutionHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.query.Stats(c.Request.Context()))
}

func (h *ExecutionHandler) PendingTargets(c *gin.Context) {
	targets := h.query.PendingTargets(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"targets": targets, "total": len(targets)})
}

func (h *ExecutionHandler) SubmitTargets(c *gin.Context) {
	var req SubmitTargetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	targets, err := h.cmd.SubmitTargets(c.Request.Context(), req.Targets)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": len(targets), "status": "QUEUED"})
}

func (h *ExecutionHandler) CancelTarget(c *gin.Context) {
	symbol := c.Param("symbol")
	if err := h.cmd.CancelTarget(c.Request.Context(), symbol); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"symbol": symbol, "status": "QUEUED"})
}

func (h *ExecutionHandler) UpdateQuote(c *gin.Context) {
	var cmd application.UpdateQuoteCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.cmd.UpdateQuote(c.Request.Context(), cmd); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": cmd.Symbol, "status": "UPDATED"})
}

func (h *ExecutionHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidTarget):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrQuoteUnavailable):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "Execution request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
