package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Rafikg523/PlanZUT/internal/dto"
	"github.com/Rafikg523/PlanZUT/internal/service"
	pkgerrors "github.com/Rafikg523/PlanZUT/pkg/errors"
	"github.com/Rafikg523/PlanZUT/pkg/response"
)

// SyncHandler 同步模块 HTTP 处理器
type SyncHandler struct {
	syncSvc service.SyncService
}

// NewSyncHandler 创建 SyncHandler
func NewSyncHandler(syncSvc service.SyncService) *SyncHandler {
	return &SyncHandler{syncSvc: syncSvc}
}

// StartSync 触发一次组发现同步
// POST /api/v1/sync
func (h *SyncHandler) StartSync(c *gin.Context) {
	var req dto.StartSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, 11001, "参数校验失败")
		return
	}

	result, err := h.syncSvc.Start(c.Request.Context(), &req)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	response.Accepted(c, result)
}

// GetRun 查询同步运行
// GET /api/v1/sync/runs/:id
func (h *SyncHandler) GetRun(c *gin.Context) {
	runID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || runID <= 0 {
		response.BadRequest(c, 11001, "运行ID无效")
		return
	}

	run, err := h.syncSvc.GetRun(c.Request.Context(), runID)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	response.OK(c, run)
}

// GetActiveRun 查询当前活跃运行
// GET /api/v1/sync/active
func (h *SyncHandler) GetActiveRun(c *gin.Context) {
	response.OK(c, h.syncSvc.ActiveRunID(c.Request.Context()))
}

// ListGroups 按运行列出组
// GET /api/v1/groups
func (h *SyncHandler) ListGroups(c *gin.Context) {
	var req dto.ListGroupsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 11001, "参数校验失败")
		return
	}

	result, err := h.syncSvc.ListGroups(c.Request.Context(), &req)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	response.OK(c, result)
}

// ListRooms 已知教室目录
// GET /api/v1/rooms
func (h *SyncHandler) ListRooms(c *gin.Context) {
	result, err := h.syncSvc.ListRooms(c.Request.Context())
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	response.OK(c, result)
}

// handleSyncError 统一处理同步模块业务错误
func (h *SyncHandler) handleSyncError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSyncAlreadyRunning):
		response.Conflict(c, 11201, "已有同步运行在执行中")
	case errors.Is(err, service.ErrRunNotFound):
		response.NotFound(c, 11101, "同步运行不存在")
	case errors.Is(err, service.ErrInvalidRange):
		response.BadRequest(c, 11002, "时间范围无效")
	case pkgerrors.IsUpstream(err):
		response.BadGateway(c, 11301, "上游排课系统请求失败")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/sync_handler.go
