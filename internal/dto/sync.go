package dto

// StartSyncRequest 触发一次组发现同步
type StartSyncRequest struct {
	TokName    string `json:"tok_name" binding:"omitempty,max=128"`
	Start      string `json:"start" binding:"omitempty,max=32"`
	End        string `json:"end" binding:"omitempty,max=32"`
	MaxWorkers int    `json:"max_workers" binding:"omitempty,min=1,max=32"`
}

// StartSyncResponse 返回新建运行的标识
type StartSyncResponse struct {
	RunID int64 `json:"run_id"`
}

// SyncRunResponse 运行记录视图
type SyncRunResponse struct {
	ID             int64   `json:"id"`
	TokName        string  `json:"tok_name"`
	Start          string  `json:"start"`
	End            string  `json:"end"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"created_at"`
	StartedAt      *string `json:"started_at"`
	FinishedAt     *string `json:"finished_at"`
	RoomsTotal     int     `json:"rooms_total"`
	RoomsProcessed int     `json:"rooms_processed"`
	GroupsFound    int     `json:"groups_found"`
	GroupsAdded    int     `json:"groups_added"`
	Errors         int     `json:"errors"`
	LastError      *string `json:"last_error"`
}

// ActiveRunResponse 当前活跃运行标识，无活跃运行时 run_id 为 null
type ActiveRunResponse struct {
	RunID *int64 `json:"run_id"`
}
