package dto

// ListGroupsRequest 查询某 tok_name 的组列表
type ListGroupsRequest struct {
	TokName string `form:"tok_name" binding:"omitempty,max=128"`
	RunID   int64  `form:"run_id" binding:"omitempty,min=1"`
}

// ListGroupsResponse 组列表，缺省取最近一次成功运行的结果
type ListGroupsResponse struct {
	TokName string   `json:"tok_name"`
	RunID   *int64   `json:"run_id"`
	Groups  []string `json:"groups"`
}

// ListRoomsResponse 已知教室目录
type ListRoomsResponse struct {
	Rooms []string `json:"rooms"`
}
