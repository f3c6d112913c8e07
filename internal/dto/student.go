package dto

// ResolveEnrollmentRequest 解析学生的 tok_name 集合及组映射
type ResolveEnrollmentRequest struct {
	Majors       int    `json:"majors" binding:"omitempty,min=1,max=8"`
	WeekStart    string `json:"week_start" binding:"omitempty,max=32"`
	RangeStart   string `json:"range_start" binding:"omitempty,max=32"`
	RangeEnd     string `json:"range_end" binding:"omitempty,max=32"`
	ForceRefresh bool   `json:"force_refresh"`
	MaxWorkers   int    `json:"max_workers" binding:"omitempty,min=1,max=32"`
	WeeksLimit   int    `json:"weeks_limit" binding:"omitempty,min=1,max=32"`
}

// DiscoveryStats 组发现扫描的诊断信息
type DiscoveryStats struct {
	RoomsTotal     int    `json:"rooms_total"`
	RoomsProcessed int    `json:"rooms_processed"`
	Errors         int    `json:"errors"`
	LastError      string `json:"last_error,omitempty"`
}

// ResolveEnrollmentResponse 学生 tok_name 与组的完整映射
type ResolveEnrollmentResponse struct {
	AlbumNumber    string              `json:"album_number"`
	TokNames       []string            `json:"tok_names"`
	GroupsByTok    map[string][]string `json:"groups_by_tok"`
	RangeStart     string              `json:"range_start"`
	RangeEnd       string              `json:"range_end"`
	Cached         bool                `json:"cached"`
	WeeksUsed      int                 `json:"weeks_used,omitempty"`
	DiscoveryStats *DiscoveryStats     `json:"discovery_stats,omitempty"`
}

// MaterializeWeekRequest 确保一周课表已物化到缓存
type MaterializeWeekRequest struct {
	WeekStart    string `json:"week_start" binding:"omitempty,max=32"`
	RangeStart   string `json:"range_start" binding:"omitempty,max=32"`
	RangeEnd     string `json:"range_end" binding:"omitempty,max=32"`
	ForceRefresh bool   `json:"force_refresh"`
	MaxWorkers   int    `json:"max_workers" binding:"omitempty,min=1,max=32"`
}

// LessonResponse 课程视图，时间为本地无偏移 ISO 字符串
type LessonResponse struct {
	GroupName         string `json:"group_name"`
	Start             string `json:"start"`
	End               string `json:"end"`
	Title             string `json:"title,omitempty"`
	Description       string `json:"description,omitempty"`
	TokName           string `json:"tok_name,omitempty"`
	LessonForm        string `json:"lesson_form,omitempty"`
	LessonFormShort   string `json:"lesson_form_short,omitempty"`
	Subject           string `json:"subject,omitempty"`
	LessonStatus      string `json:"lesson_status,omitempty"`
	LessonStatusShort string `json:"lesson_status_short,omitempty"`
	StatusItem        string `json:"status_item,omitempty"`
	WorkerTitle       string `json:"worker_title,omitempty"`
	Worker            string `json:"worker,omitempty"`
	WorkerCover       string `json:"worker_cover,omitempty"`
	Room              string `json:"room,omitempty"`
	Hours             string `json:"hours,omitempty"`
	Color             string `json:"color,omitempty"`
	BorderColor       string `json:"border_color,omitempty"`
}

// FilterFacetResponse 可过滤字段的去重组合，覆盖整个抓取区间
type FilterFacetResponse struct {
	Title       string `json:"title,omitempty"`
	Subject     string `json:"subject,omitempty"`
	GroupName   string `json:"group_name"`
	TokName     string `json:"tok_name,omitempty"`
	Worker      string `json:"worker,omitempty"`
	WorkerTitle string `json:"worker_title,omitempty"`
}

// MaterializeWeekStats 一次物化调用的抓取统计
type MaterializeWeekStats struct {
	GroupsTotal   int    `json:"groups_total"`
	GroupsFetched int    `json:"groups_fetched"`
	GroupsCached  int    `json:"groups_cached"`
	Errors        int    `json:"errors"`
	LastError     string `json:"last_error,omitempty"`
}

// MaterializeWeekResponse 可见周课表加全区间过滤面
type MaterializeWeekResponse struct {
	AlbumNumber  string                `json:"album_number"`
	WeekStart    string                `json:"week_start"`
	WeekEnd      string                `json:"week_end"`
	RangeStart   string                `json:"range_start"`
	RangeEnd     string                `json:"range_end"`
	Lessons      []LessonResponse      `json:"lessons"`
	FilterFacets []FilterFacetResponse `json:"filter_facets"`
	Stats        MaterializeWeekStats  `json:"stats"`
}
