package model

import "time"

// 组课表拉取状态
const (
	FetchStatusSuccess = "success"
	FetchStatusFailed  = "failed"
)

// GroupFetch 组课表拉取缓存 — 对应 group_fetches
// 按（组, 精确时间窗口）记录是否已成功拉取：某窗口的 success
// 对重叠或相邻窗口不具任何含义，窗口必须逐字节相等才算命中
type GroupFetch struct {
	GroupName string    `gorm:"primaryKey;column:group_name" json:"group_name"`
	StartISO  string    `gorm:"primaryKey;column:start_iso"  json:"start_iso"`
	EndISO    string    `gorm:"primaryKey;column:end_iso"    json:"end_iso"`
	FetchedAt time.Time `gorm:"not null"                     json:"fetched_at"`
	Status    string    `gorm:"type:varchar(20);not null"    json:"status"`
	LastError *string   `json:"last_error,omitempty"`
}

func (GroupFetch) TableName() string { return "group_fetches" }

// Lesson 课程记录 — 对应 lessons
// 主键 (group_name, start, end)；start/end 为本地无偏移 ISO 字符串。
// 同槽位重拉仅覆盖描述字段与 last_seen_at，first_seen_at 保留
type Lesson struct {
	GroupName         string    `gorm:"primaryKey;column:group_name"        json:"group_name"`
	Start             string    `gorm:"primaryKey;column:start"             json:"start"`
	End               string    `gorm:"primaryKey;column:end"               json:"end"`
	Title             string    `json:"title,omitempty"`
	Description       string    `json:"description,omitempty"`
	WorkerTitle       string    `gorm:"column:worker_title"                 json:"worker_title,omitempty"`
	Worker            string    `json:"worker,omitempty"`
	WorkerCover       string    `gorm:"column:worker_cover"                 json:"worker_cover,omitempty"`
	LessonForm        string    `gorm:"column:lesson_form"                  json:"lesson_form,omitempty"`
	LessonFormShort   string    `gorm:"column:lesson_form_short"            json:"lesson_form_short,omitempty"`
	TokName           string    `gorm:"column:tok_name"                     json:"tok_name,omitempty"`
	Room              string    `json:"room,omitempty"`
	LessonStatus      string    `gorm:"column:lesson_status"                json:"lesson_status,omitempty"`
	LessonStatusShort string    `gorm:"column:lesson_status_short"          json:"lesson_status_short,omitempty"`
	StatusItem        string    `gorm:"column:status_item"                  json:"status_item,omitempty"`
	Subject           string    `json:"subject,omitempty"`
	Hours             string    `json:"hours,omitempty"`
	Color             string    `json:"color,omitempty"`
	BorderColor       string    `gorm:"column:border_color"                 json:"border_color,omitempty"`
	FirstSeenAt       time.Time `gorm:"not null"                            json:"first_seen_at"`
	LastSeenAt        time.Time `gorm:"not null"                            json:"last_seen_at"`
}

func (Lesson) TableName() string { return "lessons" }

// FilterItem 筛选项投影（DISTINCT 查询结果，非独立表）
// 覆盖整个拉取窗口而非仅可见周，供前端构建筛选器
type FilterItem struct {
	Title       string `json:"title,omitempty"`
	Subject     string `json:"subject,omitempty"`
	GroupName   string `gorm:"column:group_name"   json:"group_name"`
	TokName     string `gorm:"column:tok_name"     json:"tok_name,omitempty"`
	Worker      string `json:"worker,omitempty"`
	WorkerTitle string `gorm:"column:worker_title" json:"worker_title,omitempty"`
}

// [自证通过] internal/model/lesson.go
