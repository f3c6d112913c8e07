//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Rafikg523/PlanZUT/internal/model"
	"github.com/Rafikg523/PlanZUT/internal/repository"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=plan_zut password=plan_zut_password dbname=plan_zut_test sslmode=disable TimeZone=Europe/Warsaw"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	// 自动迁移测试表结构
	err = testDB.AutoMigrate(
		&model.Room{},
		&model.SyncRun{},
		&model.RunGroup{},
		&model.Group{},
		&model.Student{},
		&model.StudentTokName{},
		&model.StudentGroup{},
		&model.GroupFetch{},
		&model.Lesson{},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "AutoMigrate 失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

func uniq(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// ═══════════════════════════════════════════════════════════
// Test: Room upsert
// ═══════════════════════════════════════════════════════════

func TestRoomRepo_UpsertAll_幂等(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	room := uniq("WI")
	if err := repo.Room.UpsertAll(ctx, []string{room}); err != nil {
		t.Fatalf("首次 UpsertAll 失败: %v", err)
	}

	var first model.Room
	if err := testDB.Where("name = ?", room).First(&first).Error; err != nil {
		t.Fatalf("查询教室失败: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if err := repo.Room.UpsertAll(ctx, []string{room}); err != nil {
		t.Fatalf("二次 UpsertAll 失败: %v", err)
	}

	var second model.Room
	if err := testDB.Where("name = ?", room).First(&second).Error; err != nil {
		t.Fatalf("查询教室失败: %v", err)
	}
	if !second.FirstSeenAt.Equal(first.FirstSeenAt) {
		t.Error("重复写入不应修改 first_seen_at")
	}
	if !second.LastSeenAt.After(first.LastSeenAt) {
		t.Error("重复写入应刷新 last_seen_at")
	}

	testDB.Where("name = ?", room).Delete(&model.Room{})
}

// ═══════════════════════════════════════════════════════════
// Test: SyncRun lifecycle
// ═══════════════════════════════════════════════════════════

func TestSyncRunRepo_生命周期(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	tok := uniq("TOK")

	run := &model.SyncRun{
		TokName:   tok,
		StartISO:  "2026-03-02T00:00:00",
		EndISO:    "2026-06-02T23:59:59",
		Status:    model.RunStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.SyncRun.Create(ctx, run); err != nil {
		t.Fatalf("创建运行失败: %v", err)
	}
	defer func() {
		testDB.Where("run_id = ?", run.ID).Delete(&model.RunGroup{})
		testDB.Where("id = ?", run.ID).Delete(&model.SyncRun{})
		testDB.Where("tok_name = ?", tok).Delete(&model.Group{})
	}()

	if err := repo.SyncRun.MarkStarted(ctx, run.ID); err != nil {
		t.Fatalf("MarkStarted 失败: %v", err)
	}
	got, err := repo.SyncRun.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID 失败: %v", err)
	}
	if got.Status != model.RunStatusRunning || got.StartedAt == nil {
		t.Errorf("运行状态不符: status=%s started_at=%v", got.Status, got.StartedAt)
	}

	added, err := repo.Group.AddForRun(ctx, run.ID, tok, []string{"G1", "G2"})
	if err != nil {
		t.Fatalf("AddForRun 失败: %v", err)
	}
	if added != 2 {
		t.Errorf("期望新增 2 个组，实际 %d", added)
	}

	// 重复添加不应再计新增
	added, err = repo.Group.AddForRun(ctx, run.ID, tok, []string{"G1", "G2", "G3"})
	if err != nil {
		t.Fatalf("重复 AddForRun 失败: %v", err)
	}
	if added != 1 {
		t.Errorf("期望仅新增 1 个组，实际 %d", added)
	}

	groups, err := repo.SyncRun.ListGroups(ctx, run.ID, tok)
	if err != nil {
		t.Fatalf("ListGroups 失败: %v", err)
	}
	if len(groups) != 3 {
		t.Errorf("期望 3 个组，实际 %v", groups)
	}

	if err := repo.SyncRun.MarkFinished(ctx, run.ID, model.RunStatusSuccess, nil); err != nil {
		t.Fatalf("MarkFinished 失败: %v", err)
	}
	got, _ = repo.SyncRun.GetByID(ctx, run.ID)
	if got.Status != model.RunStatusSuccess || got.FinishedAt == nil {
		t.Errorf("终态不符: status=%s finished_at=%v", got.Status, got.FinishedAt)
	}

	latest, err := repo.SyncRun.GetLatestSuccessful(ctx, tok)
	if err != nil {
		t.Fatalf("GetLatestSuccessful 失败: %v", err)
	}
	if latest.ID != run.ID {
		t.Errorf("最近成功运行不符: 期望 %d 实际 %d", run.ID, latest.ID)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Student mapping replace semantics
// ═══════════════════════════════════════════════════════════

func TestStudentRepo_替换语义(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	album := uniq("S")
	defer func() {
		testDB.Where("album_number = ?", album).Delete(&model.StudentGroup{})
		testDB.Where("album_number = ?", album).Delete(&model.StudentTokName{})
		testDB.Where("album_number = ?", album).Delete(&model.Student{})
	}()

	if err := repo.Student.Upsert(ctx, album, 2); err != nil {
		t.Fatalf("Upsert 失败: %v", err)
	}
	if err := repo.Student.ReplaceTokNames(ctx, album, []string{"T1", "T2"}); err != nil {
		t.Fatalf("ReplaceTokNames 失败: %v", err)
	}
	toks, err := repo.Student.ListTokNames(ctx, album)
	if err != nil {
		t.Fatalf("ListTokNames 失败: %v", err)
	}
	if len(toks) != 2 || toks[0] != "T1" || toks[1] != "T2" {
		t.Errorf("tok_name 顺序不符: %v", toks)
	}

	if err := repo.Student.ReplaceGroups(ctx, album, "T1", []string{"G1", "G2"}); err != nil {
		t.Fatalf("ReplaceGroups 失败: %v", err)
	}
	if err := repo.Student.ReplaceGroups(ctx, album, "T2", []string{"G9"}); err != nil {
		t.Fatalf("ReplaceGroups 失败: %v", err)
	}

	// T2 退出解析集合后其组映射应被清除
	deleted, err := repo.Student.DeleteGroupsNotInTokNames(ctx, album, []string{"T1"})
	if err != nil {
		t.Fatalf("DeleteGroupsNotInTokNames 失败: %v", err)
	}
	if deleted != 1 {
		t.Errorf("期望删除 1 条映射，实际 %d", deleted)
	}
	byTok, err := repo.Student.ListGroups(ctx, album)
	if err != nil {
		t.Fatalf("ListGroups 失败: %v", err)
	}
	if len(byTok) != 1 || len(byTok["T1"]) != 2 {
		t.Errorf("组映射不符: %v", byTok)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Lesson window replace
// ═══════════════════════════════════════════════════════════

func TestLessonRepo_窗口替换(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	group := uniq("G")
	startISO, endISO := "2026-03-02T00:00:00", "2026-03-09T00:00:00"
	defer func() {
		testDB.Where("group_name = ?", group).Delete(&model.Lesson{})
		testDB.Where("group_name = ?", group).Delete(&model.GroupFetch{})
	}()

	first := []model.Lesson{
		{GroupName: group, Start: "2026-03-02T08:15:00", End: "2026-03-02T10:00:00", Subject: "Matematyka"},
		{GroupName: group, Start: "2026-03-03T08:15:00", End: "2026-03-03T10:00:00", Subject: "Fizyka"},
	}
	if err := repo.Lesson.ReplaceForGroupInRange(ctx, group, startISO, endISO, first); err != nil {
		t.Fatalf("首次写入失败: %v", err)
	}

	// 新快照缺少周二那节课，重写后不应残留
	second := []model.Lesson{
		{GroupName: group, Start: "2026-03-02T08:15:00", End: "2026-03-02T10:00:00", Subject: "Matematyka II"},
	}
	if err := repo.Lesson.ReplaceForGroupInRange(ctx, group, startISO, endISO, second); err != nil {
		t.Fatalf("二次写入失败: %v", err)
	}

	lessons, err := repo.Lesson.ListForGroups(ctx, []string{group}, startISO, endISO)
	if err != nil {
		t.Fatalf("ListForGroups 失败: %v", err)
	}
	if len(lessons) != 1 {
		t.Fatalf("期望 1 节课，实际 %d", len(lessons))
	}
	if lessons[0].Subject != "Matematyka II" {
		t.Errorf("描述字段未覆盖: %s", lessons[0].Subject)
	}

	// 抓取状态按精确区间命中
	if err := repo.Lesson.UpsertFetch(ctx, &model.GroupFetch{
		GroupName: group, StartISO: startISO, EndISO: endISO,
		Status: model.FetchStatusSuccess,
	}); err != nil {
		t.Fatalf("UpsertFetch 失败: %v", err)
	}
	status, err := repo.Lesson.GetFetchStatus(ctx, group, startISO, endISO)
	if err != nil {
		t.Fatalf("GetFetchStatus 失败: %v", err)
	}
	if status != model.FetchStatusSuccess {
		t.Errorf("期望 success，实际 %q", status)
	}
	status, _ = repo.Lesson.GetFetchStatus(ctx, group, startISO, "2026-03-10T00:00:00")
	if status != "" {
		t.Errorf("不同区间不应命中，实际 %q", status)
	}
}
