package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Rafikg523/PlanZUT/internal/model"
	"github.com/Rafikg523/PlanZUT/internal/repository"
	"github.com/Rafikg523/PlanZUT/internal/zut"
	"gorm.io/gorm"
)

// ═══════════════════════════════════════════════════════════
// 内存版 Repository，供 Service 单测使用
// 后台任务会跨 goroutine 访问，所有操作都上锁
// ═══════════════════════════════════════════════════════════

type memStore struct {
	mu sync.Mutex

	rooms map[string]bool

	runs      map[int64]*model.SyncRun
	nextRunID int64
	runGroups map[int64]map[string]map[string]bool

	canonical map[string]map[string]bool

	students      map[string]*model.Student
	studentToks   map[string][]string
	studentGroups map[string]map[string]map[string]bool

	fetches map[string]*model.GroupFetch
	lessons map[string]model.Lesson
}

func newMemStore() *memStore {
	return &memStore{
		rooms:         make(map[string]bool),
		runs:          make(map[int64]*model.SyncRun),
		runGroups:     make(map[int64]map[string]map[string]bool),
		canonical:     make(map[string]map[string]bool),
		students:      make(map[string]*model.Student),
		studentToks:   make(map[string][]string),
		studentGroups: make(map[string]map[string]map[string]bool),
		fetches:       make(map[string]*model.GroupFetch),
		lessons:       make(map[string]model.Lesson),
	}
}

func newMemRepository(store *memStore) *repository.Repository {
	return &repository.Repository{
		Room:    &memRoomRepo{store},
		SyncRun: &memSyncRunRepo{store},
		Group:   &memGroupRepo{store},
		Student: &memStudentRepo{store},
		Lesson:  &memLessonRepo{store},
	}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ── RoomRepository ──

type memRoomRepo struct{ s *memStore }

func (r *memRoomRepo) UpsertAll(ctx context.Context, names []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range names {
		r.s.rooms[n] = true
	}
	return nil
}

func (r *memRoomRepo) List(ctx context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedKeys(r.s.rooms), nil
}

// ── SyncRunRepository ──

type memSyncRunRepo struct{ s *memStore }

func (r *memSyncRunRepo) Create(ctx context.Context, run *model.SyncRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextRunID++
	run.ID = r.s.nextRunID
	cp := *run
	r.s.runs[run.ID] = &cp
	return nil
}

func (r *memSyncRunRepo) GetByID(ctx context.Context, id int64) (*model.SyncRun, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	run, ok := r.s.runs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *run
	return &cp, nil
}

func (r *memSyncRunRepo) GetLatestSuccessful(ctx context.Context, tokName string) (*model.SyncRun, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *model.SyncRun
	for _, run := range r.s.runs {
		if run.TokName != tokName || run.Status != model.RunStatusSuccess {
			continue
		}
		if latest == nil || (run.FinishedAt != nil && latest.FinishedAt != nil && run.FinishedAt.After(*latest.FinishedAt)) {
			latest = run
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *memSyncRunRepo) MarkStarted(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	run, ok := r.s.runs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now().UTC()
	run.StartedAt = &now
	run.Status = model.RunStatusRunning
	return nil
}

func (r *memSyncRunRepo) MarkFinished(ctx context.Context, id int64, status string, lastError *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	run, ok := r.s.runs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = status
	if lastError != nil {
		run.LastError = lastError
	}
	return nil
}

func (r *memSyncRunRepo) UpdateProgress(ctx context.Context, id int64, progress repository.RunProgress) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	run, ok := r.s.runs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if progress.RoomsTotal != nil {
		run.RoomsTotal = *progress.RoomsTotal
	}
	if progress.RoomsProcessed != nil {
		run.RoomsProcessed = *progress.RoomsProcessed
	}
	if progress.GroupsFound != nil {
		run.GroupsFound = *progress.GroupsFound
	}
	if progress.GroupsAdded != nil {
		run.GroupsAdded = *progress.GroupsAdded
	}
	if progress.Errors != nil {
		run.Errors = *progress.Errors
	}
	if progress.LastError != nil {
		run.LastError = progress.LastError
	}
	return nil
}

func (r *memSyncRunRepo) ListGroups(ctx context.Context, runID int64, tokName string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byTok, ok := r.s.runGroups[runID]
	if !ok {
		return nil, nil
	}
	return sortedKeys(byTok[tokName]), nil
}

// ── GroupRepository ──

type memGroupRepo struct{ s *memStore }

func (r *memGroupRepo) AddForRun(ctx context.Context, runID int64, tokName string, groups []string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.runGroups[runID] == nil {
		r.s.runGroups[runID] = make(map[string]map[string]bool)
	}
	if r.s.runGroups[runID][tokName] == nil {
		r.s.runGroups[runID][tokName] = make(map[string]bool)
	}
	added := 0
	for _, g := range groups {
		r.s.runGroups[runID][tokName][g] = true
		if r.s.canonical[tokName] == nil {
			r.s.canonical[tokName] = make(map[string]bool)
		}
		if !r.s.canonical[tokName][g] {
			r.s.canonical[tokName][g] = true
			added++
		}
	}
	return added, nil
}

func (r *memGroupRepo) UpsertCanonical(ctx context.Context, tokName string, groups []string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.canonical[tokName] == nil {
		r.s.canonical[tokName] = make(map[string]bool)
	}
	added := 0
	for _, g := range groups {
		if !r.s.canonical[tokName][g] {
			r.s.canonical[tokName][g] = true
			added++
		}
	}
	return added, nil
}

func (r *memGroupRepo) ListCanonical(ctx context.Context, tokName string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedKeys(r.s.canonical[tokName]), nil
}

// ── StudentRepository ──

type memStudentRepo struct{ s *memStore }

func (r *memStudentRepo) Upsert(ctx context.Context, albumNumber string, majorsCount int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.students[albumNumber] = &model.Student{AlbumNumber: albumNumber, MajorsCount: majorsCount}
	return nil
}

func (r *memStudentRepo) Exists(ctx context.Context, albumNumber string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.students[albumNumber]
	return ok, nil
}

func (r *memStudentRepo) ReplaceTokNames(ctx context.Context, albumNumber string, tokNames []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.studentToks[albumNumber] = append([]string(nil), tokNames...)
	return nil
}

func (r *memStudentRepo) ListTokNames(ctx context.Context, albumNumber string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]string(nil), r.s.studentToks[albumNumber]...), nil
}

func (r *memStudentRepo) ReplaceGroups(ctx context.Context, albumNumber, tokName string, groups []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.studentGroups[albumNumber] == nil {
		r.s.studentGroups[albumNumber] = make(map[string]map[string]bool)
	}
	set := make(map[string]bool)
	for _, g := range groups {
		set[g] = true
	}
	r.s.studentGroups[albumNumber][tokName] = set
	return nil
}

func (r *memStudentRepo) DeleteGroupsNotInTokNames(ctx context.Context, albumNumber string, tokNames []string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	keep := make(map[string]bool)
	for _, tok := range tokNames {
		keep[tok] = true
	}
	var deleted int64
	for tok, set := range r.s.studentGroups[albumNumber] {
		if !keep[tok] {
			deleted += int64(len(set))
			delete(r.s.studentGroups[albumNumber], tok)
		}
	}
	return deleted, nil
}

func (r *memStudentRepo) ListGroups(ctx context.Context, albumNumber string) (map[string][]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[string][]string)
	for tok, set := range r.s.studentGroups[albumNumber] {
		if len(set) > 0 {
			out[tok] = sortedKeys(set)
		}
	}
	return out, nil
}

func (r *memStudentRepo) ListGroupsFlat(ctx context.Context, albumNumber string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	set := make(map[string]bool)
	for _, groups := range r.s.studentGroups[albumNumber] {
		for g := range groups {
			set[g] = true
		}
	}
	return sortedKeys(set), nil
}

// ── LessonRepository ──

func fetchKey(group, startISO, endISO string) string {
	return group + "|" + startISO + "|" + endISO
}

func lessonKey(l model.Lesson) string {
	return l.GroupName + "|" + l.Start + "|" + l.End
}

type memLessonRepo struct{ s *memStore }

func (r *memLessonRepo) GetFetchStatus(ctx context.Context, groupName, startISO, endISO string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	fetch, ok := r.s.fetches[fetchKey(groupName, startISO, endISO)]
	if !ok {
		return "", nil
	}
	return fetch.Status, nil
}

func (r *memLessonRepo) UpsertFetch(ctx context.Context, fetch *model.GroupFetch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *fetch
	r.s.fetches[fetchKey(fetch.GroupName, fetch.StartISO, fetch.EndISO)] = &cp
	return nil
}

func (r *memLessonRepo) ReplaceForGroupInRange(ctx context.Context, groupName, startISO, endISO string, lessons []model.Lesson) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for key, l := range r.s.lessons {
		if l.GroupName == groupName && l.Start >= startISO && l.Start < endISO {
			delete(r.s.lessons, key)
		}
	}
	for _, l := range lessons {
		l.GroupName = groupName
		r.s.lessons[lessonKey(l)] = l
	}
	return nil
}

func (r *memLessonRepo) ListForGroups(ctx context.Context, groups []string, startISO, endISO string) ([]model.Lesson, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inGroups := make(map[string]bool)
	for _, g := range groups {
		inGroups[g] = true
	}
	var out []model.Lesson
	for _, l := range r.s.lessons {
		if inGroups[l.GroupName] && l.Start >= startISO && l.Start < endISO {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].GroupName < out[j].GroupName
	})
	return out, nil
}

func (r *memLessonRepo) ListFilterItems(ctx context.Context, groups []string, startISO, endISO string) ([]model.FilterItem, error) {
	lessons, err := r.ListForGroups(ctx, groups, startISO, endISO)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []model.FilterItem
	for _, l := range lessons {
		item := model.FilterItem{
			Title:       l.Title,
			Subject:     l.Subject,
			GroupName:   l.GroupName,
			TokName:     l.TokName,
			Worker:      l.Worker,
			WorkerTitle: l.WorkerTitle,
		}
		key := strings.Join([]string{item.Title, item.Subject, item.GroupName, item.TokName, item.Worker, item.WorkerTitle}, "|")
		if !seen[key] {
			seen[key] = true
			out = append(out, item)
		}
	}
	return out, nil
}

// ═══════════════════════════════════════════════════════════
// 上游客户端 mock
// ═══════════════════════════════════════════════════════════

type mockZutClient struct {
	mu         sync.Mutex
	roomsFn    func(ctx context.Context) ([]string, error)
	roomFn     func(ctx context.Context, room string, toks map[string]struct{}, startISO, endISO string) (map[string][]string, error)
	studentFn  func(ctx context.Context, albumNumber, startISO, endISO string) ([]zut.Event, error)
	groupFn    func(ctx context.Context, group, startISO, endISO string) ([]zut.Event, error)
	roomCalls  int
	groupCalls map[string]int
}

func (m *mockZutClient) Rooms(ctx context.Context) ([]string, error) {
	if m.roomsFn == nil {
		return nil, fmt.Errorf("roomsFn 未配置")
	}
	return m.roomsFn(ctx)
}

func (m *mockZutClient) RoomGroups(ctx context.Context, room string, toks map[string]struct{}, startISO, endISO string) (map[string][]string, error) {
	m.mu.Lock()
	m.roomCalls++
	m.mu.Unlock()
	if m.roomFn == nil {
		return nil, fmt.Errorf("roomFn 未配置")
	}
	return m.roomFn(ctx, room, toks, startISO, endISO)
}

func (m *mockZutClient) StudentSchedule(ctx context.Context, albumNumber, startISO, endISO string) ([]zut.Event, error) {
	if m.studentFn == nil {
		return nil, fmt.Errorf("studentFn 未配置")
	}
	return m.studentFn(ctx, albumNumber, startISO, endISO)
}

func (m *mockZutClient) GroupSchedule(ctx context.Context, group, startISO, endISO string) ([]zut.Event, error) {
	m.mu.Lock()
	if m.groupCalls == nil {
		m.groupCalls = make(map[string]int)
	}
	m.groupCalls[group]++
	m.mu.Unlock()
	if m.groupFn == nil {
		return nil, fmt.Errorf("groupFn 未配置")
	}
	return m.groupFn(ctx, group, startISO, endISO)
}

func (m *mockZutClient) groupCallCount(group string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groupCalls[group]
}

func strPtr(s string) *string { return &s }

func eventWith(tok, group, start, end string) zut.Event {
	return zut.Event{
		TokName:   strPtr(tok),
		GroupName: strPtr(group),
		Start:     strPtr(start),
		End:       strPtr(end),
		Subject:   strPtr("Przedmiot"),
	}
}
